package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// NoResponseSentinel is returned when the API answers successfully but
	// with no usable content.
	NoResponseSentinel = "No response from AI"
)

// Message is one role-tagged entry in a chat completion prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is a minimal OpenAI-compatible chat completions client.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL, model string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the ordered message sequence to the chat completions
// endpoint and returns the first choice's content. An empty completion is
// not an error; the sentinel reply is returned instead. No retries: every
// failure is surfaced to the caller immediately.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed reading completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("completion non-success status=%d body=%s", resp.StatusCode, truncate(string(body), 400))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse completion response: %s", truncate(string(body), 400))
	}

	if len(parsed.Choices) == 0 {
		return NoResponseSentinel, nil
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return NoResponseSentinel, nil
	}
	return content, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
