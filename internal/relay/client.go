// Package relay talks to a Stream-Chat-compatible messaging API. It covers
// both collaborator roles the backend needs from that service: the user
// directory (query/upsert users) and the message relay (per-user channels
// that receive AI replies).
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Fixed identities used for relayed AI replies.
const (
	ChannelType = "messaging"
	ChannelName = "AI Chat"
	BotUserID   = "ai_bot"
)

// User is a directory record in the messaging service.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Client is a server-side client for the messaging API. Requests are
// authenticated with a JWT signed using the API secret.
type Client struct {
	apiKey      string
	baseURL     string
	serverToken string
	httpClient  *http.Client
}

func NewClient(apiKey, apiSecret, baseURL string, timeout time.Duration) (*Client, error) {
	token, err := serverToken(apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign server token: %w", err)
	}
	return &Client{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		serverToken: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// ChannelID returns the fixed per-user channel identifier.
func ChannelID(userID string) string {
	return "chat-" + userID
}

type queryUsersResponse struct {
	Users []User `json:"users"`
}

// QueryUsers returns the directory records whose id equals userID.
func (c *Client) QueryUsers(ctx context.Context, userID string) ([]User, error) {
	filter := map[string]any{
		"filter_conditions": map[string]any{
			"id": map[string]any{"$eq": userID},
		},
	}
	payload, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user filter: %w", err)
	}

	endpoint := c.baseURL + "/users?api_key=" + url.QueryEscape(c.apiKey) + "&payload=" + url.QueryEscape(string(payload))
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var parsed queryUsersResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse user query response: %w", err)
	}
	return parsed.Users, nil
}

// UpsertUser creates or updates a directory record. The operation is
// idempotent on the service side, so no query-before-create is needed.
func (c *Client) UpsertUser(ctx context.Context, user User) error {
	if user.Role == "" {
		user.Role = "user"
	}
	reqBody := map[string]map[string]User{
		"users": {user.ID: user},
	}
	_, err := c.do(ctx, http.MethodPost, c.endpoint("/users"), reqBody)
	return err
}

// GetOrCreateChannel ensures the channel exists, creating it as createdByID
// when it doesn't.
func (c *Client) GetOrCreateChannel(ctx context.Context, chanType, chanID, createdByID, name string) error {
	reqBody := map[string]any{
		"data": map[string]any{
			"name":          name,
			"created_by_id": createdByID,
		},
	}
	path := fmt.Sprintf("/channels/%s/%s/query", chanType, chanID)
	_, err := c.do(ctx, http.MethodPost, c.endpoint(path), reqBody)
	return err
}

// SendMessage delivers text into the channel as authorID.
func (c *Client) SendMessage(ctx context.Context, chanType, chanID, text, authorID string) error {
	reqBody := map[string]any{
		"message": map[string]any{
			"text":    text,
			"user_id": authorID,
		},
	}
	path := fmt.Sprintf("/channels/%s/%s/message", chanType, chanID)
	_, err := c.do(ctx, http.MethodPost, c.endpoint(path), reqBody)
	return err
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path + "?api_key=" + url.QueryEscape(c.apiKey)
}

func (c *Client) do(ctx context.Context, method, endpoint string, reqBody any) ([]byte, error) {
	var payload io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal relay request: %w", err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.serverToken)
	req.Header.Set("stream-auth-type", "jwt")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading relay response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("relay non-success status=%d body=%s", resp.StatusCode, truncate(string(body), 400))
	}
	return body, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
