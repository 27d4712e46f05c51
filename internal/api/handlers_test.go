package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatforge.io/ai-chat-backend/internal/core"
	"chatforge.io/ai-chat-backend/internal/llm"
	"chatforge.io/ai-chat-backend/internal/relay"
	"chatforge.io/ai-chat-backend/internal/store"
)

type fakeDirectory struct {
	known map[string]bool
}

func (d *fakeDirectory) QueryUsers(ctx context.Context, userID string) ([]relay.User, error) {
	if d.known[userID] {
		return []relay.User{{ID: userID}}, nil
	}
	return nil, nil
}

func (d *fakeDirectory) UpsertUser(ctx context.Context, user relay.User) error {
	if d.known == nil {
		d.known = make(map[string]bool)
	}
	d.known[user.ID] = true
	return nil
}

type fakeGateway struct {
	reply      string
	lastPrompt []llm.Message
}

func (g *fakeGateway) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	g.lastPrompt = messages
	return g.reply, nil
}

type fakeRelay struct {
	sent []string
}

func (r *fakeRelay) GetOrCreateChannel(ctx context.Context, chanType, chanID, createdByID, name string) error {
	return nil
}

func (r *fakeRelay) SendMessage(ctx context.Context, chanType, chanID, text, authorID string) error {
	r.sent = append(r.sent, text)
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *fakeGateway) {
	t.Helper()
	dbStore, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { dbStore.Close() })

	gateway := &fakeGateway{reply: "Hi Ana!"}
	svc := core.NewChatService(dbStore, &fakeDirectory{}, gateway, &fakeRelay{}, 5*time.Second, 10)
	return NewRouter(NewAPIHandler(svc)), gateway
}

func doPost(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(out); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

// TestRegisterChatGetMessages walks the register -> chat -> get-messages
// flow end to end against an in-memory store.
func TestRegisterChatGetMessages(t *testing.T) {
	h, gateway := newTestRouter(t)

	// Register.
	rr := doPost(t, h, "/register-user", `{"name":"Ana","email":"ana@x.com","lang":"EN"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("register status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var reg RegisterUserResponse
	decodeBody(t, rr, &reg)
	if reg.UserID == "" || reg.Name != "Ana" || reg.Email != "ana@x.com" || reg.Lang != "EN" {
		t.Fatalf("register response = %+v, want echoed fields with user id", reg)
	}

	// Chat, addressing the user by email (canonical identifier lookup).
	rr = doPost(t, h, "/chat", `{"userId":"ana@x.com","message":"Hello"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("chat status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var chat ChatResponse
	decodeBody(t, rr, &chat)
	if chat.Reply != "Hi Ana!" {
		t.Errorf("reply = %q, want %q", chat.Reply, "Hi Ana!")
	}

	// With empty history the assembled prompt is exactly the new message.
	if len(gateway.lastPrompt) != 1 || gateway.lastPrompt[0] != (llm.Message{Role: llm.RoleUser, Content: "Hello"}) {
		t.Errorf("prompt = %+v, want [user/Hello]", gateway.lastPrompt)
	}

	// History comes back in storage order.
	rr = doPost(t, h, "/get-messages", `{"email":"ana@x.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("get-messages status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var history GetMessagesResponse
	decodeBody(t, rr, &history)
	if len(history.Messages) != 1 {
		t.Fatalf("message count = %d, want 1", len(history.Messages))
	}
	if history.Messages[0].Message != "Hello" || history.Messages[0].Reply != "Hi Ana!" {
		t.Errorf("messages[0] = %+v, want Hello/Hi Ana!", history.Messages[0])
	}
	if history.Messages[0].Status != store.StatusOK {
		t.Errorf("messages[0].Status = %q, want %q", history.Messages[0].Status, store.StatusOK)
	}
}

func TestRegisterUserValidationLocalized(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		name, body, wantMsg string
	}{
		{"missing email EN", `{"name":"Ana","lang":"EN"}`, "Name and Email is required."},
		{"missing name BG", `{"email":"ana@x.com","lang":"bg"}`, "Име и Имейл адрес са необходими."},
		{"unknown lang", `{"lang":"DE"}`, "Name and Email is required."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doPost(t, h, "/register-user", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
			var resp map[string]string
			decodeBody(t, rr, &resp)
			if resp["error"] != tt.wantMsg {
				t.Errorf("error = %q, want %q", resp["error"], tt.wantMsg)
			}
		})
	}
}

func TestChatValidation(t *testing.T) {
	h, _ := newTestRouter(t)

	rr := doPost(t, h, "/chat", `{"userId":"","message":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	var resp map[string]string
	decodeBody(t, rr, &resp)
	if resp["error"] != "Message and User are required." {
		t.Errorf("error = %q, want %q", resp["error"], "Message and User are required.")
	}
}

func TestChatUnregisteredUser(t *testing.T) {
	h, _ := newTestRouter(t)

	rr := doPost(t, h, "/chat", `{"userId":"nobody@x.com","message":"Hello"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	var resp map[string]string
	decodeBody(t, rr, &resp)
	if resp["error"] != "User not found. Please register first" {
		t.Errorf("error = %q, want register-first message", resp["error"])
	}
}

func TestGetMessagesUnknownEmail(t *testing.T) {
	h, _ := newTestRouter(t)

	rr := doPost(t, h, "/get-messages", `{"email":"nobody@x.com"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	h, _ := newTestRouter(t)

	rr := doPost(t, h, "/chat", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
