package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatforge.io/ai-chat-backend/internal/llm"
	"chatforge.io/ai-chat-backend/internal/relay"
	"chatforge.io/ai-chat-backend/internal/store"
)

// registrationMessages holds the localized validation message for
// /register-user, keyed by uppercased lang code.
var registrationMessages = map[string]string{
	"BG": "Име и Имейл адрес са необходими.",
	"EN": "Name and Email is required.",
}

const defaultLang = "EN"

// Directory is the external user directory: maps user identifiers to
// directory records, creation is idempotent.
type Directory interface {
	QueryUsers(ctx context.Context, userID string) ([]relay.User, error)
	UpsertUser(ctx context.Context, user relay.User) error
}

// Gateway is the external inference API.
type Gateway interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Relay delivers replies into per-user channels of the messaging service.
type Relay interface {
	GetOrCreateChannel(ctx context.Context, chanType, chanID, createdByID, name string) error
	SendMessage(ctx context.Context, chanType, chanID, text, authorID string) error
}

type ChatService struct {
	dbStore      *store.SQLiteStore
	directory    Directory
	gateway      Gateway
	relay        Relay
	callTimeout  time.Duration
	historyLimit int
}

func NewChatService(db *store.SQLiteStore, directory Directory, gateway Gateway, msgRelay Relay, callTimeout time.Duration, historyLimit int) *ChatService {
	return &ChatService{
		dbStore:      db,
		directory:    directory,
		gateway:      gateway,
		relay:        msgRelay,
		callTimeout:  callTimeout,
		historyLimit: historyLimit,
	}
}

// externalCtx bounds one external call. Timeouts surface as ordinary
// errors; no call is retried.
func (s *ChatService) externalCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.callTimeout)
}

// RegisterUser registers a user idempotently, keyed on email. The store
// upsert runs first so repeated registrations resolve to one canonical
// user id, then the directory record is upserted under that id.
func (s *ChatService) RegisterUser(ctx context.Context, name, email, lang string) (*store.User, error) {
	if name == "" || email == "" {
		return nil, &ValidationError{Message: registrationMessage(lang)}
	}

	lang = strings.ToUpper(lang)
	if _, known := registrationMessages[lang]; !known {
		lang = defaultLang
	}

	user, err := s.dbStore.UpsertUser(&store.User{
		UserID: uuid.NewString(),
		Name:   name,
		Email:  email,
		Lang:   lang,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user in store: %w", err)
	}

	dctx, cancel := s.externalCtx(ctx)
	defer cancel()
	err = s.directory.UpsertUser(dctx, relay.User{
		ID:    user.UserID,
		Name:  user.Name,
		Email: user.Email,
		Role:  "user",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user in directory: %w", err)
	}

	return user, nil
}

func registrationMessage(lang string) string {
	if msg, ok := registrationMessages[strings.ToUpper(lang)]; ok {
		return msg
	}
	return registrationMessages[defaultLang]
}

// HandleChatTurn runs one chat exchange: verify registration, assemble
// bounded context from the stored history, invoke inference, persist the
// exchange, and relay the reply into the user's channel.
//
// A failed inference call still appends a chat record, marked failed with
// an empty reply, so the turn is visible in the history without storing
// error text as a reply.
func (s *ChatService) HandleChatTurn(ctx context.Context, identifier, message string) (string, error) {
	if identifier == "" || message == "" {
		return "", &ValidationError{Message: "Message and User are required."}
	}

	user, err := s.dbStore.GetUserByIdentifier(identifier)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return "", ErrNotFound
	}

	dctx, cancel := s.externalCtx(ctx)
	dirUsers, err := s.directory.QueryUsers(dctx, user.UserID)
	cancel()
	if err != nil {
		return "", fmt.Errorf("failed to query user directory: %w", err)
	}
	if len(dirUsers) == 0 {
		return "", ErrNotFound
	}

	history, err := s.dbStore.RecentChatRecords(user.UserID, s.historyLimit)
	if err != nil {
		return "", fmt.Errorf("failed to load chat history: %w", err)
	}

	prompt := AssembleContext(history, message)

	gctx, cancel := s.externalCtx(ctx)
	reply, err := s.gateway.Complete(gctx, prompt)
	cancel()
	if err != nil {
		rec := store.ChatRecord{
			UserID:  user.UserID,
			Message: message,
			Status:  store.StatusFailed,
		}
		if recErr := s.dbStore.AppendChatRecord(&rec); recErr != nil {
			return "", fmt.Errorf("failed to record failed turn: %w (inference error: %v)", recErr, err)
		}
		return "", fmt.Errorf("inference failed: %w", err)
	}

	rec := store.ChatRecord{
		UserID:  user.UserID,
		Message: message,
		Reply:   reply,
		Status:  store.StatusOK,
	}
	if err := s.dbStore.AppendChatRecord(&rec); err != nil {
		return "", fmt.Errorf("failed to persist chat record: %w", err)
	}

	chanID := relay.ChannelID(user.UserID)

	rctx, cancel := s.externalCtx(ctx)
	err = s.relay.GetOrCreateChannel(rctx, relay.ChannelType, chanID, relay.BotUserID, relay.ChannelName)
	cancel()
	if err != nil {
		return "", fmt.Errorf("failed to create relay channel: %w", err)
	}

	rctx, cancel = s.externalCtx(ctx)
	err = s.relay.SendMessage(rctx, relay.ChannelType, chanID, reply, relay.BotUserID)
	cancel()
	if err != nil {
		return "", fmt.Errorf("failed to relay reply: %w", err)
	}

	return reply, nil
}

// GetMessages returns the full stored history for the user registered
// under email, in storage order.
func (s *ChatService) GetMessages(ctx context.Context, email string) ([]store.ChatRecord, error) {
	if email == "" {
		return nil, &ValidationError{Message: "Email is required."}
	}

	user, err := s.dbStore.GetUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	records, err := s.dbStore.ChatRecordsByUser(user.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat records: %w", err)
	}
	return records, nil
}
