package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"chatforge.io/ai-chat-backend/internal/core"
	"chatforge.io/ai-chat-backend/internal/store"
)

type APIHandler struct {
	chatService *core.ChatService
}

func NewAPIHandler(cs *core.ChatService) *APIHandler {
	return &APIHandler{chatService: cs}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps service errors to the external error contract. Anything
// that isn't a validation or not-found error is collapsed to a generic
// internal error; details are logged server-side only.
func writeError(w http.ResponseWriter, err error) {
	var vErr *core.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Message})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "User not found. Please register first"})
	default:
		log.Printf("Internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
	}
}

type RegisterUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Lang  string `json:"lang"`
}

type RegisterUserResponse struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Lang   string `json:"lang"`
}

func (h *APIHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	user, err := h.chatService.RegisterUser(r.Context(), req.Name, req.Email, req.Lang)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RegisterUserResponse{
		UserID: user.UserID,
		Name:   user.Name,
		Email:  user.Email,
		Lang:   user.Lang,
	})
}

type ChatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	reply, err := h.chatService.HandleChatTurn(r.Context(), req.UserID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply})
}

type GetMessagesRequest struct {
	Email string `json:"email"`
}

type GetMessagesResponse struct {
	Messages []store.ChatRecord `json:"messages"`
}

func (h *APIHandler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	var req GetMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	messages, err := h.chatService.GetMessages(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []store.ChatRecord{}
	}

	writeJSON(w, http.StatusOK, GetMessagesResponse{Messages: messages})
}
