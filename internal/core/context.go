package core

import (
	"chatforge.io/ai-chat-backend/internal/llm"
	"chatforge.io/ai-chat-backend/internal/store"
)

// AssembleContext flattens prior exchanges into an alternating
// user/assistant sequence and appends the new message as the final user
// turn. The history must already be in chronological order and is never
// reordered here; the inference call depends on causal message order.
// Failed exchanges contribute only their user turn, since they carry no
// real reply.
func AssembleContext(history []store.ChatRecord, newMessage string) []llm.Message {
	messages := make([]llm.Message, 0, 2*len(history)+1)
	for _, rec := range history {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: rec.Message})
		if rec.Status == store.StatusFailed {
			continue
		}
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: rec.Reply})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: newMessage})
	return messages
}
