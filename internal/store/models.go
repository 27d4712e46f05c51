package store

import "time"

// Chat record statuses. A record is written for every chat turn; failed
// inference turns are kept with an empty reply and StatusFailed so the
// failure is visible in the history without leaking error text as a reply.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

type User struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Lang      string    `json:"lang"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRecord is one user/assistant exchange. Records are append-only and
// createdAt-ordered; context assembly depends on that ordering.
type ChatRecord struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	Reply     string    `json:"reply"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
