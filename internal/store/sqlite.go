package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        user_id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        email TEXT NOT NULL UNIQUE,
        lang TEXT NOT NULL DEFAULT 'EN',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS chats (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT NOT NULL,
        message TEXT NOT NULL,
        reply TEXT NOT NULL,
        status TEXT NOT NULL DEFAULT 'ok' CHECK (status IN ('ok', 'failed')),
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (user_id)
    );

    CREATE INDEX IF NOT EXISTS idx_chats_user_created ON chats (user_id, created_at);
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

// UpsertUser inserts the user unless the email is already registered. The
// unique constraint on email makes registration idempotent without a
// query-then-insert race; the stored row is returned either way.
func (s *SQLiteStore) UpsertUser(user *User) (*User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		"INSERT INTO users (user_id, name, email, lang, created_at) VALUES (?, ?, ?, ?, ?) ON CONFLICT(email) DO NOTHING",
		user.UserID, user.Name, user.Email, user.Lang, user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return s.GetUserByEmail(user.Email)
}

// GetUserByIdentifier resolves an identifier against both the generated
// user id and the registered email, whichever matches.
func (s *SQLiteStore) GetUserByIdentifier(identifier string) (*User, error) {
	return s.scanUser(s.db.QueryRow(
		"SELECT user_id, name, email, lang, created_at FROM users WHERE user_id = ? OR email = ?",
		identifier, identifier,
	))
}

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	return s.scanUser(s.db.QueryRow(
		"SELECT user_id, name, email, lang, created_at FROM users WHERE email = ?",
		email,
	))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(&user.UserID, &user.Name, &user.Email, &user.Lang, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// Chat record methods

// AppendChatRecord stores one exchange. Records are never updated or
// deleted after this point.
func (s *SQLiteStore) AppendChatRecord(rec *ChatRecord) error {
	if rec.Status == "" {
		rec.Status = StatusOK
	}
	rec.CreatedAt = time.Now()

	stmt, err := s.db.Prepare("INSERT INTO chats (user_id, message, reply, status, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare chat insert: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(rec.UserID, rec.Message, rec.Reply, rec.Status, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute chat insert: %w", err)
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

// RecentChatRecords returns up to limit most-recent records for the user,
// in ascending (created_at, id) order so callers can replay them
// chronologically.
func (s *SQLiteStore) RecentChatRecords(userID string, limit int) ([]ChatRecord, error) {
	query := `
        SELECT id, user_id, message, reply, status, created_at FROM (
            SELECT id, user_id, message, reply, status, created_at
            FROM chats
            WHERE user_id = ?
            ORDER BY created_at DESC, id DESC
            LIMIT ?
        ) ORDER BY created_at ASC, id ASC
    `
	return s.queryChatRecords(query, userID, limit)
}

// ChatRecordsByUser returns the full history for the user in insertion order.
func (s *SQLiteStore) ChatRecordsByUser(userID string) ([]ChatRecord, error) {
	query := "SELECT id, user_id, message, reply, status, created_at FROM chats WHERE user_id = ? ORDER BY created_at ASC, id ASC"
	return s.queryChatRecords(query, userID)
}

func (s *SQLiteStore) queryChatRecords(query string, args ...any) ([]ChatRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat records: %w", err)
	}
	defer rows.Close()

	var records []ChatRecord
	for rows.Next() {
		var rec ChatRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Message, &rec.Reply, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat record row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
