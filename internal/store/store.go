// Package store is the local sqlite persistence layer: a settings table for
// conversation identifiers and auth state, and a messages table holding the
// transcript for export.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"traintty/internal/model"

	_ "modernc.org/sqlite"
)

// Well-known settings keys.
const (
	KeyConversationID = "conversation_id"
	KeyUserID         = "user_id"
	KeyLessonID       = "lesson_id"
	KeyAuthToken      = "auth_token"
	KeyUserEmail      = "user_email"
	KeyDocumentName   = "document_name"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		content TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SetSetting upserts a key-value pair in the settings table.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetSetting returns the value for a settings key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// DeleteSetting removes a settings key. Missing keys are not an error.
func (s *Store) DeleteSetting(key string) error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	return err
}

// AddMessage appends one transcript message. Structured payloads are stored
// as JSON alongside the rendered content.
func (s *Store) AddMessage(msg model.Message) error {
	payload := ""
	if msg.Kind != "" && msg.Kind != model.KindText {
		raw, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message payload: %w", err)
		}
		payload = string(raw)
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (id, sender, content, kind, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, string(msg.Sender), msg.Content, string(msg.Kind), payload, msg.Timestamp,
	)
	return err
}

// Messages returns the full transcript in insertion order.
func (s *Store) Messages() ([]model.Message, error) {
	rows, err := s.db.Query(
		`SELECT id, sender, content, kind, payload, created_at FROM messages ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var messages []model.Message
	for rows.Next() {
		var (
			m       model.Message
			sender  string
			kind    string
			payload string
			at      time.Time
		)
		if err := rows.Scan(&m.ID, &sender, &m.Content, &kind, &payload, &at); err != nil {
			return nil, err
		}
		m.Sender = model.Sender(sender)
		m.Kind = model.ContentKind(kind)
		m.Timestamp = at
		if payload != "" {
			var full model.Message
			if err := json.Unmarshal([]byte(payload), &full); err == nil {
				full.Timestamp = at
				m = full
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ClearMessages removes the whole transcript.
func (s *Store) ClearMessages() error {
	_, err := s.db.Exec(`DELETE FROM messages`)
	return err
}

// ClearConversation wipes the transcript and forgets the conversation and
// lesson identifiers. Auth state is untouched.
func (s *Store) ClearConversation() error {
	if err := s.ClearMessages(); err != nil {
		return err
	}
	for _, key := range []string{KeyConversationID, KeyLessonID, KeyDocumentName} {
		if err := s.DeleteSetting(key); err != nil {
			return err
		}
	}
	return nil
}
