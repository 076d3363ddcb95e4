package model

import "time"

// TranscriptExport is the top-level JSON structure for conversation export.
type TranscriptExport struct {
	ConversationID string          `json:"conversation_id"`
	LessonID       string          `json:"lesson_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	ExportedAt     time.Time       `json:"exported_at"`
	Messages       []TranscriptMsg `json:"messages"`
}

// TranscriptMsg is a single message in an exported transcript.
type TranscriptMsg struct {
	Sender  string      `json:"sender"`
	Kind    ContentKind `json:"kind,omitempty"`
	Content string      `json:"content"`
	At      time.Time   `json:"at"`
}
