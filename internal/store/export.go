package store

import (
	"time"

	"traintty/internal/model"
)

// ExportTranscript builds the JSON export view of the locally persisted
// conversation.
func (s *Store) ExportTranscript() (*model.TranscriptExport, error) {
	msgs, err := s.Messages()
	if err != nil {
		return nil, err
	}
	convID, err := s.GetSetting(KeyConversationID)
	if err != nil {
		return nil, err
	}
	lessonID, err := s.GetSetting(KeyLessonID)
	if err != nil {
		return nil, err
	}
	userID, err := s.GetSetting(KeyUserID)
	if err != nil {
		return nil, err
	}

	export := &model.TranscriptExport{
		ConversationID: convID,
		LessonID:       lessonID,
		UserID:         userID,
		ExportedAt:     time.Now(),
		Messages:       make([]model.TranscriptMsg, 0, len(msgs)),
	}
	for _, m := range msgs {
		export.Messages = append(export.Messages, model.TranscriptMsg{
			Sender:  string(m.Sender),
			Kind:    m.Kind,
			Content: m.Content,
			At:      m.Timestamp,
		})
	}
	return export, nil
}
