package store

import (
	"testing"
	"time"

	"traintty/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetSetting(KeyConversationID, "conv-1"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	got, err := s.GetSetting(KeyConversationID)
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if got != "conv-1" {
		t.Errorf("got %q, want conv-1", got)
	}

	// Upsert overwrites.
	if err := s.SetSetting(KeyConversationID, "conv-2"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	got, _ = s.GetSetting(KeyConversationID)
	if got != "conv-2" {
		t.Errorf("after overwrite got %q, want conv-2", got)
	}
}

func TestGetSettingMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetSetting("nope")
	if err != nil {
		t.Fatalf("missing key must not error: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestDeleteSetting(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetSetting(KeyLessonID, "les-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteSetting(KeyLessonID); err != nil {
		t.Fatalf("DeleteSetting: %v", err)
	}
	got, _ := s.GetSetting(KeyLessonID)
	if got != "" {
		t.Errorf("got %q after delete", got)
	}
	// Deleting again is fine.
	if err := s.DeleteSetting(KeyLessonID); err != nil {
		t.Errorf("double delete: %v", err)
	}
}

func TestMessagesOrderAndPayload(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().Truncate(time.Second)

	msgs := []model.Message{
		{ID: "m1", Sender: model.SenderUser, Content: "explain this", Timestamp: base},
		{ID: "m2", Sender: model.SenderAssistant, Content: "quiz ready",
			Kind: model.KindQuiz, Timestamp: base.Add(time.Second),
			Quiz: []model.QuizItem{{Question: "Q1", Options: []string{"a", "b"}, Answer: "b"}}},
	}
	for _, m := range msgs {
		if err := s.AddMessage(m); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	got, err := s.Messages()
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].ID != "m1" || got[1].ID != "m2" {
		t.Errorf("order wrong: %s, %s", got[0].ID, got[1].ID)
	}
	if got[1].Kind != model.KindQuiz || len(got[1].Quiz) != 1 || got[1].Quiz[0].Answer != "b" {
		t.Errorf("structured payload lost: %+v", got[1])
	}
}

func TestClearConversation(t *testing.T) {
	s := newTestStore(t)
	s.SetSetting(KeyConversationID, "conv-1")
	s.SetSetting(KeyLessonID, "les-1")
	s.SetSetting(KeyAuthToken, "tok")
	s.AddMessage(model.Message{ID: "m1", Sender: model.SenderUser, Content: "hi", Timestamp: time.Now()})

	if err := s.ClearConversation(); err != nil {
		t.Fatalf("ClearConversation: %v", err)
	}

	msgs, _ := s.Messages()
	if len(msgs) != 0 {
		t.Errorf("transcript not empty: %d messages", len(msgs))
	}
	if v, _ := s.GetSetting(KeyConversationID); v != "" {
		t.Errorf("conversation_id survived clear: %q", v)
	}
	if v, _ := s.GetSetting(KeyLessonID); v != "" {
		t.Errorf("lesson_id survived clear: %q", v)
	}
	if v, _ := s.GetSetting(KeyAuthToken); v != "tok" {
		t.Errorf("auth token must survive clear, got %q", v)
	}
}

func TestExportTranscript(t *testing.T) {
	s := newTestStore(t)
	s.SetSetting(KeyConversationID, "conv-1")
	s.SetSetting(KeyUserID, "u1")
	s.AddMessage(model.Message{ID: "m1", Sender: model.SenderUser, Content: "hello", Timestamp: time.Now()})
	s.AddMessage(model.Message{ID: "m2", Sender: model.SenderAssistant, Content: "hi there", Timestamp: time.Now()})

	export, err := s.ExportTranscript()
	if err != nil {
		t.Fatalf("ExportTranscript: %v", err)
	}
	if export.ConversationID != "conv-1" || export.UserID != "u1" {
		t.Errorf("export header: %+v", export)
	}
	if len(export.Messages) != 2 || export.Messages[0].Sender != "user" {
		t.Errorf("export messages: %+v", export.Messages)
	}
}
