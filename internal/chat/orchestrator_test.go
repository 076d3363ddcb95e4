package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traintty/internal/api"
	"traintty/internal/model"
	"traintty/internal/session"
	"traintty/internal/store"
)

type nullProvider struct{}

func (nullProvider) SendMagicLink(ctx context.Context, email, redirectTo string) error {
	return nil
}

func (nullProvider) GetUser(ctx context.Context, token string) (*session.User, error) {
	return nil, nil
}

func newTestOrchestrator(t *testing.T, handler http.Handler) (*Orchestrator, *store.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sess := session.New(nullProvider{}, st, nil)
	o, err := New(api.New(srv.URL, nil), nil, st, sess, model.ChatConfig{
		ExplanationLevel: model.LevelIntern,
	}, nil)
	require.NoError(t, err)
	return o, st
}

func writeJSON(w http.ResponseWriter, v any) {
	json.NewEncoder(w).Encode(v)
}

func TestSendMessageAdoptsConversationID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req model.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "anonymous", req.UserID)
		assert.Equal(t, model.LevelIntern, req.ExplanationLevel)
		writeJSON(w, map[string]any{"response": "hello!", "conversation_id": "conv-1"})
	})

	o, st := newTestOrchestrator(t, mux)
	msg, err := o.SendMessage(context.Background(), "hi")
	require.NoError(t, err)

	assert.Equal(t, model.SenderAssistant, msg.Sender)
	assert.Equal(t, "hello!", msg.Content)
	assert.Equal(t, "conv-1", o.ConversationID())

	persisted, err := st.GetSetting(store.KeyConversationID)
	require.NoError(t, err)
	assert.Equal(t, "conv-1", persisted)

	msgs := o.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.SenderUser, msgs[0].Sender)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestSendMessageClassifiesStructuredReply(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"quiz": []map[string]any{
				{"question": "Capital of France?", "options": []string{"Paris", "Lyon"}, "answer": "Paris"},
				{"question": "Capital of Italy?", "options": []string{"Rome", "Milan"}, "answer": "Rome"},
				{"question": "Capital of Spain?", "options": []string{"Madrid", "Seville"}, "answer": "Madrid"},
			},
		})
	})

	o, _ := newTestOrchestrator(t, mux)
	msg, err := o.SendMessage(context.Background(), "quiz me")
	require.NoError(t, err)
	assert.Equal(t, model.KindQuiz, msg.Kind)
	require.Len(t, msg.Quiz, 3)
	assert.Equal(t, "Paris", msg.Quiz[0].Answer)
}

func TestPlaceholderRetriesOnceThenSucceeds(t *testing.T) {
	var mu sync.Mutex
	var prompts []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req model.ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		prompts = append(prompts, req.Message)
		n := len(prompts)
		mu.Unlock()

		if n == 1 {
			writeJSON(w, map[string]any{"quiz": []map[string]any{
				{"question": "Sample Question 1"}, {"question": "Sample Question 2"}, {"question": "Sample Question 3"},
			}})
			return
		}
		writeJSON(w, map[string]any{"quiz": []map[string]any{
			{"question": "Real Q1", "options": []string{"a", "b"}, "answer": "a"},
			{"question": "Real Q2", "options": []string{"a", "b"}, "answer": "b"},
			{"question": "Real Q3", "options": []string{"a", "b"}, "answer": "a"},
		}})
	})

	o, _ := newTestOrchestrator(t, mux)
	msg, err := o.SendMessage(context.Background(), "quiz me")
	require.NoError(t, err)

	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "actual quiz questions")
	assert.Equal(t, model.KindQuiz, msg.Kind)
	assert.Equal(t, "Real Q1", msg.Quiz[0].Question)
}

func TestPlaceholderGivesUpAfterOneRetry(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, map[string]any{"quiz": []map[string]any{
			{"question": "Sample Question 1"}, {"question": "Sample Question 2"}, {"question": "Sample Question 3"},
		}})
	})

	o, _ := newTestOrchestrator(t, mux)
	msg, err := o.SendMessage(context.Background(), "quiz me")
	require.NoError(t, err)

	assert.Equal(t, 2, calls, "exactly one retry")
	assert.Equal(t, model.KindText, msg.Kind)
	assert.Contains(t, msg.Content, "couldn't generate real quiz content")
}

func TestBackendErrorBecomesSystemNotice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	o, _ := newTestOrchestrator(t, mux)
	msg, err := o.SendMessage(context.Background(), "hi")
	require.NoError(t, err, "backend failures must not surface as errors")
	assert.Equal(t, model.SenderSystem, msg.Sender)
	assert.Contains(t, msg.Content, "server")
}

func TestRequestsAreSerialized(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		<-release
		writeJSON(w, map[string]any{"response": "done"})
	})

	o, _ := newTestOrchestrator(t, mux)

	done := make(chan struct{})
	go func() {
		o.SendMessage(context.Background(), "first")
		close(done)
	}()

	// Wait until the first request is in flight.
	require.Eventually(t, o.Busy, 2*time.Second, 5*time.Millisecond)

	_, err := o.SendMessage(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	<-done
	assert.False(t, o.Busy())
}

func TestUploadDocumentChain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	var ingested bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api/distill", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"lesson_id": "les-7"})
	})
	mux.HandleFunc("/api/chat/upload", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"conversation_id": "conv-7", "response": "Document processed."})
	})
	mux.HandleFunc("/api/chat/ingest-distilled", func(w http.ResponseWriter, r *http.Request) {
		ingested = true
		assert.Equal(t, "les-7", r.URL.Query().Get("lesson_id"))
		writeJSON(w, map[string]any{"status": "ok"})
	})

	o, st := newTestOrchestrator(t, mux)
	msg, err := o.UploadDocument(context.Background(), path)
	require.NoError(t, err)

	assert.True(t, ingested)
	assert.Equal(t, "les-7", o.LessonID())
	assert.Equal(t, "conv-7", o.ConversationID())
	assert.Contains(t, msg.Content, "Document processed.")
	assert.Contains(t, msg.Content, "quick actions")

	lessonID, _ := st.GetSetting(store.KeyLessonID)
	assert.Equal(t, "les-7", lessonID)
}

func TestUploadIngestFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	mux := http.NewServeMux()
	mux.HandleFunc("/api/distill", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"lesson_id": "les-1"})
	})
	mux.HandleFunc("/api/chat/upload", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"conversation_id": "conv-1", "response": "ok"})
	})
	mux.HandleFunc("/api/chat/ingest-distilled", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ingest down", http.StatusInternalServerError)
	})

	o, _ := newTestOrchestrator(t, mux)
	msg, err := o.UploadDocument(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, model.SenderAssistant, msg.Sender)
	assert.Equal(t, "les-1", o.LessonID())
}

func TestUploadRejectsNonPDF(t *testing.T) {
	o, _ := newTestOrchestrator(t, http.NewServeMux())
	_, err := o.UploadDocument(context.Background(), "/tmp/notes.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PDF")
}

func TestQuickActionQuiz(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/agent/quiz", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "les-1", req["pdf_id"])
		assert.Equal(t, float64(10), req["num"])
		writeJSON(w, map[string]any{"questions": []map[string]any{
			{"question": "Q1", "options": []string{"a", "b"}, "correct_answer": "a"},
			{"question": "Q2", "options": []string{"a", "b"}, "correct_answer": "b"},
			{"question": "Q3", "options": []string{"a", "b"}, "correct_answer": "a"},
		}})
	})

	o, st := newTestOrchestrator(t, mux)
	require.NoError(t, st.SetSetting(store.KeyLessonID, "les-1"))
	o.lessonID = "les-1"

	msg, err := o.QuickAction(context.Background(), ActionQuiz)
	require.NoError(t, err)
	assert.Equal(t, model.KindQuiz, msg.Kind)
	require.Len(t, msg.Quiz, 3)
	assert.Equal(t, "a", msg.Quiz[0].Answer)
}

func TestQuickActionNeedsDocument(t *testing.T) {
	o, _ := newTestOrchestrator(t, http.NewServeMux())
	for _, a := range []Action{ActionQuiz, ActionSummary, ActionFlashcards, ActionWorkflow, ActionDiagnostic} {
		_, err := o.QuickAction(context.Background(), a)
		assert.Error(t, err, "action %s must require a document", a)
	}
}

func TestQuickActionMasteryWorksAnonymously(t *testing.T) {
	o, _ := newTestOrchestrator(t, http.NewServeMux())
	msg, err := o.QuickAction(context.Background(), ActionMastery)
	require.NoError(t, err)
	assert.Contains(t, msg.Content, "Overall Mastery")
	assert.Contains(t, msg.Content, "Upload a document")
}

func TestClearConversation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"response": "hi", "conversation_id": "conv-1"})
	})

	o, st := newTestOrchestrator(t, mux)
	_, err := o.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	require.NotEmpty(t, o.ConversationID())

	require.NoError(t, o.Clear())
	assert.Empty(t, o.Messages())
	assert.Empty(t, o.ConversationID())
	assert.Empty(t, o.LessonID())

	v, _ := st.GetSetting(store.KeyConversationID)
	assert.Empty(t, v)
}

func TestTranscriptSurvivesRestart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"response": "remembered", "conversation_id": "conv-1"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "traintty.db")
	st, err := store.New(dbPath)
	require.NoError(t, err)
	sess := session.New(nullProvider{}, st, nil)

	o, err := New(api.New(srv.URL, nil), nil, st, sess, model.ChatConfig{}, nil)
	require.NoError(t, err)
	_, err = o.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st2, err := store.New(dbPath)
	require.NoError(t, err)
	defer st2.Close()
	o2, err := New(api.New(srv.URL, nil), nil, st2, session.New(nullProvider{}, st2, nil), model.ChatConfig{}, nil)
	require.NoError(t, err)

	msgs := o2.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "conv-1", o2.ConversationID())
}

func TestDiagnosticFlow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/agent/diagnostic", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"session_id": "diag-1",
			"questions": []map[string]any{
				{"question": "Q1", "options": []string{"a", "b"}, "correct_answer": "a"},
				{"question": "Q2", "options": []string{"a", "b"}, "correct_answer": "b"},
			},
		})
	})
	mux.HandleFunc("/api/agent/diagnostic/results", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "diag-1", req["session_id"])
		writeJSON(w, map[string]any{"status": "ok", "results": map[string]any{
			"skill_gaps":      []string{"pointers"},
			"recommendations": []string{"review chapter 2"},
		}})
	})

	o, st := newTestOrchestrator(t, mux)
	st.SetSetting(store.KeyLessonID, "les-1")
	o.lessonID = "les-1"

	sess, err := o.StartDiagnostic(context.Background())
	require.NoError(t, err)
	require.Len(t, sess.Questions, 2)

	assert.True(t, AnswerDiagnostic(sess, 0, " A "), "trimmed case-insensitive match")
	assert.False(t, AnswerDiagnostic(sess, 1, "a"))

	msg, err := o.FinishDiagnostic(context.Background(), sess)
	require.NoError(t, err)
	assert.Contains(t, msg.Content, "1/2")
	assert.Contains(t, msg.Content, "pointers")
	assert.Contains(t, msg.Content, "review chapter 2")
}
