// Package chat owns the conversation: the ordered transcript, the send and
// quick-action flows, the upload chain, and the agentic router. All backend
// calls run one at a time; the UI refuses new actions while one is in flight.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"traintty/internal/api"
	"traintty/internal/classify"
	"traintty/internal/llm"
	"traintty/internal/model"
	"traintty/internal/session"
	"traintty/internal/store"
)

// ErrBusy is returned when a request is already in flight.
var ErrBusy = errors.New("a request is already in flight")

// placeholderWait is how long to pause before the single re-request after
// placeholder content is detected.
const placeholderWait = time.Second

// Orchestrator drives the conversation against the backend (or the direct
// LLM source) and keeps the transcript persisted.
type Orchestrator struct {
	api     *api.Client
	llm     *llm.Client // nil unless direct mode
	store   *store.Store
	session *session.Manager
	cfg     model.ChatConfig
	logger  *slog.Logger

	mu             sync.Mutex
	busy           bool
	messages       []model.Message
	conversationID string
	lessonID       string
	documentName   string
}

// New restores the persisted conversation state and transcript.
func New(apiClient *api.Client, llmClient *llm.Client, st *store.Store, sess *session.Manager, cfg model.ChatConfig, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		api:     apiClient,
		llm:     llmClient,
		store:   st,
		session: sess,
		cfg:     cfg,
		logger:  logger,
	}

	var err error
	if o.conversationID, err = st.GetSetting(store.KeyConversationID); err != nil {
		return nil, fmt.Errorf("loading conversation id: %w", err)
	}
	if o.lessonID, err = st.GetSetting(store.KeyLessonID); err != nil {
		return nil, fmt.Errorf("loading lesson id: %w", err)
	}
	if o.documentName, err = st.GetSetting(store.KeyDocumentName); err != nil {
		return nil, fmt.Errorf("loading document name: %w", err)
	}
	if o.messages, err = st.Messages(); err != nil {
		return nil, fmt.Errorf("loading transcript: %w", err)
	}
	return o, nil
}

// Messages returns a snapshot of the transcript.
func (o *Orchestrator) Messages() []model.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.Message, len(o.messages))
	copy(out, o.messages)
	return out
}

// Busy reports whether a request is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// ConversationID returns the adopted backend conversation id, empty before
// the first response.
func (o *Orchestrator) ConversationID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conversationID
}

// LessonID returns the current lesson id, empty before any upload.
func (o *Orchestrator) LessonID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lessonID
}

// HasDocument reports whether a document has been uploaded this conversation.
func (o *Orchestrator) HasDocument() bool {
	return o.LessonID() != ""
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrBusy
	}
	o.busy = true
	return nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

// append adds a message to the transcript and persists it. Persistence
// failures are logged, not fatal; the in-memory transcript is authoritative
// for the session.
func (o *Orchestrator) append(msg model.Message) model.Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	o.mu.Lock()
	o.messages = append(o.messages, msg)
	o.mu.Unlock()
	if err := o.store.AddMessage(msg); err != nil {
		o.logger.Warn("persisting message", "error", err)
	}
	return msg
}

func (o *Orchestrator) appendText(sender model.Sender, content string) model.Message {
	return o.append(model.Message{Sender: sender, Content: content, Kind: model.KindText})
}

// SendMessage posts one user message and appends the classified reply.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) (model.Message, error) {
	if err := o.begin(); err != nil {
		return model.Message{}, err
	}
	defer o.end()

	o.appendText(model.SenderUser, text)
	return o.deliver(ctx, text, "")
}

// deliver runs one round trip (plus at most one placeholder retry) and
// appends the resulting assistant message. Callers must hold the busy flag.
func (o *Orchestrator) deliver(ctx context.Context, text string, hint model.ContentKind) (model.Message, error) {
	payload, err := o.send(ctx, text)
	if err != nil {
		return o.appendFailure(err), nil
	}
	result := classify.Classify(payload, "", hint)

	if result.Placeholder {
		result, err = o.retryPlaceholder(ctx, result)
		if err != nil {
			return o.appendFailure(err), nil
		}
	}
	return o.append(messageFromResult(result)), nil
}

// retryPlaceholder re-requests real content once, after a short pause. If the
// second response is still placeholder data, give up explicitly.
func (o *Orchestrator) retryPlaceholder(ctx context.Context, first classify.Result) (classify.Result, error) {
	kind := first.PlaceholderKind
	o.logger.Warn("placeholder content detected, re-requesting", "kind", kind)

	select {
	case <-time.After(placeholderWait):
	case <-ctx.Done():
		return classify.Result{}, ctx.Err()
	}

	retryPrompt, ok := retryPrompts[kind]
	if !ok {
		retryPrompt = "Give me the actual " + string(kind) + " from the document content, not sample or placeholder data."
	}
	payload, err := o.send(ctx, retryPrompt)
	if err != nil {
		return classify.Result{}, err
	}
	result := classify.Classify(payload, "", kind)
	if result.Placeholder {
		return classify.Result{
			Kind: model.KindText,
			Text: fmt.Sprintf("I couldn't generate real %s content from this document. Please try again, or try a different document.", kind),
		}, nil
	}
	return result, nil
}

// send performs one chat round trip against whichever source is configured.
func (o *Orchestrator) send(ctx context.Context, text string) (map[string]any, error) {
	if o.cfg.Direct && o.llm != nil {
		msgs := o.Messages()
		msgs = append(msgs, model.Message{Sender: model.SenderUser, Content: text})
		return o.llm.Chat(ctx, msgs, o.cfg.ExplanationLevel)
	}

	req := model.ChatRequest{
		Message:          text,
		UserID:           o.session.UserID(),
		ConversationID:   o.ConversationID(),
		ExplanationLevel: o.cfg.ExplanationLevel,
		Framework:        o.cfg.Framework,
		LessonID:         o.LessonID(),
		Context:          o.buildContext(ctx),
	}
	payload, err := o.api.SendChat(ctx, req)
	if err != nil {
		return nil, err
	}
	o.adoptConversationID(payload)
	return payload, nil
}

// adoptConversationID picks up the backend-assigned conversation id from the
// first response that carries one.
func (o *Orchestrator) adoptConversationID(payload map[string]any) {
	id, _ := payload["conversation_id"].(string)
	if id == "" {
		return
	}
	o.mu.Lock()
	known := o.conversationID
	o.conversationID = id
	o.mu.Unlock()
	if known == id {
		return
	}
	if err := o.store.SetSetting(store.KeyConversationID, id); err != nil {
		o.logger.Warn("persisting conversation id", "error", err)
	}
}

// buildContext assembles the free-text context block: document marker, the
// stored lesson content, and the last three substantial assistant messages.
func (o *Orchestrator) buildContext(ctx context.Context) string {
	o.mu.Lock()
	lessonID := o.lessonID
	docName := o.documentName
	msgs := make([]model.Message, len(o.messages))
	copy(msgs, o.messages)
	o.mu.Unlock()

	var sb strings.Builder
	if lessonID != "" {
		sb.WriteString("\n\n**Uploaded Document Context:** " + docName)

		if data, err := o.api.LessonContentForChat(ctx, lessonID, o.session.UserID()); err == nil {
			if content, _ := data["content"].(string); content != "" {
				sb.WriteString("\n\n**Lesson Content:**\n" + content)
			}
		} else {
			o.logger.Warn("loading lesson content for context", "error", err)
		}
	}

	var recent []string
	for _, m := range msgs {
		if m.Sender == model.SenderAssistant && len(m.Content) > 50 {
			recent = append(recent, m.Content)
		}
	}
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	if len(recent) > 0 {
		sb.WriteString("\n\n**Recent Generated Content:**\n" + strings.Join(recent, "\n\n"))
	}
	return sb.String()
}

// appendFailure turns a backend error into a transient system notice.
func (o *Orchestrator) appendFailure(err error) model.Message {
	o.logger.Error("chat request failed", "error", err)
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return o.appendText(model.SenderSystem, apiErr.Friendly())
	}
	return o.appendText(model.SenderSystem, "Something went wrong talking to the server. Please try again.")
}

// Clear wipes the transcript and forgets the conversation and lesson.
func (o *Orchestrator) Clear() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrBusy
	}
	if err := o.store.ClearConversation(); err != nil {
		return fmt.Errorf("clearing conversation: %w", err)
	}
	o.messages = nil
	o.conversationID = ""
	o.lessonID = ""
	o.documentName = ""
	return nil
}

func messageFromResult(r classify.Result) model.Message {
	msg := model.Message{
		Sender:  model.SenderAssistant,
		Content: r.Text,
		Kind:    r.Kind,
	}
	switch r.Kind {
	case model.KindQuiz:
		msg.Quiz = r.Quiz
	case model.KindFlashcards:
		msg.Flashcards = r.Flashcards
	case model.KindWorkflow:
		msg.Workflow = r.Workflow
	case model.KindSummary:
		msg.Summary = r.Summary
	case model.KindLesson:
		msg.Lesson = r.Lesson
	case "":
		msg.Kind = model.KindText
		msg.Content = "I received a response I couldn't interpret. Please try rephrasing."
	}
	return msg
}
