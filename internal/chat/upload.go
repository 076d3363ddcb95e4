package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"traintty/internal/model"
	"traintty/internal/store"
)

// UploadDocument runs the three-step upload chain: distill the PDF into a
// lesson, upload it into the conversation, and ingest the distilled lesson
// into the agentic memory. Ingest failure is logged but not fatal; the chat
// still works without it.
func (o *Orchestrator) UploadDocument(ctx context.Context, path string) (model.Message, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return model.Message{}, fmt.Errorf("only PDF documents are supported, got %s", filepath.Base(path))
	}
	if err := o.begin(); err != nil {
		return model.Message{}, err
	}
	defer o.end()

	name := filepath.Base(path)
	o.appendText(model.SenderUser, "Uploaded document: "+name)
	userID := o.session.UserID()

	distilled, err := o.api.Distill(ctx, path, userID)
	if err != nil {
		return o.appendFailure(err), nil
	}
	o.logger.Info("document distilled", "lesson_id", distilled.LessonID)

	uploaded, err := o.api.ChatUpload(ctx, path, o.ConversationID(), userID, o.cfg.ExplanationLevel)
	if err != nil {
		return o.appendFailure(err), nil
	}

	if err := o.api.IngestDistilled(ctx, distilled.LessonID, userID); err != nil {
		o.logger.Warn("ingesting distilled lesson", "error", err)
	}

	o.mu.Lock()
	o.lessonID = distilled.LessonID
	o.documentName = name
	if uploaded.ConversationID != "" {
		o.conversationID = uploaded.ConversationID
	}
	o.mu.Unlock()

	for key, value := range map[string]string{
		store.KeyLessonID:     distilled.LessonID,
		store.KeyDocumentName: name,
	} {
		if err := o.store.SetSetting(key, value); err != nil {
			o.logger.Warn("persisting upload state", "key", key, "error", err)
		}
	}
	if uploaded.ConversationID != "" {
		if err := o.store.SetSetting(store.KeyConversationID, uploaded.ConversationID); err != nil {
			o.logger.Warn("persisting conversation id", "error", err)
		}
	}

	content := uploaded.Response
	if content == "" {
		content = "I've processed your document."
	}
	content += "\n\nYou can now ask questions about it, or use the quick actions to generate a summary, quiz, flashcards, or a workflow."
	return o.appendText(model.SenderAssistant, content), nil
}
