// Package llm is the direct-mode content source: when no learning backend is
// configured, chat and content generation go straight to an OpenAI-compatible
// endpoint. Responses use the same loose JSON shapes the backend produces so
// the classifier handles both sources identically.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"traintty/internal/model"
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Chat sends the conversation so far and returns the assistant's reply as a
// raw payload for classification.
func (c *Client) Chat(ctx context.Context, messages []model.Message, level model.ExplanationLevel) (map[string]any, error) {
	chatMsgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: buildChatSystemPrompt(level)},
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Sender == model.SenderAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMsgs,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}
	return map[string]any{"response": resp.Choices[0].Message.Content}, nil
}

// Generate produces structured content of the given kind about topic,
// returned in the same shape the backend's content agents use.
func (c *Client) Generate(ctx context.Context, kind model.ContentKind, topic string, context_ string) (map[string]any, error) {
	prompt, ok := generatePrompts[kind]
	if !ok {
		return nil, fmt.Errorf("no generation prompt for content kind %q", kind)
	}

	userMsg := "Topic: " + topic
	if context_ != "" {
		userMsg += "\n\nSource material:\n" + context_
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: userMsg},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM generation response", "kind", kind, "raw", raw)

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		// Let the classifier try to dig JSON out of the text.
		return map[string]any{"response": raw}, nil
	}
	return out, nil
}

var generatePrompts = map[model.ContentKind]string{
	model.KindQuiz: `You are a quiz author. Create a multiple-choice quiz about the topic.
Respond ONLY with a JSON object:
{"questions": [{"question": "<text>", "options": ["<a>", "<b>", "<c>", "<d>"], "correct_answer": "<full text of the correct option>"}]}
Write at least 5 questions. The correct_answer must exactly match one of the options.`,

	model.KindFlashcards: `You are a flashcard author. Create review flashcards about the topic.
Respond ONLY with a JSON object:
{"flashcards": [{"front": "<question or term>", "back": "<answer or definition>"}]}
Write at least 6 cards.`,

	model.KindWorkflow: `You are a process author. Break the topic into an ordered workflow.
Respond ONLY with a JSON object:
{"workflow": [{"step": 1, "action": "<short name>", "description": "<what to do>"}]}
Write at least 4 steps.`,

	model.KindSummary: `You are a summarizer. Extract the key points of the topic.
Respond ONLY with a JSON object:
{"summary_data": {"key_points": ["<point>", "..."]}}
Write 5 to 8 key points.`,

	model.KindLesson: `You are a lesson author. Teach the topic as concise bullet points.
Respond ONLY with a JSON object:
{"lesson_data": {"bullets": ["<point>", "..."]}}
Write 6 to 10 bullets.`,
}

func buildChatSystemPrompt(level model.ExplanationLevel) string {
	var sb strings.Builder
	sb.WriteString("You are a patient technical tutor helping someone learn from their documents.\n")
	switch level {
	case model.LevelFiveYearOld:
		sb.WriteString("Explain everything in the simplest possible terms, as if to a complete beginner. Use analogies.\n")
	case model.LevelIntern:
		sb.WriteString("Explain at the level of a junior engineer. Define jargon on first use.\n")
	default:
		sb.WriteString("Explain at the level of a senior engineer. Be precise and skip the basics.\n")
	}
	sb.WriteString("Answer in plain prose unless the user explicitly asks for structured content.")
	return sb.String()
}
