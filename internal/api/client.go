// Package api is a thin typed facade over the TrainPI backend REST API.
// One method per endpoint, exactly one HTTP call per method. No retries and
// no caching; failure handling is the caller's business.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"traintty/internal/model"
)

// DefaultBaseURL is the production backend, used when no base URL is configured.
const DefaultBaseURL = "https://trainbackend-production.up.railway.app"

// uploadTimeout bounds document uploads. Distillation of a large PDF is slow
// on the backend, so this is the only client-side timeout in the facade.
const uploadTimeout = 120 * time.Second

// Client calls the TrainPI backend.
type Client struct {
	baseURL string
	http    *http.Client
	upload  *http.Client
	logger  *slog.Logger
}

// New creates a Client for the given base URL. An empty baseURL falls back to
// the production backend.
func New(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		upload:  &http.Client{Timeout: uploadTimeout},
		logger:  logger,
	}
}

// APIError is a non-2xx backend response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Body)
}

// Friendly returns a message suitable for showing in the transcript.
func (e *APIError) Friendly() string {
	switch {
	case e.Status == http.StatusUnprocessableEntity:
		return "The file format is not supported. Please upload a PDF document."
	case e.Status >= 500:
		return "The server had trouble processing that. Please try again in a moment."
	case e.Status == http.StatusNotFound:
		return "That resource was not found on the server."
	default:
		return fmt.Sprintf("Request failed (%d). Please try again.", e.Status)
	}
}

// Health checks backend liveness.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]any
	return c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
}

// Distill uploads a PDF for distillation into a lesson.
func (c *Client) Distill(ctx context.Context, path, ownerID string) (*model.DistillResult, error) {
	endpoint := "/api/distill?owner_id=" + url.QueryEscape(ownerID)
	body, err := c.uploadFile(ctx, endpoint, path, nil)
	if err != nil {
		return nil, err
	}
	var res model.DistillResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decoding distill response: %w", err)
	}
	return &res, nil
}

// ChatUpload uploads a document into the conversation context.
func (c *Client) ChatUpload(ctx context.Context, path, conversationID, userID string, level model.ExplanationLevel) (*model.ChatUploadResult, error) {
	endpoint := "/api/chat/upload?user_id=" + url.QueryEscape(userID)
	if level != "" {
		endpoint += "&explanation_level=" + url.QueryEscape(string(level))
	}
	fields := map[string]string{}
	if conversationID != "" {
		fields["conversation_id"] = conversationID
	}
	body, err := c.uploadFile(ctx, endpoint, path, fields)
	if err != nil {
		return nil, err
	}
	var res model.ChatUploadResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decoding chat upload response: %w", err)
	}
	return &res, nil
}

// IngestDistilled links an already-distilled lesson into the agentic memory.
func (c *Client) IngestDistilled(ctx context.Context, lessonID, userID string) error {
	endpoint := fmt.Sprintf("/api/chat/ingest-distilled?lesson_id=%s&user_id=%s",
		url.QueryEscape(lessonID), url.QueryEscape(userID))
	var out map[string]any
	return c.doJSON(ctx, http.MethodPost, endpoint, nil, &out)
}

// SendChat posts one chat message and returns the raw response payload for
// classification.
func (c *Client) SendChat(ctx context.Context, req model.ChatRequest) (map[string]any, error) {
	var out map[string]any
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LessonContentForChat fetches the stored lesson content used to build chat
// context.
func (c *Client) LessonContentForChat(ctx context.Context, lessonID, userID string) (map[string]any, error) {
	endpoint := fmt.Sprintf("/api/chat/lesson/%s/content?user_id=%s",
		url.PathEscape(lessonID), url.QueryEscape(userID))
	var out map[string]any
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MatchCareer submits Likert ratings and returns ranked career matches.
func (c *Client) MatchCareer(ctx context.Context, answers []model.CareerAnswer, userID string) ([]model.CareerMatch, error) {
	req := map[string]any{"user_id": userID, "answers": answers}
	var out struct {
		Matches []model.CareerMatch `json:"career_matches"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/career/match", req, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

// UnifiedRoadmap generates a learning roadmap toward a target role.
func (c *Client) UnifiedRoadmap(ctx context.Context, targetRole string, interests []string, userID string) (*model.Roadmap, error) {
	req := map[string]any{
		"target_role": targetRole,
		"interests":   interests,
		"skills":      []string{},
		"user_id":     userID,
	}
	var out model.Roadmap
	if err := c.doJSON(ctx, http.MethodPost, "/api/career/roadmap/unified", req, &out); err != nil {
		return nil, err
	}
	if out.TargetRole == "" {
		out.TargetRole = targetRole
	}
	return &out, nil
}

// Mastery fetches the mastery snapshot for a user. Anonymous users get a zero
// snapshot without a network call; fetch failures also degrade to a zero
// snapshot because mastery display must never block the chat.
func (c *Client) Mastery(ctx context.Context, userID, topic string) (*model.MasterySnapshot, error) {
	if userID == "" || userID == "anonymous" || userID == "anonymous-user" {
		return &model.MasterySnapshot{
			TopicScores:       map[string]float64{},
			RecommendedTopics: []string{"Upload a document to start tracking your progress"},
		}, nil
	}
	endpoint := "/api/agent/mastery/" + url.PathEscape(userID)
	if topic != "" {
		endpoint += "?topic=" + url.QueryEscape(topic)
	}
	var out struct {
		Mastery model.MasterySnapshot `json:"mastery"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		c.logger.Warn("mastery fetch failed, using defaults", "error", err)
		return &model.MasterySnapshot{
			TopicScores:       map[string]float64{},
			RecommendedTopics: []string{"Complete assessments to track your progress"},
		}, nil
	}
	if out.Mastery.TopicScores == nil {
		out.Mastery.TopicScores = map[string]float64{}
	}
	return &out.Mastery, nil
}

// RouteMessage runs backend intent detection over a free-form message.
func (c *Client) RouteMessage(ctx context.Context, message, lessonID, userID string) (*model.RouteResult, error) {
	req := map[string]any{"message": message}
	if lessonID != "" {
		req["pdf_id"] = lessonID
	}
	if userID != "" {
		req["user_id"] = userID
	}
	var out model.RouteResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/agent/route", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateSummary asks the summary agent for document key points.
func (c *Client) GenerateSummary(ctx context.Context, lessonID, userID, topic string) (map[string]any, error) {
	return c.agentGenerate(ctx, "/api/agent/summary", lessonID, userID, topic, 0)
}

// GenerateQuiz asks the content agent for quiz questions.
func (c *Client) GenerateQuiz(ctx context.Context, lessonID, userID, topic string, num int) (map[string]any, error) {
	return c.agentGenerate(ctx, "/api/agent/quiz", lessonID, userID, topic, num)
}

// GenerateFlashcards asks the content agent for review cards.
func (c *Client) GenerateFlashcards(ctx context.Context, lessonID, userID, topic string, num int) (map[string]any, error) {
	return c.agentGenerate(ctx, "/api/agent/flashcards", lessonID, userID, topic, num)
}

// GenerateWorkflow asks the content agent for a step-by-step workflow.
func (c *Client) GenerateWorkflow(ctx context.Context, lessonID, userID, topic string) (map[string]any, error) {
	return c.agentGenerate(ctx, "/api/agent/workflow", lessonID, userID, topic, 0)
}

func (c *Client) agentGenerate(ctx context.Context, endpoint, lessonID, userID, topic string, num int) (map[string]any, error) {
	req := map[string]any{"pdf_id": lessonID, "user_id": userID}
	if topic != "" {
		req["topic"] = topic
	}
	if num > 0 {
		req["num"] = num
	}
	var out map[string]any
	if err := c.doJSON(ctx, http.MethodPost, endpoint, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartDiagnostic begins a diagnostic assessment session.
func (c *Client) StartDiagnostic(ctx context.Context, lessonID, userID, topic string, num int) (*model.DiagnosticSession, error) {
	req := map[string]any{"pdf_id": lessonID, "user_id": userID}
	if topic != "" {
		req["topic"] = topic
	}
	if num > 0 {
		req["num"] = num
	}
	var out model.DiagnosticSession
	if err := c.doJSON(ctx, http.MethodPost, "/api/agent/diagnostic", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitDiagnosticResults sends completed diagnostic answers for analysis.
func (c *Client) SubmitDiagnosticResults(ctx context.Context, sess *model.DiagnosticSession, lessonID, userID string) (*model.DiagnosticResults, error) {
	req := map[string]any{
		"pdf_id":       lessonID,
		"user_id":      userID,
		"user_answers": sess.Answers,
		"session_id":   sess.SessionID,
	}
	var out struct {
		Status  string                  `json:"status"`
		Results model.DiagnosticResults `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/agent/diagnostic/results", req, &out); err != nil {
		return nil, err
	}
	return &out.Results, nil
}

// UserProgress fetches the dashboard progress view.
func (c *Client) UserProgress(ctx context.Context, userID string) (map[string]any, error) {
	var out map[string]any
	endpoint := "/api/dashboard/progress/" + url.PathEscape(userID)
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UserAnalytics fetches the dashboard analytics view.
func (c *Client) UserAnalytics(ctx context.Context, userID string) (map[string]any, error) {
	var out map[string]any
	endpoint := "/api/dashboard/analytics/" + url.PathEscape(userID)
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("api call", "method", method, "endpoint", endpoint,
		"status", resp.StatusCode, "duration", time.Since(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}
	return nil
}

// uploadFile sends a multipart POST with the file under the "file" field plus
// any extra form fields, using the long-timeout client.
func (c *Client) uploadFile(ctx context.Context, endpoint, path string, fields map[string]string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("writing form field %s: %w", k, err)
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.upload.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uploading to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}
