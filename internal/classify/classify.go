// Package classify turns loosely-shaped backend payloads into canonical
// content. The backend's response schema is not stable across endpoints, so
// every kind is probed at a prioritized list of historical field locations
// before giving up and falling back to plain text.
package classify

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"traintty/internal/model"
)

// Result is the outcome of classifying one backend payload.
type Result struct {
	Kind model.ContentKind

	Text       string
	Quiz       []model.QuizItem
	Flashcards []model.Flashcard
	Workflow   []string
	Summary    []string
	Lesson     *model.Lesson

	// Placeholder is set when content was found but flagged as sample/mock
	// data. Nothing is rendered; the caller should re-request once with an
	// "actual content" prompt.
	Placeholder     bool
	PlaceholderKind model.ContentKind
}

// Unrecognized reports whether the payload carried nothing usable.
func (r Result) Unrecognized() bool {
	return !r.Placeholder && r.Kind == ""
}

var (
	fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	bareJSONRe   = regexp.MustCompile(`(?s)\{.*\}`)
)

// Classify inspects payload for quiz, flashcard, workflow, summary or lesson
// content, normalizes the first match, and otherwise falls back to extracting
// JSON from the free-text response or to plain text. The hint biases kind
// detection when the payload carries no type field (quick actions know what
// they asked for).
func Classify(payload map[string]any, fallbackText string, hint model.ContentKind) Result {
	return classify(payload, fallbackText, hint, 0)
}

func classify(payload map[string]any, fallbackText string, hint model.ContentKind, depth int) Result {
	// Unwrap one level of nesting.
	if inner, ok := payload["data"].(map[string]any); ok {
		payload = inner
	}

	kind := hint
	if t, ok := payload["type"].(string); ok && t != "" {
		kind = model.ContentKind(t)
	}

	if r, ok := classifyQuiz(payload, kind); ok {
		return r
	}
	if r, ok := classifyFlashcards(payload, kind); ok {
		return r
	}
	if r, ok := classifyWorkflow(payload, kind); ok {
		return r
	}
	if r, ok := classifySummary(payload, kind); ok {
		return r
	}
	if r, ok := classifyLesson(payload, kind); ok {
		return r
	}

	responseText := stringField(payload, "response")
	if responseText == "" {
		responseText = fallbackText
	}

	// No structured kind matched: the model may have replied with JSON
	// embedded in prose. Extract it and take one more pass.
	if responseText != "" && depth == 0 {
		if embedded, ok := extractJSON(responseText); ok {
			if r := classify(embedded, responseText, hint, depth+1); !r.Unrecognized() {
				return r
			}
		}
	}

	if responseText != "" {
		return Result{Kind: model.KindText, Text: responseText}
	}
	return Result{}
}

func classifyQuiz(payload map[string]any, kind model.ContentKind) (Result, bool) {
	if kind != model.KindQuiz && !hasAny(payload, "quiz", "quiz_data", "questions") {
		return Result{}, false
	}
	items := firstList(payload,
		[]string{"quiz"},
		[]string{"quiz_data", "questions"},
		[]string{"questions"},
		[]string{"content", "questions"},
	)
	if len(items) == 0 {
		return Result{}, false
	}
	if IsPlaceholder(model.KindQuiz, items) {
		return Result{Placeholder: true, PlaceholderKind: model.KindQuiz}, true
	}
	quiz := NormalizeQuiz(items)
	if len(quiz) == 0 {
		return Result{}, false
	}
	return Result{Kind: model.KindQuiz, Quiz: quiz, Text: quizPreview(quiz)}, true
}

func classifyFlashcards(payload map[string]any, kind model.ContentKind) (Result, bool) {
	if kind != model.KindFlashcards && !hasAny(payload, "flashcards", "flashcard_data", "cards") {
		return Result{}, false
	}
	items := firstList(payload,
		[]string{"flashcards"},
		[]string{"flashcard_data", "cards"},
		[]string{"cards"},
		[]string{"content", "cards"},
	)
	if len(items) == 0 {
		return Result{}, false
	}
	if IsPlaceholder(model.KindFlashcards, items) {
		return Result{Placeholder: true, PlaceholderKind: model.KindFlashcards}, true
	}
	cards := NormalizeFlashcards(items)
	if len(cards) == 0 {
		return Result{}, false
	}
	return Result{Kind: model.KindFlashcards, Flashcards: cards, Text: cardPreview(cards)}, true
}

func classifyWorkflow(payload map[string]any, kind model.ContentKind) (Result, bool) {
	if kind != model.KindWorkflow && !hasAny(payload, "workflow", "workflow_data") {
		return Result{}, false
	}
	items := firstList(payload,
		[]string{"workflow"},
		[]string{"workflow_data", "steps"},
		[]string{"steps"},
		[]string{"content", "workflow"},
	)
	if len(items) > 0 {
		if IsPlaceholder(model.KindWorkflow, items) {
			return Result{Placeholder: true, PlaceholderKind: model.KindWorkflow}, true
		}
		steps := stringList(items)
		if len(steps) > 0 {
			return Result{Kind: model.KindWorkflow, Workflow: steps, Text: strings.Join(steps, "\n\n")}, true
		}
	}

	// Some backend versions return a Mermaid diagram instead of step text.
	if mermaid := pathString(payload, "workflow_data", "mermaid_code"); strings.TrimSpace(mermaid) != "" {
		md := "```mermaid\n" + strings.TrimSpace(mermaid) + "\n```"
		return Result{Kind: model.KindWorkflow, Text: md}, true
	}
	return Result{}, false
}

func classifySummary(payload map[string]any, kind model.ContentKind) (Result, bool) {
	if kind != model.KindSummary && !hasAny(payload, "summary", "summary_data") {
		return Result{}, false
	}
	items := firstList(payload,
		[]string{"summary_data", "key_points"},
		[]string{"summary"},
		[]string{"summary_data"},
		[]string{"key_points"},
		[]string{"content"},
	)
	bullets := stringList(items)
	if len(bullets) == 0 {
		// A bare string summary still renders as a single bullet list entry.
		if s := stringField(payload, "summary"); s != "" {
			bullets = []string{s}
		}
	}
	if len(bullets) == 0 {
		return Result{}, false
	}
	var sb strings.Builder
	for i, pt := range bullets {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- **" + pt + "**")
	}
	return Result{Kind: model.KindSummary, Summary: bullets, Text: sb.String()}, true
}

func classifyLesson(payload map[string]any, kind model.ContentKind) (Result, bool) {
	if kind != model.KindLesson && !hasAny(payload, "lesson", "lesson_data", "bullets") {
		return Result{}, false
	}
	data, ok := firstMap(payload, "lesson", "lesson_data", "content")
	if !ok {
		data = payload
	}
	bullets := stringList(listField(data, "bullets"))
	if len(bullets) == 0 {
		bullets = stringList(listField(data, "key_points"))
	}
	if len(bullets) == 0 {
		return Result{}, false
	}
	lesson := &model.Lesson{
		LessonID:         stringField(data, "lesson_id"),
		Bullets:          bullets,
		Framework:        stringField(data, "framework"),
		ExplanationLevel: stringField(data, "explanation_level"),
	}
	return Result{Kind: model.KindLesson, Lesson: lesson, Text: "Generated lesson content"}, true
}

// Placeholder detection thresholds. Shorter sequences than these suggest the
// backend served canned fallback data rather than document-derived content.
const (
	minQuizItems     = 3
	minFlashcards    = 5
	minWorkflowSteps = 3
)

var placeholderMarkers = map[model.ContentKind][]string{
	model.KindQuiz:       {"sample question", "example question", "placeholder", "mock", "fallback"},
	model.KindFlashcards: {"sample card", "example card", "placeholder", "mock", "fallback"},
	model.KindWorkflow:   {"sample step", "example step", "placeholder", "mock", "fallback"},
}

// IsPlaceholder reports whether items look like backend sample data: known
// marker substrings anywhere in the serialized content, or an implausibly
// short sequence. Exactly at the threshold counts as real content.
func IsPlaceholder(kind model.ContentKind, items []any) bool {
	if len(items) == 0 {
		return true
	}
	var minLen int
	switch kind {
	case model.KindQuiz:
		minLen = minQuizItems
	case model.KindFlashcards:
		minLen = minFlashcards
	case model.KindWorkflow:
		minLen = minWorkflowSteps
	default:
		return false
	}
	if len(items) < minLen {
		return true
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return false
	}
	text := strings.ToLower(string(raw))
	for _, marker := range placeholderMarkers[kind] {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// NormalizeQuiz coerces raw quiz entries into canonical items. Missing fields
// get generic defaults so a partially-shaped question still renders.
func NormalizeQuiz(items []any) []model.QuizItem {
	out := make([]model.QuizItem, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, model.QuizItem{
				Question: v,
				Options:  defaultOptions(),
				Answer:   "A",
			})
		case map[string]any:
			q := firstString(v, "question", "q", "text")
			if q == "" {
				q = fmt.Sprintf("Question %d", i+1)
			}
			opts := stringList(firstList(v, []string{"options"}, []string{"choices"}, []string{"answers"}))
			if len(opts) == 0 {
				opts = defaultOptions()
			}
			ans := firstString(v, "answer", "correct", "correctAnswer", "correct_answer")
			if ans == "" {
				ans = "A"
			}
			out = append(out, model.QuizItem{Question: q, Options: opts, Answer: ans})
		}
	}
	return out
}

// NormalizeFlashcards coerces raw card entries into canonical front/back
// pairs. Already-canonical cards pass through unchanged.
func NormalizeFlashcards(items []any) []model.Flashcard {
	out := make([]model.Flashcard, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		front := firstString(m, "front", "question", "term", "q")
		if front == "" {
			front = fmt.Sprintf("Question %d", i+1)
		}
		back := firstString(m, "back", "answer", "definition", "a")
		if back == "" {
			back = fmt.Sprintf("Answer %d", i+1)
		}
		out = append(out, model.Flashcard{Front: front, Back: back})
	}
	return out
}

// EqualAnswer compares a selected option against the stored answer using
// case-insensitive, whitespace-trimmed equality.
func EqualAnswer(selected, answer string) bool {
	return strings.EqualFold(strings.TrimSpace(selected), strings.TrimSpace(answer))
}

// extractJSON pulls a fenced ```json block, or failing that a bare JSON
// object, out of free text.
func extractJSON(text string) (map[string]any, bool) {
	var raw string
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		raw = m[1]
	} else if m := bareJSONRe.FindString(text); m != "" {
		raw = m
	} else {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false
	}
	return out, true
}

func quizPreview(quiz []model.QuizItem) string {
	lines := make([]string, len(quiz))
	for i, q := range quiz {
		lines[i] = fmt.Sprintf("%d. %s", i+1, q.Question)
	}
	return strings.Join(lines, "\n")
}

func cardPreview(cards []model.Flashcard) string {
	lines := make([]string, len(cards))
	for i, c := range cards {
		lines[i] = fmt.Sprintf("• %d. %s → %s", i+1, c.Front, c.Back)
	}
	return strings.Join(lines, "\n")
}

func defaultOptions() []string {
	return []string{"Option A", "Option B", "Option C", "Option D"}
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func listField(m map[string]any, key string) []any {
	l, _ := m[key].([]any)
	return l
}

// firstList walks each candidate path and returns the first non-empty list.
func firstList(m map[string]any, paths ...[]string) []any {
	for _, path := range paths {
		cur := any(m)
		for _, key := range path {
			mm, ok := cur.(map[string]any)
			if !ok {
				cur = nil
				break
			}
			cur = mm[key]
		}
		if l, ok := cur.([]any); ok && len(l) > 0 {
			return l
		}
	}
	return nil
}

func firstMap(m map[string]any, keys ...string) (map[string]any, bool) {
	for _, k := range keys {
		if mm, ok := m[k].(map[string]any); ok {
			return mm, true
		}
	}
	return nil, false
}

func pathString(m map[string]any, keys ...string) string {
	cur := any(m)
	for _, key := range keys {
		mm, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = mm[key]
	}
	s, _ := cur.(string)
	return s
}

func stringList(items []any) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			// Step objects ({step, action, description}) flatten to text.
			if s := firstString(v, "description", "action", "text"); s != "" {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
