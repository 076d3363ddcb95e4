package model

import (
	"time"
)

// Sender identifies who produced a chat message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// ContentKind tags the structured payload carried by a message.
type ContentKind string

const (
	KindText       ContentKind = "text"
	KindLesson     ContentKind = "lesson"
	KindSummary    ContentKind = "summary"
	KindFlashcards ContentKind = "flashcards"
	KindQuiz       ContentKind = "quiz"
	KindWorkflow   ContentKind = "workflow"
)

// Message is a single entry in the conversation transcript. Messages are
// append-only; the only mutation of the transcript is a full clear.
type Message struct {
	ID        string      `json:"id"`
	Sender    Sender      `json:"sender"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Kind      ContentKind `json:"kind,omitempty"`

	Lesson     *Lesson     `json:"lesson,omitempty"`
	Summary    []string    `json:"summary,omitempty"`
	Flashcards []Flashcard `json:"flashcards,omitempty"`
	Quiz       []QuizItem  `json:"quiz,omitempty"`
	Workflow   []string    `json:"workflow,omitempty"`
}

// QuizItem is one multiple-choice question in canonical form.
// Answer holds the full text of the correct option, not a letter or index.
type QuizItem struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// Flashcard is a single front/back review card.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Lesson holds generated lesson content derived from a distilled document.
type Lesson struct {
	LessonID         string   `json:"lesson_id"`
	Bullets          []string `json:"bullets"`
	Framework        string   `json:"framework"`
	ExplanationLevel string   `json:"explanation_level"`
}

// ExplanationLevel is the register selector sent to the backend.
type ExplanationLevel string

const (
	LevelFiveYearOld ExplanationLevel = "5_year_old"
	LevelIntern      ExplanationLevel = "intern"
	LevelSenior      ExplanationLevel = "senior"
)

// LevelForExperience maps the user-facing experience setting to the wire value.
func LevelForExperience(experience string) ExplanationLevel {
	switch experience {
	case "beginner":
		return LevelFiveYearOld
	case "intermediate":
		return LevelIntern
	default:
		return LevelSenior
	}
}

// ChatRequest is the body of a chat send call.
type ChatRequest struct {
	Message          string           `json:"message"`
	UserID           string           `json:"user_id"`
	ConversationID   string           `json:"conversation_id,omitempty"`
	ExplanationLevel ExplanationLevel `json:"explanation_level"`
	Framework        string           `json:"framework,omitempty"`
	LessonID         string           `json:"lesson_id,omitempty"`
	Context          string           `json:"context,omitempty"`
}

// DistillResult is the response of a document distillation call.
type DistillResult struct {
	LessonID string   `json:"lesson_id"`
	Actions  []string `json:"actions,omitempty"`
}

// ChatUploadResult is the response of uploading a document into a conversation.
type ChatUploadResult struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
}

// MasterySnapshot is the backend-computed proficiency view for one user.
// It is replaced wholesale on each fetch, never merged.
type MasterySnapshot struct {
	OverallScore      float64            `json:"overall_score"`
	TopicScores       map[string]float64 `json:"topic_scores"`
	SkillBreakdown    map[string]float64 `json:"skill_breakdown,omitempty"`
	RecommendedTopics []string           `json:"recommended_topics"`
}

// CareerAnswer is one Likert-scale rating (1-5) for an assessment question.
type CareerAnswer struct {
	QuestionID int `json:"question_id"`
	Rating     int `json:"rating"`
}

// CareerMatch is one entry in a career matching result.
type CareerMatch struct {
	Career      string  `json:"career"`
	Description string  `json:"description,omitempty"`
	MatchScore  float64 `json:"match_score"`
}

// RoadmapStep is one step of a generated career roadmap.
type RoadmapStep struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	Skills      []string `json:"skills,omitempty"`
}

// Roadmap is a generated learning path toward a target role.
type Roadmap struct {
	TargetRole string        `json:"target_role"`
	Steps      []RoadmapStep `json:"steps"`
}

// RouteResult is the intent-detection response of the agentic router.
type RouteResult struct {
	Intent      string   `json:"intent"`
	Confidence  float64  `json:"confidence"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// DiagnosticQuestion is one question of a diagnostic assessment.
type DiagnosticQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

// DiagnosticSession tracks an in-progress diagnostic assessment.
type DiagnosticSession struct {
	SessionID         string               `json:"session_id"`
	Questions         []DiagnosticQuestion `json:"questions"`
	EstimatedDuration string               `json:"estimated_duration,omitempty"`
	CurrentQuestion   int                  `json:"-"`
	Answers           []DiagnosticAnswer   `json:"-"`
}

// DiagnosticAnswer records the user's response to one diagnostic question.
type DiagnosticAnswer struct {
	QuestionIndex  int    `json:"question_index"`
	SelectedAnswer string `json:"selected_answer"`
	IsCorrect      bool   `json:"is_correct"`
}

// DiagnosticResults holds the backend analysis of a completed assessment.
type DiagnosticResults struct {
	SkillGaps        []string `json:"skill_gaps,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`
	NextSteps        []string `json:"next_steps,omitempty"`
	ImprovementScore float64  `json:"improvement_score,omitempty"`
}

// ChatConfig holds runtime chat parameters set via CLI flags.
type ChatConfig struct {
	BaseURL          string
	ExplanationLevel ExplanationLevel
	Framework        string
	Direct           bool // bypass the backend, talk to an OpenAI-compatible endpoint
	Lang             string
}
