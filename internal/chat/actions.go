package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"traintty/internal/classify"
	"traintty/internal/model"
)

// Action is one of the enumerated quick actions. Dispatch goes through the
// actions table; there is no string-matching on free text.
type Action string

const (
	ActionSummary    Action = "summary"
	ActionLesson     Action = "lesson"
	ActionQuiz       Action = "quiz"
	ActionFlashcards Action = "flashcards"
	ActionWorkflow   Action = "workflow"
	ActionDiagnostic Action = "diagnostic"
	ActionMastery    Action = "mastery"
)

type actionSpec struct {
	// Label is the user-visible transcript entry for the pressed action.
	Label string
	// Prompt explicitly requests real content so the backend skips its
	// canned samples.
	Prompt string
	Kind   model.ContentKind
	// NeedsDocument rejects the action before any document was uploaded.
	NeedsDocument bool
}

var actions = map[Action]actionSpec{
	ActionSummary: {
		Label:         "Please provide a comprehensive summary of the uploaded document",
		Prompt:        "Please create an actual detailed summary of the uploaded document. Format your response as a structured summary with key points in bullet format. Do not use placeholder or sample content.",
		Kind:          model.KindSummary,
		NeedsDocument: true,
	},
	ActionLesson: {
		Label:         "Create a structured lesson from the PDF content",
		Prompt:        "Please create an actual comprehensive lesson from the uploaded document. Include key learning objectives and main concepts in a structured format. Do not use placeholder or sample content.",
		Kind:          model.KindLesson,
		NeedsDocument: true,
	},
	ActionQuiz: {
		Label:         "Generate quiz questions from the PDF content",
		Prompt:        "Please generate actual quiz questions based on the uploaded document content. I need exactly 10 real multiple choice questions with 4 options (A, B, C, D) and the correct answer. Do not use sample, placeholder, or mock questions. Generate actual questions from the document content.",
		Kind:          model.KindQuiz,
		NeedsDocument: true,
	},
	ActionFlashcards: {
		Label:         "Create flashcards from the PDF content",
		Prompt:        "Please create actual flashcards from the uploaded document content. I need exactly 12 real flashcards with specific questions on the front and detailed answers on the back. Do not use sample, placeholder, or mock flashcards. Generate actual flashcards from the document content.",
		Kind:          model.KindFlashcards,
		NeedsDocument: true,
	},
	ActionWorkflow: {
		Label:         "Create a workflow diagram from the PDF content",
		Prompt:        "Please create an actual step-by-step workflow based on the content in the uploaded document. Present it as a real sequence of steps from the document. Do not use sample, placeholder, or mock steps. Generate actual workflow from the document content.",
		Kind:          model.KindWorkflow,
		NeedsDocument: true,
	},
	ActionDiagnostic: {
		Label:         "I'd like to take a diagnostic test to assess my understanding",
		NeedsDocument: true,
	},
	ActionMastery: {
		Label: "Show me my current mastery levels and progress",
	},
}

// retryPrompts are the second-attempt variants sent after placeholder
// content is detected.
var retryPrompts = map[model.ContentKind]string{
	model.KindQuiz:       "Give me the actual quiz questions from the document content. I don't want sample or placeholder questions. Generate real quiz questions based on the actual content of the uploaded document.",
	model.KindFlashcards: "Give me actual flashcards from the document content. I don't want sample or placeholder flashcards. Generate real flashcards based on the actual content of the uploaded document.",
	model.KindWorkflow:   "Give me the actual workflow from the document content. I don't want sample or placeholder steps. Generate real workflow based on the actual content of the uploaded document.",
}

// Actions lists the available quick actions in stable order.
func Actions() []Action {
	out := make([]Action, 0, len(actions))
	for a := range actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// QuickAction runs one enumerated action end to end.
func (o *Orchestrator) QuickAction(ctx context.Context, action Action) (model.Message, error) {
	spec, ok := actions[action]
	if !ok {
		return model.Message{}, fmt.Errorf("unknown action %q", action)
	}
	if spec.NeedsDocument && !o.HasDocument() {
		return model.Message{}, fmt.Errorf("upload a document first to use the %s action", action)
	}
	if err := o.begin(); err != nil {
		return model.Message{}, err
	}
	defer o.end()

	o.appendText(model.SenderUser, spec.Label)

	switch action {
	case ActionMastery:
		return o.masteryMessage(ctx), nil
	case ActionDiagnostic:
		// The diagnostic flow is interactive; the caller drives it through
		// StartDiagnostic and the session returned here is announced only.
		return o.appendText(model.SenderAssistant,
			"Starting a diagnostic assessment. Answer each question and I'll analyze your skill gaps at the end."), nil
	}

	if o.cfg.Direct && o.llm != nil {
		payload, err := o.llm.Generate(ctx, spec.Kind, spec.Prompt, "")
		if err != nil {
			return o.appendFailure(err), nil
		}
		result := classify.Classify(payload, "", spec.Kind)
		return o.append(messageFromResult(result)), nil
	}

	payload, err := o.generate(ctx, spec.Kind)
	if err != nil {
		return o.appendFailure(err), nil
	}
	result := classify.Classify(payload, "", spec.Kind)
	if result.Placeholder {
		result, err = o.retryPlaceholder(ctx, result)
		if err != nil {
			return o.appendFailure(err), nil
		}
	}
	return o.append(messageFromResult(result)), nil
}

// generate calls the content endpoint matching the kind. Lesson generation
// has no dedicated agent endpoint and goes through plain chat.
func (o *Orchestrator) generate(ctx context.Context, kind model.ContentKind) (map[string]any, error) {
	lessonID := o.LessonID()
	userID := o.session.UserID()
	switch kind {
	case model.KindQuiz:
		return o.api.GenerateQuiz(ctx, lessonID, userID, "", 10)
	case model.KindFlashcards:
		return o.api.GenerateFlashcards(ctx, lessonID, userID, "", 12)
	case model.KindWorkflow:
		return o.api.GenerateWorkflow(ctx, lessonID, userID, "")
	case model.KindSummary:
		return o.api.GenerateSummary(ctx, lessonID, userID, "")
	default:
		return o.send(ctx, actions[ActionLesson].Prompt)
	}
}

// masteryMessage fetches the mastery snapshot and renders it as markdown.
func (o *Orchestrator) masteryMessage(ctx context.Context) model.Message {
	snap, err := o.api.Mastery(ctx, o.session.UserID(), "")
	if err != nil {
		return o.appendFailure(err)
	}
	return o.appendText(model.SenderAssistant, FormatMastery(snap))
}

// FormatMastery renders a mastery snapshot as a markdown report.
func FormatMastery(snap *model.MasterySnapshot) string {
	var sb strings.Builder
	sb.WriteString("## Your Learning Progress\n\n")
	fmt.Fprintf(&sb, "**Overall Mastery:** %d%%\n\n", int(snap.OverallScore*100+0.5))

	if len(snap.TopicScores) > 0 {
		sb.WriteString("### Topic Scores:\n")
		topics := make([]string, 0, len(snap.TopicScores))
		for t := range snap.TopicScores {
			topics = append(topics, t)
		}
		sort.Strings(topics)
		for _, t := range topics {
			fmt.Fprintf(&sb, "- **%s:** %d%%\n", t, int(snap.TopicScores[t]*100+0.5))
		}
		sb.WriteString("\n")
	}

	if len(snap.RecommendedTopics) > 0 {
		sb.WriteString("### Recommended Focus Areas:\n")
		for _, t := range snap.RecommendedTopics {
			sb.WriteString("- " + t + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
