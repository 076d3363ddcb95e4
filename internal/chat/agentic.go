package chat

import (
	"context"
	"fmt"
	"strings"

	"traintty/internal/classify"
	"traintty/internal/model"
)

// Route runs backend intent detection over free text without touching the
// transcript. Callers dispatch on the returned intent: "summary" and
// "diagnostic" launch their dedicated flows, anything else falls through to
// plain chat.
func (o *Orchestrator) Route(ctx context.Context, text string) (*model.RouteResult, error) {
	return o.api.RouteMessage(ctx, text, o.LessonID(), o.session.UserID())
}

// StartDiagnostic begins a diagnostic assessment for the current lesson.
func (o *Orchestrator) StartDiagnostic(ctx context.Context) (*model.DiagnosticSession, error) {
	if !o.HasDocument() {
		return nil, fmt.Errorf("upload a document first to run a diagnostic")
	}
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()

	sess, err := o.api.StartDiagnostic(ctx, o.LessonID(), o.session.UserID(), "", 0)
	if err != nil {
		o.appendFailure(err)
		return nil, err
	}
	if len(sess.Questions) == 0 {
		o.appendText(model.SenderSystem, "The diagnostic couldn't be prepared for this document.")
		return nil, fmt.Errorf("diagnostic session has no questions")
	}
	return sess, nil
}

// AnswerDiagnostic records one answer locally and reports correctness.
// Comparison matches the quiz player: trimmed, case-insensitive option text.
func AnswerDiagnostic(sess *model.DiagnosticSession, questionIndex int, selected string) bool {
	correct := classify.EqualAnswer(selected, sess.Questions[questionIndex].CorrectAnswer)
	sess.Answers = append(sess.Answers, model.DiagnosticAnswer{
		QuestionIndex:  questionIndex,
		SelectedAnswer: selected,
		IsCorrect:      correct,
	})
	return correct
}

// FinishDiagnostic submits the collected answers and appends the analysis.
func (o *Orchestrator) FinishDiagnostic(ctx context.Context, sess *model.DiagnosticSession) (model.Message, error) {
	if err := o.begin(); err != nil {
		return model.Message{}, err
	}
	defer o.end()

	results, err := o.api.SubmitDiagnosticResults(ctx, sess, o.LessonID(), o.session.UserID())
	if err != nil {
		return o.appendFailure(err), nil
	}

	correct := 0
	for _, a := range sess.Answers {
		if a.IsCorrect {
			correct++
		}
	}

	var sb strings.Builder
	sb.WriteString("## Diagnostic Results\n\n")
	fmt.Fprintf(&sb, "You answered %d/%d correctly.\n", correct, len(sess.Questions))
	if results.ImprovementScore != 0 {
		fmt.Fprintf(&sb, "\n**Improvement score:** %.0f%%\n", results.ImprovementScore*100)
	}
	if len(results.SkillGaps) > 0 {
		sb.WriteString("\n### Skill Gaps:\n")
		for _, g := range results.SkillGaps {
			sb.WriteString("- " + g + "\n")
		}
	}
	if len(results.Recommendations) > 0 {
		sb.WriteString("\n### Recommendations:\n")
		for _, r := range results.Recommendations {
			sb.WriteString("- " + r + "\n")
		}
	}
	if len(results.NextSteps) > 0 {
		sb.WriteString("\n### Next Steps:\n")
		for _, s := range results.NextSteps {
			sb.WriteString("- " + s + "\n")
		}
	}
	return o.appendText(model.SenderAssistant, strings.TrimRight(sb.String(), "\n")), nil
}
