package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"traintty/internal/i18n"
	"traintty/internal/model"
)

func (m Model) View() string {
	if !m.ready {
		return i18n.T(m.ctx, "Thinking")
	}

	switch m.mode {
	case modeQuiz:
		return m.quizView()
	case modeFlashcards:
		return m.flashcardView()
	case modeDiagnostic:
		return m.diagnosticView()
	}

	var status string
	if m.loading {
		status = m.spinner.View() + " " + m.styles.Status.Render(m.status)
	} else if m.status != "" {
		status = m.styles.Status.Render(m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		status,
		m.textarea.View(),
	)
}

// refreshTranscript re-renders the whole transcript into the viewport and
// scrolls to the bottom.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	msgs := m.orch.Messages()
	if len(msgs) == 0 {
		m.viewport.SetContent(i18n.T(m.ctx, "ChatWelcome"))
		return
	}

	var sb strings.Builder
	for _, msg := range msgs {
		sb.WriteString(m.renderMessage(msg))
		sb.WriteString("\n")
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m *Model) renderMessage(msg model.Message) string {
	var label string
	switch msg.Sender {
	case model.SenderUser:
		label = m.styles.UserLabel.Render("You")
	case model.SenderAssistant:
		label = m.styles.AssistantLabel.Render("Tutor")
	default:
		label = m.styles.SystemLabel.Render("System")
	}

	content := msg.Content
	if m.renderer != nil && msg.Sender != model.SenderUser {
		if rendered, err := m.renderer.Render(content); err == nil {
			content = strings.TrimRight(rendered, "\n")
		}
	}
	return label + "\n" + content + "\n"
}

func (m Model) quizView() string {
	if m.quiz.Completed() {
		correct, total, percent := m.quiz.Score()
		body := m.styles.PanelTitle.Render(i18n.Td(m.ctx, "QuizCompleted", map[string]any{
			"Correct": correct, "Total": total, "Percent": percent,
		})) + "\n\n" + m.styles.Help.Render(i18n.T(m.ctx, "QuizRestart")+" · q: close")
		return m.styles.Panel.Render(body)
	}

	q, idx := m.quiz.Current()
	var sb strings.Builder
	sb.WriteString(m.styles.PanelTitle.Render(i18n.Td(m.ctx, "QuizProgress", map[string]any{
		"Current": idx + 1, "Total": m.quiz.Total(),
	})))
	sb.WriteString("\n\n" + q.Question + "\n\n")

	for i, opt := range q.Options {
		line := fmt.Sprintf("%d. %s", i+1, opt)
		style := m.styles.Option
		if m.quiz.Answered() && i == m.quiz.Selected() {
			if m.quiz.CurrentCorrect() {
				style = m.styles.Correct
			} else {
				style = m.styles.Wrong
			}
		}
		sb.WriteString(style.Render(line) + "\n")
	}

	if m.quiz.Answered() {
		sb.WriteString("\n")
		if m.quiz.CurrentCorrect() {
			sb.WriteString(m.styles.Correct.Render(i18n.T(m.ctx, "CorrectAnswer")))
		} else {
			sb.WriteString(m.styles.Wrong.Render(i18n.Td(m.ctx, "WrongAnswer", map[string]any{"Answer": q.Answer})))
		}
		sb.WriteString("\n" + m.styles.Help.Render("n: next question"))
	} else {
		sb.WriteString("\n" + m.styles.Help.Render("1-4: answer · q: close"))
	}
	return m.styles.Panel.Render(sb.String())
}

func (m Model) flashcardView() string {
	card, back := m.cards.Current()
	face, faceLabel := card.Front, "Front"
	if back {
		face, faceLabel = card.Back, "Back"
	}

	var sb strings.Builder
	sb.WriteString(m.styles.PanelTitle.Render(i18n.Td(m.ctx, "FlashcardPosition", map[string]any{
		"Current": m.cards.Index() + 1, "Total": m.cards.Total(),
	})))
	sb.WriteString("\n\n" + m.styles.Status.Render(faceLabel) + "\n\n")
	sb.WriteString(face + "\n\n")
	sb.WriteString(m.styles.Help.Render(i18n.T(m.ctx, "FlashcardHint")))
	return m.styles.Panel.Render(sb.String())
}

func (m Model) diagnosticView() string {
	q := m.diag.Questions[m.diagIndex]
	var sb strings.Builder
	sb.WriteString(m.styles.PanelTitle.Render(i18n.Td(m.ctx, "QuizProgress", map[string]any{
		"Current": m.diagIndex + 1, "Total": len(m.diag.Questions),
	})))
	sb.WriteString("\n\n" + q.Question + "\n\n")
	for i, opt := range q.Options {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, opt))
	}
	if m.diagFeedback != "" {
		sb.WriteString("\n" + m.diagFeedback + "\n")
		sb.WriteString(m.styles.Help.Render("n: continue"))
	} else {
		sb.WriteString("\n" + m.styles.Help.Render("1-4: answer · q: abandon"))
	}
	return m.styles.Panel.Render(sb.String())
}
