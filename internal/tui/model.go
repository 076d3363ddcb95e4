// Package tui is the interactive terminal interface: a chat transcript with
// markdown rendering, quick actions, and the quiz, flashcard and diagnostic
// players as modal overlays.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"traintty/internal/chat"
	"traintty/internal/i18n"
	"traintty/internal/model"
)

// viewMode selects which component owns the keyboard.
type viewMode int

const (
	modeChat viewMode = iota
	modeQuiz
	modeFlashcards
	modeDiagnostic
)

// Model is the bubbletea model for the chat interface.
type Model struct {
	orch *chat.Orchestrator
	ctx  context.Context

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	styles   Styles

	mode  viewMode
	quiz  *QuizPlayer
	cards *FlashcardPlayer

	diag         *model.DiagnosticSession
	diagIndex    int
	diagFeedback string

	loading bool
	status  string
	width   int
	height  int
	ready   bool
}

type responseMsg model.Message
type diagStartedMsg *model.DiagnosticSession
type actionErrMsg struct{ err error }

// New builds the chat model. ctx carries the localizer for user-facing
// strings.
func New(ctx context.Context, orch *chat.Orchestrator) Model {
	ta := textarea.New()
	ta.Placeholder = i18n.T(ctx, "ChatPlaceholder")
	ta.Focus()
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		orch:     orch,
		ctx:      ctx,
		textarea: ta,
		spinner:  sp,
		styles:   defaultStyles(),
	}
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg), nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case responseMsg:
		m.loading = false
		m.status = ""
		m.openWidgetFor(model.Message(msg))
		m.refreshTranscript()
		return m, nil

	case diagStartedMsg:
		m.loading = false
		m.status = ""
		m.diag = msg
		m.diagIndex = 0
		m.diagFeedback = ""
		m.mode = modeDiagnostic
		m.refreshTranscript()
		return m, nil

	case actionErrMsg:
		m.loading = false
		m.status = msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeQuiz:
			return m.updateQuiz(msg)
		case modeFlashcards:
			return m.updateFlashcards(msg)
		case modeDiagnostic:
			return m.updateDiagnostic(msg)
		default:
			return m.updateChat(msg)
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) resize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height

	inputHeight := m.textarea.Height() + 2
	if !m.ready {
		m.viewport = viewport.New(msg.Width, msg.Height-inputHeight)
		if r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(msg.Width-4),
		); err == nil {
			m.renderer = r
		}
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - inputHeight
	}
	m.textarea.SetWidth(msg.Width)
	m.refreshTranscript()
	return m
}

// openWidgetFor switches to an interactive player when the reply carries
// playable content.
func (m *Model) openWidgetFor(msg model.Message) {
	switch msg.Kind {
	case model.KindQuiz:
		if len(msg.Quiz) > 0 {
			m.quiz = NewQuizPlayer(msg.Quiz)
			m.mode = modeQuiz
		}
	case model.KindFlashcards:
		if len(msg.Flashcards) > 0 {
			m.cards = NewFlashcardPlayer(msg.Flashcards)
			m.mode = modeFlashcards
		}
	}
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "enter":
		text := strings.TrimSpace(m.textarea.Value())
		if text == "" || m.loading {
			return m, nil
		}
		m.textarea.Reset()
		if strings.HasPrefix(text, "/") {
			return m.runCommand(text)
		}
		m.loading = true
		m.status = i18n.T(m.ctx, "Thinking")
		return m, tea.Batch(m.spinner.Tick, m.sendCmd(text))
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) updateQuiz(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "ctrl+c":
		return m, tea.Quit
	case "q", "esc":
		m.mode = modeChat
		return m, nil
	case "r":
		m.quiz.Restart()
		return m, nil
	case "n", "enter":
		m.quiz.Next()
		return m, nil
	default:
		if n, err := strconv.Atoi(key); err == nil {
			q, _ := m.quiz.Current()
			if n >= 1 && n <= len(q.Options) {
				m.quiz.Select(n - 1)
			}
		}
		return m, nil
	}
}

func (m Model) updateFlashcards(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q", "esc":
		m.mode = modeChat
		return m, nil
	case " ", "enter":
		m.cards.Flip()
		return m, nil
	case "n", "right":
		m.cards.Next()
		return m, nil
	case "p", "left":
		m.cards.Prev()
		return m, nil
	}
	return m, nil
}

func (m Model) updateDiagnostic(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "ctrl+c":
		return m, tea.Quit
	case "q", "esc":
		m.mode = modeChat
		m.diag = nil
		return m, nil
	case "n", "enter":
		if m.diagFeedback == "" {
			return m, nil
		}
		m.diagFeedback = ""
		if m.diagIndex == len(m.diag.Questions)-1 {
			m.mode = modeChat
			m.loading = true
			m.status = i18n.T(m.ctx, "Thinking")
			diag := m.diag
			m.diag = nil
			return m, tea.Batch(m.spinner.Tick, m.finishDiagnosticCmd(diag))
		}
		m.diagIndex++
		return m, nil
	default:
		if m.diagFeedback != "" {
			return m, nil
		}
		if n, err := strconv.Atoi(key); err == nil {
			q := m.diag.Questions[m.diagIndex]
			if n >= 1 && n <= len(q.Options) {
				selected := q.Options[n-1]
				if chat.AnswerDiagnostic(m.diag, m.diagIndex, selected) {
					m.diagFeedback = i18n.T(m.ctx, "CorrectAnswer")
				} else {
					m.diagFeedback = i18n.Td(m.ctx, "WrongAnswer", map[string]any{"Answer": q.CorrectAnswer})
				}
			}
		}
		return m, nil
	}
}

func (m Model) runCommand(text string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(text)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return m, tea.Quit

	case "/clear":
		if err := m.orch.Clear(); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = i18n.T(m.ctx, "ChatCleared")
		m.refreshTranscript()
		return m, nil

	case "/upload":
		if len(args) == 0 {
			m.status = "usage: /upload <file.pdf>"
			return m, nil
		}
		m.loading = true
		m.status = i18n.T(m.ctx, "Uploading")
		return m, tea.Batch(m.spinner.Tick, m.uploadCmd(strings.Join(args, " ")))

	case "/summary", "/lesson", "/quiz", "/flashcards", "/workflow", "/mastery":
		m.loading = true
		m.status = i18n.T(m.ctx, "Thinking")
		return m, tea.Batch(m.spinner.Tick, m.quickActionCmd(chat.Action(cmd[1:])))

	case "/diagnostic":
		m.loading = true
		m.status = i18n.T(m.ctx, "Thinking")
		return m, tea.Batch(m.spinner.Tick, m.startDiagnosticCmd())

	default:
		m.status = fmt.Sprintf("unknown command %s", cmd)
		return m, nil
	}
}

func (m Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		msg, err := m.orch.SendMessage(m.ctx, text)
		if err != nil {
			return actionErrMsg{err}
		}
		return responseMsg(msg)
	}
}

func (m Model) quickActionCmd(action chat.Action) tea.Cmd {
	return func() tea.Msg {
		msg, err := m.orch.QuickAction(m.ctx, action)
		if err != nil {
			return actionErrMsg{err}
		}
		return responseMsg(msg)
	}
}

func (m Model) uploadCmd(path string) tea.Cmd {
	return func() tea.Msg {
		msg, err := m.orch.UploadDocument(m.ctx, path)
		if err != nil {
			return actionErrMsg{err}
		}
		return responseMsg(msg)
	}
}

func (m Model) startDiagnosticCmd() tea.Cmd {
	return func() tea.Msg {
		sess, err := m.orch.StartDiagnostic(m.ctx)
		if err != nil {
			return actionErrMsg{err}
		}
		return diagStartedMsg(sess)
	}
}

func (m Model) finishDiagnosticCmd(sess *model.DiagnosticSession) tea.Cmd {
	return func() tea.Msg {
		msg, err := m.orch.FinishDiagnostic(m.ctx, sess)
		if err != nil {
			return actionErrMsg{err}
		}
		return responseMsg(msg)
	}
}
