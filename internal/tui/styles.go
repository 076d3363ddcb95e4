package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used across the chat interface.
type Styles struct {
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	Status         lipgloss.Style
	Error          lipgloss.Style
	Panel          lipgloss.Style
	PanelTitle     lipgloss.Style
	Option         lipgloss.Style
	OptionSelected lipgloss.Style
	Correct        lipgloss.Style
	Wrong          lipgloss.Style
	Help           lipgloss.Style
}

func defaultStyles() Styles {
	return Styles{
		UserLabel:      lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		AssistantLabel: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		SystemLabel:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		Status:         lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Error:          lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(1, 2),
		PanelTitle:     lipgloss.NewStyle().Bold(true).Underline(true),
		Option:         lipgloss.NewStyle(),
		OptionSelected: lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		Correct:        lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		Wrong:          lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Help:           lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true),
	}
}
