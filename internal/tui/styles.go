package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/tada/internal/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	deferStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("135"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	doneStyle     = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

var statusSymbols = map[model.Status]string{
	model.StatusNew:       "☐",
	model.StatusStarted:   "▶",
	model.StatusDeferred:  "⏸",
	model.StatusCompleted: "☑",
}

func statusStyle(s model.Status) lipgloss.Style {
	switch s {
	case model.StatusStarted:
		return pendingStyle
	case model.StatusDeferred:
		return deferStyle
	case model.StatusCompleted:
		return successStyle
	}
	return mutedStyle
}

func statusMark(s model.Status) string {
	return statusStyle(s).Render(statusSymbols[s])
}
