package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	dimColor     = lipgloss.Color("7")
	accentColor  = lipgloss.Color("12")
	successColor = lipgloss.Color("10")
	warningColor = lipgloss.Color("11")
	dangerColor  = lipgloss.Color("9")

	// User message style
	UserStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	// Assistant message style
	AssistantStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	// System/timestamp style
	DimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	// Tool invocation lines
	ToolStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// Marker for tool results awaiting a corrected value
	PendingStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Italic(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(dangerColor).
			Bold(true)

	TitleStyle = lipgloss.NewStyle().
			Bold(true)

	StatusStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)
)

// FormatFooter formats a footer string with alternating keys and
// descriptions. Keys remain default color, descriptions are rendered in
// accent blue+bold.
// Usage: FormatFooter("enter", "Send", "ctrl+t", "Threads")
func FormatFooter(parts ...string) string {
	descStyle := lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	var result []string
	for i := 0; i+1 < len(parts); i += 2 {
		result = append(result, parts[i]+" "+descStyle.Render(parts[i+1]))
	}
	return strings.Join(result, "  ")
}
