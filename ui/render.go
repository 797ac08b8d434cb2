package ui

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/charmbracelet/lipgloss"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"

	"convo/session"
)

var mdLinkRegex = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)

func (a *App) updateViewportContent(gotoBottom bool) {
	if !a.ready {
		return
	}
	if len(a.snap.Messages) == 0 {
		a.viewport.SetContent("No messages yet. Start chatting!")
		return
	}

	pending := make(map[string]bool, len(a.snap.PendingRefreshIDs))
	for _, id := range a.snap.PendingRefreshIDs {
		pending[id] = true
	}

	var content strings.Builder
	for _, msg := range a.snap.Messages {
		timestamp := DimStyle.Render(msg.Timestamp.Format("[15:04]"))

		var roleStyle = DimStyle
		var roleName string
		switch msg.Role {
		case session.RoleUser:
			roleStyle = UserStyle
			roleName = "You"
		case session.RoleAssistant:
			roleStyle = AssistantStyle
			roleName = "Assistant"
		default:
			roleName = "System"
		}

		content.WriteString(fmt.Sprintf("%s %s\n", timestamp, roleStyle.Render(roleName)))

		for _, call := range msg.ToolCalls {
			content.WriteString(a.renderToolCall(call, pending))
		}

		switch {
		case msg.Status == session.StatusErrored:
			body := msg.Content
			if body == "" {
				body = "(no response)"
			}
			content.WriteString(body + "\n")
			content.WriteString(ErrorStyle.Render("✗ failed") + "\n")
		case msg.Role == session.RoleAssistant && msg.Status == session.StatusComplete:
			content.WriteString(a.renderMarkdown(msg.Content) + "\n")
		case msg.Status == session.StatusStreaming || msg.Status == session.StatusPending:
			body := msg.Content
			if body == "" {
				body = a.spin.View() + " Waiting for response..."
			}
			content.WriteString(body + "\n")
		default:
			content.WriteString(msg.Content + "\n")
		}
		content.WriteString("\n")
	}

	a.viewport.SetContent(content.String())
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

// renderToolCall prints one tool invocation and its result. Results whose
// call id is awaiting a corrected value get a "still updating" marker so
// the user knows the number on screen may change.
func (a *App) renderToolCall(call session.ToolCall, pending map[string]bool) string {
	var b strings.Builder
	args, _ := json.Marshal(call.Arguments)
	b.WriteString(ToolStyle.Render(fmt.Sprintf("⚙ %s(%s)", call.Name, args)) + "\n")

	if call.Result == nil {
		b.WriteString(DimStyle.Render("  └ running...") + "\n")
		return b.String()
	}

	payload, _ := json.Marshal(call.Result.Payload)
	line := "  └ " + string(payload)
	if pending[call.ID] {
		line += " " + PendingStyle.Render("(still updating)")
	}
	b.WriteString(DimStyle.Render(line) + "\n")
	return b.String()
}

// renderMarkdown renders assistant prose with go-term-markdown. Link syntax
// is reduced to the bare URL first so terminal emulators handle detection.
func (a *App) renderMarkdown(content string) string {
	if content == "" {
		return ""
	}
	content = mdLinkRegex.ReplaceAllString(content, "$2")

	width := a.width - 4
	if width < 20 {
		width = 20
	}
	ext := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(ext)
	r := markdown.NewRenderer(width, 0)
	doc := p.Parse([]byte(content))
	rendered := gomarkdown.Render(doc, r)
	return strings.TrimRight(string(rendered), "\n")
}

func (a App) renderStatusBar() string {
	var left string
	switch {
	case a.flash != "":
		left = a.flash
	case a.snap.Err != nil:
		left = ErrorStyle.Render("Error: " + a.snap.Err.Error())
	case a.snap.IsLoading:
		left = a.spin.View() + " Thinking..."
	default:
		left = FormatFooter(
			"enter", "Send",
			"ctrl+r", "Retry",
			"ctrl+n", "New",
			"ctrl+t", "Threads",
			"ctrl+f", "Search",
			"ctrl+y", "Yank",
			"ctrl+c", "Quit",
		)
	}

	right := ""
	if a.snap.ThreadID != "" {
		right = DimStyle.Render(shortID(a.snap.ThreadID))
	}
	if n := len(a.snap.PendingRefreshIDs); n > 0 {
		right = PendingStyle.Render(fmt.Sprintf("%d updating ", n)) + right
	}

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return StatusStyle.Render(left + strings.Repeat(" ", gap) + right)
}

func (a App) renderThreadPicker() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Threads") + "\n\n")
	b.WriteString("/ " + a.filterInput.View() + "\n\n")

	if len(a.filteredThreads) == 0 {
		b.WriteString(DimStyle.Render("No threads found") + "\n")
	}

	nameWidth := a.width - 30
	if nameWidth < 16 {
		nameWidth = 16
	}
	for i, t := range a.filteredThreads {
		name := runewidth.Truncate(t.Name, nameWidth, "...")
		line := fmt.Sprintf("%s  %s  %d msgs",
			name,
			t.UpdatedAt.Format("2006-01-02 15:04"),
			t.MessageCount,
		)
		if i == a.selectedIdx {
			b.WriteString(SelectedStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	if a.confirmDelete != nil {
		name := runewidth.Truncate(a.confirmDelete.Name, nameWidth, "...")
		b.WriteString("\n" + ErrorStyle.Render(fmt.Sprintf("Delete %q? (y/n)", name)) + "\n")
		return b.String()
	}

	b.WriteString("\n" + FormatFooter("↑/↓", "Navigate", "enter", "Open", "ctrl+d", "Delete", "esc", "Close"))
	return b.String()
}

func (a App) renderMessageSearch() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Search Messages") + "\n\n")
	b.WriteString("/ " + a.searchInput.View() + "\n\n")

	switch {
	case strings.TrimSpace(a.searchInput.Value()) == "":
		b.WriteString(DimStyle.Render("Type to search across threads...") + "\n")
	case len(a.searchResults) == 0:
		b.WriteString(DimStyle.Render("No matches found") + "\n")
	}

	nameWidth := a.width / 4
	if nameWidth < 12 {
		nameWidth = 12
	}
	visible := a.height - 8
	if visible < 3 {
		visible = 3
	}
	start := 0
	if a.selectedSearchIdx >= visible {
		start = a.selectedSearchIdx - visible + 1
	}
	for i := start; i < len(a.searchResults) && i < start+visible; i++ {
		m := a.searchResults[i]
		roleStyle := UserStyle
		if m.Role == string(session.RoleAssistant) {
			roleStyle = AssistantStyle
		}
		line := fmt.Sprintf("%s %s  %s",
			roleStyle.Render(runewidth.Truncate(m.ThreadName, nameWidth, "...")),
			DimStyle.Render(m.Timestamp.Format("2006-01-02")),
			m.Preview,
		)
		if i == a.selectedSearchIdx {
			b.WriteString(SelectedStyle.Render("> ") + line + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	b.WriteString("\n" + FormatFooter("↑/↓", "Navigate", "enter", "Open thread", "esc", "Close"))
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
