package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"convo/config"
	"convo/session"
	"convo/storage"
)

const statusBarHeight = 1

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		vpHeight := msg.Height - a.textarea.Height() - statusBarHeight
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !a.ready {
			a.viewport = viewport.New(msg.Width, vpHeight)
			a.ready = true
		} else {
			a.viewport.Width = msg.Width
			a.viewport.Height = vpHeight
		}
		a.textarea.SetWidth(msg.Width)
		a.updateViewportContent(true)
		return a, nil

	case snapshotMsg:
		a.snap = msg.snap
		a.updateViewportContent(true)
		return a, a.waitForSnapshot()

	case sendDoneMsg:
		switch {
		case msg.err == nil:
			return a, a.saveThreadCmd()
		case errors.Is(msg.err, session.ErrBusy):
			return a.setFlash("A response is already in flight")
		case errors.Is(msg.err, session.ErrEmptyMessage):
			return a, nil
		default:
			// Transport errors are already reflected in the snapshot.
			return a, nil
		}

	case threadsListMsg:
		if msg.err != nil {
			return a.setFlash("Failed to list threads: " + msg.err.Error())
		}
		a.showPicker = true
		a.threadList = msg.threads
		a.filteredThreads = msg.threads
		a.selectedIdx = 0
		a.filterInput.SetValue("")
		a.filterInput.Focus()
		a.textarea.Blur()
		return a, nil

	case threadOpenedMsg:
		if msg.err != nil {
			return a.setFlash("Failed to open thread: " + msg.err.Error())
		}
		a.ctrl.SwitchThread(msg.threadID, msg.history)
		if err := a.store.SaveCurrentThreadID(msg.threadID); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[ui] save current thread marker: %v", err)
		}
		a.showPicker = false
		a.textarea.Focus()
		return a, nil

	case threadSavedMsg:
		if msg.err != nil {
			return a.setFlash("Failed to save thread: " + msg.err.Error())
		}
		return a, nil

	case threadDeletedMsg:
		if msg.err != nil {
			return a.setFlash("Failed to delete thread: " + msg.err.Error())
		}
		if msg.id == a.snap.ThreadID {
			a.ctrl.StartNewThread()
			if err := a.store.SaveCurrentThreadID(""); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[ui] clear current thread marker: %v", err)
			}
		}
		return a, a.loadThreadsCmd()

	case searchResultsMsg:
		if msg.err != nil {
			return a.setFlash("Search failed: " + msg.err.Error())
		}
		if msg.query != a.searchInput.Value() {
			return a, nil // a newer keystroke is already in flight
		}
		a.searchResults = msg.matches
		if a.selectedSearchIdx >= len(a.searchResults) {
			a.selectedSearchIdx = 0
		}
		return a, nil

	case flashClearMsg:
		a.flash = ""
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		if a.snap.IsLoading {
			a.updateViewportContent(false)
		}
		return a, cmd

	case tea.KeyMsg:
		if a.showSearch {
			return a.updateMessageSearch(msg)
		}
		if a.showPicker {
			return a.updateThreadPicker(msg)
		}
		switch msg.String() {
		case "ctrl+c", "esc":
			return a, tea.Quit
		case "enter":
			content := strings.TrimSpace(a.textarea.Value())
			if content == "" {
				return a, nil
			}
			a.textarea.Reset()
			return a, a.sendCmd(content)
		case "ctrl+r":
			return a, a.retryCmd()
		case "ctrl+n":
			a.ctrl.StartNewThread()
			if err := a.store.SaveCurrentThreadID(""); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[ui] clear current thread marker: %v", err)
			}
			return a.setFlash("Started a new thread")
		case "ctrl+t":
			return a, a.loadThreadsCmd()
		case "ctrl+f":
			if a.index == nil {
				return a.setFlash("Search index unavailable")
			}
			a.showSearch = true
			a.searchResults = nil
			a.selectedSearchIdx = 0
			a.searchInput.SetValue("")
			a.searchInput.Focus()
			a.textarea.Blur()
			return a, nil
		case "ctrl+l":
			a.ctrl.ClearMessages()
			return a.setFlash("Cleared messages")
		case "ctrl+y":
			return a.yankLastReply()
		}
	}

	var taCmd, vpCmd tea.Cmd
	a.textarea, taCmd = a.textarea.Update(msg)
	a.viewport, vpCmd = a.viewport.Update(msg)
	cmds = append(cmds, taCmd, vpCmd)
	return a, tea.Batch(cmds...)
}

func (a App) updateThreadPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.confirmDelete != nil {
		switch msg.String() {
		case "y", "enter":
			id := a.confirmDelete.ID
			a.confirmDelete = nil
			return a, a.deleteThreadCmd(id)
		case "n", "esc":
			a.confirmDelete = nil
			return a, nil
		}
		return a, nil
	}

	switch msg.String() {
	case "ctrl+d":
		if a.selectedIdx >= 0 && a.selectedIdx < len(a.filteredThreads) {
			meta := a.filteredThreads[a.selectedIdx]
			a.confirmDelete = &meta
		}
		return a, nil
	case "esc", "ctrl+t":
		a.showPicker = false
		a.filterInput.Blur()
		a.textarea.Focus()
		return a, nil
	case "up", "ctrl+p":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}
		return a, nil
	case "down", "ctrl+n":
		if a.selectedIdx < len(a.filteredThreads)-1 {
			a.selectedIdx++
		}
		return a, nil
	case "enter":
		if a.selectedIdx >= len(a.filteredThreads) {
			return a, nil
		}
		id := a.filteredThreads[a.selectedIdx].ID
		return a, a.openThreadCmd(id)
	}

	var cmd tea.Cmd
	a.filterInput, cmd = a.filterInput.Update(msg)

	filterValue := a.filterInput.Value()
	if filterValue == "" {
		a.filteredThreads = a.threadList
	} else {
		targets := make([]string, len(a.threadList))
		for i, t := range a.threadList {
			targets[i] = t.Name
		}

		matches := fuzzy.Find(filterValue, targets)
		a.filteredThreads = make([]storage.ThreadMetadata, len(matches))
		for i, match := range matches {
			a.filteredThreads[i] = a.threadList[match.Index]
		}
	}
	if a.selectedIdx >= len(a.filteredThreads) && len(a.filteredThreads) > 0 {
		a.selectedIdx = len(a.filteredThreads) - 1
	}
	return a, cmd
}

func (a App) updateMessageSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+f":
		a.showSearch = false
		a.searchInput.Blur()
		a.textarea.Focus()
		return a, nil
	case "up", "ctrl+p":
		if a.selectedSearchIdx > 0 {
			a.selectedSearchIdx--
		}
		return a, nil
	case "down", "ctrl+n":
		if a.selectedSearchIdx < len(a.searchResults)-1 {
			a.selectedSearchIdx++
		}
		return a, nil
	case "enter":
		if a.selectedSearchIdx >= len(a.searchResults) {
			return a, nil
		}
		match := a.searchResults[a.selectedSearchIdx]
		a.showSearch = false
		a.searchInput.Blur()
		a.textarea.Focus()
		return a, a.openThreadCmd(match.ThreadID)
	}

	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)
	return a, tea.Batch(cmd, a.searchCmd(a.searchInput.Value()))
}

func (a App) yankLastReply() (tea.Model, tea.Cmd) {
	for i := len(a.snap.Messages) - 1; i >= 0; i-- {
		m := a.snap.Messages[i]
		if m.Role == session.RoleAssistant && m.Status == session.StatusComplete {
			if err := clipboard.WriteAll(m.Content); err != nil {
				return a.setFlash("Clipboard unavailable: " + err.Error())
			}
			return a.setFlash("Copied last reply")
		}
	}
	return a.setFlash("No completed reply to copy")
}

func (a App) setFlash(text string) (tea.Model, tea.Cmd) {
	a.flash = text
	return a, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return flashClearMsg{}
	})
}

func (a App) sendCmd(content string) tea.Cmd {
	ctrl := a.ctrl
	return func() tea.Msg {
		// Blocks until the stream reaches a terminal state; snapshots
		// arrive through the subscription in the meantime.
		return sendDoneMsg{err: ctrl.SendMessage(context.Background(), content)}
	}
}

func (a App) retryCmd() tea.Cmd {
	ctrl := a.ctrl
	return func() tea.Msg {
		return sendDoneMsg{err: ctrl.RetryLastMessage(context.Background())}
	}
}

func (a App) loadThreadsCmd() tea.Cmd {
	store := a.store
	return func() tea.Msg {
		threads, err := store.List()
		return threadsListMsg{threads: threads, err: err}
	}
}

func (a App) openThreadCmd(id string) tea.Cmd {
	store := a.store
	return func() tea.Msg {
		thread, err := store.Load(id)
		if err != nil {
			return threadOpenedMsg{err: err}
		}
		return threadOpenedMsg{
			threadID: thread.ID,
			history:  storage.ToSessionMessages(thread.Messages),
		}
	}
}

// saveThreadCmd persists the current thread after each completed exchange
// and refreshes the search index.
func (a App) saveThreadCmd() tea.Cmd {
	store, index := a.store, a.index
	snap := a.ctrl.Snapshot()
	return func() tea.Msg {
		if snap.ThreadID == "" || len(snap.Messages) == 0 {
			return threadSavedMsg{}
		}
		thread := &storage.Thread{
			ID:       snap.ThreadID,
			Name:     threadName(snap.Messages),
			Messages: storage.FromSessionMessages(snap.Messages),
		}
		if prev, err := store.Load(snap.ThreadID); err == nil {
			thread.CreatedAt = prev.CreatedAt
			thread.Provider = prev.Provider
			thread.Model = prev.Model
		}
		if err := store.Save(thread); err != nil {
			return threadSavedMsg{err: err}
		}
		if err := store.SaveCurrentThreadID(thread.ID); err != nil {
			return threadSavedMsg{err: err}
		}
		if index != nil {
			if err := index.IndexThread(thread); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[ui] index thread %s: %v", thread.ID, err)
			}
		}
		return threadSavedMsg{}
	}
}

// deleteThreadCmd removes a thread from disk and drops its rows from the
// search index.
func (a App) deleteThreadCmd(id string) tea.Cmd {
	store, index := a.store, a.index
	return func() tea.Msg {
		if err := store.Delete(id); err != nil {
			return threadDeletedMsg{id: id, err: err}
		}
		if index != nil {
			if err := index.RemoveThread(id); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[ui] unindex thread %s: %v", id, err)
			}
		}
		return threadDeletedMsg{id: id}
	}
}

func (a App) searchCmd(query string) tea.Cmd {
	index := a.index
	return func() tea.Msg {
		if index == nil || strings.TrimSpace(query) == "" {
			return searchResultsMsg{query: query}
		}
		matches, err := index.Search(query)
		return searchResultsMsg{query: query, matches: matches, err: err}
	}
}

// threadName derives a display name from the first user message.
func threadName(msgs []session.ChatMessage) string {
	for _, m := range msgs {
		if m.Role == session.RoleUser {
			name := strings.TrimSpace(m.Content)
			if line, _, found := strings.Cut(name, "\n"); found {
				name = line
			}
			return runewidth.Truncate(name, 48, "")
		}
	}
	return "New thread"
}
