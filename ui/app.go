// Package ui is the terminal front end: a bubbletea program that renders
// session snapshots and translates key presses into controller calls.
//
// The controller publishes snapshots synchronously from its subscriber
// callback, so App never touches the controller from that callback. New
// forwards each snapshot into a channel and the bubbletea loop drains it
// with a recurring command.
package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"convo/session"
	"convo/storage"
)

type App struct {
	ctrl  *session.Controller
	store *storage.ThreadStorage
	index *storage.SearchIndex

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spin     spinner.Model

	// Window state
	width  int
	height int
	ready  bool

	// Latest snapshot from the controller
	snap   session.Snapshot
	snapCh chan session.Snapshot

	// Thread picker state
	showPicker      bool
	threadList      []storage.ThreadMetadata
	filteredThreads []storage.ThreadMetadata
	filterInput     textinput.Model
	selectedIdx     int
	confirmDelete   *storage.ThreadMetadata

	// Message search state
	showSearch        bool
	searchInput       textinput.Model
	searchResults     []storage.MessageMatch
	selectedSearchIdx int

	// Transient status line message
	flash string
}

func New(ctrl *session.Controller, store *storage.ThreadStorage, index *storage.SearchIndex) App {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	filter := textinput.New()
	filter.Placeholder = "filter threads"
	filter.CharLimit = 64

	search := textinput.New()
	search.Placeholder = "search messages"
	search.CharLimit = 128

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	snapCh := make(chan session.Snapshot, 16)
	ctrl.Subscribe(func(s session.Snapshot) {
		// Keep only the most recent snapshot when the UI lags behind.
		// The controller is the sole writer, so drain-one-then-send
		// cannot block.
		select {
		case snapCh <- s:
		default:
			select {
			case <-snapCh:
			default:
			}
			snapCh <- s
		}
	})

	return App{
		ctrl:        ctrl,
		store:       store,
		index:       index,
		textarea:    ta,
		filterInput: filter,
		searchInput: search,
		spin:        sp,
		snap:        ctrl.Snapshot(),
		snapCh:      snapCh,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		a.spin.Tick,
		a.waitForSnapshot(),
	)
}

// waitForSnapshot blocks on the snapshot channel and re-arms itself from
// Update after every delivery.
func (a App) waitForSnapshot() tea.Cmd {
	ch := a.snapCh
	return func() tea.Msg {
		return snapshotMsg{snap: <-ch}
	}
}

func (a App) View() string {
	if !a.ready {
		return "Loading convo..."
	}

	if a.showSearch {
		return a.renderMessageSearch()
	}
	if a.showPicker {
		return a.renderThreadPicker()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		a.viewport.View(),
		a.renderStatusBar(),
		a.textarea.View(),
	)
}
