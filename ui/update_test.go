package ui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"convo/session"
	"convo/storage"
)

// stubTransport satisfies session.Transport for apps whose tests never send.
type stubTransport struct{}

func (stubTransport) Open(ctx context.Context, req session.Request) (<-chan session.Event, error) {
	ch := make(chan session.Event)
	close(ch)
	return ch, nil
}

func newTestApp(t *testing.T) (App, *storage.ThreadStorage, *storage.SearchIndex) {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewThreadStorage(dir, nil)
	if err != nil {
		t.Fatalf("NewThreadStorage: %v", err)
	}
	index, err := storage.NewSearchIndex(dir)
	if err != nil {
		t.Fatalf("NewSearchIndex: %v", err)
	}
	t.Cleanup(func() { index.Close() })

	ctrl, err := session.New(session.Config{Transport: stubTransport{}})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return New(ctrl, store, index), store, index
}

func saveIndexedThread(t *testing.T, store *storage.ThreadStorage, index *storage.SearchIndex, name, content string) *storage.Thread {
	t.Helper()
	thread := &storage.Thread{
		Name: name,
		Messages: []storage.Message{
			{ID: "m1", Role: "user", Content: content, Status: "complete", Timestamp: time.Now()},
		},
	}
	if err := store.Save(thread); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := index.IndexThread(thread); err != nil {
		t.Fatalf("IndexThread: %v", err)
	}
	return thread
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "ctrl+d":
		return tea.KeyMsg(tea.Key{Type: tea.KeyCtrlD})
	case "ctrl+f":
		return tea.KeyMsg(tea.Key{Type: tea.KeyCtrlF})
	case "esc":
		return tea.KeyMsg(tea.Key{Type: tea.KeyEsc})
	default:
		return tea.KeyMsg(tea.Key{Type: tea.KeyRunes, Runes: []rune(s)})
	}
}

func TestDeleteThreadCmdRemovesFileAndIndexRows(t *testing.T) {
	app, store, index := newTestApp(t)
	thread := saveIndexedThread(t, store, index, "groceries", "how much are tomatoes")

	msg := app.deleteThreadCmd(thread.ID)()
	deleted, ok := msg.(threadDeletedMsg)
	if !ok {
		t.Fatalf("msg = %T, want threadDeletedMsg", msg)
	}
	if deleted.err != nil {
		t.Fatalf("delete err = %v", deleted.err)
	}
	if deleted.id != thread.ID {
		t.Errorf("deleted id = %q, want %q", deleted.id, thread.ID)
	}

	if _, err := store.Load(thread.ID); err == nil {
		t.Error("Load succeeded after delete, want error")
	}
	matches, err := index.Search("tomatoes")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Search returned %d matches after delete, want 0", len(matches))
	}
}

func TestThreadPickerDeleteConfirmFlow(t *testing.T) {
	app, store, index := newTestApp(t)
	thread := saveIndexedThread(t, store, index, "groceries", "how much are tomatoes")

	threads, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	app.showPicker = true
	app.threadList = threads
	app.filteredThreads = threads
	app.selectedIdx = 0

	m, _ := app.Update(keyMsg("ctrl+d"))
	app = m.(App)
	if app.confirmDelete == nil {
		t.Fatal("confirmDelete = nil after ctrl+d, want armed")
	}
	if got := app.confirmDelete.ID; got != thread.ID {
		t.Errorf("confirmDelete.ID = %q, want %q", got, thread.ID)
	}

	m, _ = app.Update(keyMsg("n"))
	app = m.(App)
	if app.confirmDelete != nil {
		t.Fatal("confirmDelete still armed after n, want cleared")
	}
	if _, err := store.Load(thread.ID); err != nil {
		t.Fatalf("thread deleted despite cancel: %v", err)
	}

	m, _ = app.Update(keyMsg("ctrl+d"))
	app = m.(App)
	m, cmd := app.Update(keyMsg("y"))
	app = m.(App)
	if app.confirmDelete != nil {
		t.Error("confirmDelete still armed after y, want cleared")
	}
	if cmd == nil {
		t.Fatal("cmd = nil after confirm, want delete command")
	}
	if _, ok := cmd().(threadDeletedMsg); !ok {
		t.Fatal("confirm command did not produce threadDeletedMsg")
	}
	if _, err := store.Load(thread.ID); err == nil {
		t.Error("Load succeeded after confirmed delete, want error")
	}
}

func TestSearchCmd(t *testing.T) {
	app, store, index := newTestApp(t)
	saveIndexedThread(t, store, index, "groceries", "how much are tomatoes")

	tests := []struct {
		name        string
		query       string
		wantMatches int
	}{
		{name: "matching query finds indexed message", query: "tomatoes", wantMatches: 1},
		{name: "blank query returns nothing", query: "   ", wantMatches: 0},
		{name: "non-matching query returns nothing", query: "weather", wantMatches: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := app.searchCmd(tt.query)()
			results, ok := msg.(searchResultsMsg)
			if !ok {
				t.Fatalf("msg = %T, want searchResultsMsg", msg)
			}
			if results.err != nil {
				t.Fatalf("search err = %v", results.err)
			}
			if results.query != tt.query {
				t.Errorf("query = %q, want %q", results.query, tt.query)
			}
			if got := len(results.matches); got != tt.wantMatches {
				t.Errorf("matches = %d, want %d", got, tt.wantMatches)
			}
		})
	}
}

func TestSearchViewOpensAndSelectsThread(t *testing.T) {
	app, store, index := newTestApp(t)
	thread := saveIndexedThread(t, store, index, "groceries", "how much are tomatoes")

	m, _ := app.Update(keyMsg("ctrl+f"))
	app = m.(App)
	if !app.showSearch {
		t.Fatal("showSearch = false after ctrl+f, want true")
	}

	app.searchInput.SetValue("tomatoes")
	matches, err := index.Search("tomatoes")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	m, _ = app.Update(searchResultsMsg{query: "tomatoes", matches: matches})
	app = m.(App)
	if len(app.searchResults) != 1 {
		t.Fatalf("searchResults = %d, want 1", len(app.searchResults))
	}

	m, cmd := app.Update(keyMsg("enter"))
	app = m.(App)
	if app.showSearch {
		t.Error("showSearch still true after enter, want closed")
	}
	if cmd == nil {
		t.Fatal("cmd = nil after enter, want open-thread command")
	}
	opened, ok := cmd().(threadOpenedMsg)
	if !ok {
		t.Fatal("enter command did not produce threadOpenedMsg")
	}
	if opened.err != nil {
		t.Fatalf("open err = %v", opened.err)
	}
	if opened.threadID != thread.ID {
		t.Errorf("opened thread = %q, want %q", opened.threadID, thread.ID)
	}
}

func TestStaleSearchResultsAreDropped(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.showSearch = true
	app.searchInput.SetValue("fresh")

	m, _ := app.Update(searchResultsMsg{
		query:   "stale",
		matches: []storage.MessageMatch{{ThreadID: "t1", Preview: "old hit"}},
	})
	app = m.(App)
	if len(app.searchResults) != 0 {
		t.Errorf("searchResults = %d for superseded query, want 0", len(app.searchResults))
	}
}
