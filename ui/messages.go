package ui

import (
	"convo/session"
	"convo/storage"
)

// snapshotMsg carries one session snapshot forwarded from the controller's
// subscriber callback into the bubbletea loop.
type snapshotMsg struct {
	snap session.Snapshot
}

// sendDoneMsg reports the outcome of a SendMessage or RetryLastMessage call
// that ran on a command goroutine.
type sendDoneMsg struct {
	err error
}

type threadsListMsg struct {
	threads []storage.ThreadMetadata
	err     error
}

type threadOpenedMsg struct {
	threadID string
	history  []session.ChatMessage
	err      error
}

type threadSavedMsg struct {
	err error
}

type threadDeletedMsg struct {
	id  string
	err error
}

// searchResultsMsg carries matches for one query; query echoes the input so
// results that raced a newer keystroke can be dropped.
type searchResultsMsg struct {
	query   string
	matches []storage.MessageMatch
	err     error
}

type flashClearMsg struct{}
