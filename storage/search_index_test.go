package storage

import (
	"testing"
	"time"
)

func newTestIndex(t *testing.T) *SearchIndex {
	t.Helper()
	si, err := NewSearchIndex(t.TempDir())
	if err != nil {
		t.Fatalf("NewSearchIndex() error = %v", err)
	}
	t.Cleanup(func() { si.Close() })
	return si
}

func TestSearchIndexFindsMessages(t *testing.T) {
	si := newTestIndex(t)

	thread := &Thread{
		ID:   "th1",
		Name: "markets",
		Messages: []Message{
			{Role: "user", Content: "What is the ACME price?", Timestamp: time.Now()},
			{Role: "assistant", Content: "ACME trades at 12 dollars.", Timestamp: time.Now()},
			{Role: "system", Content: "ACME internal prompt", Timestamp: time.Now()},
		},
	}
	if err := si.IndexThread(thread); err != nil {
		t.Fatalf("IndexThread() error = %v", err)
	}

	matches, err := si.Search("acme")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("match count = %d, want 2 (system messages excluded)", len(matches))
	}
	for _, m := range matches {
		if m.ThreadID != "th1" || m.ThreadName != "markets" {
			t.Errorf("match = %+v", m)
		}
	}
}

func TestSearchIndexReindexReplacesRows(t *testing.T) {
	si := newTestIndex(t)

	thread := &Thread{ID: "th1", Name: "t", Messages: []Message{
		{Role: "user", Content: "old content", Timestamp: time.Now()},
	}}
	if err := si.IndexThread(thread); err != nil {
		t.Fatalf("IndexThread() error = %v", err)
	}

	thread.Messages = []Message{{Role: "user", Content: "new content", Timestamp: time.Now()}}
	if err := si.IndexThread(thread); err != nil {
		t.Fatalf("IndexThread() second pass error = %v", err)
	}

	if matches, _ := si.Search("old content"); len(matches) != 0 {
		t.Errorf("stale rows survived reindex: %+v", matches)
	}
	if matches, _ := si.Search("new content"); len(matches) != 1 {
		t.Errorf("fresh rows missing after reindex")
	}
}

func TestSearchIndexRemoveThread(t *testing.T) {
	si := newTestIndex(t)

	thread := &Thread{ID: "th1", Name: "t", Messages: []Message{
		{Role: "user", Content: "hello world", Timestamp: time.Now()},
	}}
	if err := si.IndexThread(thread); err != nil {
		t.Fatalf("IndexThread() error = %v", err)
	}
	if err := si.RemoveThread("th1"); err != nil {
		t.Fatalf("RemoveThread() error = %v", err)
	}
	if matches, _ := si.Search("hello"); len(matches) != 0 {
		t.Errorf("matches after removal = %+v, want none", matches)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	si := newTestIndex(t)
	matches, err := si.Search("")
	if err != nil {
		t.Fatalf("Search(\"\") error = %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Search(\"\") = %+v, want empty", matches)
	}
}

func TestSearchPreviewTruncation(t *testing.T) {
	si := newTestIndex(t)

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	thread := &Thread{ID: "th1", Name: "t", Messages: []Message{
		{Role: "user", Content: string(long), Timestamp: time.Now()},
	}}
	if err := si.IndexThread(thread); err != nil {
		t.Fatalf("IndexThread() error = %v", err)
	}

	matches, err := si.Search("aaa")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("match count = %d", len(matches))
	}
	if len(matches[0].Preview) != 103 { // 100 chars + "..."
		t.Errorf("preview length = %d, want 103", len(matches[0].Preview))
	}
}
