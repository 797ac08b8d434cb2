package session

import (
	"testing"
)

func TestSubscribersObserveIdenticalSnapshots(t *testing.T) {
	c, ft := newTestController(t, Config{ThreadID: "t"})

	var first, second []Snapshot
	unsub1 := c.Subscribe(func(s Snapshot) { first = append(first, s) })
	defer unsub1()
	unsub2 := c.Subscribe(func(s Snapshot) { second = append(second, s) })
	defer unsub2()

	done := sendAsync(c, "hello")
	st := ft.waitStream(t, 1)
	st.events <- Event{Type: EventMessageStart}
	st.events <- Event{Type: EventContentDelta, Delta: "hi"}
	st.events <- Event{Type: EventMessageEnd}
	close(st.events)
	waitErr(t, done)

	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("snapshot counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.IsLoading != b.IsLoading || len(a.Messages) != len(b.Messages) {
			t.Errorf("update %d: subscribers observed different snapshots", i)
			continue
		}
		for j := range a.Messages {
			if a.Messages[j].Content != b.Messages[j].Content || a.Messages[j].Status != b.Messages[j].Status {
				t.Errorf("update %d message %d: torn read between subscribers", i, j)
			}
		}
	}
}

func TestSnapshotIsIsolatedFromLaterMutation(t *testing.T) {
	c, ft := newTestController(t, Config{ThreadID: "t"})

	done := sendAsync(c, "price?")
	st := ft.waitStream(t, 1)
	st.events <- Event{Type: EventMessageStart}
	st.events <- Event{Type: EventToolCall, ToolCall: &ToolCall{ID: "t1", Name: "price_lookup"}}
	st.events <- Event{Type: EventToolResult, Result: &ToolResult{ToolCallID: "t1", Payload: map[string]any{"price": 10}}}
	st.events <- Event{Type: EventMessageEnd}
	close(st.events)
	waitErr(t, done)

	before := c.Snapshot()
	c.ApplyToolResultUpdate("t1", map[string]any{"price": 99})

	got := before.Messages[1].ToolCalls[0].Result.Payload["price"]
	if got != 10 {
		t.Errorf("old snapshot payload mutated: price = %v, want 10", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c, _ := newTestController(t, Config{})

	calls := 0
	unsub := c.Subscribe(func(Snapshot) { calls++ })

	c.AddPendingRefresh("a")
	unsub()
	c.AddPendingRefresh("b")

	if calls != 1 {
		t.Errorf("subscriber called %d times, want 1", calls)
	}
}
