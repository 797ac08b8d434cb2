package session

import (
	"errors"
	"testing"
)

// Drives apply directly with a matching generation to exercise each
// transition in isolation.
func TestApplyTransitions(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		check  func(t *testing.T, c *Controller)
	}{
		{
			name:   "message-start appends pending assistant message",
			events: []Event{{Type: EventMessageStart}},
			check: func(t *testing.T, c *Controller) {
				if len(c.messages) != 1 {
					t.Fatalf("message count = %d, want 1", len(c.messages))
				}
				m := c.messages[0]
				if m.Role != RoleAssistant || m.Status != StatusPending {
					t.Errorf("message = %+v, want pending assistant", m)
				}
				if m.ID == "" {
					t.Error("message id not assigned")
				}
			},
		},
		{
			name: "first content-delta promotes pending to streaming",
			events: []Event{
				{Type: EventMessageStart},
				{Type: EventContentDelta, Delta: "x"},
			},
			check: func(t *testing.T, c *Controller) {
				if got := c.messages[0].Status; got != StatusStreaming {
					t.Errorf("status = %s, want streaming", got)
				}
			},
		},
		{
			name: "content-delta appends to streaming message",
			events: []Event{
				{Type: EventMessageStart},
				{Type: EventContentDelta, Delta: "foo"},
				{Type: EventContentDelta, Delta: "bar"},
			},
			check: func(t *testing.T, c *Controller) {
				if got := c.messages[0].Content; got != "foobar" {
					t.Errorf("content = %q, want %q", got, "foobar")
				}
			},
		},
		{
			name: "content-delta without start creates the assistant message",
			events: []Event{
				{Type: EventContentDelta, Delta: "implicit"},
			},
			check: func(t *testing.T, c *Controller) {
				if len(c.messages) != 1 || c.messages[0].Content != "implicit" {
					t.Errorf("messages = %+v", c.messages)
				}
			},
		},
		{
			name: "tool-call appended with empty result",
			events: []Event{
				{Type: EventMessageStart},
				{Type: EventToolCall, ToolCall: &ToolCall{ID: "t1", Name: "price_lookup"}},
			},
			check: func(t *testing.T, c *Controller) {
				calls := c.messages[0].ToolCalls
				if len(calls) != 1 {
					t.Fatalf("tool call count = %d, want 1", len(calls))
				}
				if calls[0].Result != nil {
					t.Error("new tool call has a result, want nil while executing")
				}
				if got := c.messages[0].Status; got != StatusStreaming {
					t.Errorf("status = %s, want streaming once a tool call arrives", got)
				}
			},
		},
		{
			name: "tool-result attaches to matching call",
			events: []Event{
				{Type: EventMessageStart},
				{Type: EventToolCall, ToolCall: &ToolCall{ID: "t1", Name: "price_lookup"}},
				{Type: EventToolResult, Result: &ToolResult{ToolCallID: "t1", Payload: map[string]any{"price": 10}}},
			},
			check: func(t *testing.T, c *Controller) {
				res := c.messages[0].ToolCalls[0].Result
				if res == nil {
					t.Fatal("result not attached")
				}
				if res.ToolCallID != "t1" || res.Payload["price"] != 10 {
					t.Errorf("result = %+v", res)
				}
			},
		},
		{
			name: "tool-result for unknown call is dropped",
			events: []Event{
				{Type: EventMessageStart},
				{Type: EventToolResult, Result: &ToolResult{ToolCallID: "nope", Payload: map[string]any{}}},
			},
			check: func(t *testing.T, c *Controller) {
				if len(c.messages[0].ToolCalls) != 0 {
					t.Errorf("tool calls = %+v, want none", c.messages[0].ToolCalls)
				}
			},
		},
		{
			name: "message-end completes the streaming message",
			events: []Event{
				{Type: EventMessageStart},
				{Type: EventContentDelta, Delta: "done"},
				{Type: EventMessageEnd},
			},
			check: func(t *testing.T, c *Controller) {
				if got := c.messages[0].Status; got != StatusComplete {
					t.Errorf("status = %s, want complete", got)
				}
				if c.loading {
					t.Error("loading = true after message-end")
				}
			},
		},
		{
			name: "error event marks message and session",
			events: []Event{
				{Type: EventMessageStart},
				{Type: EventError, Err: errors.New("bad frame")},
			},
			check: func(t *testing.T, c *Controller) {
				if got := c.messages[0].Status; got != StatusErrored {
					t.Errorf("status = %s, want errored", got)
				}
				if c.err == nil {
					t.Error("session err = nil")
				}
			},
		},
		{
			name:   "unknown event type is ignored",
			events: []Event{{Type: EventType("heartbeat")}},
			check: func(t *testing.T, c *Controller) {
				if len(c.messages) != 0 {
					t.Errorf("messages = %+v, want none", c.messages)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(t, Config{ThreadID: "t"})
			for _, ev := range tt.events {
				c.apply(c.generation, ev)
			}
			tt.check(t, c)
		})
	}
}

func TestApplyDropsStaleGeneration(t *testing.T) {
	c, _ := newTestController(t, Config{ThreadID: "t"})
	stale := c.generation
	c.generation++ // a newer send/switch has started

	c.apply(stale, Event{Type: EventContentDelta, Delta: "old"})

	if len(c.messages) != 0 {
		t.Errorf("stale event mutated state: %+v", c.messages)
	}
}

func TestApplyDropsForeignThreadEvents(t *testing.T) {
	c, _ := newTestController(t, Config{ThreadID: "thread-b"})

	c.apply(c.generation, Event{Type: EventContentDelta, ThreadID: "thread-a", Delta: "old"})

	if len(c.messages) != 0 {
		t.Errorf("foreign-thread event mutated state: %+v", c.messages)
	}
}
