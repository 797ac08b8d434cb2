package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// apply translates one stream event into a store mutation. Events from a
// superseded generation, or tagged with a different thread than the active
// one, are dropped before any transition runs. Exactly one snapshot is
// published per applied event.
func (c *Controller) apply(gen uint64, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return // stale stream
	}
	if ev.ThreadID != "" && ev.ThreadID != c.threadID {
		return
	}

	switch ev.Type {
	case EventMessageStart:
		c.currentAssistantLocked()

	case EventContentDelta:
		m := c.currentAssistantLocked()
		m.Status = StatusStreaming
		m.Content += ev.Delta

	case EventToolCall:
		if ev.ToolCall == nil {
			return
		}
		m := c.currentAssistantLocked()
		m.Status = StatusStreaming
		tc := ev.ToolCall.clone()
		tc.Result = nil
		m.ToolCalls = append(m.ToolCalls, tc)
		if c.onToolCall != nil {
			c.onToolCall(tc.clone())
		}

	case EventToolResult:
		if ev.Result == nil {
			return
		}
		c.attachToolResultLocked(*ev.Result)
		// A result for a call registered as pending-refresh does not
		// clear the registration; removal is an explicit caller action
		// once the correcting value arrives.

	case EventMessageEnd:
		if n := len(c.messages); n > 0 {
			last := &c.messages[n-1]
			if last.Role == RoleAssistant && last.Status != StatusErrored {
				last.Status = StatusComplete
			}
		}
		c.loading = false

	case EventError:
		err := ev.Err
		if err == nil {
			err = errors.New("session: transport reported an error")
		}
		if n := len(c.messages); n > 0 {
			last := &c.messages[n-1]
			if last.Role == RoleAssistant && last.Status != StatusComplete {
				last.Status = StatusErrored
			}
		}
		c.err = err
		c.loading = false
		if c.onError != nil {
			c.onError(err)
		}

	default:
		return // malformed event, nothing applied
	}

	c.publishLocked()
}

// currentAssistantLocked returns the assistant message for the active turn,
// creating it in pending status on the turn's first event. Transitions that
// carry actual output promote it to streaming.
func (c *Controller) currentAssistantLocked() *ChatMessage {
	if n := len(c.messages); n > 0 {
		last := &c.messages[n-1]
		if last.Role == RoleAssistant && (last.Status == StatusPending || last.Status == StatusStreaming) {
			return last
		}
	}
	c.messages = append(c.messages, ChatMessage{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Status:    StatusPending,
		Timestamp: time.Now(),
	})
	return &c.messages[len(c.messages)-1]
}

// attachToolResultLocked attaches or replaces the result for the matching
// call id. Replacement keeps the call id and never reorders the owning
// message.
func (c *Controller) attachToolResultLocked(res ToolResult) {
	tc := c.findToolCallLocked(res.ToolCallID)
	if tc == nil {
		return // result for an unknown call; drop
	}
	tc.Result = &ToolResult{
		ToolCallID: res.ToolCallID,
		Payload:    cloneMap(res.Payload),
	}
	if c.onToolResult != nil {
		c.onToolResult(*tc.Result)
	}
}
