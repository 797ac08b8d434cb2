package session

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// EventType enumerates the discrete updates a transport delivers for one
// assistant turn.
type EventType string

const (
	EventMessageStart EventType = "message-start"
	EventContentDelta EventType = "content-delta"
	EventToolCall     EventType = "tool-call"
	EventToolResult   EventType = "tool-result"
	EventMessageEnd   EventType = "message-end"
	EventError        EventType = "error"
)

// Event is one update from the transport. Exactly one of the type-specific
// fields is set, matching Type. ThreadID tags which thread the stream belongs
// to so the controller can discard events from a superseded request.
type Event struct {
	Type     EventType
	ThreadID string

	Delta    string      // content-delta
	ToolCall *ToolCall   // tool-call
	Result   *ToolResult // tool-result
	Err      error       // error
}

// Request is what the controller hands the transport when opening a stream:
// the conversation so far plus the tool descriptors the backend may invoke.
type Request struct {
	ThreadID string
	Messages []ChatMessage
	Tools    []mcptypes.Tool
}

// Transport opens one event stream per request against the chat backend.
//
// The returned channel delivers events in order and is closed when the turn
// ends (after message-end or error) or when ctx is cancelled. A stream is not
// restartable; a new send opens a new stream.
//
// The interface lives in this package rather than in provider so that
// provider implementations can import session without an import cycle.
type Transport interface {
	Open(ctx context.Context, req Request) (<-chan Event, error)
}
