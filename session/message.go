package session

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Status tracks a message through its lifecycle. Within a thread at most one
// message (always the newest assistant message) is ever pending or streaming;
// everything before it is complete or errored.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusErrored   Status = "errored"
)

// ToolResult is the payload a server-executed tool returned for one call.
// The payload may be replaced in place later when the backend pushes a
// correction for the same call id (see Controller.ApplyToolResultUpdate).
type ToolResult struct {
	ToolCallID string
	Payload    map[string]any
}

// ToolCall records one server-executed tool invocation inside an assistant
// message. ID is assigned by the backend and echoed by all related events.
// Name and Arguments are immutable once received; Result is nil while the
// tool is executing.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
	Result    *ToolResult
}

// ChatMessage is one entry in the conversation. Content grows by appending
// while the message is streaming and is frozen once the message reaches a
// terminal status; after that only ToolResult payloads may still change.
type ChatMessage struct {
	ID        string
	Role      Role
	Content   string
	ToolCalls []ToolCall
	Status    Status
	Timestamp time.Time
}

// clone returns a deep copy so snapshots cannot be mutated through shared
// tool-call or payload references.
func (m ChatMessage) clone() ChatMessage {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			out.ToolCalls[i] = tc.clone()
		}
	}
	return out
}

func (t ToolCall) clone() ToolCall {
	out := t
	out.Arguments = cloneMap(t.Arguments)
	if t.Result != nil {
		r := *t.Result
		r.Payload = cloneMap(t.Result.Payload)
		out.Result = &r
	}
	return out
}

func cloneMessages(msgs []ChatMessage) []ChatMessage {
	if msgs == nil {
		return nil
	}
	out := make([]ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m.clone()
	}
	return out
}

// cloneMap copies one level deep. Payloads are decoded JSON objects, so
// nested values are fresh allocations from the decoder already and are not
// shared between events.
func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
