// Package session implements the client-side state machine for one
// conversation thread against a streaming chat backend.
//
// The Controller owns the ordered message list, the in-flight request
// lifecycle, and the pending-refresh tracker for tool results that are
// displayed provisionally and corrected out-of-band later. It reconciles
// three racing sources of truth:
//
//   - the ordered message history,
//   - a live event stream that mutates the newest assistant message in place,
//   - push corrections that retroactively replace a tool-result payload
//     inside an already-rendered message.
//
// All state is guarded by one mutex and every mutation publishes an immutable
// Snapshot to subscribers, so any number of consumers can render the session
// without re-deriving state or observing torn reads.
//
// # Staleness
//
// Each send bumps an internal generation counter. The goroutine draining a
// stream captures the generation at open time and every event is applied only
// if its generation still matches. Switching threads, clearing messages, or
// starting a new thread bumps the counter, so late events from a superseded
// stream are silently discarded even when the transport-level abort is
// delayed or never happens.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

var (
	// ErrBusy is returned by SendMessage and RetryLastMessage while a
	// request is already in flight. Concurrent sends against one message
	// list are rejected rather than queued.
	ErrBusy = errors.New("session: request already in flight")

	// ErrEmptyMessage is returned when SendMessage is called with blank
	// content. Session state is not touched.
	ErrEmptyMessage = errors.New("session: empty message")

	// ErrStreamClosed records a stream that ended without a terminal
	// message-end or error event.
	ErrStreamClosed = errors.New("session: stream closed before turn completed")
)

// Config configures a Controller. Transport is required; everything else is
// optional.
type Config struct {
	Transport Transport

	// ThreadID is the initially active thread. Empty means no thread is
	// established yet; the first send assigns one.
	ThreadID string

	// Tools are the descriptors offered to the backend with every request.
	Tools []mcptypes.Tool

	// OnError, OnToolCall and OnToolResult are cross-cutting hooks
	// (logging, pending-refresh registration). They are invoked while the
	// controller lock is held and must not call back into the controller.
	OnError      func(error)
	OnToolCall   func(ToolCall)
	OnToolResult func(ToolResult)

	// PendingRefreshIDs, when non-nil, puts the controller in controlled
	// mode: pending-refresh state lives in this externally owned set so a
	// parent coordinator can share one tracker across several sessions.
	// When nil the controller owns a private set.
	PendingRefreshIDs *SharedPendingSet
}

// Controller drives a single chat thread. All methods are safe for
// concurrent use.
type Controller struct {
	mu        sync.Mutex
	transport Transport
	tools     []mcptypes.Tool

	onError      func(error)
	onToolCall   func(ToolCall)
	onToolResult func(ToolResult)

	threadID string
	messages []ChatMessage
	loading  bool
	err      error
	pending  PendingRefreshOwner

	generation uint64
	cancel     context.CancelFunc

	subs    map[int]func(Snapshot)
	nextSub int
}

// New creates a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("session: Config.Transport is required")
	}
	var pending PendingRefreshOwner
	if cfg.PendingRefreshIDs != nil {
		pending = cfg.PendingRefreshIDs
	} else {
		pending = newInternalPendingSet()
	}
	return &Controller{
		transport:    cfg.Transport,
		tools:        cfg.Tools,
		onError:      cfg.OnError,
		onToolCall:   cfg.OnToolCall,
		onToolResult: cfg.OnToolResult,
		threadID:     cfg.ThreadID,
		pending:      pending,
		subs:         make(map[int]func(Snapshot)),
	}, nil
}

// turn captures everything a stream-draining goroutine needs to apply events
// for exactly one generation.
type turn struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	req    Request
}

// SendMessage appends a user message, opens one stream against the backend
// and applies its events until the turn terminates. It returns ErrBusy while
// another request is in flight and ErrEmptyMessage for blank content; any
// transport failure is returned and also mirrored in the snapshot Err field
// so UI layers can render it inline.
func (c *Controller) SendMessage(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.threadID == "" {
		c.threadID = uuid.New().String()
	}
	c.messages = append(c.messages, ChatMessage{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   content,
		Status:    StatusComplete,
		Timestamp: time.Now(),
	})
	t := c.beginTurnLocked(ctx)
	c.publishLocked()
	c.mu.Unlock()

	return c.consume(t)
}

// RetryLastMessage re-issues the request for the most recent user message.
// If the newest message is an assistant message that never completed (errored
// or cut off mid-stream) it is removed first, so a retry replaces the failed
// answer instead of duplicating it. Without a prior user message this is a
// no-op.
func (c *Controller) RetryLastMessage(ctx context.Context) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	hasUser := false
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleUser {
			hasUser = true
			break
		}
	}
	if !hasUser {
		c.mu.Unlock()
		return nil
	}
	if n := len(c.messages); n > 0 {
		last := c.messages[n-1]
		if last.Role == RoleAssistant && last.Status != StatusComplete {
			c.messages = c.messages[:n-1]
		}
	}
	t := c.beginTurnLocked(ctx)
	c.publishLocked()
	c.mu.Unlock()

	return c.consume(t)
}

// ClearMessages empties the message list and clears the error without
// changing the active thread. Any in-flight stream is cancelled so a late
// completion cannot resurrect cleared messages. Pending-refresh ids are
// dropped along with the tool calls that owned them.
func (c *Controller) ClearMessages() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTurnLocked()
	c.messages = nil
	c.err = nil
	c.resetPendingLocked()
	c.publishLocked()
}

// SwitchThread cancels any in-flight request and resets the session to
// newThreadID. The message history for the new thread is supplied by the
// caller (typically loaded from storage); nil means the thread starts empty.
// Events still arriving for the old thread's stream are discarded, and the
// old thread's pending-refresh ids are dropped with its messages; reopening
// a thread with provisional results re-registers them (see tools.Refresher).
func (c *Controller) SwitchThread(newThreadID string, history []ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTurnLocked()
	c.threadID = newThreadID
	c.messages = cloneMessages(history)
	c.err = nil
	c.resetPendingLocked()
	c.publishLocked()
}

// StartNewThread cancels any in-flight request and resets to a fresh,
// unestablished thread. A thread id is assigned on the next send.
func (c *Controller) StartNewThread() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTurnLocked()
	c.threadID = ""
	c.messages = nil
	c.err = nil
	c.resetPendingLocked()
	c.publishLocked()
}

// ThreadID returns the active thread id, empty if none is established.
func (c *Controller) ThreadID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadID
}

// AddPendingRefresh marks a tool call's displayed result as provisional.
// Idempotent.
func (c *Controller) AddPendingRefresh(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.Add(id)
	c.publishLocked()
}

// RemovePendingRefresh clears the provisional marker for a tool call.
// Idempotent; a no-op for absent ids.
func (c *Controller) RemovePendingRefresh(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.Remove(id)
	c.publishLocked()
}

// PendingRefreshIDs returns the ids currently awaiting correction.
func (c *Controller) PendingRefreshIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.IDs()
}

// ApplyToolResultUpdate replaces the payload of an existing tool result in
// place. This is the entry point for out-of-band push corrections: it never
// creates, reorders or deletes messages, only swaps the payload for the
// matching call id. Reports whether the call id was found.
func (c *Controller) ApplyToolResultUpdate(toolCallID string, payload map[string]any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	tc := c.findToolCallLocked(toolCallID)
	if tc == nil {
		return false
	}
	if tc.Result == nil {
		tc.Result = &ToolResult{ToolCallID: toolCallID}
	}
	tc.Result.Payload = cloneMap(payload)
	if c.onToolResult != nil {
		c.onToolResult(*tc.Result)
	}
	c.publishLocked()
	return true
}

// beginTurnLocked arms a new generation and builds the outbound request from
// the current history. Callers must hold c.mu.
func (c *Controller) beginTurnLocked(ctx context.Context) turn {
	c.generation++
	c.loading = true
	c.err = nil

	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	return turn{
		gen:    c.generation,
		ctx:    streamCtx,
		cancel: cancel,
		req: Request{
			ThreadID: c.threadID,
			Messages: cloneMessages(c.messages),
			Tools:    c.tools,
		},
	}
}

// resetPendingLocked drops all pending-refresh ids when the messages that
// own them are destroyed. Only the internal set is touched; in controlled
// mode the shared set's lifecycle belongs to its external owner.
func (c *Controller) resetPendingLocked() {
	if s, ok := c.pending.(*internalPendingSet); ok {
		s.ids = make(map[string]struct{})
	}
}

// cancelTurnLocked invalidates the current generation and aborts the
// transport. Correctness does not depend on the abort being prompt; the
// generation bump alone guarantees stale events are dropped.
func (c *Controller) cancelTurnLocked() {
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.loading = false
}

// consume drains one stream, applying each event under the turn's generation.
func (c *Controller) consume(t turn) error {
	defer t.cancel()

	ch, err := c.transport.Open(t.ctx, t.req)
	if err != nil {
		err = fmt.Errorf("open stream: %w", err)
		c.failTurn(t.gen, err)
		return err
	}

	var turnErr error
	for ev := range ch {
		if ev.Type == EventError && ev.Err != nil {
			turnErr = ev.Err
		}
		c.apply(t.gen, ev)
	}

	// Channel closed while the turn was still marked loading: the
	// transport died without a terminal event.
	if c.failTurn(t.gen, ErrStreamClosed) && turnErr == nil {
		turnErr = ErrStreamClosed
	}
	return turnErr
}

// failTurn marks the turn errored if it is still the current generation and
// still loading. Reports whether it applied.
func (c *Controller) failTurn(gen uint64, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || !c.loading {
		return false
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
	c.publishLocked()
	return true
}

func (c *Controller) findToolCallLocked(toolCallID string) *ToolCall {
	for i := len(c.messages) - 1; i >= 0; i-- {
		calls := c.messages[i].ToolCalls
		for j := range calls {
			if calls[j].ID == toolCallID {
				return &calls[j]
			}
		}
	}
	return nil
}
