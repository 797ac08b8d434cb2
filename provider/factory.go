// Package provider implements session.Transport against real chat backends.
//
// Each transport opens one SDK stream per request and translates it into the
// ordered event sequence the session core consumes: message-start, content
// deltas, tool calls, tool results, and a terminal message-end or error.
// When the model requests tool calls, the transport runs them through the
// configured ToolExecutor, reports the results as events, feeds them back to
// the model and continues streaming, up to maxToolRounds rounds per turn.
package provider

import (
	"context"
	"fmt"

	"convo/session"
)

// Type identifies the transport implementation.
type Type string

const (
	TypeOllama    Type = "ollama"
	TypeOpenAI    Type = "openai"
	TypeAnthropic Type = "anthropic"
)

// Config holds transport-specific configuration.
type Config struct {
	Type    Type
	BaseURL string
	Model   string
	APIKey  string // unused for Ollama
}

// ToolExecutor runs one server-side tool call and returns its payload. The
// transport reports the payload as a tool-result event and also feeds it back
// to the model so the turn can continue.
type ToolExecutor interface {
	Execute(ctx context.Context, call session.ToolCall) (map[string]any, error)
}

// maxToolRounds bounds how many execute-and-continue rounds one turn may
// take, so a model that keeps requesting tools cannot loop forever.
const maxToolRounds = 4

// NewTransport creates a transport from configuration. exec may be nil, in
// which case tool calls are reported but not executed.
func NewTransport(cfg Config, exec ToolExecutor) (session.Transport, error) {
	switch cfg.Type {
	case TypeOllama:
		return NewOllamaTransport(cfg.BaseURL, cfg.Model, exec)
	case TypeOpenAI:
		return NewOpenAITransport(cfg.BaseURL, cfg.APIKey, cfg.Model, exec)
	case TypeAnthropic:
		return NewAnthropicTransport(cfg.BaseURL, cfg.APIKey, cfg.Model, exec)
	default:
		return nil, fmt.Errorf("unknown transport type: %s", cfg.Type)
	}
}

// emit sends one event unless the request context has been cancelled.
// Reports whether the event was delivered.
func emit(ctx context.Context, ch chan<- session.Event, ev session.Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
