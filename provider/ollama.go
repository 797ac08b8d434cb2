package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"convo/session"
)

// OllamaTransport streams assistant turns from a local or remote Ollama
// server. Ollama does not assign tool-call ids, so the transport generates
// them; result correlation still works because the same generated id is used
// on the call and its result.
type OllamaTransport struct {
	client *api.Client
	model  string
	exec   ToolExecutor
}

// NewOllamaTransport creates an Ollama transport.
func NewOllamaTransport(baseURL, model string, exec ToolExecutor) (*OllamaTransport, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1:latest"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &OllamaTransport{
		client: api.NewClient(parsed, http.DefaultClient),
		model:  model,
		exec:   exec,
	}, nil
}

// Open implements session.Transport.
func (t *OllamaTransport) Open(ctx context.Context, req session.Request) (<-chan session.Event, error) {
	messages := convertOllamaMessages(req.Messages)

	var tools []api.Tool
	if len(req.Tools) > 0 {
		tools = convertOllamaTools(req.Tools)
	}

	ch := make(chan session.Event)
	go t.run(ctx, ch, req.ThreadID, messages, tools)
	return ch, nil
}

func (t *OllamaTransport) run(ctx context.Context, ch chan session.Event, threadID string, messages []api.Message, tools []api.Tool) {
	defer close(ch)

	if !emit(ctx, ch, session.Event{Type: session.EventMessageStart, ThreadID: threadID}) {
		return
	}

	stream := true
	for round := 0; round < maxToolRounds; round++ {
		chatReq := &api.ChatRequest{
			Model:    t.model,
			Messages: messages,
			Tools:    tools,
			Stream:   &stream,
		}

		var content string
		var ollamaCalls []api.ToolCall
		var emitErr error
		err := t.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				content += resp.Message.Content
				if !emit(ctx, ch, session.Event{
					Type:     session.EventContentDelta,
					ThreadID: threadID,
					Delta:    resp.Message.Content,
				}) {
					emitErr = ctx.Err()
					return emitErr
				}
			}
			ollamaCalls = append(ollamaCalls, resp.Message.ToolCalls...)
			return nil
		})
		if emitErr != nil {
			return
		}
		if err != nil {
			emit(ctx, ch, errorEvent(threadID, fmt.Errorf("ollama chat: %w", err)))
			return
		}

		calls := make([]session.ToolCall, 0, len(ollamaCalls))
		for _, oc := range ollamaCalls {
			calls = append(calls, session.ToolCall{
				ID:        "call-" + uuid.New().String(),
				Name:      oc.Function.Name,
				Arguments: map[string]any(oc.Function.Arguments),
			})
		}

		if len(calls) == 0 || t.exec == nil {
			for _, call := range calls {
				call := call
				emit(ctx, ch, session.Event{Type: session.EventToolCall, ThreadID: threadID, ToolCall: &call})
			}
			emit(ctx, ch, session.Event{Type: session.EventMessageEnd, ThreadID: threadID})
			return
		}

		messages = append(messages, api.Message{
			Role:      "assistant",
			Content:   content,
			ToolCalls: ollamaCalls,
		})
		for _, call := range calls {
			call := call
			if !emit(ctx, ch, session.Event{Type: session.EventToolCall, ThreadID: threadID, ToolCall: &call}) {
				return
			}

			payload, err := t.exec.Execute(ctx, call)
			if err != nil {
				payload = map[string]any{"error": err.Error()}
			}
			if !emit(ctx, ch, session.Event{
				Type:     session.EventToolResult,
				ThreadID: threadID,
				Result:   &session.ToolResult{ToolCallID: call.ID, Payload: payload},
			}) {
				return
			}

			encoded, merr := json.Marshal(payload)
			if merr != nil {
				encoded = []byte(`{}`)
			}
			messages = append(messages, api.Message{
				Role:     "tool",
				Content:  string(encoded),
				ToolName: call.Name,
			})
		}
	}

	emit(ctx, ch, errorEvent(threadID, fmt.Errorf("tool loop exceeded %d rounds", maxToolRounds)))
}
