package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"convo/session"
)

// AnthropicTransport streams assistant turns from the Anthropic API.
type AnthropicTransport struct {
	client *anthropic.Client
	model  anthropic.Model
	exec   ToolExecutor
}

// NewAnthropicTransport creates an Anthropic transport. The API key is
// required; baseURL and model fall back to the API default and a current
// Claude model.
func NewAnthropicTransport(baseURL, apiKey, model string, exec ToolExecutor) (*AnthropicTransport, error) {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}
	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if model != "" {
		anthropicModel = anthropic.Model(model)
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &AnthropicTransport{
		client: &client,
		model:  anthropicModel,
		exec:   exec,
	}, nil
}

// Open implements session.Transport.
func (t *AnthropicTransport) Open(ctx context.Context, req session.Request) (<-chan session.Event, error) {
	messages, system := convertAnthropicMessages(req.Messages)

	params := anthropic.MessageNewParams{
		Model:     t.model,
		Messages:  messages,
		MaxTokens: 4096, // required by the API
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		params.Tools = convertAnthropicTools(req.Tools)
	}

	ch := make(chan session.Event)
	go t.run(ctx, ch, req.ThreadID, params)
	return ch, nil
}

func (t *AnthropicTransport) run(ctx context.Context, ch chan session.Event, threadID string, params anthropic.MessageNewParams) {
	defer close(ch)

	if !emit(ctx, ch, session.Event{Type: session.EventMessageStart, ThreadID: threadID}) {
		return
	}

	for round := 0; round < maxToolRounds; round++ {
		stream := t.client.Messages.NewStreaming(ctx, params)

		msg := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := msg.Accumulate(event); err != nil {
				emit(ctx, ch, errorEvent(threadID, fmt.Errorf("accumulate message: %w", err)))
				return
			}

			switch eventVariant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := eventVariant.Delta.AsAny().(anthropic.TextDelta); ok {
					if !emit(ctx, ch, session.Event{
						Type:     session.EventContentDelta,
						ThreadID: threadID,
						Delta:    delta.Text,
					}) {
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			emit(ctx, ch, errorEvent(threadID, fmt.Errorf("anthropic stream: %w", err)))
			return
		}

		toolUses := extractAnthropicToolUses(msg.Content)
		if len(toolUses) == 0 || t.exec == nil {
			for _, call := range toolUses {
				emit(ctx, ch, session.Event{Type: session.EventToolCall, ThreadID: threadID, ToolCall: &call})
			}
			emit(ctx, ch, session.Event{Type: session.EventMessageEnd, ThreadID: threadID})
			return
		}

		// Execute the requested tools, report each result and feed them
		// back so the model can finish its answer.
		params.Messages = append(params.Messages, msg.ToParam())
		var resultBlocks []anthropic.ContentBlockParamUnion
		for _, call := range toolUses {
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
			resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(call.ID, string(encoded), err != nil))
		}
		params.Messages = append(params.Messages, anthropic.NewUserMessage(resultBlocks...))
	}

	emit(ctx, ch, errorEvent(threadID, fmt.Errorf("tool loop exceeded %d rounds", maxToolRounds)))
}

func errorEvent(threadID string, err error) session.Event {
	return session.Event{Type: session.EventError, ThreadID: threadID, Err: err}
}

// extractAnthropicToolUses pulls tool-use blocks (with their server-assigned
// ids) out of an accumulated message.
func extractAnthropicToolUses(content []anthropic.ContentBlockUnion) []session.ToolCall {
	var calls []session.ToolCall
	for _, block := range content {
		toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		var args map[string]any
		if err := json.Unmarshal(toolUse.Input, &args); err != nil {
			args = map[string]any{}
		}
		calls = append(calls, session.ToolCall{
			ID:        toolUse.ID,
			Name:      toolUse.Name,
			Arguments: args,
		})
	}
	return calls
}
