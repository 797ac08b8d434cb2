package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"convo/session"
)

// OpenAITransport streams assistant turns from the OpenAI chat completions
// API (and OpenAI-compatible backends).
type OpenAITransport struct {
	client openai.Client
	model  string
	exec   ToolExecutor
}

// NewOpenAITransport creates an OpenAI transport. The API key is required.
func NewOpenAITransport(baseURL, apiKey, model string, exec ToolExecutor) (*OpenAITransport, error) {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenAITransport{
		client: client,
		model:  model,
		exec:   exec,
	}, nil
}

// Open implements session.Transport.
func (t *OpenAITransport) Open(ctx context.Context, req session.Request) (<-chan session.Event, error) {
	params := openai.ChatCompletionNewParams{
		Messages: convertOpenAIMessages(req.Messages),
		Model:    openai.ChatModel(t.model),
	}
	if len(req.Tools) > 0 {
		params.Tools = convertOpenAITools(req.Tools)
	}

	ch := make(chan session.Event)
	go t.run(ctx, ch, req.ThreadID, params)
	return ch, nil
}

func (t *OpenAITransport) run(ctx context.Context, ch chan session.Event, threadID string, params openai.ChatCompletionNewParams) {
	defer close(ch)

	if !emit(ctx, ch, session.Event{Type: session.EventMessageStart, ThreadID: threadID}) {
		return
	}

	for round := 0; round < maxToolRounds; round++ {
		stream := t.client.Chat.Completions.NewStreaming(ctx, params)
		acc := openai.ChatCompletionAccumulator{}

		var calls []session.ToolCall
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if tool, ok := acc.JustFinishedToolCall(); ok {
				calls = append(calls, session.ToolCall{
					ID:        tool.ID,
					Name:      tool.Name,
					Arguments: parseToolArguments(tool.Arguments),
				})
			}

			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				if !emit(ctx, ch, session.Event{
					Type:     session.EventContentDelta,
					ThreadID: threadID,
					Delta:    chunk.Choices[0].Delta.Content,
				}) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			emit(ctx, ch, errorEvent(threadID, fmt.Errorf("openai stream: %w", err)))
			return
		}

		if len(calls) == 0 || t.exec == nil {
			for _, call := range calls {
				call := call
				emit(ctx, ch, session.Event{Type: session.EventToolCall, ThreadID: threadID, ToolCall: &call})
			}
			emit(ctx, ch, session.Event{Type: session.EventMessageEnd, ThreadID: threadID})
			return
		}

		if len(acc.Choices) > 0 {
			params.Messages = append(params.Messages, acc.Choices[0].Message.ToParam())
		}
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
			params.Messages = append(params.Messages, openai.ToolMessage(string(encoded), call.ID))
		}
	}

	emit(ctx, ch, errorEvent(threadID, fmt.Errorf("tool loop exceeded %d rounds", maxToolRounds)))
}
