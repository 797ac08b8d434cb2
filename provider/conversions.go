package provider

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"convo/session"
)

// The transports speak three wire dialects but the session core speaks one.
// Everything below maps session messages and mcp tool descriptors into each
// SDK's request types. Tool calls embedded in historic assistant messages are
// not replayed; only role and content travel back to the backend.

// convertAnthropicMessages maps history to Anthropic params. System messages
// go into the separate system parameter, everything else into the messages
// array.
func convertAnthropicMessages(messages []session.ChatMessage) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var system []anthropic.TextBlockParam
	out := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case session.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case session.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return out, system
}

func convertOpenAIMessages(messages []session.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case session.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case session.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func convertOllamaMessages(messages []session.ChatMessage) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		out = append(out, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return out
}

// convertAnthropicTools maps mcp tool descriptors to Anthropic's tool params.
func convertAnthropicTools(tools []mcptypes.Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: tool.InputSchema.Properties,
		}
		if len(tool.InputSchema.Required) > 0 {
			inputSchema.Required = tool.InputSchema.Required
		}
		out[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
		if tool.Description != "" {
			out[i].OfTool.Description = anthropic.String(tool.Description)
		}
	}
	return out
}

// convertOpenAITools maps mcp tool descriptors to OpenAI function tools.
// Both sides are JSON Schema, so the input schema converts structurally.
func convertOpenAITools(tools []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, tool := range tools {
		params := openai.FunctionParameters{
			"type":       tool.InputSchema.Type,
			"properties": tool.InputSchema.Properties,
		}
		if len(tool.InputSchema.Required) > 0 {
			params["required"] = tool.InputSchema.Required
		}
		out[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  params,
			},
		)
	}
	return out
}

func convertOllamaTools(tools []mcptypes.Tool) []api.Tool {
	out := make([]api.Tool, 0, len(tools))
	for _, tool := range tools {
		out = append(out, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  convertOllamaParameters(tool.InputSchema),
			},
		})
	}
	return out
}

func convertOllamaParameters(inputSchema mcptypes.ToolInputSchema) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       inputSchema.Type,
		Required:   inputSchema.Required,
		Properties: make(map[string]api.ToolProperty),
	}
	for name, value := range inputSchema.Properties {
		params.Properties[name] = convertOllamaProperty(value)
	}
	return params
}

func convertOllamaProperty(value any) api.ToolProperty {
	prop := api.ToolProperty{}
	m, ok := value.(map[string]any)
	if !ok {
		return prop
	}
	switch t := m["type"].(type) {
	case string:
		prop.Type = api.PropertyType{t}
	case []any:
		types := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				types = append(types, s)
			}
		}
		prop.Type = api.PropertyType(types)
	}
	if desc, ok := m["description"].(string); ok {
		prop.Description = desc
	}
	if enum, ok := m["enum"].([]any); ok {
		prop.Enum = enum
	}
	return prop
}

// parseToolArguments decodes a JSON arguments string, falling back to an
// empty map for malformed input.
func parseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return make(map[string]any)
	}
	return args
}
