package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/core"
)

var _ core.ReplyGenerator = (*OpenAICompatible)(nil)

type OpenAICompatible struct {
	client jsonClient
	model  string
}

type OpenAICompatibleConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	AuthHeader   string // e.g., "Authorization"
	AuthPrefix   string // e.g., "Bearer "
	ExtraHeaders map[string]string
}

func NewOpenAICompatible(cfg OpenAICompatibleConfig) *OpenAICompatible {
	headers := make(map[string]string, len(cfg.ExtraHeaders)+1)
	for k, v := range cfg.ExtraHeaders {
		headers[k] = v
	}
	if cfg.AuthHeader != "" && cfg.APIKey != "" {
		headers[cfg.AuthHeader] = cfg.AuthPrefix + cfg.APIKey
	}
	return &OpenAICompatible{
		client: newJSONClient(cfg.BaseURL, headers),
		model:  cfg.Model,
	}
}

type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireFunctionCall `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Reasoning  string         `json:"reasoning,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

func (o *OpenAICompatible) Generate(ctx context.Context, systemPrompt string, history []core.Message, tools []core.Tool) (core.Message, error) {
	messages := make([]wireMessage, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, wireMessage{Role: core.RoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		messages = append(messages, toWire(m))
	}

	payload := map[string]any{
		"model":    o.model,
		"messages": messages,
	}
	if len(tools) > 0 {
		payload["tools"] = tools
	}

	var result struct {
		Choices []struct {
			Message wireMessage `json:"message"`
		} `json:"choices"`
	}
	if err := o.client.postJSON(ctx, "/v1/chat/completions", payload, &result); err != nil {
		return core.Message{}, err
	}
	if len(result.Choices) == 0 {
		return core.Message{}, fmt.Errorf("empty choices from %s", o.model)
	}
	return fromWire(result.Choices[0].Message), nil
}

func toWire(m core.Message) wireMessage {
	w := wireMessage{
		Role:       m.Role(),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		args := string(tc.Arguments)
		if args == "" {
			args = "{}"
		}
		w.ToolCalls = append(w.ToolCalls, wireToolCall{
			ID:       tc.ID,
			Type:     "function",
			Function: wireFunctionCall{Name: tc.Name, Arguments: args},
		})
	}
	return w
}

func fromWire(w wireMessage) core.Message {
	if len(w.ToolCalls) == 0 {
		msg := core.NewTextMessage(w.Content)
		msg.Reasoning = w.Reasoning
		return msg
	}

	calls := make([]core.ToolCall, 0, len(w.ToolCalls))
	for _, tc := range w.ToolCalls {
		var args json.RawMessage
		if tc.Function.Arguments != "" {
			args = json.RawMessage(tc.Function.Arguments)
		}
		calls = append(calls, core.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	msg := core.NewToolCallMessage(w.Content, calls)
	msg.Reasoning = w.Reasoning
	return msg
}
