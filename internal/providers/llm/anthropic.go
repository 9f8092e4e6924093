package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sandevgo/tuskmem/internal/core"
)

const defaultAnthropicMaxTokens = 4096

var _ core.ReplyGenerator = (*Anthropic)(nil)

type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropic(apiKey, model string, opts ...option.RequestOption) *Anthropic {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Anthropic{
		client:    anthropic.NewClient(all...),
		model:     model,
		maxTokens: defaultAnthropicMaxTokens,
	}
}

func (a *Anthropic) Generate(ctx context.Context, systemPrompt string, history []core.Message, tools []core.Tool) (core.Message, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  toAnthropicMessages(history),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if len(tools) > 0 {
		apiTools, err := toAnthropicTools(tools)
		if err != nil {
			return core.Message{}, err
		}
		params.Tools = apiTools
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return core.Message{}, fmt.Errorf("anthropic: %w", err)
	}
	return fromAnthropic(resp), nil
}

// toAnthropicMessages folds consecutive same-role entries into one message,
// which is how the API expects parallel tool results to arrive.
func toAnthropicMessages(history []core.Message) []anthropic.MessageParam {
	type turn struct {
		role   string
		blocks []anthropic.ContentBlockParamUnion
	}

	var turns []turn
	push := func(role string, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].blocks = append(turns[n-1].blocks, blocks...)
			return
		}
		turns = append(turns, turn{role: role, blocks: blocks})
	}

	for _, m := range history {
		switch m.Kind {
		case core.KindUser:
			if m.Content != "" {
				push(core.RoleUser, anthropic.NewTextBlock(m.Content))
			}
		case core.KindText:
			if m.Content != "" {
				push(core.RoleAssistant, anthropic.NewTextBlock(m.Content))
			}
		case core.KindToolCalls:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, toolInput(tc.Arguments), tc.Name))
			}
			push(core.RoleAssistant, blocks...)
		case core.KindToolResult:
			push(core.RoleUser, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, m.IsError))
		}
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		if t.role == core.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(t.blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(t.blocks...))
		}
	}
	return out
}

func toolInput(args json.RawMessage) map[string]any {
	input := make(map[string]any)
	if len(args) > 0 {
		_ = json.Unmarshal(args, &input)
	}
	return input
}

func toAnthropicTools(tools []core.Tool) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema struct {
			Properties any      `json:"properties"`
			Required   []string `json:"required"`
		}
		if len(t.Function.Parameters) > 0 {
			if err := json.Unmarshal(t.Function.Parameters, &schema); err != nil {
				return nil, fmt.Errorf("tool %s: invalid parameters schema: %w", t.Function.Name, err)
			}
		}
		if schema.Properties == nil {
			schema.Properties = map[string]any{}
		}

		param := anthropic.ToolParam{
			Name: t.Function.Name,
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema.Properties,
				Required:   schema.Required,
			},
		}
		if t.Function.Description != "" {
			param.Description = anthropic.String(t.Function.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}
	return out, nil
}

func fromAnthropic(resp *anthropic.Message) core.Message {
	var text string
	var calls []core.ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			calls = append(calls, core.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: json.RawMessage(block.Input),
			})
		}
	}

	if len(calls) > 0 {
		return core.NewToolCallMessage(text, calls)
	}
	return core.NewTextMessage(text)
}
