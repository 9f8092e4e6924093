package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedRunner struct {
	updates []core.Message
	err     error
	inputs  []string
}

func (r *scriptedRunner) Run(ctx context.Context, conversationID, input string, onUpdate func(core.Message)) (string, error) {
	r.inputs = append(r.inputs, input)
	for _, m := range r.updates {
		onUpdate(m)
	}
	return "", r.err
}

type staticRouter struct{}

func (staticRouter) Execute(ctx context.Context, conversationID, input string) (string, bool) {
	if input == "/help" {
		return "**commands**", true
	}
	return "", false
}

func (staticRouter) ListCommands() []core.Command { return nil }

func TestRespond_SendsAssistantMessages(t *testing.T) {
	runner := &scriptedRunner{updates: []core.Message{
		core.NewToolCallMessage("", []core.ToolCall{{ID: "1", Name: "example_tool"}}),
		core.NewToolResultMessage("1", "secret tool output"),
		core.NewTextMessage("**done**"),
	}}
	var sent []string
	typing := 0

	err := respond(context.Background(), runner, staticRouter{}, "telegram-1", "hi",
		func(html string) error { sent = append(sent, html); return nil },
		func() { typing++ },
	)
	require.NoError(t, err)

	require.Len(t, sent, 2)
	assert.Contains(t, sent[0], "example_tool")
	assert.Contains(t, sent[1], "<strong>done</strong>")
	assert.Equal(t, 2, typing)
	assert.Equal(t, []string{"hi"}, runner.inputs)
}

func TestRespond_CommandsBypassAgent(t *testing.T) {
	runner := &scriptedRunner{}
	var sent []string

	err := respond(context.Background(), runner, staticRouter{}, "telegram-1", "/help",
		func(html string) error { sent = append(sent, html); return nil }, func() {})
	require.NoError(t, err)

	assert.Empty(t, runner.inputs)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "<strong>commands</strong>")
}

func TestRespond_SplitsLongReplies(t *testing.T) {
	long := strings.Repeat("word ", 2000)
	runner := &scriptedRunner{updates: []core.Message{core.NewTextMessage(long)}}
	var sent []string

	err := respond(context.Background(), runner, nil, "telegram-1", "hi",
		func(html string) error { sent = append(sent, html); return nil }, func() {})
	require.NoError(t, err)

	require.Greater(t, len(sent), 1)
	for _, chunk := range sent {
		assert.LessOrEqual(t, len(chunk), maxTelegramMsgLen)
	}
}

func TestRespond_ReportsAgentError(t *testing.T) {
	runner := &scriptedRunner{err: errors.New("boom")}
	var sent []string

	err := respond(context.Background(), runner, nil, "telegram-1", "hi",
		func(html string) error { sent = append(sent, html); return nil }, func() {})
	require.NoError(t, err)
	assert.Equal(t, []string{"error: boom"}, sent)
}

func TestConversationID(t *testing.T) {
	assert.Equal(t, "telegram-42", ConversationID(42))
}
