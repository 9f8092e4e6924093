package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interrupted(callID string) core.Message {
	return core.NewToolErrorMessage(callID, ErrToolCallInterrupted)
}

func TestSanitizeToolCalls(t *testing.T) {
	calls := func(ids ...string) []core.ToolCall {
		out := make([]core.ToolCall, 0, len(ids))
		for _, id := range ids {
			out = append(out, core.ToolCall{ID: id, Name: "example_tool"})
		}
		return out
	}

	tests := []struct {
		name     string
		input    []core.Message
		expected []core.Message
	}{
		{
			name:     "empty messages",
			input:    []core.Message{},
			expected: nil,
		},
		{
			name: "normal conversation",
			input: []core.Message{
				core.NewUserMessage("hi"),
				core.NewToolCallMessage("calling tool", calls("call_1")),
				core.NewToolResultMessage("call_1", "result"),
			},
			expected: []core.Message{
				core.NewUserMessage("hi"),
				core.NewToolCallMessage("calling tool", calls("call_1")),
				core.NewToolResultMessage("call_1", "result"),
			},
		},
		{
			name: "orphaned tool result at start",
			input: []core.Message{
				core.NewToolResultMessage("call_1", "result"),
				core.NewUserMessage("hi"),
			},
			expected: []core.Message{
				core.NewUserMessage("hi"),
			},
		},
		{
			name: "orphaned tool result after user message",
			input: []core.Message{
				core.NewUserMessage("hi"),
				core.NewToolResultMessage("call_1", "result"),
			},
			expected: []core.Message{
				core.NewUserMessage("hi"),
			},
		},
		{
			name: "tool call id mismatch",
			input: []core.Message{
				core.NewToolCallMessage("calling tool", calls("call_1")),
				core.NewToolResultMessage("call_2", "result"),
			},
			expected: []core.Message{
				core.NewToolCallMessage("calling tool", calls("call_1")),
				interrupted("call_1"),
			},
		},
		{
			name: "mixed valid and invalid results",
			input: []core.Message{
				core.NewToolCallMessage("calling tools", calls("call_1")),
				core.NewToolResultMessage("call_1", "result 1"),
				core.NewToolResultMessage("call_2", "result 2"),
			},
			expected: []core.Message{
				core.NewToolCallMessage("calling tools", calls("call_1")),
				core.NewToolResultMessage("call_1", "result 1"),
			},
		},
		{
			name: "duplicate result for one call",
			input: []core.Message{
				core.NewToolCallMessage("", calls("call_1")),
				core.NewToolResultMessage("call_1", "first"),
				core.NewToolResultMessage("call_1", "again"),
			},
			expected: []core.Message{
				core.NewToolCallMessage("", calls("call_1")),
				core.NewToolResultMessage("call_1", "first"),
			},
		},
		{
			name: "user message resets context",
			input: []core.Message{
				core.NewToolCallMessage("calling tool", calls("call_1")),
				core.NewUserMessage("interrupt"),
				core.NewToolResultMessage("call_1", "result"),
			},
			expected: []core.Message{
				core.NewToolCallMessage("calling tool", calls("call_1")),
				interrupted("call_1"),
				core.NewUserMessage("interrupt"),
			},
		},
		{
			name: "unanswered call before user message",
			input: []core.Message{
				core.NewUserMessage("hi"),
				core.NewToolCallMessage("", calls("call_1")),
				core.NewUserMessage("again"),
			},
			expected: []core.Message{
				core.NewUserMessage("hi"),
				core.NewToolCallMessage("", calls("call_1")),
				interrupted("call_1"),
				core.NewUserMessage("again"),
			},
		},
		{
			name: "unanswered call at end of window",
			input: []core.Message{
				core.NewUserMessage("hi"),
				core.NewToolCallMessage("", calls("call_1", "call_2")),
			},
			expected: []core.Message{
				core.NewUserMessage("hi"),
				core.NewToolCallMessage("", calls("call_1", "call_2")),
				interrupted("call_1"),
				interrupted("call_2"),
			},
		},
		{
			name: "partially answered batch",
			input: []core.Message{
				core.NewToolCallMessage("", calls("call_1", "call_2")),
				core.NewToolResultMessage("call_2", "second"),
				core.NewTextMessage("done"),
			},
			expected: []core.Message{
				core.NewToolCallMessage("", calls("call_1", "call_2")),
				core.NewToolResultMessage("call_2", "second"),
				interrupted("call_1"),
				core.NewTextMessage("done"),
			},
		},
		{
			name: "unanswered call followed by new tool round",
			input: []core.Message{
				core.NewToolCallMessage("", calls("call_1")),
				core.NewToolCallMessage("", calls("call_2")),
				core.NewToolResultMessage("call_2", "ok"),
			},
			expected: []core.Message{
				core.NewToolCallMessage("", calls("call_1")),
				interrupted("call_1"),
				core.NewToolCallMessage("", calls("call_2")),
				core.NewToolResultMessage("call_2", "ok"),
			},
		},
	}

	ctx := context.Background()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeToolCalls(ctx, tt.input))
		})
	}
}

type memRepo struct {
	mu   sync.Mutex
	msgs map[string][]core.Message
	err  error
}

func newMemRepo() *memRepo {
	return &memRepo{msgs: make(map[string][]core.Message)}
}

func (r *memRepo) AddMessage(_ context.Context, conversationID string, msg core.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs[conversationID] = append(r.msgs[conversationID], msg)
	return nil
}

func (r *memRepo) GetMessages(_ context.Context, conversationID string, limit int) ([]core.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.msgs[conversationID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]core.Message(nil), all...), nil
}

func TestAgent_RunPersistsTurn(t *testing.T) {
	repo := newMemRepo()
	repo.msgs["c1"] = []core.Message{
		core.NewToolResultMessage("stale", "orphan"),
		core.NewUserMessage("earlier"),
		core.NewTextMessage("earlier reply"),
	}

	gen := &scriptedGenerator{replies: []core.Message{
		core.NewToolCallMessage("", []core.ToolCall{{ID: "call_1", Name: "echo", Arguments: []byte(`{"text":"x"}`)}}),
		core.NewTextMessage("Done."),
	}}
	tools := newFakeTools()
	tools.add("echo", func(args string) (string, error) { return args, nil })
	sched := &recordingScheduler{}

	turns := NewTurnController(gen, tools, &fakeMemory{}, sched)
	a := NewAgent(turns, repo, core.ChatConfig{UserID: "u1", SystemPrompt: "{user_info}"}, 10)

	var updates []core.Message
	out, err := a.Run(context.Background(), "c1", "hello", func(m core.Message) {
		updates = append(updates, m)
	})
	require.NoError(t, err)
	assert.Equal(t, "Done.", out)
	assert.Len(t, updates, 3)

	stored := repo.msgs["c1"]
	require.Len(t, stored, 7)
	assert.Equal(t, core.KindUser, stored[3].Kind)
	assert.Equal(t, core.KindToolCalls, stored[4].Kind)
	assert.Equal(t, core.KindToolResult, stored[5].Kind)
	assert.Equal(t, "Done.", stored[6].Content)

	// The orphaned result is not sent to the model.
	first := gen.histories[0]
	require.Len(t, first, 3)
	assert.Equal(t, core.KindUser, first[0].Kind)
	assert.Equal(t, 1, sched.count())
}

func TestAgent_RunFailsWhenUserMessageNotSaved(t *testing.T) {
	repo := newMemRepo()
	repo.err = errors.New("disk full")

	gen := &scriptedGenerator{replies: []core.Message{core.NewTextMessage("hi")}}
	sched := &recordingScheduler{}
	turns := NewTurnController(gen, newFakeTools(), &fakeMemory{}, sched)
	a := NewAgent(turns, repo, core.ChatConfig{UserID: "u1"}, 10)

	_, err := a.Run(context.Background(), "c1", "hello", nil)
	require.Error(t, err)
	assert.Empty(t, gen.histories)
	assert.Equal(t, 0, sched.count())
}

func TestAgent_RecoversAfterUnknownToolAbort(t *testing.T) {
	repo := newMemRepo()
	gen := &scriptedGenerator{replies: []core.Message{
		core.NewToolCallMessage("", []core.ToolCall{{ID: "call_1", Name: "missing", Arguments: []byte(`{}`)}}),
		core.NewTextMessage("Sorry, that tool is gone."),
	}}
	sched := &recordingScheduler{}
	turns := NewTurnController(gen, newFakeTools(), &fakeMemory{}, sched)
	a := NewAgent(turns, repo, core.ChatConfig{UserID: "u1"}, 10)

	_, err := a.Run(context.Background(), "c1", "use the tool", nil)
	var unknown *core.UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, 0, sched.count())

	// The aborted call stays in storage; the next turn answers it in-band.
	require.Len(t, repo.msgs["c1"], 2)

	out, err := a.Run(context.Background(), "c1", "never mind", nil)
	require.NoError(t, err)
	assert.Equal(t, "Sorry, that tool is gone.", out)

	sent := gen.histories[1]
	require.Len(t, sent, 4)
	assert.Equal(t, core.KindUser, sent[0].Kind)
	assert.Equal(t, core.KindToolCalls, sent[1].Kind)
	assert.Equal(t, core.KindToolResult, sent[2].Kind)
	assert.Equal(t, "call_1", sent[2].ToolCallID)
	assert.True(t, sent[2].IsError)
	assert.Equal(t, "never mind", sent[3].Content)
	assert.Equal(t, 1, sched.count())
}
