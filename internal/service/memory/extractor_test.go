package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticHistory struct {
	msgs []core.Message
	err  error
}

func (h *staticHistory) AddMessage(ctx context.Context, conversationID string, msg core.Message) error {
	h.msgs = append(h.msgs, msg)
	return nil
}

func (h *staticHistory) GetMessages(ctx context.Context, conversationID string, limit int) ([]core.Message, error) {
	return h.msgs, h.err
}

type memStore struct {
	mu    sync.Mutex
	items map[string]core.MemoryItem
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string]core.MemoryItem)}
}

func (s *memStore) Search(ctx context.Context, namespace core.Namespace) ([]core.MemoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.MemoryItem
	for _, it := range s.items {
		out = append(out, it)
	}
	return out, nil
}

func (s *memStore) Put(ctx context.Context, item core.MemoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.Namespace.String()+"|"+item.Key] = item
	return nil
}

type replyFunc func(prompt string) (core.Message, error)

type fakeGenerator struct {
	calls   int
	prompts []string
	reply   replyFunc
}

func (g *fakeGenerator) Generate(ctx context.Context, systemPrompt string, history []core.Message, tools []core.Tool) (core.Message, error) {
	g.calls++
	prompt := history[len(history)-1].Content
	g.prompts = append(g.prompts, prompt)
	return g.reply(prompt)
}

func fastRetrier() *retry.Retrier {
	return retry.NewRetrier(&retry.Config{MaxRetries: 2, BackoffFactor: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})
}

func conversation() *staticHistory {
	return &staticHistory{msgs: []core.Message{
		core.NewSystemMessage("ignored system"),
		core.NewUserMessage("I am a Go developer and I like green tea"),
		core.NewToolCallMessage("", []core.ToolCall{{ID: "c1", Name: "example_tool"}}),
		core.NewToolResultMessage("c1", "tool output"),
		core.NewTextMessage("Noted!"),
	}}
}

func TestExtractor_StoresFactsUnderUserNamespace(t *testing.T) {
	gen := &fakeGenerator{reply: func(string) (core.Message, error) {
		return core.NewTextMessage("Sure:\n```json\n[" +
			`{"fact":"User is a Go developer","category":"user_fact"},` +
			`{"fact":"User likes green tea","category":"preference"},` +
			`{"fact":"user  likes GREEN tea","category":"preference"},` +
			`{"fact":"It is sunny","category":"weather"}` +
			"]\n```"), nil
	}}
	store := newMemStore()
	ex := NewExtractor(conversation(), store, gen, fastRetrier())

	err := ex.Extract(t.Context(), "conv", core.ExtractionParams{UserID: "u1", MemoryTypes: []string{"user_fact", "preference"}})
	require.NoError(t, err)

	require.Equal(t, 1, gen.calls)
	assert.NotContains(t, gen.prompts[0], "ignored system")
	assert.NotContains(t, gen.prompts[0], "tool output")
	assert.Contains(t, gen.prompts[0], "USER: I am a Go developer")
	assert.Contains(t, gen.prompts[0], "[user_fact, preference]")

	items, _ := store.Search(t.Context(), core.UserNamespace("u1"))
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, core.Namespace{"u1"}, it.Namespace)
		assert.Equal(t, FactKey(it.Content), it.Key)
	}
}

func TestExtractor_IsIdempotent(t *testing.T) {
	gen := &fakeGenerator{reply: func(string) (core.Message, error) {
		return core.NewTextMessage(`[{"fact":"User likes tea","category":"preference"}]`), nil
	}}
	store := newMemStore()
	ex := NewExtractor(conversation(), store, gen, fastRetrier())
	params := core.ExtractionParams{UserID: "u1", MemoryTypes: []string{"preference"}, Target: "assistant"}

	require.NoError(t, ex.Extract(t.Context(), "conv", params))
	require.NoError(t, ex.Extract(t.Context(), "conv", params))

	items, _ := store.Search(t.Context(), nil)
	require.Len(t, items, 1)
	assert.Equal(t, core.Namespace{"u1", "assistant"}, items[0].Namespace)
}

func TestExtractor_RetriesGenerator(t *testing.T) {
	attempts := 0
	gen := &fakeGenerator{reply: func(string) (core.Message, error) {
		attempts++
		if attempts == 1 {
			return core.Message{}, errors.New("rate limited")
		}
		return core.NewTextMessage(`[]`), nil
	}}
	ex := NewExtractor(conversation(), newMemStore(), gen, fastRetrier())

	require.NoError(t, ex.Extract(t.Context(), "conv", core.ExtractionParams{UserID: "u1"}))
	assert.Equal(t, 2, attempts)
}

func TestExtractor_Errors(t *testing.T) {
	tests := []struct {
		name    string
		history *staticHistory
		reply   string
		params  core.ExtractionParams
		wantErr string
	}{
		{name: "missing user", history: conversation(), params: core.ExtractionParams{}, wantErr: "user id"},
		{name: "history failure", history: &staticHistory{err: errors.New("db down")}, params: core.ExtractionParams{UserID: "u"}, wantErr: "db down"},
		{name: "no json", history: conversation(), reply: "nothing here", params: core.ExtractionParams{UserID: "u"}, wantErr: "no JSON array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{reply: func(string) (core.Message, error) { return core.NewTextMessage(tt.reply), nil }}
			err := NewExtractor(tt.history, newMemStore(), gen, fastRetrier()).Extract(t.Context(), "conv", tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExtractor_EmptyConversationSkipsModel(t *testing.T) {
	gen := &fakeGenerator{reply: func(string) (core.Message, error) { return core.Message{}, errors.New("unexpected") }}
	ex := NewExtractor(&staticHistory{msgs: []core.Message{core.NewSystemMessage("only system")}}, newMemStore(), gen, fastRetrier())

	require.NoError(t, ex.Extract(t.Context(), "conv", core.ExtractionParams{UserID: "u"}))
	assert.Zero(t, gen.calls)
}

func TestFactKey_Normalises(t *testing.T) {
	assert.Equal(t, FactKey("User likes tea"), FactKey("  user   LIKES tea "))
	assert.NotEqual(t, FactKey("User likes tea"), FactKey("User likes coffee"))
}
