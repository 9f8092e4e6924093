package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx, flush := log.NewContextWithLogger(context.Background(), false)
	t.Cleanup(flush)

	db, err := NewDB(ctx, filepath.Join(t.TempDir(), "data", "tusk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMessagesRepo_RoundTrip(t *testing.T) {
	repo := NewMessagesRepo(newTestDB(t))
	ctx := t.Context()

	msgs := []core.Message{
		core.NewUserMessage("hi"),
		core.NewToolCallMessage("checking", []core.ToolCall{{ID: "c1", Name: "example_tool", Arguments: json.RawMessage(`{"query":"x"}`)}}),
		core.NewToolErrorMessage("c1", assert.AnError),
		{Kind: core.KindText, Content: "done", Reasoning: "thought"},
	}
	for _, m := range msgs {
		require.NoError(t, repo.AddMessage(ctx, "conv", m))
	}
	require.NoError(t, repo.AddMessage(ctx, "other", core.NewUserMessage("elsewhere")))

	got, err := repo.GetMessages(ctx, "conv", 0)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, msgs[0], got[0])
	assert.Equal(t, core.KindToolCalls, got[1].Kind)
	assert.JSONEq(t, `{"query":"x"}`, string(got[1].ToolCalls[0].Arguments))
	assert.True(t, got[2].IsError)
	assert.Equal(t, "c1", got[2].ToolCallID)
	assert.Equal(t, msgs[3], got[3])

	last, err := repo.GetMessages(ctx, "conv", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "done", last[1].Content)

	require.NoError(t, repo.Clear(ctx, "conv"))
	got, err = repo.GetMessages(ctx, "conv", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoriesRepo_UpsertAndSearch(t *testing.T) {
	repo := NewMemoriesRepo(newTestDB(t))
	ctx := t.Context()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Put(ctx, core.MemoryItem{Namespace: core.Namespace{"u1"}, Key: "k1", Content: "likes tea", Kind: "preference"}))
	require.NoError(t, repo.Put(ctx, core.MemoryItem{Namespace: core.Namespace{"u1", "work"}, Key: "k2", Content: "uses go", Kind: "fact"}))
	require.NoError(t, repo.Put(ctx, core.MemoryItem{Namespace: core.Namespace{"u10"}, Key: "k3", Content: "other user"}))

	now = now.Add(time.Hour)
	require.NoError(t, repo.Put(ctx, core.MemoryItem{Namespace: core.Namespace{"u1"}, Key: "k1", Content: "likes green tea", Kind: "preference"}))

	items, err := repo.Search(ctx, core.UserNamespace("u1"))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "likes green tea", items[0].Content)
	assert.True(t, items[0].CreatedAt.Before(items[0].UpdatedAt))
	assert.Equal(t, core.Namespace{"u1", "work"}, items[1].Namespace)

	n, err := repo.Delete(ctx, core.UserNamespace("u1"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	items, err = repo.Search(ctx, core.UserNamespace("u10"))
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestMemoriesRepo_RequiresKey(t *testing.T) {
	repo := NewMemoriesRepo(newTestDB(t))
	assert.Error(t, repo.Put(t.Context(), core.MemoryItem{Namespace: core.Namespace{"u"}}))
}

func TestCachedMemoryStore_InvalidatesOnPut(t *testing.T) {
	repo := NewMemoriesRepo(newTestDB(t))
	cached, err := NewCachedMemoryStore(repo, 100)
	require.NoError(t, err)
	defer cached.Close()
	ctx := t.Context()

	items, err := cached.Search(ctx, core.UserNamespace("u1"))
	require.NoError(t, err)
	assert.Empty(t, items)

	// a write to a child namespace must be visible from the parent
	require.NoError(t, cached.Put(ctx, core.MemoryItem{Namespace: core.Namespace{"u1", "work"}, Key: "k", Content: "c"}))
	items, err = cached.Search(ctx, core.UserNamespace("u1"))
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = cached.Delete(ctx, core.UserNamespace("u1"))
	require.NoError(t, err)
	items, err = cached.Search(ctx, core.Namespace{"u1", "work"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestJobsRepo_OrderedBySeq(t *testing.T) {
	repo := NewJobsRepo(newTestDB(t))
	ctx := t.Context()
	fireAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	params := core.ExtractionParams{UserID: "u1", MemoryTypes: []string{"fact"}}

	maxSeq, err := repo.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, maxSeq)

	require.NoError(t, repo.Save(ctx, core.JobRecord{ID: "j2", ConversationID: "c", Seq: 2, FireAt: fireAt, Params: params}))
	// stale writer loses
	require.NoError(t, repo.Save(ctx, core.JobRecord{ID: "j1", ConversationID: "c", Seq: 1, FireAt: fireAt}))
	// stale delete is a no-op
	require.NoError(t, repo.Delete(ctx, "c", 1))

	jobs, err := repo.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "j2", jobs[0].ID)
	assert.EqualValues(t, 2, jobs[0].Seq)
	assert.True(t, fireAt.Equal(jobs[0].FireAt))
	assert.Equal(t, params, jobs[0].Params)

	maxSeq, err = repo.MaxSeq(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, maxSeq)

	require.NoError(t, repo.Delete(ctx, "c", 2))
	jobs, err = repo.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
