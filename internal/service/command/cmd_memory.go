package command

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/core"
)

// MemoryBackend is what the memory commands need from storage.
type MemoryBackend interface {
	Search(ctx context.Context, namespace core.Namespace) ([]core.MemoryItem, error)
	Delete(ctx context.Context, namespace core.Namespace) (int64, error)
}

type MemoriesCommand struct {
	store     MemoryBackend
	userID    string
	formatter *ResponseFormatter
}

func NewMemoriesCommand(store MemoryBackend, userID string) *MemoriesCommand {
	return &MemoriesCommand{store: store, userID: userID, formatter: NewResponseFormatter()}
}

func (c *MemoriesCommand) Name() string        { return "memories" }
func (c *MemoriesCommand) Description() string { return "List what I remember about you" }

func (c *MemoriesCommand) Execute(ctx context.Context, conversationID string, args []string) (string, error) {
	items, err := c.store.Search(ctx, core.UserNamespace(c.userID))
	if err != nil {
		return "", fmt.Errorf("failed to load memories: %w", err)
	}

	if len(items) == 0 {
		return c.formatter.Combine(
			c.formatter.Info("Memories"),
			c.formatter.Label("Status", "nothing remembered yet"),
		), nil
	}

	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("[%s] %s", it.Kind, it.Content))
	}
	return c.formatter.Combine(
		c.formatter.Info("Memories"),
		c.formatter.Label("Count", fmt.Sprintf("%d", len(items))),
		c.formatter.List(lines),
	), nil
}

type ForgetCommand struct {
	store     MemoryBackend
	userID    string
	formatter *ResponseFormatter
}

func NewForgetCommand(store MemoryBackend, userID string) *ForgetCommand {
	return &ForgetCommand{store: store, userID: userID, formatter: NewResponseFormatter()}
}

func (c *ForgetCommand) Name() string        { return "forget" }
func (c *ForgetCommand) Description() string { return "Delete every stored memory" }

func (c *ForgetCommand) Execute(ctx context.Context, conversationID string, args []string) (string, error) {
	if len(args) == 0 || args[0] != "confirm" {
		return c.formatter.Combine(
			c.formatter.Info("Forget"),
			c.formatter.Usage("/forget confirm"),
		), nil
	}

	n, err := c.store.Delete(ctx, core.UserNamespace(c.userID))
	if err != nil {
		return "", fmt.Errorf("failed to delete memories: %w", err)
	}
	return c.formatter.Success(fmt.Sprintf("Forgot %d memories", n)), nil
}
