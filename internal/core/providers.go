package core

import (
	"context"
	"time"
)

// ReplyGenerator produces the next assistant message. A returned message of
// kind KindToolCalls asks the caller to run tools before generating again.
type ReplyGenerator interface {
	Generate(ctx context.Context, systemPrompt string, history []Message, tools []Tool) (Message, error)
}

type ToolExecutor interface {
	Has(name string) bool
	Execute(ctx context.Context, call ToolCall) (string, error)
	Definitions() []Tool
}

type MemoryStore interface {
	Search(ctx context.Context, namespace Namespace) ([]MemoryItem, error)
	Put(ctx context.Context, item MemoryItem) error
}

// ExtractionTrigger is invoked by the scheduler once a debounced job fires.
type ExtractionTrigger interface {
	Extract(ctx context.Context, conversationID string, params ExtractionParams) error
}

type JobHandle struct {
	ID             string
	ConversationID string
	Seq            uint64
	FireAt         time.Time
	Params         ExtractionParams
}

type Scheduler interface {
	Schedule(conversationID string, delay time.Duration, params ExtractionParams) JobHandle
	Cancel(conversationID string) bool
}
