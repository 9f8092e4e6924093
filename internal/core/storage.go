package core

import (
	"context"
	"time"
)

type MessagesRepository interface {
	AddMessage(ctx context.Context, conversationID string, msg Message) error
	GetMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
}

// JobRecord is the persisted form of a live extraction job.
type JobRecord struct {
	ID             string
	ConversationID string
	Seq            uint64
	FireAt         time.Time
	Params         ExtractionParams
}

// JobJournal keeps live jobs across restarts. Implementations must apply
// Save only when seq is newer than the stored one and Delete only on an
// exact seq match.
type JobJournal interface {
	Save(ctx context.Context, job JobRecord) error
	Delete(ctx context.Context, conversationID string, seq uint64) error
	Pending(ctx context.Context) ([]JobRecord, error)
	MaxSeq(ctx context.Context) (uint64, error)
}

type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, conversationID string, args []string) (string, error)
}

type CmdRouter interface {
	Execute(ctx context.Context, conversationID, input string) (string, bool)
	ListCommands() []Command
}
