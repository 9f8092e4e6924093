package core

import (
	"strings"
	"time"
)

// Namespace is a hierarchical key prefix memories are grouped under.
type Namespace []string

func (n Namespace) String() string {
	return strings.Join(n, "/")
}

func ParseNamespace(s string) Namespace {
	if s == "" {
		return nil
	}
	return strings.Split(s, "/")
}

type MemoryItem struct {
	Namespace Namespace `json:"namespace"`
	Key       string    `json:"key"`
	Content   string    `json:"content"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExtractionParams travel with a scheduled job to the extraction trigger.
type ExtractionParams struct {
	UserID      string   `json:"user_id"`
	MemoryTypes []string `json:"memory_types"`
	Target      string   `json:"target,omitempty"`
}

// UserNamespace is where memories of a single user are recalled from.
func UserNamespace(userID string) Namespace {
	return Namespace{userID}
}
