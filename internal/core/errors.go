package core

import (
	"errors"
	"fmt"
)

var ErrTooManyRounds = errors.New("tool round limit reached")

// GenerationError aborts a turn: the reply generator failed.
type GenerationError struct {
	ConversationID string
	Err            error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for %s: %v", e.ConversationID, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// UnknownToolError is a configuration defect: the model asked for a tool
// that is not registered. It is not retried.
type UnknownToolError struct {
	Name   string
	CallID string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q (call %s)", e.Name, e.CallID)
}

// ToolError is recorded in-band as a tool result; the turn continues.
type ToolError struct {
	Name   string
	CallID string
	Err    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

func IsUnknownTool(err error) bool {
	var target *UnknownToolError
	return errors.As(err, &target)
}
