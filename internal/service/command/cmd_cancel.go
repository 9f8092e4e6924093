package command

import (
	"context"

	"github.com/sandevgo/tuskmem/internal/core"
)

type CancelCommand struct {
	scheduler core.Scheduler
	formatter *ResponseFormatter
}

func NewCancelCommand(scheduler core.Scheduler) *CancelCommand {
	return &CancelCommand{scheduler: scheduler, formatter: NewResponseFormatter()}
}

func (c *CancelCommand) Name() string        { return "cancel" }
func (c *CancelCommand) Description() string { return "Cancel the pending memory extraction" }

func (c *CancelCommand) Execute(ctx context.Context, conversationID string, args []string) (string, error) {
	if c.scheduler.Cancel(conversationID) {
		return c.formatter.Success("Pending memory extraction cancelled"), nil
	}
	return c.formatter.Label("Status", "no extraction pending"), nil
}
