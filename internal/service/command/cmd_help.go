package command

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/core"
)

type HelpCommand struct {
	list      func() []core.Command
	formatter *ResponseFormatter
}

func NewHelpCommand(list func() []core.Command) *HelpCommand {
	return &HelpCommand{list: list, formatter: NewResponseFormatter()}
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "List commands" }

func (c *HelpCommand) Execute(ctx context.Context, conversationID string, args []string) (string, error) {
	cmds := c.list()
	lines := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		lines = append(lines, fmt.Sprintf("`/%s` %s", cmd.Name(), cmd.Description()))
	}
	return c.formatter.Combine(c.formatter.Info("Commands"), c.formatter.List(lines)), nil
}
