package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sandevgo/tuskmem/internal/core"
)

var _ core.CmdRouter = (*Router)(nil)

type Router struct {
	commands map[string]core.Command
}

func New(commands []core.Command) *Router {
	c := &Router{
		commands: make(map[string]core.Command),
	}

	for _, cmd := range commands {
		c.commands[cmd.Name()] = cmd
	}
	c.commands["help"] = NewHelpCommand(c.ListCommands)
	return c
}

// Execute runs input when it is a slash command. The second result reports
// whether input was handled here.
func (c *Router) Execute(ctx context.Context, conversationID, input string) (string, bool) {
	if !strings.HasPrefix(input, "/") {
		return "", false
	}

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return "", false
	}
	name := strings.TrimPrefix(parts[0], "/")
	// telegram appends the bot name in groups: /help@tusk_bot
	name, _, _ = strings.Cut(name, "@")
	args := parts[1:]

	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Sprintf("Unknown command: /%s", name), true
	}

	result, err := cmd.Execute(ctx, conversationID, args)
	if err != nil {
		return NewResponseFormatter().Error(err), true
	}
	return result, true
}

func (c *Router) ListCommands() []core.Command {
	res := make([]core.Command, 0, len(c.commands))
	for _, cmd := range c.commands {
		res = append(res, cmd)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name() < res[j].Name() })
	return res
}
