package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/tuskmem/internal/core"
)

type ToolLister interface {
	Definitions() []core.Tool
}

type ToolsCommand struct {
	tools     ToolLister
	formatter *ResponseFormatter
}

func NewToolsCommand(tools ToolLister) *ToolsCommand {
	return &ToolsCommand{tools: tools, formatter: NewResponseFormatter()}
}

func (c *ToolsCommand) Name() string        { return "tools" }
func (c *ToolsCommand) Description() string { return "Show available tools" }

func (c *ToolsCommand) Execute(ctx context.Context, conversationID string, args []string) (string, error) {
	tools := c.tools.Definitions()
	if len(tools) == 0 {
		return c.formatter.Combine(
			c.formatter.Info("Tools"),
			c.formatter.Label("Status", "No tools are registered."),
			c.formatter.Tip("Check mcp_config.json if MCP tools should be available"),
		), nil
	}

	lines := make([]string, len(tools))
	for i, tool := range tools {
		lines[i] = fmt.Sprintf("**%s** %s", tool.Function.Name, shortDescription(tool.Function.Description))
	}

	return c.formatter.Combine(
		c.formatter.Info("Tools"),
		c.formatter.Label("Registered", fmt.Sprintf("%d", len(tools))),
		c.formatter.List(lines),
	), nil
}

func shortDescription(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 120 {
		s = string(r[:117]) + "..."
	}
	return s
}
