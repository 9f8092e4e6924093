package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

const ExampleToolName = "example_tool"

const exampleToolSchema = `
{
  "type": "object",
  "properties": {
    "query": { "type": "string", "description": "What the user asked for" }
  },
  "required": ["query"]
}
`

func ExampleTool() Definition {
	return Definition{
		Name:        ExampleToolName,
		Description: "Use this tool when the user asks to do a tool call.",
		Schema:      exampleToolSchema,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var input struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(args, &input); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			return "You asked: " + input.Query, nil
		},
	}
}

// RegisterBuiltins adds the tools that ship with the binary. fetch and
// workspace may be nil to leave network or file access out.
func RegisterBuiltins(r *Registry, fetch *Fetch, workspace *Workspace) error {
	defs := []Definition{ExampleTool()}
	if fetch != nil {
		defs = append(defs, fetch.Definitions()...)
	}
	if workspace != nil {
		defs = append(defs, workspace.Definitions()...)
	}
	return r.Register(defs...)
}
