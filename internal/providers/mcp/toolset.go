package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/sandevgo/tuskmem/internal/providers/tools"
	"github.com/sandevgo/tuskmem/pkg/log"
)

type Timeouts struct {
	Connect  time.Duration
	ToolList time.Duration
	ToolCall time.Duration
}

func NewDefaultTimeouts() *Timeouts {
	return &Timeouts{
		Connect:  30 * time.Second,
		ToolList: 5 * time.Second,
		ToolCall: 2 * time.Minute,
	}
}

type Registrar interface {
	Register(defs ...tools.Definition) error
}

// Toolset connects the configured MCP servers and exposes their tools as
// "<server>.<tool>" in the registry.
type Toolset struct {
	storage  Storage
	pool     *Pool
	registry Registrar
	timeouts *Timeouts
}

func NewToolset(storage Storage, pool *Pool, registry Registrar) *Toolset {
	return &Toolset{
		storage:  storage,
		pool:     pool,
		registry: registry,
		timeouts: NewDefaultTimeouts(),
	}
}

func (t *Toolset) WithTimeouts(timeouts *Timeouts) *Toolset {
	t.timeouts = timeouts
	return t
}

// Start connects every enabled server. A server that fails to connect is
// logged and skipped; only an unreadable config fails the service.
func (t *Toolset) Start(ctx context.Context) error {
	cfg, err := t.storage.Load(ctx)
	if err != nil {
		return fmt.Errorf("load mcp config: %w", err)
	}

	names := make([]string, 0, len(cfg.MCPServers))
	for name := range cfg.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		srv := cfg.MCPServers[name]
		if srv.Disabled {
			continue
		}
		if err := t.connect(ctx, name, srv); err != nil {
			log.FromCtx(ctx).Error().Err(err).Str("server", name).Msg("mcp server unavailable")
		}
	}
	return nil
}

func (t *Toolset) Shutdown(ctx context.Context) error {
	return t.pool.Close()
}

func (t *Toolset) connect(ctx context.Context, name string, cfg ServerConfig) error {
	logger := log.FromCtx(ctx).With().Str("server", name).Logger()
	logger.Info().Str("url", cfg.URL).Str("command", cfg.Command).Msg("starting mcp server")

	connectCtx, cancel := context.WithTimeout(ctx, t.timeouts.Connect)
	defer cancel()

	cli, err := t.pool.Add(connectCtx, name, cfg)
	if err != nil {
		return err
	}

	listCtx, cancelList := context.WithTimeout(ctx, t.timeouts.ToolList)
	defer cancelList()

	resp, err := cli.ListTools(listCtx, mcpproto.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	registered := 0
	for _, tool := range resp.Tools {
		def, err := t.definition(name, tool)
		if err != nil {
			logger.Warn().Err(err).Str("tool", tool.Name).Msg("skipping mcp tool")
			continue
		}
		if err := t.registry.Register(def); err != nil {
			logger.Warn().Err(err).Str("tool", tool.Name).Msg("skipping mcp tool")
			continue
		}
		registered++
	}

	logger.Info().Int("tools", registered).Msg("mcp server connected")
	return nil
}

func (t *Toolset) definition(server string, tool mcpproto.Tool) (tools.Definition, error) {
	schema, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return tools.Definition{}, fmt.Errorf("marshal input schema: %w", err)
	}

	remoteName := tool.Name
	return tools.Definition{
		Name:        fmt.Sprintf("%s.%s", server, remoteName),
		Description: tool.Description,
		Schema:      string(schema),
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return t.call(ctx, server, remoteName, args)
		},
	}, nil
}

func (t *Toolset) call(ctx context.Context, server, name string, args json.RawMessage) (string, error) {
	cli, ok := t.pool.Get(server)
	if !ok || cli.IsClosed() {
		return "", fmt.Errorf("server %s is not available", server)
	}

	argsMap := make(map[string]any)
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err != nil {
			return "", fmt.Errorf("invalid json arguments: %w", err)
		}
	}

	req := mcpproto.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = argsMap

	callCtx, cancel := context.WithTimeout(ctx, t.timeouts.ToolCall)
	defer cancel()

	res, err := cli.CallTool(callCtx, req)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, content := range res.Content {
		switch c := content.(type) {
		case mcpproto.TextContent:
			sb.WriteString(c.Text)
			sb.WriteString("\n")
		case *mcpproto.TextContent:
			sb.WriteString(c.Text)
			sb.WriteString("\n")
		}
	}
	output := sb.String()

	if res.IsError {
		return "", fmt.Errorf("tool execution failed: %s", strings.TrimSpace(output))
	}
	return output, nil
}
