package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/service/ui"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const DefaultConversationID = "cli-local"

type Runner interface {
	Run(ctx context.Context, conversationID, input string, onUpdate func(core.Message)) (string, error)
}

type ChatOptions struct {
	ConversationID string
	// HistoryFile keeps input history between sessions; empty disables it.
	HistoryFile string
	// In defaults to os.Stdin. Any other reader is treated as non-interactive.
	In  io.Reader
	Out io.Writer
}

// Chat is a line oriented terminal conversation.
type Chat struct {
	agent          Runner
	router         core.CmdRouter
	rl             *readline.Instance
	closeOnce      sync.Once
	out            io.Writer
	conversationID string
}

func NewChat(agent Runner, router core.CmdRouter, opts ChatOptions) (*Chat, error) {
	if opts.ConversationID == "" {
		opts.ConversationID = DefaultConversationID
	}

	cfg := &readline.Config{
		Prompt:          ui.PromptStyle.Render(">>> "),
		HistoryFile:     opts.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	}
	if opts.Out != nil {
		cfg.Stdout = opts.Out
		cfg.Stderr = opts.Out
	}
	if opts.In != nil && opts.In != io.Reader(os.Stdin) {
		rc, ok := opts.In.(io.ReadCloser)
		if !ok {
			rc = io.NopCloser(opts.In)
		}
		cfg.Stdin = rc
		cfg.FuncIsTerminal = func() bool { return false }
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init line editor: %w", err)
	}

	return &Chat{
		agent:          agent,
		router:         router,
		rl:             rl,
		out:            rl.Stdout(),
		conversationID: opts.ConversationID,
	}, nil
}

// Run reads lines until EOF, "exit", Ctrl+C on an empty line or ctx
// cancellation. The line editor is closed on return.
func (c *Chat) Run(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	defer c.close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.close()
		case <-done:
		}
	}()

	fmt.Fprintln(c.out, ui.DescStyle.Render("Type 'exit' to quit, /help for commands."))

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					return nil
				}
				continue
			}
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}

		if c.router != nil {
			if out, ok := c.router.Execute(ctx, c.conversationID, line); ok {
				fmt.Fprintln(c.out, out)
				continue
			}
		}

		_, err = c.agent.Run(ctx, c.conversationID, line, c.print)
		if err != nil {
			logger.Error().Err(err).Msg("agent run failed")
			fmt.Fprintln(c.out, ui.ErrorStyle.Render("Error: "+err.Error()))
		}
	}
}

func (c *Chat) close() {
	c.closeOnce.Do(func() { _ = c.rl.Close() })
}

func (c *Chat) print(msg core.Message) {
	if msg.Reasoning != "" {
		fmt.Fprintln(c.out, ui.ReasoningStyle.Render("[Thinking]\n"+msg.Reasoning))
	}
	if msg.IsAssistant() && msg.Content != "" {
		fmt.Fprintln(c.out, msg.Content)
	}
	for _, tc := range msg.ToolCalls {
		fmt.Fprintln(c.out, ui.ToolStyle.Render(fmt.Sprintf("  > Calling %s %s", tc.Name, string(tc.Arguments))))
	}
}
