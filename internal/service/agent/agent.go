package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
)

// Agent hosts turns for transports: it loads and repairs history, persists
// every message the turn appends and reports them as they arrive.
type Agent struct {
	turns      *TurnController
	repo       core.MessagesRepository
	chat       core.ChatConfig
	windowSize int
}

func NewAgent(
	turns *TurnController,
	repo core.MessagesRepository,
	chat core.ChatConfig,
	windowSize int,
) *Agent {
	return &Agent{
		turns:      turns,
		repo:       repo,
		chat:       chat,
		windowSize: windowSize,
	}
}

func (a *Agent) ChatConfig() core.ChatConfig {
	return a.chat
}

func (a *Agent) Run(ctx context.Context, conversationID string, input string, onUpdate func(core.Message)) (string, error) {
	logger := log.FromCtx(ctx)

	history, err := a.repo.GetMessages(ctx, conversationID, a.windowSize)
	if err != nil {
		return "", fmt.Errorf("failed to fetch history: %w", err)
	}
	history = SanitizeToolCalls(ctx, history)

	userMsg := core.NewUserMessage(input)
	if err := a.repo.AddMessage(ctx, conversationID, userMsg); err != nil {
		return "", fmt.Errorf("failed to save user message: %w", err)
	}

	conv := core.NewConversation(conversationID, history...)
	conv.Append(userMsg)

	conv, err = a.turns.Run(ctx, conv, a.chat, func(msg core.Message) {
		if err := a.repo.AddMessage(ctx, conversationID, msg); err != nil {
			logger.Error().Err(err).Str("kind", string(msg.Kind)).Msg("failed to save message")
		}
		if onUpdate != nil {
			onUpdate(msg)
		}
	})
	if err != nil {
		return "", err
	}

	last, ok := conv.Last()
	if !ok || !last.IsAssistant() {
		return "", nil
	}
	return last.Content, nil
}

// ErrToolCallInterrupted answers a tool call whose result was never
// recorded, for instance because its turn aborted.
var ErrToolCallInterrupted = errors.New("tool call was interrupted before it returned a result")

// SanitizeToolCalls repairs a history window so every assistant tool call is
// followed by exactly one result before the next non-tool message. Results
// that answer no pending call are dropped; calls left without a result get
// an error result. Providers reject either defect.
func SanitizeToolCalls(ctx context.Context, msgs []core.Message) []core.Message {
	logger := log.FromCtx(ctx)

	var out []core.Message
	var open []core.ToolCall
	pending := make(map[string]struct{})

	closeRound := func() {
		for _, tc := range open {
			if _, ok := pending[tc.ID]; !ok {
				continue
			}
			logger.Debug().Str("call", tc.ID).Str("tool", tc.Name).Msg("answering interrupted tool call")
			out = append(out, core.NewToolErrorMessage(tc.ID, ErrToolCallInterrupted))
		}
		open = nil
		pending = make(map[string]struct{})
	}

	for _, m := range msgs {
		switch m.Kind {
		case core.KindToolCalls:
			closeRound()
			open = m.ToolCalls
			for _, tc := range m.ToolCalls {
				pending[tc.ID] = struct{}{}
			}
			out = append(out, m)
		case core.KindToolResult:
			if _, ok := pending[m.ToolCallID]; !ok {
				logger.Debug().Str("call", m.ToolCallID).Msg("dropping orphaned tool result")
				continue
			}
			delete(pending, m.ToolCallID)
			out = append(out, m)
		default:
			closeRound()
			out = append(out, m)
		}
	}
	closeRound()
	return out
}
