package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/conv"
	"github.com/sandevgo/tuskmem/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const (
	baseContextKey    = "base_context"
	maxTelegramMsgLen = 4000 // safety margin below 4096
)

// Runner answers one user message, reporting intermediate messages.
type Runner interface {
	Run(ctx context.Context, conversationID, input string, onUpdate func(core.Message)) (string, error)
}

type Bot struct {
	bot     *tele.Bot
	agent   Runner
	router  core.CmdRouter
	ownerID int64
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	agent Runner,
	router core.CmdRouter,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:     b,
		agent:   agent,
		router:  router,
		ownerID: cfg.OwnerID,
	}

	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	// owner only
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil || c.Sender().ID != bot.ownerID {
				return nil
			}
			return next(c)
		}
	})

	b.Handle(tele.OnText, bot.handleMessage)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func ConversationID(chatID int64) string {
	return fmt.Sprintf("telegram-%d", chatID)
}

func (b *Bot) handleMessage(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	_ = c.Notify(tele.Typing)

	return respond(ctx, b.agent, b.router, ConversationID(c.Chat().ID), c.Text(),
		func(html string) error {
			return c.Send(html, tele.ModeHTML)
		},
		func() { _ = c.Notify(tele.Typing) },
	)
}

// respond routes text to a command or the agent and sends every reply as
// Telegram HTML, split to fit the message size limit.
func respond(
	ctx context.Context,
	agent Runner,
	router core.CmdRouter,
	conversationID, text string,
	send func(html string) error,
	typing func(),
) error {
	logger := log.FromCtx(ctx)

	sendMarkdown := func(md string) {
		html := strings.TrimSpace(conv.MarkdownToTelegramHTML([]byte(md)))
		if html == "" {
			return
		}
		for i, chunk := range conv.SplitMessage(html, maxTelegramMsgLen) {
			if err := send(chunk); err != nil {
				logger.Error().Err(err).Int("chunk", i).Int("len", len(chunk)).Msg("failed to send telegram message")
				return
			}
		}
	}

	if router != nil {
		if out, ok := router.Execute(ctx, conversationID, text); ok {
			sendMarkdown(out)
			return nil
		}
	}

	_, err := agent.Run(ctx, conversationID, text, func(msg core.Message) {
		if msg.IsAssistant() && msg.Content != "" {
			sendMarkdown(msg.Content)
			typing()
		}
		for _, tc := range msg.ToolCalls {
			sendMarkdown(fmt.Sprintf("🛠 Executing: `%s`", tc.Name))
			typing()
		}
	})
	if err != nil {
		logger.Error().Err(err).Str("conversation", conversationID).Msg("agent run failed")
		return send(fmt.Sprintf("error: %v", err))
	}
	return nil
}
