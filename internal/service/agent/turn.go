package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const DefaultMaxToolRounds = 25

type turnState int

const (
	stateGenerating turnState = iota
	stateExecutingTools
	stateSchedulingMemory
	stateDone
)

func (s turnState) String() string {
	switch s {
	case stateGenerating:
		return "generating"
	case stateExecutingTools:
		return "executing_tools"
	case stateSchedulingMemory:
		return "scheduling_memory"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

type TurnOption func(*TurnController)

func WithMaxToolRounds(n int) TurnOption {
	return func(t *TurnController) {
		if n > 0 {
			t.maxRounds = n
		}
	}
}

func WithNow(now func() time.Time) TurnOption {
	return func(t *TurnController) { t.now = now }
}

func WithParallelism(n int) TurnOption {
	return func(t *TurnController) { t.parallelism = n }
}

// TurnController drives one turn: generate, run requested tools, generate
// again until the model answers without tools, then schedule memory
// extraction exactly once.
type TurnController struct {
	generator core.ReplyGenerator
	tools     core.ToolExecutor
	memories  core.MemoryStore
	scheduler core.Scheduler
	executor  *Executor

	maxRounds   int
	parallelism int
	now         func() time.Time
}

func NewTurnController(
	generator core.ReplyGenerator,
	tools core.ToolExecutor,
	memories core.MemoryStore,
	scheduler core.Scheduler,
	opts ...TurnOption,
) *TurnController {
	t := &TurnController{
		generator: generator,
		tools:     tools,
		memories:  memories,
		scheduler: scheduler,
		maxRounds: DefaultMaxToolRounds,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.executor = NewExecutor(tools, t.parallelism)
	return t
}

// Run advances conv until the turn is done. onAppend, if set, sees every
// message in the order it is appended. On error the messages appended so far
// stay in conv.
func (t *TurnController) Run(
	ctx context.Context,
	conv *core.Conversation,
	cfg core.ChatConfig,
	onAppend func(core.Message),
) (*core.Conversation, error) {
	logger := log.FromCtx(ctx)

	appendMsgs := func(msgs ...core.Message) {
		conv.Append(msgs...)
		if onAppend == nil {
			return
		}
		for _, m := range msgs {
			onAppend(m)
		}
	}

	state := stateGenerating
	rounds := 0

	for {
		logger.Debug().Str("conversation", conv.ID).Stringer("state", state).Msg("turn state")

		switch state {
		case stateGenerating:
			reply, err := t.generate(ctx, conv, cfg)
			if err != nil {
				return conv, &core.GenerationError{ConversationID: conv.ID, Err: err}
			}
			appendMsgs(reply)

			switch reply.Kind {
			case core.KindToolCalls:
				if len(reply.ToolCalls) == 0 {
					state = stateSchedulingMemory
					continue
				}
				state = stateExecutingTools
			default:
				state = stateSchedulingMemory
			}

		case stateExecutingTools:
			rounds++
			if rounds > t.maxRounds {
				return conv, fmt.Errorf("%w: %d rounds", core.ErrTooManyRounds, t.maxRounds)
			}

			last, _ := conv.Last()
			results, err := t.executor.ExecuteBatch(ctx, last.ToolCalls)
			if err != nil {
				logger.Error().Err(err).Str("conversation", conv.ID).Msg("tool batch rejected")
				return conv, err
			}
			appendMsgs(results...)
			state = stateGenerating

		case stateSchedulingMemory:
			h := t.scheduler.Schedule(conv.ID, cfg.Delay, cfg.ExtractionParams())
			logger.Debug().
				Str("conversation", conv.ID).
				Str("job", h.ID).
				Uint64("seq", h.Seq).
				Time("fire_at", h.FireAt).
				Msg("memory extraction scheduled")
			state = stateDone

		case stateDone:
			return conv, nil
		}
	}
}

func (t *TurnController) generate(ctx context.Context, conv *core.Conversation, cfg core.ChatConfig) (core.Message, error) {
	items, err := t.memories.Search(ctx, core.UserNamespace(cfg.UserID))
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("user", cfg.UserID).Msg("memory recall failed, continuing without memories")
		items = nil
	}

	prompt := BuildSystemPrompt(cfg.SystemPrompt, items, t.now())
	return t.generator.Generate(ctx, prompt, conv.History(), t.tools.Definitions())
}
