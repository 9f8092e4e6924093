package agent

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
	"golang.org/x/sync/errgroup"
)

const (
	maxToolOutput  = 2000
	toolOutputHead = 500

	defaultParallelism = 8
)

type Executor struct {
	tools       core.ToolExecutor
	parallelism int
}

func NewExecutor(tools core.ToolExecutor, parallelism int) *Executor {
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}
	return &Executor{
		tools:       tools,
		parallelism: parallelism,
	}
}

// ExecuteBatch runs every call of one assistant message. Unknown names are
// rejected before anything runs. Results come back in request order, and a
// failing call becomes an error result instead of failing the batch.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []core.ToolCall) ([]core.Message, error) {
	for _, tc := range calls {
		if !e.tools.Has(tc.Name) {
			return nil, &core.UnknownToolError{Name: tc.Name, CallID: tc.ID}
		}
	}

	results := make([]core.Message, len(calls))

	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i, tc := range calls {
		g.Go(func() error {
			results[i] = e.execute(ctx, tc)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (e *Executor) execute(ctx context.Context, tc core.ToolCall) (msg core.Message) {
	logger := log.FromCtx(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("tool", tc.Name).Interface("panic", r).Msg("tool panicked")
			msg = core.NewToolErrorMessage(tc.ID, &core.ToolError{
				Name:   tc.Name,
				CallID: tc.ID,
				Err:    fmt.Errorf("panic: %v", r),
			})
		}
	}()

	logger.Info().Str("tool", tc.Name).Str("call", tc.ID).Msg("executing tool")

	out, err := e.tools.Execute(ctx, tc)
	if err != nil {
		logger.Warn().Err(err).Str("tool", tc.Name).Msg("tool failed")
		return core.NewToolErrorMessage(tc.ID, &core.ToolError{Name: tc.Name, CallID: tc.ID, Err: err})
	}
	return core.NewToolResultMessage(tc.ID, truncate(out))
}

func truncate(input string) string {
	if len(input) <= maxToolOutput {
		return input
	}

	head := input[:toolOutputHead]
	tail := input[len(input)-(maxToolOutput-toolOutputHead):]
	return fmt.Sprintf("%s\n\n... [TRUNCATED %d bytes] ...\n\n%s", head, len(input)-maxToolOutput, tail)
}
