package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DanielJandric/embeddingsall-sub000/internal/logging"
	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

// Executor runs the phases of a plan against one ExecContext.
type Executor struct {
	cfg    Config
	logger *logging.Logger
}

// NewExecutor creates an executor.
func NewExecutor(cfg Config, logger *logging.Logger) *Executor {
	return &Executor{cfg: cfg.withDefaults(), logger: logger}
}

// Execute runs every phase of p in order. Step failures are recorded in
// memory and never abort the run; only caller cancellation does.
func (e *Executor) Execute(ctx context.Context, p plan.Plan, ec *plan.ExecContext) error {
	for i, phase := range p.Phases() {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.runPhase(ctx, i, phase, ec)
	}
	return ctx.Err()
}

func (e *Executor) runPhase(ctx context.Context, index int, phase plan.Phase, ec *plan.ExecContext) {
	var g errgroup.Group
	g.SetLimit(e.cfg.MaxParallelSteps)

	for _, step := range phase {
		g.Go(func() error {
			v, failure := e.runStep(ctx, step, ec)
			if failure != nil {
				ec.Store(step.Name(), *failure)
				level := e.logger.Warn
				if step.Optional() {
					level = e.logger.Debug
				}
				level(ctx, "step failed",
					zap.Int("phase", index),
					zap.String("step", step.Name()),
					zap.Bool("timed_out", failure.TimedOut),
					zap.String("error", failure.Message),
				)
				return nil
			}
			ec.Store(step.Name(), v)
			return nil
		})
	}
	// Steps never return errors to the group; Wait only joins.
	_ = g.Wait()
}

type stepResult struct {
	value any
	err   error
}

// runStep runs one step under its own deadline. A step that ignores the
// deadline is abandoned; its goroutine exits when the step returns.
func (e *Executor) runStep(ctx context.Context, step plan.Step, ec *plan.ExecContext) (any, *plan.StepFailure) {
	stepCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()

	done := make(chan stepResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stepResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := step.Run(stepCtx, ec)
		done <- stepResult{value: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, &plan.StepFailure{
				Step:     step.Name(),
				Message:  res.err.Error(),
				TimedOut: errors.Is(res.err, context.DeadlineExceeded),
			}
		}
		return res.value, nil
	case <-stepCtx.Done():
		return nil, &plan.StepFailure{
			Step:     step.Name(),
			Message:  stepCtx.Err().Error(),
			TimedOut: errors.Is(stepCtx.Err(), context.DeadlineExceeded),
		}
	}
}
