// Package pipeline wires the long-running workers together and supervises
// them for the life of the process.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner is a long-running worker that stops when its context is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

type namedRunner struct {
	name   string
	runner Runner
}

// Orchestrator supervises all pipeline goroutines: the trade feed, executor,
// analyzer, notifier, persister, balance refresher, stats logger, and the
// archive cron. If any worker fails with a non-context error the shared
// context is cancelled and every other worker shuts down.
type Orchestrator struct {
	runners []namedRunner
	logger  *slog.Logger
}

// NewOrchestrator creates an empty Orchestrator; register workers with Add.
func NewOrchestrator(logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		logger: logger.With(slog.String("component", "orchestrator")),
	}
}

// Add registers a worker under a name used in logs and error messages.
func (o *Orchestrator) Add(name string, r Runner) {
	o.runners = append(o.runners, namedRunner{name: name, runner: r})
}

// Run starts every registered worker in its own goroutine and blocks until
// all have stopped. Context cancellation is a clean shutdown; any other
// error is propagated.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("orchestrator starting", slog.Int("workers", len(o.runners)))

	g, ctx := errgroup.WithContext(ctx)

	for _, nr := range o.runners {
		g.Go(func() error {
			o.logger.Info("worker starting", slog.String("worker", nr.name))
			err := nr.runner.Run(ctx)
			if ctx.Err() != nil {
				o.logger.Info("worker stopped", slog.String("worker", nr.name))
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s: %w", nr.name, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("orchestrator stopped cleanly")
	return nil
}
