package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// StatefulQueue can snapshot itself to its backing store.
type StatefulQueue interface {
	SaveState(ctx context.Context) error
}

// defaultSaveInterval is how often queue state is written out.
const defaultSaveInterval = 5 * time.Minute

// Persister periodically saves the state of every registered queue so that a
// restart resumes close to where the process left off. A final save runs on
// shutdown.
type Persister struct {
	queues   map[string]StatefulQueue
	interval time.Duration
	logger   *slog.Logger
}

// NewPersister creates a Persister. interval <= 0 selects the default.
func NewPersister(queues map[string]StatefulQueue, interval time.Duration, logger *slog.Logger) *Persister {
	if interval <= 0 {
		interval = defaultSaveInterval
	}
	return &Persister{
		queues:   queues,
		interval: interval,
		logger:   logger.With(slog.String("component", "persister")),
	}
}

// Run saves queue state on the configured interval until ctx is cancelled,
// then performs one final save with a fresh short-lived context.
func (p *Persister) Run(ctx context.Context) error {
	p.logger.Info("persister started", slog.Duration("interval", p.interval))
	defer p.logger.Info("persister stopped")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// ctx is already dead; the final save gets its own deadline.
			saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			p.saveAll(saveCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			p.saveAll(ctx)
		}
	}
}

// SaveNow performs an immediate save of all queues.
func (p *Persister) SaveNow(ctx context.Context) {
	p.saveAll(ctx)
}

func (p *Persister) saveAll(ctx context.Context) {
	for name, q := range p.queues {
		if err := q.SaveState(ctx); err != nil {
			p.logger.Error("queue state save failed",
				slog.String("queue", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		p.logger.Debug("queue state saved", slog.String("queue", name))
	}
}
