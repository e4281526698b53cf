package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/copybot/internal/pipeline"
	"github.com/alanyoungcy/copybot/internal/server"
	"github.com/alanyoungcy/copybot/internal/server/handler"
)

// shutdownTimeout bounds the HTTP server drain on exit.
const shutdownTimeout = 10 * time.Second

// runPipeline assembles the worker set and supervises it until the context
// is cancelled: the trade feed, executor, analyzer, notifier, queue
// persister, stats logger, balance refresher, archive cron, and the HTTP
// API server.
func (a *App) runPipeline(ctx context.Context, deps *Dependencies) error {
	if deps.Watcher != nil {
		if err := deps.Watcher.Connect(ctx); err != nil {
			a.logger.WarnContext(ctx, "signature watcher connect failed, relying on status polling",
				slog.String("error", err.Error()))
		}
	}

	orch := pipeline.NewOrchestrator(a.logger)

	orch.Add("trade_feed", deps.Feed)
	orch.Add("executor", deps.Executor)
	orch.Add("analyzer", deps.Analyzer)
	orch.Add("notifier", deps.Notifier)

	orch.Add("persister", pipeline.NewPersister(map[string]pipeline.StatefulQueue{
		"pending_queue":  deps.Pending,
		"analysis_queue": deps.Analysis,
		"open_queue":     deps.Open,
		"closed_queue":   deps.Closed,
	}, a.cfg.Pipeline.SaveInterval.Duration, a.logger))

	orch.Add("stats", pipeline.NewStatsLogger(
		deps.Pending, deps.Analysis, deps.Open, deps.Closed,
		deps.Admit, deps.Executor, deps.Closure, deps.Balances,
		a.cfg.Pipeline.StatsInterval.Duration, a.logger,
	))

	if deps.RPC != nil {
		orch.Add("balance_refresher", pipeline.NewBalanceRefresher(
			deps.Balances, deps.Open,
			a.cfg.Pipeline.BalanceRefreshInterval.Duration, a.logger,
		))
	}

	if deps.Archiver != nil {
		archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Pipeline.ArchiveRetentionDays, a.logger).
			WithLock(deps.Locks)
		cronExpr := a.cfg.Pipeline.ArchiveCron
		orch.Add("archiver", pipeline.RunnerFunc(func(ctx context.Context) error {
			return archiver.RunCron(ctx, cronExpr)
		}))
	}

	if a.cfg.Server.Enabled {
		orch.Add("http_server", a.serverRunner(deps))
	}

	return orch.Run(ctx)
}

// serverRunner wraps the HTTP server in a Runner: Start blocks until
// Shutdown, which fires when the pipeline context is cancelled.
func (a *App) serverRunner(deps *Dependencies) pipeline.Runner {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Status: handler.NewStatusHandler(
			a.cfg.Mode,
			deps.Pending, deps.Analysis, deps.Open, deps.Closed,
			deps.Admit, deps.Executor, deps.Balances,
		),
		Positions: handler.NewPositionHandler(deps.Reports, a.logger),
		PnL:       handler.NewPnLHandler(deps.Reports, a.logger),
		Traders:   handler.NewTraderHandler(deps.Admit, deps.Journal, a.logger),
	}
	if deps.Blobs != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.Blobs, a.cfg.Pipeline.ArchivePrefix, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, deps.RateLimiter, a.logger)

	return pipeline.RunnerFunc(func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("http server shutdown failed", slog.String("error", err.Error()))
			}
			return ctx.Err()
		case err := <-errCh:
			return err
		}
	})
}
