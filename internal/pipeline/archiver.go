package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// archiveLockTTL bounds how long one archive pass may hold the
// cross-instance lock.
const archiveLockTTL = 30 * time.Minute

// Archiver exports trading history to cold storage on a schedule.
type Archiver struct {
	blobArchiver  domain.Archiver
	retentionDays int
	locks         domain.LockManager
	logger        *slog.Logger
}

// NewArchiver creates a new Archiver. retentionDays controls the journal
// cutoff: entries older than this are included in each export.
func NewArchiver(blobArchiver domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// WithLock makes archive passes mutually exclusive across bot instances
// sharing the same Redis. A pass that finds the lock held is skipped.
func (a *Archiver) WithLock(locks domain.LockManager) *Archiver {
	a.locks = locks
	return a
}

// Run executes a single archive pass: a full closed-queue snapshot plus all
// journal entries older than the retention cutoff.
func (a *Archiver) Run(ctx context.Context) error {
	if a.locks != nil {
		release, err := a.locks.Acquire(ctx, "archive", archiveLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				a.logger.Info("archive run skipped, lock held by another instance")
				return nil
			}
			return fmt.Errorf("acquiring archive lock: %w", err)
		}
		defer release()
	}

	now := time.Now().UTC()
	cutoff := now.Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("journal_cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	closedArchived, err := a.blobArchiver.ArchiveClosedPositions(ctx, now)
	if err != nil {
		return fmt.Errorf("archiving closed positions: %w", err)
	}

	journalArchived, err := a.blobArchiver.ArchiveJournal(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving journal before %v: %w", cutoff, err)
	}

	a.logger.Info("archive run complete",
		slog.Int64("closed_positions", closedArchived),
		slog.Int64("journal_entries", journalArchived),
	)
	return nil
}

// RunCron runs the archiver on a cron schedule until the context is
// cancelled. It supports cron expressions in the standard 5-field format:
// "minute hour day-of-month month day-of-week"
//
// Example: "0 3 * * *" runs at 3:00 AM every day.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, time.Now().UTC())
		if err != nil {
			return err
		}

		waitDuration := time.Until(next)
		a.logger.Info("archiver waiting for next trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", waitDuration),
		)

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
