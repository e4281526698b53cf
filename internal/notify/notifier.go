// Package notify delivers position lifecycle events to operators over
// Telegram and Discord. Delivery is asynchronous: callers never block on a
// slow channel, and a full buffer drops events rather than stalling the
// trading pipeline.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/retry"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Dispatcher fans notification events out to all registered senders. It
// maintains a set of allowed event kinds; events outside the set are
// silently skipped. Each delivery is retried a bounded number of times and
// then dropped with a logged error.
type Dispatcher struct {
	senders []Sender
	kinds   map[domain.NotificationKind]bool
	policy  retry.Policy
	logger  *slog.Logger

	events chan domain.NotificationEvent
}

// NewDispatcher creates a Dispatcher delivering to the given senders. Only
// events whose kind appears in kinds are forwarded; an empty list allows
// everything.
func NewDispatcher(senders []Sender, kinds []string, logger *slog.Logger) *Dispatcher {
	allowed := make(map[domain.NotificationKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[domain.NotificationKind(strings.TrimSpace(k))] = true
	}
	return &Dispatcher{
		senders: senders,
		kinds:   allowed,
		policy:  retry.DefaultPolicy(),
		logger:  logger.With(slog.String("component", "notifier")),
		events:  make(chan domain.NotificationEvent, 128),
	}
}

var _ domain.Notifier = (*Dispatcher)(nil)

// Notify enqueues an event for delivery. It never blocks; if the buffer is
// full the event is dropped.
func (d *Dispatcher) Notify(ctx context.Context, ev domain.NotificationEvent) {
	if len(d.kinds) > 0 && !d.kinds[ev.Kind] {
		return
	}
	select {
	case d.events <- ev:
	default:
		d.logger.Warn("notification buffer full, dropping event",
			slog.String("kind", string(ev.Kind)),
			slog.String("position_id", ev.PositionID),
		)
	}
}

// Run delivers queued events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("notifier started", slog.Int("senders", len(d.senders)))
	defer d.logger.Info("notifier stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-d.events:
			d.dispatch(ctx, ev)
		}
	}
}

// dispatch formats the event and sends it through every sender. A failing
// sender does not block the others.
func (d *Dispatcher) dispatch(ctx context.Context, ev domain.NotificationEvent) {
	title, message := format(ev)

	for _, s := range d.senders {
		_, err := retry.Do(ctx, d.policy, func(ctx context.Context, _ int) (struct{}, error) {
			return struct{}{}, s.Send(ctx, title, message)
		})
		if err != nil {
			d.logger.Error("notification dropped",
				slog.String("sender", s.Name()),
				slog.String("kind", string(ev.Kind)),
				slog.String("error", err.Error()),
			)
			continue
		}
		d.logger.Debug("notification sent",
			slog.String("sender", s.Name()),
			slog.String("kind", string(ev.Kind)),
		)
	}
}

// format renders an event into a title line and body text.
func format(ev domain.NotificationEvent) (title, message string) {
	switch ev.Kind {
	case domain.NotifyPositionOpened:
		title = "Position opened"
	case domain.NotifyPositionClosed:
		title = "Position closed"
	case domain.NotifyPartialClose:
		title = "Partial close"
	case domain.NotifyCloseFailed:
		title = "Close failed"
	case domain.NotifyAnalysisFailed:
		title = "Analysis failed"
	case domain.NotifyPositionRejected:
		title = "Trade rejected"
	default:
		title = string(ev.Kind)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Trader: %s\n", shorten(ev.TraderWallet))
	fmt.Fprintf(&sb, "Token: %s\n", shorten(ev.TokenMint))
	if !ev.AmountSOL.IsZero() {
		fmt.Fprintf(&sb, "Amount: %s SOL", ev.AmountSOL.String())
		if !ev.AmountTokens.IsZero() {
			fmt.Fprintf(&sb, " (%s tokens)", ev.AmountTokens.String())
		}
		sb.WriteString("\n")
	}
	if ev.PnLSOL != nil {
		fmt.Fprintf(&sb, "PnL: %s SOL\n", ev.PnLSOL.String())
	}
	if ev.Message != "" {
		fmt.Fprintf(&sb, "%s\n", ev.Message)
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Fprintf(&sb, "At: %s", at.UTC().Format(time.RFC3339))

	return title, sb.String()
}

// shorten abbreviates a base58 address for display.
func shorten(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + ".." + addr[len(addr)-4:]
}
