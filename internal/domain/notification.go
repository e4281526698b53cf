package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// NotificationKind names the lifecycle transitions worth telling a human
// about.
type NotificationKind string

const (
	NotifyPositionOpened   NotificationKind = "position_opened"
	NotifyPositionClosed   NotificationKind = "position_closed"
	NotifyPartialClose     NotificationKind = "partial_close"
	NotifyCloseFailed      NotificationKind = "close_failed"
	NotifyAnalysisFailed   NotificationKind = "analysis_failed"
	NotifyPositionRejected NotificationKind = "position_rejected"
)

// NotificationEvent is a snapshot of a position transition, emitted only
// once the position (or its close) is fully analyzed.
type NotificationEvent struct {
	Kind         NotificationKind
	PositionID   string
	TraderWallet string
	TokenMint    string
	Side         TradeSide
	AmountSOL    decimal.Decimal
	AmountTokens decimal.Decimal
	PnLSOL       *decimal.Decimal
	Message      string
	At           time.Time
}

// Notifier delivers notification events. Implementations must not block the
// caller on delivery.
type Notifier interface {
	Notify(ctx context.Context, ev NotificationEvent)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, NotificationEvent) {}

var _ Notifier = NopNotifier{}
