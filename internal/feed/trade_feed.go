// Package feed turns the stream of watched-trader activity into copy trade
// intents on the pending queue.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/queue"
)

// TradeStream delivers trades made by watched wallets.
type TradeStream interface {
	Connect(ctx context.Context) error
	SubscribeAccountTrades(ctx context.Context, wallets []string) error
	OnTrade(handler func(domain.TraderTrade))
	Close() error
}

// Admitter decides whether an observed trade becomes a copy intent.
type Admitter interface {
	Admit(ctx context.Context, trade domain.TraderTrade) (domain.CopyTrade, error)
}

// TradeFeed subscribes to watched traders and pushes admitted trades onto
// the pending queue. Observed prices are written to the price cache as a
// side channel for unrealized PnL.
type TradeFeed struct {
	stream  TradeStream
	admit   Admitter
	pending *queue.PendingQueue
	prices  domain.PriceCache
	wallets []string
	logger  *slog.Logger

	trades chan domain.TraderTrade
}

// NewTradeFeed creates a TradeFeed watching the given wallets.
func NewTradeFeed(
	stream TradeStream,
	admit Admitter,
	pending *queue.PendingQueue,
	prices domain.PriceCache,
	wallets []string,
	logger *slog.Logger,
) *TradeFeed {
	return &TradeFeed{
		stream:  stream,
		admit:   admit,
		pending: pending,
		prices:  prices,
		wallets: wallets,
		logger:  logger.With(slog.String("component", "trade_feed")),
		trades:  make(chan domain.TraderTrade, 256),
	}
}

// Run connects the stream, subscribes, and processes trades until ctx is
// cancelled.
func (f *TradeFeed) Run(ctx context.Context) error {
	f.stream.OnTrade(f.enqueue)

	if err := f.stream.Connect(ctx); err != nil {
		return err
	}
	defer f.stream.Close()

	if err := f.stream.SubscribeAccountTrades(ctx, f.wallets); err != nil {
		return err
	}

	f.logger.Info("trade feed started", slog.Int("wallets", len(f.wallets)))
	defer f.logger.Info("trade feed stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case trade := <-f.trades:
			f.handleTrade(ctx, trade)
		}
	}
}

// enqueue hands a trade from the stream's read loop to the feed goroutine.
// A full buffer drops the trade rather than stalling the socket.
func (f *TradeFeed) enqueue(trade domain.TraderTrade) {
	select {
	case f.trades <- trade:
	default:
		f.logger.Warn("trade buffer full, dropping trade",
			slog.String("signature", trade.Signature),
			slog.String("trader", trade.TraderWallet),
		)
	}
}

func (f *TradeFeed) handleTrade(ctx context.Context, trade domain.TraderTrade) {
	f.recordPrice(ctx, trade)

	intent, err := f.admit.Admit(ctx, trade)
	if err != nil {
		if errors.Is(err, domain.ErrTradeRejected) {
			f.logger.Debug("trade rejected",
				slog.String("trader", trade.TraderWallet),
				slog.String("token", trade.TokenMint),
				slog.String("side", string(trade.Side)),
				slog.String("reason", err.Error()),
			)
			return
		}
		f.logger.Error("admission failed",
			slog.String("signature", trade.Signature),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := f.pending.Add(intent); err != nil {
		f.logger.Warn("could not queue admitted trade",
			slog.String("signature", trade.Signature),
			slog.String("error", err.Error()),
		)
		return
	}

	f.logger.Info("trade queued",
		slog.String("trader", trade.TraderWallet),
		slog.String("token", trade.TokenMint),
		slog.String("side", string(trade.Side)),
		slog.String("copy_sol", intent.CopyAmountSOL.String()),
	)
}

// recordPrice caches the price implied by the trader's fill.
func (f *TradeFeed) recordPrice(ctx context.Context, trade domain.TraderTrade) {
	if f.prices == nil {
		return
	}
	price := trade.Price()
	if price.IsZero() {
		return
	}
	ts := trade.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if err := f.prices.SetPrice(ctx, trade.TokenMint, price, ts); err != nil {
		f.logger.Debug("price cache write failed",
			slog.String("token", trade.TokenMint),
			slog.String("error", err.Error()),
		)
	}
}
