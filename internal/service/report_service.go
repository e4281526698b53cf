// Package service assembles read-side views over the live queues for the
// ops API.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/pnl"
	"github.com/alanyoungcy/copybot/internal/queue"
)

// TraderReport aggregates PnL across one trader's positions.
type TraderReport struct {
	TraderWallet  string           `json:"trader_wallet"`
	OpenPositions int              `json:"open_positions"`
	Realized      decimal.Decimal  `json:"realized"`
	RealizedNet   decimal.Decimal  `json:"realized_net"`
	Unrealized    decimal.Decimal  `json:"unrealized"`
	Fees          decimal.Decimal  `json:"fees"`
	Positions     []pnl.Breakdown  `json:"positions"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// ReportService computes PnL reports by joining the open and closed queues
// with cached live prices.
type ReportService struct {
	open   *queue.OpenQueue
	closed *queue.ClosedQueue
	prices domain.PriceCache
	logger *slog.Logger
}

// NewReportService creates a ReportService.
func NewReportService(open *queue.OpenQueue, closed *queue.ClosedQueue, prices domain.PriceCache, logger *slog.Logger) *ReportService {
	return &ReportService{
		open:   open,
		closed: closed,
		prices: prices,
		logger: logger.With(slog.String("component", "report_service")),
	}
}

// currentPrice returns the cached price for a mint, or zero when unknown.
func (s *ReportService) currentPrice(ctx context.Context, mint string) decimal.Decimal {
	if s.prices == nil {
		return decimal.Zero
	}
	price, _, err := s.prices.GetPrice(ctx, mint)
	if err != nil {
		return decimal.Zero
	}
	return price
}

// OpenPositions returns the open positions for a trader across all tokens,
// oldest first within each token.
func (s *ReportService) OpenPositions(ctx context.Context, trader string) []*domain.OpenPosition {
	var out []*domain.OpenPosition
	for _, mint := range s.open.OpenMints() {
		out = append(out, s.open.PositionsFor(trader, mint)...)
	}
	return out
}

// ClosedPositions returns a trader's archived positions.
func (s *ReportService) ClosedPositions(ctx context.Context, trader string) []*domain.OpenPosition {
	return s.closed.PositionsForTrader(trader)
}

// TraderPnL assembles the full report for one trader: realized PnL from the
// archive, plus realized and unrealized PnL from the live open positions.
func (s *ReportService) TraderPnL(ctx context.Context, trader string) TraderReport {
	report := TraderReport{
		TraderWallet: trader,
		Realized:     decimal.Zero,
		RealizedNet:  decimal.Zero,
		Unrealized:   decimal.Zero,
		Fees:         decimal.Zero,
		GeneratedAt:  time.Now().UTC(),
	}

	for _, pos := range s.closed.PositionsForTrader(trader) {
		b := pnl.Report(pos, decimal.Zero)
		report.Realized = report.Realized.Add(b.Realized)
		report.RealizedNet = report.RealizedNet.Add(b.RealizedNet)
		report.Fees = report.Fees.Add(b.Fees)
		report.Positions = append(report.Positions, b)
	}

	for _, pos := range s.OpenPositions(ctx, trader) {
		price := s.currentPrice(ctx, pos.TokenMint())
		b := pnl.Report(pos, price)
		report.OpenPositions++
		report.Realized = report.Realized.Add(b.Realized)
		report.RealizedNet = report.RealizedNet.Add(b.RealizedNet)
		report.Unrealized = report.Unrealized.Add(b.Unrealized)
		report.Fees = report.Fees.Add(b.Fees)
		report.Positions = append(report.Positions, b)
	}

	return report
}
