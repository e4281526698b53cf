// Package pnl computes realized and unrealized profit, cost basis, and
// slippage over a position's close history. Every function is pure: callers
// pass the position in and get decimals out, with no shared state. All
// arithmetic is arbitrary-precision decimal so repeated additions over a
// position's lifetime never drift.
package pnl

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// entryPrice prefers the analyzed execution price over the price quoted at
// submission time.
func entryPrice(p *domain.OpenPosition) decimal.Decimal {
	if !p.ExecutionPrice.IsZero() {
		return p.ExecutionPrice
	}
	return p.EntryPrice
}

// CostBasis returns the entry value attributable to the given token amount,
// proportional to the position's size. The with-costs variant scales
// TotalCostSOL (entry value plus fees); the plain variant scales the raw
// entry value.
func CostBasis(p *domain.OpenPosition, tokens decimal.Decimal, withCosts bool) decimal.Decimal {
	if p.AmountTokens.IsZero() {
		return decimal.Zero
	}
	share := tokens.Div(p.AmountTokens)
	if withCosts {
		return p.TotalCostSOL.Mul(share)
	}
	return p.AmountTokens.Mul(entryPrice(p)).Mul(share)
}

// ClosePnL returns the profit of a single close-history record: its exit
// value minus the proportional cost basis. With costs, the record's fee
// share is subtracted as well.
func ClosePnL(p *domain.OpenPosition, rec domain.CloseRecord, withCosts bool) decimal.Decimal {
	exitValue := rec.AmountTokens().Mul(rec.ExecutionPrice())
	pnl := exitValue.Sub(CostBasis(p, rec.AmountTokens(), withCosts))
	if withCosts {
		pnl = pnl.Sub(rec.FeeSOL())
	}
	return pnl
}

// RealizedPnL sums the profit of every close applied to the position so
// far. For a fully closed position this is total exit value minus total
// entry value (minus all fees, with costs).
func RealizedPnL(p *domain.OpenPosition, withCosts bool) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range p.CloseHistory {
		total = total.Add(ClosePnL(p, rec, withCosts))
	}
	return total
}

// UnrealizedPnL values the position's unclosed remainder at the given
// current price against its proportional cost basis. Zero for fully closed
// positions.
func UnrealizedPnL(p *domain.OpenPosition, currentPrice decimal.Decimal, withCosts bool) decimal.Decimal {
	remaining := p.RemainingTokens()
	if remaining.IsZero() {
		return decimal.Zero
	}
	return remaining.Mul(currentPrice).Sub(CostBasis(p, remaining, withCosts))
}

// TotalPnL is realized plus unrealized at the given current price.
func TotalPnL(p *domain.OpenPosition, currentPrice decimal.Decimal, withCosts bool) decimal.Decimal {
	return RealizedPnL(p, withCosts).Add(UnrealizedPnL(p, currentPrice, withCosts))
}

// AccumulatedFees sums the entry fee and every close's fee share.
func AccumulatedFees(p *domain.OpenPosition) decimal.Decimal {
	total := p.FeeSOL
	for _, rec := range p.CloseHistory {
		total = total.Add(rec.FeeSOL())
	}
	return total
}

// Breakdown is a per-position PnL report used by history queries and
// notifications.
type Breakdown struct {
	PositionID    string          `json:"position_id"`
	Realized      decimal.Decimal `json:"realized"`
	RealizedNet   decimal.Decimal `json:"realized_net"`
	Unrealized    decimal.Decimal `json:"unrealized"`
	Fees          decimal.Decimal `json:"fees"`
	ClosedTokens  decimal.Decimal `json:"closed_tokens"`
	RemainsTokens decimal.Decimal `json:"remaining_tokens"`
}

// Report assembles the full breakdown for a position at the given current
// price. Pass decimal.Zero when no live price is available; unrealized is
// then reported against a zero mark.
func Report(p *domain.OpenPosition, currentPrice decimal.Decimal) Breakdown {
	return Breakdown{
		PositionID:    p.ID,
		Realized:      RealizedPnL(p, false),
		RealizedNet:   RealizedPnL(p, true),
		Unrealized:    UnrealizedPnL(p, currentPrice, false),
		Fees:          AccumulatedFees(p),
		ClosedTokens:  p.ClosedTokens(),
		RemainsTokens: p.RemainingTokens(),
	}
}
