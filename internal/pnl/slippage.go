package pnl

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// SlippagePercent returns (execution − expected) / expected × 100. A zero
// expected price yields zero rather than dividing by it.
func SlippagePercent(execution, expected decimal.Decimal) decimal.Decimal {
	if expected.IsZero() {
		return decimal.Zero
	}
	return execution.Sub(expected).Div(expected).Mul(hundred)
}

// SlippageReport compares one execution against the reference prices that
// were available for it. Fields are nil when the reference price was not
// known.
type SlippageReport struct {
	VsEntry  *decimal.Decimal `json:"vs_entry,omitempty"`
	VsTrader *decimal.Decimal `json:"vs_trader,omitempty"`
	VsMarket *decimal.Decimal `json:"vs_market,omitempty"`
}

func slippageAgainst(execution, reference decimal.Decimal) *decimal.Decimal {
	if reference.IsZero() || execution.IsZero() {
		return nil
	}
	s := SlippagePercent(execution, reference)
	return &s
}

// EntrySlippage reports how the position's entry execution deviated from
// the price quoted at submission, the trader's observed price, and the live
// market price if one is supplied.
func EntrySlippage(p *domain.OpenPosition, marketPrice decimal.Decimal) SlippageReport {
	return SlippageReport{
		VsEntry:  slippageAgainst(p.ExecutionPrice, p.EntryPrice),
		VsTrader: slippageAgainst(p.ExecutionPrice, p.Trade.Price()),
		VsMarket: slippageAgainst(p.ExecutionPrice, marketPrice),
	}
}

// CloseSlippage reports the deviation of one close-history record's
// execution price from the position entry, the closing trader trade, and
// the live market price if one is supplied.
func CloseSlippage(p *domain.OpenPosition, rec domain.CloseRecord, marketPrice decimal.Decimal) SlippageReport {
	return SlippageReport{
		VsEntry:  slippageAgainst(rec.ExecutionPrice(), entryPrice(p)),
		VsTrader: slippageAgainst(rec.ExecutionPrice(), rec.Close.Trade.Price()),
		VsMarket: slippageAgainst(rec.ExecutionPrice(), marketPrice),
	}
}
