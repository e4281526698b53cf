// Package lifecycle moves executed trades through their position lifecycle:
// creation on execution, confirmation analysis, routing to the open queue or
// the closure matching engine, and archival once closed.
package lifecycle

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// NewPosition builds the base position for a just-executed copy trade. The
// definitive amounts, fee, and execution price are filled in by analysis
// once the transaction settles; until then the scaled intent amounts stand
// in.
func NewPosition(trade domain.CopyTrade, signature string, entryPrice decimal.Decimal) *domain.Position {
	now := time.Now()
	return &domain.Position{
		ID:                 uuid.New().String(),
		Trade:              trade,
		AmountSOL:          trade.CopyAmountSOL,
		AmountTokens:       trade.CopyTokenAmount,
		EntryPrice:         entryPrice,
		TotalCostSOL:       trade.CopyAmountSOL,
		ExecutionSignature: signature,
		CreatedAt:          now,
		ExecutedAt:         &now,
	}
}

// applyAnalysis folds a successful transaction analysis into the position:
// realized amounts from the balance deltas, the fee, the actual execution
// price, and the total cost.
func applyAnalysis(pos *domain.Position, a domain.TradeAnalysis) {
	if !a.TokenDelta.IsZero() {
		pos.AmountTokens = a.TokenDelta.Abs()
	}
	if !a.SOLDelta.IsZero() {
		pos.AmountSOL = a.SOLDelta.Abs()
	}
	pos.FeeSOL = a.FeeSOL
	pos.TotalCostSOL = pos.AmountSOL.Add(a.FeeSOL)
	if !a.ExecutionPrice.IsZero() {
		pos.ExecutionPrice = a.ExecutionPrice
	} else if !pos.AmountTokens.IsZero() {
		pos.ExecutionPrice = pos.AmountSOL.Div(pos.AmountTokens)
	}
	pos.Analyzed = true
}

// newOpenPosition promotes an analyzed buy into the open queue's entity.
func newOpenPosition(pos *domain.Position) *domain.OpenPosition {
	return &domain.OpenPosition{
		Position: *pos,
		Status:   domain.PositionStatusOpen,
	}
}

// newClosePosition turns an analyzed sell into a closing trade for the
// matching engine.
func newClosePosition(pos *domain.Position) *domain.ClosePosition {
	return &domain.ClosePosition{
		Position:            *pos,
		Status:              domain.CloseStatusPending,
		AmountSOLToClose:    pos.AmountSOL,
		AmountTokensToClose: pos.AmountTokens,
	}
}
