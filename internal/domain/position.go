package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus tracks where a position sits in its lifecycle.
type PositionStatus string

const (
	PositionStatusPending         PositionStatus = "pending"
	PositionStatusOpen            PositionStatus = "open"
	PositionStatusPartiallyClosed PositionStatus = "partially_closed"
	PositionStatusClosed          PositionStatus = "closed"
	PositionStatusFailed          PositionStatus = "failed"
)

// CloseStatus is the terminal/interim state of a closing trade.
type CloseStatus string

const (
	CloseStatusPending CloseStatus = "pending"
	CloseStatusPartial CloseStatus = "partial"
	CloseStatusSuccess CloseStatus = "success"
	CloseStatusFailed  CloseStatus = "failed"
)

// Metadata bounds. When a position's metadata map grows past metadataMaxKeys
// the oldest metadataEvictCount entries are dropped.
const (
	metadataMaxKeys    = 1000
	metadataEvictCount = 10
)

// Position is the base record for one tracked unit of exposure created from
// an executed copy trade.
type Position struct {
	ID string `json:"id"`

	// Trade is the originating observed trade plus the scaled copy amounts.
	Trade CopyTrade `json:"trade"`

	AmountSOL    decimal.Decimal `json:"amount_sol"`
	AmountTokens decimal.Decimal `json:"amount_tokens"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	FeeSOL       decimal.Decimal `json:"fee_sol"`
	TotalCostSOL decimal.Decimal `json:"total_cost_sol"`

	ExecutionSignature string          `json:"execution_signature"`
	ExecutionPrice     decimal.Decimal `json:"execution_price"`

	Analyzed     bool   `json:"analyzed"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`

	Metadata      map[string]any `json:"metadata,omitempty"`
	MetadataOrder []string       `json:"metadata_order,omitempty"`
}

// SetMetadata records an arbitrary key/value on the position, evicting the
// oldest entries once the map exceeds its bound.
func (p *Position) SetMetadata(key string, value any) {
	if p.Metadata == nil {
		p.Metadata = make(map[string]any)
	}
	if _, exists := p.Metadata[key]; !exists {
		p.MetadataOrder = append(p.MetadataOrder, key)
	}
	p.Metadata[key] = value

	if len(p.Metadata) <= metadataMaxKeys {
		return
	}
	n := metadataEvictCount
	if n > len(p.MetadataOrder) {
		n = len(p.MetadataOrder)
	}
	for _, old := range p.MetadataOrder[:n] {
		delete(p.Metadata, old)
	}
	p.MetadataOrder = append(p.MetadataOrder[:0], p.MetadataOrder[n:]...)
}

// TraderWallet returns the wallet of the trader whose trade originated this
// position.
func (p *Position) TraderWallet() string { return p.Trade.TraderWallet }

// TokenMint returns the mint of the token this position holds.
func (p *Position) TokenMint() string { return p.Trade.TokenMint }

// ClosePosition is a closing trade. It carries the amounts requested to close
// and its own status, which is owned by the close alone even when the close
// is split across several open positions.
type ClosePosition struct {
	Position

	Status              CloseStatus     `json:"status"`
	AmountSOLToClose    decimal.Decimal `json:"amount_sol_to_close"`
	AmountTokensToClose decimal.Decimal `json:"amount_tokens_to_close"`
}

// SubClose is the portion of a single incoming close applied to one specific
// open position when the close spans multiple opens. ParentCloseID refers to
// the owning ClosePosition; the parent alone owns the close's terminal
// status, the portion's status reports only how this slice was applied.
type SubClose struct {
	ID            string          `json:"id"`
	ParentCloseID string          `json:"parent_close_id"`
	AmountSOL     decimal.Decimal `json:"amount_sol"`
	AmountTokens  decimal.Decimal `json:"amount_tokens"`
	Status        CloseStatus     `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CloseKind discriminates the two variants a close-history entry can take.
type CloseKind string

const (
	// CloseKindFull records a ClosePosition applied intact to one open
	// position.
	CloseKindFull CloseKind = "close"
	// CloseKindSub records the portion of a close that was applied to this
	// open position while the rest went elsewhere.
	CloseKindSub CloseKind = "subclose"
)

// CloseRecord is one entry in an open position's close history. It is a
// closed tagged variant: Kind selects which fields are meaningful and every
// consumer must switch on it exhaustively.
type CloseRecord struct {
	Kind CloseKind `json:"kind"`

	// Close is the applied close (kind "close") or the parent of the applied
	// portion (kind "subclose"). Always non-nil.
	Close *ClosePosition `json:"close"`

	// Portion is the slice of the parent applied to this open position.
	// Non-nil iff Kind is CloseKindSub.
	Portion *SubClose `json:"portion,omitempty"`
}

// AmountSOL returns the SOL amount this record removed from its position.
func (r CloseRecord) AmountSOL() decimal.Decimal {
	switch r.Kind {
	case CloseKindSub:
		return r.Portion.AmountSOL
	default:
		return r.Close.AmountSOLToClose
	}
}

// AmountTokens returns the token amount this record removed from its
// position.
func (r CloseRecord) AmountTokens() decimal.Decimal {
	switch r.Kind {
	case CloseKindSub:
		return r.Portion.AmountTokens
	default:
		return r.Close.AmountTokensToClose
	}
}

// ExecutionPrice returns the per-token execution price of the underlying
// closing trade.
func (r CloseRecord) ExecutionPrice() decimal.Decimal {
	return r.Close.ExecutionPrice
}

// FeeSOL returns the fee attributable to this record. A subclose carries a
// proportional share of its parent's fee.
func (r CloseRecord) FeeSOL() decimal.Decimal {
	switch r.Kind {
	case CloseKindSub:
		if r.Close.AmountTokensToClose.IsZero() {
			return decimal.Zero
		}
		share := r.Portion.AmountTokens.Div(r.Close.AmountTokensToClose)
		return r.Close.FeeSOL.Mul(share)
	default:
		return r.Close.FeeSOL
	}
}

// OpenPosition is a position admitted to the open queue, accumulating closes
// until its remaining amount reaches zero.
type OpenPosition struct {
	Position

	Status       PositionStatus `json:"status"`
	CloseHistory []CloseRecord  `json:"close_history,omitempty"`
}

// ClosedSOL sums the SOL removed by the close history.
func (p *OpenPosition) ClosedSOL() decimal.Decimal {
	total := decimal.Zero
	for _, rec := range p.CloseHistory {
		total = total.Add(rec.AmountSOL())
	}
	return total
}

// ClosedTokens sums the tokens removed by the close history.
func (p *OpenPosition) ClosedTokens() decimal.Decimal {
	total := decimal.Zero
	for _, rec := range p.CloseHistory {
		total = total.Add(rec.AmountTokens())
	}
	return total
}

// RemainingSOL returns the unclosed SOL amount, never negative.
func (p *OpenPosition) RemainingSOL() decimal.Decimal {
	rem := p.AmountSOL.Sub(p.ClosedSOL())
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// RemainingTokens returns the unclosed token amount, never negative.
func (p *OpenPosition) RemainingTokens() decimal.Decimal {
	rem := p.AmountTokens.Sub(p.ClosedTokens())
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// FullyClosed reports whether the close history accounts for the whole
// position.
func (p *OpenPosition) FullyClosed() bool {
	return p.RemainingTokens().IsZero()
}

// AppendClose adds a record to the close history, enforcing that the closed
// token total never exceeds the position's token amount. The token side is
// the conserved quantity; SOL proceeds are market-priced and may exceed the
// position's entry SOL when the token has appreciated. On success the status
// is rederived from the remaining amount.
func (p *OpenPosition) AppendClose(rec CloseRecord) error {
	if rec.AmountTokens().GreaterThan(p.RemainingTokens()) {
		return ErrOverClose
	}
	p.CloseHistory = append(p.CloseHistory, rec)
	if p.FullyClosed() {
		p.Status = PositionStatusClosed
	} else {
		p.Status = PositionStatusPartiallyClosed
	}
	return nil
}
