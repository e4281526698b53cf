package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide is the direction of an observed trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Valid reports whether the side is one of the two known directions.
func (s TradeSide) Valid() bool {
	return s == TradeSideBuy || s == TradeSideSell
}

// TraderTrade is an immutable record of one trade observed on-chain for a
// followed trader. It is created once per observed event and never mutated.
type TraderTrade struct {
	TraderWallet    string          `json:"trader_wallet"`
	Side            TradeSide       `json:"side"`
	TokenMint       string          `json:"token_mint"`
	AmountSOL       decimal.Decimal `json:"amount_sol"`
	TokenAmount     decimal.Decimal `json:"token_amount"`
	Signature       string          `json:"signature"`
	NewTokenBalance decimal.Decimal `json:"new_token_balance"`

	// Pool snapshot at observation time.
	Pool            string          `json:"pool"`
	BondingCurveKey string          `json:"bonding_curve_key,omitempty"`
	VTokensInCurve  decimal.Decimal `json:"v_tokens_in_curve"`
	VSOLInCurve     decimal.Decimal `json:"v_sol_in_curve"`
	MarketCapSOL    decimal.Decimal `json:"market_cap_sol"`

	Timestamp time.Time `json:"timestamp"`
}

// Price returns the observed per-token price in SOL, or zero when the token
// amount is zero.
func (t TraderTrade) Price() decimal.Decimal {
	if t.TokenAmount.IsZero() {
		return decimal.Zero
	}
	return t.AmountSOL.Div(t.TokenAmount)
}

// CopyTrade pairs an observed trade with the scaled amounts this wallet will
// actually trade. The copy amounts are computed once by the amount calculator
// at admission time and carried through the pipeline unchanged.
type CopyTrade struct {
	TraderTrade

	CopyAmountSOL   decimal.Decimal `json:"copy_amount_sol"`
	CopyTokenAmount decimal.Decimal `json:"copy_token_amount"`
}

// CopyPrice returns the per-token price implied by the scaled amounts. It
// falls back to the trader's observed price when the copy token amount is
// zero (sell intents are sized in tokens only until execution).
func (c CopyTrade) CopyPrice() decimal.Decimal {
	if c.CopyTokenAmount.IsZero() {
		return c.Price()
	}
	return c.CopyAmountSOL.Div(c.CopyTokenAmount)
}
