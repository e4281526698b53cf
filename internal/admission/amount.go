// Package admission gates observed trades before they enter the pipeline:
// field validation, TTL rate-limit counters, configured limit checks, and
// copy-amount sizing. Rejections are synchronous and non-retryable; the
// authoritative state stays with the open queue, the counters here only
// short-circuit obviously invalid trades cheaply.
package admission

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// AmountMode selects how the copy amount is derived from the trader's
// observed amount.
type AmountMode string

const (
	// AmountModeExact replicates the trader's SOL amount one to one.
	AmountModeExact AmountMode = "exact"
	// AmountModePercentage copies a percentage of the trader's amount.
	AmountModePercentage AmountMode = "percentage"
	// AmountModeFixed uses a flat SOL amount per trade.
	AmountModeFixed AmountMode = "fixed"
	// AmountModeDistributed divides the investment budget evenly across
	// the configured token and position fan-out.
	AmountModeDistributed AmountMode = "distributed"
)

// Settings are the effective limits for one trader after applying the
// precedence trader override > global config > defaults.
type Settings struct {
	AmountMode  AmountMode
	AmountValue decimal.Decimal

	MaxAmountToInvest    decimal.Decimal
	MaxOpenTokens        int
	MaxPositionsPerToken int
	MaxTradersPerToken   int

	MinPositionSize    decimal.Decimal
	MaxPositionSize    decimal.Decimal
	AdjustPositionSize bool

	MaxDailyVolumeSOL decimal.Decimal
	MinTradeInterval  time.Duration

	StrictMode bool
}

// Override carries a trader's per-wallet settings; nil fields inherit the
// global value.
type Override struct {
	AmountMode           *AmountMode
	AmountValue          *decimal.Decimal
	MaxAmountToInvest    *decimal.Decimal
	MaxOpenTokens        *int
	MaxPositionsPerToken *int
	MinPositionSize      *decimal.Decimal
	MaxPositionSize      *decimal.Decimal
	AdjustPositionSize   *bool
	MaxDailyVolumeSOL    *decimal.Decimal
	MinTradeInterval     *time.Duration
}

func (s Settings) apply(o *Override) Settings {
	if o == nil {
		return s
	}
	if o.AmountMode != nil {
		s.AmountMode = *o.AmountMode
	}
	if o.AmountValue != nil {
		s.AmountValue = *o.AmountValue
	}
	if o.MaxAmountToInvest != nil {
		s.MaxAmountToInvest = *o.MaxAmountToInvest
	}
	if o.MaxOpenTokens != nil {
		s.MaxOpenTokens = *o.MaxOpenTokens
	}
	if o.MaxPositionsPerToken != nil {
		s.MaxPositionsPerToken = *o.MaxPositionsPerToken
	}
	if o.MinPositionSize != nil {
		s.MinPositionSize = *o.MinPositionSize
	}
	if o.MaxPositionSize != nil {
		s.MaxPositionSize = *o.MaxPositionSize
	}
	if o.AdjustPositionSize != nil {
		s.AdjustPositionSize = *o.AdjustPositionSize
	}
	if o.MaxDailyVolumeSOL != nil {
		s.MaxDailyVolumeSOL = *o.MaxDailyVolumeSOL
	}
	if o.MinTradeInterval != nil {
		s.MinTradeInterval = *o.MinTradeInterval
	}
	return s
}

// CopyAmountSOL computes the SOL this wallet will spend copying a buy,
// before the size clamps. Sells are sized in tokens, not here.
func CopyAmountSOL(trade domain.TraderTrade, s Settings) (decimal.Decimal, error) {
	switch s.AmountMode {
	case AmountModeExact, "":
		return trade.AmountSOL, nil

	case AmountModePercentage:
		if !s.AmountValue.IsPositive() {
			return decimal.Zero, fmt.Errorf("admission: percentage mode needs a positive amount value")
		}
		return trade.AmountSOL.Mul(s.AmountValue).Div(decimal.NewFromInt(100)), nil

	case AmountModeFixed:
		if !s.AmountValue.IsPositive() {
			return decimal.Zero, fmt.Errorf("admission: fixed mode needs a positive amount value")
		}
		return s.AmountValue, nil

	case AmountModeDistributed:
		if s.MaxOpenTokens <= 0 || s.MaxPositionsPerToken <= 0 || !s.MaxAmountToInvest.IsPositive() {
			return decimal.Zero, fmt.Errorf("admission: distributed mode needs a budget, max open tokens, and max positions per token")
		}
		perToken := s.MaxAmountToInvest.Div(decimal.NewFromInt(int64(s.MaxOpenTokens)))
		return perToken.Div(decimal.NewFromInt(int64(s.MaxPositionsPerToken))), nil

	default:
		return decimal.Zero, fmt.Errorf("admission: unknown amount mode %q", s.AmountMode)
	}
}

// ClampPositionSize applies the min/max bounds. With AdjustPositionSize the
// amount is snapped to the violated bound; otherwise an out-of-bounds
// amount is an error the caller turns into a rejection.
func ClampPositionSize(amount decimal.Decimal, s Settings) (decimal.Decimal, error) {
	if s.MinPositionSize.IsPositive() && amount.LessThan(s.MinPositionSize) {
		if !s.AdjustPositionSize {
			return decimal.Zero, fmt.Errorf("admission: amount %s below minimum position size %s",
				amount.String(), s.MinPositionSize.String())
		}
		amount = s.MinPositionSize
	}
	if s.MaxPositionSize.IsPositive() && amount.GreaterThan(s.MaxPositionSize) {
		if !s.AdjustPositionSize {
			return decimal.Zero, fmt.Errorf("admission: amount %s above maximum position size %s",
				amount.String(), s.MaxPositionSize.String())
		}
		amount = s.MaxPositionSize
	}
	return amount, nil
}

// ScaledTokenAmount sizes the token leg proportionally to the scaled SOL
// amount, preserving the trader's observed price.
func ScaledTokenAmount(trade domain.TraderTrade, copySOL decimal.Decimal) decimal.Decimal {
	if trade.AmountSOL.IsZero() {
		return decimal.Zero
	}
	return trade.TokenAmount.Mul(copySOL.Div(trade.AmountSOL))
}
