package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnalysisErrorKind classifies a failed transaction analysis.
type AnalysisErrorKind string

const (
	AnalysisErrSlippage            AnalysisErrorKind = "slippage"
	AnalysisErrInsufficientTokens  AnalysisErrorKind = "insufficient_tokens"
	AnalysisErrInsufficientLamport AnalysisErrorKind = "insufficient_lamports"
	AnalysisErrTxNotFound          AnalysisErrorKind = "transaction_not_found"
	AnalysisErrRentExemption       AnalysisErrorKind = "insufficient_funds_for_rent"
	AnalysisErrUnknown             AnalysisErrorKind = "unknown"
)

// Retryable reports whether another analysis attempt could change the
// outcome. Only ambiguous results are worth retrying; the rest describe a
// transaction that definitively failed.
func (k AnalysisErrorKind) Retryable() bool {
	return k == AnalysisErrUnknown
}

// TradeAnalysis is the outcome of analyzing one executed transaction on
// chain: the realized balance deltas, fee, and price, or the error kind when
// the transaction failed.
type TradeAnalysis struct {
	Signature string `json:"signature"`
	Succeeded bool   `json:"succeeded"`

	SOLDelta       decimal.Decimal `json:"sol_delta"`
	TokenDelta     decimal.Decimal `json:"token_delta"`
	FeeSOL         decimal.Decimal `json:"fee_sol"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	Slot           uint64          `json:"slot"`

	ErrorKind    AnalysisErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`

	AnalyzedAt time.Time `json:"analyzed_at"`
}

// SignatureStatus is the confirmation state of a submitted signature as
// reported by the chain.
type SignatureStatus string

const (
	SignatureStatusProcessed SignatureStatus = "processed"
	SignatureStatusConfirmed SignatureStatus = "confirmed"
	SignatureStatusFinalized SignatureStatus = "finalized"
	SignatureStatusFailed    SignatureStatus = "failed"
	SignatureStatusUnknown   SignatureStatus = "unknown"
)

// Settled reports whether the chain has reached a decision for the
// signature, successfully or not.
func (s SignatureStatus) Settled() bool {
	switch s {
	case SignatureStatusConfirmed, SignatureStatusFinalized, SignatureStatusFailed:
		return true
	default:
		return false
	}
}

// SignatureEvent is a push notification from the chain watcher that a
// signature reached a settled status.
type SignatureEvent struct {
	Signature string
	Status    SignatureStatus
	Err       string
	Slot      uint64
	At        time.Time
}
