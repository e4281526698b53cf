// Package pumpportal integrates with the PumpPortal data and trading APIs:
// a WebSocket stream of trades made by watched wallets, and the trade-local
// endpoint that builds serialized Solana transactions for us to sign.
package pumpportal

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// subscribeCmd is the wire format for subscription management commands.
type subscribeCmd struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

// tradeEvent is a trade notification from the data stream.
type tradeEvent struct {
	Signature             string          `json:"signature"`
	Mint                  string          `json:"mint"`
	TraderPublicKey       string          `json:"traderPublicKey"`
	TxType                string          `json:"txType"`
	TokenAmount           decimal.Decimal `json:"tokenAmount"`
	SolAmount             decimal.Decimal `json:"solAmount"`
	NewTokenBalance       decimal.Decimal `json:"newTokenBalance"`
	BondingCurveKey       string          `json:"bondingCurveKey"`
	VTokensInBondingCurve decimal.Decimal `json:"vTokensInBondingCurve"`
	VSolInBondingCurve    decimal.Decimal `json:"vSolInBondingCurve"`
	MarketCapSol          decimal.Decimal `json:"marketCapSol"`
	Pool                  string          `json:"pool"`
}

// toDomain converts a stream event into a domain trade. Events with a
// txType other than buy/sell (token creation, migration) return false.
func (e tradeEvent) toDomain(receivedAt time.Time) (domain.TraderTrade, bool) {
	side := domain.TradeSide(e.TxType)
	if !side.Valid() {
		return domain.TraderTrade{}, false
	}
	return domain.TraderTrade{
		TraderWallet:    e.TraderPublicKey,
		Side:            side,
		TokenMint:       e.Mint,
		AmountSOL:       e.SolAmount,
		TokenAmount:     e.TokenAmount,
		Signature:       e.Signature,
		NewTokenBalance: e.NewTokenBalance,
		Pool:            e.Pool,
		BondingCurveKey: e.BondingCurveKey,
		VTokensInCurve:  e.VTokensInBondingCurve,
		VSOLInCurve:     e.VSolInBondingCurve,
		MarketCapSOL:    e.MarketCapSol,
		Timestamp:       receivedAt,
	}, true
}

// tradeRequest is the body for the trade-local endpoint.
type tradeRequest struct {
	PublicKey        string `json:"publicKey"`
	Action           string `json:"action"`
	Mint             string `json:"mint"`
	Amount           string `json:"amount"`
	DenominatedInSol string `json:"denominatedInSol"`
	Slippage         string `json:"slippage"`
	PriorityFee      string `json:"priorityFee"`
	Pool             string `json:"pool"`
}
