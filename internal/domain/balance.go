package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// TraderBalance holds one wallet's native balance and its per-token
// balances. It is mutated only by the balance manager.
type TraderBalance struct {
	Wallet string                     `json:"wallet"`
	SOL    decimal.Decimal            `json:"sol"`
	Tokens map[string]decimal.Decimal `json:"tokens"`
}

// TokenBalance is one token holding as reported by the chain.
type TokenBalance struct {
	Mint   string
	Amount decimal.Decimal
}

// BalanceSource reads authoritative balances from the chain. The balance
// manager falls back to it whenever the local cache may be stale.
type BalanceSource interface {
	GetSOLBalance(ctx context.Context, wallet string) (decimal.Decimal, error)
	GetTokenBalances(ctx context.Context, wallet string, mints []string) ([]TokenBalance, error)
}
