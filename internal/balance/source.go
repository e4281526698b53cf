package balance

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// StaticSource is a BalanceSource backed by a fixed SOL amount and no token
// holdings. Dry-run mode uses it as the paper wallet: the manager seeds its
// cache from the static balance and all subsequent movement comes from
// position events.
type StaticSource struct {
	sol decimal.Decimal
}

// NewStaticSource creates a source reporting the given SOL balance.
func NewStaticSource(sol decimal.Decimal) *StaticSource {
	return &StaticSource{sol: sol}
}

var _ domain.BalanceSource = (*StaticSource)(nil)

// GetSOLBalance returns the fixed SOL amount.
func (s *StaticSource) GetSOLBalance(context.Context, string) (decimal.Decimal, error) {
	return s.sol, nil
}

// GetTokenBalances reports no holdings, leaving cached token balances
// untouched on refresh.
func (s *StaticSource) GetTokenBalances(context.Context, string, []string) ([]domain.TokenBalance, error) {
	return nil, nil
}
