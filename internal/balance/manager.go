// Package balance keeps the wallet's native and token balances consistent
// while trades are in flight. The cache is updated incrementally on
// position events; reads fall back to the chain whenever an unresolved
// analysis makes the local delta unreliable.
package balance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// Budget clamps what the manager will report as available for a new trade.
type Budget struct {
	// GlobalSOL is the total SOL the system may have invested at once.
	// Zero means unbounded.
	GlobalSOL decimal.Decimal

	// Distributed divides the budget evenly across the configured fan-out:
	// budget / MaxOpenTokens / MaxPositionsPerToken per trade.
	Distributed          bool
	MaxOpenTokens        int
	MaxPositionsPerToken int
}

// Manager owns one wallet's balance cache. All mutation goes through the
// On* event methods; reads consult the chain source when a pending analysis
// exists for the relevant token (or any token, for SOL).
type Manager struct {
	wallet string
	source domain.BalanceSource
	budget Budget
	logger *slog.Logger

	mu             sync.Mutex
	sol            decimal.Decimal
	tokens         map[string]decimal.Decimal
	pendingByToken map[string]int
}

// NewManager creates a balance manager for the wallet. The initial balances
// are zero until Refresh or the first chain fallback populates them.
func NewManager(wallet string, source domain.BalanceSource, budget Budget, logger *slog.Logger) *Manager {
	return &Manager{
		wallet:         wallet,
		source:         source,
		budget:         budget,
		logger:         logger.With(slog.String("component", "balance_manager")),
		tokens:         make(map[string]decimal.Decimal),
		pendingByToken: make(map[string]int),
	}
}

// Refresh reloads the SOL balance and the given token balances from the
// chain, replacing the cached values.
func (m *Manager) Refresh(ctx context.Context, mints []string) error {
	sol, err := m.source.GetSOLBalance(ctx, m.wallet)
	if err != nil {
		return fmt.Errorf("balance: refresh sol: %w", err)
	}
	balances, err := m.source.GetTokenBalances(ctx, m.wallet, mints)
	if err != nil {
		return fmt.Errorf("balance: refresh tokens: %w", err)
	}

	m.mu.Lock()
	m.sol = sol
	for _, b := range balances {
		m.tokens[b.Mint] = b.Amount
	}
	m.mu.Unlock()

	m.logger.Info("balances refreshed",
		slog.String("sol", sol.String()),
		slog.Int("tokens", len(balances)))
	return nil
}

// OnPositionOpened debits the native balance by the position's total cost.
func (m *Manager) OnPositionOpened(totalCostSOL decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sol = floorZero(m.sol.Sub(totalCostSOL))
}

// OnPositionClosed credits the native balance with the close proceeds net
// of fees.
func (m *Manager) OnPositionClosed(proceedsSOL decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sol = m.sol.Add(proceedsSOL)
}

// OnTokenReceived credits a token balance.
func (m *Manager) OnTokenReceived(mint string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[mint] = m.tokens[mint].Add(amount)
}

// OnTokenSpent debits a token balance, floored at zero.
func (m *Manager) OnTokenSpent(mint string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.tokens[mint].Sub(amount)
	if next.IsNegative() {
		m.logger.Warn("token spend exceeds cached balance, flooring at zero",
			slog.String("mint", mint),
			slog.String("cached", m.tokens[mint].String()),
			slog.String("spent", amount.String()))
		next = decimal.Zero
	}
	m.tokens[mint] = next
}

// AddPendingAnalysis marks an in-flight, unconfirmed trade on the token.
// While any are outstanding, reads for that token (and all SOL reads) go to
// the chain.
func (m *Manager) AddPendingAnalysis(mint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingByToken[mint]++
}

// RemovePendingAnalysis releases one in-flight marker for the token.
func (m *Manager) RemovePendingAnalysis(mint string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pendingByToken[mint] <= 1 {
		delete(m.pendingByToken, mint)
		return
	}
	m.pendingByToken[mint]--
}

// PendingAnalyses returns the number of outstanding markers for the token.
func (m *Manager) PendingAnalyses(mint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingByToken[mint]
}

func (m *Manager) anyPending() bool {
	return len(m.pendingByToken) > 0
}

// SOLBalance returns the wallet's native balance. While any analysis is
// pending the authoritative on-chain value is fetched and cached; otherwise
// the local cache answers.
func (m *Manager) SOLBalance(ctx context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	stale := m.anyPending()
	cached := m.sol
	m.mu.Unlock()

	if !stale {
		return cached, nil
	}

	sol, err := m.source.GetSOLBalance(ctx, m.wallet)
	if err != nil {
		m.logger.Warn("chain sol balance unavailable, using cache", slog.Any("error", err))
		return cached, nil
	}

	m.mu.Lock()
	m.sol = sol
	m.mu.Unlock()
	return sol, nil
}

// TokenBalance returns the wallet's balance for one mint, preferring the
// chain while an analysis is pending for that mint.
func (m *Manager) TokenBalance(ctx context.Context, mint string) (decimal.Decimal, error) {
	m.mu.Lock()
	stale := m.pendingByToken[mint] > 0
	cached := m.tokens[mint]
	m.mu.Unlock()

	if !stale {
		return cached, nil
	}

	balances, err := m.source.GetTokenBalances(ctx, m.wallet, []string{mint})
	if err != nil {
		m.logger.Warn("chain token balance unavailable, using cache",
			slog.String("mint", mint), slog.Any("error", err))
		return cached, nil
	}

	amount := decimal.Zero
	for _, b := range balances {
		if b.Mint == mint {
			amount = b.Amount
			break
		}
	}

	m.mu.Lock()
	m.tokens[mint] = amount
	m.mu.Unlock()
	return amount, nil
}

// EffectiveAvailableForTrade returns the SOL a new trade may use: the
// wallet balance clamped by the global budget minus what is already
// invested, and in distributed mode by the per-trade slice
// budget / maxOpenTokens / maxPositionsPerToken.
func (m *Manager) EffectiveAvailableForTrade(ctx context.Context, investedSOL decimal.Decimal) (decimal.Decimal, error) {
	available, err := m.SOLBalance(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	if m.budget.GlobalSOL.IsPositive() {
		headroom := floorZero(m.budget.GlobalSOL.Sub(investedSOL))
		if headroom.LessThan(available) {
			available = headroom
		}
	}

	if m.budget.Distributed && m.budget.MaxOpenTokens > 0 && m.budget.MaxPositionsPerToken > 0 {
		perToken := m.budget.GlobalSOL.Div(decimal.NewFromInt(int64(m.budget.MaxOpenTokens)))
		perTrade := perToken.Div(decimal.NewFromInt(int64(m.budget.MaxPositionsPerToken)))
		if perTrade.LessThan(available) {
			available = perTrade
		}
	}

	return available, nil
}

// Snapshot returns a copy of the cached balances for status reporting.
func (m *Manager) Snapshot() domain.TraderBalance {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokens := make(map[string]decimal.Decimal, len(m.tokens))
	for mint, amt := range m.tokens {
		tokens[mint] = amt
	}
	return domain.TraderBalance{Wallet: m.wallet, SOL: m.sol, Tokens: tokens}
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
