package admission

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// OpenState is the authoritative view of open positions the fast-path
// counters are cross-checked against. Satisfied by the open queue.
type OpenState interface {
	TraderCount(token string) int
	HasPosition(trader, token string) bool
	TokenCount(trader string) int
	PositionCount(trader, token string) int
	TotalOpenSOL() decimal.Decimal
}

// BalanceReader is the slice of the balance manager admission needs.
type BalanceReader interface {
	EffectiveAvailableForTrade(ctx context.Context, investedSOL decimal.Decimal) (decimal.Decimal, error)
	TokenBalance(ctx context.Context, mint string) (decimal.Decimal, error)
}

// Stats is a snapshot of admission decisions since start.
type Stats struct {
	Accepted uint64
	Rejected uint64
}

// Controller is the synchronous admission gate. Admit either returns the
// sized CopyTrade to enqueue or an error wrapping domain.ErrTradeRejected
// with the first failing rule.
type Controller struct {
	settings  Settings
	overrides map[string]*Override

	counters domain.AdmissionCounters
	open     OpenState
	balances BalanceReader
	engine   *Engine
	journal  domain.TradeJournal
	logger   *slog.Logger

	mu       sync.Mutex
	accepted uint64
	rejected uint64
}

// NewController wires the admission gate. overrides keys double as the
// followed-trader set: a trade from a wallet absent from the map is
// rejected outright.
func NewController(
	settings Settings,
	overrides map[string]*Override,
	counters domain.AdmissionCounters,
	open OpenState,
	balances BalanceReader,
	journal domain.TradeJournal,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		settings:  settings,
		overrides: overrides,
		counters:  counters,
		open:      open,
		balances:  balances,
		engine:    NewEngine(logger),
		journal:   journal,
		logger:    logger.With(slog.String("component", "admission")),
	}
}

// SettingsFor resolves the effective settings for a trader.
func (c *Controller) SettingsFor(trader string) Settings {
	return c.settings.apply(c.overrides[trader])
}

// Followed reports whether the wallet is on the followed-trader list.
func (c *Controller) Followed(trader string) bool {
	_, ok := c.overrides[trader]
	return ok
}

// FollowedWallets returns the followed-trader set.
func (c *Controller) FollowedWallets() []string {
	wallets := make([]string, 0, len(c.overrides))
	for w := range c.overrides {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)
	return wallets
}

// Stats returns the accept/reject counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Accepted: c.accepted, Rejected: c.rejected}
}

// Admit evaluates one observed trade. Buys pass through field validation,
// the TTL rate-limit rules, copy-amount sizing, and the validation engine;
// sells only validate fields and size the token leg, then decrement the
// counters so the fast path stays consistent with the close that follows.
func (c *Controller) Admit(ctx context.Context, trade domain.TraderTrade) (domain.CopyTrade, error) {
	if err := c.validateFields(trade); err != nil {
		return domain.CopyTrade{}, c.reject(ctx, trade, err.Error())
	}

	settings := c.SettingsFor(trade.TraderWallet)

	if trade.Side == domain.TradeSideSell {
		return c.admitSell(ctx, trade, settings)
	}
	return c.admitBuy(ctx, trade, settings)
}

func (c *Controller) validateFields(trade domain.TraderTrade) error {
	switch {
	case trade.TraderWallet == "":
		return fmt.Errorf("missing trader wallet")
	case trade.TokenMint == "":
		return fmt.Errorf("missing token mint")
	case trade.Signature == "":
		return fmt.Errorf("missing signature")
	case !trade.Side.Valid():
		return fmt.Errorf("invalid side %q", trade.Side)
	case !c.Followed(trade.TraderWallet):
		return fmt.Errorf("trader %s not followed", trade.TraderWallet)
	case trade.Side == domain.TradeSideBuy && !trade.AmountSOL.IsPositive():
		return fmt.Errorf("non-positive buy amount %s", trade.AmountSOL.String())
	case trade.Side == domain.TradeSideSell && !trade.TokenAmount.IsPositive():
		return fmt.Errorf("non-positive sell token amount %s", trade.TokenAmount.String())
	}
	return nil
}

func (c *Controller) admitBuy(ctx context.Context, trade domain.TraderTrade, settings Settings) (domain.CopyTrade, error) {
	trader := trade.TraderWallet
	token := trade.TokenMint

	if reason := c.checkRateLimits(ctx, trade, settings); reason != "" {
		return domain.CopyTrade{}, c.reject(ctx, trade, reason)
	}

	copySOL, err := CopyAmountSOL(trade, settings)
	if err != nil {
		return domain.CopyTrade{}, c.reject(ctx, trade, err.Error())
	}
	copySOL, err = ClampPositionSize(copySOL, settings)
	if err != nil {
		return domain.CopyTrade{}, c.reject(ctx, trade, err.Error())
	}

	available, err := c.balances.EffectiveAvailableForTrade(ctx, c.open.TotalOpenSOL())
	if err != nil {
		return domain.CopyTrade{}, c.reject(ctx, trade, fmt.Sprintf("balance unavailable: %v", err))
	}
	daily, err := c.counters.DailyVolume(ctx, trader)
	if err != nil {
		c.logger.Warn("daily volume read failed, assuming zero", slog.Any("error", err))
		daily = decimal.Zero
	}

	req := &CheckRequest{
		Trader:         trader,
		Token:          token,
		CopySOL:        copySOL,
		Settings:       settings,
		AvailableSOL:   available,
		TotalOpenSOL:   c.open.TotalOpenSOL(),
		DailyVolumeSOL: daily,
	}
	ok, results := c.engine.Evaluate(ctx, req)
	if !ok {
		return domain.CopyTrade{}, c.reject(ctx, trade, firstFailure(results))
	}

	if err := c.counters.RecordBuy(ctx, trader, token); err != nil {
		c.logger.Warn("recording buy counters failed", slog.Any("error", err))
	}
	if err := c.counters.AddDailyVolume(ctx, trader, copySOL); err != nil {
		c.logger.Warn("recording daily volume failed", slog.Any("error", err))
	}

	c.accept(ctx, trade)
	return domain.CopyTrade{
		TraderTrade:     trade,
		CopyAmountSOL:   copySOL,
		CopyTokenAmount: ScaledTokenAmount(trade, copySOL),
	}, nil
}

// admitSell sizes the token leg proportionally to the fraction of their
// holding the trader sold, capped at what this wallet actually holds. A
// sell never rejects on limits; it only keeps the counters symmetric.
func (c *Controller) admitSell(ctx context.Context, trade domain.TraderTrade, settings Settings) (domain.CopyTrade, error) {
	trader := trade.TraderWallet
	token := trade.TokenMint

	held, err := c.balances.TokenBalance(ctx, token)
	if err != nil {
		c.logger.Warn("token balance read failed", slog.Any("error", err))
		held = decimal.Zero
	}

	req := &CheckRequest{
		Trader:       trader,
		Token:        token,
		Settings:     settings,
		TokenBalance: held,
		TokensToSell: sellTokens(trade, held),
		IsSell:       true,
	}
	ok, results := c.engine.Evaluate(ctx, req)
	if !ok {
		return domain.CopyTrade{}, c.reject(ctx, trade, firstFailure(results))
	}

	if err := c.counters.RecordSell(ctx, trader, token); err != nil {
		c.logger.Warn("recording sell counters failed", slog.Any("error", err))
	}

	tokens := sellTokens(trade, held)
	c.accept(ctx, trade)
	return domain.CopyTrade{
		TraderTrade:     trade,
		CopyAmountSOL:   tokens.Mul(trade.Price()),
		CopyTokenAmount: tokens,
	}, nil
}

// sellTokens mirrors the fraction of their position the trader sold. When
// the trader exited completely the whole holding is sold.
func sellTokens(trade domain.TraderTrade, held decimal.Decimal) decimal.Decimal {
	if held.IsZero() {
		return decimal.Zero
	}
	if trade.NewTokenBalance.IsZero() {
		return held
	}
	total := trade.TokenAmount.Add(trade.NewTokenBalance)
	if total.IsZero() {
		return held
	}
	tokens := held.Mul(trade.TokenAmount.Div(total))
	if tokens.GreaterThan(held) {
		return held
	}
	return tokens
}

// checkRateLimits applies the ordered fast-path rules for buys. Counters
// and the authoritative open-queue counts are consulted together; ties
// resolve in favor of traders already holding the token, who are exempt
// from the per-token trader cap.
func (c *Controller) checkRateLimits(ctx context.Context, trade domain.TraderTrade, settings Settings) string {
	trader := trade.TraderWallet
	token := trade.TokenMint

	if settings.MinTradeInterval > 0 {
		last, ok, err := c.counters.LastBuyAt(ctx, trader)
		if err != nil {
			c.logger.Warn("last-buy read failed, skipping interval check", slog.Any("error", err))
		} else if ok && time.Since(last) < settings.MinTradeInterval {
			return fmt.Sprintf("buy within %s of previous buy (minimum interval %s)",
				time.Since(last).Truncate(time.Millisecond), settings.MinTradeInterval)
		}
	}

	alreadyInToken := c.open.HasPosition(trader, token)
	if cached, err := c.counters.TraderHoldsToken(ctx, token, trader); err == nil && cached {
		alreadyInToken = true
	}

	if settings.MaxTradersPerToken > 0 && !alreadyInToken {
		holders := int64(c.open.TraderCount(token))
		if cached, err := c.counters.TraderCountForToken(ctx, token); err == nil && cached > holders {
			holders = cached
		}
		if holders >= int64(settings.MaxTradersPerToken) {
			return fmt.Sprintf("token already held by %d traders (cap %d)", holders, settings.MaxTradersPerToken)
		}
	}

	if settings.MaxOpenTokens > 0 && !alreadyInToken {
		open := int64(c.open.TokenCount(trader))
		if cached, err := c.counters.TokenCountForTrader(ctx, trader); err == nil && cached > open {
			open = cached
		}
		if open >= int64(settings.MaxOpenTokens) {
			return fmt.Sprintf("trader already holds %d tokens (cap %d)", open, settings.MaxOpenTokens)
		}
	}

	if settings.MaxPositionsPerToken > 0 {
		count := int64(c.open.PositionCount(trader, token))
		if cached, err := c.counters.PositionCount(ctx, trader, token); err == nil && cached > count {
			count = cached
		}
		if count >= int64(settings.MaxPositionsPerToken) {
			return fmt.Sprintf("pair already has %d positions (cap %d)", count, settings.MaxPositionsPerToken)
		}
	}

	return ""
}

func firstFailure(results []CheckResult) string {
	for _, r := range results {
		if r.Severity != SeverityPass {
			return fmt.Sprintf("%s: %s", r.Name, r.Reason)
		}
	}
	return "validation failed"
}

func (c *Controller) accept(ctx context.Context, trade domain.TraderTrade) {
	c.mu.Lock()
	c.accepted++
	c.mu.Unlock()

	if c.journal != nil {
		if err := c.journal.Insert(ctx, trade, true, ""); err != nil {
			c.logger.Warn("journal insert failed", slog.Any("error", err))
		}
	}
}

func (c *Controller) reject(ctx context.Context, trade domain.TraderTrade, reason string) error {
	c.mu.Lock()
	c.rejected++
	c.mu.Unlock()

	c.logger.Info("trade rejected",
		slog.String("trader", trade.TraderWallet),
		slog.String("token", trade.TokenMint),
		slog.String("side", string(trade.Side)),
		slog.String("reason", reason))

	if c.journal != nil {
		if err := c.journal.Insert(ctx, trade, false, reason); err != nil {
			c.logger.Warn("journal insert failed", slog.Any("error", err))
		}
	}
	return fmt.Errorf("admission: %s: %w", reason, domain.ErrTradeRejected)
}
