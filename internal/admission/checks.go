package admission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Severity grades a check outcome. Warnings pass unless strict mode is on;
// failures always reject.
type Severity int

const (
	SeverityPass Severity = iota
	SeverityWarning
	SeverityFail
)

func (s Severity) String() string {
	switch s {
	case SeverityPass:
		return "pass"
	case SeverityWarning:
		return "warning"
	default:
		return "fail"
	}
}

// CheckResult is one named check's verdict.
type CheckResult struct {
	Name     string
	Severity Severity
	Reason   string
}

func pass(name string) CheckResult {
	return CheckResult{Name: name, Severity: SeverityPass}
}

func warn(name, format string, args ...any) CheckResult {
	return CheckResult{Name: name, Severity: SeverityWarning, Reason: fmt.Sprintf(format, args...)}
}

func fail(name, format string, args ...any) CheckResult {
	return CheckResult{Name: name, Severity: SeverityFail, Reason: fmt.Sprintf(format, args...)}
}

// CheckRequest bundles everything a check may need: the candidate trade,
// the effective settings, and the sized copy amount.
type CheckRequest struct {
	Trader  string
	Token   string
	CopySOL decimal.Decimal

	Settings Settings

	// Authoritative reads resolved by the controller before the engine
	// runs, so individual checks stay pure.
	AvailableSOL   decimal.Decimal
	TokenBalance   decimal.Decimal
	TokensToSell   decimal.Decimal
	TotalOpenSOL   decimal.Decimal
	DailyVolumeSOL decimal.Decimal
	IsSell         bool
}

// Check is one named admission rule.
type Check struct {
	Name string
	Run  func(ctx context.Context, req *CheckRequest) CheckResult
}

// Engine evaluates checks in order. A failing check stops evaluation
// immediately; warnings accumulate and only reject in strict mode.
type Engine struct {
	checks []Check
	logger *slog.Logger
}

// NewEngine builds the engine with the standard rule set.
func NewEngine(logger *slog.Logger) *Engine {
	e := &Engine{logger: logger.With(slog.String("component", "validation_engine"))}
	e.checks = []Check{
		{Name: "sol_balance", Run: checkSOLBalance},
		{Name: "token_balance", Run: checkTokenBalance},
		{Name: "position_size", Run: checkPositionSize},
		{Name: "daily_volume", Run: checkDailyVolume},
		{Name: "investment_budget", Run: checkBudget},
	}
	return e
}

// Evaluate runs every check until a failure. It returns whether the trade
// may proceed and the collected results for logging and audit.
func (e *Engine) Evaluate(ctx context.Context, req *CheckRequest) (bool, []CheckResult) {
	results := make([]CheckResult, 0, len(e.checks))
	ok := true

	for _, c := range e.checks {
		res := c.Run(ctx, req)
		results = append(results, res)

		switch res.Severity {
		case SeverityFail:
			e.logger.Info("admission check failed",
				slog.String("check", res.Name),
				slog.String("trader", req.Trader),
				slog.String("token", req.Token),
				slog.String("reason", res.Reason))
			return false, results
		case SeverityWarning:
			e.logger.Warn("admission check warning",
				slog.String("check", res.Name),
				slog.String("trader", req.Trader),
				slog.String("reason", res.Reason))
			if req.Settings.StrictMode {
				ok = false
			}
		}
	}
	return ok, results
}

func checkSOLBalance(_ context.Context, req *CheckRequest) CheckResult {
	const name = "sol_balance"
	if req.IsSell {
		return pass(name)
	}
	if req.CopySOL.GreaterThan(req.AvailableSOL) {
		return fail(name, "copy amount %s exceeds available %s", req.CopySOL, req.AvailableSOL)
	}
	return pass(name)
}

func checkTokenBalance(_ context.Context, req *CheckRequest) CheckResult {
	const name = "token_balance"
	if !req.IsSell {
		return pass(name)
	}
	if req.TokenBalance.IsZero() {
		return fail(name, "no balance held for token %s", req.Token)
	}
	if req.TokensToSell.GreaterThan(req.TokenBalance) {
		return warn(name, "sell of %s exceeds held %s, will be capped", req.TokensToSell, req.TokenBalance)
	}
	return pass(name)
}

func checkPositionSize(_ context.Context, req *CheckRequest) CheckResult {
	const name = "position_size"
	if req.IsSell {
		return pass(name)
	}
	s := req.Settings
	if s.MinPositionSize.IsPositive() && req.CopySOL.LessThan(s.MinPositionSize) {
		return fail(name, "amount %s below minimum %s", req.CopySOL, s.MinPositionSize)
	}
	if s.MaxPositionSize.IsPositive() && req.CopySOL.GreaterThan(s.MaxPositionSize) {
		return fail(name, "amount %s above maximum %s", req.CopySOL, s.MaxPositionSize)
	}
	return pass(name)
}

func checkDailyVolume(_ context.Context, req *CheckRequest) CheckResult {
	const name = "daily_volume"
	if req.IsSell || !req.Settings.MaxDailyVolumeSOL.IsPositive() {
		return pass(name)
	}
	if req.DailyVolumeSOL.Add(req.CopySOL).GreaterThan(req.Settings.MaxDailyVolumeSOL) {
		return fail(name, "daily open volume %s plus %s exceeds cap %s",
			req.DailyVolumeSOL, req.CopySOL, req.Settings.MaxDailyVolumeSOL)
	}
	return pass(name)
}

func checkBudget(_ context.Context, req *CheckRequest) CheckResult {
	const name = "investment_budget"
	if req.IsSell || !req.Settings.MaxAmountToInvest.IsPositive() {
		return pass(name)
	}
	if req.TotalOpenSOL.Add(req.CopySOL).GreaterThan(req.Settings.MaxAmountToInvest) {
		return fail(name, "open exposure %s plus %s exceeds budget %s",
			req.TotalOpenSOL, req.CopySOL, req.Settings.MaxAmountToInvest)
	}
	return pass(name)
}
