package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/retry"
)

type fakeInspector struct {
	mu       sync.Mutex
	statuses map[string]domain.SignatureStatus
	results  map[string]domain.TradeAnalysis
	calls    map[string]int
}

func newFakeInspector() *fakeInspector {
	return &fakeInspector{
		statuses: make(map[string]domain.SignatureStatus),
		results:  make(map[string]domain.TradeAnalysis),
		calls:    make(map[string]int),
	}
}

func (f *fakeInspector) SignatureStatuses(_ context.Context, sigs []string) (map[string]domain.SignatureStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]domain.SignatureStatus, len(sigs))
	for _, sig := range sigs {
		status, ok := f.statuses[sig]
		if !ok {
			status = domain.SignatureStatusUnknown
		}
		out[sig] = status
	}
	return out, nil
}

func (f *fakeInspector) AnalyzeTransaction(_ context.Context, signature, _, _ string) (domain.TradeAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[signature]++
	return f.results[signature], nil
}

func (f *fakeInspector) callCount(sig string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[sig]
}

func fastAnalyzer(f *routerFixture, inspector TxInspector) *Analyzer {
	cfg := AnalyzerConfig{
		PollInterval: 10 * time.Millisecond,
		MinAge:       -time.Second,
		Concurrency:  2,
		Retry:        retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond},
	}
	return NewAnalyzer(cfg, f.analysis, inspector, f.router, "wallet", testLogger())
}

func TestAnalyzerPushPathOpensPosition(t *testing.T) {
	f := newRouterFixture(t)
	inspector := newFakeInspector()
	analyzer := fastAnalyzer(f, inspector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = analyzer.Run(ctx)
	}()

	_, err := f.router.ProcessExecuted(ctx, copyTrade(domain.TradeSideBuy, "1", "1000"), "exec-sig", dec("0.001"))
	require.NoError(t, err)

	inspector.mu.Lock()
	inspector.results["exec-sig"] = domain.TradeAnalysis{
		Signature:      "exec-sig",
		Succeeded:      true,
		SOLDelta:       decimal.RequireFromString("-1"),
		TokenDelta:     decimal.RequireFromString("1000"),
		ExecutionPrice: dec("0.001"),
		AnalyzedAt:     time.Now(),
	}
	inspector.mu.Unlock()

	analyzer.OnSignatureEvent(domain.SignatureEvent{
		Signature: "exec-sig",
		Status:    domain.SignatureStatusFinalized,
		At:        time.Now(),
	})

	require.Eventually(t, func() bool { return f.open.Len() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, f.analysis.Len())

	cancel()
	<-done
}

func TestAnalyzerPollerResolvesSettled(t *testing.T) {
	f := newRouterFixture(t)
	inspector := newFakeInspector()
	analyzer := fastAnalyzer(f, inspector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = analyzer.Run(ctx)
	}()

	_, err := f.router.ProcessExecuted(ctx, copyTrade(domain.TradeSideBuy, "1", "1000"), "exec-sig", dec("0.001"))
	require.NoError(t, err)

	inspector.mu.Lock()
	inspector.statuses["exec-sig"] = domain.SignatureStatusConfirmed
	inspector.results["exec-sig"] = domain.TradeAnalysis{Signature: "exec-sig", Succeeded: true, AnalyzedAt: time.Now()}
	inspector.mu.Unlock()

	require.Eventually(t, func() bool { return f.open.Len() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestAnalyzerDefinitiveFailureSkipsRetries(t *testing.T) {
	f := newRouterFixture(t)
	inspector := newFakeInspector()
	analyzer := fastAnalyzer(f, inspector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = analyzer.Run(ctx)
	}()

	_, err := f.router.ProcessExecuted(ctx, copyTrade(domain.TradeSideBuy, "1", "1000"), "exec-sig", dec("0.001"))
	require.NoError(t, err)

	inspector.mu.Lock()
	inspector.results["exec-sig"] = domain.TradeAnalysis{
		Signature:    "exec-sig",
		Succeeded:    false,
		ErrorKind:    domain.AnalysisErrSlippage,
		ErrorMessage: "slippage tolerance exceeded",
	}
	inspector.mu.Unlock()

	analyzer.OnSignatureEvent(domain.SignatureEvent{Signature: "exec-sig", Status: domain.SignatureStatusFailed})

	require.Eventually(t, func() bool { return f.closed.Len() == 1 }, time.Second, 5*time.Millisecond)
	// The slippage verdict is final; no second analysis attempt was made.
	require.Equal(t, 1, inspector.callCount("exec-sig"))
	require.Equal(t, 0, f.open.Len())

	archived := f.closed.PositionsFor(testTrader, testToken)
	require.Len(t, archived, 1)
	require.Equal(t, domain.PositionStatusFailed, archived[0].Status)

	cancel()
	<-done
}

func TestAnalyzerRetriesUnknownFailures(t *testing.T) {
	f := newRouterFixture(t)
	inspector := newFakeInspector()
	analyzer := fastAnalyzer(f, inspector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = analyzer.Run(ctx)
	}()

	_, err := f.router.ProcessExecuted(ctx, copyTrade(domain.TradeSideBuy, "1", "1000"), "exec-sig", dec("0.001"))
	require.NoError(t, err)

	inspector.mu.Lock()
	inspector.results["exec-sig"] = domain.TradeAnalysis{
		Signature:    "exec-sig",
		Succeeded:    false,
		ErrorKind:    domain.AnalysisErrUnknown,
		ErrorMessage: "node behind",
	}
	inspector.mu.Unlock()

	analyzer.OnSignatureEvent(domain.SignatureEvent{Signature: "exec-sig", Status: domain.SignatureStatusFinalized})

	require.Eventually(t, func() bool { return f.closed.Len() == 1 }, time.Second, 5*time.Millisecond)
	// The ambiguous outcome burned the full retry budget.
	require.Equal(t, 2, inspector.callCount("exec-sig"))

	cancel()
	<-done
}
