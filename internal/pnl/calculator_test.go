package pnl

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copybot/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// pos holds 1000 tokens bought for 1 SOL at execution price 0.001, with a
// 0.01 SOL entry fee folded into the total cost.
func testPosition() *domain.OpenPosition {
	return &domain.OpenPosition{
		Position: domain.Position{
			ID:             "pos-1",
			AmountSOL:      dec("1"),
			AmountTokens:   dec("1000"),
			EntryPrice:     dec("0.0009"),
			ExecutionPrice: dec("0.001"),
			FeeSOL:         dec("0.01"),
			TotalCostSOL:   dec("1.01"),
		},
		Status: domain.PositionStatusOpen,
	}
}

func fullClose(tokens, sol, execPrice, fee string) domain.CloseRecord {
	return domain.CloseRecord{
		Kind: domain.CloseKindFull,
		Close: &domain.ClosePosition{
			Position: domain.Position{
				ID:             "close-1",
				ExecutionPrice: dec(execPrice),
				FeeSOL:         dec(fee),
				CreatedAt:      time.Now(),
			},
			Status:              domain.CloseStatusSuccess,
			AmountSOLToClose:    dec(sol),
			AmountTokensToClose: dec(tokens),
		},
	}
}

func TestCostBasis(t *testing.T) {
	p := testPosition()

	tests := []struct {
		name      string
		tokens    string
		withCosts bool
		want      string
	}{
		{"full without costs", "1000", false, "1"},
		{"full with costs", "1000", true, "1.01"},
		{"half without costs", "500", false, "0.5"},
		{"half with costs", "500", true, "0.505"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CostBasis(p, dec(tt.tokens), tt.withCosts)
			require.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestCostBasisZeroTokens(t *testing.T) {
	p := testPosition()
	p.AmountTokens = decimal.Zero
	require.True(t, CostBasis(p, dec("100"), true).IsZero())
}

func TestCostBasisFallsBackToEntryPrice(t *testing.T) {
	p := testPosition()
	p.ExecutionPrice = decimal.Zero
	// 1000 * 0.0009
	require.True(t, CostBasis(p, dec("1000"), false).Equal(dec("0.9")))
}

func TestClosePnL(t *testing.T) {
	p := testPosition()
	// Sell half the tokens at double the entry execution price.
	rec := fullClose("500", "1", "0.002", "0.005")

	// exit 500*0.002 = 1, basis 0.5
	require.True(t, ClosePnL(p, rec, false).Equal(dec("0.5")))
	// with costs: 1 - 0.505 - 0.005
	require.True(t, ClosePnL(p, rec, true).Equal(dec("0.49")))
}

func TestRealizedPnLAcrossHistory(t *testing.T) {
	p := testPosition()
	require.NoError(t, p.AppendClose(fullClose("500", "1", "0.002", "0.005")))
	require.NoError(t, p.AppendClose(fullClose("500", "0.25", "0.0005", "0.005")))

	// First close: 1 - 0.5 = 0.5; second: 0.25 - 0.5 = -0.25.
	require.True(t, RealizedPnL(p, false).Equal(dec("0.25")))
	// Net: 0.49 + (0.25 - 0.505 - 0.005) = 0.23.
	require.True(t, RealizedPnL(p, true).Equal(dec("0.23")))
	require.Equal(t, domain.PositionStatusClosed, p.Status)
}

func TestUnrealizedPnL(t *testing.T) {
	p := testPosition()
	require.NoError(t, p.AppendClose(fullClose("400", "0.8", "0.002", "0")))

	// 600 remaining marked at 0.003: 1.8 - 0.6 = 1.2.
	require.True(t, UnrealizedPnL(p, dec("0.003"), false).Equal(dec("1.2")))
	// With costs the basis is 1.01 * 0.6 = 0.606.
	require.True(t, UnrealizedPnL(p, dec("0.003"), true).Equal(dec("1.194")))
}

func TestUnrealizedPnLZeroWhenFullyClosed(t *testing.T) {
	p := testPosition()
	require.NoError(t, p.AppendClose(fullClose("1000", "2", "0.002", "0")))
	require.True(t, UnrealizedPnL(p, dec("0.005"), true).IsZero())
}

func TestTotalPnL(t *testing.T) {
	p := testPosition()
	require.NoError(t, p.AppendClose(fullClose("400", "0.8", "0.002", "0")))

	realized := RealizedPnL(p, false)
	unrealized := UnrealizedPnL(p, dec("0.003"), false)
	require.True(t, TotalPnL(p, dec("0.003"), false).Equal(realized.Add(unrealized)))
}

func TestAccumulatedFees(t *testing.T) {
	p := testPosition()
	require.NoError(t, p.AppendClose(fullClose("500", "1", "0.002", "0.005")))
	require.True(t, AccumulatedFees(p).Equal(dec("0.015")))
}

func TestSubCloseFeeShare(t *testing.T) {
	p := testPosition()
	parent := &domain.ClosePosition{
		Position: domain.Position{
			ID:             "close-2",
			ExecutionPrice: dec("0.002"),
			FeeSOL:         dec("0.01"),
		},
		Status:              domain.CloseStatusPartial,
		AmountSOLToClose:    dec("4"),
		AmountTokensToClose: dec("2000"),
	}
	rec := domain.CloseRecord{
		Kind:  domain.CloseKindSub,
		Close: parent,
		Portion: &domain.SubClose{
			ID:            "sub-1",
			ParentCloseID: parent.ID,
			AmountSOL:     dec("2"),
			AmountTokens:  dec("1000"),
			Status:        domain.CloseStatusSuccess,
		},
	}
	require.NoError(t, p.AppendClose(rec))

	// The portion consumed half the parent, so it carries half the fee.
	require.True(t, rec.FeeSOL().Equal(dec("0.005")))
	// exit 1000*0.002 = 2, basis 1.01, fee share 0.005.
	require.True(t, ClosePnL(p, rec, true).Equal(dec("0.985")))
}

func TestReport(t *testing.T) {
	p := testPosition()
	require.NoError(t, p.AppendClose(fullClose("400", "0.8", "0.002", "0.005")))

	b := Report(p, dec("0.003"))
	require.Equal(t, "pos-1", b.PositionID)
	require.True(t, b.Realized.Equal(dec("0.4")))
	require.True(t, b.RealizedNet.Equal(dec("0.391")))
	require.True(t, b.Unrealized.Equal(dec("1.2")))
	require.True(t, b.Fees.Equal(dec("0.015")))
	require.True(t, b.ClosedTokens.Equal(dec("400")))
	require.True(t, b.RemainsTokens.Equal(dec("600")))
}
