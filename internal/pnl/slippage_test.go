package pnl

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copybot/internal/domain"
)

func TestSlippagePercent(t *testing.T) {
	tests := []struct {
		name      string
		execution string
		expected  string
		want      string
	}{
		{"paid more", "0.0011", "0.001", "10"},
		{"paid less", "0.0009", "0.001", "-10"},
		{"exact", "0.001", "0.001", "0"},
		{"zero expected", "0.001", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SlippagePercent(dec(tt.execution), dec(tt.expected))
			require.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestEntrySlippage(t *testing.T) {
	p := &domain.OpenPosition{
		Position: domain.Position{
			Trade: domain.CopyTrade{
				TraderTrade: domain.TraderTrade{
					AmountSOL:   dec("1"),
					TokenAmount: dec("1000"),
				},
			},
			EntryPrice:     dec("0.001"),
			ExecutionPrice: dec("0.0011"),
		},
	}

	rep := EntrySlippage(p, dec("0.00125"))
	require.NotNil(t, rep.VsEntry)
	require.True(t, rep.VsEntry.Equal(dec("10")))
	require.NotNil(t, rep.VsTrader)
	require.True(t, rep.VsTrader.Equal(dec("10")))
	require.NotNil(t, rep.VsMarket)
	require.True(t, rep.VsMarket.Equal(dec("-12")))
}

func TestEntrySlippageMissingReferences(t *testing.T) {
	p := &domain.OpenPosition{
		Position: domain.Position{ExecutionPrice: dec("0.001")},
	}
	rep := EntrySlippage(p, decimal.Zero)
	require.Nil(t, rep.VsEntry)
	require.Nil(t, rep.VsTrader)
	require.Nil(t, rep.VsMarket)
}

func TestCloseSlippage(t *testing.T) {
	p := &domain.OpenPosition{
		Position: domain.Position{
			AmountTokens:   dec("1000"),
			ExecutionPrice: dec("0.001"),
		},
	}
	rec := domain.CloseRecord{
		Kind: domain.CloseKindFull,
		Close: &domain.ClosePosition{
			Position: domain.Position{
				ExecutionPrice: dec("0.0012"),
				Trade: domain.CopyTrade{
					TraderTrade: domain.TraderTrade{
						AmountSOL:   dec("1.25"),
						TokenAmount: dec("1000"),
					},
				},
			},
			AmountTokensToClose: dec("1000"),
		},
	}

	rep := CloseSlippage(p, rec, decimal.Zero)
	require.NotNil(t, rep.VsEntry)
	require.True(t, rep.VsEntry.Equal(dec("20")))
	require.NotNil(t, rep.VsTrader)
	require.True(t, rep.VsTrader.Equal(dec("-4")))
	require.Nil(t, rep.VsMarket)
}
