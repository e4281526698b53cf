package domain

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testOpen(sol, tokens string) *OpenPosition {
	return &OpenPosition{
		Position: Position{
			ID:           "pos-1",
			AmountSOL:    dec(sol),
			AmountTokens: dec(tokens),
		},
		Status: PositionStatusOpen,
	}
}

func fullRecord(sol, tokens string) CloseRecord {
	return CloseRecord{
		Kind: CloseKindFull,
		Close: &ClosePosition{
			Position:            Position{ID: "close-1"},
			Status:              CloseStatusSuccess,
			AmountSOLToClose:    dec(sol),
			AmountTokensToClose: dec(tokens),
		},
	}
}

func TestAppendCloseRederivesStatus(t *testing.T) {
	p := testOpen("1", "1000")

	require.NoError(t, p.AppendClose(fullRecord("0.4", "400")))
	require.Equal(t, PositionStatusPartiallyClosed, p.Status)
	require.True(t, p.RemainingTokens().Equal(dec("600")))
	require.True(t, p.RemainingSOL().Equal(dec("0.6")))
	require.False(t, p.FullyClosed())

	require.NoError(t, p.AppendClose(fullRecord("0.6", "600")))
	require.Equal(t, PositionStatusClosed, p.Status)
	require.True(t, p.FullyClosed())
}

func TestAppendCloseRejectsOverClose(t *testing.T) {
	p := testOpen("1", "1000")
	require.NoError(t, p.AppendClose(fullRecord("0.5", "600")))

	err := p.AppendClose(fullRecord("0.5", "500"))
	require.ErrorIs(t, err, ErrOverClose)
	require.Len(t, p.CloseHistory, 1)
	require.Equal(t, PositionStatusPartiallyClosed, p.Status)
}

func TestAppendCloseAllowsSOLAppreciation(t *testing.T) {
	p := testOpen("1", "1000")

	// Selling half the tokens at 4x the entry price realizes more SOL than
	// the whole position cost. Only the token side is conserved.
	require.NoError(t, p.AppendClose(fullRecord("2", "500")))
	require.Equal(t, PositionStatusPartiallyClosed, p.Status)
	require.True(t, p.RemainingTokens().Equal(dec("500")))
	require.True(t, p.RemainingSOL().IsZero())

	// Token over-close is still rejected on the appreciated position.
	err := p.AppendClose(fullRecord("2", "501"))
	require.ErrorIs(t, err, ErrOverClose)
	require.Len(t, p.CloseHistory, 1)
}

func TestRemainingNeverNegative(t *testing.T) {
	p := testOpen("1", "1000")
	// SOL overshoot is tolerated (closes can realize more SOL than was
	// spent); the floor keeps the remainder at zero.
	require.NoError(t, p.AppendClose(fullRecord("1.5", "1000")))
	require.True(t, p.RemainingSOL().IsZero())
	require.True(t, p.RemainingTokens().IsZero())
}

func TestCloseRecordAccessors(t *testing.T) {
	parent := &ClosePosition{
		Position: Position{
			ID:             "close-7",
			ExecutionPrice: dec("0.002"),
			FeeSOL:         dec("0.01"),
		},
		Status:              CloseStatusPartial,
		AmountSOLToClose:    dec("4"),
		AmountTokensToClose: dec("2000"),
	}

	full := CloseRecord{Kind: CloseKindFull, Close: parent}
	require.True(t, full.AmountSOL().Equal(dec("4")))
	require.True(t, full.AmountTokens().Equal(dec("2000")))
	require.True(t, full.ExecutionPrice().Equal(dec("0.002")))
	require.True(t, full.FeeSOL().Equal(dec("0.01")))

	sub := CloseRecord{
		Kind:  CloseKindSub,
		Close: parent,
		Portion: &SubClose{
			ID:            "sub-1",
			ParentCloseID: parent.ID,
			AmountSOL:     dec("1"),
			AmountTokens:  dec("500"),
			Status:        CloseStatusSuccess,
		},
	}
	require.True(t, sub.AmountSOL().Equal(dec("1")))
	require.True(t, sub.AmountTokens().Equal(dec("500")))
	require.True(t, sub.ExecutionPrice().Equal(dec("0.002")))
	// 500/2000 of the parent's 0.01 fee.
	require.True(t, sub.FeeSOL().Equal(dec("0.0025")))
}

func TestSubCloseFeeZeroParent(t *testing.T) {
	rec := CloseRecord{
		Kind:    CloseKindSub,
		Close:   &ClosePosition{},
		Portion: &SubClose{AmountTokens: dec("100")},
	}
	require.True(t, rec.FeeSOL().IsZero())
}

func TestSetMetadataEvictsOldest(t *testing.T) {
	p := &Position{ID: "pos-1"}
	for i := 0; i < metadataMaxKeys+1; i++ {
		p.SetMetadata(fmt.Sprintf("k%04d", i), i)
	}

	require.Len(t, p.Metadata, metadataMaxKeys+1-metadataEvictCount)
	for i := 0; i < metadataEvictCount; i++ {
		_, ok := p.Metadata[fmt.Sprintf("k%04d", i)]
		require.False(t, ok, "key k%04d should have been evicted", i)
	}
	_, ok := p.Metadata[fmt.Sprintf("k%04d", metadataMaxKeys)]
	require.True(t, ok)
	require.Len(t, p.MetadataOrder, len(p.Metadata))
}

func TestSetMetadataOverwriteKeepsOrder(t *testing.T) {
	p := &Position{ID: "pos-1"}
	p.SetMetadata("a", 1)
	p.SetMetadata("b", 2)
	p.SetMetadata("a", 3)

	require.Equal(t, []string{"a", "b"}, p.MetadataOrder)
	require.Equal(t, 3, p.Metadata["a"])
}

func TestTradeSideValid(t *testing.T) {
	require.True(t, TradeSideBuy.Valid())
	require.True(t, TradeSideSell.Valid())
	require.False(t, TradeSide("hold").Valid())
}

func TestCopyPriceFallsBack(t *testing.T) {
	c := CopyTrade{
		TraderTrade: TraderTrade{
			AmountSOL:   dec("2"),
			TokenAmount: dec("1000"),
		},
	}
	require.True(t, c.CopyPrice().Equal(dec("0.002")))

	c.CopyAmountSOL = dec("1")
	c.CopyTokenAmount = dec("400")
	require.True(t, c.CopyPrice().Equal(dec("0.0025")))
}
