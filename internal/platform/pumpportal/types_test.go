package pumpportal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copybot/internal/domain"
)

func TestTradeEventToDomain(t *testing.T) {
	raw := `{
		"signature": "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7",
		"mint": "2q7jMwWYFxUdxBqWbi8ohztyG1agjQMrasUXwqGCpump",
		"traderPublicKey": "9yMwSPk9mrXSN7yDHUuZurAh1sjbJsfpUqjZ7SvVtdco",
		"txType": "buy",
		"tokenAmount": 1000.5,
		"solAmount": 0.25,
		"newTokenBalance": 1000.5,
		"bondingCurveKey": "BCurve111111111111111111111111111111111111",
		"vTokensInBondingCurve": 1000000,
		"vSolInBondingCurve": 32.5,
		"marketCapSol": 55.1,
		"pool": "pump"
	}`

	var ev tradeEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))

	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	trade, ok := ev.toDomain(at)
	require.True(t, ok)

	require.Equal(t, "9yMwSPk9mrXSN7yDHUuZurAh1sjbJsfpUqjZ7SvVtdco", trade.TraderWallet)
	require.Equal(t, domain.TradeSideBuy, trade.Side)
	require.Equal(t, "2q7jMwWYFxUdxBqWbi8ohztyG1agjQMrasUXwqGCpump", trade.TokenMint)
	require.True(t, trade.AmountSOL.Equal(decimal.RequireFromString("0.25")))
	require.True(t, trade.TokenAmount.Equal(decimal.RequireFromString("1000.5")))
	require.True(t, trade.NewTokenBalance.Equal(decimal.RequireFromString("1000.5")))
	require.Equal(t, "pump", trade.Pool)
	require.True(t, trade.VSOLInCurve.Equal(decimal.RequireFromString("32.5")))
	require.True(t, trade.MarketCapSOL.Equal(decimal.RequireFromString("55.1")))
	require.Equal(t, at, trade.Timestamp)
}

func TestTradeEventSkipsNonTradeEvents(t *testing.T) {
	for _, txType := range []string{"create", "migrate", ""} {
		ev := tradeEvent{TxType: txType, Mint: "mint", TraderPublicKey: "wallet"}
		_, ok := ev.toDomain(time.Now())
		require.False(t, ok, "txType %q should not produce a trade", txType)
	}
}

func TestSubscribeCmdWireFormat(t *testing.T) {
	cmd := subscribeCmd{Method: "subscribeAccountTrade", Keys: []string{"w1", "w2"}}
	b, err := json.Marshal(cmd)
	require.NoError(t, err)
	require.JSONEq(t, `{"method":"subscribeAccountTrade","keys":["w1","w2"]}`, string(b))

	b, err = json.Marshal(subscribeCmd{Method: "unsubscribeAccountTrade"})
	require.NoError(t, err)
	require.JSONEq(t, `{"method":"unsubscribeAccountTrade"}`, string(b))
}
