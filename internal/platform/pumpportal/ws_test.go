package pumpportal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/feed"
)

// The trade feed consumes the client through this interface.
var _ feed.TradeStream = (*WSClient)(nil)

func TestHandleMessageDispatchesTrades(t *testing.T) {
	client := NewWSClient("wss://example.invalid/api/data")

	var got []domain.TraderTrade
	client.OnTrade(func(trade domain.TraderTrade) {
		got = append(got, trade)
	})

	client.handleMessage([]byte(`{
		"signature": "sig-1",
		"mint": "mint-1",
		"traderPublicKey": "wallet-1",
		"txType": "sell",
		"tokenAmount": 500,
		"solAmount": 1.25,
		"newTokenBalance": 0,
		"pool": "pump"
	}`))

	require.Len(t, got, 1)
	require.Equal(t, "sig-1", got[0].Signature)
	require.Equal(t, domain.TradeSideSell, got[0].Side)
}

func TestHandleMessageDropsNonTrades(t *testing.T) {
	client := NewWSClient("wss://example.invalid/api/data")

	calls := 0
	client.OnTrade(func(domain.TraderTrade) { calls++ })

	// Subscription acknowledgement: no signature or txType.
	client.handleMessage([]byte(`{"message":"Successfully subscribed to keys."}`))
	// Token creation event: carries a signature but is not a trade.
	client.handleMessage([]byte(`{"signature":"sig-2","mint":"mint-2","txType":"create"}`))
	// Garbage.
	client.handleMessage([]byte(`not json`))

	require.Zero(t, calls)
}
