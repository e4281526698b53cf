package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStream struct {
	mu         sync.Mutex
	handler    func(domain.TraderTrade)
	subscribed []string
	connectErr error
}

func (s *fakeStream) Connect(context.Context) error { return s.connectErr }

func (s *fakeStream) SubscribeAccountTrades(_ context.Context, wallets []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = wallets
	return nil
}

func (s *fakeStream) OnTrade(handler func(domain.TraderTrade)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

func (s *fakeStream) Close() error { return nil }

func (s *fakeStream) deliver(trade domain.TraderTrade) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	h(trade)
}

type fakeAdmitter struct {
	mu     sync.Mutex
	reject map[string]bool
	seen   []string
}

func (a *fakeAdmitter) Admit(_ context.Context, trade domain.TraderTrade) (domain.CopyTrade, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, trade.Signature)
	if a.reject[trade.Signature] {
		return domain.CopyTrade{}, fmt.Errorf("admission: not followed: %w", domain.ErrTradeRejected)
	}
	return domain.CopyTrade{
		TraderTrade:     trade,
		CopyAmountSOL:   trade.AmountSOL,
		CopyTokenAmount: trade.TokenAmount,
	}, nil
}

type fakePriceCache struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func (c *fakePriceCache) SetPrice(_ context.Context, mint string, price decimal.Decimal, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prices == nil {
		c.prices = make(map[string]decimal.Decimal)
	}
	c.prices[mint] = price
	return nil
}

func (c *fakePriceCache) GetPrice(_ context.Context, mint string) (decimal.Decimal, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prices[mint]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	return p, time.Now(), nil
}

func (c *fakePriceCache) GetPrices(_ context.Context, mints []string) (map[string]decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]decimal.Decimal)
	for _, m := range mints {
		if p, ok := c.prices[m]; ok {
			out[m] = p
		}
	}
	return out, nil
}

func (c *fakePriceCache) price(mint string) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prices[mint]
}

func observedTrade(sig string) domain.TraderTrade {
	return domain.TraderTrade{
		TraderWallet: "trader-1",
		Side:         domain.TradeSideBuy,
		TokenMint:    "mint-1",
		Signature:    sig,
		AmountSOL:    decimal.RequireFromString("2"),
		TokenAmount:  decimal.RequireFromString("1000"),
		Timestamp:    time.Now(),
	}
}

func TestTradeFeedQueuesAdmittedTrades(t *testing.T) {
	stream := &fakeStream{}
	admitter := &fakeAdmitter{reject: map[string]bool{"sig-2": true}}
	prices := &fakePriceCache{}
	pending := queue.NewPendingQueue(10, nil, testLogger())

	feed := NewTradeFeed(stream, admitter, pending, prices, []string{"trader-1"}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = feed.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		return len(stream.subscribed) == 1
	}, time.Second, 5*time.Millisecond)

	stream.deliver(observedTrade("sig-1"))
	stream.deliver(observedTrade("sig-2"))

	require.Eventually(t, func() bool { return pending.Len() == 1 }, time.Second, 5*time.Millisecond)

	intent, ok := pending.Next()
	require.True(t, ok)
	require.Equal(t, "sig-1", intent.Signature)
	require.True(t, intent.CopyAmountSOL.Equal(decimal.RequireFromString("2")))

	// Both trades fed the price cache regardless of admission.
	require.True(t, prices.price("mint-1").Equal(decimal.RequireFromString("0.002")))

	cancel()
	<-done
}

func TestTradeFeedConnectFailure(t *testing.T) {
	stream := &fakeStream{connectErr: errors.New("dial refused")}
	pending := queue.NewPendingQueue(10, nil, testLogger())
	feed := NewTradeFeed(stream, &fakeAdmitter{}, pending, nil, []string{"trader-1"}, testLogger())

	err := feed.Run(context.Background())
	require.ErrorIs(t, err, stream.connectErr)
}

func TestTradeFeedStopsOnCancel(t *testing.T) {
	stream := &fakeStream{}
	pending := queue.NewPendingQueue(10, nil, testLogger())
	feed := NewTradeFeed(stream, &fakeAdmitter{}, pending, nil, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- feed.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("feed did not stop")
	}
}
