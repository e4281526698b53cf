package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/copybot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePositionReader struct {
	open   map[string][]*domain.OpenPosition
	closed map[string][]*domain.OpenPosition
}

func (r *fakePositionReader) OpenPositions(_ context.Context, trader string) []*domain.OpenPosition {
	return r.open[trader]
}

func (r *fakePositionReader) ClosedPositions(_ context.Context, trader string) []*domain.OpenPosition {
	return r.closed[trader]
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(testLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.NotEmpty(t, body["timestamp"])
}

func TestListOpenRequiresTrader(t *testing.T) {
	h := NewPositionHandler(&fakePositionReader{}, testLogger())

	rec := httptest.NewRecorder()
	h.ListOpen(rec, httptest.NewRequest(http.MethodGet, "/api/positions/open", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body["error"], "trader")
}

func TestListOpenReturnsPositions(t *testing.T) {
	pos := &domain.OpenPosition{Status: domain.PositionStatusOpen}
	pos.ID = "pos-1"
	pos.Trade.TraderWallet = "wallet-a"
	pos.Trade.TokenMint = "mint-1"

	reader := &fakePositionReader{
		open: map[string][]*domain.OpenPosition{"wallet-a": {pos}},
	}
	h := NewPositionHandler(reader, testLogger())

	rec := httptest.NewRecorder()
	h.ListOpen(rec, httptest.NewRequest(http.MethodGet, "/api/positions/open?trader=wallet-a", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body listPositionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Positions, 1)
	require.Equal(t, "pos-1", body.Positions[0].ID)
}

func TestListClosedEmptyIsNotNull(t *testing.T) {
	h := NewPositionHandler(&fakePositionReader{}, testLogger())

	rec := httptest.NewRecorder()
	h.ListClosed(rec, httptest.NewRequest(http.MethodGet, "/api/positions/closed?trader=nobody", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"positions":[]}`, rec.Body.String())
}

func TestParseListOpts(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", query: "", wantLimit: 50, wantOffset: 0},
		{name: "explicit", query: "limit=20&offset=40", wantLimit: 20, wantOffset: 40},
		{name: "limit capped", query: "limit=9999", wantLimit: 500, wantOffset: 0},
		{name: "garbage ignored", query: "limit=abc&offset=-5", wantLimit: 50, wantOffset: 0},
		{name: "zero limit ignored", query: "limit=0", wantLimit: 50, wantOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/activity?"+tt.query, nil)
			opts := parseListOpts(r)
			require.Equal(t, tt.wantLimit, opts.Limit)
			require.Equal(t, tt.wantOffset, opts.Offset)
		})
	}
}
