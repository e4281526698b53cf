package pumpportal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/crypto"
	"github.com/alanyoungcy/copybot/internal/domain"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 4 << 20 // 4 MB

// TransactionSender submits a signed, base64-encoded transaction to the
// chain and returns its signature.
type TransactionSender interface {
	SendTransaction(ctx context.Context, txBase64 string, skipPreflight bool) (string, error)
}

// TradeConfig configures trade construction.
type TradeConfig struct {
	// BaseURL is the API root, e.g. "https://pumpportal.fun/api".
	BaseURL string

	// SlippagePercent is the allowed slippage on each trade, e.g. 10.
	SlippagePercent decimal.Decimal

	// PriorityFeeSOL is the priority fee attached to each trade.
	PriorityFeeSOL decimal.Decimal

	// Pool selects the liquidity pool; "auto" lets the API pick.
	Pool string
}

// TradeClient builds trades via the trade-local endpoint, signs them with
// the bot wallet, and submits them through an RPC sender.
type TradeClient struct {
	cfg        TradeConfig
	httpClient *http.Client
	keypair    *crypto.Keypair
	sender     TransactionSender
}

// NewTradeClient creates a trade client for the PumpPortal trading API.
func NewTradeClient(cfg TradeConfig, keypair *crypto.Keypair, sender TransactionSender) *TradeClient {
	if cfg.Pool == "" {
		cfg.Pool = "auto"
	}
	return &TradeClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		keypair: keypair,
		sender:  sender,
	}
}

// Place executes a copy trade: it requests a serialized transaction from
// trade-local, signs it, and submits it. It returns the transaction
// signature and the price implied by the trader's fill.
func (c *TradeClient) Place(ctx context.Context, trade domain.CopyTrade) (string, decimal.Decimal, error) {
	req := tradeRequest{
		PublicKey:   c.keypair.PublicKey(),
		Action:      string(trade.Side),
		Mint:        trade.TokenMint,
		Slippage:    c.cfg.SlippagePercent.String(),
		PriorityFee: c.cfg.PriorityFeeSOL.String(),
		Pool:        c.cfg.Pool,
	}
	switch trade.Side {
	case domain.TradeSideBuy:
		req.Amount = trade.CopyAmountSOL.String()
		req.DenominatedInSol = "true"
	case domain.TradeSideSell:
		req.Amount = trade.CopyTokenAmount.String()
		req.DenominatedInSol = "false"
	default:
		return "", decimal.Zero, fmt.Errorf("pumpportal/trade: unknown side %q", trade.Side)
	}

	unsigned, err := c.buildTransaction(ctx, req)
	if err != nil {
		return "", decimal.Zero, err
	}

	signed, err := c.keypair.SignTransaction(unsigned)
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("pumpportal/trade: %w: %v", domain.ErrSigningFailed, err)
	}

	signature, err := c.sender.SendTransaction(ctx, base64.StdEncoding.EncodeToString(signed), true)
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("pumpportal/trade: submit: %w", err)
	}

	return signature, trade.CopyPrice(), nil
}

// buildTransaction calls trade-local and returns the raw serialized,
// unsigned transaction bytes.
func (c *TradeClient) buildTransaction(ctx context.Context, reqBody tradeRequest) ([]byte, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("pumpportal/trade: marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/trade-local"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("pumpportal/trade: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pumpportal/trade: trade-local: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("pumpportal/trade: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pumpportal/trade: trade-local returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("pumpportal/trade: trade-local returned empty transaction")
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
