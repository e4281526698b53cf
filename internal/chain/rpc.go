package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// lamportsPerSOL converts raw balance values to SOL.
var lamportsPerSOL = decimal.NewFromInt(1_000_000_000)

// RPCClient is the HTTP JSON-RPC client for a Solana node.
type RPCClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	nextID     atomic.Int64
}

// NewRPCClient creates a client for the given RPC endpoint.
func NewRPCClient(url string, logger *slog.Logger) *RPCClient {
	return &RPCClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "rpc_client")),
	}
}

// call performs one JSON-RPC request and decodes the result into out.
func (c *RPCClient) call(ctx context.Context, method string, params any, out any) error {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("chain: marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("chain: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chain: %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("chain: read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chain: %s: status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope rpcResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("chain: decode %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("chain: %s: rpc error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("chain: decode %s result: %w", method, err)
		}
	}
	return nil
}

// GetSOLBalance returns the wallet's native balance in SOL.
func (c *RPCClient) GetSOLBalance(ctx context.Context, wallet string) (decimal.Decimal, error) {
	var result contextValue[uint64]
	params := []any{wallet, map[string]string{"commitment": "confirmed"}}
	if err := c.call(ctx, "getBalance", params, &result); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromUint64(result.Value).Div(lamportsPerSOL), nil
}

// GetTokenBalances returns the wallet's balances for the given mints. Mints
// with no token account report zero.
func (c *RPCClient) GetTokenBalances(ctx context.Context, wallet string, mints []string) ([]domain.TokenBalance, error) {
	out := make([]domain.TokenBalance, 0, len(mints))
	for _, mint := range mints {
		var result tokenAccountsResult
		params := []any{
			wallet,
			map[string]string{"mint": mint},
			map[string]string{"encoding": "jsonParsed", "commitment": "confirmed"},
		}
		if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
			return nil, err
		}

		amount := decimal.Zero
		for _, acc := range result.Value {
			ui, err := decimal.NewFromString(acc.Account.Data.Parsed.Info.TokenAmount.UIAmountString)
			if err != nil {
				continue
			}
			amount = amount.Add(ui)
		}
		out = append(out, domain.TokenBalance{Mint: mint, Amount: amount})
	}
	return out, nil
}

// SignatureStatuses batch-queries the confirmation status of signatures.
// Signatures the node no longer knows about map to unknown.
func (c *RPCClient) SignatureStatuses(ctx context.Context, signatures []string) (map[string]domain.SignatureStatus, error) {
	if len(signatures) == 0 {
		return map[string]domain.SignatureStatus{}, nil
	}

	var result contextValue[[]*signatureStatusValue]
	params := []any{signatures, map[string]bool{"searchTransactionHistory": true}}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}

	statuses := make(map[string]domain.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		if i >= len(result.Value) || result.Value[i] == nil {
			statuses[sig] = domain.SignatureStatusUnknown
			continue
		}
		v := result.Value[i]
		if len(v.Err) > 0 && string(v.Err) != "null" {
			statuses[sig] = domain.SignatureStatusFailed
			continue
		}
		switch v.ConfirmationStatus {
		case "finalized":
			statuses[sig] = domain.SignatureStatusFinalized
		case "confirmed":
			statuses[sig] = domain.SignatureStatusConfirmed
		case "processed":
			statuses[sig] = domain.SignatureStatusProcessed
		default:
			statuses[sig] = domain.SignatureStatusUnknown
		}
	}
	return statuses, nil
}

// SendTransaction submits a base64-serialized signed transaction and
// returns its signature.
func (c *RPCClient) SendTransaction(ctx context.Context, txBase64 string, skipPreflight bool) (string, error) {
	var signature string
	params := []any{
		txBase64,
		map[string]any{"encoding": "base64", "skipPreflight": skipPreflight},
	}
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// AnalyzeTransaction fetches a settled transaction and derives what it did
// to the wallet: SOL and token deltas, fee, and the effective per-token
// price. Failed transactions come back classified by error kind.
func (c *RPCClient) AnalyzeTransaction(ctx context.Context, signature, wallet, mint string) (domain.TradeAnalysis, error) {
	var tx *transactionResult
	params := []any{
		signature,
		map[string]any{
			"encoding":                       "jsonParsed",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	}
	if err := c.call(ctx, "getTransaction", params, &tx); err != nil {
		return domain.TradeAnalysis{}, err
	}

	analysis := domain.TradeAnalysis{
		Signature:  signature,
		AnalyzedAt: time.Now(),
	}

	if tx == nil || tx.Meta == nil {
		analysis.Succeeded = false
		analysis.ErrorKind = domain.AnalysisErrTxNotFound
		analysis.ErrorMessage = "transaction not found"
		return analysis, nil
	}
	analysis.Slot = tx.Slot

	meta := tx.Meta
	if len(meta.Err) > 0 && string(meta.Err) != "null" {
		analysis.Succeeded = false
		analysis.ErrorKind = classifyTxError(string(meta.Err), meta.LogMessages)
		analysis.ErrorMessage = summarizeTxError(string(meta.Err), meta.LogMessages)
		return analysis, nil
	}

	// Locate the wallet's account index for the native balance delta.
	walletIdx := -1
	for i, key := range tx.Transaction.Message.AccountKeys {
		if key.Pubkey == wallet {
			walletIdx = i
			break
		}
	}

	analysis.FeeSOL = decimal.NewFromUint64(meta.Fee).Div(lamportsPerSOL)

	if walletIdx >= 0 && walletIdx < len(meta.PreBalances) && walletIdx < len(meta.PostBalances) {
		pre := decimal.NewFromUint64(meta.PreBalances[walletIdx])
		post := decimal.NewFromUint64(meta.PostBalances[walletIdx])
		// The fee is the cost of submission, not part of the traded amount.
		analysis.SOLDelta = post.Sub(pre).Div(lamportsPerSOL).Add(analysis.FeeSOL)
	}

	analysis.TokenDelta = tokenDelta(meta.PreTokenBalances, meta.PostTokenBalances, wallet, mint)

	if !analysis.TokenDelta.IsZero() {
		analysis.ExecutionPrice = analysis.SOLDelta.Abs().Div(analysis.TokenDelta.Abs())
	}

	analysis.Succeeded = true
	return analysis, nil
}

// tokenDelta computes the wallet's balance change for the mint across the
// transaction.
func tokenDelta(pre, post []tokenBalanceEntry, wallet, mint string) decimal.Decimal {
	find := func(entries []tokenBalanceEntry) decimal.Decimal {
		for _, e := range entries {
			if e.Owner != wallet || e.Mint != mint {
				continue
			}
			if d, err := decimal.NewFromString(e.UITokenAmount.UIAmountString); err == nil {
				return d
			}
		}
		return decimal.Zero
	}
	return find(post).Sub(find(pre))
}
