// Package chain talks to a Solana RPC node: balance reads, signature
// status queries, transaction inspection for the analysis stage, raw
// transaction submission, and the WebSocket signature watcher.
package chain

import "encoding/json"

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcError is the JSON-RPC error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope; Result is decoded by the
// caller.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// contextValue wraps results that carry the slot context.
type contextValue[T any] struct {
	Value T `json:"value"`
}

// signatureStatusValue is one entry of getSignatureStatuses.
type signatureStatusValue struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *uint64         `json:"confirmations"`
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

// tokenAmount is the parsed token amount object.
type tokenAmount struct {
	Amount         string `json:"amount"`
	Decimals       int32  `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

// tokenAccountsResult is the value of getTokenAccountsByOwner (jsonParsed).
type tokenAccountsResult struct {
	Value []struct {
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						Mint        string      `json:"mint"`
						TokenAmount tokenAmount `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

// tokenBalanceEntry is one pre/post token balance in transaction meta.
type tokenBalanceEntry struct {
	AccountIndex  int         `json:"accountIndex"`
	Mint          string      `json:"mint"`
	Owner         string      `json:"owner"`
	UITokenAmount tokenAmount `json:"uiTokenAmount"`
}

// transactionResult is the subset of getTransaction the analyzer needs.
type transactionResult struct {
	Slot        uint64 `json:"slot"`
	BlockTime   *int64 `json:"blockTime"`
	Transaction struct {
		Message struct {
			AccountKeys []struct {
				Pubkey string `json:"pubkey"`
			} `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
	Meta *struct {
		Err               json.RawMessage     `json:"err"`
		Fee               uint64              `json:"fee"`
		PreBalances       []uint64            `json:"preBalances"`
		PostBalances      []uint64            `json:"postBalances"`
		PreTokenBalances  []tokenBalanceEntry `json:"preTokenBalances"`
		PostTokenBalances []tokenBalanceEntry `json:"postTokenBalances"`
		LogMessages       []string            `json:"logMessages"`
	} `json:"meta"`
}

// wsNotification is the envelope of a WebSocket subscription notification.
type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Subscription int64           `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
	// Fields for subscribe acknowledgements.
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// signatureNotifyResult is the payload of a signatureNotification.
type signatureNotifyResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value struct {
		Err json.RawMessage `json:"err"`
	} `json:"value"`
}
