package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetBalance returns the lamport balance of an account at confirmed commitment.
func (c *HTTPClient) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	params := []interface{}{
		pubkey,
		map[string]string{"commitment": "confirmed"},
	}

	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", params, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// GetTokenBalance returns the owner's total base-unit balance for a mint,
// summed across token accounts, at confirmed commitment.
func (c *HTTPClient) GetTokenBalance(ctx context.Context, owner, mint string) (uint64, error) {
	params := []interface{}{
		owner,
		map[string]string{"mint": mint},
		map[string]string{"encoding": "jsonParsed", "commitment": "confirmed"},
	}

	var result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								Amount string `json:"amount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return 0, err
	}

	var total uint64
	for _, v := range result.Value {
		total += parseRawAmount(v.Account.Data.Parsed.Info.TokenAmount.Amount)
	}
	return total, nil
}

// GetLatestBlockhash returns a recent blockhash for transaction assembly.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error) {
	params := []interface{}{
		map[string]string{"commitment": "confirmed"},
	}

	var result struct {
		Value struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return nil, err
	}
	return &LatestBlockhash{
		Blockhash:            result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

// SendTransaction submits a signed, base64-encoded transaction. Preflight is
// skipped: simulation adds latency and the quote was fetched moments ago.
func (c *HTTPClient) SendTransaction(ctx context.Context, txBase64 string) (string, error) {
	params := []interface{}{
		txBase64,
		map[string]interface{}{
			"encoding":      "base64",
			"skipPreflight": true,
			"maxRetries":    0,
		},
	}

	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// GetSignatureStatuses returns confirmation status per signature.
// The returned slice is positionally aligned with the input; entries are nil
// for signatures the cluster does not know about.
func (c *HTTPClient) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	params := []interface{}{
		signatures,
		map[string]bool{"searchTransactionHistory": true},
	}

	var result struct {
		Value []*signatureStatusResult `json:"value"`
	}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}

	statuses := make([]*SignatureStatus, len(result.Value))
	for i, v := range result.Value {
		if v == nil {
			continue
		}
		statuses[i] = &SignatureStatus{
			Slot:               v.Slot,
			Confirmations:      v.Confirmations,
			ConfirmationStatus: v.ConfirmationStatus,
			Err:                v.Err,
		}
	}
	return statuses, nil
}

type signatureStatusResult struct {
	Slot               int64       `json:"slot"`
	Confirmations      *int        `json:"confirmations"`
	ConfirmationStatus string      `json:"confirmationStatus"`
	Err                interface{} `json:"err"`
}

// GetSignaturesForAddress retrieves signatures for an address with pagination.
func (c *HTTPClient) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	config := make(map[string]interface{})
	if opts != nil {
		if opts.Before != "" {
			config["before"] = opts.Before
		}
		if opts.Until != "" {
			config["until"] = opts.Until
		}
		if opts.Limit > 0 {
			config["limit"] = opts.Limit
		}
	}

	params := []interface{}{address}
	if len(config) > 0 {
		params = append(params, config)
	}

	var result []getSignaturesResult
	if err := c.call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}

	sigs := make([]SignatureInfo, len(result))
	for i, r := range result {
		sigs[i] = SignatureInfo{
			Signature: r.Signature,
			Slot:      r.Slot,
			BlockTime: r.BlockTime,
			Err:       r.Err,
		}
	}

	return sigs, nil
}

// getSignaturesResult is the raw RPC response item for getSignaturesForAddress.
type getSignaturesResult struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// GetTransaction retrieves a transaction by signature.
// Returns nil if the transaction is not found.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "json",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result getTransactionResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}

	if result.Slot == 0 && result.BlockTime == nil {
		// Transaction not found
		return nil, nil
	}

	tx := &Transaction{
		Slot:      result.Slot,
		Signature: signature,
	}

	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}

	if result.Meta != nil {
		tx.Meta = &TransactionMeta{
			Err:               result.Meta.Err,
			LogMessages:       result.Meta.LogMessages,
			PreTokenBalances:  convertTokenBalances(result.Meta.PreTokenBalances),
			PostTokenBalances: convertTokenBalances(result.Meta.PostTokenBalances),
		}
	}

	if result.Transaction != nil && result.Transaction.Message != nil {
		tx.Message = &TransactionMessage{
			AccountKeys: result.Transaction.Message.AccountKeys,
		}
	}

	return tx, nil
}

// getTransactionResult is the raw RPC response for getTransaction.
type getTransactionResult struct {
	Slot        int64               `json:"slot"`
	BlockTime   *int64              `json:"blockTime"`
	Meta        *getTransactionMeta `json:"meta"`
	Transaction *getTransactionTx   `json:"transaction"`
}

type getTransactionMeta struct {
	Err               interface{}         `json:"err"`
	LogMessages       []string            `json:"logMessages"`
	PreTokenBalances  []tokenBalanceEntry `json:"preTokenBalances"`
	PostTokenBalances []tokenBalanceEntry `json:"postTokenBalances"`
}

type getTransactionTx struct {
	Message *getTransactionMessage `json:"message"`
}

type getTransactionMessage struct {
	AccountKeys []string `json:"accountKeys"`
}

type tokenBalanceEntry struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount   string `json:"amount"`
		Decimals int    `json:"decimals"`
	} `json:"uiTokenAmount"`
}

func convertTokenBalances(entries []tokenBalanceEntry) []TokenBalance {
	if len(entries) == 0 {
		return nil
	}
	balances := make([]TokenBalance, 0, len(entries))
	for _, e := range entries {
		balances = append(balances, TokenBalance{
			AccountIndex: e.AccountIndex,
			Mint:         e.Mint,
			Owner:        e.Owner,
			Amount:       parseRawAmount(e.UITokenAmount.Amount),
			Decimals:     e.UITokenAmount.Decimals,
		})
	}
	return balances
}

// parseRawAmount parses the decimal-string raw amount the RPC returns.
// Malformed or overflowing values yield 0 rather than an error; token
// balance deltas are advisory and must not fail transaction lookup.
func parseRawAmount(s string) uint64 {
	var v uint64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		d := uint64(r - '0')
		if v > (math.MaxUint64-d)/10 {
			return 0
		}
		v = v*10 + d
	}
	return v
}
