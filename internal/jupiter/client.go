// Package jupiter is a client for the Jupiter v6 aggregator API, used to
// build follower swap transactions.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL is the public Jupiter v6 quote API.
	DefaultBaseURL = "https://quote-api.jup.ag/v6"

	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 2
	retryBaseDelay    = 200 * time.Millisecond
)

// Client talks to the Jupiter quote and swap endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMaxRetries sets how many times a rate-limited request is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Jupiter API client. An empty baseURL selects the
// public v6 endpoint.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QuoteRequest are the parameters for a quote lookup. Amount is in the input
// mint's smallest unit.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
}

// Quote is a parsed quote response. Raw holds the exact response body, which
// the swap endpoint requires verbatim.
type Quote struct {
	InputMint            string `json:"inputMint"`
	InAmount             string `json:"inAmount"`
	OutputMint           string `json:"outputMint"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	SlippageBps          int    `json:"slippageBps"`
	PriceImpactPct       string `json:"priceImpactPct"`

	Raw json.RawMessage `json:"-"`
}

// OutAmountUnits returns the quoted output amount as an integer.
func (q *Quote) OutAmountUnits() (uint64, error) {
	v, err := strconv.ParseUint(q.OutAmount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quote outAmount %q: %w", q.OutAmount, err)
	}
	return v, nil
}

// SwapTransaction is the unsigned transaction returned by the swap endpoint.
type SwapTransaction struct {
	SwapTransaction      string `json:"swapTransaction"` // base64 serialized versioned transaction
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// GetQuote fetches a swap quote.
func (c *Client) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	params := url.Values{}
	params.Set("inputMint", req.InputMint)
	params.Set("outputMint", req.OutputMint)
	params.Set("amount", strconv.FormatUint(req.Amount, 10))
	params.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	params.Set("onlyDirectRoutes", "false")
	params.Set("asLegacyTransaction", "false")

	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("jupiter quote: %w", err)
	}

	var quote Quote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("decode jupiter quote: %w", err)
	}
	quote.Raw = body
	return &quote, nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports uint64          `json:"prioritizationFeeLamports"`
	AsLegacyTransaction       bool            `json:"asLegacyTransaction"`
}

// GetSwapTransaction exchanges a quote for an unsigned swap transaction.
func (c *Client) GetSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string, priorityFeeLamports uint64) (*SwapTransaction, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return nil, fmt.Errorf("jupiter swap: quote is empty")
	}

	payload, err := json.Marshal(swapRequest{
		QuoteResponse:             quote.Raw,
		UserPublicKey:             userPublicKey,
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: priorityFeeLamports,
	})
	if err != nil {
		return nil, fmt.Errorf("encode jupiter swap request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/swap", payload)
	if err != nil {
		return nil, fmt.Errorf("jupiter swap: %w", err)
	}

	var swap SwapTransaction
	if err := json.Unmarshal(body, &swap); err != nil {
		return nil, fmt.Errorf("decode jupiter swap: %w", err)
	}
	if swap.SwapTransaction == "" {
		return nil, fmt.Errorf("jupiter swap: response has no transaction")
	}
	return &swap, nil
}

// do performs one HTTP request with bounded retries on rate limiting.
func (c *Client) do(ctx context.Context, method, reqURL string, payload []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			c.logger.Printf("jupiter retry %d/%d after %v: %v", attempt, c.maxRetries, delay, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (status 429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
		}
		return body, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
