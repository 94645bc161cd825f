package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"solana-copy-trader/internal/solana"
)

// ErrNotFound is returned when a transaction is not found.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing. All fields are safe for
// concurrent use through the embedded mutex.
type RPCClient struct {
	mu sync.Mutex

	Transactions  map[string]*solana.Transaction
	Signatures    map[string][]solana.SignatureInfo
	Statuses      map[string]*solana.SignatureStatus
	Balances      map[string]uint64
	TokenBalances map[string]uint64 // keyed owner + "/" + mint
	Blockhash     string

	// SendErr, when set, is returned by SendTransaction.
	SendErr error
	// BalanceErr, when set, is returned by GetBalance.
	BalanceErr error
	// TokenBalanceErr, when set, is returned by GetTokenBalance.
	TokenBalanceErr error
	// sent records every transaction submitted through SendTransaction.
	sent []string
	seq  int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions:  make(map[string]*solana.Transaction),
		Signatures:    make(map[string][]solana.SignatureInfo),
		Statuses:      make(map[string]*solana.SignatureStatus),
		Balances:      make(map[string]uint64),
		TokenBalances: make(map[string]uint64),
		Blockhash:     "StubB1ockhash1111111111111111111111111111111",
	}
}

// GetBalance returns the configured balance for a pubkey.
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BalanceErr != nil {
		return 0, c.BalanceErr
	}
	return c.Balances[pubkey], nil
}

// GetTokenBalance returns the configured token balance for an owner and mint.
func (c *RPCClient) GetTokenBalance(_ context.Context, owner, mint string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.TokenBalanceErr != nil {
		return 0, c.TokenBalanceErr
	}
	return c.TokenBalances[owner+"/"+mint], nil
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.LatestBlockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &solana.LatestBlockhash{
		Blockhash:            c.Blockhash,
		LastValidBlockHeight: 1000,
	}, nil
}

// SendTransaction records the submission and returns a generated signature.
func (c *RPCClient) SendTransaction(_ context.Context, txBase64 string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return "", c.SendErr
	}
	c.seq++
	c.sent = append(c.sent, txBase64)
	return fmt.Sprintf("stub-tx-%d", c.seq), nil
}

// SentCount returns how many transactions were submitted.
func (c *RPCClient) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// GetSignatureStatuses returns configured statuses, nil for unknown signatures.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	statuses := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		statuses[i] = c.Statuses[sig]
	}
	return statuses, nil
}

// GetSignaturesForAddress retrieves signatures for an address from the stub store.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sigs, ok := c.Signatures[address]
	if !ok {
		return nil, nil
	}

	// Apply the until cursor the way the real RPC does: newest first,
	// stopping before the cursor signature.
	if opts != nil && opts.Until != "" {
		for i, s := range sigs {
			if s.Signature == opts.Until {
				sigs = sigs[:i]
				break
			}
		}
	}

	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		sigs = sigs[:opts.Limit]
	}

	out := make([]solana.SignatureInfo, len(sigs))
	copy(out, sigs)
	return out, nil
}

// GetTransaction retrieves a transaction by signature from the stub store.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, ok := c.Transactions[signature]
	if !ok {
		return nil, nil
	}
	return tx, nil
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// AddSignatures sets signatures for an address, newest first.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Signatures[address] = sigs
}

// SetStatus sets the status returned for a signature.
func (c *RPCClient) SetStatus(signature string, status *solana.SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses[signature] = status
}

// SetBalance sets the balance returned for a pubkey.
func (c *RPCClient) SetBalance(pubkey string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Balances[pubkey] = lamports
}

// SetTokenBalance sets the token balance returned for an owner and mint.
func (c *RPCClient) SetTokenBalance(owner, mint string, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenBalances[owner+"/"+mint] = amount
}
