package solana

import "context"

// RPCClient defines the Solana RPC HTTP surface the pipeline depends on.
type RPCClient interface {
	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetTokenBalance returns the owner's total balance for a mint, in base
	// units, summed across the owner's token accounts.
	GetTokenBalance(ctx context.Context, owner, mint string) (uint64, error)

	// GetLatestBlockhash returns a recent blockhash for transaction assembly.
	GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error)

	// SendTransaction submits a signed, base64-encoded transaction and
	// returns its signature.
	SendTransaction(ctx context.Context, txBase64 string) (string, error)

	// GetSignatureStatuses returns confirmation status for each signature.
	// Entries are nil for signatures the cluster does not know about.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetTransaction retrieves a confirmed transaction by signature.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{}
	LogMessages       []string
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string
}
