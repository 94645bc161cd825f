package solana

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// LatestBlockhash is the result of getLatestBlockhash.
type LatestBlockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
}

// SignatureStatus is one entry from getSignatureStatuses.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *int
	ConfirmationStatus string // processed | confirmed | finalized
	Err                interface{}
}

// Confirmed reports whether the transaction reached at least the
// confirmed commitment level.
func (s *SignatureStatus) Confirmed() bool {
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// TokenBalance is a pre/post token balance entry from transaction meta.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       uint64 // raw amount in the mint's minor units
	Decimals     int
}
