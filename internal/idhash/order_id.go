package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeOrderID computes a deterministic order_id using SHA256.
// Formula: SHA256(intent_signature|generation)
// Returns hex-encoded hash (64 characters).
//
// Determinism matters for idempotent recovery: re-sizing the same intent at
// the same generation after a restart produces the same order_id, so the
// store's duplicate-key check catches double processing.
func ComputeOrderID(intentSignature string, generation int) string {
	data := fmt.Sprintf("%s|%d", intentSignature, generation)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
