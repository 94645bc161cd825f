// Package wallet holds the follower keypair and signs swap transactions.
package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Signer wraps an ed25519 keypair loaded from a base58-encoded 64-byte
// private key (the Solana keypair wire format: 32-byte seed followed by the
// 32-byte public key).
type Signer struct {
	priv    ed25519.PrivateKey
	address string
}

// NewSigner parses a base58-encoded private key and validates the embedded
// public key.
func NewSigner(privateKeyBase58 string) (*Signer, error) {
	raw, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}

	priv := ed25519.PrivateKey(raw)
	pub := priv.Public().(ed25519.PublicKey)

	// The trailing 32 bytes must be the public key derived from the seed,
	// and a valid curve point.
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !priv.Equal(derived) {
		return nil, fmt.Errorf("private key public half does not match its seed")
	}
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return nil, fmt.Errorf("public key is not on the ed25519 curve: %w", err)
	}

	return &Signer{priv: priv, address: base58.Encode(pub)}, nil
}

// GenerateKey creates a fresh keypair and returns its base58 private key.
// Intended for tests and first-run setup.
func GenerateKey() (string, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate keypair: %w", err)
	}
	return base58.Encode(priv), nil
}

// Address returns the base58 wallet address.
func (s *Signer) Address() string { return s.address }

// Sign signs an arbitrary message.
func (s *Signer) Sign(message []byte) []byte {
	return ed25519.Sign(s.priv, message)
}

// SignTransaction signs a base64-serialized transaction as the fee payer.
// The input is the unsigned transaction returned by the swap endpoint: a
// compact-u16 signature count, that many zeroed 64-byte signature slots, then
// the message. The fee payer signature goes in slot zero.
func (s *Signer) SignTransaction(txBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}

	numSigs, offset, err := decodeCompactU16(raw)
	if err != nil {
		return "", fmt.Errorf("parse signature count: %w", err)
	}
	if numSigs == 0 {
		return "", fmt.Errorf("transaction declares no signature slots")
	}

	msgStart := offset + numSigs*ed25519.SignatureSize
	if msgStart >= len(raw) {
		return "", fmt.Errorf("transaction truncated: %d bytes, need signatures through %d", len(raw), msgStart)
	}

	sig := ed25519.Sign(s.priv, raw[msgStart:])
	copy(raw[offset:offset+ed25519.SignatureSize], sig)

	return base64.StdEncoding.EncodeToString(raw), nil
}

// decodeCompactU16 reads a compact-u16 length prefix, returning the value
// and the number of bytes consumed.
func decodeCompactU16(b []byte) (int, int, error) {
	var value, shift uint
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, fmt.Errorf("unexpected end of input")
		}
		elem := uint(b[i])
		value |= (elem & 0x7f) << shift
		if elem&0x80 == 0 {
			if value > 0xffff {
				return 0, 0, fmt.Errorf("value exceeds uint16")
			}
			return int(value), i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("length prefix too long")
}
