package postgres

import (
	"context"
	"fmt"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// IntentStore implements storage.IntentStore using PostgreSQL.
type IntentStore struct {
	pool *Pool
}

// NewIntentStore creates a new IntentStore.
func NewIntentStore(pool *Pool) *IntentStore {
	return &IntentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IntentStore = (*IntentStore)(nil)

// Insert adds a new intent. Returns ErrDuplicateKey if the signature exists.
// The write is committed before Insert returns; callers may treat a nil
// error as durable.
func (s *IntentStore) Insert(ctx context.Context, i *domain.TradeIntent) error {
	if i == nil || i.RawSignature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_intents (
			raw_signature, source_account, slot, observed_at,
			direction, input_mint, output_mint, input_amount, output_amount, venue
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		i.RawSignature, i.SourceAccount, i.Slot, i.ObservedAt,
		string(i.Direction), i.InputMint, i.OutputMint,
		int64(i.InputAmount), amountPtr(i.OutputAmount), string(i.Venue),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert intent: %w", err)
	}
	return nil
}

// GetBySignature retrieves an intent. Returns ErrNotFound if not exists.
func (s *IntentStore) GetBySignature(ctx context.Context, signature string) (*domain.TradeIntent, error) {
	query := `
		SELECT raw_signature, source_account, slot, observed_at,
		       direction, input_mint, output_mint, input_amount, output_amount, venue
		FROM trade_intents
		WHERE raw_signature = $1
	`

	var (
		i         domain.TradeIntent
		direction string
		venue     string
		amountIn  int64
		amountOut *int64
	)
	err := s.pool.QueryRow(ctx, query, signature).Scan(
		&i.RawSignature, &i.SourceAccount, &i.Slot, &i.ObservedAt,
		&direction, &i.InputMint, &i.OutputMint, &amountIn, &amountOut, &venue,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get intent %s: %w", signature, err)
	}

	i.Direction = domain.Direction(direction)
	i.Venue = domain.Venue(venue)
	i.InputAmount = uint64(amountIn)
	if amountOut != nil {
		v := uint64(*amountOut)
		i.OutputAmount = &v
	}
	return &i, nil
}

// LatestSignatures returns up to n most recently observed signatures, newest first.
func (s *IntentStore) LatestSignatures(ctx context.Context, n int) ([]string, error) {
	query := `
		SELECT raw_signature
		FROM trade_intents
		ORDER BY observed_at DESC, slot DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("latest signatures: %w", err)
	}
	defer rows.Close()

	var sigs []string
	for rows.Next() {
		var sig string
		if err := rows.Scan(&sig); err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		sigs = append(sigs, sig)
	}
	return sigs, rows.Err()
}

// amountPtr converts *uint64 to a nullable bigint argument.
func amountPtr(v *uint64) *int64 {
	if v == nil {
		return nil
	}
	out := int64(*v)
	return &out
}
