package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

func testIntent(signature string, observedAt time.Time) *domain.TradeIntent {
	out := uint64(950_000)
	return &domain.TradeIntent{
		SourceAccount: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
		RawSignature:  signature,
		Slot:          250_000_001,
		ObservedAt:    observedAt,
		Direction:     domain.DirectionBuy,
		InputMint:     "So11111111111111111111111111111111111111112",
		OutputMint:    "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		InputAmount:   1_000_000_000,
		OutputAmount:  &out,
		Venue:         domain.VenueRaydium,
	}
}

func TestIntentStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIntentStore(pool)
	ctx := context.Background()

	intent := testIntent("sig-intent-1", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, store.Insert(ctx, intent))

	got, err := store.GetBySignature(ctx, "sig-intent-1")
	require.NoError(t, err)

	assert.Equal(t, intent.SourceAccount, got.SourceAccount)
	assert.Equal(t, intent.Slot, got.Slot)
	assert.Equal(t, domain.DirectionBuy, got.Direction)
	assert.Equal(t, intent.InputMint, got.InputMint)
	assert.Equal(t, intent.OutputMint, got.OutputMint)
	assert.Equal(t, intent.InputAmount, got.InputAmount)
	require.NotNil(t, got.OutputAmount)
	assert.Equal(t, *intent.OutputAmount, *got.OutputAmount)
	assert.Equal(t, domain.VenueRaydium, got.Venue)
}

func TestIntentStore_DuplicateSignature(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIntentStore(pool)
	ctx := context.Background()

	intent := testIntent("sig-dup", time.Now().UTC())
	require.NoError(t, store.Insert(ctx, intent))

	err := store.Insert(ctx, testIntent("sig-dup", time.Now().UTC()))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestIntentStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIntentStore(pool)

	_, err := store.GetBySignature(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntentStore_NilOutputAmount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIntentStore(pool)
	ctx := context.Background()

	intent := testIntent("sig-no-out", time.Now().UTC())
	intent.OutputAmount = nil
	require.NoError(t, store.Insert(ctx, intent))

	got, err := store.GetBySignature(ctx, "sig-no-out")
	require.NoError(t, err)
	assert.Nil(t, got.OutputAmount)
}

func TestIntentStore_LatestSignatures(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewIntentStore(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, sig := range []string{"sig-a", "sig-b", "sig-c"} {
		intent := testIntent(sig, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, store.Insert(ctx, intent))
	}

	sigs, err := store.LatestSignatures(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	assert.Equal(t, "sig-c", sigs[0])
	assert.Equal(t, "sig-b", sigs[1])
}
