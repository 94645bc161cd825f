// Package detector turns raw feed updates into normalized trade intents.
// Parsing is conservative: an update that cannot be fully extracted is
// dropped and logged, never completed with placeholder values.
package detector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// Detector parses raw updates against the registered venue parsers and
// persists the resulting intents. One update yields at most one intent.
type Detector struct {
	sourceAccount string
	parsers       []VenueParser
	seen          *SignatureSet
	intents       storage.IntentStore
	logger        *log.Logger
}

// Options configures a Detector.
type Options struct {
	// SourceAccount is the address whose trades are being copied.
	SourceAccount string
	// DedupSize bounds the recently-seen signature set.
	DedupSize int
	// Parsers overrides the default venue parser set (tests only).
	Parsers []VenueParser
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// New creates a Detector with the default venue parsers registered.
func New(intents storage.IntentStore, opts Options) *Detector {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	parsers := opts.Parsers
	if parsers == nil {
		parsers = []VenueParser{
			NewRaydiumParser(),
			NewPumpFunParser(),
			NewJupiterParser(),
		}
	}
	dedupSize := opts.DedupSize
	if dedupSize < 1 {
		dedupSize = 8192
	}
	return &Detector{
		sourceAccount: opts.SourceAccount,
		parsers:       parsers,
		seen:          NewSignatureSet(dedupSize),
		intents:       intents,
		logger:        logger,
	}
}

// SeedFromStore loads the most recent persisted signatures into the dedup
// set so a restart does not re-trade intents from before the crash.
func (d *Detector) SeedFromStore(ctx context.Context) error {
	sigs, err := d.intents.LatestSignatures(ctx, d.seen.cap)
	if err != nil {
		return fmt.Errorf("seed dedup set: %w", err)
	}
	d.seen.Seed(sigs)
	return nil
}

// Process inspects one raw update. It returns the created intent, or nil
// when the update is a duplicate, a failed transaction, or not a
// recognizable trade. Only storage failures surface as errors.
func (d *Detector) Process(ctx context.Context, raw *domain.RawUpdate) (*domain.TradeIntent, error) {
	if raw == nil || raw.Signature == "" {
		return nil, nil
	}

	// Failed transactions moved no funds.
	if raw.Err != nil {
		return nil, nil
	}

	if d.seen.Seen(raw.Signature) {
		return nil, nil
	}

	swap, venue, err := d.parse(raw.Logs)
	if err != nil {
		if errors.Is(err, ErrAmbiguous) {
			d.logger.Printf("drop %s: ambiguous %s trade data", raw.Signature, venue)
		}
		return nil, nil
	}
	if swap == nil {
		d.logger.Printf("drop %s: no venue parser matched", raw.Signature)
		return nil, nil
	}

	intent := &domain.TradeIntent{
		SourceAccount:  d.sourceAccount,
		RawSignature:   raw.Signature,
		Slot:           raw.Slot,
		ObservedAt:     time.Now().UTC(),
		ObservedAtMono: raw.ReceivedAt,
		Direction:      direction(swap.InputMint, swap.OutputMint),
		InputMint:      swap.InputMint,
		OutputMint:     swap.OutputMint,
		InputAmount:    swap.InputAmount,
		OutputAmount:   swap.OutputAmount,
		Venue:          venue,
	}

	if err := intent.Validate(); err != nil {
		d.logger.Printf("drop %s: %v", raw.Signature, err)
		return nil, nil
	}

	if err := d.intents.Insert(ctx, intent); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Another path already persisted this signature.
			return nil, nil
		}
		return nil, fmt.Errorf("persist intent %s: %w", raw.Signature, err)
	}

	return intent, nil
}

// parse runs the venue parsers in registration order and returns the first
// definitive answer. ErrAmbiguous from a venue that recognized the logs
// stops the scan: a second venue must not reinterpret a half-parsed trade.
func (d *Detector) parse(logs []string) (*parsedSwap, domain.Venue, error) {
	for _, p := range d.parsers {
		swap, err := p.Parse(logs)
		if err == nil {
			return swap, p.Venue(), nil
		}
		if errors.Is(err, ErrAmbiguous) {
			return nil, p.Venue(), err
		}
	}
	return nil, domain.VenueUnrecognized, nil
}
