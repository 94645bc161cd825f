package detector

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"

	"solana-copy-trader/internal/domain"
)

// Known program IDs.
const (
	// RaydiumAMMV4 is the Raydium AMM v4 program ID.
	RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	// PumpFun is the pump.fun program ID.
	PumpFun = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	// JupiterV6 is the Jupiter aggregator v6 program ID.
	JupiterV6 = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
)

// WSOL is the Wrapped SOL mint address.
const WSOL = "So11111111111111111111111111111111111111112"

// Parsing sentinels.
var (
	// ErrNoTrade means the logs contain no swap for this venue.
	ErrNoTrade = errors.New("no trade in logs")
	// ErrAmbiguous means a swap was detected but its fields could not be
	// extracted with confidence. The update must be dropped, never
	// completed with guessed values.
	ErrAmbiguous = errors.New("ambiguous trade data")
)

// parsedSwap is the venue-independent result of log parsing.
type parsedSwap struct {
	InputMint    string
	OutputMint   string
	InputAmount  uint64
	OutputAmount *uint64
}

// VenueParser extracts a swap from transaction logs for one venue.
type VenueParser interface {
	// Venue identifies the parser.
	Venue() domain.Venue
	// Parse extracts the swap or returns ErrNoTrade / ErrAmbiguous.
	Parse(logs []string) (*parsedSwap, error)
}

// direction derives the trade direction from the SOL side of the pair.
// A swap spending WSOL acquires a token (buy); one receiving WSOL disposes
// of a token (sell). Token-to-token swaps default to buy of the output.
func direction(inputMint, outputMint string) domain.Direction {
	if outputMint == WSOL && inputMint != WSOL {
		return domain.DirectionSell
	}
	return domain.DirectionBuy
}

// ---------------------------------------------------------------------------
// Raydium
// ---------------------------------------------------------------------------

// RaydiumParser parses Raydium AMM v4 swaps from ray_log entries.
type RaydiumParser struct {
	rayLogPattern *regexp.Regexp
	invokePattern *regexp.Regexp
}

// NewRaydiumParser creates a new Raydium parser.
func NewRaydiumParser() *RaydiumParser {
	return &RaydiumParser{
		rayLogPattern: regexp.MustCompile(`ray_log: ([A-Za-z0-9+/=]+)`),
		invokePattern: regexp.MustCompile(`Program ` + RaydiumAMMV4 + ` invoke`),
	}
}

// Venue identifies the parser.
func (p *RaydiumParser) Venue() domain.Venue { return domain.VenueRaydium }

// ray_log layout for swaps:
//
//	discriminator(1) + ammId(32) + inputMint(32) + outputMint(32) +
//	amountIn(8, LE) + amountOut(8, LE)
const rayLogSwapLen = 1 + 32 + 32 + 32 + 8 + 8

// Parse extracts the swap from Raydium logs.
func (p *RaydiumParser) Parse(logs []string) (*parsedSwap, error) {
	invoked := false
	for _, log := range logs {
		if p.invokePattern.MatchString(log) {
			invoked = true
		}

		matches := p.rayLogPattern.FindStringSubmatch(log)
		if matches == nil {
			continue
		}

		data, err := base64.StdEncoding.DecodeString(matches[1])
		if err != nil {
			continue
		}
		if !isRaydiumSwapLog(data) {
			continue
		}

		if len(data) < rayLogSwapLen {
			return nil, ErrAmbiguous
		}

		inputMint := base58.Encode(data[33:65])
		outputMint := base58.Encode(data[65:97])
		amountIn := binary.LittleEndian.Uint64(data[97:105])
		amountOut := binary.LittleEndian.Uint64(data[105:113])

		if amountIn == 0 || inputMint == outputMint {
			return nil, ErrAmbiguous
		}

		swap := &parsedSwap{
			InputMint:   inputMint,
			OutputMint:  outputMint,
			InputAmount: amountIn,
		}
		if amountOut > 0 {
			swap.OutputAmount = &amountOut
		}
		return swap, nil
	}

	if invoked {
		// The program ran but no parseable ray_log was emitted.
		return nil, ErrAmbiguous
	}
	return nil, ErrNoTrade
}

// isRaydiumSwapLog checks if ray_log data represents a swap instruction.
func isRaydiumSwapLog(data []byte) bool {
	if len(data) < 1 {
		return false
	}
	// Raydium discriminators: 0x09 = SwapBaseIn, 0x0b = SwapBaseOut
	disc := data[0]
	return disc == 0x09 || disc == 0x0b
}

// ---------------------------------------------------------------------------
// pump.fun
// ---------------------------------------------------------------------------

// PumpFunParser parses pump.fun buy/sell instructions from plain logs.
type PumpFunParser struct {
	buyPattern    *regexp.Regexp
	sellPattern   *regexp.Regexp
	mintPattern   *regexp.Regexp
	solPattern    *regexp.Regexp
	tokenPattern  *regexp.Regexp
	invokePattern *regexp.Regexp
}

// NewPumpFunParser creates a new pump.fun parser.
func NewPumpFunParser() *PumpFunParser {
	return &PumpFunParser{
		buyPattern:    regexp.MustCompile(`Program log: Instruction: Buy`),
		sellPattern:   regexp.MustCompile(`Program log: Instruction: Sell`),
		mintPattern:   regexp.MustCompile(`mint=([A-Za-z0-9]+)`),
		solPattern:    regexp.MustCompile(`sol_amount[=:]\s*(\d+)`),
		tokenPattern:  regexp.MustCompile(`token_amount[=:]\s*(\d+)`),
		invokePattern: regexp.MustCompile(`Program ` + PumpFun + ` invoke`),
	}
}

// Venue identifies the parser.
func (p *PumpFunParser) Venue() domain.Venue { return domain.VenuePumpFun }

// Parse extracts the swap from pump.fun logs. State resets at program
// boundaries so a mint from an earlier instruction never leaks into a later
// swap.
func (p *PumpFunParser) Parse(logs []string) (*parsedSwap, error) {
	var (
		inPumpFun   bool
		invoked     bool
		mint        string
		solAmount   uint64
		tokenAmount uint64
		isBuy       bool
		isSell      bool
	)

	for _, log := range logs {
		if p.invokePattern.MatchString(log) {
			inPumpFun = true
			invoked = true
			mint = ""
			solAmount = 0
			tokenAmount = 0
			continue
		}

		if strings.Contains(log, "Program "+PumpFun+" success") ||
			strings.Contains(log, "Program "+PumpFun+" failed") {
			if isBuy || isSell {
				break
			}
			inPumpFun = false
			continue
		}

		if !inPumpFun {
			continue
		}

		if m := p.mintPattern.FindStringSubmatch(log); m != nil {
			mint = m[1]
		}
		if m := p.solPattern.FindStringSubmatch(log); m != nil {
			if v, err := strconv.ParseUint(m[1], 10, 64); err == nil {
				solAmount = v
			}
		}
		if m := p.tokenPattern.FindStringSubmatch(log); m != nil {
			if v, err := strconv.ParseUint(m[1], 10, 64); err == nil {
				tokenAmount = v
			}
		}

		if p.buyPattern.MatchString(log) {
			isBuy = true
		}
		if p.sellPattern.MatchString(log) {
			isSell = true
		}
	}

	if !invoked {
		return nil, ErrNoTrade
	}
	if !isBuy && !isSell {
		return nil, ErrNoTrade
	}
	if mint == "" {
		return nil, ErrAmbiguous
	}

	if isBuy {
		if solAmount == 0 {
			return nil, ErrAmbiguous
		}
		swap := &parsedSwap{
			InputMint:   WSOL,
			OutputMint:  mint,
			InputAmount: solAmount,
		}
		if tokenAmount > 0 {
			swap.OutputAmount = &tokenAmount
		}
		return swap, nil
	}

	if tokenAmount == 0 {
		return nil, ErrAmbiguous
	}
	swap := &parsedSwap{
		InputMint:   mint,
		OutputMint:  WSOL,
		InputAmount: tokenAmount,
	}
	if solAmount > 0 {
		swap.OutputAmount = &solAmount
	}
	return swap, nil
}

// ---------------------------------------------------------------------------
// Jupiter
// ---------------------------------------------------------------------------

// JupiterParser parses Jupiter v6 route swaps from anchor event data.
type JupiterParser struct {
	dataPattern   *regexp.Regexp
	routePattern  *regexp.Regexp
	invokePattern *regexp.Regexp
}

// NewJupiterParser creates a new Jupiter parser.
func NewJupiterParser() *JupiterParser {
	return &JupiterParser{
		dataPattern:   regexp.MustCompile(`Program data: ([A-Za-z0-9+/=]+)`),
		routePattern:  regexp.MustCompile(`Program log: Instruction: (?:Route|SharedAccountsRoute|ExactOutRoute)`),
		invokePattern: regexp.MustCompile(`Program ` + JupiterV6 + ` invoke`),
	}
}

// Venue identifies the parser.
func (p *JupiterParser) Venue() domain.Venue { return domain.VenueJupiter }

// Jupiter swap event layout:
//
//	discriminator(8) + amm(32) + inputMint(32) + inputAmount(8, LE) +
//	outputMint(32) + outputAmount(8, LE)
const jupiterEventLen = 8 + 32 + 32 + 8 + 32 + 8

// Parse extracts the swap from Jupiter logs. Multi-hop routes emit one
// event per leg; the trade is the first leg's input to the last leg's
// output.
func (p *JupiterParser) Parse(logs []string) (*parsedSwap, error) {
	var (
		invoked bool
		routed  bool
		legs    []parsedSwap
	)

	for _, log := range logs {
		if p.invokePattern.MatchString(log) {
			invoked = true
		}
		if p.routePattern.MatchString(log) {
			routed = true
		}
		if !invoked {
			continue
		}

		matches := p.dataPattern.FindStringSubmatch(log)
		if matches == nil {
			continue
		}

		data, err := base64.StdEncoding.DecodeString(matches[1])
		if err != nil || len(data) < jupiterEventLen {
			continue
		}

		inAmount := binary.LittleEndian.Uint64(data[72:80])
		outAmount := binary.LittleEndian.Uint64(data[112:120])
		legs = append(legs, parsedSwap{
			InputMint:    base58.Encode(data[40:72]),
			OutputMint:   base58.Encode(data[80:112]),
			InputAmount:  inAmount,
			OutputAmount: &outAmount,
		})
	}

	if !invoked || !routed {
		return nil, ErrNoTrade
	}
	if len(legs) == 0 {
		return nil, ErrAmbiguous
	}

	first := legs[0]
	last := legs[len(legs)-1]
	if first.InputAmount == 0 || first.InputMint == last.OutputMint {
		return nil, ErrAmbiguous
	}

	swap := &parsedSwap{
		InputMint:   first.InputMint,
		OutputMint:  last.OutputMint,
		InputAmount: first.InputAmount,
	}
	if last.OutputAmount != nil && *last.OutputAmount > 0 {
		out := *last.OutputAmount
		swap.OutputAmount = &out
	}
	return swap, nil
}
