package detector

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/mr-tron/base58"
)

const (
	testMint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	testMint2 = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	testPool  = "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"
)

// rayLog builds a base64 ray_log payload in the swap layout.
func rayLog(disc byte, pool, inMint, outMint string, amountIn, amountOut uint64) string {
	var buf bytes.Buffer
	buf.WriteByte(disc)
	for _, addr := range []string{pool, inMint, outMint} {
		decoded, _ := base58.Decode(addr)
		padded := make([]byte, 32)
		copy(padded, decoded)
		buf.Write(padded)
	}
	var amounts [16]byte
	binary.LittleEndian.PutUint64(amounts[0:8], amountIn)
	binary.LittleEndian.PutUint64(amounts[8:16], amountOut)
	buf.Write(amounts[:])
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func raydiumSwapLogs(inMint, outMint string, amountIn, amountOut uint64) []string {
	return []string{
		"Program " + RaydiumAMMV4 + " invoke [1]",
		"Program log: ray_log: " + rayLog(0x09, testPool, inMint, outMint, amountIn, amountOut),
		"Program " + RaydiumAMMV4 + " success",
	}
}

func TestRaydiumParser_Buy(t *testing.T) {
	p := NewRaydiumParser()

	swap, err := p.Parse(raydiumSwapLogs(WSOL, testMint, 1_000_000_000, 950_000))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if swap.InputMint != WSOL {
		t.Errorf("expected input WSOL, got %s", swap.InputMint)
	}
	if swap.OutputMint != testMint {
		t.Errorf("expected output %s, got %s", testMint, swap.OutputMint)
	}
	if swap.InputAmount != 1_000_000_000 {
		t.Errorf("expected input amount 1000000000, got %d", swap.InputAmount)
	}
	if swap.OutputAmount == nil || *swap.OutputAmount != 950_000 {
		t.Errorf("unexpected output amount: %v", swap.OutputAmount)
	}
	if direction(swap.InputMint, swap.OutputMint) != "buy" {
		t.Error("WSOL input should be a buy")
	}
}

func TestRaydiumParser_Sell(t *testing.T) {
	p := NewRaydiumParser()

	swap, err := p.Parse(raydiumSwapLogs(testMint, WSOL, 950_000, 1_000_000_000))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if direction(swap.InputMint, swap.OutputMint) != "sell" {
		t.Error("WSOL output should be a sell")
	}
}

func TestRaydiumParser_NoTrade(t *testing.T) {
	p := NewRaydiumParser()

	_, err := p.Parse([]string{
		"Program 11111111111111111111111111111111 invoke [1]",
		"Program log: Transfer",
	})
	if !errors.Is(err, ErrNoTrade) {
		t.Errorf("expected ErrNoTrade, got %v", err)
	}
}

func TestRaydiumParser_InvokedWithoutRayLogIsAmbiguous(t *testing.T) {
	p := NewRaydiumParser()

	_, err := p.Parse([]string{
		"Program " + RaydiumAMMV4 + " invoke [1]",
		"Program log: something unexpected",
		"Program " + RaydiumAMMV4 + " success",
	})
	if !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got %v", err)
	}
}

func TestRaydiumParser_TruncatedRayLogIsAmbiguous(t *testing.T) {
	p := NewRaydiumParser()

	short := base64.StdEncoding.EncodeToString([]byte{0x09, 0x01, 0x02})
	_, err := p.Parse([]string{
		"Program " + RaydiumAMMV4 + " invoke [1]",
		"Program log: ray_log: " + short,
	})
	if !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got %v", err)
	}
}

func TestRaydiumParser_ZeroInputIsAmbiguous(t *testing.T) {
	p := NewRaydiumParser()

	_, err := p.Parse(raydiumSwapLogs(WSOL, testMint, 0, 950_000))
	if !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got %v", err)
	}
}

func pumpFunLogs(instruction, mint string, solAmount, tokenAmount uint64) []string {
	return []string{
		"Program " + PumpFun + " invoke [1]",
		"Program log: Instruction: " + instruction,
		fmt.Sprintf("Program log: mint=%s sol_amount=%d token_amount=%d", mint, solAmount, tokenAmount),
		"Program " + PumpFun + " success",
	}
}

func TestPumpFunParser_Buy(t *testing.T) {
	p := NewPumpFunParser()

	swap, err := p.Parse(pumpFunLogs("Buy", testMint, 500_000_000, 12_000_000))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if swap.InputMint != WSOL {
		t.Errorf("buy should spend WSOL, got input %s", swap.InputMint)
	}
	if swap.OutputMint != testMint {
		t.Errorf("expected output %s, got %s", testMint, swap.OutputMint)
	}
	if swap.InputAmount != 500_000_000 {
		t.Errorf("expected input 500000000, got %d", swap.InputAmount)
	}
	if swap.OutputAmount == nil || *swap.OutputAmount != 12_000_000 {
		t.Errorf("unexpected output amount: %v", swap.OutputAmount)
	}
}

func TestPumpFunParser_Sell(t *testing.T) {
	p := NewPumpFunParser()

	swap, err := p.Parse(pumpFunLogs("Sell", testMint, 480_000_000, 12_000_000))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if swap.InputMint != testMint {
		t.Errorf("sell should spend the token, got input %s", swap.InputMint)
	}
	if swap.OutputMint != WSOL {
		t.Errorf("sell should receive WSOL, got output %s", swap.OutputMint)
	}
	if swap.InputAmount != 12_000_000 {
		t.Errorf("expected input 12000000, got %d", swap.InputAmount)
	}
}

func TestPumpFunParser_MissingMintIsAmbiguous(t *testing.T) {
	p := NewPumpFunParser()

	_, err := p.Parse([]string{
		"Program " + PumpFun + " invoke [1]",
		"Program log: Instruction: Buy",
		"Program log: sol_amount=500000000",
		"Program " + PumpFun + " success",
	})
	if !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got %v", err)
	}
}

func TestPumpFunParser_NonSwapInstructionIsNoTrade(t *testing.T) {
	p := NewPumpFunParser()

	_, err := p.Parse([]string{
		"Program " + PumpFun + " invoke [1]",
		"Program log: Instruction: Create",
		"Program " + PumpFun + " success",
	})
	if !errors.Is(err, ErrNoTrade) {
		t.Errorf("expected ErrNoTrade, got %v", err)
	}
}

// jupiterEvent builds a base64 anchor swap event payload.
func jupiterEvent(inMint string, inAmount uint64, outMint string, outAmount uint64) string {
	var buf bytes.Buffer
	buf.Write(make([]byte, 8)) // discriminator
	writeAddr := func(addr string) {
		decoded, _ := base58.Decode(addr)
		padded := make([]byte, 32)
		copy(padded, decoded)
		buf.Write(padded)
	}
	writeAddr(testPool) // amm
	writeAddr(inMint)
	var a [8]byte
	binary.LittleEndian.PutUint64(a[:], inAmount)
	buf.Write(a[:])
	writeAddr(outMint)
	binary.LittleEndian.PutUint64(a[:], outAmount)
	buf.Write(a[:])
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestJupiterParser_SingleLeg(t *testing.T) {
	p := NewJupiterParser()

	swap, err := p.Parse([]string{
		"Program " + JupiterV6 + " invoke [1]",
		"Program log: Instruction: Route",
		"Program data: " + jupiterEvent(WSOL, 2_000_000_000, testMint, 40_000_000),
		"Program " + JupiterV6 + " success",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if swap.InputMint != WSOL || swap.OutputMint != testMint {
		t.Errorf("unexpected pair %s -> %s", swap.InputMint, swap.OutputMint)
	}
	if swap.InputAmount != 2_000_000_000 {
		t.Errorf("expected input 2000000000, got %d", swap.InputAmount)
	}
	if swap.OutputAmount == nil || *swap.OutputAmount != 40_000_000 {
		t.Errorf("unexpected output amount: %v", swap.OutputAmount)
	}
}

func TestJupiterParser_MultiHopCollapsesToEnds(t *testing.T) {
	p := NewJupiterParser()

	swap, err := p.Parse([]string{
		"Program " + JupiterV6 + " invoke [1]",
		"Program log: Instruction: SharedAccountsRoute",
		"Program data: " + jupiterEvent(WSOL, 2_000_000_000, testMint2, 500_000),
		"Program data: " + jupiterEvent(testMint2, 500_000, testMint, 40_000_000),
		"Program " + JupiterV6 + " success",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if swap.InputMint != WSOL {
		t.Errorf("expected input WSOL, got %s", swap.InputMint)
	}
	if swap.OutputMint != testMint {
		t.Errorf("expected final output %s, got %s", testMint, swap.OutputMint)
	}
	if swap.InputAmount != 2_000_000_000 {
		t.Errorf("expected first-leg input, got %d", swap.InputAmount)
	}
	if swap.OutputAmount == nil || *swap.OutputAmount != 40_000_000 {
		t.Errorf("expected last-leg output, got %v", swap.OutputAmount)
	}
}

func TestJupiterParser_RouteWithoutEventsIsAmbiguous(t *testing.T) {
	p := NewJupiterParser()

	_, err := p.Parse([]string{
		"Program " + JupiterV6 + " invoke [1]",
		"Program log: Instruction: Route",
		"Program " + JupiterV6 + " success",
	})
	if !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got %v", err)
	}
}

func TestJupiterParser_NoTrade(t *testing.T) {
	p := NewJupiterParser()

	_, err := p.Parse([]string{"Program log: Transfer"})
	if !errors.Is(err, ErrNoTrade) {
		t.Errorf("expected ErrNoTrade, got %v", err)
	}
}
