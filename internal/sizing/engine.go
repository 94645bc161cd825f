// Package sizing converts detected trade intents into sized orders under a
// configured risk policy. Rejections are structured outcomes, not errors:
// an intent the policy declines produces a SizingRejection and no order.
package sizing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"solana-copy-trader/internal/detector"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/idhash"
	"solana-copy-trader/internal/storage"
)

// Engine sizes orders for one follower account. Decisions for the same
// source account are linearized: the engine holds its mutex across the
// snapshot read and the order insert so two concurrent intents cannot
// over-commit the same balance.
type Engine struct {
	policy   Policy
	balances *BalanceTracker
	orders   storage.OrderStore
	logger   *log.Logger

	mu sync.Mutex
}

// NewEngine creates a sizing engine.
func NewEngine(policy Policy, balances *BalanceTracker, orders storage.OrderStore, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		policy:   policy,
		balances: balances,
		orders:   orders,
		logger:   logger,
	}
}

// Policy returns the engine's immutable policy snapshot.
func (e *Engine) Policy() Policy { return e.policy }

// Size converts an intent into an order, or a rejection when the policy
// declines. The error return is reserved for storage and RPC failures.
func (e *Engine) Size(ctx context.Context, intent *domain.TradeIntent, generation int) (*domain.TradeOrder, *domain.SizingRejection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	desired, err := e.policy.DesiredAmount(intent.InputAmount)
	if err != nil {
		return nil, nil, err
	}
	if desired == 0 {
		return nil, reject(intent, domain.RejectBelowMinTrade,
			fmt.Sprintf("policy amount is zero for source amount %d", intent.InputAmount)), nil
	}

	sized := desired
	if intent.InputMint == detector.WSOL {
		// SOL-funded trade: the lamport floor, cap and balance all apply.
		// Token-funded sells are denominated in token units, where lamport
		// thresholds have no meaning.
		if desired < e.policy.MinTradeLamports {
			return nil, reject(intent, domain.RejectBelowMinTrade,
				fmt.Sprintf("policy amount %d below minimum %d", desired, e.policy.MinTradeLamports)), nil
		}
		if e.policy.MaxTradeLamports > 0 && sized > e.policy.MaxTradeLamports {
			sized = e.policy.MaxTradeLamports
		}

		snapshot, err := e.balances.Snapshot(ctx)
		if err != nil {
			if snapshot.TakenAt.IsZero() || snapshot.Age(time.Now()) > 2*e.balances.maxAge {
				return nil, reject(intent, domain.RejectStaleSnapshot,
					fmt.Sprintf("balance refresh failed: %v", err)), nil
			}
			// Fresh enough to act on despite the failed refresh.
			e.logger.Printf("sizing %s on cached balance: %v", intent.RawSignature, err)
		}

		if snapshot.Lamports <= e.policy.FeeReserveLamports {
			return nil, reject(intent, domain.RejectInsufficientBalance,
				fmt.Sprintf("balance %d does not cover fee reserve %d", snapshot.Lamports, e.policy.FeeReserveLamports)), nil
		}
		available := snapshot.Lamports - e.policy.FeeReserveLamports
		if sized > available {
			sized = available
		}
		if sized < e.policy.MinTradeLamports {
			return nil, reject(intent, domain.RejectInsufficientBalance,
				fmt.Sprintf("available %d below minimum %d", available, e.policy.MinTradeLamports)), nil
		}
	} else {
		// Token-funded sell: the order spends token base units. Fixed mode
		// cannot size it, its amount is denominated in lamports.
		if e.policy.Mode == ModeFixed {
			return nil, reject(intent, domain.RejectUnsupportedMode,
				fmt.Sprintf("fixed lamport sizing cannot denominate a %s sell", intent.InputMint)), nil
		}

		held, err := e.balances.TokenBalance(ctx, intent.InputMint)
		if err != nil {
			return nil, reject(intent, domain.RejectStaleSnapshot,
				fmt.Sprintf("token balance lookup failed: %v", err)), nil
		}
		if held == 0 {
			return nil, reject(intent, domain.RejectInsufficientBalance,
				fmt.Sprintf("no %s balance to sell", intent.InputMint)), nil
		}
		if sized > held {
			sized = held
		}
	}

	order := &domain.TradeOrder{
		OrderID:             idhash.ComputeOrderID(intent.RawSignature, generation),
		IntentSignature:     intent.RawSignature,
		Generation:          generation,
		SizedInputAmount:    sized,
		MaxSlippageBps:      e.policy.MaxSlippageBps,
		PriorityFeeLamports: e.policy.PriorityFeeLamports,
		Status:              domain.OrderStatusCreated,
		CreatedAt:           time.Now().UnixMilli(),
	}

	if err := e.orders.Insert(ctx, order); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, reject(intent, domain.RejectDuplicateIntent,
				fmt.Sprintf("order already sized for generation %d", generation)), nil
		}
		return nil, nil, fmt.Errorf("persist order %s: %w", order.OrderID, err)
	}

	if intent.InputMint == detector.WSOL {
		e.balances.Reserve(sized)
	}

	return order, nil, nil
}

func reject(intent *domain.TradeIntent, code domain.RejectionCode, detail string) *domain.SizingRejection {
	return &domain.SizingRejection{
		IntentSignature: intent.RawSignature,
		Code:            code,
		Detail:          detail,
	}
}
