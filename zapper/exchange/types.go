// Package exchange describes the external AMM contract the zap talks to: its swap
// instruction records, the argument shapes of its entry points and the calls that
// invoke them.
package exchange

import (
	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
)

const (
	MethodSwap         = "swap"
	MethodAddLiquidity = "add_liquidity"
)

// SwapAction is a single swap step executed by the exchange.
type SwapAction struct {
	// PoolID is the pool the step swaps through
	PoolID uint64 `json:"pool_id"`
	// TokenIn is the asset sent into the pool
	TokenIn near.AccountID `json:"token_in"`
	// AmountIn is the amount to swap. nil takes the previous step's output and is
	// rejected on the first step.
	AmountIn *near.U128 `json:"amount_in"`
	// TokenOut is the asset received from the pool
	TokenOut near.AccountID `json:"token_out"`
	// MinAmountOut is the least TokenOut the step may return
	MinAmountOut near.U128 `json:"min_amount_out"`
}

// SwapArgs are the arguments of the exchange's swap entry point.
type SwapArgs struct {
	Actions    []SwapAction    `json:"actions"`
	ReferralID *near.AccountID `json:"referral_id"`
}

// AddLiquidityArgs are the arguments of the exchange's add_liquidity entry point.
type AddLiquidityArgs struct {
	PoolID     uint64      `json:"pool_id"`
	Amounts    []near.U128 `json:"amounts"`
	MinAmounts []near.U128 `json:"min_amounts"`
}
