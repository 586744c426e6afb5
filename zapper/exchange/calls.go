package exchange

import (
	"encoding/json"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/runtime"
)

// SwapCall builds the function call that submits actions to the exchange's swap entry
// point. referralID may be nil.
func SwapCall(actions []SwapAction, referralID *near.AccountID, deposit near.U128, gas near.Gas) (runtime.FunctionCall, error) {
	if err := ValidateActions(actions); err != nil {
		return runtime.FunctionCall{}, err
	}
	args, err := json.Marshal(SwapArgs{Actions: actions, ReferralID: referralID})
	if err != nil {
		return runtime.FunctionCall{}, fmt.Errorf("failed to encode swap args: %w", err)
	}
	return runtime.FunctionCall{
		MethodName: MethodSwap,
		Args:       args,
		Deposit:    deposit,
		Gas:        gas,
	}, nil
}

// AddLiquidityCall builds the function call for the exchange's add_liquidity entry
// point. minAmounts may be nil.
func AddLiquidityCall(poolID uint64, amounts, minAmounts []near.U128, deposit near.U128, gas near.Gas) (runtime.FunctionCall, error) {
	if len(amounts) == 0 {
		return runtime.FunctionCall{}, fmt.Errorf("add_liquidity needs at least one amount")
	}
	if minAmounts != nil && len(minAmounts) != len(amounts) {
		return runtime.FunctionCall{}, fmt.Errorf("min_amounts has %d entries, amounts has %d", len(minAmounts), len(amounts))
	}
	args, err := json.Marshal(AddLiquidityArgs{PoolID: poolID, Amounts: amounts, MinAmounts: minAmounts})
	if err != nil {
		return runtime.FunctionCall{}, fmt.Errorf("failed to encode add_liquidity args: %w", err)
	}
	return runtime.FunctionCall{
		MethodName: MethodAddLiquidity,
		Args:       args,
		Deposit:    deposit,
		Gas:        gas,
	}, nil
}

// DecodeSwapArgs parses the args of a swap call.
func DecodeSwapArgs(raw []byte) (SwapArgs, error) {
	var args SwapArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return SwapArgs{}, fmt.Errorf("failed to decode swap args: %w", err)
	}
	return args, nil
}

// DecodeAddLiquidityArgs parses the args of an add_liquidity call.
func DecodeAddLiquidityArgs(raw []byte) (AddLiquidityArgs, error) {
	var args AddLiquidityArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return AddLiquidityArgs{}, fmt.Errorf("failed to decode add_liquidity args: %w", err)
	}
	return args, nil
}
