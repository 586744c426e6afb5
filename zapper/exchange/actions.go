package exchange

import (
	"errors"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
)

var (
	ErrNoActions          = errors.New("no swap actions")
	ErrMissingFirstAmount = errors.New("first swap action must have amount_in")
	ErrInvalidAction      = errors.New("invalid swap action")
)

// NewSwapAction builds a step that swaps an explicit amount.
func NewSwapAction(poolID uint64, tokenIn near.AccountID, amountIn near.U128, tokenOut near.AccountID, minAmountOut near.U128) SwapAction {
	return SwapAction{
		PoolID:       poolID,
		TokenIn:      tokenIn,
		AmountIn:     &amountIn,
		TokenOut:     tokenOut,
		MinAmountOut: minAmountOut,
	}
}

// NewChainedSwapAction builds a step that swaps whatever the previous step returned.
func NewChainedSwapAction(poolID uint64, tokenIn, tokenOut near.AccountID, minAmountOut near.U128) SwapAction {
	return SwapAction{
		PoolID:       poolID,
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		MinAmountOut: minAmountOut,
	}
}

// ValidateActions checks a batch before it is sent in one call: it must be non-empty,
// every asset id must be well formed and the first step must carry an amount.
func ValidateActions(actions []SwapAction) error {
	if len(actions) == 0 {
		return ErrNoActions
	}
	if actions[0].AmountIn == nil {
		return ErrMissingFirstAmount
	}
	for i, a := range actions {
		if err := a.TokenIn.Validate(); err != nil {
			return fmt.Errorf("%w: action %d token_in: %w", ErrInvalidAction, i, err)
		}
		if err := a.TokenOut.Validate(); err != nil {
			return fmt.Errorf("%w: action %d token_out: %w", ErrInvalidAction, i, err)
		}
	}
	return nil
}
