package exchange

import (
	"context"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
)

// Exchange is the receiving side of the calls built in this package. Implementations
// execute a whole swap batch or none of it.
type Exchange interface {
	// Swap executes actions in order and returns the output amount of the last step.
	// predecessor is the account the call came from and deposit the value attached.
	Swap(ctx context.Context, predecessor near.AccountID, args SwapArgs, deposit near.U128) (near.U128, error)

	// AddLiquidity deposits amounts into a pool.
	AddLiquidity(ctx context.Context, predecessor near.AccountID, args AddLiquidityArgs, deposit near.U128) error
}
