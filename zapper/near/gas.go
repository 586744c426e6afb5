package near

import "strconv"

// Gas is the execution budget attached to a function call.
type Gas uint64

const (
	// TGas is one teragas.
	TGas Gas = 1_000_000_000_000
	// MaxPrepaidGas is the most gas a single transaction can carry.
	MaxPrepaidGas Gas = 300 * TGas
)

func (g Gas) String() string {
	return strconv.FormatUint(uint64(g), 10)
}
