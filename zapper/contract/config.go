package contract

import (
	"errors"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
)

const (
	DefaultExchangeAccount = "exchange.ref-dev.testnet"
	DefaultFirstPoolID     = 269
	DefaultSecondPoolID    = 103
	DefaultSwapGas         = 110 * near.TGas
)

var ErrInvalidConfig = errors.New("invalid contract config")

// ContractConfig is the contract's only persisted state. It is written once at
// initialization and never changed.
type ContractConfig struct {
	// SwapContract is the exchange account every zap is sent to
	SwapContract near.AccountID
	FirstPoolID  uint64
	SecondPoolID uint64
	// SwapGas is the gas attached to the batched swap call
	SwapGas near.Gas
}

// DefaultConfig returns the configuration the parameterless initializer stores.
func DefaultConfig() ContractConfig {
	return ContractConfig{
		SwapContract: DefaultExchangeAccount,
		FirstPoolID:  DefaultFirstPoolID,
		SecondPoolID: DefaultSecondPoolID,
		SwapGas:      DefaultSwapGas,
	}
}

func (c ContractConfig) Validate() error {
	if err := c.SwapContract.Validate(); err != nil {
		return fmt.Errorf("%w: swap contract: %w", ErrInvalidConfig, err)
	}
	if c.SwapGas == 0 {
		return fmt.Errorf("%w: swap gas must be positive", ErrInvalidConfig)
	}
	if c.SwapGas > near.MaxPrepaidGas {
		return fmt.Errorf("%w: swap gas %s above the %s prepaid limit", ErrInvalidConfig, c.SwapGas, near.MaxPrepaidGas)
	}
	return nil
}
