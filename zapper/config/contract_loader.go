package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/contract"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
)

// ContractFile is the toml file holding the zap contract's init arguments and, for the
// local sink, the pools of the simulated exchange.
type ContractFile struct {
	Contract  ContractSection  `toml:"contract"`
	Simulator SimulatorSection `toml:"simulator"`
}

type ContractSection struct {
	SwapContract string `toml:"swap_contract"`
	FirstPoolID  uint64 `toml:"first_pool_id"`
	SecondPoolID uint64 `toml:"second_pool_id"`
	SwapGasTGas  uint64 `toml:"swap_gas_tgas"`
}

type SimulatorSection struct {
	Pools    []SimPool    `toml:"pools"`
	Deposits []SimDeposit `toml:"deposits"`
}

// SimPool seeds one simulated pool. Reserves are decimal strings.
type SimPool struct {
	ID       uint64 `toml:"id"`
	TokenA   string `toml:"token_a"`
	TokenB   string `toml:"token_b"`
	ReserveA string `toml:"reserve_a"`
	ReserveB string `toml:"reserve_b"`
}

// SimDeposit credits the zap contract's balance on the simulated exchange.
type SimDeposit struct {
	Token  string `toml:"token"`
	Amount string `toml:"amount"`
}

func defaultContractFile() ContractFile {
	def := contract.DefaultConfig()
	return ContractFile{
		Contract: ContractSection{
			SwapContract: def.SwapContract.String(),
			FirstPoolID:  def.FirstPoolID,
			SecondPoolID: def.SecondPoolID,
			SwapGasTGas:  uint64(def.SwapGas / near.TGas),
		},
	}
}

// LoadContractFile reads path. Keys missing from the file keep their defaults; an empty
// path returns the defaults.
func LoadContractFile(path string) (*ContractFile, error) {
	file := defaultContractFile()
	if path == "" {
		return &file, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contract config file: %w", err)
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	if _, err := file.ContractConfig(); err != nil {
		return nil, err
	}
	return &file, nil
}

// ContractConfig converts the contract section into validated init arguments.
func (f *ContractFile) ContractConfig() (contract.ContractConfig, error) {
	account, err := near.ParseAccountID(f.Contract.SwapContract)
	if err != nil {
		return contract.ContractConfig{}, fmt.Errorf("swap_contract: %w", err)
	}
	// checked before scaling so a huge value cannot wrap into a valid gas amount
	if limit := uint64(near.MaxPrepaidGas / near.TGas); f.Contract.SwapGasTGas > limit {
		return contract.ContractConfig{}, fmt.Errorf("%w: swap_gas_tgas %d above the %d TGas prepaid limit",
			contract.ErrInvalidConfig, f.Contract.SwapGasTGas, limit)
	}
	cfg := contract.ContractConfig{
		SwapContract: account,
		FirstPoolID:  f.Contract.FirstPoolID,
		SecondPoolID: f.Contract.SecondPoolID,
		SwapGas:      near.Gas(f.Contract.SwapGasTGas) * near.TGas,
	}
	if err := cfg.Validate(); err != nil {
		return contract.ContractConfig{}, err
	}
	return cfg, nil
}
