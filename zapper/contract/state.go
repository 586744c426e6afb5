package contract

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
)

// stateKey is the storage key holding the encoded ContractConfig.
var stateKey = []byte("STATE")

// Integers go in as decimal strings; structpb numbers are float64 and would round gas.
func encodeState(cfg ContractConfig) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"swap_contract":  cfg.SwapContract.String(),
		"first_pool_id":  strconv.FormatUint(cfg.FirstPoolID, 10),
		"second_pool_id": strconv.FormatUint(cfg.SecondPoolID, 10),
		"swap_gas":       strconv.FormatUint(uint64(cfg.SwapGas), 10),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build state: %w", err)
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(s)
}

func decodeState(raw []byte) (ContractConfig, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(raw, &s); err != nil {
		return ContractConfig{}, fmt.Errorf("failed to decode state: %w", err)
	}
	fields := s.GetFields()

	account, err := near.ParseAccountID(fields["swap_contract"].GetStringValue())
	if err != nil {
		return ContractConfig{}, fmt.Errorf("state swap_contract: %w", err)
	}
	first, err := uintField(fields, "first_pool_id")
	if err != nil {
		return ContractConfig{}, err
	}
	second, err := uintField(fields, "second_pool_id")
	if err != nil {
		return ContractConfig{}, err
	}
	gas, err := uintField(fields, "swap_gas")
	if err != nil {
		return ContractConfig{}, err
	}

	cfg := ContractConfig{
		SwapContract: account,
		FirstPoolID:  first,
		SecondPoolID: second,
		SwapGas:      near.Gas(gas),
	}
	if err := cfg.Validate(); err != nil {
		return ContractConfig{}, fmt.Errorf("stored state: %w", err)
	}
	return cfg, nil
}

func uintField(fields map[string]*structpb.Value, name string) (uint64, error) {
	v, err := strconv.ParseUint(fields[name].GetStringValue(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("state %s: %w", name, err)
	}
	return v, nil
}
