// Package contract is the zap dispatcher: a stateless-after-init contract that splits an
// input amount in half and hands both halves to the exchange as one batched swap call.
package contract

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/exchange"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/runtime"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "contract").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "contract").Logger()
}

var (
	ErrAlreadyInitialized = errors.New("contract already initialized")
	ErrNotInitialized     = errors.New("contract not initialized")
)

// Contract is a loaded zap dispatcher.
type Contract struct {
	cfg ContractConfig
}

// New initializes the contract with DefaultConfig.
func New(env *runtime.Env) (*Contract, error) {
	return Init(env, DefaultConfig())
}

// Init stores cfg as the contract state. It fails if state already exists.
func Init(env *runtime.Env, cfg ContractConfig) (*Contract, error) {
	exists, err := env.StorageHas(stateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check state: %w", err)
	}
	if exists {
		return nil, ErrAlreadyInitialized
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	raw, err := encodeState(cfg)
	if err != nil {
		return nil, err
	}
	if err := env.StorageWrite(stateKey, raw); err != nil {
		return nil, fmt.Errorf("failed to write state: %w", err)
	}

	log.Info().
		Str("swap_contract", cfg.SwapContract.String()).
		Uint64("first_pool", cfg.FirstPoolID).
		Uint64("second_pool", cfg.SecondPoolID).
		Str("swap_gas", cfg.SwapGas.String()).
		Msg("Contract initialized")
	return &Contract{cfg: cfg}, nil
}

// Load reads the persisted configuration.
func Load(env *runtime.Env) (*Contract, error) {
	exists, err := env.StorageHas(stateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check state: %w", err)
	}
	if !exists {
		return nil, ErrNotInitialized
	}
	raw, err := env.StorageRead(stateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	cfg, err := decodeState(raw)
	if err != nil {
		return nil, err
	}
	return &Contract{cfg: cfg}, nil
}

func (c *Contract) Config() ContractConfig {
	return c.cfg
}

// ZapPlan is the batched swap a zap sends: where it goes and what it carries.
type ZapPlan struct {
	Receiver near.AccountID
	Half     near.U128
	Actions  []exchange.SwapAction
	Call     runtime.FunctionCall
}

// PlanZap builds the two swap actions and the swap call for inputAmount without
// touching any runtime state. Odd amounts lose one unit to floor division.
func PlanZap(cfg ContractConfig, inputAmount near.U128, tokenIn, tokenOut1, tokenOut2 string) (ZapPlan, error) {
	in, err := near.ParseAccountID(tokenIn)
	if err != nil {
		return ZapPlan{}, fmt.Errorf("token_in: %w", err)
	}
	out1, err := near.ParseAccountID(tokenOut1)
	if err != nil {
		return ZapPlan{}, fmt.Errorf("token_out_1: %w", err)
	}
	out2, err := near.ParseAccountID(tokenOut2)
	if err != nil {
		return ZapPlan{}, fmt.Errorf("token_out_2: %w", err)
	}

	half := inputAmount.Half()
	actions := []exchange.SwapAction{
		exchange.NewSwapAction(cfg.FirstPoolID, in, half, out1, near.U128{}),
		exchange.NewSwapAction(cfg.SecondPoolID, in, half, out2, near.U128{}),
	}
	call, err := exchange.SwapCall(actions, nil, near.U128{}, cfg.SwapGas)
	if err != nil {
		return ZapPlan{}, err
	}

	return ZapPlan{
		Receiver: cfg.SwapContract,
		Half:     half,
		Actions:  actions,
		Call:     call,
	}, nil
}

// Zap schedules the batched swap for inputAmount and returns without waiting for the
// exchange. poolSelector is accepted for interface compatibility and has no effect.
func (c *Contract) Zap(env *runtime.Env, inputAmount near.U128, tokenIn, tokenOut1, tokenOut2 string, poolSelector uint32) (*runtime.Promise, error) {
	plan, err := PlanZap(c.cfg, inputAmount, tokenIn, tokenOut1, tokenOut2)
	if err != nil {
		return nil, err
	}

	log.Info().Str("half", plan.Half.String()).Msg("half amount")
	log.Debug().Uint32("pool_selector", poolSelector).Msg("Pool selector ignored")

	promise, err := env.ScheduleCall(plan.Receiver, plan.Call)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule swap: %w", err)
	}
	return promise, nil
}
