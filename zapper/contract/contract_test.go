package contract_test

import (
	"context"
	"errors"
	"testing"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/contract"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/exchange"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/runtime"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/store/leveldb"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/store/memory"
)

const (
	zapAccount = "zap.testnet"
	wrap       = "wrap.testnet"
	ref        = "ref.fakes.testnet"
	paras      = "paras.fakes.testnet"
)

func newHost(t *testing.T, capacity int) *runtime.Host {
	t.Helper()
	return runtime.NewHost(near.MustParseAccountID(zapAccount), memory.NewKV(), runtime.NewQueue(capacity))
}

func initDefault(t *testing.T, host *runtime.Host) {
	t.Helper()
	err := host.Call(context.Background(), runtime.CallOptions{}, func(env *runtime.Env) error {
		_, err := contract.New(env)
		return err
	})
	assert.NoError(t, err)
}

func zap(host *runtime.Host, opts runtime.CallOptions, amount uint64, tokenIn, out1, out2 string, selector uint32) (*runtime.Promise, error) {
	var promise *runtime.Promise
	err := host.Call(context.Background(), opts, func(env *runtime.Env) error {
		c, err := contract.Load(env)
		if err != nil {
			return err
		}
		promise, err = c.Zap(env, near.NewU128(amount), tokenIn, out1, out2, selector)
		return err
	})
	return promise, err
}

func TestZap_Scenario(t *testing.T) {
	host := newHost(t, 8)
	initDefault(t, host)

	promise, err := zap(host, runtime.CallOptions{}, 11, wrap, ref, paras, 5)
	assert.NoError(t, err)
	assert.NotNil(t, promise)

	queued, ok := host.Queue().TryPop()
	assert.True(t, ok)
	assert.Equal(t, queued.ID, promise.ID)
	assert.Equal(t, queued.Receiver, near.AccountID("exchange.ref-dev.testnet"))
	assert.Equal(t, queued.Predecessor, near.AccountID(zapAccount))
	assert.Equal(t, len(queued.Actions), 1)

	call := queued.Actions[0]
	assert.Equal(t, call.MethodName, exchange.MethodSwap)
	assert.Equal(t, call.Gas, near.Gas(110_000_000_000_000))
	assert.True(t, call.Deposit.IsZero())

	args, err := exchange.DecodeSwapArgs(call.Args)
	assert.NoError(t, err)
	assert.True(t, args.ReferralID == nil)
	assert.Equal(t, len(args.Actions), 2)

	first, second := args.Actions[0], args.Actions[1]
	assert.Equal(t, first.PoolID, uint64(269))
	assert.Equal(t, first.TokenIn, near.AccountID(wrap))
	assert.Equal(t, first.TokenOut, near.AccountID(ref))
	assert.Equal(t, first.AmountIn.String(), "5")
	assert.True(t, first.MinAmountOut.IsZero())

	assert.Equal(t, second.PoolID, uint64(103))
	assert.Equal(t, second.TokenIn, near.AccountID(wrap))
	assert.Equal(t, second.TokenOut, near.AccountID(paras))
	assert.Equal(t, second.AmountIn.String(), "5")
	assert.True(t, second.MinAmountOut.IsZero())

	_, ok = host.Queue().TryPop()
	assert.False(t, ok)
}

func TestPlanZap_Halving(t *testing.T) {
	cfg := contract.DefaultConfig()
	cases := []struct {
		amount uint64
		half   string
		sum    string
	}{
		{amount: 0, half: "0", sum: "0"},
		{amount: 1, half: "0", sum: "0"},
		{amount: 10, half: "5", sum: "10"},
		{amount: 11, half: "5", sum: "10"},
		{amount: 1_000_000_000_000_000_001, half: "500000000000000000", sum: "1000000000000000000"},
	}

	for _, tc := range cases {
		plan, err := contract.PlanZap(cfg, near.NewU128(tc.amount), wrap, ref, paras)
		assert.NoError(t, err)
		assert.Equal(t, plan.Half.String(), tc.half)

		sum, err := plan.Actions[0].AmountIn.Add(*plan.Actions[1].AmountIn)
		assert.NoError(t, err)
		assert.Equal(t, sum.String(), tc.sum)
		assert.True(t, plan.Actions[0].AmountIn.Equal(*plan.Actions[1].AmountIn))
		assert.NoError(t, exchange.ValidateActions(plan.Actions))
	}
}

func TestPlanZap_MaxAmount(t *testing.T) {
	max, err := near.ParseU128("340282366920938463463374607431768211455")
	assert.NoError(t, err)

	plan, err := contract.PlanZap(contract.DefaultConfig(), max, wrap, ref, paras)
	assert.NoError(t, err)
	assert.Equal(t, plan.Half.String(), "170141183460469231731687303715884105727")
}

func TestZap_SelectorIgnored(t *testing.T) {
	host := newHost(t, 8)
	initDefault(t, host)

	var bodies []string
	for _, selector := range []uint32{0, 5, 4294967295} {
		_, err := zap(host, runtime.CallOptions{}, 1_000, wrap, ref, paras, selector)
		assert.NoError(t, err)
		p, ok := host.Queue().TryPop()
		assert.True(t, ok)
		bodies = append(bodies, string(p.Actions[0].Args))
	}
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, bodies[1], bodies[2])
}

func TestInit_Twice(t *testing.T) {
	host := newHost(t, 8)
	initDefault(t, host)

	err := host.Call(context.Background(), runtime.CallOptions{}, func(env *runtime.Env) error {
		_, err := contract.New(env)
		return err
	})
	assert.True(t, errors.Is(err, contract.ErrAlreadyInitialized))

	err = host.Call(context.Background(), runtime.CallOptions{}, func(env *runtime.Env) error {
		cfg := contract.DefaultConfig()
		cfg.SwapContract = "other.testnet"
		_, err := contract.Init(env, cfg)
		return err
	})
	assert.True(t, errors.Is(err, contract.ErrAlreadyInitialized))

	// the first configuration is untouched
	err = host.View(context.Background(), func(env *runtime.Env) error {
		c, err := contract.Load(env)
		if err != nil {
			return err
		}
		assert.Equal(t, c.Config(), contract.DefaultConfig())
		return nil
	})
	assert.NoError(t, err)
}

func TestInit_CustomConfig(t *testing.T) {
	host := newHost(t, 8)
	cfg := contract.ContractConfig{
		SwapContract: "v2.ref-finance.near",
		FirstPoolID:  1,
		SecondPoolID: 2,
		SwapGas:      50 * near.TGas,
	}
	err := host.Call(context.Background(), runtime.CallOptions{}, func(env *runtime.Env) error {
		_, err := contract.Init(env, cfg)
		return err
	})
	assert.NoError(t, err)

	_, err = zap(host, runtime.CallOptions{}, 4, wrap, ref, paras, 0)
	assert.NoError(t, err)
	p, ok := host.Queue().TryPop()
	assert.True(t, ok)
	assert.Equal(t, p.Receiver, cfg.SwapContract)
	assert.Equal(t, p.TotalGas(), 50*near.TGas)

	args, err := exchange.DecodeSwapArgs(p.Actions[0].Args)
	assert.NoError(t, err)
	assert.Equal(t, args.Actions[0].PoolID, uint64(1))
	assert.Equal(t, args.Actions[1].PoolID, uint64(2))
}

func TestInit_InvalidConfig(t *testing.T) {
	host := newHost(t, 8)
	for _, cfg := range []contract.ContractConfig{
		{SwapContract: "Bad Account", SwapGas: near.TGas},
		{SwapContract: "exchange.testnet", SwapGas: 0},
		{SwapContract: "exchange.testnet", SwapGas: 301 * near.TGas},
	} {
		err := host.Call(context.Background(), runtime.CallOptions{}, func(env *runtime.Env) error {
			_, err := contract.Init(env, cfg)
			return err
		})
		assert.True(t, errors.Is(err, contract.ErrInvalidConfig))
	}

	// failed initializations leave the contract uninitialized
	_, err := zap(host, runtime.CallOptions{}, 4, wrap, ref, paras, 0)
	assert.True(t, errors.Is(err, contract.ErrNotInitialized))
}

func TestZap_Failures(t *testing.T) {
	cases := map[string]struct {
		opts  runtime.CallOptions
		token string
		want  error
	}{
		"invalid token": {token: "NOT VALID", want: near.ErrInvalidAccountID},
		"empty token":   {token: "", want: near.ErrInvalidAccountID},
		"gas budget":    {token: paras, opts: runtime.CallOptions{PrepaidGas: 100 * near.TGas}, want: runtime.ErrGasExceeded},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			host := newHost(t, 8)
			initDefault(t, host)

			promise, err := zap(host, tc.opts, 10, wrap, ref, tc.token, 0)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Zap error = %v, want %v", err, tc.want)
			}
			assert.True(t, promise == nil)
			assert.Equal(t, host.Queue().Len(), 0)
		})
	}
}

func TestZap_QueueFull(t *testing.T) {
	host := newHost(t, 1)
	initDefault(t, host)

	_, err := zap(host, runtime.CallOptions{}, 10, wrap, ref, paras, 0)
	assert.NoError(t, err)
	_, err = zap(host, runtime.CallOptions{}, 10, wrap, ref, paras, 0)
	assert.True(t, errors.Is(err, runtime.ErrQueueFull))
	assert.Equal(t, host.Queue().Len(), 1)
}

func TestState_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	account := near.MustParseAccountID(zapAccount)

	kv, err := leveldb.Open(dir, leveldb.MinCacheMiB)
	assert.NoError(t, err)
	host := runtime.NewHost(account, kv, runtime.NewQueue(4))
	initDefault(t, host)
	assert.NoError(t, kv.Close())

	kv, err = leveldb.Open(dir, leveldb.MinCacheMiB)
	assert.NoError(t, err)
	defer kv.Close()
	host = runtime.NewHost(account, kv, runtime.NewQueue(4))

	err = host.Call(context.Background(), runtime.CallOptions{}, func(env *runtime.Env) error {
		_, err := contract.New(env)
		return err
	})
	assert.True(t, errors.Is(err, contract.ErrAlreadyInitialized))

	_, err = zap(host, runtime.CallOptions{}, 11, wrap, ref, paras, 5)
	assert.NoError(t, err)
	assert.Equal(t, host.Queue().Len(), 1)
}
