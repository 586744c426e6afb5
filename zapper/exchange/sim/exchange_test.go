package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/exchange"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
)

var (
	exchangeAccount = near.MustParseAccountID("exchange.ref-dev.testnet")
	zapAccount      = near.MustParseAccountID("zap.testnet")
	wrap            = near.MustParseAccountID("wrap.testnet")
	ref             = near.MustParseAccountID("ref.fakes.testnet")
	paras           = near.MustParseAccountID("paras.fakes.testnet")
)

func newTestExchange(t *testing.T) *Exchange {
	t.Helper()
	e := New(exchangeAccount)
	assert.NoError(t, e.AddPool(269, wrap, ref, near.NewU128(1_000), near.NewU128(1_000)))
	assert.NoError(t, e.AddPool(103, wrap, paras, near.NewU128(1_000), near.NewU128(4_000)))
	assert.NoError(t, e.Deposit(zapAccount, wrap, near.NewU128(100)))
	return e
}

func zapArgs(amount uint64, min uint64) exchange.SwapArgs {
	return exchange.SwapArgs{Actions: []exchange.SwapAction{
		exchange.NewSwapAction(269, wrap, near.NewU128(amount), ref, near.NewU128(min)),
		exchange.NewSwapAction(103, wrap, near.NewU128(amount), paras, near.NewU128(0)),
	}}
}

func TestSwap_TwoIndependentActions(t *testing.T) {
	e := newTestExchange(t)

	out, err := e.Swap(context.Background(), zapAccount, zapArgs(50, 0), near.NewU128(0))
	assert.NoError(t, err)

	// 4000 * 50 / (1000 + 50) = 190
	assert.Equal(t, out.String(), "190")
	assert.Equal(t, e.Balance(zapAccount, wrap).String(), "0")
	// 1000 * 50 / 1050 = 47
	assert.Equal(t, e.Balance(zapAccount, ref).String(), "47")
	assert.Equal(t, e.Balance(zapAccount, paras).String(), "190")

	pool, ok := e.Pool(269)
	assert.True(t, ok)
	assert.Equal(t, pool.Reserves[0].String(), "1050")
	assert.Equal(t, pool.Reserves[1].String(), "953")
}

func TestSwap_ChainedAmount(t *testing.T) {
	e := newTestExchange(t)
	assert.NoError(t, e.AddPool(5, ref, paras, near.NewU128(1_000), near.NewU128(1_000)))

	args := exchange.SwapArgs{Actions: []exchange.SwapAction{
		exchange.NewSwapAction(269, wrap, near.NewU128(100), ref, near.NewU128(0)),
		exchange.NewChainedSwapAction(5, ref, paras, near.NewU128(0)),
	}}
	out, err := e.Swap(context.Background(), zapAccount, args, near.NewU128(0))
	assert.NoError(t, err)
	// 1000*100/1100 = 90 ref, then 1000*90/1090 = 82 paras
	assert.Equal(t, out.String(), "82")
	assert.Equal(t, e.Balance(zapAccount, ref).String(), "0")
}

func TestSwap_FailureLeavesStateUntouched(t *testing.T) {
	cases := map[string]struct {
		args exchange.SwapArgs
		want error
	}{
		"slippage": {args: zapArgs(50, 1_000), want: ErrSlippage},
		"insufficient": {args: zapArgs(60, 0), want: ErrInsufficientBalance},
		"missing pool": {
			args: exchange.SwapArgs{Actions: []exchange.SwapAction{
				exchange.NewSwapAction(269, wrap, near.NewU128(10), ref, near.NewU128(0)),
				exchange.NewSwapAction(999, wrap, near.NewU128(10), paras, near.NewU128(0)),
			}},
			want: ErrPoolNotFound,
		},
		"token mismatch": {
			args: exchange.SwapArgs{Actions: []exchange.SwapAction{
				exchange.NewSwapAction(269, wrap, near.NewU128(10), paras, near.NewU128(0)),
			}},
			want: ErrTokenMismatch,
		},
		"chained first": {
			args: exchange.SwapArgs{Actions: []exchange.SwapAction{
				exchange.NewChainedSwapAction(269, wrap, ref, near.NewU128(0)),
			}},
			want: exchange.ErrMissingFirstAmount,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			e := newTestExchange(t)
			_, err := e.Swap(context.Background(), zapAccount, tc.args, near.NewU128(0))
			if !errors.Is(err, tc.want) {
				t.Fatalf("Swap error = %v, want %v", err, tc.want)
			}
			assert.Equal(t, e.Balance(zapAccount, wrap).String(), "100")
			pool, _ := e.Pool(269)
			assert.Equal(t, pool.Reserves[0].String(), "1000")
		})
	}
}

func TestAddLiquidity(t *testing.T) {
	e := newTestExchange(t)
	assert.NoError(t, e.Deposit(zapAccount, ref, near.NewU128(40)))

	err := e.AddLiquidity(context.Background(), zapAccount, exchange.AddLiquidityArgs{
		PoolID:  269,
		Amounts: []near.U128{near.NewU128(20), near.NewU128(40)},
	}, near.NewU128(0))
	assert.NoError(t, err)

	pool, _ := e.Pool(269)
	assert.Equal(t, pool.Reserves[0].String(), "1020")
	assert.Equal(t, pool.Reserves[1].String(), "1040")
	assert.Equal(t, e.Balance(zapAccount, wrap).String(), "80")

	err = e.AddLiquidity(context.Background(), zapAccount, exchange.AddLiquidityArgs{
		PoolID:  269,
		Amounts: []near.U128{near.NewU128(1_000), near.NewU128(1)},
	}, near.NewU128(0))
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
}

func TestAddPool_Duplicate(t *testing.T) {
	e := newTestExchange(t)
	err := e.AddPool(269, wrap, ref, near.NewU128(1), near.NewU128(1))
	assert.True(t, errors.Is(err, ErrPoolExists))
}
