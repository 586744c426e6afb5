// Package sim is an in-process constant-product AMM implementing exchange.Exchange.
// It backs the local relay sink in development and the tests that need a real
// counterparty for the zap's swap call.
package sim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/exchange"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "exchange-sim").Logger()
}

var (
	ErrPoolNotFound        = errors.New("pool not found")
	ErrPoolExists          = errors.New("pool already exists")
	ErrTokenMismatch       = errors.New("token not in pool")
	ErrInsufficientBalance = errors.New("insufficient deposit balance")
	ErrSlippage            = errors.New("amount out below min_amount_out")
	ErrEmptyPool           = errors.New("pool has no liquidity")
)

// Pool is a two-token liquidity pool.
type Pool struct {
	ID       uint64
	Tokens   [2]near.AccountID
	Reserves [2]near.U128
}

func (p Pool) index(token near.AccountID) int {
	for i, t := range p.Tokens {
		if t == token {
			return i
		}
	}
	return -1
}

// Exchange holds pools and per-account token deposits.
type Exchange struct {
	mu       sync.Mutex
	account  near.AccountID
	pools    map[uint64]Pool
	deposits map[near.AccountID]map[near.AccountID]near.U128
}

// New creates an empty exchange deployed at account.
func New(account near.AccountID) *Exchange {
	return &Exchange{
		account:  account,
		pools:    make(map[uint64]Pool),
		deposits: make(map[near.AccountID]map[near.AccountID]near.U128),
	}
}

func (e *Exchange) AccountID() near.AccountID {
	return e.account
}

// AddPool creates pool id seeded with the given reserves.
func (e *Exchange) AddPool(id uint64, tokenA, tokenB near.AccountID, reserveA, reserveB near.U128) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.pools[id]; exists {
		return fmt.Errorf("%w: %d", ErrPoolExists, id)
	}
	e.pools[id] = Pool{
		ID:       id,
		Tokens:   [2]near.AccountID{tokenA, tokenB},
		Reserves: [2]near.U128{reserveA, reserveB},
	}
	return nil
}

// Pool returns a copy of pool id.
func (e *Exchange) Pool(id uint64) (Pool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pools[id]
	return p, ok
}

// Deposit credits amount of token to account, as a token transfer into the exchange would.
func (e *Exchange) Deposit(account, token near.AccountID, amount near.U128) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	balances := e.deposits[account]
	if balances == nil {
		balances = make(map[near.AccountID]near.U128)
		e.deposits[account] = balances
	}
	sum, err := balances[token].Add(amount)
	if err != nil {
		return err
	}
	balances[token] = sum
	return nil
}

// Balance returns account's deposit of token.
func (e *Exchange) Balance(account, token near.AccountID) near.U128 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deposits[account][token]
}

// Swap executes the batch against a scratch copy of the touched pools and balances and
// commits only if every step succeeds.
func (e *Exchange) Swap(_ context.Context, predecessor near.AccountID, args exchange.SwapArgs, _ near.U128) (near.U128, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(args.Actions) == 0 {
		return near.U128{}, exchange.ErrNoActions
	}

	pools := make(map[uint64]Pool)
	balances := make(map[near.AccountID]near.U128)
	for token, amount := range e.deposits[predecessor] {
		balances[token] = amount
	}

	var prev near.U128
	for i, action := range args.Actions {
		amountIn := prev
		if action.AmountIn != nil {
			amountIn = *action.AmountIn
		} else if i == 0 {
			return near.U128{}, exchange.ErrMissingFirstAmount
		}

		pool, ok := pools[action.PoolID]
		if !ok {
			pool, ok = e.pools[action.PoolID]
			if !ok {
				return near.U128{}, fmt.Errorf("%w: %d", ErrPoolNotFound, action.PoolID)
			}
		}

		out, err := swapInPool(&pool, balances, action, amountIn)
		if err != nil {
			return near.U128{}, fmt.Errorf("action %d: %w", i, err)
		}
		pools[pool.ID] = pool
		prev = out
	}

	for id, pool := range pools {
		e.pools[id] = pool
	}
	e.deposits[predecessor] = balances

	log.Debug().
		Str("predecessor", predecessor.String()).
		Int("actions", len(args.Actions)).
		Str("amount_out", prev.String()).
		Msg("Swap executed")
	return prev, nil
}

func swapInPool(pool *Pool, balances map[near.AccountID]near.U128, action exchange.SwapAction, amountIn near.U128) (near.U128, error) {
	in := pool.index(action.TokenIn)
	out := pool.index(action.TokenOut)
	if in < 0 || out < 0 || in == out {
		return near.U128{}, fmt.Errorf("%w: pool %d does not pair %s with %s",
			ErrTokenMismatch, pool.ID, action.TokenIn, action.TokenOut)
	}

	remaining, err := balances[action.TokenIn].Sub(amountIn)
	if err != nil {
		return near.U128{}, fmt.Errorf("%w: %s of %s", ErrInsufficientBalance, amountIn, action.TokenIn)
	}

	reserveIn := pool.Reserves[in].Decimal()
	reserveOut := pool.Reserves[out].Decimal()
	denominator := reserveIn.Add(amountIn.Decimal())
	if denominator.IsZero() || reserveOut.IsZero() {
		return near.U128{}, fmt.Errorf("%w: %d", ErrEmptyPool, pool.ID)
	}
	quotient, _ := reserveOut.Mul(amountIn.Decimal()).QuoRem(denominator, 0)
	amountOut, err := near.FromDecimal(quotient)
	if err != nil {
		return near.U128{}, err
	}
	if amountOut.Cmp(action.MinAmountOut) < 0 {
		return near.U128{}, fmt.Errorf("%w: got %s, want at least %s", ErrSlippage, amountOut, action.MinAmountOut)
	}

	newIn, err := pool.Reserves[in].Add(amountIn)
	if err != nil {
		return near.U128{}, err
	}
	newOut, err := pool.Reserves[out].Sub(amountOut)
	if err != nil {
		return near.U128{}, err
	}
	credited, err := balances[action.TokenOut].Add(amountOut)
	if err != nil {
		return near.U128{}, err
	}

	pool.Reserves[in] = newIn
	pool.Reserves[out] = newOut
	balances[action.TokenIn] = remaining
	balances[action.TokenOut] = credited
	return amountOut, nil
}

// AddLiquidity moves amounts from predecessor's deposits into the pool reserves.
func (e *Exchange) AddLiquidity(_ context.Context, predecessor near.AccountID, args exchange.AddLiquidityArgs, _ near.U128) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, ok := e.pools[args.PoolID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPoolNotFound, args.PoolID)
	}
	if len(args.Amounts) != len(pool.Tokens) {
		return fmt.Errorf("pool %d takes %d amounts, got %d", pool.ID, len(pool.Tokens), len(args.Amounts))
	}

	balances := make(map[near.AccountID]near.U128)
	for token, amount := range e.deposits[predecessor] {
		balances[token] = amount
	}
	for i, token := range pool.Tokens {
		remaining, err := balances[token].Sub(args.Amounts[i])
		if err != nil {
			return fmt.Errorf("%w: %s of %s", ErrInsufficientBalance, args.Amounts[i], token)
		}
		reserve, err := pool.Reserves[i].Add(args.Amounts[i])
		if err != nil {
			return err
		}
		balances[token] = remaining
		pool.Reserves[i] = reserve
	}

	e.pools[pool.ID] = pool
	e.deposits[predecessor] = balances
	return nil
}

var _ exchange.Exchange = (*Exchange)(nil)
