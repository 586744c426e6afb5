package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/store"
)

var (
	ErrGasExceeded   = errors.New("attached gas exceeds remaining prepaid gas")
	ErrNoActions     = errors.New("promise has no actions")
	ErrInvalidTarget = errors.New("invalid promise receiver")
)

// Env is the execution context of one contract method call. State writes and scheduled
// promises are buffered here and only applied by the Host when the method succeeds.
type Env struct {
	ctx             context.Context
	host            *Host
	predecessor     near.AccountID
	attachedDeposit near.U128
	prepaidGas      near.Gas
	usedGas         near.Gas

	writes  map[string][]byte
	pending []Promise
}

func (e *Env) Context() context.Context {
	return e.ctx
}

func (e *Env) CurrentAccountID() near.AccountID {
	return e.host.account
}

func (e *Env) PredecessorAccountID() near.AccountID {
	return e.predecessor
}

func (e *Env) AttachedDeposit() near.U128 {
	return e.attachedDeposit
}

func (e *Env) PrepaidGas() near.Gas {
	return e.prepaidGas
}

func (e *Env) RemainingGas() near.Gas {
	return e.prepaidGas - e.usedGas
}

// StorageRead returns the value under key, seeing this call's own uncommitted writes.
func (e *Env) StorageRead(key []byte) ([]byte, error) {
	if v, ok := e.writes[string(key)]; ok {
		return append([]byte(nil), v...), nil
	}
	return e.host.storage.Get(e.ctx, key)
}

func (e *Env) StorageHas(key []byte) (bool, error) {
	if _, ok := e.writes[string(key)]; ok {
		return true, nil
	}
	return e.host.storage.Has(e.ctx, key)
}

func (e *Env) StorageWrite(key, value []byte) error {
	if len(key) == 0 || value == nil {
		return store.ErrInvalidInput
	}
	e.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

// ScheduleCall creates a promise to receiver carrying calls. The attached gas is taken
// from this call's remaining prepaid gas.
func (e *Env) ScheduleCall(receiver near.AccountID, calls ...FunctionCall) (*Promise, error) {
	if err := receiver.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	if len(calls) == 0 {
		return nil, ErrNoActions
	}

	p := Promise{
		Predecessor: e.host.account,
		Receiver:    receiver,
		Actions:     append([]FunctionCall(nil), calls...),
		CreatedAt:   time.Now().UTC(),
	}
	gas := p.TotalGas()
	if gas > e.RemainingGas() {
		return nil, fmt.Errorf("%w: attaching %s, remaining %s", ErrGasExceeded, gas, e.RemainingGas())
	}

	e.usedGas += gas
	p.ID = e.host.nextID.Add(1)
	e.pending = append(e.pending, p)
	return &p, nil
}
