package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/exchange"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/runtime"
)

// LocalSink executes promises against in-process exchanges keyed by account id.
type LocalSink struct {
	mu        sync.RWMutex
	exchanges map[near.AccountID]exchange.Exchange
}

func NewLocalSink() *LocalSink {
	return &LocalSink{exchanges: make(map[near.AccountID]exchange.Exchange)}
}

// Register routes promises addressed to account to ex.
func (s *LocalSink) Register(account near.AccountID, ex exchange.Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges[account] = ex
}

func (s *LocalSink) Name() string {
	return "local"
}

// Deliver runs each action of p in order and returns the result of the last one.
func (s *LocalSink) Deliver(ctx context.Context, p runtime.Promise) (json.RawMessage, error) {
	s.mu.RLock()
	ex, ok := s.exchanges[p.Receiver]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReceiver, p.Receiver)
	}

	var result json.RawMessage
	for _, call := range p.Actions {
		switch call.MethodName {
		case exchange.MethodSwap:
			args, err := exchange.DecodeSwapArgs(call.Args)
			if err != nil {
				return nil, err
			}
			out, err := ex.Swap(ctx, p.Predecessor, args, call.Deposit)
			if err != nil {
				return nil, fmt.Errorf("swap on %s: %w", p.Receiver, err)
			}
			if result, err = json.Marshal(out); err != nil {
				return nil, err
			}
		case exchange.MethodAddLiquidity:
			args, err := exchange.DecodeAddLiquidityArgs(call.Args)
			if err != nil {
				return nil, err
			}
			if err := ex.AddLiquidity(ctx, p.Predecessor, args, call.Deposit); err != nil {
				return nil, fmt.Errorf("add_liquidity on %s: %w", p.Receiver, err)
			}
			result = json.RawMessage("null")
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, call.MethodName)
		}
	}
	return result, nil
}
