// Package runtime executes contract methods one at a time and turns the cross-contract
// calls they schedule into queued promises.
package runtime

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/store"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "runtime").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "runtime").Logger()
}

// CallOptions describe the transaction a method call arrives with.
type CallOptions struct {
	Predecessor near.AccountID
	Deposit     near.U128
	// PrepaidGas defaults to near.MaxPrepaidGas when zero.
	PrepaidGas near.Gas
}

// Host is the execution environment of one deployed contract account.
type Host struct {
	mu      sync.Mutex
	account near.AccountID
	storage store.KV
	queue   *Queue
	nextID  atomic.Uint64
}

// NewHost binds a contract account to its storage and outbound queue.
func NewHost(account near.AccountID, storage store.KV, queue *Queue) *Host {
	return &Host{
		account: account,
		storage: storage,
		queue:   queue,
	}
}

func (h *Host) AccountID() near.AccountID {
	return h.account
}

func (h *Host) Queue() *Queue {
	return h.queue
}

// Call runs fn to completion with exclusive access to the contract. If fn returns an
// error nothing it wrote or scheduled takes effect.
func (h *Host) Call(ctx context.Context, opts CallOptions, fn func(env *Env) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	prepaid := opts.PrepaidGas
	if prepaid == 0 {
		prepaid = near.MaxPrepaidGas
	}
	predecessor := opts.Predecessor
	if predecessor == "" {
		predecessor = h.account
	}

	env := &Env{
		ctx:             ctx,
		host:            h,
		predecessor:     predecessor,
		attachedDeposit: opts.Deposit,
		prepaidGas:      prepaid,
		writes:          make(map[string][]byte),
	}

	if err := fn(env); err != nil {
		log.Debug().Err(err).Str("predecessor", predecessor.String()).Msg("Call aborted, discarding effects")
		return err
	}
	return h.commit(env)
}

// View runs a read-only fn; any writes or promises it makes are discarded.
func (h *Host) View(ctx context.Context, fn func(env *Env) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	env := &Env{
		ctx:         ctx,
		host:        h,
		predecessor: h.account,
		prepaidGas:  near.MaxPrepaidGas,
		writes:      make(map[string][]byte),
	}
	return fn(env)
}

// commit applies state writes, then queues promises. Room for the promises is checked
// before anything is written; h.mu serializes pushers and consumers only drain, so the
// push cannot run out of room afterwards.
func (h *Host) commit(env *Env) error {
	if free := h.queue.Free(); len(env.pending) > free {
		return fmt.Errorf("%w: %d promises, %d free slots", ErrQueueFull, len(env.pending), free)
	}
	for key, value := range env.writes {
		if err := h.storage.Set(env.ctx, []byte(key), value); err != nil {
			return fmt.Errorf("failed to write state: %w", err)
		}
	}
	if len(env.pending) == 0 {
		return nil
	}
	if err := h.queue.PushBatch(env.pending); err != nil {
		return err
	}
	for _, p := range env.pending {
		log.Debug().
			Uint64("promise", p.ID).
			Str("receiver", p.Receiver.String()).
			Str("gas", p.TotalGas().String()).
			Msg("Promise queued")
	}
	return nil
}
