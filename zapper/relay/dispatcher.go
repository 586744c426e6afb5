package relay

import (
	"context"
	"errors"
	"time"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/runtime"
)

// Dispatcher moves promises from the queue to a sink, one at a time, in queue order.
type Dispatcher struct {
	queue    *runtime.Queue
	sink     Sink
	receipts *ReceiptLog
	metrics  *Metrics
}

// NewDispatcher wires a queue to a sink. metrics may be nil.
func NewDispatcher(queue *runtime.Queue, sink Sink, receipts *ReceiptLog, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		sink:     sink,
		receipts: receipts,
		metrics:  metrics,
	}
}

func (d *Dispatcher) Receipts() *ReceiptLog {
	return d.receipts
}

// Run delivers promises until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	log.Info().Str("sink", d.sink.Name()).Msg("Relay started")
	for {
		p, err := d.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info().Msg("Relay stopped")
				return nil
			}
			return err
		}
		d.deliver(ctx, p)
	}
}

// Drain delivers whatever is queued right now and returns how many promises it handled.
func (d *Dispatcher) Drain(ctx context.Context) int {
	n := 0
	for {
		p, ok := d.queue.TryPop()
		if !ok {
			return n
		}
		d.deliver(ctx, p)
		n++
	}
}

func (d *Dispatcher) deliver(ctx context.Context, p runtime.Promise) Receipt {
	receipt := Receipt{
		PromiseID: p.ID,
		Receiver:  p.Receiver,
		Sink:      d.sink.Name(),
		QueuedAt:  p.CreatedAt,
	}

	value, err := d.sink.Deliver(ctx, p)
	receipt.DeliveredAt = time.Now().UTC()
	if err != nil {
		receipt.Status = StatusFailed
		receipt.Error = err.Error()
		log.Warn().Err(err).
			Uint64("promise", p.ID).
			Str("receiver", p.Receiver.String()).
			Msg("Promise delivery failed")
	} else {
		receipt.Status = StatusSucceeded
		receipt.Value = value
		log.Debug().
			Uint64("promise", p.ID).
			Str("receiver", p.Receiver.String()).
			Str("value", string(value)).
			Msg("Promise delivered")
	}

	d.receipts.Record(receipt)
	d.metrics.observe(d.sink.Name(), receipt.Status)
	return receipt
}
