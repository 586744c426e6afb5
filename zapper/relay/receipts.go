package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/runtime"
)

const DefaultReceiptCapacity = 4096

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Receipt is what an operator can learn about one promise after it was scheduled.
type Receipt struct {
	PromiseID   uint64          `json:"promise_id"`
	Receiver    near.AccountID  `json:"receiver_id"`
	Sink        string          `json:"sink,omitempty"`
	Status      Status          `json:"status"`
	Value       json.RawMessage `json:"value,omitempty"`
	Error       string          `json:"error,omitempty"`
	QueuedAt    time.Time       `json:"queued_at"`
	DeliveredAt time.Time       `json:"delivered_at,omitzero"`
}

// ReceiptLog keeps the most recent receipts, evicting the oldest past capacity.
type ReceiptLog struct {
	mu       sync.RWMutex
	capacity int
	order    []uint64
	receipts map[uint64]Receipt
}

func NewReceiptLog(capacity int) *ReceiptLog {
	if capacity <= 0 {
		capacity = DefaultReceiptCapacity
	}
	return &ReceiptLog{
		capacity: capacity,
		receipts: make(map[uint64]Receipt, capacity),
	}
}

// Track records p as pending. Tracking an id twice keeps the first entry.
func (l *ReceiptLog) Track(p runtime.Promise) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.receipts[p.ID]; ok {
		return
	}
	l.put(Receipt{
		PromiseID: p.ID,
		Receiver:  p.Receiver,
		Status:    StatusPending,
		QueuedAt:  p.CreatedAt,
	})
}

// Record stores the final receipt for a promise, replacing a pending one.
func (l *ReceiptLog) Record(r Receipt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.receipts[r.PromiseID]; ok {
		l.receipts[r.PromiseID] = r
		return
	}
	l.put(r)
}

func (l *ReceiptLog) put(r Receipt) {
	for len(l.order) >= l.capacity {
		delete(l.receipts, l.order[0])
		l.order = l.order[1:]
	}
	l.order = append(l.order, r.PromiseID)
	l.receipts[r.PromiseID] = r
}

func (l *ReceiptLog) Get(id uint64) (Receipt, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.receipts[id]
	return r, ok
}

func (l *ReceiptLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.receipts)
}
