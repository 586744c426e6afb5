package runtime

import (
	"encoding/json"
	"time"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
)

// FunctionCall is a single method invocation carried by a promise.
type FunctionCall struct {
	MethodName string          `json:"method_name"`
	Args       json.RawMessage `json:"args"`
	Deposit    near.U128       `json:"deposit"`
	Gas        near.Gas        `json:"gas"`
}

// Promise is one outbound asynchronous message from a contract to a receiver account.
// Nothing waits on it: the scheduling contract finishes as soon as it is queued.
type Promise struct {
	ID          uint64         `json:"id"`
	Predecessor near.AccountID `json:"predecessor_id"`
	Receiver    near.AccountID `json:"receiver_id"`
	Actions     []FunctionCall `json:"actions"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TotalGas is the sum of gas attached to every action.
func (p Promise) TotalGas() near.Gas {
	var total near.Gas
	for _, a := range p.Actions {
		total += a.Gas
	}
	return total
}
