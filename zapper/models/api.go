// Package models holds the request and response bodies of the zap service API.
package models

import (
	"github.com/Cogwheel-Validator/spectra-zap/zapper/exchange"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/relay"
)

// ZapRequest mirrors the contract's zap arguments. PredecessorID is the account the
// call is made on behalf of; empty means the zap contract itself.
type ZapRequest struct {
	InputAmount   near.U128 `json:"input_amount"`
	TokenIn       string    `json:"token_in"`
	TokenOut1     string    `json:"token_out_1"`
	TokenOut2     string    `json:"token_out_2"`
	PoolSelector  uint32    `json:"pool_selector"`
	PredecessorID string    `json:"predecessor_id,omitempty"`
}

type ZapResponse struct {
	PromiseID  uint64                `json:"promise_id"`
	ReceiverID near.AccountID        `json:"receiver_id"`
	Method     string                `json:"method"`
	Gas        near.Gas              `json:"gas"`
	Actions    []exchange.SwapAction `json:"actions"`
}

type GetConfigRequest struct{}

type GetConfigResponse struct {
	ContractID   near.AccountID `json:"contract_id"`
	SwapContract near.AccountID `json:"swap_contract"`
	FirstPoolID  uint64         `json:"first_pool_id"`
	SecondPoolID uint64         `json:"second_pool_id"`
	SwapGas      near.Gas       `json:"swap_gas"`
}

type GetReceiptRequest struct {
	PromiseID uint64 `json:"promise_id"`
}

type GetReceiptResponse struct {
	Receipt relay.Receipt `json:"receipt"`
}
