package rpc

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/contract"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/exchange"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/models"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/relay"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/runtime"
)

const (
	ZapServiceName = "zapper.v1.ZapService"

	ZapProcedure        = "/" + ZapServiceName + "/Zap"
	GetConfigProcedure  = "/" + ZapServiceName + "/GetConfig"
	GetReceiptProcedure = "/" + ZapServiceName + "/GetReceipt"
)

// ZapServer serves the zap contract over connect.
type ZapServer struct {
	host     *runtime.Host
	receipts *relay.ReceiptLog
}

func NewZapServer(host *runtime.Host, receipts *relay.ReceiptLog) *ZapServer {
	return &ZapServer{
		host:     host,
		receipts: receipts,
	}
}

// Zap runs the contract's zap method and returns the promise it scheduled.
//
// Returns:
// - InvalidArgument: malformed account id
// - ResourceExhausted: swap gas above the call's budget or outbound queue full
// - FailedPrecondition: contract not initialized
func (s *ZapServer) Zap(
	ctx context.Context,
	req *connect.Request[models.ZapRequest],
) (*connect.Response[models.ZapResponse], error) {
	opts := runtime.CallOptions{}
	if req.Msg.PredecessorID != "" {
		predecessor, err := near.ParseAccountID(req.Msg.PredecessorID)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("predecessor_id: %w", err))
		}
		opts.Predecessor = predecessor
	}

	var promise *runtime.Promise
	err := s.host.Call(ctx, opts, func(env *runtime.Env) error {
		c, err := contract.Load(env)
		if err != nil {
			return err
		}
		promise, err = c.Zap(env, req.Msg.InputAmount, req.Msg.TokenIn, req.Msg.TokenOut1, req.Msg.TokenOut2, req.Msg.PoolSelector)
		return err
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	if s.receipts != nil {
		s.receipts.Track(*promise)
	}

	resp := &models.ZapResponse{
		PromiseID:  promise.ID,
		ReceiverID: promise.Receiver,
		Gas:        promise.TotalGas(),
	}
	if len(promise.Actions) > 0 {
		resp.Method = promise.Actions[0].MethodName
		args, err := exchange.DecodeSwapArgs(promise.Actions[0].Args)
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		resp.Actions = args.Actions
	}
	return connect.NewResponse(resp), nil
}

// GetConfig returns the persisted contract configuration.
func (s *ZapServer) GetConfig(
	ctx context.Context,
	_ *connect.Request[models.GetConfigRequest],
) (*connect.Response[models.GetConfigResponse], error) {
	var cfg contract.ContractConfig
	err := s.host.View(ctx, func(env *runtime.Env) error {
		c, err := contract.Load(env)
		if err != nil {
			return err
		}
		cfg = c.Config()
		return nil
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&models.GetConfigResponse{
		ContractID:   s.host.AccountID(),
		SwapContract: cfg.SwapContract,
		FirstPoolID:  cfg.FirstPoolID,
		SecondPoolID: cfg.SecondPoolID,
		SwapGas:      cfg.SwapGas,
	}), nil
}

// GetReceipt reports what happened to a scheduled promise after the zap returned.
func (s *ZapServer) GetReceipt(
	_ context.Context,
	req *connect.Request[models.GetReceiptRequest],
) (*connect.Response[models.GetReceiptResponse], error) {
	if s.receipts == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("receipts are not recorded"))
	}
	r, ok := s.receipts.Get(req.Msg.PromiseID)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no receipt for promise %d", req.Msg.PromiseID))
	}
	return connect.NewResponse(&models.GetReceiptResponse{Receipt: r}), nil
}

// Ready reports whether the contract has been initialized.
func (s *ZapServer) Ready(ctx context.Context) error {
	return s.host.View(ctx, func(env *runtime.Env) error {
		_, err := contract.Load(env)
		return err
	})
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, near.ErrInvalidAccountID), errors.Is(err, near.ErrInvalidU128):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, runtime.ErrGasExceeded), errors.Is(err, runtime.ErrQueueFull):
		return connect.NewError(connect.CodeResourceExhausted, err)
	case errors.Is(err, contract.ErrNotInitialized):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
