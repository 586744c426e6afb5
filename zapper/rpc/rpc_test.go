package rpc_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zeebo/assert"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/contract"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/exchange/sim"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/models"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/relay"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/rpc"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/runtime"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/store/memory"
)

type fixture struct {
	host       *runtime.Host
	receipts   *relay.ReceiptLog
	dispatcher *relay.Dispatcher
	url        string

	zap        *connect.Client[models.ZapRequest, models.ZapResponse]
	getConfig  *connect.Client[models.GetConfigRequest, models.GetConfigResponse]
	getReceipt *connect.Client[models.GetReceiptRequest, models.GetReceiptResponse]
}

func newFixture(t *testing.T, initialized bool, queueCapacity int) *fixture {
	t.Helper()
	host := runtime.NewHost(near.MustParseAccountID("zap.testnet"), memory.NewKV(), runtime.NewQueue(queueCapacity))
	if initialized {
		err := host.Call(context.Background(), runtime.CallOptions{}, func(env *runtime.Env) error {
			_, err := contract.New(env)
			return err
		})
		assert.NoError(t, err)
	}

	exchangeAccount := near.MustParseAccountID(contract.DefaultExchangeAccount)
	ex := sim.New(exchangeAccount)
	assert.NoError(t, ex.AddPool(269, "wrap.testnet", "ref.fakes.testnet", near.NewU128(1_000), near.NewU128(1_000)))
	assert.NoError(t, ex.AddPool(103, "wrap.testnet", "paras.fakes.testnet", near.NewU128(1_000), near.NewU128(1_000)))
	assert.NoError(t, ex.Deposit(host.AccountID(), "wrap.testnet", near.NewU128(1_000)))
	sink := relay.NewLocalSink()
	sink.Register(exchangeAccount, ex)

	receipts := relay.NewReceiptLog(16)
	cfg := rpc.DefaultServerConfig()
	cfg.OTelConfig = nil
	cfg.Gatherer = prometheus.NewRegistry()

	srv, err := rpc.NewServer(context.Background(), cfg, rpc.NewZapServer(host, receipts))
	assert.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &fixture{
		host:       host,
		receipts:   receipts,
		dispatcher: relay.NewDispatcher(host.Queue(), sink, receipts, nil),
		url:        ts.URL,
		zap: connect.NewClient[models.ZapRequest, models.ZapResponse](
			ts.Client(), ts.URL+rpc.ZapProcedure, rpc.WithJSONCodec()),
		getConfig: connect.NewClient[models.GetConfigRequest, models.GetConfigResponse](
			ts.Client(), ts.URL+rpc.GetConfigProcedure, rpc.WithJSONCodec()),
		getReceipt: connect.NewClient[models.GetReceiptRequest, models.GetReceiptResponse](
			ts.Client(), ts.URL+rpc.GetReceiptProcedure, rpc.WithJSONCodec()),
	}
}

func zapRequest(tokenOut2 string) *connect.Request[models.ZapRequest] {
	return connect.NewRequest(&models.ZapRequest{
		InputAmount:  near.NewU128(11),
		TokenIn:      "wrap.testnet",
		TokenOut1:    "ref.fakes.testnet",
		TokenOut2:    tokenOut2,
		PoolSelector: 5,
	})
}

func TestZap(t *testing.T) {
	f := newFixture(t, true, 8)

	resp, err := f.zap.CallUnary(context.Background(), zapRequest("paras.fakes.testnet"))
	assert.NoError(t, err)
	assert.Equal(t, resp.Msg.ReceiverID, near.AccountID(contract.DefaultExchangeAccount))
	assert.Equal(t, resp.Msg.Method, "swap")
	assert.Equal(t, resp.Msg.Gas, 110*near.TGas)
	assert.Equal(t, len(resp.Msg.Actions), 2)
	assert.Equal(t, resp.Msg.Actions[0].PoolID, uint64(269))
	assert.Equal(t, resp.Msg.Actions[1].PoolID, uint64(103))
	assert.Equal(t, resp.Msg.Actions[0].AmountIn.String(), "5")
	assert.Equal(t, resp.Msg.Actions[1].AmountIn.String(), "5")
	assert.Equal(t, resp.Header().Get("Cache-Control"), "no-store, no-cache, must-revalidate")

	receipt, err := f.getReceipt.CallUnary(context.Background(),
		connect.NewRequest(&models.GetReceiptRequest{PromiseID: resp.Msg.PromiseID}))
	assert.NoError(t, err)
	assert.Equal(t, receipt.Msg.Receipt.Status, relay.StatusPending)

	assert.Equal(t, f.dispatcher.Drain(context.Background()), 1)

	receipt, err = f.getReceipt.CallUnary(context.Background(),
		connect.NewRequest(&models.GetReceiptRequest{PromiseID: resp.Msg.PromiseID}))
	assert.NoError(t, err)
	assert.Equal(t, receipt.Msg.Receipt.Status, relay.StatusSucceeded)
	assert.Equal(t, receipt.Msg.Receipt.Sink, "local")
}

func TestZap_Errors(t *testing.T) {
	f := newFixture(t, true, 1)

	_, err := f.zap.CallUnary(context.Background(), zapRequest("Not An Account"))
	assert.Equal(t, connect.CodeOf(err), connect.CodeInvalidArgument)
	assert.Equal(t, f.host.Queue().Len(), 0)

	_, err = f.zap.CallUnary(context.Background(), zapRequest("paras.fakes.testnet"))
	assert.NoError(t, err)
	_, err = f.zap.CallUnary(context.Background(), zapRequest("paras.fakes.testnet"))
	assert.Equal(t, connect.CodeOf(err), connect.CodeResourceExhausted)

	_, err = f.getReceipt.CallUnary(context.Background(), connect.NewRequest(&models.GetReceiptRequest{PromiseID: 999}))
	assert.Equal(t, connect.CodeOf(err), connect.CodeNotFound)
}

func TestNotInitialized(t *testing.T) {
	f := newFixture(t, false, 8)

	_, err := f.zap.CallUnary(context.Background(), zapRequest("paras.fakes.testnet"))
	var connectErr *connect.Error
	assert.True(t, errors.As(err, &connectErr))
	assert.Equal(t, connectErr.Code(), connect.CodeFailedPrecondition)

	_, err = f.getConfig.CallUnary(context.Background(), connect.NewRequest(&models.GetConfigRequest{}))
	assert.Equal(t, connect.CodeOf(err), connect.CodeFailedPrecondition)

	resp, err := http.Get(f.url + "/server/ready")
	assert.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, resp.StatusCode, http.StatusServiceUnavailable)
}

func TestGetConfig(t *testing.T) {
	f := newFixture(t, true, 8)

	resp, err := f.getConfig.CallUnary(context.Background(), connect.NewRequest(&models.GetConfigRequest{}))
	assert.NoError(t, err)
	assert.Equal(t, resp.Msg.ContractID, near.AccountID("zap.testnet"))
	assert.Equal(t, resp.Msg.SwapContract, near.AccountID(contract.DefaultExchangeAccount))
	assert.Equal(t, resp.Msg.FirstPoolID, uint64(269))
	assert.Equal(t, resp.Msg.SecondPoolID, uint64(103))
	assert.Equal(t, resp.Msg.SwapGas, contract.DefaultSwapGas)
}

func TestServerEndpoints(t *testing.T) {
	f := newFixture(t, true, 8)

	for _, path := range []string{"/server/health", "/server/ready", "/server/metrics"} {
		resp, err := http.Get(f.url + path)
		assert.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, resp.StatusCode, http.StatusOK)
	}
}
