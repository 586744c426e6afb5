package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/config"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/contract"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/exchange/sim"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/relay"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/rpc"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/runtime"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/store"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/store/leveldb"
	"github.com/Cogwheel-Validator/spectra-zap/zapper/store/memory"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()
}

func main() {
	configPath := flag.String("config", "", "service config file (toml); empty reads ZAPPER_ env vars")
	flag.Parse()

	var path *string
	if *configPath != "" {
		path = configPath
	}
	cfg, err := config.LoadServiceConfig(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load service config")
	}

	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	log = log.Level(level)
	runtime.SetLogger(log)
	contract.SetLogger(log)
	relay.SetLogger(log)
	rpc.SetLogger(log)

	contractFile, err := config.LoadContractFile(cfg.ContractConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load contract config")
	}
	contractConfig, err := contractFile.ContractConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid contract config")
	}

	kv, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open contract storage")
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close contract storage")
		}
	}()

	account := near.MustParseAccountID(cfg.ContractAccount)
	queue := runtime.NewQueue(cfg.QueueCapacity)
	host := runtime.NewHost(account, kv, queue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := initContract(ctx, host, contractConfig); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize contract")
	}

	sink, closeSink, err := buildSink(cfg, account, contractConfig, contractFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build relay sink")
	}
	defer closeSink()

	metrics, err := relay.NewMetrics(prometheus.DefaultRegisterer, queue)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register relay metrics")
	}
	receipts := relay.NewReceiptLog(cfg.ReceiptCapacity)
	dispatcher := relay.NewDispatcher(queue, sink, receipts, metrics)

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := dispatcher.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Relay stopped with error")
		}
	}()

	server, err := rpc.NewServer(ctx, buildServerConfig(cfg), rpc.NewZapServer(host, receipts))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create RPC server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server error")
			sigCh <- syscall.SIGTERM
		}
	}()

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}

	cancel()
	<-relayDone
	if n := queue.Len(); n > 0 {
		log.Warn().Int("promises", n).Msg("Undelivered promises dropped at shutdown")
	}
}

func openStore(cfg *config.ServiceConfig) (store.KV, error) {
	if cfg.StoragePath == "" {
		log.Warn().Msg("No storage_path set, contract state lives in memory")
		return memory.NewKV(), nil
	}
	return leveldb.Open(cfg.StoragePath, cfg.StorageCacheMiB)
}

// initContract stores cfg unless the contract was initialized by an earlier run, in
// which case the stored configuration wins.
func initContract(ctx context.Context, host *runtime.Host, cfg contract.ContractConfig) error {
	err := host.Call(ctx, runtime.CallOptions{}, func(env *runtime.Env) error {
		_, err := contract.Init(env, cfg)
		return err
	})
	if errors.Is(err, contract.ErrAlreadyInitialized) {
		log.Info().Msg("Contract already initialized, keeping stored config")
		return nil
	}
	return err
}

func buildSink(cfg *config.ServiceConfig, account near.AccountID, contractConfig contract.ContractConfig, file *config.ContractFile) (relay.Sink, func(), error) {
	if cfg.Sink == config.SinkHTTP {
		failover := relay.DefaultFailoverConfig()
		failover.HealthCheckInterval = time.Duration(cfg.HealthCheckInterval) * time.Second
		sink, err := relay.NewHTTPSink(cfg.RelayerURLs[0], cfg.RelayerURLs[1:], failover)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	}

	ex := sim.New(contractConfig.SwapContract)
	for _, p := range file.Simulator.Pools {
		reserveA, err := near.ParseU128(p.ReserveA)
		if err != nil {
			return nil, nil, err
		}
		reserveB, err := near.ParseU128(p.ReserveB)
		if err != nil {
			return nil, nil, err
		}
		tokenA, err := near.ParseAccountID(p.TokenA)
		if err != nil {
			return nil, nil, err
		}
		tokenB, err := near.ParseAccountID(p.TokenB)
		if err != nil {
			return nil, nil, err
		}
		if err := ex.AddPool(p.ID, tokenA, tokenB, reserveA, reserveB); err != nil {
			return nil, nil, err
		}
	}
	for _, d := range file.Simulator.Deposits {
		token, err := near.ParseAccountID(d.Token)
		if err != nil {
			return nil, nil, err
		}
		amount, err := near.ParseU128(d.Amount)
		if err != nil {
			return nil, nil, err
		}
		if err := ex.Deposit(account, token, amount); err != nil {
			return nil, nil, err
		}
	}
	log.Info().
		Str("exchange", contractConfig.SwapContract.String()).
		Int("pools", len(file.Simulator.Pools)).
		Msg("Local simulated exchange ready")

	sink := relay.NewLocalSink()
	sink.Register(contractConfig.SwapContract, ex)
	return sink, func() {}, nil
}

// buildServerConfig converts the loaded ServiceConfig to rpc.ServerConfig
func buildServerConfig(cfg *config.ServiceConfig) *rpc.ServerConfig {
	serverConfig := rpc.DefaultServerConfig()
	serverConfig.Address = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	serverConfig.AllowedOrigins = cfg.AllowedOrigins
	serverConfig.EnableMetrics = cfg.EnableMetrics || cfg.UsePrometheus
	serverConfig.RatePerMinute = &cfg.RatePerMinute
	serverConfig.MaxConcurrentRequests = &cfg.MaxConcurrentRequests

	serverConfig.OTelConfig = &rpc.OTelConfig{
		ServiceName:     cfg.ServiceName,
		ServiceVersion:  cfg.ServiceVersion,
		Environment:     cfg.Environment,
		EnableTracing:   cfg.EnableTracing,
		OTLPTracesURL:   cfg.OTLPTracesURL,
		EnableMetrics:   cfg.EnableMetrics,
		UsePrometheus:   cfg.UsePrometheus,
		OTLPMetricsURL:  cfg.OTLPMetricsURL,
		EnableLogs:      cfg.EnableLogs,
		OTLPLogsURL:     cfg.OTLPLogsURL,
		InsecureOTLP:    cfg.InsecureOTLP,
		DevelopmentMode: cfg.DevelopmentMode,
	}
	return serverConfig
}
