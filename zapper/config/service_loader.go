package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/Cogwheel-Validator/spectra-zap/zapper/near"
)

// LoadServiceConfig loads the service config from the toml file at configPath, or from
// the environment when configPath is nil.
func LoadServiceConfig(configPath *string) (*ServiceConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == nil {
		config, err := loadEnv(v)
		if err != nil {
			return nil, fmt.Errorf("failed to load env config: %w", err)
		}
		return config, nil
	}
	config, err := loadFile(v, *configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load file config: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 8080)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("max_concurrent_requests", 200)
	v.SetDefault("contract_account", "zap.testnet")
	v.SetDefault("storage_cache_mib", 8)
	v.SetDefault("queue_capacity", 1024)
	v.SetDefault("sink", SinkLocal)
	v.SetDefault("health_check_interval", 30)
	v.SetDefault("receipt_capacity", 4096)
	v.SetDefault("log_level", "info")
	v.SetDefault("service_name", "spectra-zap")
	v.SetDefault("service_version", "0.1.0")
	v.SetDefault("environment", "production")
	v.SetDefault("enable_metrics", true)
	v.SetDefault("use_prometheus", true)
}

func loadEnv(v *viper.Viper) (*ServiceConfig, error) {
	// a missing .env is fine, the variables may come from docker or systemd
	_ = godotenv.Load()
	v.SetEnvPrefix("ZAPPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var config ServiceConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal env config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

// bindEnvKeys binds each config key to its env var so Unmarshal sees env values
// when no config file is loaded.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"port", "host", "allowed_origins",
		"rate_per_minute", "max_concurrent_requests",
		"contract_account", "contract_config", "storage_path", "storage_cache_mib", "queue_capacity",
		"sink", "relayer_urls", "health_check_interval", "receipt_capacity",
		"log_level",
		"service_name", "service_version", "environment",
		"enable_tracing", "otlp_traces_url",
		"enable_metrics", "use_prometheus", "otlp_metrics_url",
		"enable_logs", "otlp_logs_url",
		"insecure_otlp", "development_mode",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func loadFile(v *viper.Viper, configPath string) (*ServiceConfig, error) {
	if !strings.HasSuffix(configPath, ".toml") {
		return nil, fmt.Errorf("config file must be a toml file")
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ServiceConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

func verifyConfig(config *ServiceConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if config.Host == "" {
		return fmt.Errorf("host is required")
	}
	if len(config.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins is required")
	}
	if _, err := near.ParseAccountID(config.ContractAccount); err != nil {
		return fmt.Errorf("contract_account: %w", err)
	}
	if config.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be positive")
	}
	if _, err := zerolog.ParseLevel(config.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	switch config.Sink {
	case SinkLocal:
	case SinkHTTP:
		if len(config.RelayerURLs) == 0 {
			return fmt.Errorf("relayer_urls is required for the http sink")
		}
		for _, u := range config.RelayerURLs {
			if _, err := url.ParseRequestURI(u); err != nil {
				return fmt.Errorf("relayer_urls: %w", err)
			}
		}
	default:
		return fmt.Errorf("sink must be %q or %q, got %q", SinkLocal, SinkHTTP, config.Sink)
	}
	return nil
}
