package config

// ServiceConfig is the zap service configuration, read from a toml file or from
// ZAPPER_ prefixed environment variables.
type ServiceConfig struct {
	// rpc configs
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`

	// CORS configs
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `mapstructure:"rate_per_minute"`
	MaxConcurrentRequests int `mapstructure:"max_concurrent_requests"`

	// contract host configs
	ContractAccount    string `mapstructure:"contract_account"`
	ContractConfigPath string `mapstructure:"contract_config"`
	StoragePath        string `mapstructure:"storage_path"` // empty keeps state in memory
	StorageCacheMiB    int    `mapstructure:"storage_cache_mib"`
	QueueCapacity      int    `mapstructure:"queue_capacity"`

	// relay configs
	Sink                string   `mapstructure:"sink"` // local or http
	RelayerURLs         []string `mapstructure:"relayer_urls"`
	HealthCheckInterval int      `mapstructure:"health_check_interval"` // seconds
	ReceiptCapacity     int      `mapstructure:"receipt_capacity"`

	LogLevel string `mapstructure:"log_level"`

	// OpenTelemetry configs
	ServiceName     string `mapstructure:"service_name"`
	ServiceVersion  string `mapstructure:"service_version"`
	Environment     string `mapstructure:"environment"`
	EnableTracing   bool   `mapstructure:"enable_tracing"`
	OTLPTracesURL   string `mapstructure:"otlp_traces_url"`
	EnableMetrics   bool   `mapstructure:"enable_metrics"`
	UsePrometheus   bool   `mapstructure:"use_prometheus"`
	OTLPMetricsURL  string `mapstructure:"otlp_metrics_url"`
	EnableLogs      bool   `mapstructure:"enable_logs"`
	OTLPLogsURL     string `mapstructure:"otlp_logs_url"`
	InsecureOTLP    bool   `mapstructure:"insecure_otlp"`
	DevelopmentMode bool   `mapstructure:"development_mode"`
}

const (
	SinkLocal = "local"
	SinkHTTP  = "http"
)
