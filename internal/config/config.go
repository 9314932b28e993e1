// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Quote submission modes.
const (
	QuoteModeDirect = "direct"
	QuoteModePermit = "permit"
)

// Denylist backends.
const (
	DenylistMemory   = "memory"
	DenylistFile     = "file"
	DenylistPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Quote     QuoteConfig     `mapstructure:"quote"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
	Denylist  DenylistConfig  `mapstructure:"denylist"`
	Holdings  HoldingsConfig  `mapstructure:"holdings"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	API       APIConfig       `mapstructure:"api"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds the RPC endpoint and the signing key.
type EthereumConfig struct {
	RPCURL              string        `mapstructure:"rpc_url"`
	ChainID             uint64        `mapstructure:"chain_id"`
	PrivateKey          string        `mapstructure:"private_key"`
	ReceiptTimeout      time.Duration `mapstructure:"receipt_timeout"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
	GasMarginPercent    int           `mapstructure:"gas_margin_percent"`
}

// QuoteConfig holds the swap aggregator settings.
type QuoteConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	APIVersion        string        `mapstructure:"api_version"`
	Mode              string        `mapstructure:"mode"` // direct | permit
	SlippageBps       int           `mapstructure:"slippage_bps"`
	FeeRecipient      string        `mapstructure:"fee_recipient"`
	FeeBps            int           `mapstructure:"fee_bps"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// FeeRecipientAddress returns the integrator fee recipient, if configured.
func (c *QuoteConfig) FeeRecipientAddress() (common.Address, bool) {
	if c.FeeRecipient == "" {
		return common.Address{}, false
	}
	return common.HexToAddress(c.FeeRecipient), true
}

// SweepConfig holds orchestration settings.
type SweepConfig struct {
	Target          string        `mapstructure:"target"` // symbol or address
	RequestDelay    time.Duration `mapstructure:"request_delay"`
	Percent         int           `mapstructure:"percent"`
	SafetyMarginBps int           `mapstructure:"safety_margin_bps"`
	NativeSentinel  string        `mapstructure:"native_sentinel"`
	TUIMode         bool          `mapstructure:"-"` // Set at runtime, not from config file
}

// NativeSentinelAddress returns the configured native-asset sentinel.
func (c *SweepConfig) NativeSentinelAddress() common.Address {
	return common.HexToAddress(c.NativeSentinel)
}

// DenylistConfig selects where the denylist is persisted.
type DenylistConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

// HoldingsConfig holds the sweepable token watch-list.
type HoldingsConfig struct {
	Tokens          []string      `mapstructure:"tokens"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	MinHoldingRatio float64       `mapstructure:"min_holding_ratio"`
}

// TokenAddresses parses the watch-list, skipping malformed entries.
func (c *HoldingsConfig) TokenAddresses() []common.Address {
	result := make([]common.Address, 0, len(c.Tokens))
	for _, t := range c.Tokens {
		t = strings.TrimSpace(t)
		if common.IsHexAddress(t) {
			result = append(result, common.HexToAddress(t))
		}
	}
	return result
}

// SchedulerConfig holds unattended sweep settings.
type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Cron     string `mapstructure:"cron"`
	Timezone string `mapstructure:"timezone"`
}

// APIConfig holds the HTTP API settings.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	ServiceName     string  `mapstructure:"service_name"`
	TracingProvider string  `mapstructure:"tracing_provider"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders     string  `mapstructure:"otlp_headers"`
	OTLPProtocol    string  `mapstructure:"otlp_protocol"`
	SampleRatio     float64 `mapstructure:"sample_ratio"`
	PrometheusPort  int     `mapstructure:"prometheus_port"`
	HealthPort      int     `mapstructure:"health_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("SWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "SWEEP_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "SWEEP_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "SWEEP_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	v.BindEnv("ethereum.rpc_url", "SWEEP_RPC_URL", "ETH_RPC_URL")
	v.BindEnv("ethereum.chain_id", "SWEEP_CHAIN_ID", "CHAIN_ID")
	v.BindEnv("ethereum.private_key", "SWEEP_PRIVATE_KEY", "PRIVATE_KEY")

	// Quote
	v.BindEnv("quote.api_key", "SWEEP_ZEROX_API_KEY", "ZEROX_API_KEY")
	v.BindEnv("quote.mode", "SWEEP_QUOTE_MODE")
	v.BindEnv("quote.fee_recipient", "SWEEP_FEE_RECIPIENT", "FEE_RECIPIENT")

	// Denylist
	v.BindEnv("denylist.dsn", "SWEEP_DENYLIST_DSN", "DATABASE_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "SWEEP_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "SWEEP_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "SWEEP_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "SWEEP_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
	v.BindEnv("telemetry.otlp_protocol", "SWEEP_OTEL_PROTOCOL", "OTEL_EXPORTER_OTLP_PROTOCOL")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "token-sweeper")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Base mainnet
	v.SetDefault("ethereum.rpc_url", "https://mainnet.base.org")
	v.SetDefault("ethereum.chain_id", 8453)
	v.SetDefault("ethereum.receipt_timeout", "2m")
	v.SetDefault("ethereum.receipt_poll_interval", "2s")
	v.SetDefault("ethereum.gas_margin_percent", 10)

	// 0x Swap API v2
	v.SetDefault("quote.base_url", "https://api.0x.org")
	v.SetDefault("quote.api_version", "v2")
	v.SetDefault("quote.mode", QuoteModeDirect)
	v.SetDefault("quote.slippage_bps", 500)
	v.SetDefault("quote.fee_bps", 100)
	v.SetDefault("quote.requests_per_minute", 60)
	v.SetDefault("quote.timeout", "15s")

	// Sweep defaults
	v.SetDefault("sweep.target", "USDC")
	v.SetDefault("sweep.request_delay", "1s")
	v.SetDefault("sweep.percent", 100)
	v.SetDefault("sweep.safety_margin_bps", 0)
	v.SetDefault("sweep.native_sentinel", "0x0000000000000000000000000000000000000000")

	v.SetDefault("denylist.backend", DenylistMemory)
	v.SetDefault("denylist.path", "denylist.yaml")

	v.SetDefault("holdings.tokens", []string{})
	v.SetDefault("holdings.cache_ttl", "5m")
	v.SetDefault("holdings.min_holding_ratio", 1e-32)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.cron", "0 */6 * * *")
	v.SetDefault("scheduler.timezone", "UTC")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.port", 8090)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "token-sweeper")
	v.SetDefault("telemetry.tracing_provider", "zipkin")
	v.SetDefault("telemetry.otlp_protocol", "grpc")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.RPCURL == "" {
		return fmt.Errorf("ethereum.rpc_url is required")
	}
	if c.Ethereum.ChainID == 0 {
		return fmt.Errorf("ethereum.chain_id is required")
	}
	if c.Quote.BaseURL == "" {
		return fmt.Errorf("quote.base_url is required")
	}
	if c.Quote.Mode != QuoteModeDirect && c.Quote.Mode != QuoteModePermit {
		return fmt.Errorf("invalid quote.mode: %q (want %s or %s)", c.Quote.Mode, QuoteModeDirect, QuoteModePermit)
	}
	if c.Quote.SlippageBps < 0 || c.Quote.SlippageBps > 10_000 {
		return fmt.Errorf("quote.slippage_bps out of range: %d", c.Quote.SlippageBps)
	}
	if c.Quote.FeeRecipient != "" && !common.IsHexAddress(c.Quote.FeeRecipient) {
		return fmt.Errorf("invalid quote.fee_recipient: %s", c.Quote.FeeRecipient)
	}
	if c.Sweep.Percent <= 0 || c.Sweep.Percent > 100 || c.Sweep.Percent%5 != 0 {
		return fmt.Errorf("sweep.percent must be a multiple of 5 in (0, 100]: %d", c.Sweep.Percent)
	}
	if c.Sweep.SafetyMarginBps < 0 || c.Sweep.SafetyMarginBps >= 10_000 {
		return fmt.Errorf("sweep.safety_margin_bps out of range: %d", c.Sweep.SafetyMarginBps)
	}
	if c.Sweep.RequestDelay < 0 {
		return fmt.Errorf("sweep.request_delay cannot be negative")
	}
	if !common.IsHexAddress(c.Sweep.NativeSentinel) {
		return fmt.Errorf("invalid sweep.native_sentinel: %s", c.Sweep.NativeSentinel)
	}
	switch c.Denylist.Backend {
	case DenylistMemory:
	case DenylistFile:
		if c.Denylist.Path == "" {
			return fmt.Errorf("denylist.path is required for the file backend")
		}
	case DenylistPostgres:
		if c.Denylist.DSN == "" {
			return fmt.Errorf("denylist.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid denylist.backend: %q", c.Denylist.Backend)
	}
	for _, t := range c.Holdings.Tokens {
		if !common.IsHexAddress(strings.TrimSpace(t)) {
			return fmt.Errorf("invalid holdings token: %s", t)
		}
	}
	if c.Scheduler.Enabled && c.Scheduler.Cron == "" {
		return fmt.Errorf("scheduler.cron is required when the scheduler is enabled")
	}
	return nil
}
