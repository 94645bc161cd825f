// Package config defines the top-level configuration for the copy trader
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by COPYTRADER_* environment
// variables.
type Config struct {
	Source    SourceConfig    `toml:"source"`
	RPC       RPCConfig       `toml:"rpc"`
	Wallet    WalletConfig    `toml:"wallet"`
	Jupiter   JupiterConfig   `toml:"jupiter"`
	Sizing    SizingConfig    `toml:"sizing"`
	Execution ExecutionConfig `toml:"execution"`
	Feed      FeedConfig      `toml:"feed"`
	Storage   StorageConfig   `toml:"storage"`
	Redis     RedisConfig     `toml:"redis"`
	Notify    NotifyConfig    `toml:"notify"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Report    ReportConfig    `toml:"report"`
	LogLevel  string          `toml:"log_level"`
}

// SourceConfig identifies the account being copied.
type SourceConfig struct {
	// Account is the base58 address whose trades are mirrored.
	Account string `toml:"account"`
}

// RPCConfig holds the Solana cluster selection and endpoint addresses.
type RPCConfig struct {
	// Network selects the cluster: "mainnet" or "testnet". Endpoints left
	// empty fall back to the public endpoints of this cluster.
	Network string `toml:"network"`
	// HTTPEndpoint overrides the cluster's public HTTP endpoint.
	HTTPEndpoint string `toml:"http_endpoint"`
	// WSEndpoint overrides the cluster's public WebSocket endpoint.
	WSEndpoint string `toml:"ws_endpoint"`
}

// clusterEndpoints maps a network name to its public HTTP and WS endpoints.
var clusterEndpoints = map[string][2]string{
	"mainnet": {"https://api.mainnet-beta.solana.com", "wss://api.mainnet-beta.solana.com"},
	"testnet": {"https://api.testnet.solana.com", "wss://api.testnet.solana.com"},
}

// HTTPURL returns the explicit HTTP endpoint, or the cluster default for
// Network when none is set.
func (r RPCConfig) HTTPURL() string {
	if r.HTTPEndpoint != "" {
		return r.HTTPEndpoint
	}
	return clusterEndpoints[r.Network][0]
}

// WSURL returns the explicit WebSocket endpoint, or the cluster default for
// Network when none is set.
func (r RPCConfig) WSURL() string {
	if r.WSEndpoint != "" {
		return r.WSEndpoint
	}
	return clusterEndpoints[r.Network][1]
}

// WalletConfig holds the trading wallet credentials.
type WalletConfig struct {
	// PrivateKey is the base58-encoded 64-byte ed25519 keypair.
	PrivateKey string `toml:"private_key"`
}

// JupiterConfig holds the swap aggregator endpoint.
type JupiterConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"`
}

// SizingConfig holds position sizing policy parameters.
type SizingConfig struct {
	// Mode selects how sized amounts are derived: "fixed", "percentage",
	// or "multiplier".
	Mode string `toml:"mode"`
	// FixedLamports is the amount used in fixed mode.
	FixedLamports uint64 `toml:"fixed_lamports"`
	// PercentageBps is the share of the source trade amount in percentage
	// mode, in basis points (1000 = 10%).
	PercentageBps int `toml:"percentage_bps"`
	// MultiplierBps scales the source trade amount in multiplier mode,
	// in basis points (10000 = 1x).
	MultiplierBps int `toml:"multiplier_bps"`
	// MinTradeLamports rejects orders sized below this floor.
	MinTradeLamports uint64 `toml:"min_trade_lamports"`
	// MaxTradeLamports caps any single order; 0 disables the cap.
	MaxTradeLamports uint64 `toml:"max_trade_lamports"`
	// FeeReserveLamports is kept aside for transaction fees.
	FeeReserveLamports uint64 `toml:"fee_reserve_lamports"`
	// SnapshotMaxAge bounds how stale a balance snapshot may be when a
	// sizing decision is made.
	SnapshotMaxAge duration `toml:"snapshot_max_age"`
}

// ExecutionConfig holds swap execution parameters.
type ExecutionConfig struct {
	MaxSlippageBps      int      `toml:"max_slippage_bps"`
	PriorityFeeLamports uint64   `toml:"priority_fee_lamports"`
	MaxRetries          int      `toml:"max_retries"`
	ConfirmTimeout      duration `toml:"confirm_timeout"`
	ConfirmPollInterval duration `toml:"confirm_poll_interval"`
	ReconcileInterval   duration `toml:"reconcile_interval"`
}

// FeedConfig holds feed and detection parameters.
type FeedConfig struct {
	// QueueSize bounds the raw update queue between feed and detector.
	QueueSize int `toml:"queue_size"`
	// PollInterval is the getSignaturesForAddress cadence in fallback mode.
	PollInterval duration `toml:"poll_interval"`
	// FallbackAfterFailures switches to polling after this many consecutive
	// reconnect failures.
	FallbackAfterFailures int `toml:"fallback_after_failures"`
	// ReconnectBackoff is the initial delay before a WebSocket reconnect
	// attempt. Later attempts back off exponentially from this value.
	ReconnectBackoff duration `toml:"reconnect_backoff"`
	// Overflow selects the full-queue policy: "drop_oldest" or "block".
	Overflow string `toml:"overflow"`
	// DedupSize bounds the recently-seen signature set.
	DedupSize int `toml:"dedup_size"`
}

// StorageConfig holds persistence parameters.
type StorageConfig struct {
	// Driver selects the backing store: "memory" or "postgres".
	Driver        string `toml:"driver"`
	PostgresDSN   string `toml:"postgres_dsn"`
	RunMigrations bool   `toml:"run_migrations"`
	// ClickhouseDSN enables the analytics sink when non-empty.
	ClickhouseDSN string `toml:"clickhouse_dsn"`
}

// RedisConfig holds optional Redis parameters for cross-process dedup.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	Events         []string `toml:"events"`
}

// MetricsConfig holds the Prometheus listener address.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// ReportConfig holds session report output parameters.
type ReportConfig struct {
	OutputDir string `toml:"output_dir"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "250ms").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "250ms".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		RPC: RPCConfig{
			Network: "mainnet",
		},
		Jupiter: JupiterConfig{
			BaseURL: "https://quote-api.jup.ag/v6",
			Timeout: duration{10 * time.Second},
		},
		Sizing: SizingConfig{
			Mode:               "percentage",
			PercentageBps:      1000, // 10% of available balance
			MultiplierBps:      10000,
			MinTradeLamports:   10_000_000, // 0.01 SOL
			FeeReserveLamports: 50_000_000, // 0.05 SOL
			SnapshotMaxAge:     duration{5 * time.Second},
		},
		Execution: ExecutionConfig{
			MaxSlippageBps:      150,
			PriorityFeeLamports: 100_000,
			MaxRetries:          2,
			ConfirmTimeout:      duration{30 * time.Second},
			ConfirmPollInterval: duration{500 * time.Millisecond},
			ReconcileInterval:   duration{15 * time.Second},
		},
		Feed: FeedConfig{
			QueueSize:             1024,
			PollInterval:          duration{5 * time.Second},
			FallbackAfterFailures: 3,
			ReconnectBackoff:      duration{250 * time.Millisecond},
			Overflow:              "drop_oldest",
			DedupSize:             8192,
		},
		Storage: StorageConfig{
			Driver:        "memory",
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Notify: NotifyConfig{
			Events: []string{"order_rejected", "execution_result", "feed_status"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Report: ReportConfig{
			OutputDir: "reports",
		},
		LogLevel: "info",
	}
}

// validSizingModes enumerates the accepted values for Sizing.Mode.
var validSizingModes = map[string]bool{
	"fixed":      true,
	"percentage": true,
	"multiplier": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found. A config that fails
// validation must abort startup; a copy trader running with a half-read
// config spends real funds on wrong parameters.
func (c *Config) Validate() error {
	var errs []string

	if c.Source.Account == "" {
		errs = append(errs, "source: account must not be empty")
	}

	if _, ok := clusterEndpoints[c.RPC.Network]; !ok {
		errs = append(errs, fmt.Sprintf("rpc: network must be mainnet or testnet, got %q", c.RPC.Network))
	}

	if c.Wallet.PrivateKey == "" {
		errs = append(errs, "wallet: private_key must be set")
	}

	if c.Jupiter.BaseURL == "" {
		errs = append(errs, "jupiter: base_url must not be empty")
	}

	if !validSizingModes[c.Sizing.Mode] {
		errs = append(errs, fmt.Sprintf("sizing: mode must be fixed, percentage, or multiplier, got %q", c.Sizing.Mode))
	}
	switch c.Sizing.Mode {
	case "fixed":
		if c.Sizing.FixedLamports == 0 {
			errs = append(errs, "sizing: fixed_lamports must be positive in fixed mode")
		}
	case "percentage":
		if c.Sizing.PercentageBps <= 0 || c.Sizing.PercentageBps > 10000 {
			errs = append(errs, fmt.Sprintf("sizing: percentage_bps must be 1-10000, got %d", c.Sizing.PercentageBps))
		}
	case "multiplier":
		// The upper bound (100x) keeps basis-point scaling of a uint64
		// amount out of overflow territory.
		if c.Sizing.MultiplierBps <= 0 || c.Sizing.MultiplierBps > 1_000_000 {
			errs = append(errs, fmt.Sprintf("sizing: multiplier_bps must be 1-1000000, got %d", c.Sizing.MultiplierBps))
		}
	}
	if c.Sizing.SnapshotMaxAge.Duration <= 0 {
		errs = append(errs, "sizing: snapshot_max_age must be positive")
	}
	if c.Sizing.MaxTradeLamports > 0 && c.Sizing.MaxTradeLamports < c.Sizing.MinTradeLamports {
		errs = append(errs, "sizing: max_trade_lamports must not be below min_trade_lamports")
	}

	if c.Execution.MaxSlippageBps <= 0 || c.Execution.MaxSlippageBps > 10000 {
		errs = append(errs, fmt.Sprintf("execution: max_slippage_bps must be 1-10000, got %d", c.Execution.MaxSlippageBps))
	}
	if c.Execution.MaxRetries < 0 {
		errs = append(errs, "execution: max_retries must be >= 0")
	}
	if c.Execution.ConfirmTimeout.Duration <= 0 {
		errs = append(errs, "execution: confirm_timeout must be positive")
	}
	if c.Execution.ConfirmPollInterval.Duration <= 0 {
		errs = append(errs, "execution: confirm_poll_interval must be positive")
	}

	if c.Feed.QueueSize < 1 {
		errs = append(errs, "feed: queue_size must be >= 1")
	}
	if c.Feed.PollInterval.Duration <= 0 {
		errs = append(errs, "feed: poll_interval must be positive")
	}
	if c.Feed.FallbackAfterFailures < 1 {
		errs = append(errs, "feed: fallback_after_failures must be >= 1")
	}
	if c.Feed.ReconnectBackoff.Duration <= 0 {
		errs = append(errs, "feed: reconnect_backoff must be positive")
	}
	if c.Feed.Overflow != "drop_oldest" && c.Feed.Overflow != "block" {
		errs = append(errs, fmt.Sprintf("feed: overflow must be drop_oldest or block, got %q", c.Feed.Overflow))
	}
	if c.Feed.DedupSize < 1 {
		errs = append(errs, "feed: dedup_size must be >= 1")
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			errs = append(errs, "storage: postgres_dsn must be set for postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage: driver must be memory or postgres, got %q", c.Storage.Driver))
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	// Telegram fields must be set together, or both empty.
	tk := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tk != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics: addr must not be empty when enabled")
	}

	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("log_level must be debug, info, warn, or error, got %q", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
