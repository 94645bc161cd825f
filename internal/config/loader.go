package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies COPYTRADER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known COPYTRADER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Source.Account, "COPYTRADER_SOURCE_ACCOUNT")

	setStr(&cfg.RPC.Network, "COPYTRADER_RPC_NETWORK")
	setStr(&cfg.RPC.HTTPEndpoint, "COPYTRADER_RPC_HTTP_ENDPOINT")
	setStr(&cfg.RPC.WSEndpoint, "COPYTRADER_RPC_WS_ENDPOINT")

	setStr(&cfg.Wallet.PrivateKey, "COPYTRADER_WALLET_PRIVATE_KEY")

	setStr(&cfg.Jupiter.BaseURL, "COPYTRADER_JUPITER_BASE_URL")
	setDuration(&cfg.Jupiter.Timeout, "COPYTRADER_JUPITER_TIMEOUT")

	setStr(&cfg.Sizing.Mode, "COPYTRADER_SIZING_MODE")
	setUint64(&cfg.Sizing.FixedLamports, "COPYTRADER_SIZING_FIXED_LAMPORTS")
	setInt(&cfg.Sizing.PercentageBps, "COPYTRADER_SIZING_PERCENTAGE_BPS")
	setInt(&cfg.Sizing.MultiplierBps, "COPYTRADER_SIZING_MULTIPLIER_BPS")
	setUint64(&cfg.Sizing.MinTradeLamports, "COPYTRADER_SIZING_MIN_TRADE_LAMPORTS")
	setUint64(&cfg.Sizing.MaxTradeLamports, "COPYTRADER_SIZING_MAX_TRADE_LAMPORTS")
	setUint64(&cfg.Sizing.FeeReserveLamports, "COPYTRADER_SIZING_FEE_RESERVE_LAMPORTS")
	setDuration(&cfg.Sizing.SnapshotMaxAge, "COPYTRADER_SIZING_SNAPSHOT_MAX_AGE")

	setInt(&cfg.Execution.MaxSlippageBps, "COPYTRADER_EXECUTION_MAX_SLIPPAGE_BPS")
	setUint64(&cfg.Execution.PriorityFeeLamports, "COPYTRADER_EXECUTION_PRIORITY_FEE_LAMPORTS")
	setInt(&cfg.Execution.MaxRetries, "COPYTRADER_EXECUTION_MAX_RETRIES")
	setDuration(&cfg.Execution.ConfirmTimeout, "COPYTRADER_EXECUTION_CONFIRM_TIMEOUT")
	setDuration(&cfg.Execution.ConfirmPollInterval, "COPYTRADER_EXECUTION_CONFIRM_POLL_INTERVAL")
	setDuration(&cfg.Execution.ReconcileInterval, "COPYTRADER_EXECUTION_RECONCILE_INTERVAL")

	setInt(&cfg.Feed.QueueSize, "COPYTRADER_FEED_QUEUE_SIZE")
	setDuration(&cfg.Feed.PollInterval, "COPYTRADER_FEED_POLL_INTERVAL")
	setInt(&cfg.Feed.FallbackAfterFailures, "COPYTRADER_FEED_FALLBACK_AFTER_FAILURES")
	setDuration(&cfg.Feed.ReconnectBackoff, "COPYTRADER_FEED_RECONNECT_BACKOFF")
	setStr(&cfg.Feed.Overflow, "COPYTRADER_FEED_OVERFLOW")
	setInt(&cfg.Feed.DedupSize, "COPYTRADER_FEED_DEDUP_SIZE")

	setStr(&cfg.Storage.Driver, "COPYTRADER_STORAGE_DRIVER")
	setStr(&cfg.Storage.PostgresDSN, "COPYTRADER_STORAGE_POSTGRES_DSN")
	setBool(&cfg.Storage.RunMigrations, "COPYTRADER_STORAGE_RUN_MIGRATIONS")
	setStr(&cfg.Storage.ClickhouseDSN, "COPYTRADER_STORAGE_CLICKHOUSE_DSN")

	setBool(&cfg.Redis.Enabled, "COPYTRADER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "COPYTRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "COPYTRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "COPYTRADER_REDIS_DB")

	setStr(&cfg.Notify.TelegramToken, "COPYTRADER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "COPYTRADER_NOTIFY_TELEGRAM_CHAT_ID")
	setStringSlice(&cfg.Notify.Events, "COPYTRADER_NOTIFY_EVENTS")

	setBool(&cfg.Metrics.Enabled, "COPYTRADER_METRICS_ENABLED")
	setStr(&cfg.Metrics.Addr, "COPYTRADER_METRICS_ADDR")

	setStr(&cfg.Report.OutputDir, "COPYTRADER_REPORT_OUTPUT_DIR")

	setStr(&cfg.LogLevel, "COPYTRADER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
