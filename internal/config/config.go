// Package config defines the top-level configuration for the copy-trading
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by COPYBOT_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Solana     SolanaConfig     `toml:"solana"`
	PumpPortal PumpPortalConfig `toml:"pumpportal"`
	Copy       CopyConfig       `toml:"copy"`
	Traders    TradersConfig    `toml:"traders"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Queues     QueuesConfig     `toml:"queues"`
	Executor   ExecutorConfig   `toml:"executor"`
	Analyzer   AnalyzerConfig   `toml:"analyzer"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds the Solana wallet credentials used to sign copy trades.
type WalletConfig struct {
	SecretKey        string `toml:"secret_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// SolanaConfig holds Solana RPC endpoints.
type SolanaConfig struct {
	RPCURL string `toml:"rpc_url"`
	WSURL  string `toml:"ws_url"`
}

// PumpPortalConfig holds PumpPortal API endpoints and trade-building
// parameters.
type PumpPortalConfig struct {
	DataWSURL       string  `toml:"data_ws_url"`
	APIURL          string  `toml:"api_url"`
	SlippagePercent float64 `toml:"slippage_percent"`
	PriorityFeeSOL  float64 `toml:"priority_fee_sol"`
	Pool            string  `toml:"pool"`
}

// CopyConfig holds the global copy-trade sizing and exposure limits. Values
// here apply to every followed trader unless a per-trader override says
// otherwise.
type CopyConfig struct {
	// AmountMode selects the sizing rule: "exact", "percentage", "fixed",
	// or "distributed".
	AmountMode string `toml:"amount_mode"`
	// AmountValue is the percentage (for "percentage") or the flat SOL
	// amount (for "fixed").
	AmountValue float64 `toml:"amount_value"`

	MaxAmountToInvest    float64 `toml:"max_amount_to_invest"`
	MaxOpenTokens        int     `toml:"max_open_tokens"`
	MaxPositionsPerToken int     `toml:"max_positions_per_token"`
	MaxTradersPerToken   int     `toml:"max_traders_per_token"`

	MinPositionSize    float64 `toml:"min_position_size"`
	MaxPositionSize    float64 `toml:"max_position_size"`
	AdjustPositionSize bool    `toml:"adjust_position_size"`

	MaxDailyVolumeSOL float64  `toml:"max_daily_volume_sol"`
	MinTradeInterval  duration `toml:"min_trade_interval"`

	StrictMode bool `toml:"strict_mode"`
}

// TraderOverrideConfig carries one followed trader's setting overrides.
// Nil fields inherit the global [copy] value.
type TraderOverrideConfig struct {
	AmountMode           *string   `toml:"amount_mode"`
	AmountValue          *float64  `toml:"amount_value"`
	MaxAmountToInvest    *float64  `toml:"max_amount_to_invest"`
	MaxOpenTokens        *int      `toml:"max_open_tokens"`
	MaxPositionsPerToken *int      `toml:"max_positions_per_token"`
	MinPositionSize      *float64  `toml:"min_position_size"`
	MaxPositionSize      *float64  `toml:"max_position_size"`
	AdjustPositionSize   *bool     `toml:"adjust_position_size"`
	MaxDailyVolumeSOL    *float64  `toml:"max_daily_volume_sol"`
	MinTradeInterval     *duration `toml:"min_trade_interval"`
}

// TradersConfig lists the wallets to follow and any per-wallet overrides.
type TradersConfig struct {
	Wallets   []string                        `toml:"wallets"`
	Overrides map[string]TraderOverrideConfig `toml:"overrides"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// QueuesConfig bounds the in-memory position queues.
type QueuesConfig struct {
	PendingCapacity  int `toml:"pending_capacity"`
	AnalysisCapacity int `toml:"analysis_capacity"`
}

// ExecutorConfig tunes the trade executor.
type ExecutorConfig struct {
	PollInterval duration `toml:"poll_interval"`
	// SubmitRate caps transaction submissions per second.
	SubmitRate int      `toml:"submit_rate"`
	DedupTTL   duration `toml:"dedup_ttl"`
}

// AnalyzerConfig tunes the transaction confirmation worker.
type AnalyzerConfig struct {
	PollInterval duration `toml:"poll_interval"`
	MinAge       duration `toml:"min_age"`
	Concurrency  int      `toml:"concurrency"`
	MaxAttempts  int      `toml:"max_attempts"`
}

// PipelineConfig holds background maintenance parameters: snapshot
// persistence, stats logging, balance refresh, and cold archiving.
type PipelineConfig struct {
	SaveInterval           duration `toml:"save_interval"`
	StatsInterval          duration `toml:"stats_interval"`
	BalanceRefreshInterval duration `toml:"balance_refresh_interval"`

	ArchiveEnabled       bool   `toml:"archive_enabled"`
	ArchivePrefix        string `toml:"archive_prefix"`
	ArchiveCron          string `toml:"archive_cron"`
	ArchiveRetentionDays int    `toml:"archive_retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Solana: SolanaConfig{
			RPCURL: "https://api.mainnet-beta.solana.com",
			WSURL:  "wss://api.mainnet-beta.solana.com",
		},
		PumpPortal: PumpPortalConfig{
			DataWSURL:       "wss://pumpportal.fun/api/data",
			APIURL:          "https://pumpportal.fun/api",
			SlippagePercent: 10,
			PriorityFeeSOL:  0.0005,
			Pool:            "auto",
		},
		Copy: CopyConfig{
			AmountMode:           "percentage",
			AmountValue:          100,
			MaxAmountToInvest:    1.0,
			MaxOpenTokens:        5,
			MaxPositionsPerToken: 1,
			MaxTradersPerToken:   1,
			MinPositionSize:      0.001,
			AdjustPositionSize:   true,
			MinTradeInterval:     duration{30 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "copybot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "copybot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Queues: QueuesConfig{
			PendingCapacity:  256,
			AnalysisCapacity: 256,
		},
		Executor: ExecutorConfig{
			PollInterval: duration{500 * time.Millisecond},
			SubmitRate:   10,
			DedupTTL:     duration{10 * time.Minute},
		},
		Analyzer: AnalyzerConfig{
			PollInterval: duration{10 * time.Second},
			MinAge:       duration{15 * time.Second},
			Concurrency:  4,
			MaxAttempts:  3,
		},
		Pipeline: PipelineConfig{
			SaveInterval:           duration{5 * time.Minute},
			StatsInterval:          duration{time.Minute},
			BalanceRefreshInterval: duration{30 * time.Second},
			ArchiveEnabled:         false,
			ArchivePrefix:          "copybot",
			ArchiveCron:            "0 3 * * *",
			ArchiveRetentionDays:   90,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"position_opened", "position_closed", "close_failed"},
		},
		Mode:     "dry_run",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"live":    true,
	"dry_run": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validAmountModes enumerates the accepted values for CopyConfig.AmountMode.
var validAmountModes = map[string]bool{
	"exact":       true,
	"percentage":  true,
	"fixed":       true,
	"distributed": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: live, dry_run)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Live mode signs and submits real transactions, so it needs a key.
	if strings.ToLower(c.Mode) == "live" {
		if c.Wallet.SecretKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either secret_key or encrypted_key_path must be set for live mode")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Solana endpoints
	if c.Solana.RPCURL == "" {
		errs = append(errs, "solana: rpc_url must not be empty")
	}
	if c.Solana.WSURL == "" {
		errs = append(errs, "solana: ws_url must not be empty")
	}

	// PumpPortal
	if c.PumpPortal.DataWSURL == "" {
		errs = append(errs, "pumpportal: data_ws_url must not be empty")
	}
	if c.PumpPortal.APIURL == "" {
		errs = append(errs, "pumpportal: api_url must not be empty")
	}
	if c.PumpPortal.SlippagePercent < 0 || c.PumpPortal.SlippagePercent > 100 {
		errs = append(errs, fmt.Sprintf("pumpportal: slippage_percent must be 0-100, got %g", c.PumpPortal.SlippagePercent))
	}
	if c.PumpPortal.PriorityFeeSOL < 0 {
		errs = append(errs, "pumpportal: priority_fee_sol must not be negative")
	}

	// Copy settings
	mode := strings.ToLower(c.Copy.AmountMode)
	if !validAmountModes[mode] {
		errs = append(errs, fmt.Sprintf("copy: unknown amount_mode %q (valid: exact, percentage, fixed, distributed)", c.Copy.AmountMode))
	}
	if (mode == "percentage" || mode == "fixed") && c.Copy.AmountValue <= 0 {
		errs = append(errs, fmt.Sprintf("copy: amount_value must be > 0 for amount_mode %q", mode))
	}
	if mode == "distributed" && c.Copy.MaxAmountToInvest <= 0 {
		errs = append(errs, "copy: max_amount_to_invest must be > 0 for amount_mode \"distributed\"")
	}
	if c.Copy.MaxOpenTokens < 1 {
		errs = append(errs, "copy: max_open_tokens must be >= 1")
	}
	if c.Copy.MaxPositionsPerToken < 1 {
		errs = append(errs, "copy: max_positions_per_token must be >= 1")
	}
	if c.Copy.MinPositionSize < 0 {
		errs = append(errs, "copy: min_position_size must not be negative")
	}
	if c.Copy.MaxPositionSize > 0 && c.Copy.MaxPositionSize < c.Copy.MinPositionSize {
		errs = append(errs, "copy: max_position_size must not be below min_position_size")
	}

	// Traders
	if len(c.Traders.Wallets) == 0 {
		errs = append(errs, "traders: at least one wallet must be configured")
	}
	for wallet := range c.Traders.Overrides {
		if !containsStr(c.Traders.Wallets, wallet) {
			errs = append(errs, fmt.Sprintf("traders: override for %q has no matching entry in wallets", wallet))
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 settings only matter when archiving is on.
	if c.Pipeline.ArchiveEnabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when pipeline.archive_enabled is set")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when pipeline.archive_enabled is set")
		}
		if c.Pipeline.ArchiveRetentionDays < 1 {
			errs = append(errs, "pipeline: archive_retention_days must be >= 1")
		}
	}

	// Queues
	if c.Queues.PendingCapacity < 1 {
		errs = append(errs, "queues: pending_capacity must be >= 1")
	}
	if c.Queues.AnalysisCapacity < 1 {
		errs = append(errs, "queues: analysis_capacity must be >= 1")
	}

	// Executor
	if c.Executor.SubmitRate < 1 {
		errs = append(errs, "executor: submit_rate must be >= 1")
	}

	// Analyzer
	if c.Analyzer.Concurrency < 1 {
		errs = append(errs, "analyzer: concurrency must be >= 1")
	}
	if c.Analyzer.MaxAttempts < 1 {
		errs = append(errs, "analyzer: max_attempts must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
