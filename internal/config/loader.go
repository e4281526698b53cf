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
// built-in defaults, applies COPYBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known COPYBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.SecretKey, "COPYBOT_WALLET_SECRET_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "COPYBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "COPYBOT_WALLET_KEY_PASSWORD")

	// ── Solana ──
	setStr(&cfg.Solana.RPCURL, "COPYBOT_SOLANA_RPC_URL")
	setStr(&cfg.Solana.WSURL, "COPYBOT_SOLANA_WS_URL")

	// ── PumpPortal ──
	setStr(&cfg.PumpPortal.DataWSURL, "COPYBOT_PUMPPORTAL_DATA_WS_URL")
	setStr(&cfg.PumpPortal.APIURL, "COPYBOT_PUMPPORTAL_API_URL")
	setFloat64(&cfg.PumpPortal.SlippagePercent, "COPYBOT_PUMPPORTAL_SLIPPAGE_PERCENT")
	setFloat64(&cfg.PumpPortal.PriorityFeeSOL, "COPYBOT_PUMPPORTAL_PRIORITY_FEE_SOL")
	setStr(&cfg.PumpPortal.Pool, "COPYBOT_PUMPPORTAL_POOL")

	// ── Copy ──
	setStr(&cfg.Copy.AmountMode, "COPYBOT_COPY_AMOUNT_MODE")
	setFloat64(&cfg.Copy.AmountValue, "COPYBOT_COPY_AMOUNT_VALUE")
	setFloat64(&cfg.Copy.MaxAmountToInvest, "COPYBOT_COPY_MAX_AMOUNT_TO_INVEST")
	setInt(&cfg.Copy.MaxOpenTokens, "COPYBOT_COPY_MAX_OPEN_TOKENS")
	setInt(&cfg.Copy.MaxPositionsPerToken, "COPYBOT_COPY_MAX_POSITIONS_PER_TOKEN")
	setInt(&cfg.Copy.MaxTradersPerToken, "COPYBOT_COPY_MAX_TRADERS_PER_TOKEN")
	setFloat64(&cfg.Copy.MinPositionSize, "COPYBOT_COPY_MIN_POSITION_SIZE")
	setFloat64(&cfg.Copy.MaxPositionSize, "COPYBOT_COPY_MAX_POSITION_SIZE")
	setBool(&cfg.Copy.AdjustPositionSize, "COPYBOT_COPY_ADJUST_POSITION_SIZE")
	setFloat64(&cfg.Copy.MaxDailyVolumeSOL, "COPYBOT_COPY_MAX_DAILY_VOLUME_SOL")
	setDuration(&cfg.Copy.MinTradeInterval, "COPYBOT_COPY_MIN_TRADE_INTERVAL")
	setBool(&cfg.Copy.StrictMode, "COPYBOT_COPY_STRICT_MODE")

	// ── Traders ──
	setStringSlice(&cfg.Traders.Wallets, "COPYBOT_TRADERS_WALLETS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "COPYBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "COPYBOT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "COPYBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "COPYBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "COPYBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "COPYBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "COPYBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "COPYBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "COPYBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "COPYBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "COPYBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "COPYBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "COPYBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "COPYBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "COPYBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "COPYBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "COPYBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "COPYBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "COPYBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "COPYBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "COPYBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "COPYBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "COPYBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "COPYBOT_S3_FORCE_PATH_STYLE")

	// ── Queues ──
	setInt(&cfg.Queues.PendingCapacity, "COPYBOT_QUEUES_PENDING_CAPACITY")
	setInt(&cfg.Queues.AnalysisCapacity, "COPYBOT_QUEUES_ANALYSIS_CAPACITY")

	// ── Executor ──
	setDuration(&cfg.Executor.PollInterval, "COPYBOT_EXECUTOR_POLL_INTERVAL")
	setInt(&cfg.Executor.SubmitRate, "COPYBOT_EXECUTOR_SUBMIT_RATE")
	setDuration(&cfg.Executor.DedupTTL, "COPYBOT_EXECUTOR_DEDUP_TTL")

	// ── Analyzer ──
	setDuration(&cfg.Analyzer.PollInterval, "COPYBOT_ANALYZER_POLL_INTERVAL")
	setDuration(&cfg.Analyzer.MinAge, "COPYBOT_ANALYZER_MIN_AGE")
	setInt(&cfg.Analyzer.Concurrency, "COPYBOT_ANALYZER_CONCURRENCY")
	setInt(&cfg.Analyzer.MaxAttempts, "COPYBOT_ANALYZER_MAX_ATTEMPTS")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.SaveInterval, "COPYBOT_PIPELINE_SAVE_INTERVAL")
	setDuration(&cfg.Pipeline.StatsInterval, "COPYBOT_PIPELINE_STATS_INTERVAL")
	setDuration(&cfg.Pipeline.BalanceRefreshInterval, "COPYBOT_PIPELINE_BALANCE_REFRESH_INTERVAL")
	setBool(&cfg.Pipeline.ArchiveEnabled, "COPYBOT_PIPELINE_ARCHIVE_ENABLED")
	setStr(&cfg.Pipeline.ArchivePrefix, "COPYBOT_PIPELINE_ARCHIVE_PREFIX")
	setStr(&cfg.Pipeline.ArchiveCron, "COPYBOT_PIPELINE_ARCHIVE_CRON")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "COPYBOT_PIPELINE_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "COPYBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "COPYBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "COPYBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "COPYBOT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "COPYBOT_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "COPYBOT_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "COPYBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "COPYBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "COPYBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "COPYBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "COPYBOT_MODE")
	setStr(&cfg.LogLevel, "COPYBOT_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
