package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalTOML = `
mode = "dry_run"

[traders]
wallets = ["7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"]
`

func TestLoadMergesOntoDefaults(t *testing.T) {
	path := writeConfig(t, minimalTOML)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "dry_run", cfg.Mode)
	require.Len(t, cfg.Traders.Wallets, 1)
	// Untouched sections keep their defaults.
	require.Equal(t, "wss://pumpportal.fun/api/data", cfg.PumpPortal.DataWSURL)
	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, 30*time.Second, cfg.Copy.MinTradeInterval.Duration)

	require.NoError(t, cfg.Validate())
}

func TestLoadParsesDurationsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
mode = "dry_run"

[copy]
min_trade_interval = "2m"

[traders]
wallets = ["wallet-a", "wallet-b"]

[traders.overrides.wallet-a]
amount_mode = "fixed"
amount_value = 0.5
min_trade_interval = "10s"

[pipeline]
save_interval = "90s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 2*time.Minute, cfg.Copy.MinTradeInterval.Duration)
	require.Equal(t, 90*time.Second, cfg.Pipeline.SaveInterval.Duration)

	o, ok := cfg.Traders.Overrides["wallet-a"]
	require.True(t, ok)
	require.NotNil(t, o.AmountMode)
	require.Equal(t, "fixed", *o.AmountMode)
	require.NotNil(t, o.AmountValue)
	require.Equal(t, 0.5, *o.AmountValue)
	require.NotNil(t, o.MinTradeInterval)
	require.Equal(t, 10*time.Second, o.MinTradeInterval.Duration)
	// wallet-b has no override entry at all.
	_, ok = cfg.Traders.Overrides["wallet-b"]
	require.False(t, ok)

	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, minimalTOML)

	t.Setenv("COPYBOT_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("COPYBOT_COPY_MAX_OPEN_TOKENS", "9")
	t.Setenv("COPYBOT_COPY_STRICT_MODE", "true")
	t.Setenv("COPYBOT_EXECUTOR_POLL_INTERVAL", "250ms")
	t.Setenv("COPYBOT_TRADERS_WALLETS", "w1, w2,w3")
	t.Setenv("COPYBOT_DATABASE_URL", "postgres://u:p@db:5432/copybot")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	require.Equal(t, 9, cfg.Copy.MaxOpenTokens)
	require.True(t, cfg.Copy.StrictMode)
	require.Equal(t, 250*time.Millisecond, cfg.Executor.PollInterval.Duration)
	require.Equal(t, []string{"w1", "w2", "w3"}, cfg.Traders.Wallets)
	require.Equal(t, "postgres://u:p@db:5432/copybot", cfg.Postgres.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidateDefaultsNeedTraders(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "traders")
}

func TestValidateErrors(t *testing.T) {
	valid := func() Config {
		cfg := Defaults()
		cfg.Traders.Wallets = []string{"wallet-a"}
		return cfg
	}
	require.NoError(t, func() error { c := valid(); return c.Validate() }())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "paper" }, "unknown mode"},
		{"unknown log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"live needs wallet", func(c *Config) { c.Mode = "live" }, "wallet"},
		{
			"encrypted key needs password",
			func(c *Config) {
				c.Mode = "live"
				c.Wallet.EncryptedKeyPath = "/tmp/key.json"
			},
			"key_password",
		},
		{"bad amount mode", func(c *Config) { c.Copy.AmountMode = "martingale" }, "amount_mode"},
		{
			"percentage needs value",
			func(c *Config) {
				c.Copy.AmountMode = "percentage"
				c.Copy.AmountValue = 0
			},
			"amount_value",
		},
		{"slippage range", func(c *Config) { c.PumpPortal.SlippagePercent = 150 }, "slippage_percent"},
		{
			"override without wallet entry",
			func(c *Config) {
				c.Traders.Overrides = map[string]TraderOverrideConfig{"stranger": {}}
			},
			"no matching entry",
		},
		{"max below min position size", func(c *Config) { c.Copy.MaxPositionSize = 0.0001 }, "max_position_size"},
		{"bad server port", func(c *Config) { c.Server.Port = 0 }, "server"},
		{"redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis"},
		{
			"archive needs s3 bucket",
			func(c *Config) {
				c.Pipeline.ArchiveEnabled = true
				c.S3.Bucket = ""
			},
			"bucket",
		},
		{"pool bounds", func(c *Config) { c.Postgres.PoolMinConns = 50 }, "pool_min_conns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantSub)
		})
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.SecretKey = "super-secret"
	cfg.Wallet.KeyPassword = "hunter2"
	cfg.Postgres.Password = "dbpass"
	cfg.Postgres.DSN = "postgres://u:p@db/copybot"
	cfg.Redis.Password = "redispass"
	cfg.S3.AccessKey = "AKIA123"
	cfg.S3.SecretKey = "s3secret"
	cfg.Server.APIKey = "api-key"
	cfg.Notify.TelegramToken = "bot-token"
	cfg.Notify.DiscordWebhookURL = "https://discord.com/api/webhooks/x"
	cfg.Traders.Wallets = []string{"wallet-a"}

	red := RedactedConfig(&cfg)

	require.Equal(t, "***", red.Wallet.SecretKey)
	require.Equal(t, "***", red.Wallet.KeyPassword)
	require.Equal(t, "***", red.Postgres.Password)
	require.Equal(t, "***", red.Postgres.DSN)
	require.Equal(t, "***", red.Redis.Password)
	require.Equal(t, "***", red.S3.AccessKey)
	require.Equal(t, "***", red.S3.SecretKey)
	require.Equal(t, "***", red.Server.APIKey)
	require.Equal(t, "***", red.Notify.TelegramToken)
	require.Equal(t, "***", red.Notify.DiscordWebhookURL)

	// Non-secret fields and the original config are untouched.
	require.Equal(t, []string{"wallet-a"}, red.Traders.Wallets)
	require.Equal(t, "super-secret", cfg.Wallet.SecretKey)

	// The wallet slice is a copy, not an alias.
	red.Traders.Wallets[0] = "mutated"
	require.Equal(t, "wallet-a", cfg.Traders.Wallets[0])
}
