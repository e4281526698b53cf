package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/copybot/internal/admission"
	"github.com/alanyoungcy/copybot/internal/balance"
	s3blob "github.com/alanyoungcy/copybot/internal/blob/s3"
	"github.com/alanyoungcy/copybot/internal/cache/redis"
	"github.com/alanyoungcy/copybot/internal/chain"
	"github.com/alanyoungcy/copybot/internal/config"
	"github.com/alanyoungcy/copybot/internal/crypto"
	"github.com/alanyoungcy/copybot/internal/domain"
	"github.com/alanyoungcy/copybot/internal/executor"
	"github.com/alanyoungcy/copybot/internal/feed"
	"github.com/alanyoungcy/copybot/internal/lifecycle"
	"github.com/alanyoungcy/copybot/internal/notify"
	"github.com/alanyoungcy/copybot/internal/platform/pumpportal"
	"github.com/alanyoungcy/copybot/internal/queue"
	"github.com/alanyoungcy/copybot/internal/retry"
	"github.com/alanyoungcy/copybot/internal/service"
	"github.com/alanyoungcy/copybot/internal/store/postgres"
)

// defaultPaperBalanceSOL seeds the dry-run wallet when no investment budget
// is configured.
const defaultPaperBalanceSOL = 10

// Dependencies bundles every component the running application needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Wallet is the bot's public key, or a placeholder in dry-run mode.
	Wallet string

	// Persistence
	Journal domain.TradeJournal

	// Queues
	Pending  *queue.PendingQueue
	Analysis *queue.AnalysisQueue
	Open     *queue.OpenQueue
	Closed   *queue.ClosedQueue

	// Caches
	Prices      domain.PriceCache
	RateLimiter domain.RateLimiter
	Locks       domain.LockManager

	// Chain access; nil in dry-run mode.
	RPC     *chain.RPCClient
	Watcher *chain.Watcher

	// Core pipeline
	Balances *balance.Manager
	Admit    *admission.Controller
	Closure  *lifecycle.ClosureEngine
	Router   *lifecycle.Router
	Analyzer *lifecycle.Analyzer
	Executor *executor.Executor
	Feed     *feed.TradeFeed
	Notifier *notify.Dispatcher
	Reports  *service.ReportService

	// Archiver and Blobs are non-nil when cold archiving is enabled.
	Archiver domain.Archiver
	Blobs    domain.BlobReader
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	dryRun := strings.ToLower(cfg.Mode) != "live"
	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Journal = postgres.NewJournalStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	countersCfg := redis.DefaultCountersConfig()
	if cfg.Copy.MinTradeInterval.Duration > 0 {
		countersCfg.Window = cfg.Copy.MinTradeInterval.Duration
	}
	counters := redis.NewCounters(redisClient, countersCfg)

	deps.Prices = redis.NewPriceCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)

	// --- Queues (restored from their snapshots) ---
	deps.Pending = queue.NewPendingQueue(cfg.Queues.PendingCapacity, postgres.NewPendingStore(pool), logger)
	deps.Analysis = queue.NewAnalysisQueue(cfg.Queues.AnalysisCapacity, postgres.NewAnalysisStore(pool), logger)
	deps.Open = queue.NewOpenQueue(cfg.Copy.MaxPositionsPerToken, postgres.NewOpenQueueStore(pool), logger)
	deps.Closed = queue.NewClosedQueue(postgres.NewClosedQueueStore(pool), logger)

	for name, q := range map[string]interface {
		LoadState(ctx context.Context) error
	}{
		"pending":  deps.Pending,
		"analysis": deps.Analysis,
		"open":     deps.Open,
		"closed":   deps.Closed,
	} {
		if err := q.LoadState(ctx); err != nil {
			logger.Warn("queue state not restored",
				slog.String("queue", name),
				slog.String("error", err.Error()))
		}
	}

	// --- Wallet and chain access ---
	var (
		placer    executor.TradePlacer
		watcher   executor.SignatureWatcher
		inspector lifecycle.TxInspector
		source    domain.BalanceSource
	)

	if dryRun {
		deps.Wallet = "dry-run"
		paperSOL := decimal.NewFromFloat(cfg.Copy.MaxAmountToInvest)
		if !paperSOL.IsPositive() {
			paperSOL = decimal.NewFromInt(defaultPaperBalanceSOL)
		}
		source = balance.NewStaticSource(paperSOL)
		placer = executor.NewDryRunPlacer(logger)
		inspector = executor.DryRunInspector{}
	} else {
		keypair, err := crypto.LoadKeypair(crypto.KeyConfig{
			RawSecretKey:     cfg.Wallet.SecretKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet: %w", err)
		}
		deps.Wallet = keypair.PublicKey()

		deps.RPC = chain.NewRPCClient(cfg.Solana.RPCURL, logger)
		deps.Watcher = chain.NewWatcher(cfg.Solana.WSURL, logger)
		closers = append(closers, func() { _ = deps.Watcher.Close() })

		source = deps.RPC
		inspector = deps.RPC
		watcher = deps.Watcher
		placer = pumpportal.NewTradeClient(pumpportal.TradeConfig{
			BaseURL:         cfg.PumpPortal.APIURL,
			SlippagePercent: decimal.NewFromFloat(cfg.PumpPortal.SlippagePercent),
			PriorityFeeSOL:  decimal.NewFromFloat(cfg.PumpPortal.PriorityFeeSOL),
			Pool:            cfg.PumpPortal.Pool,
		}, keypair, deps.RPC)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewDispatcher(senders, cfg.Notify.Events, logger)

	// --- Balance manager ---
	budget := balance.Budget{
		GlobalSOL:            decimal.NewFromFloat(cfg.Copy.MaxAmountToInvest),
		Distributed:          strings.EqualFold(cfg.Copy.AmountMode, "distributed"),
		MaxOpenTokens:        cfg.Copy.MaxOpenTokens,
		MaxPositionsPerToken: cfg.Copy.MaxPositionsPerToken,
	}
	deps.Balances = balance.NewManager(deps.Wallet, source, budget, logger)

	// --- Admission ---
	deps.Admit = admission.NewController(
		copySettings(cfg.Copy),
		traderOverrides(cfg.Traders),
		counters,
		deps.Open,
		deps.Balances,
		deps.Journal,
		logger,
	)

	// --- Lifecycle ---
	deps.Closure = lifecycle.NewClosureEngine(deps.Open, deps.Closed, deps.Notifier, logger)
	deps.Router = lifecycle.NewRouter(
		deps.Analysis, deps.Open, deps.Closed, deps.Closure,
		deps.Balances, deps.Notifier, logger,
	)

	analyzerCfg := lifecycle.AnalyzerConfig{
		PollInterval: cfg.Analyzer.PollInterval.Duration,
		MinAge:       cfg.Analyzer.MinAge.Duration,
		Concurrency:  cfg.Analyzer.Concurrency,
		Retry: retry.Policy{
			MaxAttempts: cfg.Analyzer.MaxAttempts,
			BaseDelay:   time.Second,
		},
	}
	deps.Analyzer = lifecycle.NewAnalyzer(analyzerCfg, deps.Analysis, inspector, deps.Router, deps.Wallet, logger)

	if dryRun {
		watcher = executor.NewDryRunWatcher(deps.Analyzer.OnSignatureEvent)
	} else {
		deps.Watcher.OnSignature(deps.Analyzer.OnSignatureEvent)
	}

	// --- Executor ---
	deps.Executor = executor.NewExecutor(deps.Pending, placer, deps.Router, watcher, deps.RateLimiter, logger)
	deps.Executor.SetSubmitLimit(cfg.Executor.SubmitRate, time.Second)
	if cfg.Executor.DedupTTL.Duration > 0 {
		deps.Executor.SetDedupTTL(cfg.Executor.DedupTTL.Duration)
	}
	if cfg.Executor.PollInterval.Duration > 0 {
		deps.Executor.SetPollInterval(cfg.Executor.PollInterval.Duration)
	}

	// --- Trade feed ---
	stream := pumpportal.NewWSClient(cfg.PumpPortal.DataWSURL)
	deps.Feed = feed.NewTradeFeed(stream, deps.Admit, deps.Pending, deps.Prices, cfg.Traders.Wallets, logger)

	// --- S3 cold archive ---
	if cfg.Pipeline.ArchiveEnabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.Closed,
			deps.Journal,
			cfg.Pipeline.ArchivePrefix,
		)
		deps.Blobs = s3blob.NewReader(s3Client)
	}

	// --- Reporting ---
	deps.Reports = service.NewReportService(deps.Open, deps.Closed, deps.Prices, logger)

	return deps, cleanup, nil
}

// copySettings converts the [copy] section into admission settings.
func copySettings(c config.CopyConfig) admission.Settings {
	return admission.Settings{
		AmountMode:           admission.AmountMode(strings.ToLower(c.AmountMode)),
		AmountValue:          decimal.NewFromFloat(c.AmountValue),
		MaxAmountToInvest:    decimal.NewFromFloat(c.MaxAmountToInvest),
		MaxOpenTokens:        c.MaxOpenTokens,
		MaxPositionsPerToken: c.MaxPositionsPerToken,
		MaxTradersPerToken:   c.MaxTradersPerToken,
		MinPositionSize:      decimal.NewFromFloat(c.MinPositionSize),
		MaxPositionSize:      decimal.NewFromFloat(c.MaxPositionSize),
		AdjustPositionSize:   c.AdjustPositionSize,
		MaxDailyVolumeSOL:    decimal.NewFromFloat(c.MaxDailyVolumeSOL),
		MinTradeInterval:     c.MinTradeInterval.Duration,
		StrictMode:           c.StrictMode,
	}
}

// traderOverrides builds the followed-trader map: every configured wallet
// gets an entry, with per-wallet overrides where the [traders.overrides]
// table provides them.
func traderOverrides(t config.TradersConfig) map[string]*admission.Override {
	out := make(map[string]*admission.Override, len(t.Wallets))
	for _, wallet := range t.Wallets {
		out[wallet] = nil
	}
	for wallet, o := range t.Overrides {
		if _, ok := out[wallet]; !ok {
			continue
		}
		ov := &admission.Override{
			MaxOpenTokens:        o.MaxOpenTokens,
			MaxPositionsPerToken: o.MaxPositionsPerToken,
			AdjustPositionSize:   o.AdjustPositionSize,
		}
		if o.AmountMode != nil {
			mode := admission.AmountMode(strings.ToLower(*o.AmountMode))
			ov.AmountMode = &mode
		}
		ov.AmountValue = decimalPtr(o.AmountValue)
		ov.MaxAmountToInvest = decimalPtr(o.MaxAmountToInvest)
		ov.MinPositionSize = decimalPtr(o.MinPositionSize)
		ov.MaxPositionSize = decimalPtr(o.MaxPositionSize)
		ov.MaxDailyVolumeSOL = decimalPtr(o.MaxDailyVolumeSOL)
		if o.MinTradeInterval != nil {
			d := o.MinTradeInterval.Duration
			ov.MinTradeInterval = &d
		}
		out[wallet] = ov
	}
	return out
}

func decimalPtr(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}
