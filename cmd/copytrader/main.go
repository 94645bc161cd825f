// Package main runs the copy trader: it follows one source account and
// mirrors its swaps with the configured wallet.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-copy-trader/internal/cache/redis"
	"solana-copy-trader/internal/config"
	"solana-copy-trader/internal/detector"
	"solana-copy-trader/internal/executor"
	"solana-copy-trader/internal/feed"
	"solana-copy-trader/internal/jupiter"
	"solana-copy-trader/internal/notify"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/pipeline"
	"solana-copy-trader/internal/reporting"
	"solana-copy-trader/internal/sizing"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage"
	chstore "solana-copy-trader/internal/storage/clickhouse"
	"solana-copy-trader/internal/storage/memory"
	"solana-copy-trader/internal/storage/migrations"
	pgstore "solana-copy-trader/internal/storage/postgres"
	"solana-copy-trader/internal/wallet"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := log.New(os.Stderr, "copytrader ", log.LstdFlags|log.Lmsgprefix)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	signer, err := wallet.NewSigner(cfg.Wallet.PrivateKey)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	logger.Printf("wallet %s, copying %s", signer.Address(), cfg.Source.Account)

	rpc := solana.NewHTTPClient(cfg.RPC.HTTPURL())

	// Fail fast on an unreachable or misconfigured HTTP endpoint before
	// subscribing to anything.
	if _, err := rpc.GetLatestBlockhash(ctx); err != nil {
		return fmt.Errorf("rpc health check %s: %w", cfg.RPC.HTTPURL(), err)
	}

	wsCfg := solana.DefaultWSConfig()
	wsCfg.ReconnectDelay = cfg.Feed.ReconnectBackoff.Duration
	ws, err := solana.NewWSClient(ctx, cfg.RPC.WSURL(), &wsCfg)
	if err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}
	defer ws.Close()

	st, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var sigCache pipeline.SignatureCache
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rc.Close()
		sigCache = redis.NewSignatureCache(rc, 0)
		// Redis checkpoints survive restarts even with the memory driver.
		if cfg.Storage.Driver == "memory" {
			st.checkpoints = redis.NewCheckpointStore(rc)
		}
	}

	var sink pipeline.MetricsSink
	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		defer conn.Close()
		if cfg.Storage.RunMigrations {
			if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
				return fmt.Errorf("clickhouse migrations: %w", err)
			}
		}
		sink = chstore.NewExecutionMetricsStore(conn)
	}

	feedClient := feed.New(ws, rpc, st.checkpoints, feed.Options{
		SourceAccount:         cfg.Source.Account,
		QueueSize:             cfg.Feed.QueueSize,
		PollInterval:          cfg.Feed.PollInterval.Duration,
		FallbackAfterFailures: cfg.Feed.FallbackAfterFailures,
		Overflow:              feed.Overflow(cfg.Feed.Overflow),
		Logger:                logger,
	})

	det := detector.New(st.intents, detector.Options{
		SourceAccount: cfg.Source.Account,
		DedupSize:     cfg.Feed.DedupSize,
		Logger:        logger,
	})

	balances := sizing.NewBalanceTracker(rpc, signer.Address(), cfg.Sizing.SnapshotMaxAge.Duration)
	engine := sizing.NewEngine(
		sizing.PolicyFromConfig(cfg.Sizing, cfg.Execution),
		balances, st.orders, logger,
	)

	swaps := jupiter.NewClient(cfg.Jupiter.BaseURL,
		jupiter.WithTimeout(cfg.Jupiter.Timeout.Duration),
		jupiter.WithLogger(logger),
	)

	exec := executor.New(rpc, swaps, signer, st.orders, st.results, balances, executor.Options{
		MaxRetries:          cfg.Execution.MaxRetries,
		ConfirmTimeout:      cfg.Execution.ConfirmTimeout.Duration,
		ConfirmPollInterval: cfg.Execution.ConfirmPollInterval.Duration,
		Logger:              logger,
	})

	rec := executor.NewReconciler(rpc, st.orders, st.results, executor.ReconcilerOptions{
		Interval: cfg.Execution.ReconcileInterval.Duration,
		Logger:   logger,
	})

	notifier := notify.New(buildSenders(cfg, logger), notify.Options{
		Events: cfg.Notify.Events,
		Logger: logger,
	})

	if cfg.Metrics.Enabled {
		startMetricsServer(cfg.Metrics.Addr, logger)
	}

	p := pipeline.New(feedClient, det, engine, exec, rec, notifier, pipeline.Options{
		Signatures: sigCache,
		Sink:       sink,
		Logger:     logger,
	})

	startedAt := time.Now().UTC()
	logger.Printf("pipeline starting")
	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	writeSessionReport(cfg, st, startedAt, logger)
	return nil
}

// stores bundles the persistence layer behind the storage interfaces.
type stores struct {
	intents     storage.IntentStore
	orders      storage.OrderStore
	results     storage.ResultStore
	checkpoints storage.CheckpointStore
}

func buildStores(ctx context.Context, cfg *config.Config) (*stores, func(), error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Storage.RunMigrations {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		return &stores{
			intents:     pgstore.NewIntentStore(pool),
			orders:      pgstore.NewOrderStore(pool),
			results:     pgstore.NewResultStore(pool),
			checkpoints: pgstore.NewCheckpointStore(pool),
		}, pool.Close, nil

	default: // memory, for dry runs and development
		return &stores{
			intents:     memory.NewIntentStore(),
			orders:      memory.NewOrderStore(),
			results:     memory.NewResultStore(),
			checkpoints: memory.NewCheckpointStore(),
		}, func() {}, nil
	}
}

func buildSenders(cfg *config.Config, logger *log.Logger) []notify.Sender {
	senders := []notify.Sender{notify.NewLogSender(logger)}
	if cfg.Notify.TelegramToken != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	return senders
}

func startMetricsServer(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	go func() {
		logger.Printf("metrics listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Printf("metrics server: %v", err)
		}
	}()
}

// writeSessionReport renders the session that just ended. Failures only cost
// the report; the trades are already persisted.
func writeSessionReport(cfg *config.Config, s *stores, startedAt time.Time, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gen := reporting.NewGenerator(s.intents, s.orders, s.results, cfg.Source.Account)
	report, err := gen.Generate(ctx, startedAt, time.Now().UTC())
	if err != nil {
		logger.Printf("session report: %v", err)
		return
	}
	if err := reporting.WriteFiles(report, cfg.Report.OutputDir); err != nil {
		logger.Printf("session report: %v", err)
		return
	}
	logger.Printf("session report written to %s", cfg.Report.OutputDir)
}
