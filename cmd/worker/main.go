package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alignkit/attribution-service/internal/align"
	"github.com/alignkit/attribution-service/internal/cache"
	"github.com/alignkit/attribution-service/internal/config"
	"github.com/alignkit/attribution-service/internal/consumer"
	"github.com/alignkit/attribution-service/internal/domain"
	"github.com/alignkit/attribution-service/internal/logger"
	"github.com/alignkit/attribution-service/internal/metrics"
	"github.com/alignkit/attribution-service/internal/queue/sqs"
	"github.com/alignkit/attribution-service/internal/store"
	"github.com/alignkit/attribution-service/internal/store/clickhouse"
	"github.com/alignkit/attribution-service/internal/store/postgres"
	"github.com/alignkit/attribution-service/internal/truth"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		err := log.Sync()
		if err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting worker service",
		zap.String("environment", cfg.Service.Environment))

	ctx := context.Background()

	// Initialize ClickHouse client and event store
	chClient, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
	if err != nil {
		log.Fatal("Failed to create ClickHouse client", zap.Error(err))
	}
	defer func() {
		if err := chClient.Close(); err != nil {
			log.Error("Failed to close ClickHouse client", zap.Error(err))
		}
	}()

	eventStore := clickhouse.NewStore(chClient, log)

	// Initialize schema (create tables if not exist)
	if err := eventStore.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}
	log.Info("Database schema initialized")

	// Initialize the CRM store; the worker runs without it if the CRM
	// database is down.
	var crmStore *postgres.Store
	crmStore, err = postgres.NewStore(ctx, &cfg.Postgres, log)
	if err != nil {
		log.Warn("CRM store unavailable, alignment will run without CRM fields", zap.Error(err))
		crmStore = nil
	} else {
		defer func() {
			if err := crmStore.Close(); err != nil {
				log.Error("Failed to close CRM store", zap.Error(err))
			}
		}()
	}

	// Initialize SQS client
	sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}

	// Initialize the run locker shared with the API
	var locker cache.RunLocker
	if cfg.Valkey.Host != "" {
		valkeyLocker, err := cache.NewValkeyLocker(ctx, cfg.Valkey)
		if err != nil {
			log.Warn("Valkey unavailable, falling back to in-process run locks", zap.Error(err))
			locker = cache.NewMemoryLocker()
		} else {
			defer func() {
				if err := valkeyLocker.Close(); err != nil {
					log.Error("Failed to close Valkey locker", zap.Error(err))
				}
			}()
			locker = valkeyLocker
		}
	} else {
		locker = cache.NewMemoryLocker()
	}

	met := metrics.New()

	// Initialize consumer
	c := consumer.NewConsumer(cfg, sqsClient, eventStore, log)

	// Initialize the alignment runner and truth reconciler
	var crm store.CrmStore
	var crmMetrics store.CrmMetricStore
	if crmStore != nil {
		crm = crmStore
		crmMetrics = crmStore
	}
	runner := align.NewRunner(eventStore, crm, buildAlignConfig(cfg), met, eventStore, log)
	reconciler := truth.NewReconciler(truth.DefaultChecks(eventStore, crmMetrics), eventStore, eventStore, met, log)

	// Start health check and metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := eventStore.Ping(r.Context()); err != nil {
				log.Warn("Health check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		mux.Handle("/metrics", promhttp.Handler())

		addr := ":" + cfg.Service.HealthCheckPort
		log.Info("Health check server starting", zap.String("address", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("Health check server error", zap.Error(err))
		}
	}()

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start consumer
	log.Info("Consumer starting")
	go func() {
		if err := c.Start(workerCtx); err != nil {
			log.Fatal("Consumer error", zap.Error(err))
		}
	}()

	// Start the scheduled alignment and truth loops
	lockTTL := time.Duration(cfg.Valkey.RunLockTTL) * time.Second
	go alignmentLoop(workerCtx, runner, locker, cfg, lockTTL, log)
	go truthLoop(workerCtx, reconciler, locker, cfg, lockTTL, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker gracefully")
	cancel()
}

// alignmentLoop runs alignment batches on the configured interval. The
// run lock keeps scheduled runs from overlapping manual ones triggered
// through the API.
func alignmentLoop(ctx context.Context, runner *align.Runner, locker cache.RunLocker, cfg *config.Config, lockTTL time.Duration, log *zap.Logger) {
	interval := time.Duration(cfg.Align.IntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Alignment loop shutting down")
			return
		case <-ticker.C:
			runAligned(ctx, runner, locker, cfg, lockTTL, log)
		}
	}
}

func runAligned(ctx context.Context, runner *align.Runner, locker cache.RunLocker, cfg *config.Config, lockTTL time.Duration, log *zap.Logger) {
	ok, err := locker.TryLock(ctx, "alignment", lockTTL)
	if err != nil {
		log.Warn("Failed to acquire alignment run lock", zap.Error(err))
		return
	}
	if !ok {
		log.Info("Skipping scheduled alignment run, another run holds the lock")
		return
	}
	defer func() {
		if err := locker.Unlock(ctx, "alignment"); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("Failed to release alignment run lock", zap.Error(err))
		}
	}()

	to := time.Now()
	window := domain.TimeWindow{
		From: to.Add(-time.Duration(cfg.Align.BatchWindowHours) * time.Hour),
		To:   to,
	}

	if _, err := runner.Run(ctx, window); err != nil {
		log.Error("Scheduled alignment run failed", zap.Error(err))
	}
}

// truthLoop runs truth reconciliation on the configured interval.
func truthLoop(ctx context.Context, reconciler *truth.Reconciler, locker cache.RunLocker, cfg *config.Config, lockTTL time.Duration, log *zap.Logger) {
	interval := time.Duration(cfg.Truth.IntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Truth loop shutting down")
			return
		case <-ticker.C:
			runTruth(ctx, reconciler, locker, cfg, lockTTL, log)
		}
	}
}

func runTruth(ctx context.Context, reconciler *truth.Reconciler, locker cache.RunLocker, cfg *config.Config, lockTTL time.Duration, log *zap.Logger) {
	ok, err := locker.TryLock(ctx, "truth", lockTTL)
	if err != nil {
		log.Warn("Failed to acquire truth run lock", zap.Error(err))
		return
	}
	if !ok {
		log.Info("Skipping scheduled truth run, another run holds the lock")
		return
	}
	defer func() {
		if err := locker.Unlock(ctx, "truth"); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("Failed to release truth run lock", zap.Error(err))
		}
	}()

	to := time.Now()
	window := domain.TimeWindow{
		From: to.Add(-time.Duration(cfg.Truth.WindowDays) * 24 * time.Hour),
		To:   to,
	}

	if _, err := reconciler.Run(ctx, window); err != nil {
		log.Error("Scheduled truth run failed", zap.Error(err))
	}
}

func buildAlignConfig(cfg *config.Config) align.Config {
	return align.Config{
		CountryCode:           cfg.Align.CountryCode,
		QualifyingTouchEvents: config.SplitList(cfg.Align.QualifyingTouchEvents),
		RequiredEvents:        config.SplitList(cfg.Align.RequiredEvents),
		TimeWindow:            time.Duration(cfg.Align.TimeWindowMinutes) * time.Minute,
		LookupTimeout:         time.Duration(cfg.Align.LookupTimeoutSec) * time.Second,
		Workers:               cfg.Align.Workers,
		RunDeadline:           time.Duration(cfg.Align.RunDeadlineSec) * time.Second,
	}
}
