package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/alignkit/attribution-service/internal/align"
	"github.com/alignkit/attribution-service/internal/cache"
	"github.com/alignkit/attribution-service/internal/config"
	"github.com/alignkit/attribution-service/internal/handler"
	"github.com/alignkit/attribution-service/internal/logger"
	"github.com/alignkit/attribution-service/internal/metrics"
	"github.com/alignkit/attribution-service/internal/queue/sqs"
	"github.com/alignkit/attribution-service/internal/service"
	"github.com/alignkit/attribution-service/internal/store"
	"github.com/alignkit/attribution-service/internal/store/clickhouse"
	"github.com/alignkit/attribution-service/internal/store/postgres"
	"github.com/alignkit/attribution-service/internal/truth"
)

func main() {
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

	log.Info("Starting API service",
		zap.String("environment", cfg.Service.Environment),
		zap.String("port", cfg.Service.APIPort))

	ctx := context.Background()

	// Initialize SQS client
	sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}

	// Initialize ClickHouse client and event store
	clickhouseClient, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
	if err != nil {
		log.Fatal("Failed to create ClickHouse client", zap.Error(err))
	}
	defer func(clickhouseClient *clickhouse.Client) {
		if err := clickhouseClient.Close(); err != nil {
			log.Error("Failed to close ClickHouse client", zap.Error(err))
		}
	}(clickhouseClient)

	eventStore := clickhouse.NewStore(clickhouseClient, log)

	// Initialize the CRM store. Alignment degrades without it, so a
	// connect failure is not fatal here.
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

	// Initialize the run locker
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

	// Initialize the alignment runner and truth reconciler
	runner := align.NewRunner(eventStore, crmStoreOrNil(crmStore), buildAlignConfig(cfg), met, eventStore, log)

	var crmMetrics store.CrmMetricStore
	if crmStore != nil {
		crmMetrics = crmStore
	}
	reconciler := truth.NewReconciler(truth.DefaultChecks(eventStore, crmMetrics), eventStore, eventStore, met, log)

	// Initialize services
	ingestService := service.NewIngestService(sqsClient, log)
	opsService := service.NewOpsService(runner, reconciler, eventStore, locker, service.OpsConfig{
		AlignWindowHours: cfg.Align.BatchWindowHours,
		TruthWindowDays:  cfg.Truth.WindowDays,
		LockTTL:          time.Duration(cfg.Valkey.RunLockTTL) * time.Second,
	}, log)

	// Initialize handler
	h := handler.NewHandler(ingestService, opsService, log)

	addr := fmt.Sprintf(":%s", cfg.Service.APIPort)
	log.Info("API server starting", zap.String("address", addr))

	if err := http.ListenAndServe(addr, h); err != nil {
		log.Fatal("Failed to start API server", zap.Error(err))
	}
}

// crmStoreOrNil avoids handing a typed-nil *postgres.Store to an
// interface field.
func crmStoreOrNil(s *postgres.Store) store.CrmStore {
	if s == nil {
		return nil
	}
	return s
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
