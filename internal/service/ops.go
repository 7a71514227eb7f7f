package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alignkit/attribution-service/internal/align"
	"github.com/alignkit/attribution-service/internal/cache"
	"github.com/alignkit/attribution-service/internal/domain"
	"github.com/alignkit/attribution-service/internal/store"
)

// ErrRunInProgress is returned when a run of the same kind already holds
// the lock.
var ErrRunInProgress = errors.New("run already in progress")

// OpsConfig bounds the default run windows and lock lifetime.
type OpsConfig struct {
	AlignWindowHours int
	TruthWindowDays  int
	LockTTL          time.Duration
	ReportLimit      int
}

func (c OpsConfig) withDefaults() OpsConfig {
	if c.AlignWindowHours <= 0 {
		c.AlignWindowHours = 168
	}
	if c.TruthWindowDays <= 0 {
		c.TruthWindowDays = 7
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 5 * time.Minute
	}
	if c.ReportLimit <= 0 {
		c.ReportLimit = 20
	}
	return c
}

// OpsService triggers alignment and truth runs on demand and serves the
// truth report. The run lock keeps scheduled and manual runs of the same
// kind from overlapping.
type OpsService struct {
	runner     AlignmentRunner
	reconciler TruthRunner
	sink       store.TruthSink
	locker     cache.RunLocker
	cfg        OpsConfig
	log        *zap.Logger
	now        func() time.Time
}

// NewOpsService creates a new ops service
func NewOpsService(runner AlignmentRunner, reconciler TruthRunner, sink store.TruthSink, locker cache.RunLocker, cfg OpsConfig, log *zap.Logger) *OpsService {
	return &OpsService{
		runner:     runner,
		reconciler: reconciler,
		sink:       sink,
		locker:     locker,
		cfg:        cfg.withDefaults(),
		log:        log,
		now:        time.Now,
	}
}

// RunAlignment runs one alignment batch over the trailing window. A zero
// windowHours uses the configured default.
func (s *OpsService) RunAlignment(ctx context.Context, windowHours int) (*align.Report, error) {
	if windowHours <= 0 {
		windowHours = s.cfg.AlignWindowHours
	}

	unlock, err := s.acquire(ctx, "alignment")
	if err != nil {
		return nil, err
	}
	defer unlock()

	to := s.now()
	window := domain.TimeWindow{
		From: to.Add(-time.Duration(windowHours) * time.Hour),
		To:   to,
	}

	return s.runner.Run(ctx, window)
}

// RunTruth runs one truth reconciliation pass over the trailing window.
func (s *OpsService) RunTruth(ctx context.Context, windowDays int) ([]domain.TruthCheck, error) {
	if windowDays <= 0 {
		windowDays = s.cfg.TruthWindowDays
	}

	unlock, err := s.acquire(ctx, "truth")
	if err != nil {
		return nil, err
	}
	defer unlock()

	to := s.now()
	window := domain.TimeWindow{
		From: to.Add(-time.Duration(windowDays) * 24 * time.Hour),
		To:   to,
	}

	return s.reconciler.Run(ctx, window)
}

// GetTruthReport returns the latest persisted truth checks.
func (s *OpsService) GetTruthReport(ctx context.Context, limit int) ([]domain.TruthCheck, error) {
	if limit <= 0 {
		limit = s.cfg.ReportLimit
	}

	checks, err := s.sink.FetchLatestTruthChecks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch truth checks: %w", err)
	}
	return checks, nil
}

func (s *OpsService) acquire(ctx context.Context, kind string) (func(), error) {
	ok, err := s.locker.TryLock(ctx, kind, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s run lock: %w", kind, err)
	}
	if !ok {
		s.log.Info("Run rejected, already in progress", zap.String("kind", kind))
		return nil, ErrRunInProgress
	}

	return func() {
		if err := s.locker.Unlock(ctx, kind); err != nil {
			s.log.Warn("Failed to release run lock",
				zap.String("kind", kind),
				zap.Error(err))
		}
	}, nil
}
