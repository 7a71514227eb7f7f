package service

import (
	"context"

	"github.com/alignkit/attribution-service/internal/align"
	"github.com/alignkit/attribution-service/internal/domain"
	"github.com/alignkit/attribution-service/internal/dto"
)

// IngestServicer defines the interface for raw event ingestion operations
type IngestServicer interface {
	ProcessEvent(event *dto.IngestEventRequest) (string, error)
	ProcessBulkEvents(events []dto.IngestEventRequest) ([]string, []string, error)
}

// OpsServicer defines the interface for run-triggering and reporting
type OpsServicer interface {
	RunAlignment(ctx context.Context, windowHours int) (*align.Report, error)
	RunTruth(ctx context.Context, windowDays int) ([]domain.TruthCheck, error)
	GetTruthReport(ctx context.Context, limit int) ([]domain.TruthCheck, error)
}

// AlignmentRunner runs one bounded alignment batch.
type AlignmentRunner interface {
	Run(ctx context.Context, window domain.TimeWindow) (*align.Report, error)
}

// TruthRunner runs one truth reconciliation pass.
type TruthRunner interface {
	Run(ctx context.Context, window domain.TimeWindow) ([]domain.TruthCheck, error)
}
