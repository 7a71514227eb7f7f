package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alignkit/attribution-service/internal/dto"
	"github.com/alignkit/attribution-service/internal/queue"
)

// IngestService accepts raw events at the edge and hands them to the
// queue. Storage happens asynchronously in the worker.
type IngestService struct {
	publisher queue.QueuePublisher
	log       *zap.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(publisher queue.QueuePublisher, log *zap.Logger) *IngestService {
	return &IngestService{
		publisher: publisher,
		log:       log,
	}
}

// computeEventID generates a deterministic event ID based on event content.
// Uses SHA-256 hash of: source|event_name|timestamp|email|phone|external_id|contact_id.
// The same observation submitted twice maps to the same id, and the
// store's (event_id, source) key absorbs the duplicate.
func computeEventID(event *dto.IngestEventRequest) string {
	data := fmt.Sprintf("%s|%s|%d|%s|%s|%s|%s",
		event.Source,
		event.EventName,
		event.Timestamp,
		event.Email,
		event.Phone,
		event.ExternalID,
		event.ContactID,
	)

	hash := sha256.Sum256([]byte(data))
	return "evt_" + hex.EncodeToString(hash[:16])
}

// ProcessEvent processes a single raw event
func (s *IngestService) ProcessEvent(event *dto.IngestEventRequest) (string, error) {
	ctx := context.Background()

	currentTime := time.Now().Unix()
	if event.Timestamp > currentTime+1 {
		s.log.Warn("Timestamp validation failed: future timestamp",
			zap.Int64("event_timestamp", event.Timestamp),
			zap.Int64("current_time", currentTime),
			zap.String("event_name", event.EventName))
		return "", fmt.Errorf("timestamp cannot be in the future: %d > %d", event.Timestamp, currentTime)
	}

	eventID := computeEventID(event)

	err := s.publisher.PublishEvent(ctx, event, eventID)
	if err != nil {
		return "", fmt.Errorf("failed to publish event to queue: %w", err)
	}

	return eventID, nil
}

// ProcessBulkEvents validates and processes multiple events
func (s *IngestService) ProcessBulkEvents(events []dto.IngestEventRequest) ([]string, []string, error) {
	var eventIDs []string
	var errors []string

	for i, event := range events {
		eventID, err := s.ProcessEvent(&event)
		if err != nil {
			errors = append(errors, err.Error())
			s.log.Warn("Failed to process event in bulk",
				zap.Int("index", i),
				zap.Error(err),
				zap.String("event_name", event.EventName))
			continue
		}
		eventIDs = append(eventIDs, eventID)
	}

	return eventIDs, errors, nil
}
