package dto

import "github.com/alignkit/attribution-service/internal/domain"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"validation_error"`
	Message string `json:"message,omitempty" example:"event_name is required"`
}

// IngestEventResponse represents a successful event ingestion response
type IngestEventResponse struct {
	EventID string `json:"event_id" example:"evt_1a2b3c4d5e6f"`
	Status  string `json:"status" example:"accepted"`
}

// IngestEventsBulkResponse represents a successful bulk ingestion response
type IngestEventsBulkResponse struct {
	Accepted int      `json:"accepted" example:"5"`
	Rejected int      `json:"rejected" example:"0"`
	EventIDs []string `json:"event_ids,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// RunRejectedResponse is returned when a run is already in progress.
type RunRejectedResponse struct {
	Status string `json:"status" example:"already_running"`
}

// TruthReportResponse is the latest persisted truth checks.
type TruthReportResponse struct {
	Checks []domain.TruthCheck `json:"checks"`
}
