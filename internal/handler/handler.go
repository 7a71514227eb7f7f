package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alignkit/attribution-service/internal/dto"
	"github.com/alignkit/attribution-service/internal/service"
)

type Handler struct {
	ingestService service.IngestServicer
	opsService    service.OpsServicer
	router        *gin.Engine
	log           *zap.Logger
}

func NewHandler(ingestService service.IngestServicer, opsService service.OpsServicer, log *zap.Logger) *Handler {
	h := &Handler{
		ingestService: ingestService,
		opsService:    opsService,
		router:        gin.Default(),
		log:           log,
	}

	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	h.router.POST("/events", h.ingestEvent)
	h.router.POST("/events/bulk", h.ingestEventsBulk)
	h.router.POST("/alignment/run", h.runAlignment)
	h.router.POST("/truth/run", h.runTruth)
	h.router.GET("/truth/report", h.truthReport)
}

// healthCheck handles GET /health
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ingestEvent handles POST /events
func (h *Handler) ingestEvent(c *gin.Context) {
	var req dto.IngestEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid event request",
			zap.Error(err),
			zap.String("event_name", req.EventName))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	eventID, err := h.ingestService.ProcessEvent(&req)
	if err != nil {
		h.log.Error("Failed to process event",
			zap.Error(err),
			zap.String("source", req.Source),
			zap.String("event_name", req.EventName))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	h.log.Info("Event accepted",
		zap.String("event_id", eventID),
		zap.String("source", req.Source),
		zap.String("event_name", req.EventName))

	c.JSON(http.StatusAccepted, dto.IngestEventResponse{
		EventID: eventID,
		Status:  "accepted",
	})
}

// ingestEventsBulk handles POST /events/bulk
func (h *Handler) ingestEventsBulk(c *gin.Context) {
	var bulkRequest dto.IngestEventsBulkRequest

	if err := c.ShouldBindJSON(&bulkRequest); err != nil {
		h.log.Warn("Invalid bulk event request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	eventIDs, errs, err := h.ingestService.ProcessBulkEvents(bulkRequest.Events)
	if err != nil {
		h.log.Error("Failed to process bulk events",
			zap.Error(err),
			zap.Int("event_count", len(bulkRequest.Events)))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	accepted := len(eventIDs)
	rejected := len(errs)

	h.log.Info("Bulk events processed",
		zap.Int("accepted", accepted),
		zap.Int("rejected", rejected),
		zap.Int("total", len(bulkRequest.Events)))

	c.JSON(http.StatusAccepted, dto.IngestEventsBulkResponse{
		Accepted: accepted,
		Rejected: rejected,
		EventIDs: eventIDs,
		Errors:   errs,
	})
}

// runAlignment handles POST /alignment/run
func (h *Handler) runAlignment(c *gin.Context) {
	var req dto.RunAlignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		h.log.Warn("Invalid alignment run request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	report, err := h.opsService.RunAlignment(c.Request.Context(), req.WindowHours)
	if err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			c.JSON(http.StatusConflict, dto.RunRejectedResponse{Status: "already_running"})
			return
		}
		h.log.Error("Alignment run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// runTruth handles POST /truth/run
func (h *Handler) runTruth(c *gin.Context) {
	var req dto.RunTruthRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		h.log.Warn("Invalid truth run request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	checks, err := h.opsService.RunTruth(c.Request.Context(), req.WindowDays)
	if err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			c.JSON(http.StatusConflict, dto.RunRejectedResponse{Status: "already_running"})
			return
		}
		h.log.Error("Truth run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.TruthReportResponse{Checks: checks})
}

// truthReport handles GET /truth/report
func (h *Handler) truthReport(c *gin.Context) {
	var req dto.TruthReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.log.Warn("Invalid truth report request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	checks, err := h.opsService.GetTruthReport(c.Request.Context(), req.Limit)
	if err != nil {
		h.log.Error("Failed to fetch truth report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.TruthReportResponse{Checks: checks})
}
