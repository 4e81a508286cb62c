package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/craterhub/downloads-accounting/internal/domain"
	"github.com/craterhub/downloads-accounting/internal/eventstore"
	"github.com/craterhub/downloads-accounting/internal/logger"
	"github.com/craterhub/downloads-accounting/internal/pipeline"
)

// Handler defines the interface for REST API handlers
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// RecordDownload records one download event
	// POST /api/v1/downloads
	RecordDownload(c *gin.Context)

	// TriggerFlush runs a processing cycle immediately
	// POST /api/v1/downloads/flush
	TriggerFlush(c *gin.Context)

	// GetStats reports queue length, history length and the processing flag
	// GET /api/v1/downloads/stats
	GetStats(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	gate       *pipeline.Gate
	processor  *pipeline.Processor
	events     eventstore.Store
	queueKey   string
	historyKey string
}

// NewHandler creates a new REST API handler
func NewHandler(gate *pipeline.Gate, processor *pipeline.Processor, events eventstore.Store, queueKey, historyKey string) Handler {
	return &handler{
		gate:       gate,
		processor:  processor,
		events:     events,
		queueKey:   queueKey,
		historyKey: historyKey,
	}
}

// recordDownloadRequest is the ingest payload sent by the file-serving backend
type recordDownloadRequest struct {
	IPAddress string `json:"ip_address"`
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id" binding:"required"`
	VersionID string `json:"version_id" binding:"required"`
}

// RecordDownload records one download event. It always responds 202 once the
// payload parses: accounting failures are logged server-side and must never
// fail the download they belong to.
func (h *handler) RecordDownload(c *gin.Context) {
	var req recordDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	// The platform backend forwards the end user's address; direct callers
	// fall back to the connection address
	if req.IPAddress == "" {
		req.IPAddress = c.ClientIP()
	}

	err := h.gate.Submit(c.Request.Context(), pipeline.SubmitInput{
		IPAddress: req.IPAddress,
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		VersionID: req.VersionID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEvent) {
			respondBadRequest(c, "Invalid download event")
			return
		}
		logger.ErrorCtx(c.Request.Context(), err,
			zap.String("project_id", req.ProjectID),
			zap.String("version_id", req.VersionID),
		)
	}

	c.Status(http.StatusAccepted)
}

// TriggerFlush runs a processing cycle immediately
func (h *handler) TriggerFlush(c *gin.Context) {
	err := h.processor.ProcessOnce(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrCycleInFlight) {
			respondConflict(c, "A processing cycle is already in flight")
			return
		}
		respondInternalError(c, err, "Processing cycle failed")
		return
	}

	c.Status(http.StatusNoContent)
}

// statsResponse reports the pipeline's queue state
type statsResponse struct {
	QueueLength   int64 `json:"queue_length"`
	HistoryLength int64 `json:"history_length"`
	Processing    bool  `json:"processing"`
}

// GetStats reports queue length, history length and the processing flag
func (h *handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	queueLength, err := h.events.Length(ctx, h.queueKey)
	if err != nil {
		respondInternalError(c, err, "Failed to read queue length")
		return
	}

	historyLength, err := h.events.Length(ctx, h.historyKey)
	if err != nil {
		respondInternalError(c, err, "Failed to read history length")
		return
	}

	c.JSON(http.StatusOK, statsResponse{
		QueueLength:   queueLength,
		HistoryLength: historyLength,
		Processing:    h.processor.Processing(),
	})
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
