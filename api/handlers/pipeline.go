package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fiscalia/docindex/internal/eventlog"
	"github.com/fiscalia/docindex/internal/models"
	"github.com/fiscalia/docindex/internal/repository"
	"github.com/fiscalia/docindex/internal/service/ingest"
	"github.com/fiscalia/docindex/pkg/logger"
)

type PipelineHandler struct {
	service ingest.Service
	events  eventlog.Log
	logger  logger.Logger
}

func NewPipelineHandler(service ingest.Service, events eventlog.Log, log logger.Logger) *PipelineHandler {
	return &PipelineHandler{service: service, events: events, logger: log}
}

func (h *PipelineHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handleError(c, h.logger, "Invalid job id", fmt.Errorf("%w: %v", ingest.ErrValidation, err))
		return
	}

	job, err := h.service.GetJob(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, "Failed to get job", err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *PipelineHandler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	filter := repository.JobFilter{
		Status: models.JobStatus(c.Query("status")),
		Limit:  limit,
	}

	jobs, err := h.service.ListJobs(c.Request.Context(), filter)
	if err != nil {
		handleError(c, h.logger, "Failed to list jobs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *PipelineHandler) Rollback(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handleError(c, h.logger, "Invalid job id", fmt.Errorf("%w: %v", ingest.ErrValidation, err))
		return
	}

	if err := h.service.RollbackJob(c.Request.Context(), id); err != nil {
		handleError(c, h.logger, "Failed to roll back job", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Job rolled back",
		"jobId":   id,
	})
}

// Stream tails a job's event log as newline-delimited JSON, one event per
// line, flushing after each. The stream replays from the first event and
// ends after a terminal event, after the subscription ceiling, or when the
// client goes away.
func (h *PipelineHandler) Stream(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handleError(c, h.logger, "Invalid job id", fmt.Errorf("%w: %v", ingest.ErrValidation, err))
		return
	}

	// Reject unknown jobs before committing to a stream response.
	if _, err := h.service.GetJob(c.Request.Context(), id); err != nil {
		handleError(c, h.logger, "Failed to get job", err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		handleError(c, h.logger, "Streaming not supported", nil)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := c.Request.Context()
	encoder := json.NewEncoder(c.Writer)
	for ev := range eventlog.Tail(ctx, h.events, id.String(), eventlog.TailOptions{}) {
		if err := encoder.Encode(ev); err != nil {
			h.logger.Warn("Event stream write failed",
				logger.String("job_id", id.String()),
				logger.Error(err),
			)
			return
		}
		flusher.Flush()
	}
}
