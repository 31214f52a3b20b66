package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fiscalia/docindex/internal/eventlog"
	"github.com/fiscalia/docindex/internal/pipeline"
	"github.com/fiscalia/docindex/internal/repository"
	"github.com/fiscalia/docindex/internal/service/ingest"
	"github.com/fiscalia/docindex/pkg/logger"
)

type Handlers struct {
	Document *DocumentHandler
	Pipeline *PipelineHandler
	Search   *SearchHandler
}

func NewHandlers(service ingest.Service, events eventlog.Log, log logger.Logger) *Handlers {
	return &Handlers{
		Document: NewDocumentHandler(service, log),
		Pipeline: NewPipelineHandler(service, events, log),
		Search:   NewSearchHandler(service, log),
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// handleError logs and renders one error. Known error kinds map to their
// HTTP status; everything else is a 500.
func handleError(c *gin.Context, log logger.Logger, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrActiveJobExists):
		status = http.StatusConflict
	case errors.Is(err, pipeline.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, ingest.ErrValidation):
		status = http.StatusBadRequest
	}

	log.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.JSON(status, response)
}
