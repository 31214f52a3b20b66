package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fiscalia/docindex/internal/service/ingest"
	"github.com/fiscalia/docindex/pkg/logger"
)

type SearchHandler struct {
	service ingest.Service
	logger  logger.Logger
}

func NewSearchHandler(service ingest.Service, log logger.Logger) *SearchHandler {
	return &SearchHandler{service: service, logger: log}
}

func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	domain := c.Query("domain")
	limit, _ := strconv.Atoi(c.Query("limit"))

	results, err := h.service.Search(c.Request.Context(), query, domain, limit)
	if err != nil {
		handleError(c, h.logger, "Search failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"results": results,
	})
}

func (h *SearchHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, "Failed to collect stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
