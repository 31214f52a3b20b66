package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fiscalia/docindex/internal/models"
	"github.com/fiscalia/docindex/internal/repository"
	"github.com/fiscalia/docindex/internal/service/ingest"
	"github.com/fiscalia/docindex/pkg/logger"
)

type DocumentHandler struct {
	service ingest.Service
	logger  logger.Logger
}

func NewDocumentHandler(service ingest.Service, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{service: service, logger: log}
}

// Upload accepts one or more PDF files plus shared metadata fields and
// queues an ingestion job per file.
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		handleError(c, h.logger, "Invalid form data", err)
		return
	}

	files := form.File["files"]
	year, _ := strconv.Atoi(c.PostForm("year"))
	meta := ingest.UploadMetadata{
		DocType: models.DocumentType(c.PostForm("docType")),
		Year:    year,
		Domain:  c.PostForm("domain"),
		Tags:    form.Value["tags"],
	}

	results, err := h.service.UploadDocuments(c.Request.Context(), files, meta)
	if err != nil {
		handleError(c, h.logger, "Failed to upload documents", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Documents queued for ingestion",
		"results": results,
	})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handleError(c, h.logger, "Invalid document id", fmt.Errorf("%w: %v", ingest.ErrValidation, err))
		return
	}

	doc, err := h.service.GetDocument(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, "Failed to get document", err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	filter := repository.DocumentFilter{
		Status:  models.DocumentStatus(c.Query("status")),
		Domain:  c.Query("domain"),
		DocType: models.DocumentType(c.Query("docType")),
		Limit:   limit,
	}

	docs, err := h.service.ListDocuments(c.Request.Context(), filter)
	if err != nil {
		handleError(c, h.logger, "Failed to list documents", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handleError(c, h.logger, "Invalid document id", fmt.Errorf("%w: %v", ingest.ErrValidation, err))
		return
	}

	if err := h.service.DeleteDocument(c.Request.Context(), id); err != nil {
		handleError(c, h.logger, "Failed to delete document", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Document deleted",
		"documentId": id,
	})
}

// Reindex clears the document's vectors and queues a fresh pipeline run.
func (h *DocumentHandler) Reindex(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handleError(c, h.logger, "Invalid document id", fmt.Errorf("%w: %v", ingest.ErrValidation, err))
		return
	}

	result, err := h.service.Reindex(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, "Failed to reindex document", err)
		return
	}

	c.JSON(http.StatusAccepted, result)
}
