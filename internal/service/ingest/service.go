// Package ingest is the application service behind the HTTP API: uploads,
// job inspection, rollback, search and stats.
package ingest

import (
	"context"
	"errors"
	"mime/multipart"

	"github.com/google/uuid"

	"github.com/fiscalia/docindex/internal/models"
	"github.com/fiscalia/docindex/internal/repository"
	"github.com/fiscalia/docindex/internal/vectorstore"
)

// ErrValidation wraps any request input the API should reject with a 400.
var ErrValidation = errors.New("invalid request")

// UploadMetadata is applied to every file in one upload request.
type UploadMetadata struct {
	DocType models.DocumentType
	Year    int
	Domain  string
	Tags    []string
}

// UploadResult pairs a stored document with its queued ingestion job.
type UploadResult struct {
	Document *models.Document  `json:"document"`
	Job      *models.IngestJob `json:"job"`
}

// SearchResult is one ranked chunk hit.
type SearchResult struct {
	ID    string       `json:"id"`
	Score float64      `json:"score"`
	Chunk models.Chunk `json:"chunk"`
}

// Stats aggregates corpus and index health.
type Stats struct {
	Documents  map[models.DocumentStatus]int64 `json:"documents"`
	Index      *vectorstore.CollectionStats    `json:"index"`
	QueueDepth int                             `json:"queueDepth"`
}

// Service is the operation surface exposed to the HTTP handlers.
type Service interface {
	UploadDocuments(ctx context.Context, files []*multipart.FileHeader, meta UploadMetadata) ([]UploadResult, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListDocuments(ctx context.Context, filter repository.DocumentFilter) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	Reindex(ctx context.Context, documentID uuid.UUID) (*UploadResult, error)

	GetJob(ctx context.Context, id uuid.UUID) (*models.IngestJob, error)
	ListJobs(ctx context.Context, filter repository.JobFilter) ([]models.IngestJob, error)
	RollbackJob(ctx context.Context, id uuid.UUID) error

	Search(ctx context.Context, query, domain string, limit int) ([]SearchResult, error)
	Stats(ctx context.Context) (*Stats, error)
}
