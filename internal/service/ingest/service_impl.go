package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/fiscalia/docindex/config"
	"github.com/fiscalia/docindex/internal/embedding"
	"github.com/fiscalia/docindex/internal/models"
	"github.com/fiscalia/docindex/internal/repository"
	"github.com/fiscalia/docindex/internal/vectorstore"
	"github.com/fiscalia/docindex/pkg/logger"
	"github.com/fiscalia/docindex/pkg/queue"
	"github.com/fiscalia/docindex/pkg/storage"
)

// TaskQueue is the enqueue side of the ingestion queue.
type TaskQueue interface {
	EnqueueIngest(ctx context.Context, task queue.IngestTask) error
	Inflight() (int, error)
}

// JobRollbacker undoes a finished job's index writes. Implemented by
// pipeline.Orchestrator.
type JobRollbacker interface {
	RollbackJob(ctx context.Context, jobID uuid.UUID) error
}

type ingestService struct {
	docs     repository.DocumentRepository
	jobs     repository.JobRepository
	storage  storage.Storage
	queue    TaskQueue
	embedder embedding.Embedder
	index    vectorstore.Store
	rollback JobRollbacker
	logger   logger.Logger
	cfg      *config.PipelineConfig
}

func NewService(
	docs repository.DocumentRepository,
	jobs repository.JobRepository,
	store storage.Storage,
	q TaskQueue,
	embedder embedding.Embedder,
	index vectorstore.Store,
	rollback JobRollbacker,
	log logger.Logger,
	cfg *config.PipelineConfig,
) Service {
	if cfg == nil {
		cfg = config.GetPipelineConfig()
	}
	return &ingestService{
		docs:     docs,
		jobs:     jobs,
		storage:  store,
		queue:    q,
		embedder: embedder,
		index:    index,
		rollback: rollback,
		logger:   log,
		cfg:      cfg,
	}
}

// UploadDocuments stores each file, creates its document and queued job,
// and enqueues a pipeline run. Files are handled concurrently; the first
// failure cancels the rest but results already created are returned.
func (s *ingestService) UploadDocuments(ctx context.Context, files []*multipart.FileHeader, meta UploadMetadata) ([]UploadResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files provided", ErrValidation)
	}
	if len(files) > s.cfg.MaxUploadFiles {
		return nil, fmt.Errorf("%w: at most %d files per request", ErrValidation, s.cfg.MaxUploadFiles)
	}
	for _, header := range files {
		if err := s.validateFile(header); err != nil {
			return nil, err
		}
	}

	results := make([]UploadResult, 0, len(files))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, header := range files {
		header := header
		g.Go(func() error {
			result, err := s.ingestFile(ctx, header, meta)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, *result)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (s *ingestService) ingestFile(ctx context.Context, header *multipart.FileHeader, meta UploadMetadata) (*UploadResult, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", header.Filename, err)
	}
	defer file.Close()

	docID := uuid.New()
	key := fmt.Sprintf("documents/%s/%s", docID, header.Filename)

	if _, err := s.storage.Store(ctx, file, key); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", header.Filename, err)
	}

	tags, err := encodeTags(meta.Tags)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:         docID,
		Filename:   header.Filename,
		StorageKey: key,
		DocType:    meta.DocType,
		Year:       meta.Year,
		Domain:     meta.Domain,
		Tags:       tags,
		Status:     models.DocStatusPending,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	job, err := s.enqueueJob(ctx, doc)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Document queued for ingestion",
		logger.String("document_id", docID.String()),
		logger.String("job_id", job.ID.String()),
		logger.String("filename", header.Filename),
	)
	return &UploadResult{Document: doc, Job: job}, nil
}

// enqueueJob creates the queued job record and hands it to the worker. The
// job id is the asynq task id, so a duplicate enqueue is rejected by the
// queue as well as by the repository's active-job check.
func (s *ingestService) enqueueJob(ctx context.Context, doc *models.Document) (*models.IngestJob, error) {
	job := &models.IngestJob{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		Status:     models.JobStatusQueued,
		Stage:      "queued",
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	task := queue.IngestTask{
		DocumentID: doc.ID.String(),
		JobID:      job.ID.String(),
	}
	if err := s.queue.EnqueueIngest(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return job, nil
}

func (s *ingestService) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return s.docs.Get(ctx, id)
}

func (s *ingestService) ListDocuments(ctx context.Context, filter repository.DocumentFilter) ([]models.Document, error) {
	return s.docs.List(ctx, filter)
}

// DeleteDocument removes a document everywhere: its vectors, its stored
// file, then its record. Jobs stay as the audit trail.
func (s *ingestService) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return err
	}

	if doc.Status == models.DocStatusIndexed {
		filter := vectorstore.Filter{Field: "document_id", Value: doc.ID.String()}
		if err := s.index.DeleteByFilter(ctx, filter); err != nil {
			return fmt.Errorf("failed to remove vectors for document %s: %w", id, err)
		}
	}

	if err := s.storage.Delete(ctx, doc.StorageKey); err != nil {
		s.logger.Warn("Failed to delete stored file",
			logger.String("document_id", id.String()),
			logger.String("key", doc.StorageKey),
			logger.Error(err),
		)
	}

	if err := s.docs.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Document deleted", logger.String("document_id", id.String()))
	return nil
}

// Reindex sweeps the document's existing vectors and queues a fresh run.
// The active-job check runs before any destructive work: a rejected
// reindex must leave the running job's vectors and document record alone.
func (s *ingestService) Reindex(ctx context.Context, documentID uuid.UUID) (*UploadResult, error) {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	active, err := s.jobs.ActiveForDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, fmt.Errorf("document %s: %w", documentID, repository.ErrActiveJobExists)
	}

	filter := vectorstore.Filter{Field: "document_id", Value: doc.ID.String()}
	if err := s.index.DeleteByFilter(ctx, filter); err != nil {
		return nil, fmt.Errorf("failed to clear vectors for document %s: %w", documentID, err)
	}

	doc.Status = models.DocStatusPending
	doc.ChunkCount = 0
	doc.IndexedAt = nil
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, err
	}

	job, err := s.enqueueJob(ctx, doc)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Document queued for reindexing",
		logger.String("document_id", documentID.String()),
		logger.String("job_id", job.ID.String()),
	)
	return &UploadResult{Document: doc, Job: job}, nil
}

func (s *ingestService) GetJob(ctx context.Context, id uuid.UUID) (*models.IngestJob, error) {
	return s.jobs.Get(ctx, id)
}

func (s *ingestService) ListJobs(ctx context.Context, filter repository.JobFilter) ([]models.IngestJob, error) {
	return s.jobs.List(ctx, filter)
}

func (s *ingestService) RollbackJob(ctx context.Context, id uuid.UUID) error {
	return s.rollback.RollbackJob(ctx, id)
}

// Search embeds the query and ranks chunks by cosine similarity, optionally
// restricted to one domain.
func (s *ingestService) Search(ctx context.Context, query, domain string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrValidation)
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var filter *vectorstore.Filter
	if domain != "" {
		filter = &vectorstore.Filter{Field: "domain", Value: domain}
	}

	hits, err := s.index.Search(ctx, vector, filter, limit)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, SearchResult{
			ID:    hit.ID,
			Score: hit.Score,
			Chunk: hit.Payload,
		})
	}
	return results, nil
}

func (s *ingestService) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.docs.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	collection, err := s.index.CollectionStats(ctx)
	if err != nil {
		s.logger.Warn("Failed to read index stats", logger.Error(err))
		collection = nil
	}

	depth, err := s.queue.Inflight()
	if err != nil {
		s.logger.Warn("Failed to read queue depth", logger.Error(err))
		depth = 0
	}

	return &Stats{
		Documents:  counts,
		Index:      collection,
		QueueDepth: depth,
	}, nil
}

func (s *ingestService) validateFile(header *multipart.FileHeader) error {
	maxBytes := int64(s.cfg.MaxUploadSizeMB) * 1024 * 1024
	if header.Size > maxBytes {
		return fmt.Errorf("%w: %s exceeds the %dMB limit", ErrValidation, header.Filename, s.cfg.MaxUploadSizeMB)
	}
	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".pdf" {
		return fmt.Errorf("%w: unsupported file type %q", ErrValidation, ext)
	}
	return nil
}

func encodeTags(tags []string) (datatypes.JSON, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	return datatypes.JSON(data), nil
}
