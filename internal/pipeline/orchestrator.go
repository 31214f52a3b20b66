// Package pipeline runs document ingestion: bronze extracts raw text,
// silver splits it into overlapping chunks, gold embeds and indexes them.
// Progress is checkpointed after every stage so an observer can follow a
// run live and a failed run leaves an inspectable trail.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/fiscalia/docindex/internal/chunker"
	"github.com/fiscalia/docindex/internal/eventlog"
	"github.com/fiscalia/docindex/internal/extract"
	"github.com/fiscalia/docindex/internal/models"
	"github.com/fiscalia/docindex/pkg/logger"
)

// Progress milestones. The indexing stage interpolates between goldStart
// and goldEnd as batches commit.
const (
	progressStart     = 0
	progressExtractor = 10
	progressExtracted = 25
	progressChunking  = 30
	progressChunked   = 50
	goldStart         = 55
	goldEnd           = 90
	progressDone      = 100
)

// Store persists job and document state transitions. Implemented by
// repository.PipelineStore.
type Store interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.IngestJob, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	MarkRunning(ctx context.Context, jobID, docID uuid.UUID, at time.Time) error
	AppendEvent(ctx context.Context, jobID uuid.UUID, ev models.Event) error
	Complete(ctx context.Context, jobID, docID uuid.UUID, snap *models.RollbackSnapshot, chunkCount int, at time.Time) error
	Fail(ctx context.Context, jobID, docID uuid.UUID, cause string, at time.Time) error
	MarkRolledBack(ctx context.Context, jobID, docID uuid.UUID) error
}

// BlobStore reads the uploaded document bytes.
type BlobStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Orchestrator drives one job through the stages and owns all state
// transitions. Stage code never touches the store directly.
type Orchestrator struct {
	store     Store
	blobs     BlobStore
	chunker   *chunker.Chunker
	processor *Processor
	rollback  *Rollbacker
	events    eventlog.Log
	log       logger.Logger

	extractText func(content []byte) (string, error)
	now         func() time.Time
}

func NewOrchestrator(store Store, blobs BlobStore, ch *chunker.Chunker, proc *Processor, rb *Rollbacker, events eventlog.Log, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:       store,
		blobs:       blobs,
		chunker:     ch,
		processor:   proc,
		rollback:    rb,
		events:      events,
		log:         log,
		extractText: extract.PDFText,
		now:         time.Now,
	}
}

// Run executes the pipeline for a queued job. Any stage error marks the
// job and its document failed and emits a terminal failed event; the
// error is returned for logging, not for retry.
func (o *Orchestrator) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job.Status != models.JobStatusQueued {
		return fmt.Errorf("%w: job %s is %s, want queued", ErrInvalidState, jobID, job.Status)
	}
	doc, err := o.store.GetDocument(ctx, job.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to load document %s: %w", job.DocumentID, err)
	}

	if err := o.store.MarkRunning(ctx, job.ID, doc.ID, o.now()); err != nil {
		return fmt.Errorf("failed to start job %s: %w", jobID, err)
	}
	o.log.Info("pipeline started",
		logger.String("job_id", job.ID.String()),
		logger.String("document_id", doc.ID.String()),
		logger.String("filename", doc.Filename))

	if err := o.run(ctx, job, doc); err != nil {
		o.fail(ctx, job, doc, err)
		return err
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, job *models.IngestJob, doc *models.Document) error {
	o.emit(ctx, job.ID, "Starting pipeline...", progressStart, models.StageBronze, models.EventRunning)

	// Bronze: raw bytes to plain text.
	o.emit(ctx, job.ID, "Bronze: extracting text...", progressExtractor, models.StageBronze, models.EventRunning)
	text, err := o.extract(ctx, doc.StorageKey)
	if err != nil {
		return err
	}
	o.emit(ctx, job.ID, fmt.Sprintf("Extracted %d characters", len(text)), progressExtracted, models.StageBronze, models.EventRunning)

	// Silver: plain text to overlapping chunks. Zero chunks is a valid
	// outcome for an empty document.
	o.emit(ctx, job.ID, "Silver: chunking text...", progressChunking, models.StageSilver, models.EventRunning)
	chunks := o.chunker.Split(text, doc)
	o.emit(ctx, job.ID, fmt.Sprintf("Created %d chunks", len(chunks)), progressChunked, models.StageSilver, models.EventRunning)

	// Gold: chunks to indexed vectors.
	o.emit(ctx, job.ID, "Gold: embedding and indexing...", goldStart, models.StageGold, models.EventRunning)
	pointIDs, err := o.processor.Index(ctx, chunks, func(start, done, total int) {
		// Progress is measured at the batch's first chunk, so the first
		// batch event sits at the stage floor and no batch event reaches
		// the stage ceiling before the final count is emitted.
		progress := goldStart + float64(start)/float64(total)*(goldEnd-goldStart)
		o.emit(ctx, job.ID, fmt.Sprintf("Indexed batch %d/%d chunks", done, total), progress, models.StageGold, models.EventRunning)
	})
	if err != nil {
		return err
	}
	o.emit(ctx, job.ID, fmt.Sprintf("Indexed %d vectors", len(pointIDs)), goldEnd, models.StageGold, models.EventRunning)

	snap := &models.RollbackSnapshot{DocumentID: doc.ID.String(), PointIDs: pointIDs}
	if err := o.store.Complete(ctx, job.ID, doc.ID, snap, len(chunks), o.now()); err != nil {
		return fmt.Errorf("failed to finalize job %s: %w", job.ID, err)
	}
	o.emit(ctx, job.ID, "Pipeline complete", progressDone, models.StageCompleted, models.EventCompleted)

	o.log.Info("pipeline completed",
		logger.String("job_id", job.ID.String()),
		logger.Int("chunks", len(chunks)),
		logger.Int("vectors", len(pointIDs)))
	return nil
}

func (o *Orchestrator) extract(ctx context.Context, storageKey string) (string, error) {
	reader, err := o.blobs.Get(ctx, storageKey)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrStorage, storageKey, err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrStorage, storageKey, err)
	}

	text, err := o.extractText(content)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return text, nil
}

// fail is the single failure path: persist the failed pair, then emit the
// terminal event so tails observe the final state after it is durable.
func (o *Orchestrator) fail(ctx context.Context, job *models.IngestJob, doc *models.Document, cause error) {
	o.log.Error("pipeline failed",
		logger.String("job_id", job.ID.String()),
		logger.String("document_id", doc.ID.String()),
		logger.Error(cause))

	if err := o.store.Fail(ctx, job.ID, doc.ID, cause.Error(), o.now()); err != nil {
		o.log.Error("failed to record job failure",
			logger.String("job_id", job.ID.String()), logger.Error(err))
	}

	current, err := o.store.GetJob(ctx, job.ID)
	progress := job.Progress
	if err == nil {
		progress = current.Progress
	}
	o.emit(ctx, job.ID, cause.Error(), progress, models.StageFailed, models.EventFailed)
}

// RollbackJob undoes a finished job's index writes. Only completed and
// failed jobs can be rolled back; the transition is one-way.
func (o *Orchestrator) RollbackJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job.Status != models.JobStatusCompleted && job.Status != models.JobStatusFailed {
		return fmt.Errorf("%w: job %s is %s, want completed or failed", ErrInvalidState, jobID, job.Status)
	}

	if err := o.rollback.Rollback(ctx, job); err != nil {
		return fmt.Errorf("rollback of job %s: %w", jobID, err)
	}
	if err := o.store.MarkRolledBack(ctx, job.ID, job.DocumentID); err != nil {
		return fmt.Errorf("failed to record rollback of job %s: %w", jobID, err)
	}
	o.emit(ctx, job.ID, "Rollback complete", job.Progress, job.Stage, models.EventRolledBack)

	o.log.Info("job rolled back",
		logger.String("job_id", job.ID.String()),
		logger.String("document_id", job.DocumentID.String()))
	return nil
}

// emit appends an event to the live log and mirrors it onto the job
// record. Emission failures are logged and swallowed: progress reporting
// never aborts a run.
func (o *Orchestrator) emit(ctx context.Context, jobID uuid.UUID, message string, progress float64, stage string, status models.EventStatus) {
	ev := models.Event{
		Message:   message,
		Progress:  progress,
		Stage:     stage,
		Status:    status,
		Timestamp: o.now(),
	}
	if err := o.events.Append(ctx, jobID.String(), ev); err != nil {
		o.log.Warn("failed to append live event",
			logger.String("job_id", jobID.String()), logger.Error(err))
	}
	if err := o.store.AppendEvent(ctx, jobID, ev); err != nil {
		o.log.Warn("failed to persist event",
			logger.String("job_id", jobID.String()), logger.Error(err))
	}
}
