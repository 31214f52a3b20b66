package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fiscalia/docindex/internal/models"
)

// PipelineStore applies job/document state transitions. Each checkpoint
// (start, event, success, failure, rollback) is one transaction so
// observers never read a half-updated pair.
type PipelineStore struct {
	db *gorm.DB
}

func NewPipelineStore(db *gorm.DB) *PipelineStore {
	return &PipelineStore{db: db}
}

func (s *PipelineStore) GetJob(ctx context.Context, id uuid.UUID) (*models.IngestJob, error) {
	return NewJobRepository(s.db).Get(ctx, id)
}

func (s *PipelineStore) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return NewDocumentRepository(s.db).Get(ctx, id)
}

// MarkRunning transitions a queued job to running and its document to
// processing.
func (s *PipelineStore) MarkRunning(ctx context.Context, jobID, docID uuid.UUID, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.IngestJob{}).Where("id = ?", jobID).Updates(map[string]interface{}{
			"status":     models.JobStatusRunning,
			"started_at": at,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to mark job running: %w", err)
		}
		err = tx.Model(&models.Document{}).Where("id = ?", docID).Updates(map[string]interface{}{
			"status": models.DocStatusProcessing,
			"job_id": jobID,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to mark document processing: %w", err)
		}
		return nil
	})
}

// AppendEvent mirrors one event onto the job record and advances its
// progress and stage.
func (s *PipelineStore) AppendEvent(ctx context.Context, jobID uuid.UUID, ev models.Event) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.IngestJob
		if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
			return fmt.Errorf("failed to load job for event: %w", err)
		}

		events := job.EventList()
		events = append(events, ev)
		logs, err := json.Marshal(events)
		if err != nil {
			return fmt.Errorf("failed to encode job logs: %w", err)
		}

		return tx.Model(&job).Updates(map[string]interface{}{
			"logs":     datatypes.JSON(logs),
			"progress": ev.Progress,
			"stage":    ev.Stage,
		}).Error
	})
}

// Complete finalizes a successful run: job completed with its rollback
// snapshot, document indexed with its chunk count.
func (s *PipelineStore) Complete(ctx context.Context, jobID, docID uuid.UUID, snap *models.RollbackSnapshot, chunkCount int, at time.Time) error {
	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode rollback snapshot: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.IngestJob{}).Where("id = ?", jobID).Updates(map[string]interface{}{
			"status":            models.JobStatusCompleted,
			"stage":             models.StageCompleted,
			"progress":          100.0,
			"completed_at":      at,
			"rollback_snapshot": datatypes.JSON(snapJSON),
		}).Error
		if err != nil {
			return fmt.Errorf("failed to complete job: %w", err)
		}
		err = tx.Model(&models.Document{}).Where("id = ?", docID).Updates(map[string]interface{}{
			"status":      models.DocStatusIndexed,
			"chunk_count": chunkCount,
			"indexed_at":  at,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to mark document indexed: %w", err)
		}
		return nil
	})
}

// Fail records a terminal failure on the job and its document. No rollback
// snapshot is written; cleanup of already-committed batches relies on the
// delete-by-document fallback.
func (s *PipelineStore) Fail(ctx context.Context, jobID, docID uuid.UUID, cause string, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.IngestJob{}).Where("id = ?", jobID).Updates(map[string]interface{}{
			"status":       models.JobStatusFailed,
			"stage":        models.StageFailed,
			"error":        cause,
			"completed_at": at,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to mark job failed: %w", err)
		}
		err = tx.Model(&models.Document{}).Where("id = ?", docID).
			Update("status", models.DocStatusFailed).Error
		if err != nil {
			return fmt.Errorf("failed to mark document failed: %w", err)
		}
		return nil
	})
}

// MarkRolledBack records a completed rollback on the job and resets the
// document's indexed state.
func (s *PipelineStore) MarkRolledBack(ctx context.Context, jobID, docID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.IngestJob{}).Where("id = ?", jobID).
			Update("status", models.JobStatusRolledBack).Error
		if err != nil {
			return fmt.Errorf("failed to mark job rolled back: %w", err)
		}
		err = tx.Model(&models.Document{}).Where("id = ?", docID).Updates(map[string]interface{}{
			"status":      models.DocStatusRolledBack,
			"chunk_count": 0,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to mark document rolled back: %w", err)
		}
		return nil
	})
}
