package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fiscalia/docindex/internal/models"
)

// ErrActiveJobExists is returned when a job is created for a document that
// already has a queued or running job. At most one job per document may be
// non-terminal at a time.
var ErrActiveJobExists = errors.New("document already has an active ingestion job")

// JobFilter narrows job listings.
type JobFilter struct {
	Status models.JobStatus
	Limit  int
}

// JobRepository persists ingestion jobs. Jobs are never deleted.
type JobRepository interface {
	Create(ctx context.Context, job *models.IngestJob) error
	Get(ctx context.Context, id uuid.UUID) (*models.IngestJob, error)
	List(ctx context.Context, filter JobFilter) ([]models.IngestJob, error)
	Update(ctx context.Context, job *models.IngestJob) error
	ActiveForDocument(ctx context.Context, documentID uuid.UUID) (bool, error)
}

type jobRepo struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepo{db: db}
}

// Create inserts a queued job, refusing when the document already has a
// non-terminal one. Check and insert run in one transaction.
func (r *jobRepo) Create(ctx context.Context, job *models.IngestJob) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		err := tx.Model(&models.IngestJob{}).
			Where("document_id = ? AND status IN ?", job.DocumentID,
				[]models.JobStatus{models.JobStatusQueued, models.JobStatusRunning}).
			Count(&active).Error
		if err != nil {
			return fmt.Errorf("failed to check active jobs: %w", err)
		}
		if active > 0 {
			return ErrActiveJobExists
		}
		if err := tx.Create(job).Error; err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}
		return nil
	})
}

func (r *jobRepo) Get(ctx context.Context, id uuid.UUID) (*models.IngestJob, error) {
	var job models.IngestJob
	err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (r *jobRepo) List(ctx context.Context, filter JobFilter) ([]models.IngestJob, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var jobs []models.IngestJob
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// ActiveForDocument reports whether the document has a queued or running
// job. Callers use it to refuse destructive work up front; Create still
// enforces the invariant transactionally.
func (r *jobRepo) ActiveForDocument(ctx context.Context, documentID uuid.UUID) (bool, error) {
	var active int64
	err := r.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("document_id = ? AND status IN ?", documentID,
			[]models.JobStatus{models.JobStatusQueued, models.JobStatusRunning}).
		Count(&active).Error
	if err != nil {
		return false, fmt.Errorf("failed to check active jobs: %w", err)
	}
	return active > 0, nil
}

func (r *jobRepo) Update(ctx context.Context, job *models.IngestJob) error {
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}
