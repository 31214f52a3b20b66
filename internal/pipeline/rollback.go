package pipeline

import (
	"context"
	"fmt"

	"github.com/fiscalia/docindex/internal/models"
	"github.com/fiscalia/docindex/internal/vectorstore"
)

// Rollbacker removes a job's vectors from the index. A completed job
// carries a snapshot of its point ids and is deleted precisely; a failed
// job has no snapshot, so every point carrying its document id is swept.
type Rollbacker struct {
	index Indexer
}

func NewRollbacker(index Indexer) *Rollbacker {
	return &Rollbacker{index: index}
}

func (r *Rollbacker) Rollback(ctx context.Context, job *models.IngestJob) error {
	if snap := job.Snapshot(); snap != nil && len(snap.PointIDs) > 0 {
		if err := r.index.DeletePoints(ctx, snap.PointIDs); err != nil {
			return fmt.Errorf("failed to delete %d snapshot points: %w", len(snap.PointIDs), err)
		}
		return nil
	}

	filter := vectorstore.Filter{Field: "document_id", Value: job.DocumentID.String()}
	if err := r.index.DeleteByFilter(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete points for document %s: %w", job.DocumentID, err)
	}
	return nil
}
