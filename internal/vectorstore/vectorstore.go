// Package vectorstore defines the typed interface over the vector
// similarity index.
package vectorstore

import (
	"context"

	"github.com/fiscalia/docindex/internal/models"
)

// Point is one vector with its chunk payload. IDs are generated at index
// time and are independent of the chunk index.
type Point struct {
	ID      string       `json:"id"`
	Vector  []float32    `json:"vector"`
	Payload models.Chunk `json:"payload"`
}

// ScoredPoint is a search hit, ranked by descending similarity.
type ScoredPoint struct {
	ID      string       `json:"id"`
	Score   float64      `json:"score"`
	Payload models.Chunk `json:"payload"`
}

// Filter matches points whose payload field equals a value.
type Filter struct {
	Field string
	Value interface{}
}

// CollectionStats summarizes the backing collection.
type CollectionStats struct {
	PointsCount         int64  `json:"points_count"`
	IndexedVectorsCount int64  `json:"indexed_vectors_count"`
	Status              string `json:"status"`
}

// Store is the capability set the pipeline, rollback coordinator and
// search path need from a vector index. All operations are idempotent
// except UpsertBatch, whose point ids are freshly generated per attempt.
type Store interface {
	EnsureCollection(ctx context.Context, dimension int) error
	UpsertBatch(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, filter *Filter, limit int) ([]ScoredPoint, error)
	GetPoint(ctx context.Context, id string) (*Point, error)
	SetPayload(ctx context.Context, id string, payload map[string]interface{}) error
	DeletePoints(ctx context.Context, ids []string) error
	DeleteByFilter(ctx context.Context, filter Filter) error
	CollectionStats(ctx context.Context) (*CollectionStats, error)
}
