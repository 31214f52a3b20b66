package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fiscalia/docindex/internal/embedding"
	"github.com/fiscalia/docindex/internal/models"
	"github.com/fiscalia/docindex/internal/vectorstore"
)

const defaultBatchSize = 50

// Indexer is the slice of the vector store the pipeline needs: batch
// writes plus the two deletion paths used by rollback.
type Indexer interface {
	UpsertBatch(ctx context.Context, points []vectorstore.Point) error
	DeletePoints(ctx context.Context, ids []string) error
	DeleteByFilter(ctx context.Context, f vectorstore.Filter) error
}

// Processor runs the indexing stage: embed each chunk in order and upsert
// the vectors in fixed-size batches.
type Processor struct {
	embedder  embedding.Embedder
	index     Indexer
	batchSize int
}

func NewProcessor(embedder embedding.Embedder, index Indexer, batchSize int) *Processor {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Processor{embedder: embedder, index: index, batchSize: batchSize}
}

// Index embeds chunks sequentially and upserts one batch at a time.
// onBatch is invoked after each committed batch with the batch's first
// chunk index, the number of chunks indexed so far and the total. The
// returned ids cover every committed point; on error they cover the
// batches written before the failure, which stay in the index until
// rollback removes them.
func (p *Processor) Index(ctx context.Context, chunks []models.Chunk, onBatch func(start, done, total int)) ([]string, error) {
	var ids []string
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		points := make([]vectorstore.Point, 0, end-start)
		for _, chunk := range chunks[start:end] {
			vector, err := p.embedder.Embed(ctx, chunk.Text)
			if err != nil {
				return ids, fmt.Errorf("%w: chunk %d: %w", ErrEmbedding, chunk.ChunkIndex, err)
			}
			points = append(points, vectorstore.Point{
				ID:      uuid.NewString(),
				Vector:  vector,
				Payload: chunk,
			})
		}

		if err := p.index.UpsertBatch(ctx, points); err != nil {
			return ids, fmt.Errorf("%w: batch at chunk %d: %w", ErrIndex, start, err)
		}
		for _, pt := range points {
			ids = append(ids, pt.ID)
		}
		if onBatch != nil {
			onBatch(start, end, len(chunks))
		}
	}
	return ids, nil
}
