package chunker

import (
	"encoding/json"
	"strings"

	"github.com/fiscalia/docindex/internal/models"
)

// Chunker splits extracted text into overlapping token windows. Tokens are
// whitespace-delimited words; each window of Size tokens advances by
// Size-Overlap, so consecutive chunks share Overlap tokens.
type Chunker struct {
	size    int
	overlap int
}

// New returns a chunker with the given window size and overlap. Invalid
// values fall back to the defaults (800/100).
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = 100
		if overlap >= size {
			overlap = size / 8
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split windows text into chunks carrying doc's denormalized metadata.
// Zero tokens produce an empty list, not an error: an empty document is a
// degenerate success for the pipeline.
func (c *Chunker) Split(text string, doc *models.Document) []models.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var tags []string
	if len(doc.Tags) > 0 {
		tags = decodeTags([]byte(doc.Tags))
	}

	stride := c.size - c.overlap
	chunks := make([]models.Chunk, 0, (len(words)+stride-1)/stride)
	for start := 0; start < len(words); start += stride {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, models.Chunk{
			Text:       strings.Join(words[start:end], " "),
			DocumentID: doc.ID,
			Filename:   doc.Filename,
			DocType:    doc.DocType,
			Year:       doc.Year,
			Domain:     doc.Domain,
			Tags:       tags,
			ChunkIndex: len(chunks),
		})
	}
	return chunks
}

func decodeTags(raw []byte) []string {
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil
	}
	return tags
}
