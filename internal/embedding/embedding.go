// Package embedding maps text to fixed-length vectors via a remote model
// service.
package embedding

import "context"

// Embedder converts one text into its vector representation. Stateless;
// one remote call per text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
