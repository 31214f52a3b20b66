package pipeline

import "errors"

// Stage failure sentinels. Every pipeline error wraps one of these so
// callers can tell which stage broke without parsing messages.
var (
	ErrStorage    = errors.New("object storage read failed")
	ErrExtraction = errors.New("text extraction failed")
	ErrEmbedding  = errors.New("embedding provider failed")
	ErrIndex      = errors.New("vector index write failed")

	// ErrInvalidState rejects an operation on a job whose status does not
	// allow it, e.g. rolling back a running job.
	ErrInvalidState = errors.New("job is not in a valid state for this operation")
)
