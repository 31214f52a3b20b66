package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/fiscalia/docindex/pkg/logger"
	"github.com/fiscalia/docindex/pkg/storage/minio"
	"github.com/fiscalia/docindex/pkg/storage/s3"
)

type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// Storage is the object store holding uploaded documents. Keys are
// assigned by the caller and stable for the document's lifetime.
type Storage interface {
	// Store writes the object and returns its key.
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	// Get opens the object for reading. The caller closes it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object.
	Delete(ctx context.Context, key string) error
}

// NewStorage picks the backend named in the pipeline configuration.
func NewStorage(storageType StorageType, log logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeS3:
		return s3.GetClient(log)
	case StorageTypeMinio:
		return minio.GetClient(log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
