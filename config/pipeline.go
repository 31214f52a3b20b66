package config

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	pipelineOnce   sync.Once
	pipelineConfig *PipelineConfig
)

// PipelineConfig holds ingestion pipeline tunables, read from pipeline.yaml
// at the project root. Missing file or fields fall back to defaults.
type PipelineConfig struct {
	ChunkSize       int    `yaml:"chunkSize"`       // tokens per chunk
	ChunkOverlap    int    `yaml:"chunkOverlap"`    // overlapping tokens between chunks
	EmbedBatchSize  int    `yaml:"embedBatchSize"`  // chunks per index upsert
	StorageBackend  string `yaml:"storageBackend"`  // "minio" or "s3"
	MaxUploadSizeMB int    `yaml:"maxUploadSizeMB"` // per-file cap
	MaxUploadFiles  int    `yaml:"maxUploadFiles"`  // files per upload request
}

func GetPipelineConfig() *PipelineConfig {
	pipelineOnce.Do(func() {
		pipelineConfig = &PipelineConfig{
			ChunkSize:       800,
			ChunkOverlap:    100,
			EmbedBatchSize:  50,
			StorageBackend:  "minio",
			MaxUploadSizeMB: 100,
			MaxUploadFiles:  10,
		}

		_, filename, _, _ := runtime.Caller(0)
		rootDir := filepath.Dir(filepath.Dir(filename))
		path := filepath.Join(rootDir, "pipeline.yaml")

		data, err := os.ReadFile(path)
		if err != nil {
			return
		}
		// Keep defaults on parse failure.
		_ = yaml.Unmarshal(data, pipelineConfig)
	})
	return pipelineConfig
}
