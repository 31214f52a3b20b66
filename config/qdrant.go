package config

import (
	"sync"
	"time"
)

var (
	qdrantOnce   sync.Once
	qdrantConfig *QdrantConfig
)

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

func GetQdrantConfig() *QdrantConfig {
	qdrantOnce.Do(func() {
		loadEnv()

		qdrantConfig = &QdrantConfig{
			URL:        getEnv("QDRANT_URL", "http://localhost:6333"),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "docindex_chunks"),
			Dimension:  getEnvInt("QDRANT_DIMENSION", 768),
			Timeout:    time.Duration(getEnvInt("QDRANT_TIMEOUT_SECONDS", 30)) * time.Second,
		}
	})
	return qdrantConfig
}
