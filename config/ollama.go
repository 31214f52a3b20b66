package config

import (
	"sync"
	"time"
)

var (
	ollamaOnce   sync.Once
	ollamaConfig *OllamaConfig
)

type OllamaConfig struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

func GetOllamaConfig() *OllamaConfig {
	ollamaOnce.Do(func() {
		loadEnv()

		ollamaConfig = &OllamaConfig{
			Endpoint: getEnv("OLLAMA_ENDPOINT", "http://localhost:11434"),
			Model:    getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			Timeout:  time.Duration(getEnvInt("OLLAMA_TIMEOUT_SECONDS", 60)) * time.Second,
		}
	})
	return ollamaConfig
}
