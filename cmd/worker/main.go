package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/fiscalia/docindex/config"
	"github.com/fiscalia/docindex/internal/chunker"
	"github.com/fiscalia/docindex/internal/embedding"
	"github.com/fiscalia/docindex/internal/eventlog/redislog"
	"github.com/fiscalia/docindex/internal/pipeline"
	"github.com/fiscalia/docindex/internal/repository"
	"github.com/fiscalia/docindex/internal/vectorstore/qdrant"
	"github.com/fiscalia/docindex/pkg/logger"
	"github.com/fiscalia/docindex/pkg/storage"
	"github.com/fiscalia/docindex/pkg/worker"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := repository.Open(config.GetPostgresConfig())
	if err != nil {
		log.Fatal("Failed to open database", logger.Error(err))
	}

	pipeCfg := config.GetPipelineConfig()
	store, err := storage.NewStorage(storage.StorageType(pipeCfg.StorageBackend), log)
	if err != nil {
		log.Fatal("Failed to initialize storage", logger.Error(err))
	}

	qdrantCfg := config.GetQdrantConfig()
	index := qdrant.NewClient(qdrantCfg)
	if err := index.EnsureCollection(context.Background(), qdrantCfg.Dimension); err != nil {
		log.Fatal("Failed to ensure vector collection", logger.Error(err))
	}

	embedder := embedding.NewOllamaClient(config.GetOllamaConfig(), qdrantCfg.Dimension)
	defer embedder.Close()

	redisCfg := config.GetRedisConfig()
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	defer redisClient.Close()

	orch := pipeline.NewOrchestrator(
		repository.NewPipelineStore(db),
		store,
		chunker.New(pipeCfg.ChunkSize, pipeCfg.ChunkOverlap),
		pipeline.NewProcessor(embedder, index, pipeCfg.EmbedBatchSize),
		pipeline.NewRollbacker(index),
		redislog.NewLog(redisClient),
		log.Named("pipeline"),
	)

	workerCfg := &worker.Config{
		RedisAddr:     redisCfg.Addr,
		RedisPassword: redisCfg.Password,
		RedisDB:       redisCfg.DB,
		Concurrency:   4,
		Queues: map[string]int{
			"default": 1,
		},
	}

	ingestWorker := worker.NewIngestWorker(workerCfg, orch, log.Named("worker"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ingestWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker...")
	ingestWorker.Stop()
	log.Info("Worker stopped")
}
