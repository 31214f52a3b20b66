package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/fiscalia/docindex/api/handlers"
	"github.com/fiscalia/docindex/api/routes"
	"github.com/fiscalia/docindex/config"
	"github.com/fiscalia/docindex/internal/chunker"
	"github.com/fiscalia/docindex/internal/embedding"
	"github.com/fiscalia/docindex/internal/eventlog/redislog"
	"github.com/fiscalia/docindex/internal/pipeline"
	"github.com/fiscalia/docindex/internal/repository"
	"github.com/fiscalia/docindex/internal/service/ingest"
	"github.com/fiscalia/docindex/internal/vectorstore/qdrant"
	"github.com/fiscalia/docindex/pkg/logger"
	"github.com/fiscalia/docindex/pkg/queue"
	"github.com/fiscalia/docindex/pkg/storage"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/server.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := repository.Open(config.GetPostgresConfig())
	if err != nil {
		log.Fatal("Failed to open database", logger.Error(err))
	}
	docs := repository.NewDocumentRepository(db)
	jobs := repository.NewJobRepository(db)

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
	events := redislog.NewLog(redisClient)

	q := queue.NewQueue()
	defer q.Close()

	// The server constructs the same orchestrator as the worker to serve
	// rollback requests; Run is never called here.
	orch := pipeline.NewOrchestrator(
		repository.NewPipelineStore(db),
		store,
		chunker.New(pipeCfg.ChunkSize, pipeCfg.ChunkOverlap),
		pipeline.NewProcessor(embedder, index, pipeCfg.EmbedBatchSize),
		pipeline.NewRollbacker(index),
		events,
		log.Named("pipeline"),
	)

	svc := ingest.NewService(docs, jobs, store, q, embedder, index, orch, log.Named("ingest"), pipeCfg)

	h := handlers.NewHandlers(svc, events, log.Named("api"))
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		log.Info("Server starting on port 8080")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
