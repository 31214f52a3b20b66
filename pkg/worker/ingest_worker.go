package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/fiscalia/docindex/pkg/logger"
	"github.com/fiscalia/docindex/pkg/queue"
)

// Runner executes one pipeline run for a job. Implemented by
// pipeline.Orchestrator.
type Runner interface {
	Run(ctx context.Context, jobID uuid.UUID) error
}

// IngestWorker consumes ingest tasks and drives them through the pipeline.
// Pipeline failures are recorded on the job itself, so the task is never
// retried: the handler swallows run errors after logging them.
type IngestWorker struct {
	BaseWorker
	runner Runner
}

func NewIngestWorker(cfg *Config, runner Runner, log logger.Logger) *IngestWorker {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
		},
	)

	w := &IngestWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		runner: runner,
	}

	w.mux.HandleFunc(queue.TaskTypeDocumentIngest, w.handleIngest)
	return w
}

func (w *IngestWorker) handleIngest(ctx context.Context, t *asynq.Task) error {
	var task queue.IngestTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal ingest task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal ingest task: %w", asynq.SkipRetry)
	}

	jobID, err := uuid.Parse(task.JobID)
	if err != nil {
		w.logger.Error("Invalid job id in ingest task",
			logger.String("jobId", task.JobID),
			logger.Error(err),
		)
		return fmt.Errorf("invalid job id %q: %w", task.JobID, asynq.SkipRetry)
	}

	w.logger.Info("Processing ingest task",
		logger.String("jobId", task.JobID),
		logger.String("documentId", task.DocumentID),
	)

	if err := w.runner.Run(ctx, jobID); err != nil {
		// The orchestrator already marked the job failed; returning nil
		// keeps asynq from counting this as a processing error.
		w.logger.Error("Pipeline run failed",
			logger.String("jobId", task.JobID),
			logger.Error(err),
		)
	}
	return nil
}

func (w *IngestWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}
