// Package queue hands ingestion work from the API server to the worker
// through asynq. Tasks are enqueued with zero retries: a failed run is a
// terminal job state, re-running is an explicit reindex.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	cfg "github.com/fiscalia/docindex/config"
)

const (
	TaskTypeDocumentIngest = "document:ingest"

	defaultQueue   = "default"
	processTimeout = 30 * time.Minute
)

// IngestTask is the payload carried from enqueue to the worker. The job id
// doubles as the asynq task id so one job is never enqueued twice.
type IngestTask struct {
	DocumentID string `json:"documentId"`
	JobID      string `json:"jobId"`
}

type Queue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewQueue() *Queue {
	redisCfg := cfg.GetRedisConfig()
	redisOpt := asynq.RedisClientOpt{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	}

	return &Queue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
	}
}

// EnqueueIngest schedules one pipeline run.
func (q *Queue) EnqueueIngest(ctx context.Context, task IngestTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal ingest task: %w", err)
	}

	opts := []asynq.Option{
		asynq.Queue(defaultQueue),
		asynq.MaxRetry(0),
		asynq.Timeout(processTimeout),
		asynq.TaskID(task.JobID),
	}

	t := asynq.NewTask(TaskTypeDocumentIngest, payload, opts...)
	if _, err := q.client.EnqueueContext(ctx, t); err != nil {
		return fmt.Errorf("failed to enqueue ingest task: %w", err)
	}
	return nil
}

// Inflight reports how many ingest tasks are pending or active.
func (q *Queue) Inflight() (int, error) {
	info, err := q.inspector.GetQueueInfo(defaultQueue)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}
	return info.Pending + info.Active, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}
