package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JobStatus is the ingestion job state. completed and failed are terminal
// except for the one allowed transition to rolled_back.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusRunning    JobStatus = "running"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRolledBack JobStatus = "rolled_back"
)

// Terminal reports whether no further stage execution happens in s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusRolledBack
}

// Pipeline stages.
const (
	StageBronze    = "bronze"
	StageSilver    = "silver"
	StageGold      = "gold"
	StageCompleted = "completed"
	StageFailed    = "failed"
)

// RollbackSnapshot records what a successful run wrote to the index.
// It is the sole input to a precise rollback.
type RollbackSnapshot struct {
	DocumentID string   `json:"document_id"`
	PointIDs   []string `json:"point_ids"`
}

// IngestJob tracks one pipeline run over one document. Jobs are never
// deleted; they are the audit trail of ingestion attempts.
type IngestJob struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	DocumentID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"documentId"`
	Status           JobStatus      `gorm:"type:varchar(20);default:'queued';index" json:"status"`
	Stage            string         `gorm:"type:varchar(50);default:'queued'" json:"stage"`
	Progress         float64        `gorm:"default:0" json:"progress"`
	Logs             datatypes.JSON `gorm:"default:'[]'" json:"logs"`
	Error            string         `gorm:"type:text" json:"error,omitempty"`
	RollbackSnapshot datatypes.JSON `json:"rollbackSnapshot,omitempty"`
	StartedAt        *time.Time     `json:"startedAt,omitempty"`
	CompletedAt      *time.Time     `json:"completedAt,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"createdAt"`
}

func (IngestJob) TableName() string {
	return "ingest_jobs"
}

// Snapshot decodes the stored rollback snapshot, or returns nil when the
// job never completed successfully.
func (j *IngestJob) Snapshot() *RollbackSnapshot {
	if len(j.RollbackSnapshot) == 0 {
		return nil
	}
	var snap RollbackSnapshot
	if err := json.Unmarshal(j.RollbackSnapshot, &snap); err != nil {
		return nil
	}
	if snap.DocumentID == "" {
		return nil
	}
	return &snap
}

// SetSnapshot encodes snap into the JSON column.
func (j *IngestJob) SetSnapshot(snap *RollbackSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	j.RollbackSnapshot = datatypes.JSON(data)
	return nil
}

// EventList decodes the persisted event mirror.
func (j *IngestJob) EventList() []Event {
	if len(j.Logs) == 0 {
		return nil
	}
	var events []Event
	if err := json.Unmarshal(j.Logs, &events); err != nil {
		return nil
	}
	return events
}
