package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the job status carried on a progress event.
type EventStatus string

const (
	EventRunning    EventStatus = "running"
	EventCompleted  EventStatus = "completed"
	EventFailed     EventStatus = "failed"
	EventRolledBack EventStatus = "rolled_back"
)

// Terminal reports whether an event with this status ends a log tail.
func (s EventStatus) Terminal() bool {
	return s == EventCompleted || s == EventFailed || s == EventRolledBack
}

// Event is one immutable progress record in a job's log.
type Event struct {
	Message   string      `json:"message"`
	Progress  float64     `json:"progress"`
	Stage     string      `json:"stage"`
	Status    EventStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

// Chunk is one overlapping text window of a document, the unit of
// indexing. The document metadata is denormalized onto every chunk so the
// vector payload is self-describing.
type Chunk struct {
	Text       string       `json:"text"`
	DocumentID uuid.UUID    `json:"document_id"`
	Filename   string       `json:"filename"`
	DocType    DocumentType `json:"doc_type"`
	Year       int          `json:"year"`
	Domain     string       `json:"domain"`
	Tags       []string     `json:"tags"`
	ChunkIndex int          `json:"chunk_index"`
}
