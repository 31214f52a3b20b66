package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DocumentType classifies the source material.
type DocumentType string

const (
	DocTypeCode        DocumentType = "code"
	DocTypeCircular    DocumentType = "circulaire"
	DocTypeLaw         DocumentType = "loi"
	DocTypeDecree      DocumentType = "decret"
	DocTypeInstruction DocumentType = "instruction"
)

// DocumentStatus is the document lifecycle state.
type DocumentStatus string

const (
	DocStatusPending    DocumentStatus = "pending"
	DocStatusProcessing DocumentStatus = "processing"
	DocStatusIndexed    DocumentStatus = "indexed"
	DocStatusFailed     DocumentStatus = "failed"
	DocStatusRolledBack DocumentStatus = "rolled_back"
)

// Document is an uploaded source file tracked through ingestion.
// chunk_count is non-zero only while status is indexed.
type Document struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Filename     string         `gorm:"type:varchar(255);not null" json:"filename"`
	StorageKey   string         `gorm:"type:varchar(512);uniqueIndex" json:"storageKey"`
	DocType      DocumentType   `gorm:"type:varchar(50);not null" json:"docType"`
	Year         int            `json:"year"`
	Domain       string         `gorm:"type:varchar(100);index" json:"domain"`
	Tags         datatypes.JSON `gorm:"default:'[]'" json:"tags"`
	Status       DocumentStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	ChunkCount   int            `gorm:"default:0" json:"chunkCount"`
	QualityScore *float64       `json:"qualityScore,omitempty"`
	JobID        *uuid.UUID     `gorm:"type:uuid" json:"jobId,omitempty"`
	IndexedAt    *time.Time     `json:"indexedAt,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"createdAt"`
}

func (Document) TableName() string {
	return "documents"
}
