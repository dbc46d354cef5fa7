package interfaces

import (
	"github.com/ternarybob/scriba/internal/models"
)

// DocumentStorage persists documents and their batch jobs
type DocumentStorage interface {
	SaveDocument(doc *models.Document) error
	GetDocument(id string) (*models.Document, error)
	UpdateDocument(doc *models.Document) error
	// DeleteDocument removes the document along with its fields and transcript
	DeleteDocument(id string) error
	ListDocumentsByJob(jobID string) ([]*models.Document, error)
	// ListStaleProcessing returns documents stuck in processing older than cutoff
	ListStaleProcessing(cutoffUnix int64) ([]*models.Document, error)

	SaveJob(job *models.IngestJob) error
	GetJob(id string) (*models.IngestJob, error)
	UpdateJob(job *models.IngestJob) error

	SaveReviewEntry(entry *models.ReviewEntry) error
	ListReviewEntries(jobID string) ([]*models.ReviewEntry, error)
}

// FieldStorage is the high-throughput fields store. BulkInsertFields writes
// all rows and the parent document summary in one transaction; on failure no
// rows persist and the document is marked failed by the caller.
type FieldStorage interface {
	BulkInsertFields(documentID, jobID string, fields []*models.ExtractedField) (int, error)
	DeleteFields(documentID string) error
	GetFieldsByDocument(documentID string) ([]*models.ExtractedField, error)
	// GetFieldsByDocuments loads fields for a set of documents in one pass,
	// grouped by document ID.
	GetFieldsByDocuments(documentIDs []string) (map[string][]*models.ExtractedField, error)
	// ListFieldNames returns distinct field names with a sample value each,
	// grouped by field group, for the mapping resolver.
	ListFieldNames(documentIDs []string) (map[string][]models.FieldSample, error)
}

// TranscriptStorage persists document transcripts
type TranscriptStorage interface {
	SaveTranscript(t *models.Transcript) error
	GetTranscript(documentID string) (*models.Transcript, error)
	DeleteTranscript(documentID string) error
}

// TemplateStorage persists extraction templates and their ordered columns
type TemplateStorage interface {
	SaveTemplate(tpl *models.ExtractionTemplate, columns []*models.TemplateColumn) error
	GetTemplate(id string) (*models.ExtractionTemplate, error)
	GetColumns(templateID string) ([]*models.TemplateColumn, error)
	// ReplaceColumns deletes and reinserts a template's columns atomically
	ReplaceColumns(templateID string, columns []*models.TemplateColumn) error
	ListTemplates(documentType string) ([]*models.ExtractionTemplate, error)
	IncrementUsage(templateID string) error
	DeleteTemplate(id string) error
}

// StorageManager aggregates the storage interfaces over one database
type StorageManager interface {
	DocumentStorage() DocumentStorage
	FieldStorage() FieldStorage
	TranscriptStorage() TranscriptStorage
	TemplateStorage() TemplateStorage
	Close() error
}
