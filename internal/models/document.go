package models

import (
	"time"
)

// DocumentStatus tracks a document through the extraction lifecycle
type DocumentStatus string

const (
	DocumentStatusPending     DocumentStatus = "pending"
	DocumentStatusProcessing  DocumentStatus = "processing"
	DocumentStatusCompleted   DocumentStatus = "completed"
	DocumentStatusNeedsReview DocumentStatus = "needs_review"
	DocumentStatusFailed      DocumentStatus = "failed"
)

// IsTerminal reports whether the status is a final state
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed || s == DocumentStatusNeedsReview
}

// PhaseTimings records per-phase durations for a processed document
type PhaseTimings struct {
	ResolveMs    int64 `json:"resolve_ms"`    // PDF decode, text extraction, rendering
	ExtractionMs int64 `json:"extraction_ms"` // LLM calls across all pages
	DetectionMs  int64 `json:"detection_ms"`  // Signature/face detection
	PersistMs    int64 `json:"persist_ms"`    // Flatten + bulk load
	TranscriptMs int64 `json:"transcript_ms"` // Transcript generation
	TotalMs      int64 `json:"total_ms"`
}

// Document represents one ingested document and its extraction summary.
// The pipeline run that owns the document is the only writer until the
// document reaches a terminal status.
type Document struct {
	ID       string `json:"id"`     // doc_{uuid}
	JobID    string `json:"job_id"` // Batch grouping
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	ByteSize int64  `json:"byte_size"`

	Status DocumentStatus `json:"status"`

	// Source adapter bookkeeping
	SourceAdapter string `json:"source_adapter,omitempty"`
	SourcePath    string `json:"source_path,omitempty"`

	// Extraction summary
	PagesTotal         int     `json:"pages_total"`
	PagesProcessed     int     `json:"pages_processed"`
	PagesFailed        int     `json:"pages_failed"`
	FieldsExtracted    int     `json:"fields_extracted"`
	FieldsNeedingReview int    `json:"fields_needing_review"`
	AverageConfidence  float64 `json:"average_confidence"`
	TokensUsed         int     `json:"tokens_used"`
	ModelVersion       string  `json:"model_version,omitempty"`

	Timings PhaseTimings `json:"timings"`

	// Failure diagnostics
	ErrorMessage string `json:"error_message,omitempty"`
	ErrorType    string `json:"error_type,omitempty"`
	FailedPages  []int  `json:"failed_pages,omitempty"`

	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty"`
}

// IngestJob groups documents submitted as one batch
type IngestJob struct {
	ID            string    `json:"id"` // job_{uuid}
	Name          string    `json:"name"`
	SourceAdapter string    `json:"source_adapter"`
	SourceAddress string    `json:"source_address"`
	Status        string    `json:"status"` // pending, running, completed, failed
	DocumentsTotal     int  `json:"documents_total"`
	DocumentsCompleted int  `json:"documents_completed"`
	DocumentsFailed    int  `json:"documents_failed"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ReviewEntry queues a partially-failed document for operator review
type ReviewEntry struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	JobID       string    `json:"job_id"`
	Reason      string    `json:"reason"`
	FailedPages []int     `json:"failed_pages"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProcessResult is the outcome returned to the queue worker for one document
type ProcessResult struct {
	Status          DocumentStatus `json:"status"`
	PagesProcessed  int            `json:"pages_processed"`
	PagesFailed     int            `json:"pages_failed"`
	FieldsExtracted int            `json:"fields_extracted"`
	TokensUsed      int            `json:"tokens_used"`
	ProcessingTime  float64        `json:"processing_time_s"`
}
