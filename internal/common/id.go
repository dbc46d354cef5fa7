package common

import (
	"github.com/google/uuid"
)

// NewDocumentID generates a unique document ID with the "doc_" prefix
// Format: doc_<uuid>
func NewDocumentID() string {
	return "doc_" + uuid.New().String()
}

// NewJobID generates a unique ingest job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewTemplateID generates a unique extraction template ID with the "tpl_" prefix
func NewTemplateID() string {
	return "tpl_" + uuid.New().String()
}

// NewReviewID generates a unique review queue entry ID with the "rev_" prefix
func NewReviewID() string {
	return "rev_" + uuid.New().String()
}
