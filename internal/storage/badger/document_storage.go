package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DocumentStorage implements the DocumentStorage interface for Badger
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) SaveDocument(doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetDocument(id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.Store().Get(id, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("document not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStorage) UpdateDocument(doc *models.Document) error {
	return s.SaveDocument(doc)
}

// DeleteDocument removes the document along with its fields and transcript
func (s *DocumentStorage) DeleteDocument(id string) error {
	if err := s.db.Store().Delete(id, &models.Document{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if err := s.db.Store().DeleteMatching(&models.ExtractedField{}, badgerhold.Where("DocumentID").Eq(id)); err != nil {
		return fmt.Errorf("failed to delete document fields: %w", err)
	}
	if err := s.db.Store().DeleteMatching(&models.Transcript{}, badgerhold.Where("DocumentID").Eq(id)); err != nil {
		return fmt.Errorf("failed to delete document transcript: %w", err)
	}
	return nil
}

func (s *DocumentStorage) ListDocumentsByJob(jobID string) ([]*models.Document, error) {
	var docs []models.Document
	if err := s.db.Store().Find(&docs, badgerhold.Where("JobID").Eq(jobID).SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list job documents: %w", err)
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

// ListStaleProcessing returns documents stuck in processing older than cutoff
func (s *DocumentStorage) ListStaleProcessing(cutoffUnix int64) ([]*models.Document, error) {
	cutoff := time.Unix(cutoffUnix, 0)

	var docs []models.Document
	err := s.db.Store().Find(&docs,
		badgerhold.Where("Status").Eq(models.DocumentStatusProcessing).And("UpdatedAt").Lt(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to list stale documents: %w", err)
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStorage) SaveJob(job *models.IngestJob) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetJob(id string) (*models.IngestJob, error) {
	var job models.IngestJob
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *DocumentStorage) UpdateJob(job *models.IngestJob) error {
	return s.SaveJob(job)
}

func (s *DocumentStorage) SaveReviewEntry(entry *models.ReviewEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("review entry ID is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(entry.ID, entry); err != nil {
		return fmt.Errorf("failed to save review entry: %w", err)
	}
	return nil
}

func (s *DocumentStorage) ListReviewEntries(jobID string) ([]*models.ReviewEntry, error) {
	var entries []models.ReviewEntry
	if err := s.db.Store().Find(&entries, badgerhold.Where("JobID").Eq(jobID).SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list review entries: %w", err)
	}

	result := make([]*models.ReviewEntry, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}
