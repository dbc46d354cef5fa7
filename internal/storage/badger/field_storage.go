package badger

import (
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// FieldStorage implements the FieldStorage interface for Badger. Fields are
// keyed by (document ID, field order) so reads come back in flattener order
// without sorting.
type FieldStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewFieldStorage creates a new FieldStorage instance
func NewFieldStorage(db *BadgerDB, logger arbor.ILogger) interfaces.FieldStorage {
	return &FieldStorage{
		db:     db,
		logger: logger,
	}
}

func fieldKey(documentID string, order int) string {
	return fmt.Sprintf("%s#%06d", documentID, order)
}

// BulkInsertFields writes all rows and the parent document summary in one
// transaction. On any failure nothing persists; the caller marks the
// document failed.
func (s *FieldStorage) BulkInsertFields(documentID, jobID string, fields []*models.ExtractedField) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("document ID is required")
	}

	start := time.Now()
	store := s.db.Store()

	err := store.Badger().Update(func(tx *badgerdb.Txn) error {
		for _, field := range fields {
			field.DocumentID = documentID
			field.JobID = jobID
			if err := store.TxUpsert(tx, fieldKey(documentID, field.FieldOrder), field); err != nil {
				return fmt.Errorf("failed to insert field %s: %w", field.FieldName, err)
			}
		}

		var doc models.Document
		if err := store.TxGet(tx, documentID, &doc); err != nil {
			if err == badgerhold.ErrNotFound {
				return nil
			}
			return fmt.Errorf("failed to load document for summary update: %w", err)
		}

		applyFieldSummary(&doc, fields)
		if err := store.TxUpdate(tx, documentID, &doc); err != nil {
			return fmt.Errorf("failed to update document summary: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug().
		Str("document_id", documentID).
		Int("fields", len(fields)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Bulk field insert completed")

	return len(fields), nil
}

// applyFieldSummary folds the flattened fields into the document's summary
// counters.
func applyFieldSummary(doc *models.Document, fields []*models.ExtractedField) {
	doc.FieldsExtracted = len(fields)

	reviews := 0
	confidenceSum := 0.0
	confidenceCount := 0
	for _, f := range fields {
		if f.NeedsManualReview {
			reviews++
		}
		if f.ConfidenceScore != nil {
			confidenceSum += *f.ConfidenceScore
			confidenceCount++
		}
	}

	doc.FieldsNeedingReview = reviews
	if confidenceCount > 0 {
		doc.AverageConfidence = confidenceSum / float64(confidenceCount)
	}
	doc.UpdatedAt = time.Now()
}

func (s *FieldStorage) DeleteFields(documentID string) error {
	err := s.db.Store().DeleteMatching(&models.ExtractedField{}, badgerhold.Where("DocumentID").Eq(documentID))
	if err != nil {
		return fmt.Errorf("failed to delete fields: %w", err)
	}
	return nil
}

func (s *FieldStorage) GetFieldsByDocument(documentID string) ([]*models.ExtractedField, error) {
	var fields []models.ExtractedField
	err := s.db.Store().Find(&fields, badgerhold.Where("DocumentID").Eq(documentID).SortBy("FieldOrder"))
	if err != nil {
		return nil, fmt.Errorf("failed to load fields: %w", err)
	}

	result := make([]*models.ExtractedField, len(fields))
	for i := range fields {
		result[i] = &fields[i]
	}
	return result, nil
}

// GetFieldsByDocuments loads fields for a set of documents in one pass,
// grouped by document ID.
func (s *FieldStorage) GetFieldsByDocuments(documentIDs []string) (map[string][]*models.ExtractedField, error) {
	if len(documentIDs) == 0 {
		return map[string][]*models.ExtractedField{}, nil
	}

	ids := make([]interface{}, len(documentIDs))
	for i, id := range documentIDs {
		ids[i] = id
	}

	var fields []models.ExtractedField
	err := s.db.Store().Find(&fields, badgerhold.Where("DocumentID").In(ids...).SortBy("FieldOrder"))
	if err != nil {
		return nil, fmt.Errorf("failed to load fields: %w", err)
	}

	grouped := make(map[string][]*models.ExtractedField, len(documentIDs))
	for i := range fields {
		f := &fields[i]
		grouped[f.DocumentID] = append(grouped[f.DocumentID], f)
	}
	return grouped, nil
}

// ListFieldNames returns distinct field names with a sample value each,
// grouped by field group, for the mapping resolver.
func (s *FieldStorage) ListFieldNames(documentIDs []string) (map[string][]models.FieldSample, error) {
	grouped, err := s.GetFieldsByDocuments(documentIDs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	result := make(map[string][]models.FieldSample)
	for _, fields := range grouped {
		for _, f := range fields {
			if seen[f.FieldName] {
				continue
			}
			seen[f.FieldName] = true

			group := f.FieldGroup
			if group == "" {
				group = "general"
			}
			result[group] = append(result[group], models.FieldSample{
				FieldName:   f.FieldName,
				SampleValue: f.Value(),
				Section:     f.SectionName,
				Page:        f.PageNumber,
			})
		}
	}
	return result, nil
}
