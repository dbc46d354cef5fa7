package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// TranscriptStorage implements the TranscriptStorage interface for Badger.
// Transcripts are keyed by document ID; one per document.
type TranscriptStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTranscriptStorage creates a new TranscriptStorage instance
func NewTranscriptStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TranscriptStorage {
	return &TranscriptStorage{
		db:     db,
		logger: logger,
	}
}

func transcriptKey(documentID string) string {
	return "transcript:" + documentID
}

func (s *TranscriptStorage) SaveTranscript(t *models.Transcript) error {
	if t.DocumentID == "" {
		return fmt.Errorf("transcript document ID is required")
	}

	if err := s.db.Store().Upsert(transcriptKey(t.DocumentID), t); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

func (s *TranscriptStorage) GetTranscript(documentID string) (*models.Transcript, error) {
	var t models.Transcript
	if err := s.db.Store().Get(transcriptKey(documentID), &t); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("transcript not found for document: %s", documentID)
		}
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	return &t, nil
}

func (s *TranscriptStorage) DeleteTranscript(documentID string) error {
	if err := s.db.Store().Delete(transcriptKey(documentID), &models.Transcript{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}
