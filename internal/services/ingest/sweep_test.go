package ingest

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/models"
)

type fakeDocumentStorage struct {
	stale    []*models.Document
	staleErr error

	byID    map[string]*models.Document
	updated []*models.Document
	reviews []*models.ReviewEntry
}

func (f *fakeDocumentStorage) SaveDocument(doc *models.Document) error {
	if f.byID == nil {
		f.byID = make(map[string]*models.Document)
	}
	f.byID[doc.ID] = doc
	return nil
}
func (f *fakeDocumentStorage) GetDocument(id string) (*models.Document, error) {
	if doc, ok := f.byID[id]; ok {
		return doc, nil
	}
	return nil, fmt.Errorf("document not found: %s", id)
}
func (f *fakeDocumentStorage) UpdateDocument(doc *models.Document) error {
	f.updated = append(f.updated, doc)
	if f.byID == nil {
		f.byID = make(map[string]*models.Document)
	}
	f.byID[doc.ID] = doc
	return nil
}
func (f *fakeDocumentStorage) DeleteDocument(id string) error { return nil }
func (f *fakeDocumentStorage) ListDocumentsByJob(jobID string) ([]*models.Document, error) {
	return nil, nil
}
func (f *fakeDocumentStorage) ListStaleProcessing(cutoffUnix int64) ([]*models.Document, error) {
	return f.stale, f.staleErr
}
func (f *fakeDocumentStorage) SaveJob(job *models.IngestJob) error         { return nil }
func (f *fakeDocumentStorage) GetJob(id string) (*models.IngestJob, error) { return nil, nil }
func (f *fakeDocumentStorage) UpdateJob(job *models.IngestJob) error       { return nil }
func (f *fakeDocumentStorage) SaveReviewEntry(entry *models.ReviewEntry) error {
	f.reviews = append(f.reviews, entry)
	return nil
}
func (f *fakeDocumentStorage) ListReviewEntries(jobID string) ([]*models.ReviewEntry, error) {
	return nil, nil
}

func TestSweep_ParksStaleDocuments(t *testing.T) {
	storage := &fakeDocumentStorage{stale: []*models.Document{
		{ID: "doc_partial", JobID: "job_1", Status: models.DocumentStatusProcessing, PagesProcessed: 2, FailedPages: []int{3}},
		{ID: "doc_nothing", JobID: "job_1", Status: models.DocumentStatusProcessing},
	}}
	sweeper := NewSweeper(storage, &common.SweepConfig{MaxAge: "15m"}, common.GetLogger())

	sweeper.Sweep()

	require.Len(t, storage.updated, 2)

	partial := storage.updated[0]
	assert.Equal(t, models.DocumentStatusNeedsReview, partial.Status, "partial progress goes to review")
	assert.Equal(t, "stale", partial.ErrorType)
	assert.Contains(t, partial.ErrorMessage, "15m")

	nothing := storage.updated[1]
	assert.Equal(t, models.DocumentStatusFailed, nothing.Status, "no progress fails outright")
	assert.Equal(t, "stale", nothing.ErrorType)

	require.Len(t, storage.reviews, 1, "only the review-bound document is queued")
	assert.Equal(t, "doc_partial", storage.reviews[0].DocumentID)
	assert.Equal(t, []int{3}, storage.reviews[0].FailedPages)
}

func TestSweep_NothingStale(t *testing.T) {
	storage := &fakeDocumentStorage{}
	sweeper := NewSweeper(storage, &common.SweepConfig{}, common.GetLogger())

	sweeper.Sweep()
	assert.Empty(t, storage.updated)
	assert.Empty(t, storage.reviews)
}

func TestSweep_DefaultMaxAge(t *testing.T) {
	storage := &fakeDocumentStorage{stale: []*models.Document{
		{ID: "doc_1", Status: models.DocumentStatusProcessing},
	}}
	sweeper := NewSweeper(storage, &common.SweepConfig{MaxAge: "garbage"}, common.GetLogger())

	sweeper.Sweep()
	require.Len(t, storage.updated, 1)
	assert.Contains(t, storage.updated[0].ErrorMessage, defaultSweepMaxAge.String())
}

func TestSweeper_DisabledStart(t *testing.T) {
	sweeper := NewSweeper(&fakeDocumentStorage{}, &common.SweepConfig{Enabled: false}, common.GetLogger())
	require.NoError(t, sweeper.Start())
	sweeper.Stop()
}

func TestSweeper_InvalidSchedule(t *testing.T) {
	sweeper := NewSweeper(&fakeDocumentStorage{}, &common.SweepConfig{Enabled: true, Schedule: "not a cron"}, common.GetLogger())
	assert.Error(t, sweeper.Start())
}

func TestSweeper_StartStop(t *testing.T) {
	sweeper := NewSweeper(&fakeDocumentStorage{}, &common.SweepConfig{Enabled: true, Schedule: "@every 1h"}, common.GetLogger())
	require.NoError(t, sweeper.Start())

	done := make(chan struct{})
	go func() {
		sweeper.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
