package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/services/flatten"
	"github.com/ternarybob/scriba/internal/services/pipeline"
	"github.com/ternarybob/scriba/internal/services/transcript"
	"github.com/ternarybob/scriba/internal/services/workers"
)

// Options selects the extraction behavior for one document or job run
type Options struct {
	Task         interfaces.ExtractionTask
	DocumentType string
	// TemplateHints is rendered template context for template-guided
	// extraction; empty otherwise.
	TemplateHints string
}

// Service orchestrates document ingestion: fetch bytes from the source,
// run the page pipeline, flatten and bulk-load fields, build the
// transcript, and roll the page outcomes up into a document status.
type Service struct {
	storage     interfaces.StorageManager
	pipeline    *pipeline.Pipeline
	transcripts *transcript.Builder
	llm         interfaces.ExtractionClient
	config      *common.Config
	logger      arbor.ILogger

	mu      sync.RWMutex
	sources map[string]interfaces.SourceAdapter
}

// NewService creates an ingest service
func NewService(storage interfaces.StorageManager, pipe *pipeline.Pipeline, llm interfaces.ExtractionClient, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		storage:     storage,
		pipeline:    pipe,
		transcripts: transcript.NewBuilder(),
		llm:         llm,
		config:      config,
		logger:      logger,
		sources:     make(map[string]interfaces.SourceAdapter),
	}
}

// RegisterSource makes a source adapter available by name
func (s *Service) RegisterSource(adapter interfaces.SourceAdapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[adapter.Name()] = adapter
}

func (s *Service) source(name string) (interfaces.SourceAdapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	adapter, ok := s.sources[name]
	if !ok {
		return nil, fmt.Errorf("no source adapter registered for %q", name)
	}
	return adapter, nil
}

// ProcessDocument runs the full extraction for one stored document. The
// document must exist; its source adapter and path say where the bytes
// live. Partial page failures roll up to needs_review with a review
// queue entry; total failure to failed.
func (s *Service) ProcessDocument(ctx context.Context, documentID string, opts Options) (*models.ProcessResult, error) {
	start := time.Now()
	docs := s.storage.DocumentStorage()

	doc, err := docs.GetDocument(documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == models.DocumentStatusProcessing {
		return nil, fmt.Errorf("document %s is already processing", documentID)
	}

	adapter, err := s.source(doc.SourceAdapter)
	if err != nil {
		return nil, s.failDocument(doc, "source", err)
	}

	data, err := adapter.Fetch(ctx, doc.SourcePath)
	if err != nil {
		return nil, s.failDocument(doc, "fetch", err)
	}
	doc.ByteSize = int64(len(data))

	now := time.Now()
	doc.Status = models.DocumentStatusProcessing
	doc.ProcessingStartedAt = &now
	doc.UpdatedAt = now
	if err := docs.UpdateDocument(doc); err != nil {
		return nil, err
	}

	task := opts.Task
	if task == "" {
		task = interfaces.TaskWithoutTemplateExtraction
	}

	s.logger.Info().
		Str("document_id", doc.ID).
		Str("filename", doc.Filename).
		Str("task", string(task)).
		Msg("Processing document")

	runResult, err := s.pipeline.Run(ctx, &pipeline.Request{
		DocumentID:    doc.ID,
		JobID:         doc.JobID,
		PDFBytes:      data,
		Task:          task,
		DocumentType:  opts.DocumentType,
		TemplateHints: opts.TemplateHints,
	})
	if err != nil {
		return nil, s.failDocument(doc, "pipeline", err)
	}

	persistStart := time.Now()
	fields := s.flattenPages(doc, runResult.Pages)
	if _, err := s.storage.FieldStorage().BulkInsertFields(doc.ID, doc.JobID, fields); err != nil {
		return nil, s.failDocument(doc, "bulk_load", err)
	}
	persistMs := time.Since(persistStart).Milliseconds()

	t := s.transcripts.Build(doc.ID, doc.JobID, runResult.Pages)
	if err := s.storage.TranscriptStorage().SaveTranscript(t); err != nil {
		s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to save transcript")
	}

	s.rollupStatus(doc, runResult)
	doc.TokensUsed = runResult.TokensUsed
	doc.ModelVersion = s.llm.ModelVersion()
	doc.Timings = models.PhaseTimings{
		ResolveMs:    runResult.ResolveMs,
		ExtractionMs: runResult.ExtractionMs,
		PersistMs:    persistMs,
		TranscriptMs: t.GenerationTimeMs,
		TotalMs:      time.Since(start).Milliseconds(),
	}
	completed := time.Now()
	doc.ProcessingCompletedAt = &completed
	doc.UpdatedAt = completed

	if err := docs.UpdateDocument(doc); err != nil {
		return nil, err
	}

	if doc.Status == models.DocumentStatusNeedsReview {
		s.queueReview(doc, runResult)
	}

	s.logger.Info().
		Str("document_id", doc.ID).
		Str("status", string(doc.Status)).
		Int("pages_processed", doc.PagesProcessed).
		Int("pages_failed", doc.PagesFailed).
		Int("fields", doc.FieldsExtracted).
		Int("tokens", doc.TokensUsed).
		Int64("duration_ms", doc.Timings.TotalMs).
		Msg("Document processed")

	return &models.ProcessResult{
		Status:          doc.Status,
		PagesProcessed:  doc.PagesProcessed,
		PagesFailed:     doc.PagesFailed,
		FieldsExtracted: len(fields),
		TokensUsed:      doc.TokensUsed,
		ProcessingTime:  time.Since(start).Seconds(),
	}, nil
}

// flattenPages folds the per-page trees into ordered field rows, feeding
// pages in page order so field_order increases across the document.
func (s *Service) flattenPages(doc *models.Document, pages []*models.PageResult) []*models.ExtractedField {
	flattener := flatten.NewFlattener(doc.ID, doc.JobID, s.config.Mapping.ReviewCutoff)
	model := s.llm.ModelVersion()

	var fields []*models.ExtractedField
	for _, page := range pages {
		if page == nil || !page.Succeeded() {
			continue
		}
		for _, f := range flattener.FlattenPage(page.HierarchicalData, page.PageNumber) {
			field := f
			field.ModelVersion = model
			fields = append(fields, &field)
		}
	}
	return fields
}

// rollupStatus aggregates the page outcomes onto the document
func (s *Service) rollupStatus(doc *models.Document, result *pipeline.Result) {
	doc.PagesTotal = len(result.Pages)
	doc.PagesProcessed = result.PagesProcessed
	doc.PagesFailed = result.PagesFailed
	doc.FailedPages = nil
	for _, page := range result.Pages {
		if page != nil && !page.Succeeded() {
			doc.FailedPages = append(doc.FailedPages, page.PageNumber)
		}
	}

	switch {
	case result.PagesFailed == 0:
		doc.Status = models.DocumentStatusCompleted
		doc.ErrorMessage = ""
		doc.ErrorType = ""
	case result.PagesProcessed > 0:
		doc.Status = models.DocumentStatusNeedsReview
	default:
		doc.Status = models.DocumentStatusFailed
		doc.ErrorMessage = firstPageError(result.Pages)
		doc.ErrorType = "extraction"
	}
}

// queueReview records a review entry for a partially-failed document
func (s *Service) queueReview(doc *models.Document, result *pipeline.Result) {
	reason := fmt.Sprintf("%d of %d pages failed", doc.PagesFailed, doc.PagesTotal)
	if msg := firstPageError(result.Pages); msg != "" {
		reason += ": " + msg
	}

	entry := &models.ReviewEntry{
		ID:          common.NewReviewID(),
		DocumentID:  doc.ID,
		JobID:       doc.JobID,
		Reason:      reason,
		FailedPages: doc.FailedPages,
		CreatedAt:   time.Now(),
	}
	if err := s.storage.DocumentStorage().SaveReviewEntry(entry); err != nil {
		s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to queue review entry")
	}
}

func firstPageError(pages []*models.PageResult) string {
	for _, page := range pages {
		if page == nil {
			continue
		}
		if page.TimedOut {
			return fmt.Sprintf("page %d: timeout", page.PageNumber)
		}
		if page.Error != "" {
			return fmt.Sprintf("page %d: %s", page.PageNumber, page.Error)
		}
	}
	return ""
}

// failDocument marks the document failed and returns the wrapped error
func (s *Service) failDocument(doc *models.Document, stage string, cause error) error {
	doc.Status = models.DocumentStatusFailed
	doc.ErrorMessage = cause.Error()
	doc.ErrorType = stage
	doc.UpdatedAt = time.Now()

	if err := s.storage.DocumentStorage().UpdateDocument(doc); err != nil {
		s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to persist failure status")
	}

	s.logger.Warn().
		Str("document_id", doc.ID).
		Str("stage", stage).
		Err(cause).
		Msg("Document failed")

	return fmt.Errorf("%s failed for document %s: %w", stage, doc.ID, cause)
}

// RunJob discovers documents at the named source, registers them under a
// new job, and processes them with bounded concurrency. Returns the
// completed job record.
func (s *Service) RunJob(ctx context.Context, jobName, sourceName string, batchSize int, opts Options) (*models.IngestJob, error) {
	adapter, err := s.source(sourceName)
	if err != nil {
		return nil, err
	}
	if err := adapter.Validate(ctx); err != nil {
		return nil, fmt.Errorf("source validation failed: %w", err)
	}

	infos, err := adapter.Discover(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("source discovery failed: %w", err)
	}

	docs := s.storage.DocumentStorage()
	job := &models.IngestJob{
		ID:             common.NewJobID(),
		Name:           jobName,
		SourceAdapter:  sourceName,
		Status:         "running",
		DocumentsTotal: len(infos),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := docs.SaveJob(job); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		doc := &models.Document{
			ID:            common.NewDocumentID(),
			JobID:         job.ID,
			Filename:      info.Filename,
			MimeType:      info.MimeType,
			ByteSize:      info.Size,
			Status:        models.DocumentStatusPending,
			SourceAdapter: sourceName,
			SourcePath:    info.SourcePath,
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}
		if err := docs.SaveDocument(doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("source", sourceName).
		Int("documents", len(ids)).
		Msg("Starting ingest job")

	concurrency := s.config.Pipeline.DocumentConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	pool := workers.NewPool("documents", concurrency, s.logger)
	pool.Start()

	var mu sync.Mutex
	completed, failed := 0, 0

	for _, id := range ids {
		documentID := id
		err := pool.Submit(func(context.Context) error {
			result, err := s.ProcessDocument(ctx, documentID, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil || result.Status == models.DocumentStatusFailed {
				failed++
			} else {
				completed++
			}
			return err
		})
		if err != nil {
			break
		}
	}
	pool.Wait()

	job.DocumentsCompleted = completed
	job.DocumentsFailed = failed
	job.Status = "completed"
	if failed > 0 && completed == 0 {
		job.Status = "failed"
	}
	job.UpdatedAt = time.Now()
	if err := docs.UpdateJob(job); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Int("completed", completed).
		Int("failed", failed).
		Msg("Ingest job finished")

	return job, nil
}

// RenderTemplateHints formats a template's columns as prompt context for
// template-guided extraction.
func RenderTemplateHints(columns []*models.TemplateColumn) string {
	if len(columns) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Extract values for the following fields:\n")
	for _, col := range columns {
		sb.WriteString("- ")
		sb.WriteString(col.ExcelColumn)
		if col.ExtractionHint != "" {
			sb.WriteString(": ")
			sb.WriteString(col.ExtractionHint)
		}
		if len(col.SearchKeywords) > 0 {
			fmt.Fprintf(&sb, " (keywords: %s)", strings.Join(col.SearchKeywords, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
