package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/services/prompts"
	"github.com/ternarybob/scriba/internal/services/workers"
)

// bankHeaderWindow is how many leading pages are tried sequentially before
// giving up on table header detection for a bank statement.
const bankHeaderWindow = 3

// Request describes one document extraction run
type Request struct {
	DocumentID   string
	JobID        string
	PDFBytes     []byte
	Task         interfaces.ExtractionTask
	DocumentType string
	// TemplateHints is rendered template context appended to the prompt for
	// template-guided extraction.
	TemplateHints string
}

// Result aggregates the per-page outputs of one run
type Result struct {
	Pages          []*models.PageResult // page order, one entry per page
	PagesProcessed int
	PagesFailed    int
	TokensUsed     int
	ResolveMs      int64
	ExtractionMs   int64
}

// Pipeline runs the staged per-page extraction: text/image path selection,
// LLM calls, optional detection, parse and merge. Stage pools bound each
// stage's concurrency independently.
type Pipeline struct {
	resolver  interfaces.PageResolver
	llm       interfaces.ExtractionClient
	prompts   *prompts.Registry
	signature interfaces.Detector
	face      interfaces.Detector
	config    *common.PipelineConfig
	logger    arbor.ILogger

	pdfPool    *workers.StagePool
	encodePool *workers.StagePool
	llmPool    *workers.StagePool
	parsePool  *workers.StagePool
	detectPool *workers.StagePool
}

// New creates a pipeline with stage pools sized from config
func New(resolver interfaces.PageResolver, llm interfaces.ExtractionClient, registry *prompts.Registry, signature, face interfaces.Detector, config *common.PipelineConfig, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		resolver:   resolver,
		llm:        llm,
		prompts:    registry,
		signature:  signature,
		face:       face,
		config:     config,
		logger:     logger,
		pdfPool:    workers.NewStagePool("pdf", config.PDFWorkers),
		encodePool: workers.NewStagePool("encode", config.EncodeWorkers),
		llmPool:    workers.NewStagePool("llm", config.MaxWorkers),
		parsePool:  workers.NewStagePool("parse", config.ParseWorkers),
		detectPool: workers.NewStagePool("detect", config.ParseWorkers),
	}
}

// Run processes every page of the document and returns results in page order
func (p *Pipeline) Run(ctx context.Context, req *Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.ParsedDeadline())
	defer cancel()

	token := NewCancelToken()
	common.SafeGo(p.logger, "pipeline-deadline", func() {
		<-ctx.Done()
		token.Cancel()
	})

	resolveStart := time.Now()
	pageCount, err := p.resolver.PageCount(req.DocumentID, req.PDFBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer p.resolver.Release(req.DocumentID)

	p.logger.Info().
		Str("document_id", req.DocumentID).
		Int("pages", pageCount).
		Str("task", string(req.Task)).
		Msg("Starting page pipeline")

	run := &documentRun{
		req:       req,
		pageCount: pageCount,
		token:     token,
		results:   make([]*models.PageResult, pageCount),
	}

	extractStart := time.Now()
	if p.isBankStatement(req) {
		p.runBankStatement(ctx, run)
	} else {
		p.runParallel(ctx, run, 0, nil)
	}

	result := &Result{
		Pages:        run.results,
		ResolveMs:    extractStart.Sub(resolveStart).Milliseconds(),
		ExtractionMs: time.Since(extractStart).Milliseconds(),
	}
	for i := range run.results {
		if run.results[i] == nil {
			run.results[i] = p.unprocessedResult(req, i, ctx.Err() != nil)
		}
		page := run.results[i]
		result.TokensUsed += page.TokenUsage.TotalTokens
		if page.Succeeded() {
			result.PagesProcessed++
		} else {
			result.PagesFailed++
		}
	}

	p.logger.Info().
		Str("document_id", req.DocumentID).
		Int("processed", result.PagesProcessed).
		Int("failed", result.PagesFailed).
		Int("tokens", result.TokensUsed).
		Msg("Page pipeline finished")

	return result, nil
}

// documentRun is the shared state of one Run invocation
type documentRun struct {
	req       *Request
	pageCount int
	token     *CancelToken

	mu      sync.Mutex
	results []*models.PageResult

	headers []string
}

func (r *documentRun) setResult(pageIndex int, res *models.PageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[pageIndex] = res
}

func (p *Pipeline) isBankStatement(req *Request) bool {
	return req.DocumentType == "bank_statement" &&
		(req.Task == interfaces.TaskWithoutTemplateExtraction || req.Task == interfaces.TaskBankStatementExtraction)
}

// runBankStatement processes leading pages sequentially until table headers
// are detected (or the detection window runs out), then runs the remaining
// pages in parallel with the headers as context.
func (p *Pipeline) runBankStatement(ctx context.Context, run *documentRun) {
	next := 0
	window := bankHeaderWindow
	if window > run.pageCount {
		window = run.pageCount
	}

	for next < window {
		if run.token.IsCancelled() {
			return
		}
		res, headers := p.processPage(ctx, run, next, run.headers)
		run.setResult(next, res)
		next++

		if len(headers) > 0 {
			run.headers = headers
			break
		}
	}

	if next < run.pageCount {
		p.runParallel(ctx, run, next, run.headers)
	}
}

// runParallel processes pages from firstPage on, batching pagesPerWorker
// pages onto one slot. Within a batch pages run sequentially; across batches
// in parallel, bounded by the LLM stage pool.
func (p *Pipeline) runParallel(ctx context.Context, run *documentRun, firstPage int, headers []string) {
	batchSize := p.config.PagesPerWorker
	if batchSize <= 0 {
		batchSize = 1
	}

	var wg sync.WaitGroup
	for start := firstPage; start < run.pageCount; start += batchSize {
		end := start + batchSize
		if end > run.pageCount {
			end = run.pageCount
		}

		start, end := start, end
		wg.Add(1)
		common.SafeGo(p.logger, "pipeline-batch", func() {
			defer wg.Done()
			for i := start; i < end; i++ {
				if run.token.IsCancelled() {
					run.setResult(i, p.cancelledResult(run.req, i))
					continue
				}
				res, _ := p.processPage(ctx, run, i, headers)
				run.setResult(i, res)
			}
		})
	}
	wg.Wait()
}

func (p *Pipeline) cancelledResult(req *Request, pageIndex int) *models.PageResult {
	return &models.PageResult{
		DocumentID: req.DocumentID,
		PageNumber: pageIndex + 1,
		Cancelled:  true,
	}
}

func (p *Pipeline) unprocessedResult(req *Request, pageIndex int, timedOut bool) *models.PageResult {
	res := &models.PageResult{
		DocumentID: req.DocumentID,
		PageNumber: pageIndex + 1,
	}
	if timedOut {
		res.TimedOut = true
		res.Error = "pipeline deadline exceeded"
	} else {
		res.Cancelled = true
	}
	return res
}
