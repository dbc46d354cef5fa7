package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

// Format selects the export file type
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Request describes one export run
type Request struct {
	JobID       string
	Mappings    []*models.MappingResult
	DocumentIDs []string
	TemplateID  string
	Format      Format
}

// Result carries the rendered export
type Result struct {
	Filename  string
	RowCount  int
	Documents int
}

// Engine renders resolved mappings into XLSX/CSV files. Column order always
// follows the mapping order; rows follow document order with optional
// array expansion.
type Engine struct {
	documents interfaces.DocumentStorage
	fields    interfaces.FieldStorage
	templates interfaces.TemplateStorage
	config    *common.ExportConfig
	logger    arbor.ILogger
}

// NewEngine creates an export engine
func NewEngine(documents interfaces.DocumentStorage, fields interfaces.FieldStorage, templates interfaces.TemplateStorage, config *common.ExportConfig, logger arbor.ILogger) *Engine {
	return &Engine{
		documents: documents,
		fields:    fields,
		templates: templates,
		config:    config,
		logger:    logger,
	}
}

// Export builds the rows for a request and writes the file to w
func (e *Engine) Export(req *Request, w io.Writer) (*Result, error) {
	if len(req.Mappings) == 0 {
		return nil, fmt.Errorf("export requires at least one mapping")
	}
	if req.Format != FormatXLSX && req.Format != FormatCSV {
		return nil, fmt.Errorf("unsupported export format %q", req.Format)
	}

	mappings := req.Mappings
	if req.TemplateID != "" {
		closed, err := e.closeColumns(req.TemplateID, mappings)
		if err != nil {
			return nil, err
		}
		mappings = closed
	}

	headers := make([]string, len(mappings))
	for i, m := range mappings {
		headers[i] = m.ExcelColumn
	}

	rows, documents, err := e.buildRows(req, mappings)
	if err != nil {
		return nil, err
	}

	switch req.Format {
	case FormatXLSX:
		if err := writeXLSX(w, e.config.SheetName, headers, rows); err != nil {
			return nil, err
		}
	case FormatCSV:
		if err := writeCSV(w, headers, rows); err != nil {
			return nil, err
		}
	}

	result := &Result{
		Filename:  ExportFilename(req.JobID, req.Format),
		RowCount:  len(rows),
		Documents: documents,
	}

	e.logger.Info().
		Str("job_id", req.JobID).
		Str("format", string(req.Format)).
		Int("rows", result.RowCount).
		Int("documents", result.Documents).
		Msg("Export completed")

	return result, nil
}

// buildRows resolves target documents and produces one or more rows each
func (e *Engine) buildRows(req *Request, mappings []*models.MappingResult) ([][]Cell, int, error) {
	// AI already produced the values: single row, no DB reads
	if hasExtractedValues(mappings) {
		row := make([]Cell, len(mappings))
		for i, m := range mappings {
			row[i] = cellFromMapping(m, nil, e.logger)
		}
		return [][]Cell{row}, 1, nil
	}

	docIDs, err := e.targetDocuments(req)
	if err != nil {
		return nil, 0, err
	}
	if len(docIDs) == 0 {
		return nil, 0, fmt.Errorf("no exportable documents for job %s", req.JobID)
	}

	fieldsByDoc, err := e.fields.GetFieldsByDocuments(docIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load fields: %w", err)
	}

	var rows [][]Cell
	for _, docID := range docIDs {
		docRows := buildDocumentRows(mappings, fieldsByDoc[docID], e.logger)
		rows = append(rows, docRows...)
	}
	return rows, len(docIDs), nil
}

// targetDocuments resolves the documents to export: the explicit list if
// given, else the job's completed documents (or any with extracted fields).
func (e *Engine) targetDocuments(req *Request) ([]string, error) {
	if len(req.DocumentIDs) > 0 {
		return req.DocumentIDs, nil
	}

	docs, err := e.documents.ListDocumentsByJob(req.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job documents: %w", err)
	}

	var ids []string
	for _, doc := range docs {
		if doc.Status == models.DocumentStatusCompleted || doc.FieldsExtracted > 0 {
			ids = append(ids, doc.ID)
		}
	}
	return ids, nil
}

// closeColumns guarantees every template column appears in the mapping list,
// and template defaults force-override any earlier resolution for their
// column, including AI-extracted values.
func (e *Engine) closeColumns(templateID string, mappings []*models.MappingResult) ([]*models.MappingResult, error) {
	columns, err := e.templates.GetColumns(templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template columns: %w", err)
	}

	byColumn := make(map[string]*models.MappingResult, len(mappings))
	for _, m := range mappings {
		byColumn[m.ExcelColumn] = m
	}

	closed := make([]*models.MappingResult, 0, len(columns))
	for _, col := range columns {
		m, ok := byColumn[col.ExcelColumn]
		if !ok {
			m = &models.MappingResult{
				ExcelColumn: col.ExcelColumn,
				MatchMethod: models.MatchMethodUnmapped,
			}
		}
		if col.HasDefault() {
			m = &models.MappingResult{
				ExcelColumn:       col.ExcelColumn,
				DBFieldName:       models.DefaultFieldSentinel,
				Confidence:        defaultForcedConfidence,
				MatchMethod:       models.MatchMethodDefault,
				DefaultValue:      col.DefaultValue,
				PostProcessType:   col.PostProcessType,
				PostProcessConfig: col.PostProcessConfig,
			}
		}
		closed = append(closed, m)
	}
	return closed, nil
}

const defaultForcedConfidence = 0.93

func hasExtractedValues(mappings []*models.MappingResult) bool {
	for _, m := range mappings {
		if m.ExtractedValue != nil {
			return true
		}
	}
	return false
}

// ExportFilename derives the download name from the job ID
func ExportFilename(jobID string, format Format) string {
	tag := strings.TrimPrefix(jobID, "job_")
	if len(tag) > 8 {
		tag = tag[:8]
	}
	return fmt.Sprintf("export_%s.%s", tag, format)
}
