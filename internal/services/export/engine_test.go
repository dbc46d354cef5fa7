package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/xuri/excelize/v2"
)

type fakeDocStorage struct {
	docs []*models.Document
}

func (f *fakeDocStorage) SaveDocument(doc *models.Document) error        { return nil }
func (f *fakeDocStorage) GetDocument(id string) (*models.Document, error) { return nil, nil }
func (f *fakeDocStorage) UpdateDocument(doc *models.Document) error      { return nil }
func (f *fakeDocStorage) DeleteDocument(id string) error                 { return nil }
func (f *fakeDocStorage) ListDocumentsByJob(jobID string) ([]*models.Document, error) {
	return f.docs, nil
}
func (f *fakeDocStorage) ListStaleProcessing(cutoffUnix int64) ([]*models.Document, error) {
	return nil, nil
}
func (f *fakeDocStorage) SaveJob(job *models.IngestJob) error          { return nil }
func (f *fakeDocStorage) GetJob(id string) (*models.IngestJob, error)  { return nil, nil }
func (f *fakeDocStorage) UpdateJob(job *models.IngestJob) error        { return nil }
func (f *fakeDocStorage) SaveReviewEntry(entry *models.ReviewEntry) error { return nil }
func (f *fakeDocStorage) ListReviewEntries(jobID string) ([]*models.ReviewEntry, error) {
	return nil, nil
}

type fakeFieldStore struct {
	byDoc map[string][]*models.ExtractedField
}

func (f *fakeFieldStore) BulkInsertFields(documentID, jobID string, fields []*models.ExtractedField) (int, error) {
	return len(fields), nil
}
func (f *fakeFieldStore) DeleteFields(documentID string) error { return nil }
func (f *fakeFieldStore) GetFieldsByDocument(documentID string) ([]*models.ExtractedField, error) {
	return f.byDoc[documentID], nil
}
func (f *fakeFieldStore) GetFieldsByDocuments(documentIDs []string) (map[string][]*models.ExtractedField, error) {
	return f.byDoc, nil
}
func (f *fakeFieldStore) ListFieldNames(documentIDs []string) (map[string][]models.FieldSample, error) {
	return nil, nil
}

type fakeTemplateStore struct {
	columns []*models.TemplateColumn
}

func (f *fakeTemplateStore) SaveTemplate(tpl *models.ExtractionTemplate, columns []*models.TemplateColumn) error {
	return nil
}
func (f *fakeTemplateStore) GetTemplate(id string) (*models.ExtractionTemplate, error) {
	return nil, nil
}
func (f *fakeTemplateStore) GetColumns(templateID string) ([]*models.TemplateColumn, error) {
	return f.columns, nil
}
func (f *fakeTemplateStore) ReplaceColumns(templateID string, columns []*models.TemplateColumn) error {
	return nil
}
func (f *fakeTemplateStore) ListTemplates(documentType string) ([]*models.ExtractionTemplate, error) {
	return nil, nil
}
func (f *fakeTemplateStore) IncrementUsage(templateID string) error { return nil }
func (f *fakeTemplateStore) DeleteTemplate(id string) error         { return nil }

func testEngine(docs *fakeDocStorage, fields *fakeFieldStore, templates *fakeTemplateStore) *Engine {
	return NewEngine(docs, fields, templates, &common.ExportConfig{SheetName: "export"}, common.GetLogger())
}

func strField(name, value string) *models.ExtractedField {
	return &models.ExtractedField{FieldName: name, FieldValue: &value}
}

func TestExport_CSV(t *testing.T) {
	docs := &fakeDocStorage{docs: []*models.Document{
		{ID: "doc_1", Status: models.DocumentStatusCompleted},
	}}
	fields := &fakeFieldStore{byDoc: map[string][]*models.ExtractedField{
		"doc_1": {
			strField("invoice.invoice_no", "INV-001"),
			strField("invoice.total", "123.45"),
		},
	}}
	engine := testEngine(docs, fields, &fakeTemplateStore{})

	var buf bytes.Buffer
	result, err := engine.Export(&Request{
		JobID: "job_abcdef123456",
		Mappings: []*models.MappingResult{
			{ExcelColumn: "Invoice No", DBFieldName: "invoice.invoice_no"},
			{ExcelColumn: "Total", DBFieldName: "invoice.total"},
		},
		Format: FormatCSV,
	}, &buf)
	require.NoError(t, err)

	assert.Equal(t, "export_abcdef12.csv", result.Filename)
	assert.Equal(t, 1, result.RowCount)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Invoice No", "Total"}, records[0])
	assert.Equal(t, []string{"INV-001", "123.45"}, records[1])
}

func TestExport_XLSX(t *testing.T) {
	docs := &fakeDocStorage{docs: []*models.Document{
		{ID: "doc_1", Status: models.DocumentStatusCompleted},
	}}
	fields := &fakeFieldStore{byDoc: map[string][]*models.ExtractedField{
		"doc_1": {strField("customer.name", "ACME")},
	}}
	engine := testEngine(docs, fields, &fakeTemplateStore{})

	var buf bytes.Buffer
	_, err := engine.Export(&Request{
		JobID:    "job_x",
		Mappings: []*models.MappingResult{{ExcelColumn: "Customer", DBFieldName: "customer.name"}},
		Format:   FormatXLSX,
	}, &buf)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("export")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Customer"}, rows[0])
	assert.Equal(t, []string{"ACME"}, rows[1])
}

func TestExport_XLSXNumericCells(t *testing.T) {
	docs := &fakeDocStorage{docs: []*models.Document{
		{ID: "doc_1", Status: models.DocumentStatusCompleted},
	}}
	total := "123.45"
	pages := "3"
	ref := "00123"
	fields := &fakeFieldStore{byDoc: map[string][]*models.ExtractedField{
		"doc_1": {
			{FieldName: "invoice.total", FieldValue: &total, FieldType: models.FieldTypeNumber},
			{FieldName: "invoice.pages", FieldValue: &pages, FieldType: models.FieldTypeInteger},
			{FieldName: "invoice.ref", FieldValue: &ref, FieldType: models.FieldTypeText},
		},
	}}
	engine := testEngine(docs, fields, &fakeTemplateStore{})

	var buf bytes.Buffer
	_, err := engine.Export(&Request{
		JobID: "job_x",
		Mappings: []*models.MappingResult{
			{ExcelColumn: "Total", DBFieldName: "invoice.total"},
			{ExcelColumn: "Pages", DBFieldName: "invoice.pages"},
			{ExcelColumn: "Ref", DBFieldName: "invoice.ref"},
		},
		Format: FormatXLSX,
	}, &buf)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("export")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"123.45", "3", "00123"}, rows[1])

	// Numeric cells are stored as numbers, text as shared strings
	totalType, err := f.GetCellType("export", "A2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, totalType)

	pagesType, err := f.GetCellType("export", "B2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, pagesType)

	refType, err := f.GetCellType("export", "C2")
	require.NoError(t, err)
	assert.Equal(t, excelize.CellTypeSharedString, refType, "leading zeros preserved as text")
}

func TestExport_TemplateClosesColumnsAndForcesDefaults(t *testing.T) {
	docs := &fakeDocStorage{docs: []*models.Document{
		{ID: "doc_1", Status: models.DocumentStatusCompleted},
	}}
	fields := &fakeFieldStore{byDoc: map[string][]*models.ExtractedField{
		"doc_1": {strField("customer.name", "ACME")},
	}}
	empty := ""
	templates := &fakeTemplateStore{columns: []*models.TemplateColumn{
		{ColumnNumber: 1, ExcelColumn: "Customer"},
		{ColumnNumber: 2, ExcelColumn: "Default Currency", DefaultValue: &empty},
		{ColumnNumber: 3, ExcelColumn: "Missing"},
	}}
	engine := testEngine(docs, fields, templates)

	var buf bytes.Buffer
	_, err := engine.Export(&Request{
		JobID:      "job_x",
		TemplateID: "tpl_1",
		Mappings: []*models.MappingResult{
			{ExcelColumn: "Customer", DBFieldName: "customer.name"},
			// AI suggested a currency; the template default must win
			{ExcelColumn: "Default Currency", DBFieldName: "x", ExtractedValue: models.StrPtr("USD")},
		},
		Format: FormatCSV,
	}, &buf)
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Customer", "Default Currency", "Missing"}, records[0])
	assert.Equal(t, []string{"ACME", "", ""}, records[1])
}

func TestExport_ExtractedValuesSingleRow(t *testing.T) {
	engine := testEngine(&fakeDocStorage{}, &fakeFieldStore{}, &fakeTemplateStore{})

	var buf bytes.Buffer
	result, err := engine.Export(&Request{
		JobID: "job_x",
		Mappings: []*models.MappingResult{
			{ExcelColumn: "A", ExtractedValue: models.StrPtr("1")},
			{ExcelColumn: "B", ExtractedValue: models.StrPtr("2")},
		},
		Format: FormatCSV,
	}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)

	records, _ := csv.NewReader(&buf).ReadAll()
	assert.Equal(t, []string{"1", "2"}, records[1])
}

func TestExport_Validation(t *testing.T) {
	engine := testEngine(&fakeDocStorage{}, &fakeFieldStore{}, &fakeTemplateStore{})

	var buf bytes.Buffer
	_, err := engine.Export(&Request{JobID: "j", Format: FormatCSV}, &buf)
	assert.Error(t, err, "no mappings")

	_, err = engine.Export(&Request{
		JobID:    "j",
		Mappings: []*models.MappingResult{{ExcelColumn: "A"}},
		Format:   "pdf",
	}, &buf)
	assert.Error(t, err, "unsupported format")
}
