package mapping

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

type fakeFieldStorage struct {
	names map[string][]models.FieldSample
}

func (f *fakeFieldStorage) BulkInsertFields(documentID, jobID string, fields []*models.ExtractedField) (int, error) {
	return len(fields), nil
}
func (f *fakeFieldStorage) DeleteFields(documentID string) error { return nil }
func (f *fakeFieldStorage) GetFieldsByDocument(documentID string) ([]*models.ExtractedField, error) {
	return nil, nil
}
func (f *fakeFieldStorage) GetFieldsByDocuments(documentIDs []string) (map[string][]*models.ExtractedField, error) {
	return nil, nil
}
func (f *fakeFieldStorage) ListFieldNames(documentIDs []string) (map[string][]models.FieldSample, error) {
	return f.names, nil
}

type fakeTranscriptStorage struct {
	transcript *models.Transcript
}

func (f *fakeTranscriptStorage) SaveTranscript(t *models.Transcript) error { return nil }
func (f *fakeTranscriptStorage) GetTranscript(documentID string) (*models.Transcript, error) {
	if f.transcript == nil {
		return nil, fmt.Errorf("transcript not found for document: %s", documentID)
	}
	return f.transcript, nil
}
func (f *fakeTranscriptStorage) DeleteTranscript(documentID string) error { return nil }

type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeCompleter) Extract(ctx context.Context, req *interfaces.ExtractionRequest) (*interfaces.ExtractionResponse, error) {
	return nil, fmt.Errorf("not used")
}
func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, models.TokenUsage, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, models.TokenUsage{}, f.err
}
func (f *fakeCompleter) ModelVersion() string { return "openai/test" }
func (f *fakeCompleter) Close() error         { return nil }

func testResolver(fields *fakeFieldStorage, llm *fakeCompleter) *Resolver {
	cfg := &common.MappingConfig{
		AIBatchSize:    20,
		AIMaxParallel:  3,
		FuzzyThreshold: 0.7,
		MatchThreshold: 0.4,
	}
	return NewResolver(fields, &fakeTranscriptStorage{}, llm, cfg, common.GetLogger())
}

func sampleFields() *fakeFieldStorage {
	return &fakeFieldStorage{names: map[string][]models.FieldSample{
		"invoice": {
			{FieldName: "invoice.invoice_no", SampleValue: "INV-001", Section: "invoice", Page: 1},
			{FieldName: "invoice.total", SampleValue: "123.45", Section: "invoice", Page: 1},
		},
		"customer": {
			{FieldName: "customer.name", SampleValue: "ACME", Section: "customer", Page: 1},
		},
	}}
}

func TestResolve_DirectAndDefaultSkipAI(t *testing.T) {
	llm := &fakeCompleter{}
	r := testResolver(sampleFields(), llm)

	columns := []*models.TemplateColumn{
		{ColumnNumber: 1, ExcelColumn: "Total", DBFieldPath: "invoice.total"},
		{ColumnNumber: 2, ExcelColumn: "Currency", DefaultValue: models.StrPtr("USD")},
	}

	results, err := r.Resolve(context.Background(), columns, []string{"doc_1"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, models.MatchMethodDirect, results[0].MatchMethod)
	assert.Equal(t, "invoice.total", results[0].DBFieldName)
	assert.Equal(t, directConfidence, results[0].Confidence)

	assert.Equal(t, models.MatchMethodDefault, results[1].MatchMethod)
	assert.True(t, results[1].IsDefault())
	assert.Equal(t, "USD", *results[1].DefaultValue)

	assert.Empty(t, llm.prompts, "direct/default columns must not call the LLM")
}

func TestResolve_MappingOrderMatchesColumns(t *testing.T) {
	llm := &fakeCompleter{response: `{"mappings": []}`}
	r := testResolver(sampleFields(), llm)

	columns := []*models.TemplateColumn{
		{ColumnNumber: 1, ExcelColumn: "Customer Name"},
		{ColumnNumber: 2, ExcelColumn: "Total", DBFieldPath: "invoice.total"},
		{ColumnNumber: 3, ExcelColumn: "Zqxwv"},
	}

	results, err := r.Resolve(context.Background(), columns, []string{"doc_1"})
	require.NoError(t, err)
	require.Len(t, results, len(columns))
	for i, m := range results {
		assert.Equal(t, columns[i].ExcelColumn, m.ExcelColumn)
	}
}

func TestResolve_AISuggestionAccepted(t *testing.T) {
	llm := &fakeCompleter{response: `{"mappings": [
		{"excel_column": "Customer", "suggested_field": "customer.name", "confidence": 0.9, "reasoning": "section match"}
	]}`}
	r := testResolver(sampleFields(), llm)

	columns := []*models.TemplateColumn{{ColumnNumber: 1, ExcelColumn: "Customer"}}
	results, err := r.Resolve(context.Background(), columns, []string{"doc_1"})
	require.NoError(t, err)

	assert.Equal(t, models.MatchMethodAI, results[0].MatchMethod)
	assert.Equal(t, "customer.name", results[0].DBFieldName)
	assert.Equal(t, 0.9, results[0].Confidence)
}

func TestResolve_AIHallucinationFuzzyCorrected(t *testing.T) {
	// The suggested field does not exist; the closest real field is used
	// with a confidence penalty.
	llm := &fakeCompleter{response: `{"mappings": [
		{"excel_column": "Customer", "suggested_field": "customers.name", "confidence": 0.9}
	]}`}
	r := testResolver(sampleFields(), llm)

	columns := []*models.TemplateColumn{{ColumnNumber: 1, ExcelColumn: "Customer"}}
	results, err := r.Resolve(context.Background(), columns, []string{"doc_1"})
	require.NoError(t, err)

	assert.Equal(t, models.MatchMethodAI, results[0].MatchMethod)
	assert.Equal(t, "customer.name", results[0].DBFieldName)
	assert.InDelta(t, 0.8, results[0].Confidence, 1e-9)
}

func TestResolve_AIFailureFallsBackToFuzzy(t *testing.T) {
	llm := &fakeCompleter{err: fmt.Errorf("provider down")}
	r := testResolver(sampleFields(), llm)

	columns := []*models.TemplateColumn{{ColumnNumber: 1, ExcelColumn: "Customer Name"}}
	results, err := r.Resolve(context.Background(), columns, []string{"doc_1"})
	require.NoError(t, err)

	assert.Equal(t, models.MatchMethodFuzzy, results[0].MatchMethod)
	assert.Equal(t, "customer.name", results[0].DBFieldName)
}

func TestResolve_SearchKeywordsBeatFuzzyFallback(t *testing.T) {
	// "Zqxwv" alone matches nothing; its search keyword "invoice" lands on a
	// real field before the fuzzy fallback gets a chance.
	llm := &fakeCompleter{response: `{"mappings": []}`}
	r := testResolver(sampleFields(), llm)

	columns := []*models.TemplateColumn{{
		ColumnNumber:   1,
		ExcelColumn:    "Zqxwv",
		SearchKeywords: []string{"missingkeyword", "invoice"},
	}}
	results, err := r.Resolve(context.Background(), columns, []string{"doc_1"})
	require.NoError(t, err)

	assert.Equal(t, models.MatchMethodKeyword, results[0].MatchMethod)
	assert.Contains(t, results[0].DBFieldName, "invoice")
	assert.Equal(t, keywordConfidence, results[0].Confidence)
}

func TestResolve_UnmatchableColumnIsUnmapped(t *testing.T) {
	llm := &fakeCompleter{response: `{"mappings": []}`}
	r := testResolver(sampleFields(), llm)

	columns := []*models.TemplateColumn{{ColumnNumber: 1, ExcelColumn: "Zqxwv Kjy"}}
	results, err := r.Resolve(context.Background(), columns, []string{"doc_1"})
	require.NoError(t, err)

	assert.Equal(t, models.MatchMethodUnmapped, results[0].MatchMethod)
	assert.Empty(t, results[0].DBFieldName)
}

func TestResolve_PromptCarriesHintsAndSamples(t *testing.T) {
	llm := &fakeCompleter{response: `{"mappings": []}`}
	r := testResolver(sampleFields(), llm)

	columns := []*models.TemplateColumn{{
		ColumnNumber:   1,
		ExcelColumn:    "Customer",
		SourceSection:  "customer",
		SearchKeywords: []string{"name", "client"},
		ExampleValue:   "ACME Pty Ltd",
	}}
	_, err := r.Resolve(context.Background(), columns, []string{"doc_1"})
	require.NoError(t, err)

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	assert.Contains(t, prompt, `"Customer"`)
	assert.Contains(t, prompt, "keywords: name, client")
	assert.Contains(t, prompt, "customer.name")
	assert.Contains(t, prompt, "INV-001")
}

func TestExtractJSONBody(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, extractJSONBody("Sure! Here you go: {\"a\": 1} hope that helps"))
	assert.Equal(t, `{"a": 1}`, extractJSONBody(`{"a": 1}`))
	assert.Equal(t, "no json here", extractJSONBody("no json here"))
}
