package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

func TestLookup_AllTasksResolve(t *testing.T) {
	r := NewRegistry()
	tasks := []interfaces.ExtractionTask{
		interfaces.TaskFieldDetection,
		interfaces.TaskFormCreation,
		interfaces.TaskTemplateMatching,
		interfaces.TaskDBTemplateMatching,
		interfaces.TaskWithoutTemplateExtraction,
		interfaces.TaskTemplateGuidedExtraction,
		interfaces.TaskBankStatementExtraction,
	}
	for _, task := range tasks {
		prompt, err := r.Lookup(task, models.ContentTypeText, "", nil)
		require.NoError(t, err, "task %s", task)
		assert.NotEmpty(t, prompt.Text)
		assert.NotNil(t, prompt.Schema)
	}
}

func TestLookup_UnknownTask(t *testing.T) {
	_, err := NewRegistry().Lookup("no_such_task", models.ContentTypeText, "", nil)
	assert.Error(t, err)
}

func TestLookup_BankStatementRedirect(t *testing.T) {
	r := NewRegistry()

	prompt, err := r.Lookup(interfaces.TaskWithoutTemplateExtraction, models.ContentTypeText, "bank_statement", nil)
	require.NoError(t, err)
	assert.Contains(t, prompt.Text, "bank statement extraction engine")

	// Case-insensitive document type match
	prompt, err = r.Lookup(interfaces.TaskWithoutTemplateExtraction, models.ContentTypeText, "Bank_Statement", nil)
	require.NoError(t, err)
	assert.Contains(t, prompt.Text, "bank statement extraction engine")

	prompt, err = r.Lookup(interfaces.TaskWithoutTemplateExtraction, models.ContentTypeText, "invoice", nil)
	require.NoError(t, err)
	assert.NotContains(t, prompt.Text, "bank statement extraction engine")
	assert.Contains(t, prompt.Text, `"invoice"`)
}

func TestLookup_BankStatementFirstPageAsksForHeaders(t *testing.T) {
	r := NewRegistry()

	prompt, err := r.Lookup(interfaces.TaskBankStatementExtraction, models.ContentTypeText, "bank_statement",
		&PageContext{IsFirstPage: true, PageNumber: 1})
	require.NoError(t, err)
	assert.Contains(t, prompt.Text, "_table_headers")
	assert.Contains(t, prompt.Text, "first page")
}

func TestLookup_BankStatementContinuationEmbedsHeaders(t *testing.T) {
	r := NewRegistry()

	prompt, err := r.Lookup(interfaces.TaskBankStatementExtraction, models.ContentTypeText, "bank_statement",
		&PageContext{PageNumber: 3, TableHeaders: []string{"Date", "Description", "Amount"}})
	require.NoError(t, err)
	assert.Contains(t, prompt.Text, "Date, Description, Amount")
	assert.Contains(t, prompt.Text, "page 3")
	assert.NotContains(t, prompt.Text, "_table_headers")
}

func TestLookup_BankStatementWindowExhaustedFallsBackToHeaderAsk(t *testing.T) {
	// A later page with no detected headers is still asked to report them
	prompt, err := NewRegistry().Lookup(interfaces.TaskBankStatementExtraction, models.ContentTypeText, "bank_statement",
		&PageContext{PageNumber: 4})
	require.NoError(t, err)
	assert.Contains(t, prompt.Text, "_table_headers")
}

func TestLookup_PayloadLineTracksContentType(t *testing.T) {
	r := NewRegistry()

	textPrompt, err := r.Lookup(interfaces.TaskFieldDetection, models.ContentTypeText, "", nil)
	require.NoError(t, err)
	assert.Contains(t, textPrompt.Text, "extracted text")

	imagePrompt, err := r.Lookup(interfaces.TaskFieldDetection, models.ContentTypeImage, "", nil)
	require.NoError(t, err)
	assert.Contains(t, imagePrompt.Text, "attached as an image")
}
