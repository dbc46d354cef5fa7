package interfaces

import (
	"context"

	"github.com/ternarybob/scriba/internal/models"
)

// ExtractionTask identifies what the LLM is asked to do with page content
type ExtractionTask string

const (
	TaskFieldDetection            ExtractionTask = "field_detection"
	TaskFormCreation              ExtractionTask = "form_creation"
	TaskTemplateMatching          ExtractionTask = "template_matching"
	TaskDBTemplateMatching        ExtractionTask = "db_template_matching"
	TaskWithoutTemplateExtraction ExtractionTask = "without_template_extraction"
	TaskTemplateGuidedExtraction  ExtractionTask = "template_guided_extraction"
	TaskBankStatementExtraction   ExtractionTask = "bank_statement_extraction"
)

// ExtractionRequest is one page-level LLM call
type ExtractionRequest struct {
	Task        ExtractionTask
	ContentType models.ContentType

	// Prompt is the instruction text from the prompt registry
	Prompt string
	// Text payload for the text path (appended to the prompt)
	Text string
	// ImageDataURL payload for the image path (inline data URL)
	ImageDataURL string

	// Schema is the JSON response schema for structured output
	Schema map[string]interface{}

	// DocTag identifies the document in logs and error diagnostics
	DocTag string
}

// ExtractionResponse is the parsed, normalized LLM output for one call
type ExtractionResponse struct {
	// HierarchicalData is the structured output tree (key order preserved)
	HierarchicalData *models.Value
	// RawText is the raw model output after repair, for diagnostics
	RawText string

	Usage        models.TokenUsage
	FinishReason string
	Model        string
	DurationMs   int64
}

// ExtractionClient is the typed, retry-wrapped LLM contract used by the
// page pipeline and the mapping resolver.
type ExtractionClient interface {
	// Extract performs one structured extraction call
	Extract(ctx context.Context, req *ExtractionRequest) (*ExtractionResponse, error)

	// Complete performs a plain-text completion (AI mapping suggestions)
	Complete(ctx context.Context, prompt string) (string, models.TokenUsage, error)

	// ModelVersion returns the provider/model identifier used for calls
	ModelVersion() string

	// Close releases transport resources
	Close() error
}
