package prompts

import (
	"fmt"
	"strings"

	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

// PageContext carries per-page state into prompt selection. Bank statements
// use it to thread detected table headers from the first page into
// continuation pages.
type PageContext struct {
	IsFirstPage  bool
	PageNumber   int
	TableHeaders []string
}

// Prompt is a resolved instruction plus its response schema
type Prompt struct {
	Text   string
	Schema map[string]interface{}
}

// Registry resolves (task, content type, document type, page context) to a
// prompt and response schema. Lookups are deterministic and allocation-light;
// the registry itself is stateless and safe for concurrent use.
type Registry struct{}

// NewRegistry creates a prompt registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Lookup resolves the prompt for an extraction call
func (r *Registry) Lookup(task interfaces.ExtractionTask, contentType models.ContentType, documentType string, pageCtx *PageContext) (*Prompt, error) {
	if task == interfaces.TaskWithoutTemplateExtraction && strings.EqualFold(documentType, "bank_statement") {
		task = interfaces.TaskBankStatementExtraction
	}

	switch task {
	case interfaces.TaskFieldDetection:
		return &Prompt{Text: fieldDetectionPrompt(contentType), Schema: permissiveObjectSchema()}, nil
	case interfaces.TaskFormCreation:
		return &Prompt{Text: formCreationPrompt(contentType), Schema: permissiveObjectSchema()}, nil
	case interfaces.TaskTemplateMatching:
		return &Prompt{Text: templateMatchingPrompt, Schema: templateMatchingSchema()}, nil
	case interfaces.TaskDBTemplateMatching:
		return &Prompt{Text: dbTemplateMatchingPrompt, Schema: templateMatchingSchema()}, nil
	case interfaces.TaskWithoutTemplateExtraction:
		return &Prompt{Text: extractionPrompt(contentType, documentType), Schema: permissiveObjectSchema()}, nil
	case interfaces.TaskTemplateGuidedExtraction:
		return &Prompt{Text: templateGuidedPrompt(contentType), Schema: permissiveObjectSchema()}, nil
	case interfaces.TaskBankStatementExtraction:
		return &Prompt{Text: bankStatementPrompt(contentType, pageCtx), Schema: bankStatementSchema()}, nil
	default:
		return nil, fmt.Errorf("unknown extraction task %q", task)
	}
}

func payloadLine(contentType models.ContentType) string {
	if contentType == models.ContentTypeImage {
		return "The document page is attached as an image. Read every visible value, including handwriting and stamps."
	}
	return "The document page content follows below as extracted text."
}

func fieldDetectionPrompt(contentType models.ContentType) string {
	return strings.Join([]string{
		"You are a document analysis engine. Identify every labeled field on this page and return a JSON object mirroring the document's structure.",
		"Group related fields under section keys. Use the document's own labels as keys, preserving their order of appearance.",
		"For each field emit {\"_type\": <string|integer|number|boolean|date|currency>, \"value\": <extracted value>, \"confidence\": <0..1>}.",
		"If the page contains a signature, set has_signature=true at the top level. If it contains a photo ID, set has_photo_id=true.",
		payloadLine(contentType),
	}, "\n")
}

func formCreationPrompt(contentType models.ContentType) string {
	return strings.Join([]string{
		"You are a form digitization engine. Reconstruct this page as a fillable form definition: a JSON object whose keys are the form's sections and fields in document order.",
		"For each input field emit {\"_type\": <field type>, \"value\": <current value or null>, \"label\": <visible label>}.",
		payloadLine(contentType),
	}, "\n")
}

const templateMatchingPrompt = `You are matching a document against a list of known extraction templates.
Given the document content and the candidate templates, pick the single best match.
Return {"template_id": <id or null>, "confidence": <0..1>, "reasoning": <short string>}.
Return template_id null when no candidate fits.`

const dbTemplateMatchingPrompt = `You are matching a document against extraction templates stored for this workspace.
Compare the document's visible field labels against each template's column hints and pick the best match.
Return {"template_id": <id or null>, "confidence": <0..1>, "reasoning": <short string>}.`

func extractionPrompt(contentType models.ContentType, documentType string) string {
	lines := []string{
		"You are a document extraction engine. Extract every field visible on this page into a JSON object that mirrors the document's structure.",
		"Group fields under section keys in document order. Emit leaf fields as {\"_type\": <string|integer|number|boolean|date|currency>, \"value\": <value>, \"confidence\": <0..1>}.",
		"Tables become {\"_type\": \"table\", \"value\": [<one object per row>]} with consistent column keys across rows.",
		"If the page contains a signature, set has_signature=true at the top level. If it contains a photo ID, set has_photo_id=true.",
	}
	if documentType != "" {
		lines = append(lines, fmt.Sprintf("The document type is %q; use terminology conventional for that document type.", documentType))
	}
	lines = append(lines, payloadLine(contentType))
	return strings.Join(lines, "\n")
}

func templateGuidedPrompt(contentType models.ContentType) string {
	return strings.Join([]string{
		"You are a document extraction engine working from a known template. The template's expected sections and fields are listed in the instructions below.",
		"Extract a value for every template field present on this page, keeping the template's key names exactly. Fields absent from the page get value null.",
		"Emit leaf fields as {\"_type\": <type>, \"value\": <value>, \"confidence\": <0..1>}.",
		payloadLine(contentType),
	}, "\n")
}

// bankStatementPrompt specializes extraction for multi-page transaction
// tables. The first page asks the model to report the table headers it
// detected; continuation pages receive those headers so row objects keep the
// same keys across the whole statement.
func bankStatementPrompt(contentType models.ContentType, pageCtx *PageContext) string {
	lines := []string{
		"You are a bank statement extraction engine. Extract account details and the full transaction table from this page.",
		"Emit account-level fields as {\"_type\": <type>, \"value\": <value>, \"confidence\": <0..1>} grouped under an account_details section.",
		"Emit the transaction table as {\"_type\": \"table\", \"value\": [<one object per transaction row>]}.",
	}

	if pageCtx == nil || pageCtx.IsFirstPage || len(pageCtx.TableHeaders) == 0 {
		lines = append(lines,
			"This is the first page. Also emit a top-level \"_table_headers\" array listing the transaction table's column headers exactly as they appear.")
	} else {
		lines = append(lines,
			fmt.Sprintf("This is a continuation page (page %d). The transaction table uses these column headers, detected on the first page: %s.",
				pageCtx.PageNumber, strings.Join(pageCtx.TableHeaders, ", ")),
			"Use exactly these keys for every transaction row, even if the page does not repeat the header row.")
	}

	lines = append(lines, payloadLine(contentType))
	return strings.Join(lines, "\n")
}
