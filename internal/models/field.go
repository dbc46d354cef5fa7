package models

// FieldType classifies a flattened extracted field
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeNumber    FieldType = "number"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeNull      FieldType = "null"
	FieldTypeArray     FieldType = "array"
	FieldTypeTableCell FieldType = "table_cell"
	FieldTypeDate      FieldType = "date"
	FieldTypeCurrency  FieldType = "currency"
)

// ExtractedField is one flattened leaf of a document's hierarchical data.
// FieldName is a dotted/indexed path such as "customer.addresses[2].city".
// (DocumentID, FieldOrder) is unique; FieldOrder increases monotonically
// across the whole document in page order.
type ExtractedField struct {
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id"`

	FieldName  string    `json:"field_name"`
	FieldLabel string    `json:"field_label"`
	FieldType  FieldType `json:"field_type"`
	// FieldValue is nil for null leaves; empty arrays encode as "[]"
	FieldValue *string `json:"field_value"`
	FieldGroup string  `json:"field_group"`

	PageNumber int `json:"page_number"`
	FieldOrder int `json:"field_order"`

	ConfidenceScore   *float64 `json:"confidence_score"`
	NeedsManualReview bool     `json:"needs_manual_review"`
	ValidationStatus  string   `json:"validation_status,omitempty"`

	ExtractionMethod  string `json:"extraction_method,omitempty"`
	ExtractionContext string `json:"extraction_context,omitempty"`
	ModelVersion      string `json:"model_version,omitempty"`
	SectionName       string `json:"section_name,omitempty"`
	SourceLocation    string `json:"source_location,omitempty"`
	TokensUsed        int    `json:"tokens_used,omitempty"`
	ProcessingTimeMs  int64  `json:"processing_time_ms,omitempty"`

	FieldMetadata map[string]string `json:"field_metadata,omitempty"`
}

// Value returns the field value or empty string for null
func (f *ExtractedField) Value() string {
	if f.FieldValue == nil {
		return ""
	}
	return *f.FieldValue
}

// StrPtr is a convenience for building nullable field values
func StrPtr(s string) *string {
	return &s
}

// FieldSample is a distinct field name with a short sample value, used when
// enumerating available fields for the mapping resolver.
type FieldSample struct {
	FieldName   string `json:"field_name"`
	SampleValue string `json:"sample_value"`
	Section     string `json:"section"`
	Page        int    `json:"page"`
}
