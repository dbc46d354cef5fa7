package models

// DefaultFieldSentinel marks a mapping that resolves to the column's
// default value rather than an extracted field.
const DefaultFieldSentinel = "__DEFAULT__"

// MatchMethod says how a template column was resolved to a field
type MatchMethod string

const (
	MatchMethodDirect   MatchMethod = "db_field_path_direct"
	MatchMethodDefault  MatchMethod = "default_value"
	MatchMethodKeyword  MatchMethod = "keyword_search"
	MatchMethodFuzzy    MatchMethod = "fuzzy_match"
	MatchMethodAI       MatchMethod = "ai_assisted"
	MatchMethodUnmapped MatchMethod = "unmapped"
)

// MappingResult resolves one template column for an export run. The slice of
// results for a template always has one entry per column, in column order.
// DBFieldName and the DefaultFieldSentinel are mutually exclusive.
type MappingResult struct {
	ExcelColumn    string      `json:"excel_column"`
	DBFieldName    string      `json:"db_field_name"`
	Confidence     float64     `json:"confidence"`
	SourceLocation string      `json:"source_location,omitempty"`
	MatchMethod    MatchMethod `json:"match_method"`
	Reasoning      string      `json:"reasoning,omitempty"`

	// ExtractedValue short-circuits the DB lookup when the AI already
	// produced the value (single-row export path).
	ExtractedValue *string `json:"extracted_value,omitempty"`
	// DefaultValue travels with sentinel mappings (empty string permitted).
	DefaultValue *string `json:"default_value,omitempty"`

	PostProcessType   string            `json:"post_process_type,omitempty"`
	PostProcessConfig map[string]string `json:"post_process_config,omitempty"`
}

// IsDefault reports whether the mapping resolves to the column default
func (m *MappingResult) IsDefault() bool {
	return m.DBFieldName == DefaultFieldSentinel
}
