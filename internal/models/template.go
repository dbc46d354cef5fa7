package models

import (
	"time"
)

// ExtractionTemplate is an ordered list of Excel column specifications used
// to drive mapping and export. Templates are immutable per version; replacing
// columns is a delete-then-insert in one transaction.
type ExtractionTemplate struct {
	ID           string    `json:"template_id"` // tpl_{uuid}
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	DocumentType string    `json:"document_type"`
	UsageCount   int       `json:"usage_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TemplateColumn is one Excel column specification within a template.
// ExcelColumn is unique within the template; ColumnNumber orders columns.
type TemplateColumn struct {
	TemplateID   string `json:"template_id"`
	ColumnNumber int    `json:"column_number"`
	ExcelColumn  string `json:"excel_column"`

	// Direct mapping and hints
	DBFieldPath   string   `json:"db_field_path,omitempty"`
	SourceField   string   `json:"source_field,omitempty"`
	SourceSection string   `json:"source_section,omitempty"`
	SourcePage    int      `json:"source_page,omitempty"`
	SearchKeywords []string `json:"search_keywords,omitempty"`
	ExtractionHint string   `json:"extraction_hint,omitempty"`
	ExampleValue   string   `json:"example_value,omitempty"`

	DataType          string            `json:"data_type,omitempty"`
	PostProcessType   string            `json:"post_process_type,omitempty"`
	PostProcessConfig map[string]string `json:"post_process_config,omitempty"`

	// DefaultValue force-overrides the exported cell when set, including the
	// empty string. Nil means unset.
	DefaultValue *string `json:"default_value,omitempty"`
}

// HasDefault reports whether the column carries a default value (empty string counts)
func (c *TemplateColumn) HasDefault() bool {
	return c.DefaultValue != nil
}
