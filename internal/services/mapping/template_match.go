package mapping

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

// templateOverlapThreshold is the share of input columns a saved template
// must cover to be applied directly.
const templateOverlapThreshold = 0.8

// TemplateMatcher finds a saved template whose columns cover an incoming
// column set, avoiding the AI path entirely on repeat document layouts.
type TemplateMatcher struct {
	templates interfaces.TemplateStorage
	logger    arbor.ILogger
}

// NewTemplateMatcher creates a template matcher
func NewTemplateMatcher(templates interfaces.TemplateStorage, logger arbor.ILogger) *TemplateMatcher {
	return &TemplateMatcher{templates: templates, logger: logger}
}

// Match looks for a saved template covering at least 80% of the given
// columns. On a hit the template's usage count is incremented and its columns
// are returned; otherwise both returns are nil.
func (m *TemplateMatcher) Match(excelColumns []string, documentType string) (*models.ExtractionTemplate, []*models.TemplateColumn, error) {
	if len(excelColumns) == 0 {
		return nil, nil, nil
	}

	templates, err := m.templates.ListTemplates(documentType)
	if err != nil {
		return nil, nil, err
	}

	wanted := make(map[string]bool, len(excelColumns))
	for _, c := range excelColumns {
		wanted[normalizeName(c)] = true
	}

	var bestTemplate *models.ExtractionTemplate
	var bestColumns []*models.TemplateColumn
	bestOverlap := 0.0

	for _, tpl := range templates {
		columns, err := m.templates.GetColumns(tpl.ID)
		if err != nil || len(columns) == 0 {
			continue
		}

		hits := 0
		for _, col := range columns {
			if wanted[normalizeName(col.ExcelColumn)] {
				hits++
			}
		}
		overlap := float64(hits) / float64(len(excelColumns))
		if overlap > bestOverlap {
			bestOverlap = overlap
			bestTemplate = tpl
			bestColumns = columns
		}
	}

	if bestTemplate == nil || bestOverlap < templateOverlapThreshold {
		return nil, nil, nil
	}

	if err := m.templates.IncrementUsage(bestTemplate.ID); err != nil {
		m.logger.Warn().Err(err).Str("template_id", bestTemplate.ID).Msg("Failed to increment template usage")
	}

	m.logger.Info().
		Str("template_id", bestTemplate.ID).
		Str("name", bestTemplate.Name).
		Float64("overlap", bestOverlap).
		Msg("Matched saved template")

	return bestTemplate, bestColumns, nil
}
