package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/scriba/internal/models"
)

// Builder renders per-page hierarchical data into a searchable transcript:
// a concatenated text rendering plus section and field indexes for
// keyword-driven mapping.
type Builder struct{}

// NewBuilder creates a transcript builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Build assembles a transcript from page results in page order
func (b *Builder) Build(documentID, jobID string, pages []*models.PageResult) *models.Transcript {
	start := time.Now()

	t := &models.Transcript{
		DocumentID:      documentID,
		JobID:           jobID,
		PageTranscripts: make(map[int]string),
		SectionIndex:    make(map[string]models.PageRange),
		FieldLocations:  make(map[string]models.FieldLocation),
		TotalPages:      len(pages),
		CreatedAt:       time.Now().UTC(),
	}

	var full strings.Builder
	for _, page := range pages {
		if page == nil || !page.Succeeded() {
			continue
		}

		pageText := b.renderPage(page, t)
		t.PageTranscripts[page.PageNumber] = pageText

		if full.Len() > 0 {
			full.WriteString("\n\n")
		}
		fmt.Fprintf(&full, "=== Page %d ===\n", page.PageNumber)
		full.WriteString(pageText)
	}

	t.FullTranscript = full.String()
	t.TotalSections = len(t.SectionIndex)
	t.GenerationTimeMs = time.Since(start).Milliseconds()
	return t
}

// renderPage walks one page's tree, updating the section and field indexes
// as a side effect.
func (b *Builder) renderPage(page *models.PageResult, t *models.Transcript) string {
	obj := page.HierarchicalData.Object()
	if obj == nil {
		return page.HierarchicalData.Stringify()
	}

	var sb strings.Builder
	for _, section := range obj.Keys() {
		if strings.HasPrefix(section, "_") {
			continue
		}
		value, _ := obj.Get(section)

		b.indexSection(t, section, page.PageNumber)

		fmt.Fprintf(&sb, "--- %s ---\n", section)
		b.renderValue(&sb, value, section, section, page.PageNumber, t)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (b *Builder) indexSection(t *models.Transcript, section string, page int) {
	if r, ok := t.SectionIndex[section]; ok {
		if page < r.FirstPage {
			r.FirstPage = page
		}
		if page > r.LastPage {
			r.LastPage = page
		}
		t.SectionIndex[section] = r
		return
	}
	t.SectionIndex[section] = models.PageRange{FirstPage: page, LastPage: page}
}

func (b *Builder) renderValue(sb *strings.Builder, v *models.Value, path, section string, page int, t *models.Transcript) {
	switch v.Kind() {
	case models.KindObject:
		obj := v.Object()

		if _, inner, ok := obj.TypedLeaf(); ok {
			b.recordField(t, path, section, page)
			fmt.Fprintf(sb, "%s: %s\n", path, inner.Stringify())
			return
		}

		for _, key := range obj.Keys() {
			if strings.HasPrefix(key, "_") {
				continue
			}
			child, _ := obj.Get(key)
			b.renderValue(sb, child, path+"."+key, section, page, t)
		}

	case models.KindArray:
		for i, item := range v.Items() {
			b.renderValue(sb, item, fmt.Sprintf("%s[%d]", path, i), section, page, t)
		}

	case models.KindNull:
		b.recordField(t, path, section, page)

	default:
		b.recordField(t, path, section, page)
		fmt.Fprintf(sb, "%s: %s\n", path, v.Stringify())
	}
}

// recordField keeps the first location a field name is seen at
func (b *Builder) recordField(t *models.Transcript, field, section string, page int) {
	if _, ok := t.FieldLocations[field]; ok {
		return
	}
	t.FieldLocations[field] = models.FieldLocation{Page: page, Section: section}
}
