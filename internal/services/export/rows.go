package export

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/services/postprocess"
)

// Cell is one rendered export cell. The resolved field type travels with the
// value so the XLSX writer can emit numeric cells for numeric fields.
type Cell struct {
	Value string
	Type  models.FieldType
}

// buildDocumentRows renders one document's fields into one or more rows.
// Without array mappings, one row per document. With array mappings, one row
// per array index, repeating non-array columns.
func buildDocumentRows(mappings []*models.MappingResult, fields []*models.ExtractedField, logger arbor.ILogger) [][]Cell {
	fieldMap := indexFields(fields)

	prefix, suffixes := arrayPattern(mappings)
	if prefix == "" {
		row := make([]Cell, len(mappings))
		for i, m := range mappings {
			row[i] = cellFromMapping(m, fieldMap, logger)
		}
		return [][]Cell{row}
	}

	indexes := arrayIndexes(fields, prefix)
	if len(indexes) == 0 {
		row := make([]Cell, len(mappings))
		for i, m := range mappings {
			row[i] = cellFromMapping(m, fieldMap, logger)
		}
		return [][]Cell{row}
	}

	var rows [][]Cell
	for _, idx := range indexes {
		row := make([]Cell, len(mappings))
		for i, m := range mappings {
			if suffix, ok := suffixes[m.ExcelColumn]; ok {
				name := fmt.Sprintf("%s[%d].%s", prefix, idx, suffix)
				row[i] = cellFromField(m, lookupField(fieldMap, name), logger)
				continue
			}
			row[i] = cellFromMapping(m, fieldMap, logger)
		}
		rows = append(rows, row)
	}
	return rows
}

func indexFields(fields []*models.ExtractedField) map[string]*models.ExtractedField {
	fieldMap := make(map[string]*models.ExtractedField, len(fields))
	for _, f := range fields {
		fieldMap[f.FieldName] = f
	}
	return fieldMap
}

var arrayIndexPattern = regexp.MustCompile(`^(.*)\[(\d+)\]\.(.+)$`)

// arrayPattern finds the shared {prefix}[*].{suffix} base among the
// mappings' field names. Returns the prefix and a column-to-suffix map, or
// an empty prefix when no mapping is array-shaped.
func arrayPattern(mappings []*models.MappingResult) (string, map[string]string) {
	suffixes := make(map[string]string)
	prefix := ""
	for _, m := range mappings {
		match := arrayIndexPattern.FindStringSubmatch(m.DBFieldName)
		if match == nil {
			continue
		}
		if prefix == "" {
			prefix = match[1]
		}
		if match[1] == prefix {
			suffixes[m.ExcelColumn] = match[3]
		}
	}
	if len(suffixes) == 0 {
		return "", nil
	}
	return prefix, suffixes
}

// arrayIndexes collects the distinct indexes i for which the document has
// any {prefix}[i] field, in ascending order.
func arrayIndexes(fields []*models.ExtractedField, prefix string) []int {
	seen := make(map[int]bool)
	lead := prefix + "["
	for _, f := range fields {
		if !strings.HasPrefix(f.FieldName, lead) {
			continue
		}
		rest := f.FieldName[len(lead):]
		end := strings.Index(rest, "]")
		if end <= 0 {
			continue
		}
		if idx, err := strconv.Atoi(rest[:end]); err == nil {
			seen[idx] = true
		}
	}

	indexes := make([]int, 0, len(seen))
	for idx := range seen {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	return indexes
}

// cellFromMapping resolves one cell. Defaults short-circuit; AI extracted
// values bypass the field map; everything else goes through the 4-level
// field lookup.
func cellFromMapping(m *models.MappingResult, fieldMap map[string]*models.ExtractedField, logger arbor.ILogger) Cell {
	if m.IsDefault() {
		if m.DefaultValue != nil {
			return Cell{Value: *m.DefaultValue, Type: models.FieldTypeText}
		}
		return Cell{Type: models.FieldTypeText}
	}
	if m.ExtractedValue != nil {
		return renderCell(m, *m.ExtractedValue, models.FieldTypeText, logger)
	}
	if m.DBFieldName == "" || fieldMap == nil {
		return Cell{Value: fallbackDefault(m), Type: models.FieldTypeText}
	}
	return cellFromField(m, lookupField(fieldMap, m.DBFieldName), logger)
}

func cellFromField(m *models.MappingResult, f *models.ExtractedField, logger arbor.ILogger) Cell {
	if f == nil {
		return renderCell(m, "", models.FieldTypeText, logger)
	}
	return renderCell(m, f.Value(), f.FieldType, logger)
}

// renderCell applies the column's post-processing and default fallback
func renderCell(m *models.MappingResult, value string, fieldType models.FieldType, logger arbor.ILogger) Cell {
	if m.PostProcessType != "" && value != "" {
		value = postprocess.Apply(m.PostProcessType, value, postProcessConfig(m))
	}
	if value == "" {
		return Cell{Value: fallbackDefault(m), Type: models.FieldTypeText}
	}
	return Cell{Value: value, Type: fieldType}
}

func fallbackDefault(m *models.MappingResult) string {
	if m.DefaultValue != nil {
		return *m.DefaultValue
	}
	return ""
}

func postProcessConfig(m *models.MappingResult) *postprocess.Config {
	cfg := &postprocess.Config{}
	if m.PostProcessConfig == nil {
		return cfg
	}
	cfg.Separator = m.PostProcessConfig["separator"]
	cfg.Format = m.PostProcessConfig["format"]
	if v, ok := m.PostProcessConfig["anchor_year"]; ok {
		if year, err := strconv.Atoi(v); err == nil {
			cfg.AnchorYear = year
		}
	}
	return cfg
}

// lookupField resolves a field name with four fallback levels: exact,
// normalized, key-part (suffix after the last dot), then suffix-endswith on
// any stored name.
func lookupField(fieldMap map[string]*models.ExtractedField, name string) *models.ExtractedField {
	if f, ok := fieldMap[name]; ok {
		return f
	}

	normalized := normalizeFieldName(name)
	for k, f := range fieldMap {
		if normalizeFieldName(k) == normalized {
			return f
		}
	}

	keyPart := name
	if dot := strings.LastIndex(name, "."); dot >= 0 {
		keyPart = name[dot+1:]
	}
	normalizedPart := normalizeFieldName(keyPart)
	for k, f := range fieldMap {
		suffix := k
		if dot := strings.LastIndex(k, "."); dot >= 0 {
			suffix = k[dot+1:]
		}
		if normalizeFieldName(suffix) == normalizedPart {
			return f
		}
	}

	for k, f := range fieldMap {
		if strings.HasSuffix(strings.ToLower(k), strings.ToLower(keyPart)) {
			return f
		}
	}

	return nil
}

func normalizeFieldName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
