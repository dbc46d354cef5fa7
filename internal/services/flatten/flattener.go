package flatten

import (
	"fmt"
	"strings"

	"github.com/ternarybob/scriba/internal/models"
)

// defaultReviewCutoff is the confidence below which a field is flagged for
// manual review when no cutoff is configured.
const defaultReviewCutoff = 0.7

// Flattener walks hierarchical extraction trees into ordered field rows.
// The field order counter is global across the document, so a single
// Flattener instance is fed all pages in page order and must not be shared
// across documents.
type Flattener struct {
	documentID string
	jobID      string
	cutoff     float64
	order      int
}

// NewFlattener creates a flattener for one document. reviewCutoff values of
// zero or below fall back to the default.
func NewFlattener(documentID, jobID string, reviewCutoff float64) *Flattener {
	if reviewCutoff <= 0 {
		reviewCutoff = defaultReviewCutoff
	}
	return &Flattener{documentID: documentID, jobID: jobID, cutoff: reviewCutoff}
}

// FlattenPage appends the flattened fields of one page's hierarchical data.
// Pages must be fed in page order.
func (f *Flattener) FlattenPage(data *models.Value, pageNumber int) []models.ExtractedField {
	if data == nil || data.IsEmpty() {
		return nil
	}

	var fields []models.ExtractedField
	f.walk(data, "", "", pageNumber, 0, &fields)
	return fields
}

func (f *Flattener) walk(v *models.Value, prefix, group string, page, depth int, out *[]models.ExtractedField) {
	switch v.Kind() {
	case models.KindObject:
		obj := v.Object()

		if typeName, inner, ok := obj.TypedLeaf(); ok {
			f.emitTypedLeaf(obj, typeName, inner, prefix, group, page, out)
			return
		}

		for _, key := range obj.Keys() {
			if strings.HasPrefix(key, "_") {
				continue
			}
			child, _ := obj.Get(key)

			childPrefix := key
			if prefix != "" {
				childPrefix = prefix + "." + key
			}
			childGroup := group
			if depth == 0 {
				childGroup = key
			}
			f.walk(child, childPrefix, childGroup, page, depth+1, out)
		}

	case models.KindArray:
		items := v.Items()
		if len(items) == 0 {
			empty := "[]"
			*out = append(*out, f.newField(prefix, group, models.FieldTypeArray, &empty, nil, page))
			return
		}
		for i, item := range items {
			f.walk(item, fmt.Sprintf("%s[%d]", prefix, i), group, page, depth+1, out)
		}

	case models.KindNull:
		*out = append(*out, f.newField(prefix, group, models.FieldTypeNull, nil, nil, page))

	default:
		value := v.Stringify()
		*out = append(*out, f.newField(prefix, group, primitiveType(v.Kind()), &value, nil, page))
	}
}

// emitTypedLeaf handles the {"_type": ..., "value": ...} wrapper. Tables
// explode into one table_cell field per row column; other types become a
// single typed leaf carrying the wrapper's confidence.
func (f *Flattener) emitTypedLeaf(obj *models.Object, typeName string, inner *models.Value, prefix, group string, page int, out *[]models.ExtractedField) {
	confidence := leafConfidence(obj)

	if typeName == "table" && inner.Kind() == models.KindArray {
		for i, row := range inner.Items() {
			rowObj := row.Object()
			if rowObj == nil {
				continue
			}
			for _, col := range rowObj.Keys() {
				if strings.HasPrefix(col, "_") {
					continue
				}
				cell, _ := rowObj.Get(col)
				name := fmt.Sprintf("%s[%d].%s", prefix, i, col)
				value := cell.Stringify()
				var cellValue *string
				if cell.Kind() != models.KindNull {
					cellValue = &value
				}
				*out = append(*out, f.newField(name, group, models.FieldTypeTableCell, cellValue, confidence, page))
			}
		}
		return
	}

	fieldType := declaredType(typeName, inner.Kind())
	if inner.Kind() == models.KindNull {
		*out = append(*out, f.newField(prefix, group, models.FieldTypeNull, nil, confidence, page))
		return
	}
	value := inner.Stringify()
	*out = append(*out, f.newField(prefix, group, fieldType, &value, confidence, page))
}

func (f *Flattener) newField(name, group string, fieldType models.FieldType, value *string, confidence *float64, page int) models.ExtractedField {
	f.order++
	return models.ExtractedField{
		DocumentID:        f.documentID,
		JobID:             f.jobID,
		FieldName:         name,
		FieldLabel:        FieldLabel(name),
		FieldType:         fieldType,
		FieldValue:        value,
		FieldGroup:        group,
		PageNumber:        page,
		FieldOrder:        f.order,
		ConfidenceScore:   confidence,
		NeedsManualReview: confidence != nil && *confidence < f.cutoff,
		SectionName:       group,
	}
}

func leafConfidence(obj *models.Object) *float64 {
	v, ok := obj.Get("confidence")
	if !ok {
		return nil
	}
	switch v.Kind() {
	case models.KindNumber:
		c := v.Float()
		return &c
	case models.KindInt:
		c := float64(v.Int())
		return &c
	default:
		return nil
	}
}

func primitiveType(kind models.Kind) models.FieldType {
	switch kind {
	case models.KindBool:
		return models.FieldTypeBoolean
	case models.KindInt:
		return models.FieldTypeInteger
	case models.KindNumber:
		return models.FieldTypeNumber
	default:
		return models.FieldTypeText
	}
}

// declaredType maps a wrapper's _type onto a field type, falling back to the
// value's own kind for unknown declarations.
func declaredType(typeName string, kind models.Kind) models.FieldType {
	switch strings.ToLower(typeName) {
	case "string", "text":
		return models.FieldTypeText
	case "integer", "int":
		return models.FieldTypeInteger
	case "number", "float":
		return models.FieldTypeNumber
	case "boolean", "bool":
		return models.FieldTypeBoolean
	case "date":
		return models.FieldTypeDate
	case "currency":
		return models.FieldTypeCurrency
	default:
		return primitiveType(kind)
	}
}

// FieldLabel renders a dotted/indexed path as a human-readable label:
// "customer.addresses[2].city" becomes "Customer > Addresses 3 > City".
func FieldLabel(name string) string {
	parts := strings.Split(name, ".")
	labels := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		index := ""
		if open := strings.Index(part, "["); open >= 0 && strings.HasSuffix(part, "]") {
			idx := part[open+1 : len(part)-1]
			part = part[:open]
			if n, err := parseIndex(idx); err == nil {
				index = fmt.Sprintf(" %d", n+1)
			}
		}

		labels = append(labels, titleCase(part)+index)
	}
	return strings.Join(labels, " > ")
}

func parseIndex(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

// titleCase capitalizes snake_case and space-separated words
func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
