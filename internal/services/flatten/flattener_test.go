package flatten

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/scriba/internal/models"
)

func parse(t *testing.T, raw string) *models.Value {
	t.Helper()
	v, err := models.ParseValue([]byte(raw))
	require.NoError(t, err)
	return v
}

func TestFlattenPage_SimpleDocument(t *testing.T) {
	f := NewFlattener("doc_1", "job_1", 0)
	data := parse(t, `{"invoice": {"invoice_no": "INV-001", "customer": "ACME", "total": 123.45}}`)

	fields := f.FlattenPage(data, 1)
	require.Len(t, fields, 3)

	assert.Equal(t, "invoice.invoice_no", fields[0].FieldName)
	assert.Equal(t, "INV-001", fields[0].Value())
	assert.Equal(t, "invoice", fields[0].FieldGroup)
	assert.Equal(t, models.FieldTypeText, fields[0].FieldType)

	assert.Equal(t, "invoice.total", fields[2].FieldName)
	assert.Equal(t, "123.45", fields[2].Value())
	assert.Equal(t, models.FieldTypeNumber, fields[2].FieldType)
}

func TestFlattenPage_OrderIncreasesAcrossPages(t *testing.T) {
	f := NewFlattener("doc_1", "job_1", 0)

	page1 := f.FlattenPage(parse(t, `{"a": {"x": 1, "y": 2}}`), 1)
	page2 := f.FlattenPage(parse(t, `{"b": {"z": 3}}`), 2)

	var orders []int
	for _, field := range append(page1, page2...) {
		orders = append(orders, field.FieldOrder)
	}
	assert.Equal(t, []int{1, 2, 3}, orders)
	assert.Equal(t, 2, page2[0].PageNumber)
}

func TestFlattenPage_UnderscoreKeysSkipped(t *testing.T) {
	f := NewFlattener("doc_1", "job_1", 0)
	fields := f.FlattenPage(parse(t, `{"_keyOrder": ["a"], "a": {"b": "v"}}`), 1)

	require.Len(t, fields, 1)
	assert.Equal(t, "a.b", fields[0].FieldName)
}

func TestFlattenPage_Arrays(t *testing.T) {
	f := NewFlattener("doc_1", "job_1", 0)
	fields := f.FlattenPage(parse(t, `{"people": {"names": ["Ann", "Bob"], "tags": []}}`), 1)

	require.Len(t, fields, 3)
	assert.Equal(t, "people.names[0]", fields[0].FieldName)
	assert.Equal(t, "Ann", fields[0].Value())
	assert.Equal(t, "people.names[1]", fields[1].FieldName)

	assert.Equal(t, "people.tags", fields[2].FieldName)
	assert.Equal(t, models.FieldTypeArray, fields[2].FieldType)
	assert.Equal(t, "[]", fields[2].Value())
}

func TestFlattenPage_NullLeaf(t *testing.T) {
	f := NewFlattener("doc_1", "job_1", 0)
	fields := f.FlattenPage(parse(t, `{"invoice": {"due_date": null}}`), 1)

	require.Len(t, fields, 1)
	assert.Equal(t, models.FieldTypeNull, fields[0].FieldType)
	assert.Nil(t, fields[0].FieldValue)
}

func TestFlattenPage_TypedLeaf(t *testing.T) {
	f := NewFlattener("doc_1", "job_1", 0)
	data := parse(t, `{"invoice": {"total": {"_type": "currency", "value": "123.45", "confidence": 0.92}}}`)

	fields := f.FlattenPage(data, 1)
	require.Len(t, fields, 1)
	assert.Equal(t, "invoice.total", fields[0].FieldName)
	assert.Equal(t, models.FieldTypeCurrency, fields[0].FieldType)
	require.NotNil(t, fields[0].ConfidenceScore)
	assert.InDelta(t, 0.92, *fields[0].ConfidenceScore, 1e-9)
	assert.False(t, fields[0].NeedsManualReview)
}

func TestFlattenPage_LowConfidenceFlagsReview(t *testing.T) {
	f := NewFlattener("doc_1", "job_1", 0)
	data := parse(t, `{"invoice": {"total": {"_type": "currency", "value": "9.99", "confidence": 0.4}}}`)

	fields := f.FlattenPage(data, 1)
	require.Len(t, fields, 1)
	assert.True(t, fields[0].NeedsManualReview)
}

func TestFlattenPage_TableExplodesToCells(t *testing.T) {
	f := NewFlattener("doc_1", "job_1", 0)
	data := parse(t, `{
		"transactions": {
			"rows": {
				"_type": "table",
				"value": [
					{"Date": "01/02/2024", "Amount": "10.00"},
					{"Date": "02/02/2024", "Amount": null}
				],
				"confidence": 0.9
			}
		}
	}`)

	fields := f.FlattenPage(data, 1)
	require.Len(t, fields, 4)

	assert.Equal(t, "transactions.rows[0].Date", fields[0].FieldName)
	assert.Equal(t, models.FieldTypeTableCell, fields[0].FieldType)
	assert.Equal(t, "01/02/2024", fields[0].Value())

	assert.Equal(t, "transactions.rows[1].Amount", fields[3].FieldName)
	assert.Nil(t, fields[3].FieldValue, "null cells stay null")
}

func TestFlattenPage_ConfiguredReviewCutoff(t *testing.T) {
	// Cutoff of 0.95 flags a 0.92-confidence field that the default would pass
	f := NewFlattener("doc_1", "job_1", 0.95)
	data := parse(t, `{"invoice": {"total": {"_type": "currency", "value": "123.45", "confidence": 0.92}}}`)

	fields := f.FlattenPage(data, 1)
	require.Len(t, fields, 1)
	assert.True(t, fields[0].NeedsManualReview)
}

func TestFlattenPage_EmptyInput(t *testing.T) {
	f := NewFlattener("doc_1", "job_1", 0)
	assert.Nil(t, f.FlattenPage(nil, 1))
	assert.Nil(t, f.FlattenPage(parse(t, `{}`), 1))
}

func TestFieldLabel(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"customer.addresses[2].city", "Customer > Addresses 3 > City"},
		{"invoice.invoice_no", "Invoice > Invoice No"},
		{"shareholders[0].name", "Shareholders 1 > Name"},
		{"total", "Total"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, FieldLabel(tt.name))
	}
}
