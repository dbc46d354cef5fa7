package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

func TestNormalizeResponse_FieldDetectionGainsKeyOrder(t *testing.T) {
	parsed, err := models.ParseValue([]byte(`{"invoice": {"no": "INV-001"}, "customer": {"name": "ACME"}}`))
	require.NoError(t, err)

	out := normalizeResponse(interfaces.TaskFieldDetection, parsed)
	obj := out.Object()
	require.NotNil(t, obj)

	order, ok := obj.Get("_keyOrder")
	require.True(t, ok)
	require.Equal(t, models.KindArray, order.Kind())

	var keys []string
	for _, item := range order.Items() {
		keys = append(keys, item.Str())
	}
	assert.Equal(t, []string{"invoice", "customer"}, keys)
}

func TestNormalizeResponse_ExistingKeyOrderKept(t *testing.T) {
	parsed, err := models.ParseValue([]byte(`{"_keyOrder": ["b", "a"], "a": 1, "b": 2}`))
	require.NoError(t, err)

	out := normalizeResponse(interfaces.TaskFormCreation, parsed)
	order, ok := out.Object().Get("_keyOrder")
	require.True(t, ok)
	require.Len(t, order.Items(), 2)
	assert.Equal(t, "b", order.Items()[0].Str())
}

func TestNormalizeResponse_KeyOrderReordersObject(t *testing.T) {
	// The model declared its intended order in _keyOrder; the object's keys
	// are rearranged to match it.
	parsed, err := models.ParseValue([]byte(`{"a": 1, "b": 2, "_keyOrder": ["b", "a"]}`))
	require.NoError(t, err)

	out := normalizeResponse(interfaces.TaskFieldDetection, parsed)
	keys := out.Object().Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, "b", keys[0])
	assert.Equal(t, "a", keys[1])
}

func TestNormalizeResponse_ExtractionPassesThrough(t *testing.T) {
	parsed, err := models.ParseValue([]byte(`{"invoice": {"total": "123.45"}}`))
	require.NoError(t, err)

	for _, task := range []interfaces.ExtractionTask{
		interfaces.TaskWithoutTemplateExtraction,
		interfaces.TaskTemplateGuidedExtraction,
		interfaces.TaskBankStatementExtraction,
	} {
		out := normalizeResponse(task, parsed)
		assert.Same(t, parsed, out, "task %s must not reshape output", task)
		_, hasOrder := out.Object().Get("_keyOrder")
		assert.False(t, hasOrder)
	}
}

func TestNormalizeResponse_CoercesFieldsShape(t *testing.T) {
	t.Run("bare array becomes fields list", func(t *testing.T) {
		parsed, err := models.ParseValue([]byte(`[{"name": "a"}, {"name": "b"}]`))
		require.NoError(t, err)

		out := normalizeResponse(interfaces.TaskTemplateMatching, parsed)
		fields, ok := out.Object().Get("fields")
		require.True(t, ok)
		assert.Len(t, fields.Items(), 2)
	})

	t.Run("object without fields key is wrapped", func(t *testing.T) {
		parsed, err := models.ParseValue([]byte(`{"name": "a"}`))
		require.NoError(t, err)

		out := normalizeResponse(interfaces.TaskDBTemplateMatching, parsed)
		fields, ok := out.Object().Get("fields")
		require.True(t, ok)
		require.Len(t, fields.Items(), 1)
		assert.Same(t, parsed, fields.Items()[0])
	})

	t.Run("object with fields key passes through", func(t *testing.T) {
		parsed, err := models.ParseValue([]byte(`{"fields": [{"name": "a"}]}`))
		require.NoError(t, err)

		out := normalizeResponse(interfaces.TaskTemplateMatching, parsed)
		assert.Same(t, parsed, out)
	})
}
