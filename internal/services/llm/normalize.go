package llm

import (
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

// normalizeResponse shapes the parsed tree per task:
//   - field_detection / form_creation keep the hierarchical object and gain a
//     _keyOrder hint when the model did not emit one, so downstream consumers
//     that round-trip through unordered maps can recover the order.
//   - the extraction tasks pass through untouched.
//   - everything else is coerced to a {fields:[...]} shape.
func normalizeResponse(task interfaces.ExtractionTask, parsed *models.Value) *models.Value {
	switch task {
	case interfaces.TaskFieldDetection, interfaces.TaskFormCreation:
		attachKeyOrder(parsed)
		return parsed
	case interfaces.TaskWithoutTemplateExtraction, interfaces.TaskTemplateGuidedExtraction, interfaces.TaskBankStatementExtraction:
		return parsed
	default:
		return coerceFieldsShape(parsed)
	}
}

// attachKeyOrder reconciles the root object with its _keyOrder hint. When the
// model emitted one, the object's keys are reordered to match it; when
// missing, the hint is added from current key insertion order.
func attachKeyOrder(v *models.Value) {
	obj := v.Object()
	if obj == nil {
		return
	}
	if existing, ok := obj.Get("_keyOrder"); ok {
		obj.Reorder(stringItems(existing))
		return
	}

	order := models.ArrayValue()
	for _, k := range obj.Keys() {
		order.Append(models.StringValue(k))
	}
	obj.Set("_keyOrder", order)
}

func stringItems(v *models.Value) []string {
	items := v.Items()
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item.Kind() == models.KindString {
			out = append(out, item.Str())
		}
	}
	return out
}

// coerceFieldsShape wraps non-conforming output into {fields:[...]}.
// An object with a fields key passes through; a bare array becomes the
// fields list; anything else becomes a single-element list.
func coerceFieldsShape(v *models.Value) *models.Value {
	if obj := v.Object(); obj != nil {
		if _, ok := obj.Get("fields"); ok {
			return v
		}
	}

	wrapped := models.NewObject()
	if v.Kind() == models.KindArray {
		wrapped.Set("fields", v)
	} else {
		wrapped.Set("fields", models.ArrayValue(v))
	}
	return models.ObjectValue(wrapped)
}
