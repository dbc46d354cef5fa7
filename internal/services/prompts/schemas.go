package prompts

// Extraction schemas stay permissive so one unexpected key does not sink a
// whole page; classification schemas are strict objects.

func permissiveObjectSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": true,
	}
}

func templateMatchingSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"template_id": map[string]interface{}{"type": []string{"string", "null"}},
			"confidence":  map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
			"reasoning":   map[string]interface{}{"type": "string"},
		},
		"required":             []string{"template_id", "confidence"},
		"additionalProperties": false,
	}
}

func bankStatementSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"_table_headers": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
		},
		"additionalProperties": true,
	}
}
