package prompts

func StringArraySchema() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}

func StringOrNullSchema() map[string]any {
	return map[string]any{
		"type": []any{"string", "null"},
	}
}

func NonEmptyStringSchema() map[string]any {
	return map[string]any{"type": "string", "minLength": 1, "pattern": `\S`}
}

func BoundedIntSchema(min, max int) map[string]any {
	return map[string]any{"type": "integer", "minimum": min, "maximum": max}
}

func EnumSchema(values ...string) map[string]any {
	arr := make([]any, 0, len(values))
	for _, v := range values {
		arr = append(arr, v)
	}
	return map[string]any{"type": "string", "enum": arr}
}
