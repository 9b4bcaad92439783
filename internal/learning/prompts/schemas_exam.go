package prompts

// QuestionSetSchema is the output contract of exam question generation.
// Set-level rules (type coverage, correct answer drawn from options) are checked in code.
func QuestionSetSchema() map[string]any {
	question := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":             map[string]any{"type": "string"},
			"type":           EnumSchema("multiple_choice", "short_answer", "application"),
			"prompt":         NonEmptyStringSchema(),
			"options":        StringArraySchema(),
			"correct_answer": StringOrNullSchema(),
			"difficulty":     EnumSchema("intermediate", "advanced"),
		},
		"required": []string{"type", "prompt", "difficulty"},
		"if": map[string]any{
			"properties": map[string]any{"type": map[string]any{"const": "multiple_choice"}},
		},
		"then": map[string]any{
			"properties": map[string]any{
				"options": map[string]any{
					"type":        "array",
					"items":       NonEmptyStringSchema(),
					"minItems":    4,
					"maxItems":    4,
					"uniqueItems": true,
				},
				"correct_answer": NonEmptyStringSchema(),
			},
			"required": []string{"options", "correct_answer"},
		},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"minItems": 5,
				"maxItems": 10,
				"items":    question,
			},
		},
		"required": []string{"questions"},
	}
}

// AnswerGradeSchema is the output contract of LLM-as-judge grading.
func AnswerGradeSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":    BoundedIntSchema(0, 100),
			"feedback": NonEmptyStringSchema(),
		},
		"required": []string{"score", "feedback"},
	}
}
