package prompts

import (
	"errors"
	"strings"
)

func init() {
	RegisterSpec(Spec{
		Name:       PromptExamQuestions,
		Version:    1,
		SchemaName: "exam_questions_v1",
		Schema:     QuestionSetSchema,
		System: `You are an expert examiner who writes rigorous assessments proving mastery of a topic.
Return ONLY a JSON object. Do not include markdown or commentary.`,
		User: `Write an exam of exactly {{.QuestionCount}} questions on the topic: "{{.Topic}}".

Requirements:
- Include at least one question of each type: multiple_choice, short_answer, application.
- Every question is intermediate or advanced difficulty; nothing introductory.
- multiple_choice questions have exactly 4 options and a correct_answer that is one of those options, copied verbatim.
- short_answer and application questions may include a brief reference answer in correct_answer, or null.
- Each question gets a unique id (a UUID).

Output format:
{"questions":[{"id":"<uuid>","type":"multiple_choice|short_answer|application","prompt":"...","options":["...","...","...","..."],"correct_answer":"...","difficulty":"intermediate|advanced"}]}`,
		Validators: []Validator{requireTopic, requireQuestionCount},
	})

	RegisterSpec(Spec{
		Name:       PromptAnswerGrade,
		Version:    1,
		SchemaName: "answer_grade_v1",
		Schema:     AnswerGradeSchema,
		System: `You are a strict but fair grader. Score how well the answer demonstrates mastery of the question.
Return ONLY a JSON object. Do not include markdown or commentary.`,
		User: `Question type: {{.QuestionType}}
Question: {{.QuestionPrompt}}
{{- if .OptionsText}}
Options:
{{.OptionsText}}
{{- end}}
{{- if .CorrectAnswer}}
Reference answer (a grading aid; for non multiple_choice questions other correct answers are acceptable): {{.CorrectAnswer}}
{{- end}}

Submitted answer:
{{.AnswerText}}

Score the submitted answer from 0 to 100 as an integer and explain the score in one or two sentences.
Output format: {"score": <0-100>, "feedback": "..."}`,
		Validators: []Validator{requireQuestionPrompt},
	})
}

func requireTopic(in Input) error {
	if strings.TrimSpace(in.Topic) == "" {
		return errors.New("missing topic")
	}
	return nil
}

func requireQuestionCount(in Input) error {
	if in.QuestionCount <= 0 {
		return errors.New("missing question count")
	}
	return nil
}

func requireQuestionPrompt(in Input) error {
	if strings.TrimSpace(in.QuestionPrompt) == "" {
		return errors.New("missing question prompt")
	}
	return nil
}
