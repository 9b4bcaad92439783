package prompts

type PromptName string

const (
	PromptExamQuestions PromptName = "exam_questions"
	PromptAnswerGrade   PromptName = "answer_grade"
)
