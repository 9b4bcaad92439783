package prompts

// Input is a superset of all fields any prompt might need.
// Missing fields render empty strings (templates use missingkey=zero).
type Input struct {
	// Exam generation
	Topic         string
	QuestionCount int

	// Answer grading
	QuestionType   string
	QuestionPrompt string
	OptionsText    string
	CorrectAnswer  string
	AnswerText     string
}
