package prompts

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildExamQuestionsPrompt(t *testing.T) {
	p, err := Build(PromptExamQuestions, Input{Topic: "Rust ownership", QuestionCount: 7})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(p.User, "exactly 7 questions") || !strings.Contains(p.User, `"Rust ownership"`) {
		t.Fatalf("user prompt missing topic/count:\n%s", p.User)
	}
	if p.SchemaName != "exam_questions_v1" || p.Fingerprint() == "" {
		t.Fatalf("unexpected prompt meta: %+v", p)
	}
	if _, err := Build(PromptExamQuestions, Input{QuestionCount: 7}); err == nil {
		t.Fatalf("expected missing topic error")
	}
}

func TestBuildAnswerGradeOmitsEmptySections(t *testing.T) {
	p, err := Build(PromptAnswerGrade, Input{QuestionType: "short_answer", QuestionPrompt: "Define borrowing.", AnswerText: "A reference."})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if strings.Contains(p.User, "Options:") || strings.Contains(p.User, "Reference answer") {
		t.Fatalf("empty sections rendered:\n%s", p.User)
	}
}

func TestValidateOutputQuestionSet(t *testing.T) {
	valid := `{"questions":[
		{"id":"1","type":"multiple_choice","prompt":"p","options":["a","b","c","d"],"correct_answer":"b","difficulty":"advanced"},
		{"id":"2","type":"short_answer","prompt":"p","correct_answer":null,"difficulty":"intermediate"},
		{"id":"3","type":"application","prompt":"p","difficulty":"intermediate"},
		{"id":"4","type":"short_answer","prompt":"p","difficulty":"advanced"},
		{"id":"5","type":"application","prompt":"p","difficulty":"advanced"}]}`
	if err := ValidateOutput(PromptExamQuestions, []byte(valid)); err != nil {
		t.Fatalf("valid set rejected: %v", err)
	}

	cases := map[string]string{
		"too few":       `{"questions":[{"type":"short_answer","prompt":"p","difficulty":"advanced"}]}`,
		"three options": strings.Replace(valid, `["a","b","c","d"]`, `["a","b","c"]`, 1),
		"no correct":    strings.Replace(valid, `,"correct_answer":"b"`, ``, 1),
		"bad enum":      strings.Replace(valid, `"difficulty":"advanced"`, `"difficulty":"beginner"`, 1),
	}
	for name, doc := range cases {
		if err := ValidateOutput(PromptExamQuestions, []byte(doc)); !errors.Is(err, ErrOutputSchema) {
			t.Fatalf("%s: want ErrOutputSchema got=%v", name, err)
		}
	}
}

func TestValidateOutputAnswerGrade(t *testing.T) {
	for doc, ok := range map[string]bool{
		`{"score":70,"feedback":"fine"}`:   true,
		`{"score":70.0,"feedback":"fine"}`: true,
		`{"score":101,"feedback":"fine"}`:  false,
		`{"score":70.5,"feedback":"fine"}`: false,
		`{"score":70,"feedback":"   "}`:    false,
		`{"score":"70","feedback":"x"}`:    false,
	} {
		err := ValidateOutput(PromptAnswerGrade, []byte(doc))
		if ok && err != nil {
			t.Fatalf("%s: unexpected err %v", doc, err)
		}
		if !ok && !errors.Is(err, ErrOutputSchema) {
			t.Fatalf("%s: want ErrOutputSchema got=%v", doc, err)
		}
	}
}
