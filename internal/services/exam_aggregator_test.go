package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
	"github.com/yungbote/proofstake-backend/internal/domain/stakes"
	"github.com/yungbote/proofstake-backend/internal/observability"
	"github.com/yungbote/proofstake-backend/internal/platform/llm"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

func newTestAggregator(c llm.Completer, rec *observability.Recorder) ExamAggregator {
	grader := NewAnswerGrader(logger.Nop(), c, rec, nil, instantPolicy(&sleepRecorder{}))
	return NewExamAggregator(logger.Nop(), grader, rec, 2)
}

func TestGradeExamMixedAnswers(t *testing.T) {
	q1 := mcQuestion()
	q2 := stakes.Question{ID: uuid.New(), Type: stakes.QuestionShortAnswer, Prompt: "Define borrowing.", Difficulty: stakes.DifficultyAdvanced}
	exam := &stakes.Exam{ID: uuid.New()}
	answers := []stakes.Answer{
		{ExamID: exam.ID, QuestionID: q1.ID, AnswerText: "B"},
		{ExamID: exam.ID, QuestionID: q2.ID, AnswerText: ""},
	}
	completer := &gradeByAnswer{scores: map[string]int{"B": 100}}
	rec := observability.NewRecorder()

	res, err := newTestAggregator(completer, rec).GradeExam(context.Background(), exam, []stakes.Question{q1, q2}, answers)
	require.NoError(t, err)
	require.Equal(t, 50, res.OverallScore)
	require.False(t, res.Passed)
	require.Equal(t, 1, completer.Calls())

	require.Len(t, res.PerQuestion, 2)
	require.Equal(t, q1.ID, res.PerQuestion[0].QuestionID)
	require.Equal(t, 100, res.PerQuestion[0].Score)
	require.Equal(t, q2.ID, res.PerQuestion[1].QuestionID)
	require.Equal(t, 0, res.PerQuestion[1].Score)
	require.Equal(t, stakes.BlankAnswerFeedback, res.PerQuestion[1].Feedback)

	traces := rec.Traces()
	require.Len(t, traces, 1)
	require.Equal(t, "grade_exam", traces[0].Handle.Name)
	require.Equal(t, res.TraceRef, traces[0].Handle.ID)
	// two question spans plus one grading attempt
	require.Len(t, rec.SpansOf(res.TraceRef), 3)

	questionSpans := rec.ChildrenOf("")
	require.Len(t, questionSpans, 2)
	var attempts []observability.RecordedSpan
	for _, qs := range questionSpans {
		require.True(t, strings.HasPrefix(qs.Handle.Name, "grade_question."))
		attempts = append(attempts, rec.ChildrenOf(qs.Handle.ID)...)
	}
	require.Len(t, attempts, 1)
	require.Equal(t, "grade_question."+q1.ID.String(), spanName(rec, attempts[0].Handle.ParentID))
	require.Equal(t, res.PerQuestion[0].SpanRef, attempts[0].Handle.ID)
}

func spanName(rec *observability.Recorder, id string) string {
	for _, s := range rec.Spans() {
		if s.Handle.ID == id {
			return s.Handle.Name
		}
	}
	return ""
}

func TestGradeExamMissingAnswerScoresZeroWithoutLLM(t *testing.T) {
	q1, q2 := mcQuestion(), mcQuestion()
	exam := &stakes.Exam{ID: uuid.New()}
	completer := &gradeByAnswer{scores: map[string]int{"B": 80}}

	res, err := newTestAggregator(completer, observability.NewRecorder()).GradeExam(context.Background(), exam,
		[]stakes.Question{q1, q2}, []stakes.Answer{{QuestionID: q2.ID, AnswerText: "B"}})
	require.NoError(t, err)
	require.Equal(t, 1, completer.Calls())
	require.Equal(t, 0, res.PerQuestion[0].Score)
	require.Equal(t, 80, res.PerQuestion[1].Score)
	require.Equal(t, 40, res.OverallScore)
}

func TestGradeExamStructuralFailures(t *testing.T) {
	completer := &gradeByAnswer{}
	agg := newTestAggregator(completer, observability.NewRecorder())
	exam := &stakes.Exam{ID: uuid.New()}
	q := mcQuestion()

	_, err := agg.GradeExam(context.Background(), exam, nil, []stakes.Answer{{QuestionID: q.ID, AnswerText: "B"}})
	require.True(t, domainagg.IsCode(err, domainagg.CodeStructural))
	_, err = agg.GradeExam(context.Background(), exam, []stakes.Question{q}, nil)
	require.True(t, domainagg.IsCode(err, domainagg.CodeStructural))
	require.Zero(t, completer.Calls())
}

func TestGradeExamAbortsOnExhaustion(t *testing.T) {
	completer := &gradeByAnswer{err: &llm.TransportError{Kind: llm.TransportRateLimited, StatusCode: 429, Err: errors.New("quota")}}
	rec := observability.NewRecorder()
	q1, q2 := mcQuestion(), mcQuestion()

	_, err := newTestAggregator(completer, rec).GradeExam(context.Background(), &stakes.Exam{ID: uuid.New()},
		[]stakes.Question{q1, q2},
		[]stakes.Answer{{QuestionID: q1.ID, AnswerText: "B"}, {QuestionID: q2.ID, AnswerText: "B"}})
	require.True(t, domainagg.IsCode(err, domainagg.CodeMaxRetriesExceeded), "got %v", err)
	traces := rec.Traces()
	require.Len(t, traces, 1)
	require.Error(t, traces[0].Err)
}

func TestPassThresholdBoundary(t *testing.T) {
	require.True(t, Passed(70))
	require.False(t, Passed(69))
	require.Equal(t, 70, OverallScore([]int{69, 70, 71}))
	require.Equal(t, 70, OverallScore([]int{69, 70}))
	require.Equal(t, 69, OverallScore([]int{69, 69, 70}))
	require.Equal(t, 0, OverallScore(nil))
}

func TestOverallScoreProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	scores := gen.SliceOf(gen.IntRange(0, 100)).SuchThat(func(v []int) bool { return len(v) > 0 })

	properties.Property("overall score is the rounded mean", prop.ForAll(
		func(v []int) bool {
			sum := 0
			for _, s := range v {
				sum += s
			}
			mean := float64(sum) / float64(len(v))
			return OverallScore(v) == int(math.Round(mean))
		},
		scores,
	))

	properties.Property("overall score stays within the score range", prop.ForAll(
		func(v []int) bool {
			o := OverallScore(v)
			return o >= 0 && o <= 100
		},
		scores,
	))

	properties.Property("passed iff overall score reaches the threshold", prop.ForAll(
		func(v []int) bool {
			o := OverallScore(v)
			return Passed(o) == (o >= 70)
		},
		scores,
	))

	properties.TestingRun(t)
}
