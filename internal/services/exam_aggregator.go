package services

import (
	"context"
	"math"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
	"github.com/yungbote/proofstake-backend/internal/domain/stakes"
	"github.com/yungbote/proofstake-backend/internal/observability"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

const defaultGradingConcurrency = 4

type QuestionGrade struct {
	QuestionID uuid.UUID
	Score      int
	Feedback   string
	SpanRef    string
}

type ExamGrade struct {
	OverallScore int
	Passed       bool
	// PerQuestion follows the stored question order.
	PerQuestion []QuestionGrade
	TraceRef    string
}

type ExamAggregator interface {
	GradeExam(ctx context.Context, exam *stakes.Exam, questions []stakes.Question, answers []stakes.Answer) (ExamGrade, error)
}

type examAggregator struct {
	log         *logger.Logger
	grader      AnswerGrader
	tracer      observability.Tracer
	concurrency int
}

func NewExamAggregator(baseLog *logger.Logger, grader AnswerGrader, tracer observability.Tracer, concurrency int) ExamAggregator {
	if tracer == nil {
		tracer = observability.NopTracer{}
	}
	if concurrency <= 0 {
		concurrency = defaultGradingConcurrency
	}
	return &examAggregator{
		log:         baseLog.With("service", "ExamAggregator"),
		grader:      grader,
		tracer:      tracer,
		concurrency: concurrency,
	}
}

func (a *examAggregator) GradeExam(ctx context.Context, exam *stakes.Exam, questions []stakes.Question, answers []stakes.Answer) (ExamGrade, error) {
	const op = "Services.ExamAggregator.GradeExam"
	if exam == nil {
		return ExamGrade{}, domainagg.Structural(op, "missing exam")
	}
	if len(questions) == 0 {
		return ExamGrade{}, domainagg.Structural(op, "exam has no questions")
	}
	if len(answers) == 0 {
		return ExamGrade{}, domainagg.Structural(op, "exam has no answers")
	}

	byQuestion := make(map[uuid.UUID]stakes.Answer, len(answers))
	for _, ans := range answers {
		byQuestion[ans.QuestionID] = ans
	}

	ctx, trace := a.tracer.StartTrace(ctx, "grade_exam", map[string]any{
		"exam_id":   exam.ID.String(),
		"questions": len(questions),
		"answers":   len(answers),
	})

	grades := make([]QuestionGrade, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := range questions {
		i, q := i, questions[i]
		g.Go(func() error {
			spanCtx, span := a.tracer.StartSpan(gctx, trace, "grade_question."+q.ID.String(), observability.SpanKindChain)
			text := ""
			if ans, ok := byQuestion[q.ID]; ok {
				text = ans.AnswerText
			}
			res, err := a.grader.GradeAnswer(spanCtx, span.AsParent(), q, text)
			if err != nil {
				a.tracer.EndSpan(span, nil, err)
				return err
			}
			spanRef := res.SpanRef
			if spanRef == "" {
				spanRef = span.ID
			}
			grades[i] = QuestionGrade{QuestionID: q.ID, Score: res.Score, Feedback: res.Feedback, SpanRef: spanRef}
			a.tracer.EndSpan(span, map[string]any{"position": i, "score": res.Score}, nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.tracer.EndTrace(trace, nil, err)
		a.log.Warn("exam grading aborted", "exam_id", exam.ID, "trace_ref", trace.ID, "error", err)
		return ExamGrade{}, err
	}

	scores := make([]int, len(grades))
	for i, gr := range grades {
		scores[i] = gr.Score
	}
	overall := OverallScore(scores)
	out := ExamGrade{
		OverallScore: overall,
		Passed:       Passed(overall),
		PerQuestion:  grades,
		TraceRef:     trace.ID,
	}
	a.tracer.EndTrace(trace, map[string]any{"overall_score": out.OverallScore, "passed": out.Passed}, nil)
	return out, nil
}

// OverallScore is the mean of scores rounded half away from zero; zero for no scores.
func OverallScore(scores []int) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return int(math.Round(float64(sum) / float64(len(scores))))
}

func Passed(overall int) bool {
	return overall >= stakes.PassScore
}
