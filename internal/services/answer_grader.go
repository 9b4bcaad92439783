package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
	"github.com/yungbote/proofstake-backend/internal/domain/stakes"
	"github.com/yungbote/proofstake-backend/internal/learning/prompts"
	"github.com/yungbote/proofstake-backend/internal/observability"
	"github.com/yungbote/proofstake-backend/internal/platform/llm"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

type AnswerGrade struct {
	Score    int
	Feedback string
	// SpanRef is the id of the attempt span that produced the grade; empty for blank answers.
	SpanRef string
}

type AnswerGrader interface {
	GradeAnswer(ctx context.Context, trace observability.TraceHandle, q stakes.Question, answerText string) (AnswerGrade, error)
}

type answerGrader struct {
	log    *logger.Logger
	llm    llm.Completer
	runner llmRunner
}

func NewAnswerGrader(baseLog *logger.Logger, completer llm.Completer, tracer observability.Tracer, metrics *observability.Metrics, policy RetryPolicy) AnswerGrader {
	if tracer == nil {
		tracer = observability.NopTracer{}
	}
	log := baseLog.With("service", "AnswerGrader")
	return &answerGrader{
		log:    log,
		llm:    completer,
		runner: llmRunner{log: log, tracer: tracer, metrics: metrics, policy: policy.withDefaults()},
	}
}

type gradeOutput struct {
	Score    json.Number `json:"score"`
	Feedback string      `json:"feedback"`
}

func (g *answerGrader) GradeAnswer(ctx context.Context, trace observability.TraceHandle, q stakes.Question, answerText string) (AnswerGrade, error) {
	const op = "Services.AnswerGrader.GradeAnswer"
	if strings.TrimSpace(answerText) == "" {
		return AnswerGrade{Score: 0, Feedback: stakes.BlankAnswerFeedback}, nil
	}
	if g.llm == nil {
		return AnswerGrade{}, domainagg.NewError(domainagg.CodeInternal, op, "llm completer not configured", nil)
	}

	in := prompts.Input{
		QuestionType:   string(q.Type),
		QuestionPrompt: q.Prompt,
		AnswerText:     answerText,
	}
	if opts := q.OptionList(); len(opts) > 0 {
		in.OptionsText = formatOptions(opts)
	}
	if q.CorrectAnswer != nil {
		in.CorrectAnswer = *q.CorrectAnswer
	}
	p, err := prompts.Build(prompts.PromptAnswerGrade, in)
	if err != nil {
		return AnswerGrade{}, domainagg.Wrap(domainagg.CodeStructural, op, err)
	}

	return runLLM(ctx, g.runner, llmCall{
		op:       op,
		spanName: "grade_answer." + q.ID.String(),
		kind:     observability.SpanKindEvaluator,
		parent:   trace,
	}, func(ctx context.Context, span observability.SpanHandle) AttemptResult[AnswerGrade] {
		c, err := g.llm.Complete(ctx, llm.CompletionRequest{System: p.System, User: p.User, JSONMode: true})
		if err != nil {
			return transportFailure[AnswerGrade](err)
		}
		grade, err := parseAnswerGrade(c.Text)
		if err != nil {
			return schemaFailure[AnswerGrade](err, c)
		}
		grade.SpanRef = span.ID
		res := attemptOK(grade, c)
		score := float64(grade.Score)
		res.Evaluation = &score
		return res
	})
}

func parseAnswerGrade(text string) (AnswerGrade, error) {
	raw, err := llm.ExtractJSONObject(text)
	if err != nil {
		return AnswerGrade{}, err
	}
	if err := prompts.ValidateOutput(prompts.PromptAnswerGrade, raw); err != nil {
		return AnswerGrade{}, err
	}
	var out gradeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return AnswerGrade{}, fmt.Errorf("decode grade: %w", err)
	}
	f, err := out.Score.Float64()
	if err != nil {
		return AnswerGrade{}, fmt.Errorf("decode score: %w", err)
	}
	return AnswerGrade{Score: int(math.Round(f)), Feedback: strings.TrimSpace(out.Feedback)}, nil
}

func formatOptions(opts []string) string {
	var b strings.Builder
	for i, o := range opts {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%c) %s", 'A'+i, o)
	}
	return b.String()
}
