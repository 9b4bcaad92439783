package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
	"github.com/yungbote/proofstake-backend/internal/domain/stakes"
	"github.com/yungbote/proofstake-backend/internal/learning/prompts"
	"github.com/yungbote/proofstake-backend/internal/observability"
	"github.com/yungbote/proofstake-backend/internal/platform/llm"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

type GeneratedExam struct {
	Questions []stakes.Question
	// TraceRef is the id of the generation trace.
	TraceRef string
}

type QuestionGenerator interface {
	Generate(ctx context.Context, topic string, count int) (GeneratedExam, error)
}

type questionGenerator struct {
	log    *logger.Logger
	llm    llm.Completer
	tracer observability.Tracer
	runner llmRunner
}

func NewQuestionGenerator(baseLog *logger.Logger, completer llm.Completer, tracer observability.Tracer, metrics *observability.Metrics, policy RetryPolicy) QuestionGenerator {
	if tracer == nil {
		tracer = observability.NopTracer{}
	}
	log := baseLog.With("service", "QuestionGenerator")
	return &questionGenerator{
		log:    log,
		llm:    completer,
		tracer: tracer,
		runner: llmRunner{log: log, tracer: tracer, metrics: metrics, policy: policy.withDefaults()},
	}
}

func (g *questionGenerator) Generate(ctx context.Context, topic string, count int) (GeneratedExam, error) {
	const op = "Services.QuestionGenerator.Generate"
	topic = strings.TrimSpace(topic)
	if count < stakes.MinQuestions || count > stakes.MaxQuestions {
		return GeneratedExam{}, domainagg.Structural(op, fmt.Sprintf("question count must be %d-%d, got %d", stakes.MinQuestions, stakes.MaxQuestions, count))
	}
	if topic == "" {
		return GeneratedExam{}, domainagg.Structural(op, "missing topic")
	}
	if g.llm == nil {
		return GeneratedExam{}, domainagg.NewError(domainagg.CodeInternal, op, "llm completer not configured", nil)
	}
	p, err := prompts.Build(prompts.PromptExamQuestions, prompts.Input{Topic: topic, QuestionCount: count})
	if err != nil {
		return GeneratedExam{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}

	ctx, trace := g.tracer.StartTrace(ctx, "generate_exam", map[string]any{
		"topic":              topic,
		"count":              count,
		"prompt_fingerprint": p.Fingerprint(),
	})

	questions, err := runLLM(ctx, g.runner, llmCall{
		op:       op,
		spanName: "generate_questions",
		kind:     observability.SpanKindLLM,
		parent:   trace,
	}, func(ctx context.Context, _ observability.SpanHandle) AttemptResult[[]stakes.Question] {
		c, err := g.llm.Complete(ctx, llm.CompletionRequest{System: p.System, User: p.User, JSONMode: true})
		if err != nil {
			return transportFailure[[]stakes.Question](err)
		}
		qs, err := parseQuestionSet(c.Text)
		if err != nil {
			return schemaFailure[[]stakes.Question](err, c)
		}
		return attemptOK(qs, c)
	})
	if err != nil {
		g.tracer.EndTrace(trace, nil, err)
		g.log.Warn("exam generation failed", "topic", topic, "count", count, "trace_ref", trace.ID, "error", err)
		return GeneratedExam{}, err
	}

	g.tracer.EndTrace(trace, map[string]any{"questions": len(questions)}, nil)
	g.log.Debug("exam generated", "topic", topic, "questions", len(questions), "trace_ref", trace.ID)
	return GeneratedExam{Questions: questions, TraceRef: trace.ID}, nil
}

type questionSetOutput struct {
	Questions []questionOutput `json:"questions"`
}

type questionOutput struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer *string  `json:"correct_answer"`
	Difficulty    string   `json:"difficulty"`
}

// parseQuestionSet extracts, schema-validates and set-checks one completion.
func parseQuestionSet(text string) ([]stakes.Question, error) {
	raw, err := llm.ExtractJSONObject(text)
	if err != nil {
		return nil, err
	}
	if err := prompts.ValidateOutput(prompts.PromptExamQuestions, raw); err != nil {
		return nil, err
	}
	var out questionSetOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode question set: %w", err)
	}

	now := time.Now().UTC()
	seen := make(map[uuid.UUID]bool, len(out.Questions))
	covered := make(map[stakes.QuestionType]bool, len(stakes.QuestionTypes))
	questions := make([]stakes.Question, 0, len(out.Questions))
	for i, q := range out.Questions {
		qt := stakes.QuestionType(q.Type)
		question := stakes.Question{
			ID:         normalizeQuestionID(q.ID, seen),
			Position:   i,
			Type:       qt,
			Prompt:     strings.TrimSpace(q.Prompt),
			Difficulty: stakes.Difficulty(q.Difficulty),
			CreatedAt:  now,
		}
		if ca := trimmedOrNil(q.CorrectAnswer); ca != nil {
			question.CorrectAnswer = ca
		}
		if qt == stakes.QuestionMultipleChoice {
			opts := make([]string, 0, len(q.Options))
			distinct := make(map[string]bool, len(q.Options))
			for _, o := range q.Options {
				o = strings.TrimSpace(o)
				if distinct[o] {
					return nil, fmt.Errorf("question %d: duplicate option %q", i+1, o)
				}
				distinct[o] = true
				opts = append(opts, o)
			}
			if question.CorrectAnswer == nil || !containsString(opts, *question.CorrectAnswer) {
				return nil, fmt.Errorf("question %d: correct_answer is not one of its options", i+1)
			}
			question.Options = stakes.EncodeOptions(opts)
		}
		covered[qt] = true
		questions = append(questions, question)
	}
	for _, qt := range stakes.QuestionTypes {
		if !covered[qt] {
			return nil, fmt.Errorf("question set has no %s question", qt)
		}
	}
	return questions, nil
}

// normalizeQuestionID keeps a canonical, unseen uuid and replaces anything else with a fresh one.
func normalizeQuestionID(raw string, seen map[uuid.UUID]bool) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil || seen[id] || id.String() != strings.ToLower(strings.TrimSpace(raw)) {
		id = uuid.New()
		for seen[id] {
			id = uuid.New()
		}
	}
	seen[id] = true
	return id
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
