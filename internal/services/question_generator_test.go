package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
	"github.com/yungbote/proofstake-backend/internal/domain/stakes"
	"github.com/yungbote/proofstake-backend/internal/observability"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

func newTestGenerator(c *scriptedCompleter, rec *observability.Recorder, sleeper *sleepRecorder) QuestionGenerator {
	return NewQuestionGenerator(logger.Nop(), c, rec, nil, instantPolicy(sleeper))
}

func TestGenerateSucceedsOnThirdAttempt(t *testing.T) {
	completer := &scriptedCompleter{responses: []scriptedResponse{
		reply(`{"questions": [`),
		reply("I cannot produce JSON today."),
		reply("Here you go:\n```json\n" + questionSetJSON(7) + "\n```\nGood luck!"),
	}}
	rec := observability.NewRecorder()
	sleeper := &sleepRecorder{}

	gen, err := newTestGenerator(completer, rec, sleeper).Generate(context.Background(), "Rust ownership", 7)
	require.NoError(t, err)
	require.Len(t, gen.Questions, 7)
	require.Equal(t, 3, completer.Calls())
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.Delays())

	traces := rec.Traces()
	require.Len(t, traces, 1)
	require.Equal(t, traces[0].Handle.ID, gen.TraceRef)
	require.True(t, traces[0].Ended)
	spans := rec.SpansOf(gen.TraceRef)
	require.Len(t, spans, 3)
	for _, s := range spans {
		require.Equal(t, observability.SpanKindLLM, s.Handle.Kind)
		require.Contains(t, s.Output, "latency_ms")
		require.Contains(t, s.Output, "tokens")
		require.Contains(t, s.Output, "model")
	}
}

func TestGeneratedSetSatisfiesSetRules(t *testing.T) {
	for n := stakes.MinQuestions; n <= stakes.MaxQuestions; n++ {
		completer := &scriptedCompleter{responses: []scriptedResponse{reply(questionSetJSON(n))}}
		gen, err := newTestGenerator(completer, observability.NewRecorder(), &sleepRecorder{}).Generate(context.Background(), "Topology", n)
		require.NoError(t, err)
		require.Len(t, gen.Questions, n)

		seen := map[stakes.QuestionType]bool{}
		for i, q := range gen.Questions {
			require.Equal(t, i, q.Position)
			seen[q.Type] = true
			if q.Type == stakes.QuestionMultipleChoice {
				opts := q.OptionList()
				require.Len(t, opts, 4)
				require.NotNil(t, q.CorrectAnswer)
				require.Contains(t, opts, *q.CorrectAnswer)
			}
		}
		require.Len(t, seen, 3)
	}
}

func TestGenerateRejectsCountOutsideRangeWithoutCalling(t *testing.T) {
	completer := &scriptedCompleter{responses: []scriptedResponse{reply(questionSetJSON(7))}}
	g := newTestGenerator(completer, observability.NewRecorder(), &sleepRecorder{})
	for _, n := range []int{0, 4, 11} {
		_, err := g.Generate(context.Background(), "Rust", n)
		require.True(t, domainagg.IsCode(err, domainagg.CodeStructural), "count %d: %v", n, err)
	}
	require.Zero(t, completer.Calls())
}

func TestGenerateSetRuleViolationsAreRetriedThenExhausted(t *testing.T) {
	onlyMC := `{"questions":[` + strings.Repeat(`{"type":"multiple_choice","prompt":"p","options":["A","B","C","D"],"correct_answer":"A","difficulty":"advanced"},`, 4) +
		`{"type":"multiple_choice","prompt":"p","options":["A","B","C","D"],"correct_answer":"A","difficulty":"advanced"}]}`
	answerNotInOptions := strings.Replace(questionSetJSON(6), `"correct_answer":"B"`, `"correct_answer":"E"`, 1)
	duplicateOptions := strings.Replace(questionSetJSON(6), `["A","B","C","D"]`, `["A","B"," B ","D"]`, 1)
	repeatedOptions := strings.Replace(questionSetJSON(6), `["A","B","C","D"]`, `["A","B","B","D"]`, 1)

	for name, body := range map[string]string{
		"missing types":         onlyMC,
		"answer not in options": answerNotInOptions,
		"duplicate options":     duplicateOptions,
		"repeated options":      repeatedOptions,
	} {
		completer := &scriptedCompleter{responses: []scriptedResponse{reply(body)}}
		_, err := newTestGenerator(completer, observability.NewRecorder(), &sleepRecorder{}).Generate(context.Background(), "Rust", 6)
		require.True(t, domainagg.IsCode(err, domainagg.CodeMaxRetriesExceeded), "%s: %v", name, err)
		require.Equal(t, 3, completer.Calls(), name)

		var cause *domainagg.Error
		require.ErrorAs(t, err.(*domainagg.Error).Cause, &cause, name)
		require.Equal(t, domainagg.CodeInvalidOutput, cause.Code, name)
	}
}

func TestGenerateNormalizesQuestionIDs(t *testing.T) {
	dup := uuid.NewString()
	body := fmt.Sprintf(`{"questions":[
		{"id":%q,"type":"multiple_choice","prompt":"p1","options":["A","B","C","D"],"correct_answer":"B","difficulty":"advanced"},
		{"id":%q,"type":"short_answer","prompt":"p2","difficulty":"advanced"},
		{"id":"q3","type":"application","prompt":"p3","difficulty":"advanced"},
		{"id":%q,"type":"short_answer","prompt":"p4","difficulty":"intermediate"},
		{"type":"application","prompt":"p5","difficulty":"intermediate"}]}`, dup, dup, strings.ToUpper(uuid.NewString()))
	completer := &scriptedCompleter{responses: []scriptedResponse{reply(body)}}

	gen, err := newTestGenerator(completer, observability.NewRecorder(), &sleepRecorder{}).Generate(context.Background(), "Rust", 5)
	require.NoError(t, err)
	require.Equal(t, dup, gen.Questions[0].ID.String())

	ids := map[uuid.UUID]bool{}
	for _, q := range gen.Questions {
		require.NotEqual(t, uuid.Nil, q.ID)
		require.False(t, ids[q.ID], "duplicate id %s", q.ID)
		ids[q.ID] = true
	}
}
