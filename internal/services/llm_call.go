package services

import (
	"context"
	"fmt"
	"time"

	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
	"github.com/yungbote/proofstake-backend/internal/observability"
	"github.com/yungbote/proofstake-backend/internal/platform/llm"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

// AttemptOutcome tags one LLM attempt. The retry loop switches on it and never inspects error text.
type AttemptOutcome string

const (
	AttemptOK        AttemptOutcome = "ok"
	AttemptSchema    AttemptOutcome = "schema_error"
	AttemptTransport AttemptOutcome = "transport_error"
)

type AttemptResult[T any] struct {
	Outcome    AttemptOutcome
	Value      T
	Err        error
	Completion llm.Completion
	// Evaluation is logged as the evaluation score of the attempt when set.
	Evaluation *float64
}

func attemptOK[T any](v T, c llm.Completion) AttemptResult[T] {
	return AttemptResult[T]{Outcome: AttemptOK, Value: v, Completion: c}
}

func schemaFailure[T any](err error, c llm.Completion) AttemptResult[T] {
	return AttemptResult[T]{Outcome: AttemptSchema, Err: err, Completion: c}
}

func transportFailure[T any](err error) AttemptResult[T] {
	return AttemptResult[T]{Outcome: AttemptTransport, Err: err}
}

// Sleeper waits d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryPolicy waits BaseDelay, 2*BaseDelay, 4*BaseDelay ... between attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       Sleeper
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: SleepContext}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.Sleep == nil {
		p.Sleep = d.Sleep
	}
	return p
}

// Delay is the wait before attempt n+1, for n >= 1.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return p.BaseDelay << (n - 1)
}

type llmCall struct {
	op       string
	spanName string
	kind     observability.SpanKind
	parent   observability.TraceHandle
}

type llmRunner struct {
	log     *logger.Logger
	tracer  observability.Tracer
	metrics *observability.Metrics
	policy  RetryPolicy
}

// runLLM drives attempt through the retry policy, one span per attempt under call.parent.
// Exhaustion returns CodeMaxRetriesExceeded wrapping the last attempt's failure.
func runLLM[T any](ctx context.Context, r llmRunner, call llmCall, attempt func(ctx context.Context, span observability.SpanHandle) AttemptResult[T]) (T, error) {
	var zero T
	var last error
	for n := 1; n <= r.policy.MaxAttempts; n++ {
		if n > 1 {
			wait := r.policy.Delay(n - 1)
			if err := r.policy.Sleep(ctx, wait); err != nil {
				return zero, domainagg.NewError(domainagg.CodeTransport, call.op, "cancelled while backing off", err)
			}
		}

		spanCtx, span := r.tracer.StartSpan(ctx, call.parent, fmt.Sprintf("%s.attempt_%d", call.spanName, n), call.kind)
		res := attempt(spanCtx, span)

		out := map[string]any{
			"attempt":    n,
			"outcome":    string(res.Outcome),
			"latency_ms": res.Completion.Latency.Milliseconds(),
			"model":      res.Completion.Model,
			"tokens":     res.Completion.InputTokens + res.Completion.OutputTokens,
		}
		if res.Evaluation != nil {
			out["evaluation_score"] = *res.Evaluation
		}
		r.tracer.LogMetrics(spanCtx, call.parent.ID, observability.LLMMetrics{
			Latency:         res.Completion.Latency,
			Model:           res.Completion.Model,
			InputTokens:     res.Completion.InputTokens,
			OutputTokens:    res.Completion.OutputTokens,
			EvaluationScore: res.Evaluation,
		})
		r.metrics.IncLLMAttempt(call.op, string(res.Outcome))

		switch res.Outcome {
		case AttemptOK:
			r.tracer.EndSpan(span, out, nil)
			return res.Value, nil
		case AttemptSchema:
			last = domainagg.NewError(domainagg.CodeInvalidOutput, call.op, res.Err.Error(), res.Err)
		default:
			last = domainagg.NewError(domainagg.CodeTransport, call.op, errText(res.Err), res.Err)
		}
		r.tracer.EndSpan(span, out, last)
		r.log.Warn("llm attempt failed",
			"op", call.op,
			"attempt", n,
			"max_attempts", r.policy.MaxAttempts,
			"outcome", res.Outcome,
			"error", last,
		)
	}
	return zero, domainagg.NewError(
		domainagg.CodeMaxRetriesExceeded,
		call.op,
		fmt.Sprintf("%d attempts failed", r.policy.MaxAttempts),
		last,
	)
}

func errText(err error) string {
	if err == nil {
		return "unknown failure"
	}
	return err.Error()
}
