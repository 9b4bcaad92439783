package observability

import (
	"context"
	"errors"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T) (*otelTracer, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return &otelTracer{tracer: tp.Tracer("test")}, rec
}

func TestOtelTracerNestsSpansUnderTrace(t *testing.T) {
	tr, rec := newTestTracer(t)
	ctx, th := tr.StartTrace(context.Background(), "question_generation", map[string]any{"topic": "Rust ownership"})
	_, sh := tr.StartSpan(ctx, th, "attempt_1", SpanKindLLM)
	if sh.TraceID != th.ID {
		t.Fatalf("span trace id: want=%s got=%s", th.ID, sh.TraceID)
	}
	tr.EndSpan(sh, map[string]any{"ok": false}, errors.New("timeout"))
	tr.EndTrace(th, map[string]any{"questions": 7}, nil)

	ended := rec.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans: want=2 got=%d", len(ended))
	}
	child := ended[0]
	if child.Name() != "attempt_1" || child.Parent().SpanID().String() != ended[1].SpanContext().SpanID().String() {
		t.Fatalf("attempt span should be a child of the trace span")
	}
	if child.SpanContext().TraceID().String() != th.ID {
		t.Fatalf("trace id mismatch: %s vs %s", child.SpanContext().TraceID(), th.ID)
	}
}

func TestRecorderCollectsSpansByTrace(t *testing.T) {
	r := NewRecorder()
	ctx, th := r.StartTrace(context.Background(), "exam_grading", nil)
	_, a := r.StartSpan(ctx, th, "q1", SpanKindEvaluator)
	_, b := r.StartSpan(ctx, th, "q2", SpanKindEvaluator)
	r.EndSpan(a, nil, nil)
	r.EndSpan(b, nil, nil)
	score := 90.0
	r.LogMetrics(ctx, th.ID, LLMMetrics{Model: "m", InputTokens: 10, OutputTokens: 5, EvaluationScore: &score})
	r.EndTrace(th, nil, nil)

	if got := len(r.SpansOf(th.ID)); got != 2 {
		t.Fatalf("SpansOf: want=2 got=%d", got)
	}
	if !r.Traces()[0].Ended {
		t.Fatalf("trace should be ended")
	}
	if m := r.Metrics()[0].Metrics; m.TokenCount() != 15 {
		t.Fatalf("TokenCount: want=15 got=%d", m.TokenCount())
	}
}

func TestNopTracerHandsOutIDs(t *testing.T) {
	var tr Tracer = NopTracer{}
	ctx, th := tr.StartTrace(context.Background(), "x", nil)
	_, sh := tr.StartSpan(ctx, th, "y", SpanKindLLM)
	if th.ID == "" || sh.ID == "" || sh.TraceID != th.ID {
		t.Fatalf("unexpected handles: %+v %+v", th, sh)
	}
}
