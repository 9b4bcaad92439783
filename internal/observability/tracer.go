package observability

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type SpanKind string

const (
	SpanKindLLM       SpanKind = "llm"
	SpanKindChain     SpanKind = "chain"
	SpanKindEvaluator SpanKind = "evaluator"
)

// maxAttrPayload caps serialized input/output attributes.
const maxAttrPayload = 4096

// TraceHandle is the parent for new spans. SpanID is set when the parent is a span rather
// than the trace root.
type TraceHandle struct {
	ID     string
	Name   string
	SpanID string
	span   trace.Span
}

type SpanHandle struct {
	ID       string
	TraceID  string
	ParentID string
	Name     string
	Kind     SpanKind
	span     trace.Span
}

// AsParent returns a handle that nests new spans under h within the same trace.
func (h SpanHandle) AsParent() TraceHandle {
	return TraceHandle{ID: h.TraceID, Name: h.Name, SpanID: h.ID, span: h.span}
}

type LLMMetrics struct {
	Latency         time.Duration
	Model           string
	InputTokens     int
	OutputTokens    int
	EvaluationScore *float64
}

func (m LLMMetrics) TokenCount() int { return m.InputTokens + m.OutputTokens }

// Tracer is the observability collaborator of the lifecycle engine.
// Implementations never return errors and never influence control flow.
type Tracer interface {
	StartTrace(ctx context.Context, name string, input map[string]any) (context.Context, TraceHandle)
	EndTrace(h TraceHandle, output map[string]any, err error)
	StartSpan(ctx context.Context, parent TraceHandle, name string, kind SpanKind) (context.Context, SpanHandle)
	EndSpan(h SpanHandle, output map[string]any, err error)
	LogMetrics(ctx context.Context, traceID string, m LLMMetrics)
}

type otelTracer struct {
	tracer  trace.Tracer
	metrics *Metrics
}

// NewTracer builds a Tracer on the global otel provider; metrics may be nil.
func NewTracer(metrics *Metrics) Tracer {
	return &otelTracer{
		tracer:  otel.Tracer("proofstake.lifecycle"),
		metrics: metrics,
	}
}

func (t *otelTracer) StartTrace(ctx context.Context, name string, input map[string]any) (context.Context, TraceHandle) {
	if ctx == nil {
		ctx = context.Background()
	}
	opts := []trace.SpanStartOption{trace.WithNewRoot()}
	if parent := trace.SpanContextFromContext(ctx); parent.IsValid() {
		opts = append(opts, trace.WithLinks(trace.Link{SpanContext: parent}))
	}
	ctx, span := t.tracer.Start(ctx, name, opts...)
	span.SetAttributes(attribute.String("trace.kind", string(SpanKindChain)))
	if payload := encodeAttr(input); payload != "" {
		span.SetAttributes(attribute.String("input", payload))
	}
	return ctx, TraceHandle{ID: traceIDOf(span), Name: name, span: span}
}

func (t *otelTracer) EndTrace(h TraceHandle, output map[string]any, err error) {
	finish(h.span, output, err)
}

func (t *otelTracer) StartSpan(ctx context.Context, parent TraceHandle, name string, kind SpanKind) (context.Context, SpanHandle) {
	if ctx == nil {
		ctx = context.Background()
	}
	if parent.span != nil {
		ctx = trace.ContextWithSpan(ctx, parent.span)
	}
	ctx, span := t.tracer.Start(ctx, name)
	span.SetAttributes(attribute.String("span.kind", string(kind)))
	traceID := parent.ID
	if traceID == "" {
		traceID = traceIDOf(span)
	}
	return ctx, SpanHandle{ID: spanIDOf(span), TraceID: traceID, ParentID: parent.SpanID, Name: name, Kind: kind, span: span}
}

func (t *otelTracer) EndSpan(h SpanHandle, output map[string]any, err error) {
	finish(h.span, output, err)
}

func (t *otelTracer) LogMetrics(ctx context.Context, traceID string, m LLMMetrics) {
	if ctx != nil {
		span := trace.SpanFromContext(ctx)
		attrs := []attribute.KeyValue{
			attribute.String("metrics.trace_id", traceID),
			attribute.Int64("llm.latency_ms", m.Latency.Milliseconds()),
			attribute.String("llm.model", m.Model),
			attribute.Int("llm.tokens", m.TokenCount()),
		}
		if m.EvaluationScore != nil {
			attrs = append(attrs, attribute.Float64("evaluation.score", *m.EvaluationScore))
		}
		span.SetAttributes(attrs...)
	}
	if t.metrics != nil && m.EvaluationScore != nil {
		t.metrics.ObserveEvaluationScore("grade_answer", *m.EvaluationScore)
	}
}

func finish(span trace.Span, output map[string]any, err error) {
	if span == nil {
		return
	}
	if payload := encodeAttr(output); payload != "" {
		span.SetAttributes(attribute.String("output", payload))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func encodeAttr(v map[string]any) string {
	if len(v) == 0 {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	if len(b) > maxAttrPayload {
		b = b[:maxAttrPayload]
	}
	return string(b)
}

func traceIDOf(span trace.Span) string {
	if sc := span.SpanContext(); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}

func spanIDOf(span trace.Span) string {
	if sc := span.SpanContext(); sc.HasSpanID() {
		return sc.SpanID().String()
	}
	return uuid.NewString()
}

// NopTracer discards everything but still hands out unique ids.
type NopTracer struct{}

func (NopTracer) StartTrace(ctx context.Context, name string, _ map[string]any) (context.Context, TraceHandle) {
	return ctx, TraceHandle{ID: uuid.NewString(), Name: name}
}

func (NopTracer) EndTrace(TraceHandle, map[string]any, error) {}

func (NopTracer) StartSpan(ctx context.Context, parent TraceHandle, name string, kind SpanKind) (context.Context, SpanHandle) {
	return ctx, SpanHandle{ID: uuid.NewString(), TraceID: parent.ID, ParentID: parent.SpanID, Name: name, Kind: kind}
}

func (NopTracer) EndSpan(SpanHandle, map[string]any, error) {}

func (NopTracer) LogMetrics(context.Context, string, LLMMetrics) {}
