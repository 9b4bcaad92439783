package observability

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type RecordedTrace struct {
	Handle TraceHandle
	Input  map[string]any
	Output map[string]any
	Err    error
	Ended  bool
}

type RecordedSpan struct {
	Handle SpanHandle
	Output map[string]any
	Err    error
	Ended  bool
}

type RecordedMetrics struct {
	TraceID string
	Metrics LLMMetrics
}

// Recorder is an in-memory Tracer used by tests and local debugging.
type Recorder struct {
	mu      sync.Mutex
	traces  []RecordedTrace
	spans   []RecordedSpan
	metrics []RecordedMetrics
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) StartTrace(ctx context.Context, name string, input map[string]any) (context.Context, TraceHandle) {
	h := TraceHandle{ID: uuid.NewString(), Name: name}
	r.mu.Lock()
	r.traces = append(r.traces, RecordedTrace{Handle: h, Input: input})
	r.mu.Unlock()
	return ctx, h
}

func (r *Recorder) EndTrace(h TraceHandle, output map[string]any, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.traces {
		if r.traces[i].Handle.ID == h.ID {
			r.traces[i].Output = output
			r.traces[i].Err = err
			r.traces[i].Ended = true
			return
		}
	}
}

func (r *Recorder) StartSpan(ctx context.Context, parent TraceHandle, name string, kind SpanKind) (context.Context, SpanHandle) {
	h := SpanHandle{ID: uuid.NewString(), TraceID: parent.ID, ParentID: parent.SpanID, Name: name, Kind: kind}
	r.mu.Lock()
	r.spans = append(r.spans, RecordedSpan{Handle: h})
	r.mu.Unlock()
	return ctx, h
}

func (r *Recorder) EndSpan(h SpanHandle, output map[string]any, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.spans {
		if r.spans[i].Handle.ID == h.ID {
			r.spans[i].Output = output
			r.spans[i].Err = err
			r.spans[i].Ended = true
			return
		}
	}
}

func (r *Recorder) LogMetrics(_ context.Context, traceID string, m LLMMetrics) {
	r.mu.Lock()
	r.metrics = append(r.metrics, RecordedMetrics{TraceID: traceID, Metrics: m})
	r.mu.Unlock()
}

func (r *Recorder) Traces() []RecordedTrace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedTrace(nil), r.traces...)
}

func (r *Recorder) Spans() []RecordedSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedSpan(nil), r.spans...)
}

// SpansOf returns the spans recorded under traceID.
func (r *Recorder) SpansOf(traceID string) []RecordedSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RecordedSpan
	for _, s := range r.spans {
		if s.Handle.TraceID == traceID {
			out = append(out, s)
		}
	}
	return out
}

// ChildrenOf returns the spans started under the span with id parentID.
func (r *Recorder) ChildrenOf(parentID string) []RecordedSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RecordedSpan
	for _, s := range r.spans {
		if s.Handle.ParentID == parentID {
			out = append(out, s)
		}
	}
	return out
}

func (r *Recorder) Metrics() []RecordedMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedMetrics(nil), r.metrics...)
}
