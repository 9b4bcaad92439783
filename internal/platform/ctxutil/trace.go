package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type traceDataKey struct{}

// TraceData ties a request to its log lines and grading traces.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	td, _ := ctx.Value(traceDataKey{}).(*TraceData)
	return td
}

// RequestID returns the inbound request id or "".
func RequestID(ctx context.Context) string {
	if td := GetTraceData(ctx); td != nil {
		return td.RequestID
	}
	return ""
}

// LogFields returns the trace_id, request_id and user_id pairs present on ctx.
func LogFields(ctx context.Context) []any {
	var fields []any
	if td := GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			fields = append(fields, "trace_id", td.TraceID)
		}
		if td.RequestID != "" {
			fields = append(fields, "request_id", td.RequestID)
		}
	}
	if rd := GetRequestData(ctx); rd != nil && rd.UserID != uuid.Nil {
		fields = append(fields, "user_id", rd.UserID.String())
	}
	return fields
}
