package aggregates

import (
	"time"

	"github.com/yungbote/proofstake-backend/internal/observability"
)

// Hooks receives one call per lifecycle write outcome and per committed stake resolution.
type Hooks interface {
	ObserveOperation(op, status string, dur time.Duration)
	IncConflict(op string)
	IncRetry(op string)
	ObserveResolution(action, reason string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}
func (noopHooks) ObserveResolution(string, string)               {}

// metricsHooks forwards to the Prometheus collectors; Metrics is nil-safe.
type metricsHooks struct{ m *observability.Metrics }

func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return metricsHooks{m: metrics}
}

func (h metricsHooks) ObserveOperation(op, status string, dur time.Duration) {
	h.m.ObserveAggregateOperation(op, status, dur)
}

func (h metricsHooks) IncConflict(op string) { h.m.IncAggregateConflict(op) }

func (h metricsHooks) IncRetry(op string) { h.m.IncAggregateRetry(op) }

func (h metricsHooks) ObserveResolution(action, reason string) {
	h.m.IncStakeResolution(action, reason)
}
