package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/proofstake-backend/internal/data/aggregates"
)

type HookKind string

const (
	HookOperation  HookKind = "operation"
	HookConflict   HookKind = "conflict"
	HookRetry      HookKind = "retry"
	HookResolution HookKind = "resolution"
)

// HookEvent is one recorded hook call. Op is empty for resolutions; Action and Reason are
// set only for resolutions.
type HookEvent struct {
	Kind     HookKind
	Op       string
	Status   string
	Duration time.Duration
	Action   string
	Reason   string
}

// HooksRecorder keeps every hook call in order.
type HooksRecorder struct {
	mu     sync.Mutex
	events []HookEvent
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) record(e HookEvent) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
}

func (h *HooksRecorder) ObserveOperation(op, status string, dur time.Duration) {
	h.record(HookEvent{Kind: HookOperation, Op: op, Status: status, Duration: dur})
}

func (h *HooksRecorder) IncConflict(op string) { h.record(HookEvent{Kind: HookConflict, Op: op}) }

func (h *HooksRecorder) IncRetry(op string) { h.record(HookEvent{Kind: HookRetry, Op: op}) }

func (h *HooksRecorder) ObserveResolution(action, reason string) {
	h.record(HookEvent{Kind: HookResolution, Action: action, Reason: reason})
}

// Events returns the recorded calls of kind, or all calls when kind is empty.
func (h *HooksRecorder) Events(kind HookKind) []HookEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []HookEvent
	for _, e := range h.events {
		if kind == "" || e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Resolutions returns the committed stake resolutions in order.
func (h *HooksRecorder) Resolutions() []HookEvent { return h.Events(HookResolution) }

// StatusOf returns the status of the last recorded write of op, or "".
func (h *HooksRecorder) StatusOf(op string) string {
	ops := h.Events(HookOperation)
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].Op == op {
			return ops[i].Status
		}
	}
	return ""
}
