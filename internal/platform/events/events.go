// Package events publishes stake outcome notifications. Publishing is best effort:
// callers log failures and never roll back on them.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	Exchange               = "proofstake.events"
	RoutingStakeResolved   = "stake.resolved"
	RoutingGradingFailed   = "exam.grading_failed"
	defaultPublishDeadline = 5 * time.Second
)

type StakeResolved struct {
	EventType    string     `json:"event_type"`
	CommitmentID uuid.UUID  `json:"commitment_id"`
	UserID       uuid.UUID  `json:"user_id"`
	ExamID       *uuid.UUID `json:"exam_id,omitempty"`
	Action       string     `json:"action"`
	Reason       string     `json:"reason"`
	Status       string     `json:"status"`
	StakeStatus  string     `json:"stake_status"`
	StakeAmount  float64    `json:"stake_amount"`
	RetryUsed    bool       `json:"retry_used"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

type GradingFailed struct {
	EventType    string    `json:"event_type"`
	ExamID       uuid.UUID `json:"exam_id"`
	CommitmentID uuid.UUID `json:"commitment_id"`
	UserID       uuid.UUID `json:"user_id"`
	Reason       string    `json:"reason"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishStakeResolved(ctx context.Context, ev StakeResolved) error
	PublishGradingFailed(ctx context.Context, ev GradingFailed) error
	Close() error
}

type nopPublisher struct{}

func NewNopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) PublishStakeResolved(context.Context, StakeResolved) error { return nil }
func (nopPublisher) PublishGradingFailed(context.Context, GradingFailed) error { return nil }
func (nopPublisher) Close() error                                              { return nil }

// MemoryPublisher keeps published events in order; used by tests and local runs.
type MemoryPublisher struct {
	mu       sync.Mutex
	resolved []StakeResolved
	failed   []GradingFailed
	// Err, when set, is returned by every publish after recording.
	Err error
}

func (m *MemoryPublisher) PublishStakeResolved(_ context.Context, ev StakeResolved) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, ev)
	return m.Err
}

func (m *MemoryPublisher) PublishGradingFailed(_ context.Context, ev GradingFailed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, ev)
	return m.Err
}

func (m *MemoryPublisher) Close() error { return nil }

func (m *MemoryPublisher) StakeResolved() []StakeResolved {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StakeResolved(nil), m.resolved...)
}

func (m *MemoryPublisher) GradingFailed() []GradingFailed {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GradingFailed(nil), m.failed...)
}
