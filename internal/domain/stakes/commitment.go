package stakes

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type CommitmentStatus string

const (
	CommitmentActive    CommitmentStatus = "active"
	CommitmentCompleted CommitmentStatus = "completed"
	CommitmentFailed    CommitmentStatus = "failed"
	CommitmentExpired   CommitmentStatus = "expired"
)

// Terminal statuses are never mutated again.
func (s CommitmentStatus) Terminal() bool {
	return s == CommitmentCompleted || s == CommitmentFailed || s == CommitmentExpired
}

type StakeStatus string

const (
	StakeAtRisk StakeStatus = "at_risk"
	StakeSaved  StakeStatus = "saved"
	StakeBurned StakeStatus = "burned"
)

const (
	TopicMinLen     = 3
	TopicMaxLen     = 200
	StakeMin        = 1.0
	StakeMax        = 1000.0
	DurationMinDays = 1
	DurationMaxDays = 90
)

var ErrInvalidCommitment = errors.New("invalid commitment")

type Commitment struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_commitment_user_status,priority:1" json:"user_id"`

	Topic        string  `gorm:"column:topic;not null" json:"topic"`
	StakeAmount  float64 `gorm:"column:stake_amount;not null" json:"stake_amount"`
	DurationDays int     `gorm:"column:duration_days;not null" json:"duration_days"`

	Deadline    time.Time        `gorm:"column:deadline;not null;index" json:"deadline"`
	Status      CommitmentStatus `gorm:"column:status;not null;index:idx_commitment_user_status,priority:2" json:"status"`
	StakeStatus StakeStatus      `gorm:"column:stake_status;not null" json:"stake_status"`
	RetryUsed   bool             `gorm:"column:retry_used;not null" json:"retry_used"`
	ResolvedAt  *time.Time       `gorm:"column:resolved_at" json:"resolved_at,omitempty"`

	Exams []Exam `gorm:"foreignKey:CommitmentID;constraint:OnDelete:CASCADE" json:"exams,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Commitment) TableName() string { return "commitment" }

// NewCommitment validates caller input and returns an active, at-risk commitment
// whose deadline is fixed at now + durationDays.
func NewCommitment(userID uuid.UUID, topic string, stake float64, durationDays int, now time.Time) (*Commitment, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing owner", ErrInvalidCommitment)
	}
	topic = strings.TrimSpace(topic)
	if n := utf8.RuneCountInString(topic); n < TopicMinLen || n > TopicMaxLen {
		return nil, fmt.Errorf("%w: topic must be %d-%d characters", ErrInvalidCommitment, TopicMinLen, TopicMaxLen)
	}
	if stake < StakeMin || stake > StakeMax {
		return nil, fmt.Errorf("%w: stake must be between %.0f and %.0f", ErrInvalidCommitment, StakeMin, StakeMax)
	}
	if durationDays < DurationMinDays || durationDays > DurationMaxDays {
		return nil, fmt.Errorf("%w: duration must be %d-%d days", ErrInvalidCommitment, DurationMinDays, DurationMaxDays)
	}
	now = now.UTC()
	return &Commitment{
		ID:           uuid.New(),
		UserID:       userID,
		Topic:        topic,
		StakeAmount:  stake,
		DurationDays: durationDays,
		Deadline:     now.AddDate(0, 0, durationDays),
		Status:       CommitmentActive,
		StakeStatus:  StakeAtRisk,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (c *Commitment) Overdue(now time.Time) bool {
	return now.After(c.Deadline)
}
