package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/proofstake-backend/internal/domain/stakes"
)

// LifecycleAggregate owns the commitment/exam invariants. Every write method runs in its own
// transaction guarded by status compare-and-swap; list and detail reads stay on the table repos.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeStructural, CodeUnauthorized, CodeNotFound, CodeConflict, CodeRetryable, CodeInternal.
type LifecycleAggregate interface {
	// CreateExam inserts a pending exam with its questions after re-checking, under a
	// commitment row lock, that the commitment is active and has no unresolved exam.
	CreateExam(ctx context.Context, in CreateExamInput) (*stakes.Exam, error)

	// StartExam moves pending -> in_progress while the commitment is active and not overdue.
	StartExam(ctx context.Context, in ExamTransitionInput) (*stakes.Exam, error)

	// SaveAnswer upserts an answer while the exam is in_progress, clearing any prior grade.
	SaveAnswer(ctx context.Context, in SaveAnswerInput) (*stakes.Answer, error)

	// SubmitExam moves in_progress -> submitted once every question has an answer.
	SubmitExam(ctx context.Context, in ExamTransitionInput) (*stakes.Exam, error)

	// CommitGrading writes the exam score, every answer grade and the stake resolution atomically.
	CommitGrading(ctx context.Context, in CommitGradingInput) (CommitGradingResult, error)

	// MarkGradingFailed moves submitted -> grading_failed.
	MarkGradingFailed(ctx context.Context, in MarkGradingFailedInput) (*stakes.Exam, error)

	// ExpireOverdue expires and burns the owner's active commitments whose deadline has passed.
	ExpireOverdue(ctx context.Context, in ExpireOverdueInput) (ExpireOverdueResult, error)
}

type CreateExamInput struct {
	UserID       uuid.UUID
	CommitmentID uuid.UUID
	Questions    []stakes.Question
	TraceRef     string
	At           time.Time
}

type ExamTransitionInput struct {
	UserID uuid.UUID
	ExamID uuid.UUID
	At     time.Time
}

type SaveAnswerInput struct {
	UserID     uuid.UUID
	ExamID     uuid.UUID
	QuestionID uuid.UUID
	Text       string
	At         time.Time
}

type GradedAnswer struct {
	QuestionID uuid.UUID
	Score      int
	Feedback   string
	SpanRef    string
}

type CommitGradingInput struct {
	UserID uuid.UUID
	ExamID uuid.UUID
	// FromStatus is submitted for regular grading and grading_failed for remediation.
	FromStatus   stakes.ExamStatus
	OverallScore int
	Passed       bool
	Answers      []GradedAnswer
	GradedAt     time.Time
}

type CommitGradingResult struct {
	Exam       *stakes.Exam
	Resolution stakes.Resolution
}

type MarkGradingFailedInput struct {
	UserID   uuid.UUID
	ExamID   uuid.UUID
	Reason   string
	FailedAt time.Time
}

type ExpireOverdueInput struct {
	UserID uuid.UUID
	Now    time.Time
}

type ExpireOverdueResult struct {
	Expired []stakes.Resolution
	// Skipped counts overdue commitments left alone because the CAS lost or a timely submission is still grading.
	Skipped int
}
