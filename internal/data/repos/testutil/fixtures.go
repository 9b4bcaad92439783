package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/proofstake-backend/internal/domain"
	"github.com/yungbote/proofstake-backend/internal/domain/stakes"
)

func SeedCommitment(tb testing.TB, ctx context.Context, db *gorm.DB, userID uuid.UUID, deadline time.Time, mutate ...func(*types.Commitment)) *types.Commitment {
	tb.Helper()
	now := time.Now().UTC()
	c := &types.Commitment{
		ID:           uuid.New(),
		UserID:       userID,
		Topic:        "Distributed systems",
		StakeAmount:  50,
		DurationDays: 14,
		Deadline:     deadline.UTC(),
		Status:       types.CommitmentActive,
		StakeStatus:  types.StakeAtRisk,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, fn := range mutate {
		fn(c)
	}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(c).Error; err != nil {
		tb.Fatalf("seed commitment: %v", err)
	}
	return c
}

// SampleQuestions returns n questions covering all three types; multiple-choice ones answer "B".
func SampleQuestions(n int) []types.Question {
	out := make([]types.Question, 0, n)
	for i := 0; i < n; i++ {
		q := types.Question{
			ID:         uuid.New(),
			Position:   i,
			Type:       stakes.QuestionTypes[i%len(stakes.QuestionTypes)],
			Prompt:     fmt.Sprintf("Question %d", i+1),
			Difficulty: types.DifficultyIntermediate,
		}
		if q.Type == types.QuestionMultipleChoice {
			q.Options = stakes.EncodeOptions([]string{"A", "B", "C", "D"})
			correct := "B"
			q.CorrectAnswer = &correct
		}
		out = append(out, q)
	}
	return out
}

func SeedExam(tb testing.TB, ctx context.Context, db *gorm.DB, c *types.Commitment, status types.ExamStatus, questions []types.Question) *types.Exam {
	tb.Helper()
	now := time.Now().UTC()
	e := &types.Exam{
		ID:           uuid.New(),
		CommitmentID: c.ID,
		UserID:       c.UserID,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if status == types.ExamSubmitted || status == types.ExamGradingFailed {
		e.SubmittedAt = &now
	}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(e).Error; err != nil {
		tb.Fatalf("seed exam: %v", err)
	}
	for i := range questions {
		questions[i].ExamID = e.ID
		questions[i].Position = i
		questions[i].CreatedAt = now
	}
	if len(questions) > 0 {
		if err := db.WithContext(ctx).Create(&questions).Error; err != nil {
			tb.Fatalf("seed questions: %v", err)
		}
	}
	return e
}

func SeedAnswer(tb testing.TB, ctx context.Context, db *gorm.DB, examID, questionID uuid.UUID, text string) *types.Answer {
	tb.Helper()
	now := time.Now().UTC()
	a := &types.Answer{
		ID:         uuid.New(),
		ExamID:     examID,
		QuestionID: questionID,
		AnswerText: text,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed answer: %v", err)
	}
	return a
}
