package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/proofstake-backend/internal/data/repos"
	types "github.com/yungbote/proofstake-backend/internal/domain"
	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
	"github.com/yungbote/proofstake-backend/internal/domain/stakes"
	"github.com/yungbote/proofstake-backend/internal/platform/dbctx"
)

const (
	commitmentTable = "commitment"
	examTable       = "exam"
)

type LifecycleAggregateDeps struct {
	Base BaseDeps

	Commitments repos.CommitmentRepo
	Exams       repos.ExamRepo
	Answers     repos.AnswerRepo
}

type lifecycleAggregate struct {
	deps LifecycleAggregateDeps
}

func NewLifecycleAggregate(deps LifecycleAggregateDeps) domainagg.LifecycleAggregate {
	deps.Base = deps.Base.withDefaults()
	return &lifecycleAggregate{deps: deps}
}

func (a *lifecycleAggregate) ready(op string) error {
	if a.deps.Commitments == nil || a.deps.Exams == nil || a.deps.Answers == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "lifecycle aggregate repos not configured", nil)
	}
	return nil
}

func (a *lifecycleAggregate) CreateExam(ctx context.Context, in domainagg.CreateExamInput) (*stakes.Exam, error) {
	const op = "Stakes.Lifecycle.CreateExam"
	if err := a.ready(op); err != nil {
		return nil, err
	}
	if in.UserID == uuid.Nil || in.CommitmentID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id or commitment_id", nil)
	}
	if n := len(in.Questions); n < stakes.MinQuestions || n > stakes.MaxQuestions {
		return nil, domainagg.Structural(op, fmt.Sprintf("exam needs %d-%d questions, got %d", stakes.MinQuestions, stakes.MaxQuestions, n))
	}
	at := a.deps.Base.at(in.At)

	var out *stakes.Exam
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		c, err := a.ownedCommitment(dbc, op, in.UserID, in.CommitmentID)
		if err != nil {
			return err
		}
		if c.Status != stakes.CommitmentActive {
			return StructuralError(fmt.Sprintf("commitment is %s", c.Status))
		}
		if c.Overdue(at) {
			return StructuralError("commitment deadline has passed")
		}
		n, err := a.deps.Exams.CountUnresolved(dbc, c.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return StructuralError("commitment already has an unresolved exam")
		}

		exam := &stakes.Exam{
			ID:           uuid.New(),
			CommitmentID: c.ID,
			UserID:       c.UserID,
			Status:       stakes.ExamPending,
			TraceRef:     strings.TrimSpace(in.TraceRef),
			CreatedAt:    at,
			UpdatedAt:    at,
		}
		questions := append([]stakes.Question(nil), in.Questions...)
		if err := a.deps.Exams.Create(dbc, exam, questions); err != nil {
			return err
		}
		exam.Questions = questions
		out = exam
		return nil
	})
	return out, err
}

func (a *lifecycleAggregate) StartExam(ctx context.Context, in domainagg.ExamTransitionInput) (*stakes.Exam, error) {
	const op = "Stakes.Lifecycle.StartExam"
	if err := a.ready(op); err != nil {
		return nil, err
	}
	at := a.deps.Base.at(in.At)

	var out *stakes.Exam
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		exam, err := a.ownedExam(dbc, op, in.UserID, in.ExamID, false)
		if err != nil {
			return err
		}
		c, err := a.ownedCommitment(dbc, op, in.UserID, exam.CommitmentID)
		if err != nil {
			return err
		}
		if c.Status != stakes.CommitmentActive {
			return StructuralError(fmt.Sprintf("commitment is %s", c.Status))
		}
		if c.Overdue(at) {
			return StructuralError("commitment deadline has passed")
		}
		if err := RequireStatusAllowed(string(exam.Status), string(stakes.ExamPending)); err != nil {
			return err
		}
		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, examTable, exam.ID, []string{string(stakes.ExamPending)}, map[string]any{
			"status":     stakes.ExamInProgress,
			"started_at": at,
			"updated_at": at,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "exam changed while starting"); err != nil {
			return err
		}
		out, err = a.deps.Exams.GetByID(dbc, exam.ID)
		return err
	})
	return out, err
}

func (a *lifecycleAggregate) SaveAnswer(ctx context.Context, in domainagg.SaveAnswerInput) (*stakes.Answer, error) {
	const op = "Stakes.Lifecycle.SaveAnswer"
	if err := a.ready(op); err != nil {
		return nil, err
	}
	if in.QuestionID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing question_id", nil)
	}
	at := a.deps.Base.at(in.At)

	var out *stakes.Answer
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		exam, err := a.ownedExam(dbc, op, in.UserID, in.ExamID, true)
		if err != nil {
			return err
		}
		if err := RequireStatusAllowed(string(exam.Status), string(stakes.ExamInProgress)); err != nil {
			return err
		}
		q, err := a.deps.Exams.GetQuestion(dbc, exam.ID, in.QuestionID)
		if err != nil {
			return err
		}
		if q == nil {
			return domainagg.NotFound(op, "question")
		}
		out, err = a.deps.Answers.Upsert(dbc, &stakes.Answer{
			ID:         uuid.New(),
			ExamID:     exam.ID,
			QuestionID: q.ID,
			AnswerText: in.Text,
			CreatedAt:  at,
			UpdatedAt:  at,
		})
		return err
	})
	return out, err
}

func (a *lifecycleAggregate) SubmitExam(ctx context.Context, in domainagg.ExamTransitionInput) (*stakes.Exam, error) {
	const op = "Stakes.Lifecycle.SubmitExam"
	if err := a.ready(op); err != nil {
		return nil, err
	}
	at := a.deps.Base.at(in.At)

	var out *stakes.Exam
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		exam, err := a.ownedExam(dbc, op, in.UserID, in.ExamID, true)
		if err != nil {
			return err
		}
		if err := RequireStatusAllowed(string(exam.Status), string(stakes.ExamInProgress)); err != nil {
			return err
		}
		questions, err := a.deps.Exams.ListQuestions(dbc, exam.ID)
		if err != nil {
			return err
		}
		answers, err := a.deps.Answers.ListByExam(dbc, exam.ID)
		if err != nil {
			return err
		}
		answered := make(map[uuid.UUID]bool, len(answers))
		for _, ans := range answers {
			answered[ans.QuestionID] = true
		}
		missing := 0
		for _, q := range questions {
			if !answered[q.ID] {
				missing++
			}
		}
		if missing > 0 || len(questions) == 0 {
			return domainagg.Structural(op, fmt.Sprintf("exam is incomplete: %d of %d questions answered", len(questions)-missing, len(questions)))
		}

		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, examTable, exam.ID, []string{string(stakes.ExamInProgress)}, map[string]any{
			"status":       stakes.ExamSubmitted,
			"submitted_at": at,
			"updated_at":   at,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "exam changed while submitting"); err != nil {
			return err
		}
		out, err = a.deps.Exams.GetByID(dbc, exam.ID)
		return err
	})
	return out, err
}

func (a *lifecycleAggregate) CommitGrading(ctx context.Context, in domainagg.CommitGradingInput) (domainagg.CommitGradingResult, error) {
	const op = "Stakes.Lifecycle.CommitGrading"
	var out domainagg.CommitGradingResult
	if err := a.ready(op); err != nil {
		return out, err
	}
	from := in.FromStatus
	if from == "" {
		from = stakes.ExamSubmitted
	}
	if from != stakes.ExamSubmitted && from != stakes.ExamGradingFailed {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("cannot grade from status %s", from), nil)
	}
	if in.OverallScore < 0 || in.OverallScore > 100 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "overall_score out of range", nil)
	}
	if len(in.Answers) == 0 {
		return out, domainagg.Structural(op, "no graded answers")
	}
	gradedAt := a.deps.Base.at(in.GradedAt)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		exam, err := a.ownedExam(dbc, op, in.UserID, in.ExamID, false)
		if err != nil {
			return err
		}
		c, err := a.ownedCommitment(dbc, op, in.UserID, exam.CommitmentID)
		if err != nil {
			return err
		}
		if err := RequireStatusAllowed(string(exam.Status), string(from)); err != nil {
			return err
		}

		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, examTable, exam.ID, []string{string(from)}, map[string]any{
			"status":         stakes.ExamGraded,
			"overall_score":  in.OverallScore,
			"passed":         in.Passed,
			"graded_at":      gradedAt,
			"failure_reason": "",
			"updated_at":     gradedAt,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "exam changed while grading"); err != nil {
			return err
		}

		for _, g := range in.Answers {
			if g.Score < 0 || g.Score > 100 {
				return ValidationError(fmt.Sprintf("score out of range for question %s", g.QuestionID))
			}
			ok, err := a.deps.Answers.ApplyGrade(dbc, exam.ID, g.QuestionID, g.Score, g.Feedback, g.SpanRef, gradedAt)
			if err != nil {
				return err
			}
			if !ok {
				return StructuralError(fmt.Sprintf("no answer stored for question %s", g.QuestionID))
			}
		}

		// A timely submission is judged at submitted_at, not at grading time.
		effective := gradedAt
		if exam.SubmittedAt != nil && !exam.SubmittedAt.IsZero() {
			effective = exam.SubmittedAt.UTC()
		}
		res := stakes.Resolve(*c, in.Passed, effective)
		if res.Changed() {
			if res.Commitment.ResolvedAt != nil {
				resolvedAt := gradedAt
				res.Commitment.ResolvedAt = &resolvedAt
			}
			res.Commitment.UpdatedAt = gradedAt
			ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, commitmentTable, c.ID, []string{string(stakes.CommitmentActive)}, resolutionUpdates(res.Commitment))
			if err != nil {
				return err
			}
			if err := RequireCASSuccess(ok, "commitment changed while resolving stake"); err != nil {
				return err
			}
		}

		graded, err := a.deps.Exams.GetByID(dbc, exam.ID)
		if err != nil {
			return err
		}
		out = domainagg.CommitGradingResult{Exam: graded, Resolution: res}
		return nil
	})
	if err == nil && out.Resolution.Changed() {
		a.deps.Base.Hooks.ObserveResolution(string(out.Resolution.Action), string(out.Resolution.Reason))
	}
	return out, err
}

func (a *lifecycleAggregate) MarkGradingFailed(ctx context.Context, in domainagg.MarkGradingFailedInput) (*stakes.Exam, error) {
	const op = "Stakes.Lifecycle.MarkGradingFailed"
	if err := a.ready(op); err != nil {
		return nil, err
	}
	failedAt := a.deps.Base.at(in.FailedAt)
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = "grading failed"
	}

	var out *stakes.Exam
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		exam, err := a.ownedExam(dbc, op, in.UserID, in.ExamID, false)
		if err != nil {
			return err
		}
		if exam.Status == stakes.ExamGradingFailed {
			out = exam
			return nil
		}
		if err := RequireStatusAllowed(string(exam.Status), string(stakes.ExamSubmitted)); err != nil {
			return err
		}
		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, examTable, exam.ID, []string{string(stakes.ExamSubmitted)}, map[string]any{
			"status":         stakes.ExamGradingFailed,
			"failure_reason": reason,
			"updated_at":     failedAt,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "exam changed while marking grading failed"); err != nil {
			return err
		}
		out, err = a.deps.Exams.GetByID(dbc, exam.ID)
		return err
	})
	return out, err
}

func (a *lifecycleAggregate) ExpireOverdue(ctx context.Context, in domainagg.ExpireOverdueInput) (domainagg.ExpireOverdueResult, error) {
	const op = "Stakes.Lifecycle.ExpireOverdue"
	var out domainagg.ExpireOverdueResult
	if err := a.ready(op); err != nil {
		return out, err
	}
	if in.UserID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	now := a.deps.Base.at(in.Now)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = domainagg.ExpireOverdueResult{}
		overdue, err := a.deps.Commitments.ListOverdueActive(dbc, in.UserID, now)
		if err != nil {
			return err
		}
		for _, c := range overdue {
			if c == nil {
				continue
			}
			res := stakes.Resolve(*c, false, now)
			if res.Action != stakes.ActionBurned || res.Reason != stakes.ReasonDeadlinePassed {
				out.Skipped++
				continue
			}
			res.Commitment.UpdatedAt = now
			ok, err := a.deps.Base.CASGuard.UpdateByStatusWhere(dbc, commitmentTable, c.ID,
				[]string{string(stakes.CommitmentActive)},
				"deadline < ? AND NOT EXISTS (SELECT 1 FROM exam WHERE exam.commitment_id = commitment.id AND exam.status = ? AND exam.submitted_at IS NOT NULL AND exam.submitted_at <= commitment.deadline)",
				[]any{now, stakes.ExamSubmitted},
				resolutionUpdates(res.Commitment),
			)
			if err != nil {
				return err
			}
			if !ok {
				out.Skipped++
				continue
			}
			out.Expired = append(out.Expired, res)
		}
		return nil
	})
	if err == nil {
		for _, res := range out.Expired {
			a.deps.Base.Hooks.ObserveResolution(string(res.Action), string(res.Reason))
		}
	}
	return out, err
}

func (a *lifecycleAggregate) ownedCommitment(dbc dbctx.Context, op string, userID, id uuid.UUID) (*stakes.Commitment, error) {
	if userID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	c, err := a.deps.Commitments.LockByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if c == nil || c.ID == uuid.Nil {
		return nil, domainagg.NotFound(op, "commitment")
	}
	if c.UserID != userID {
		return nil, domainagg.Unauthorized(op)
	}
	return c, nil
}

func (a *lifecycleAggregate) ownedExam(dbc dbctx.Context, op string, userID, id uuid.UUID, lock bool) (*stakes.Exam, error) {
	if userID == uuid.Nil || id == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id or exam_id", nil)
	}
	var (
		exam *stakes.Exam
		err  error
	)
	if lock {
		exam, err = a.deps.Exams.LockByID(dbc, id)
	} else {
		exam, err = a.deps.Exams.GetByID(dbc, id)
	}
	if err != nil {
		return nil, err
	}
	if exam == nil || exam.ID == uuid.Nil {
		return nil, domainagg.NotFound(op, "exam")
	}
	if exam.UserID != userID {
		return nil, domainagg.Unauthorized(op)
	}
	return exam, nil
}

func resolutionUpdates(c types.Commitment) map[string]any {
	updates := map[string]any{
		"status":       c.Status,
		"stake_status": c.StakeStatus,
		"retry_used":   c.RetryUsed,
		"updated_at":   c.UpdatedAt.UTC(),
	}
	if c.ResolvedAt != nil {
		updates["resolved_at"] = c.ResolvedAt.UTC()
	}
	if c.UpdatedAt.IsZero() {
		updates["updated_at"] = time.Now().UTC()
	}
	return updates
}
