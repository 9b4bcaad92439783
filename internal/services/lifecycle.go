package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/proofstake-backend/internal/data/repos"
	domainagg "github.com/yungbote/proofstake-backend/internal/domain/aggregates"
	"github.com/yungbote/proofstake-backend/internal/domain/stakes"
	"github.com/yungbote/proofstake-backend/internal/observability"
	"github.com/yungbote/proofstake-backend/internal/platform/dbctx"
	"github.com/yungbote/proofstake-backend/internal/platform/events"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

const (
	DefaultQuestionCount = 7
	DefaultGradeTimeout  = 5 * time.Minute

	markFailedTimeout = 10 * time.Second
)

type ExamView struct {
	Exam      *stakes.Exam
	Questions []stakes.Question
	Answers   []stakes.Answer
}

type GradeOutcome struct {
	Exam       *stakes.Exam
	Grade      ExamGrade
	Resolution stakes.Resolution
}

// LifecycleService orchestrates commitments and their exams. Every method takes the caller's
// user id; acting on another owner's rows is an authorization failure.
type LifecycleService interface {
	CreateCommitment(ctx context.Context, userID uuid.UUID, topic string, stake float64, durationDays int) (*stakes.Commitment, error)
	GetCommitment(ctx context.Context, userID, commitmentID uuid.UUID) (*stakes.Commitment, error)
	ListCommitments(ctx context.Context, userID uuid.UUID, statuses []stakes.CommitmentStatus) ([]*stakes.Commitment, error)

	GenerateExam(ctx context.Context, userID, commitmentID uuid.UUID) (*stakes.Exam, error)
	GetExam(ctx context.Context, userID, examID uuid.UUID) (*ExamView, error)
	StartExam(ctx context.Context, userID, examID uuid.UUID) (*stakes.Exam, error)
	SaveAnswer(ctx context.Context, userID, examID, questionID uuid.UUID, text string) (*stakes.Answer, error)
	SubmitExam(ctx context.Context, userID, examID uuid.UUID) (*stakes.Exam, error)
	GradeExam(ctx context.Context, userID, examID uuid.UUID) (*GradeOutcome, error)
	SubmitAndGrade(ctx context.Context, userID, examID uuid.UUID) (*GradeOutcome, error)
	RegradeExam(ctx context.Context, userID, examID uuid.UUID) (*GradeOutcome, error)

	SweepExpired(ctx context.Context, userID uuid.UUID) (domainagg.ExpireOverdueResult, error)
}

type LifecycleServiceDeps struct {
	Log         *logger.Logger
	Commitments repos.CommitmentRepo
	Exams       repos.ExamRepo
	Answers     repos.AnswerRepo
	Lifecycle   domainagg.LifecycleAggregate

	Generator  QuestionGenerator
	Aggregator ExamAggregator
	Resolver   StakeResolver
	Publisher  events.Publisher
	Metrics    *observability.Metrics

	QuestionCount int
	// GradeTimeout bounds a grading run. Grading is detached from the caller's cancellation.
	GradeTimeout time.Duration
	Now          func() time.Time
}

type lifecycleService struct {
	deps LifecycleServiceDeps
	log  *logger.Logger
}

func NewLifecycleService(deps LifecycleServiceDeps) LifecycleService {
	if deps.Publisher == nil {
		deps.Publisher = events.NewNopPublisher()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.QuestionCount == 0 {
		deps.QuestionCount = DefaultQuestionCount
	}
	if deps.GradeTimeout <= 0 {
		deps.GradeTimeout = DefaultGradeTimeout
	}
	return &lifecycleService{
		deps: deps,
		log:  deps.Log.With("service", "LifecycleService"),
	}
}

func (s *lifecycleService) now() time.Time { return s.deps.Now().UTC() }

func (s *lifecycleService) CreateCommitment(ctx context.Context, userID uuid.UUID, topic string, stake float64, durationDays int) (*stakes.Commitment, error) {
	const op = "Services.Lifecycle.CreateCommitment"
	c, err := stakes.NewCommitment(userID, topic, stake, durationDays, s.now())
	if err != nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}
	if _, err := s.deps.Commitments.Create(dbctx.Context{Ctx: ctx}, []*stakes.Commitment{c}); err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	s.log.Info("commitment created",
		"user_id", userID,
		"commitment_id", c.ID,
		"stake_amount", c.StakeAmount,
		"deadline", c.Deadline,
	)
	return c, nil
}

func (s *lifecycleService) GetCommitment(ctx context.Context, userID, commitmentID uuid.UUID) (*stakes.Commitment, error) {
	const op = "Services.Lifecycle.GetCommitment"
	if commitmentID == uuid.Nil {
		return nil, domainagg.NotFound(op, "commitment")
	}
	c, err := s.deps.Commitments.GetByID(dbctx.Context{Ctx: ctx}, commitmentID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if c == nil {
		return nil, domainagg.NotFound(op, "commitment")
	}
	if c.UserID != userID {
		return nil, domainagg.Unauthorized(op)
	}
	return c, nil
}

func (s *lifecycleService) ListCommitments(ctx context.Context, userID uuid.UUID, statuses []stakes.CommitmentStatus) ([]*stakes.Commitment, error) {
	const op = "Services.Lifecycle.ListCommitments"
	if userID == uuid.Nil {
		return nil, domainagg.Unauthorized(op)
	}
	out, err := s.deps.Commitments.ListByUser(dbctx.Context{Ctx: ctx}, userID, statuses, 0)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return out, nil
}

// GenerateExam checks preconditions before spending LLM calls; the aggregate re-checks them
// under a row lock when inserting. A failed generation leaves no exam behind.
func (s *lifecycleService) GenerateExam(ctx context.Context, userID, commitmentID uuid.UUID) (*stakes.Exam, error) {
	const op = "Services.Lifecycle.GenerateExam"
	c, err := s.GetCommitment(ctx, userID, commitmentID)
	if err != nil {
		return nil, err
	}
	if c.Status != stakes.CommitmentActive {
		return nil, domainagg.Structural(op, "commitment is "+string(c.Status))
	}
	if c.Overdue(s.now()) {
		return nil, domainagg.Structural(op, "commitment deadline has passed")
	}
	n, err := s.deps.Exams.CountUnresolved(dbctx.Context{Ctx: ctx}, c.ID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if n > 0 {
		return nil, domainagg.Structural(op, "commitment already has an unresolved exam")
	}

	gen, err := s.deps.Generator.Generate(ctx, c.Topic, s.deps.QuestionCount)
	if err != nil {
		return nil, err
	}
	exam, err := s.deps.Lifecycle.CreateExam(ctx, domainagg.CreateExamInput{
		UserID:       userID,
		CommitmentID: c.ID,
		Questions:    gen.Questions,
		TraceRef:     gen.TraceRef,
		At:           s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("exam generated", "user_id", userID, "commitment_id", c.ID, "exam_id", exam.ID, "questions", len(gen.Questions), "trace_ref", gen.TraceRef)
	return exam, nil
}

func (s *lifecycleService) GetExam(ctx context.Context, userID, examID uuid.UUID) (*ExamView, error) {
	const op = "Services.Lifecycle.GetExam"
	exam, err := s.ownedExam(ctx, op, userID, examID)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	questions, err := s.deps.Exams.ListQuestions(dbc, exam.ID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	answers, err := s.deps.Answers.ListByExam(dbc, exam.ID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return &ExamView{Exam: exam, Questions: questions, Answers: answers}, nil
}

func (s *lifecycleService) StartExam(ctx context.Context, userID, examID uuid.UUID) (*stakes.Exam, error) {
	exam, err := s.deps.Lifecycle.StartExam(ctx, domainagg.ExamTransitionInput{UserID: userID, ExamID: examID, At: s.now()})
	if err != nil {
		return nil, err
	}
	s.log.Info("exam started", "user_id", userID, "exam_id", examID)
	return exam, nil
}

func (s *lifecycleService) SaveAnswer(ctx context.Context, userID, examID, questionID uuid.UUID, text string) (*stakes.Answer, error) {
	return s.deps.Lifecycle.SaveAnswer(ctx, domainagg.SaveAnswerInput{
		UserID:     userID,
		ExamID:     examID,
		QuestionID: questionID,
		Text:       text,
		At:         s.now(),
	})
}

func (s *lifecycleService) SubmitExam(ctx context.Context, userID, examID uuid.UUID) (*stakes.Exam, error) {
	exam, err := s.deps.Lifecycle.SubmitExam(ctx, domainagg.ExamTransitionInput{UserID: userID, ExamID: examID, At: s.now()})
	if err != nil {
		return nil, err
	}
	s.log.Info("exam submitted", "user_id", userID, "exam_id", examID)
	return exam, nil
}

func (s *lifecycleService) SubmitAndGrade(ctx context.Context, userID, examID uuid.UUID) (*GradeOutcome, error) {
	if _, err := s.SubmitExam(ctx, userID, examID); err != nil {
		return nil, err
	}
	return s.GradeExam(ctx, userID, examID)
}

// GradeExam grades a submitted exam. It is also the retry path for an exam left in submitted.
func (s *lifecycleService) GradeExam(ctx context.Context, userID, examID uuid.UUID) (*GradeOutcome, error) {
	return s.grade(ctx, "Services.Lifecycle.GradeExam", userID, examID, stakes.ExamSubmitted)
}

// RegradeExam is the manual remediation path for grading_failed exams; a failure leaves the exam as it was.
func (s *lifecycleService) RegradeExam(ctx context.Context, userID, examID uuid.UUID) (*GradeOutcome, error) {
	return s.grade(ctx, "Services.Lifecycle.RegradeExam", userID, examID, stakes.ExamGradingFailed)
}

func (s *lifecycleService) grade(ctx context.Context, op string, userID, examID uuid.UUID, from stakes.ExamStatus) (*GradeOutcome, error) {
	exam, err := s.ownedExam(ctx, op, userID, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != from {
		return nil, domainagg.Structural(op, "exam is "+string(exam.Status)+", want "+string(from))
	}

	// A submitted exam must end graded or grading_failed even if the client goes away.
	gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.GradeTimeout)
	defer cancel()

	out, err := s.gradeLoaded(gctx, op, userID, exam, from)
	if err != nil && from == stakes.ExamSubmitted && !domainagg.IsCode(err, domainagg.CodeConflict) {
		s.markGradingFailed(gctx, exam, err)
	}
	return out, err
}

func (s *lifecycleService) gradeLoaded(ctx context.Context, op string, userID uuid.UUID, exam *stakes.Exam, from stakes.ExamStatus) (*GradeOutcome, error) {
	dbc := dbctx.Context{Ctx: ctx}
	questions, err := s.deps.Exams.ListQuestions(dbc, exam.ID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	answers, err := s.deps.Answers.ListByExam(dbc, exam.ID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}

	grade, err := s.deps.Aggregator.GradeExam(ctx, exam, questions, answers)
	if err != nil {
		return nil, err
	}

	answered := make(map[uuid.UUID]bool, len(answers))
	for _, a := range answers {
		answered[a.QuestionID] = true
	}
	graded := make([]domainagg.GradedAnswer, 0, len(grade.PerQuestion))
	for _, g := range grade.PerQuestion {
		if !answered[g.QuestionID] {
			continue
		}
		graded = append(graded, domainagg.GradedAnswer{
			QuestionID: g.QuestionID,
			Score:      g.Score,
			Feedback:   g.Feedback,
			SpanRef:    g.SpanRef,
		})
	}

	res, err := s.deps.Lifecycle.CommitGrading(ctx, domainagg.CommitGradingInput{
		UserID:       userID,
		ExamID:       exam.ID,
		FromStatus:   from,
		OverallScore: grade.OverallScore,
		Passed:       grade.Passed,
		Answers:      graded,
		GradedAt:     s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("exam graded",
		"user_id", userID,
		"exam_id", exam.ID,
		"overall_score", grade.OverallScore,
		"passed", grade.Passed,
		"stake_action", res.Resolution.Action,
		"stake_reason", res.Resolution.Reason,
		"trace_ref", grade.TraceRef,
	)
	if res.Resolution.Changed() {
		s.publishResolution(ctx, res.Resolution, &exam.ID)
	}
	return &GradeOutcome{Exam: res.Exam, Grade: grade, Resolution: res.Resolution}, nil
}

func (s *lifecycleService) markGradingFailed(ctx context.Context, exam *stakes.Exam, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markFailedTimeout)
	defer cancel()
	failed, err := s.deps.Lifecycle.MarkGradingFailed(ctx, domainagg.MarkGradingFailedInput{
		UserID:   exam.UserID,
		ExamID:   exam.ID,
		Reason:   cause.Error(),
		FailedAt: s.now(),
	})
	if err != nil {
		s.log.Error("mark grading failed", "exam_id", exam.ID, "error", err)
		return
	}
	s.log.Warn("exam grading failed", "exam_id", exam.ID, "status", failed.Status, "cause", cause)
	if perr := s.deps.Publisher.PublishGradingFailed(ctx, events.GradingFailed{
		ExamID:       exam.ID,
		CommitmentID: exam.CommitmentID,
		UserID:       exam.UserID,
		Reason:       cause.Error(),
		OccurredAt:   s.now(),
	}); perr != nil {
		s.log.Warn("publish grading failed event", "exam_id", exam.ID, "error", perr)
	}
}

func (s *lifecycleService) SweepExpired(ctx context.Context, userID uuid.UUID) (domainagg.ExpireOverdueResult, error) {
	res, err := s.deps.Resolver.SweepExpired(ctx, userID, s.now())
	if err != nil {
		return res, err
	}
	s.deps.Metrics.AddSweepExpired(len(res.Expired))
	for _, r := range res.Expired {
		s.publishResolution(ctx, r, nil)
	}
	return res, nil
}

func (s *lifecycleService) publishResolution(ctx context.Context, r stakes.Resolution, examID *uuid.UUID) {
	c := r.Commitment
	ev := events.StakeResolved{
		CommitmentID: c.ID,
		UserID:       c.UserID,
		ExamID:       examID,
		Action:       string(r.Action),
		Reason:       string(r.Reason),
		Status:       string(c.Status),
		StakeStatus:  string(c.StakeStatus),
		StakeAmount:  c.StakeAmount,
		RetryUsed:    c.RetryUsed,
		OccurredAt:   s.now(),
	}
	if err := s.deps.Publisher.PublishStakeResolved(ctx, ev); err != nil {
		s.log.Warn("publish stake resolved", "commitment_id", c.ID, "action", r.Action, "error", err)
	}
}

func (s *lifecycleService) ownedExam(ctx context.Context, op string, userID, examID uuid.UUID) (*stakes.Exam, error) {
	if examID == uuid.Nil {
		return nil, domainagg.NotFound(op, "exam")
	}
	exam, err := s.deps.Exams.GetByID(dbctx.Context{Ctx: ctx}, examID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if exam == nil {
		return nil, domainagg.NotFound(op, "exam")
	}
	if exam.UserID != userID {
		return nil, domainagg.Unauthorized(op)
	}
	return exam, nil
}
