package domain

import "github.com/yungbote/proofstake-backend/internal/domain/stakes"

type Commitment = stakes.Commitment
type CommitmentStatus = stakes.CommitmentStatus
type StakeStatus = stakes.StakeStatus

type Exam = stakes.Exam
type ExamStatus = stakes.ExamStatus
type Question = stakes.Question
type QuestionType = stakes.QuestionType
type Difficulty = stakes.Difficulty
type Answer = stakes.Answer

const (
	CommitmentActive    = stakes.CommitmentActive
	CommitmentCompleted = stakes.CommitmentCompleted
	CommitmentFailed    = stakes.CommitmentFailed
	CommitmentExpired   = stakes.CommitmentExpired

	StakeAtRisk = stakes.StakeAtRisk
	StakeSaved  = stakes.StakeSaved
	StakeBurned = stakes.StakeBurned

	ExamPending       = stakes.ExamPending
	ExamInProgress    = stakes.ExamInProgress
	ExamSubmitted     = stakes.ExamSubmitted
	ExamGraded        = stakes.ExamGraded
	ExamGradingFailed = stakes.ExamGradingFailed

	QuestionMultipleChoice = stakes.QuestionMultipleChoice
	QuestionShortAnswer    = stakes.QuestionShortAnswer
	QuestionApplication    = stakes.QuestionApplication

	DifficultyIntermediate = stakes.DifficultyIntermediate
	DifficultyAdvanced     = stakes.DifficultyAdvanced

	MinQuestions = stakes.MinQuestions
	MaxQuestions = stakes.MaxQuestions
	PassScore    = stakes.PassScore
)

// UnresolvedExamStatuses block generating another exam for the same commitment.
var UnresolvedExamStatuses = stakes.UnresolvedExamStatuses

// Models lists every table owned by the lifecycle engine, in migration order.
func Models() []any {
	return []any{
		&stakes.Commitment{},
		&stakes.Exam{},
		&stakes.Question{},
		&stakes.Answer{},
	}
}
