package repos

import (
	"github.com/yungbote/proofstake-backend/internal/data/repos/stakes"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type CommitmentRepo = stakes.CommitmentRepo
type ExamRepo = stakes.ExamRepo
type AnswerRepo = stakes.AnswerRepo

func NewCommitmentRepo(db *gorm.DB, log *logger.Logger) CommitmentRepo {
	return stakes.NewCommitmentRepo(db, log)
}

func NewExamRepo(db *gorm.DB, log *logger.Logger) ExamRepo {
	return stakes.NewExamRepo(db, log)
}

func NewAnswerRepo(db *gorm.DB, log *logger.Logger) AnswerRepo {
	return stakes.NewAnswerRepo(db, log)
}
