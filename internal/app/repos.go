package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/proofstake-backend/internal/data/repos"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

type Repos struct {
	Commitment repos.CommitmentRepo
	Exam       repos.ExamRepo
	Answer     repos.AnswerRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Commitment: repos.NewCommitmentRepo(db, log),
		Exam:       repos.NewExamRepo(db, log),
		Answer:     repos.NewAnswerRepo(db, log),
	}
}
