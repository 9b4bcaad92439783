package app

import (
	httpH "github.com/yungbote/proofstake-backend/internal/http/handlers"
	httpMW "github.com/yungbote/proofstake-backend/internal/http/middleware"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Commitment *httpH.CommitmentHandler
	Exam       *httpH.ExamHandler
}

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireHandlers(log *logger.Logger, db httpH.Pinger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(db),
		Commitment: httpH.NewCommitmentHandler(services.Lifecycle),
		Exam:       httpH.NewExamHandler(services.Lifecycle),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}
