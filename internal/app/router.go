package app

import (
	"github.com/gin-gonic/gin"

	apphttp "github.com/yungbote/proofstake-backend/internal/http"
	"github.com/yungbote/proofstake-backend/internal/observability"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	serviceName := ""
	if cfg.OtelEnabled {
		serviceName = cfg.OtelServiceName
	}
	return apphttp.NewRouter(apphttp.RouterConfig{
		Log:               log,
		Metrics:           metrics,
		ServiceName:       serviceName,
		CORSOrigins:       cfg.CORSAllowedOrigins,
		AuthMiddleware:    middleware.Auth,
		CommitmentHandler: handlers.Commitment,
		ExamHandler:       handlers.Exam,
		HealthHandler:     handlers.Health,
	})
}
