package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/proofstake-backend/internal/http/handlers"
	httpMW "github.com/yungbote/proofstake-backend/internal/http/middleware"
	"github.com/yungbote/proofstake-backend/internal/observability"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics
	// ServiceName enables otelgin request spans when set.
	ServiceName string
	// CORSOrigins falls back to the local dev origins when empty.
	CORSOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	CommitmentHandler *httpH.CommitmentHandler
	ExamHandler       *httpH.ExamHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.RequestContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	if cfg.Metrics != nil {
		r.Use(httpMW.Metrics(cfg.Metrics))
	}
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Commitments
	if cfg.CommitmentHandler != nil {
		api.POST("/commitments", cfg.CommitmentHandler.CreateCommitment)
		api.GET("/commitments", cfg.CommitmentHandler.ListCommitments)
		api.POST("/commitments/sweep", cfg.CommitmentHandler.SweepExpired)
		api.GET("/commitments/:id", cfg.CommitmentHandler.GetCommitment)
		api.POST("/commitments/:id/exams", cfg.CommitmentHandler.GenerateExam)
	}

	// Exams
	if cfg.ExamHandler != nil {
		api.GET("/exams/:id", cfg.ExamHandler.GetExam)
		api.POST("/exams/:id/start", cfg.ExamHandler.StartExam)
		api.PUT("/exams/:id/answers/:question_id", cfg.ExamHandler.SaveAnswer)
		api.POST("/exams/:id/submit", cfg.ExamHandler.SubmitExam)
		api.POST("/exams/:id/grade", cfg.ExamHandler.GradeExam)
		api.POST("/exams/:id/regrade", cfg.ExamHandler.RegradeExam)
	}

	return r
}
