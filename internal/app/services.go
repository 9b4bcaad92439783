package app

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/proofstake-backend/internal/data/aggregates"
	"github.com/yungbote/proofstake-backend/internal/jobs/worker"
	"github.com/yungbote/proofstake-backend/internal/observability"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
	"github.com/yungbote/proofstake-backend/internal/services"
)

type Services struct {
	Auth        services.AuthService
	Lifecycle   services.LifecycleService
	SweepWorker *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients, metrics *observability.Metrics, tracer observability.Tracer) Services {
	log.Info("Wiring services...")

	lifecycle := aggregates.NewLifecycleAggregate(aggregates.LifecycleAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: aggregates.NewObservabilityHooks(metrics),
		},
		Commitments: reposet.Commitment,
		Exams:       reposet.Exam,
		Answers:     reposet.Answer,
	})

	policy := services.DefaultRetryPolicy()
	generator := services.NewQuestionGenerator(log, clients.LLM, tracer, metrics, policy)
	grader := services.NewAnswerGrader(log, clients.LLM, tracer, metrics, policy)
	aggregator := services.NewExamAggregator(log, grader, tracer, cfg.GradingConcurrency)
	resolver := services.NewStakeResolver(log, lifecycle)

	lifecycleService := services.NewLifecycleService(services.LifecycleServiceDeps{
		Log:           log,
		Commitments:   reposet.Commitment,
		Exams:         reposet.Exam,
		Answers:       reposet.Answer,
		Lifecycle:     lifecycle,
		Generator:     generator,
		Aggregator:    aggregator,
		Resolver:      resolver,
		Publisher:     clients.Publisher,
		Metrics:       metrics,
		QuestionCount: cfg.ExamQuestionCount,
		GradeTimeout:  time.Duration(cfg.GradeTimeoutSeconds) * time.Second,
	})

	sweep := worker.NewWorker(log, reposet.Commitment, lifecycleService, worker.Config{
		Interval:    time.Duration(cfg.SweepIntervalSeconds) * time.Second,
		BatchSize:   cfg.SweepBatchSize,
		Concurrency: cfg.SweepConcurrency,
	})

	return Services{
		Auth:        services.NewAuthService(log, cfg.JWTSecretKey, time.Duration(cfg.AccessTokenTTL)*time.Second, cfg.JWTIssuer),
		Lifecycle:   lifecycleService,
		SweepWorker: sweep,
	}
}
