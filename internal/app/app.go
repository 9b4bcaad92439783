package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/proofstake-backend/internal/data/db"
	apphttp "github.com/yungbote/proofstake-backend/internal/http"
	"github.com/yungbote/proofstake-backend/internal/observability"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	Clients  Clients
	Metrics  *observability.Metrics

	dbService    *db.Service
	server       *apphttp.Server
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel())
	metrics := observability.NewMetrics()
	tracer := observability.NewTracer(metrics)

	dbs, err := db.NewService(cfg.DB(), log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := dbs.AutoMigrateAll(); err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, fmt.Errorf("db automigrate: %w", err)
	}
	theDB := dbs.DB()
	sqlDB, err := theDB.DB()
	if err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, fmt.Errorf("db handle: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg, metrics)
	if err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, clients, metrics, tracer)
	handlerset := wireHandlers(log, sqlDB, serviceset)
	middleware := wireMiddleware(log, serviceset)
	router := wireRouter(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Clients:      clients,
		Metrics:      metrics,
		dbService:    dbs,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background workers.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Services.SweepWorker != nil {
		a.Services.SweepWorker.Start(ctx)
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.server = apphttp.NewServer(a.Router, apphttp.ServerConfig{
		Addr:         addr,
		WriteTimeout: time.Duration(a.Cfg.GradeTimeoutSeconds)*time.Second + time.Minute,
	})
	return a.server.Run()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.Log.Warn("http shutdown", "error", err)
		}
	}
	a.Clients.Close()
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
