package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/feedbacklab/survey-server/internal/config"
	"github.com/feedbacklab/survey-server/internal/httpapi"
	"github.com/feedbacklab/survey-server/internal/repository"
	"github.com/feedbacklab/survey-server/internal/scheduler"
	"github.com/feedbacklab/survey-server/internal/service"
	"github.com/feedbacklab/survey-server/pkg/cache"
	dbbuilder "github.com/feedbacklab/survey-server/pkg/database"
	"github.com/feedbacklab/survey-server/pkg/httpserver"
)

type App struct {
	logger     *zap.Logger
	dbPool     *sql.DB
	cache      *cache.Cache
	httpServer *httpserver.Server
	scheduler  *scheduler.Scheduler
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	dbPool, err := dbbuilder.New(
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DBPath),
		dbbuilder.WithSchema(repository.Schema),
	)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	logger.Info("Database pool initialized", zap.String("path", cfg.DBPath))

	cacheClient, err := cache.New(ctx,
		cache.WithAddress(cfg.RedisAddr),
	)
	if err != nil {
		return nil, fmt.Errorf("cache init failed: %w", err)
	}
	logger.Info("Cache client initialized", zap.String("addr", cfg.RedisAddr))

	surveyRepo := repository.NewSurveyRepository(dbPool)
	responseRepo := repository.NewResponseRepository(dbPool)
	settingsRepo := repository.NewSettingsRepository(dbPool)

	surveyService := service.NewSurveyService(surveyRepo, responseRepo, settingsRepo, logger)
	responseService := service.NewResponseService(surveyRepo, responseRepo, logger)

	handlers := httpapi.NewHandlers(surveyService, responseService, cacheClient, logger)

	httpServer, err := httpserver.New(
		httpserver.WithPort(cfg.HTTPPort),
		httpserver.WithLogger(logger),
		httpserver.WithHandler(handlers.Router()),
		httpserver.WithLogging(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP server: %w", err)
	}

	sched := scheduler.New(surveyService, cacheClient, logger, cfg.SchedulerInterval)

	return &App{
		logger:     logger,
		dbPool:     dbPool,
		cache:      cacheClient,
		httpServer: httpServer,
		scheduler:  sched,
	}, nil
}

// Run starts the application and blocks until a shutdown signal is received.
func (a *App) Run() error {
	a.logger.Info("application starting")

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	a.scheduler.Start(schedCtx)
	a.httpServer.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info("application shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopScheduler()
	a.scheduler.Wait()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("cache shutdown error", zap.Error(err))
	}
	if err := a.dbPool.Close(); err != nil {
		a.logger.Error("database shutdown error", zap.Error(err))
	}

	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			a.logger.Warn("shutdown completed but deadline exceeded")
		}
	default:
		a.logger.Info("graceful shutdown completed successfully")
	}

	_ = a.logger.Sync()
	return nil
}
