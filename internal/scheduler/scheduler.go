package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/feedbacklab/survey-server/internal/model"
)

const (
	DefaultInterval = time.Minute

	lockKey = "survey:scheduler:lock"
	lockTTL = 45 * time.Second
)

// Locker is the distributed mutex that keeps only one server instance
// running a scheduler pass at a time.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

type SurveyService interface {
	Settings(ctx context.Context) (*model.Settings, error)
	StartScheduled(ctx context.Context, settings *model.Settings) (*model.Survey, error)
	ExpireOverdue(ctx context.Context) (int, error)
}

// Scheduler periodically activates due surveys and expires overdue ones.
type Scheduler struct {
	surveys  SurveyService
	locker   Locker
	logger   *zap.Logger
	interval time.Duration

	done chan struct{}
}

func New(surveys SurveyService, locker Locker, logger *zap.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		surveys:  surveys,
		locker:   locker,
		logger:   logger.Named("scheduler"),
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs the tick loop until ctx is cancelled. It returns immediately;
// Wait blocks until the loop has fully stopped.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("scheduler started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopped")
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// Wait blocks until the loop started by Start has exited.
func (s *Scheduler) Wait() {
	<-s.done
}

// RunOnce performs a single scheduler pass under the cluster lock. Losing
// the lock race is normal: another instance is handling this tick.
func (s *Scheduler) RunOnce(ctx context.Context) {
	acquired, err := s.locker.AcquireLock(ctx, lockKey, lockTTL)
	if err != nil {
		s.logger.Warn("scheduler lock unavailable", zap.Error(err))
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := s.locker.ReleaseLock(ctx, lockKey); err != nil {
			s.logger.Warn("failed to release scheduler lock", zap.Error(err))
		}
	}()

	ended, err := s.surveys.ExpireOverdue(ctx)
	if err != nil {
		s.logger.Error("failed to expire overdue surveys", zap.Error(err))
	} else if ended > 0 {
		s.logger.Info("expired overdue surveys", zap.Int("count", ended))
	}

	settings, err := s.surveys.Settings(ctx)
	if err != nil {
		s.logger.Error("failed to load settings", zap.Error(err))
		return
	}

	survey, err := s.surveys.StartScheduled(ctx, settings)
	if err != nil {
		s.logger.Error("failed to start scheduled survey", zap.Error(err))
		return
	}
	if survey != nil {
		s.logger.Info("scheduled survey activated", zap.String("surveyID", survey.ID))
	}
}
