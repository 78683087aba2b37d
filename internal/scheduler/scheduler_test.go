package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/feedbacklab/survey-server/internal/model"
)

type fakeLocker struct {
	acquired  bool
	acquireOK bool
	released  bool
	err       error
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.acquired = true
	return l.acquireOK, l.err
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key string) error {
	l.released = true
	return nil
}

type fakeSurveyService struct {
	settings    *model.Settings
	settingsErr error
	started     *model.Survey
	startErr    error
	expired     int
	expireErr   error

	settingsCalls atomic.Int32
	startCalls    atomic.Int32
	expireCalls   atomic.Int32
}

func (s *fakeSurveyService) Settings(ctx context.Context) (*model.Settings, error) {
	s.settingsCalls.Add(1)
	return s.settings, s.settingsErr
}

func (s *fakeSurveyService) StartScheduled(ctx context.Context, settings *model.Settings) (*model.Survey, error) {
	s.startCalls.Add(1)
	return s.started, s.startErr
}

func (s *fakeSurveyService) ExpireOverdue(ctx context.Context) (int, error) {
	s.expireCalls.Add(1)
	return s.expired, s.expireErr
}

func TestRunOnce(t *testing.T) {
	t.Run("runs a full pass under the lock", func(t *testing.T) {
		locker := &fakeLocker{acquireOK: true}
		surveys := &fakeSurveyService{settings: &model.Settings{}, expired: 2}
		s := New(surveys, locker, zap.NewNop(), time.Minute)

		s.RunOnce(context.Background())

		assert.True(t, locker.acquired)
		assert.True(t, locker.released)
		assert.EqualValues(t, 1, surveys.expireCalls.Load())
		assert.EqualValues(t, 1, surveys.settingsCalls.Load())
		assert.EqualValues(t, 1, surveys.startCalls.Load())
	})

	t.Run("losing the lock race skips the pass", func(t *testing.T) {
		locker := &fakeLocker{acquireOK: false}
		surveys := &fakeSurveyService{}
		s := New(surveys, locker, zap.NewNop(), time.Minute)

		s.RunOnce(context.Background())

		assert.True(t, locker.acquired)
		assert.False(t, locker.released)
		assert.Zero(t, surveys.expireCalls.Load())
		assert.Zero(t, surveys.startCalls.Load())
	})

	t.Run("lock errors skip the pass", func(t *testing.T) {
		locker := &fakeLocker{err: errors.New("redis down")}
		surveys := &fakeSurveyService{}
		s := New(surveys, locker, zap.NewNop(), time.Minute)

		s.RunOnce(context.Background())

		assert.Zero(t, surveys.expireCalls.Load())
	})

	t.Run("settings failure stops before activation", func(t *testing.T) {
		locker := &fakeLocker{acquireOK: true}
		surveys := &fakeSurveyService{settingsErr: errors.New("blob corrupt")}
		s := New(surveys, locker, zap.NewNop(), time.Minute)

		s.RunOnce(context.Background())

		assert.EqualValues(t, 1, surveys.expireCalls.Load(), "expiry still runs")
		assert.Zero(t, surveys.startCalls.Load())
		assert.True(t, locker.released)
	})
}

func TestStartStop(t *testing.T) {
	locker := &fakeLocker{acquireOK: true}
	surveys := &fakeSurveyService{settings: &model.Settings{}}
	s := New(surveys, locker, zap.NewNop(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && surveys.startCalls.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	s.Wait()

	assert.Greater(t, surveys.startCalls.Load(), int32(0), "the loop must tick at least once")
}
