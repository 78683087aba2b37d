package mocks

import (
	"context"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feedbacklab/survey-server/internal/model"
	"github.com/feedbacklab/survey-server/internal/service"
)

// MockSurveyService implements httpapi.SurveyService with injectable funcs.
type MockSurveyService struct {
	ActiveSurveyFunc   func(ctx context.Context) (*model.Survey, error)
	EndFunc            func(ctx context.Context, surveyID string) (string, error)
	StatListFunc       func(ctx context.Context) ([]*model.SurveyStat, error)
	RecordReceiptFunc  func(ctx context.Context, surveyID string) error
	SettingsFunc       func(ctx context.Context) (*model.Settings, error)
	UpdateSettingsFunc func(ctx context.Context, update service.SettingsUpdate) (*model.Settings, map[string]string, error)
	WriteReportCSVFunc func(ctx context.Context, surveyID string, w io.Writer) error
}

func (m *MockSurveyService) ActiveSurvey(ctx context.Context) (*model.Survey, error) {
	return m.ActiveSurveyFunc(ctx)
}

func (m *MockSurveyService) End(ctx context.Context, surveyID string) (string, error) {
	return m.EndFunc(ctx, surveyID)
}

func (m *MockSurveyService) StatList(ctx context.Context) ([]*model.SurveyStat, error) {
	return m.StatListFunc(ctx)
}

func (m *MockSurveyService) RecordReceipt(ctx context.Context, surveyID string) error {
	return m.RecordReceiptFunc(ctx, surveyID)
}

func (m *MockSurveyService) Settings(ctx context.Context) (*model.Settings, error) {
	return m.SettingsFunc(ctx)
}

func (m *MockSurveyService) UpdateSettings(ctx context.Context, update service.SettingsUpdate) (*model.Settings, map[string]string, error) {
	return m.UpdateSettingsFunc(ctx, update)
}

func (m *MockSurveyService) WriteReportCSV(ctx context.Context, surveyID string, w io.Writer) error {
	return m.WriteReportCSVFunc(ctx, surveyID, w)
}

// MockResponseService implements httpapi.ResponseService with injectable funcs.
type MockResponseService struct {
	SubmitFunc func(ctx context.Context, req service.SubmitRequest) (*model.SurveyResponse, error)
}

func (m *MockResponseService) Submit(ctx context.Context, req service.SubmitRequest) (*model.SurveyResponse, error) {
	return m.SubmitFunc(ctx, req)
}

// MockCacher implements httpapi.Cacher with injectable funcs. Funcs left nil
// behave as a cache that always misses and accepts every write.
type MockCacher struct {
	GetFunc   func(ctx context.Context, key string, dest any) error
	SetFunc   func(ctx context.Context, key string, value any, expiration time.Duration) error
	DelFunc   func(ctx context.Context, keys ...string) error
	CloseFunc func() error
}

func (m *MockCacher) Get(ctx context.Context, key string, dest any) error {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key, dest)
	}
	return redis.Nil
}

func (m *MockCacher) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	return nil
}

func (m *MockCacher) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc != nil {
		return m.DelFunc(ctx, keys...)
	}
	return nil
}

func (m *MockCacher) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
