package mocks

import (
	"context"

	"github.com/feedbacklab/survey-server/internal/model"
)

// MockSurveyStore implements service.SurveyStore with injectable funcs.
type MockSurveyStore struct {
	SaveSurveyFunc            func(ctx context.Context, survey *model.Survey) error
	GetSurveyFunc             func(ctx context.Context, surveyID string) (*model.Survey, error)
	GetSurveyByStartTimeFunc  func(ctx context.Context, startAt int64) (*model.Survey, error)
	GetSurveysByStatusFunc    func(ctx context.Context, status string) ([]*model.Survey, error)
	UpdateSurveyStatusFunc    func(ctx context.Context, surveyID, status string, updateAt int64) error
	GetSurveyStatListFunc     func(ctx context.Context) ([]*model.SurveyStat, error)
	IncrementReceiptCountFunc func(ctx context.Context, surveyID string) error
}

func (m *MockSurveyStore) SaveSurvey(ctx context.Context, survey *model.Survey) error {
	if m.SaveSurveyFunc != nil {
		return m.SaveSurveyFunc(ctx, survey)
	}
	return nil
}

func (m *MockSurveyStore) GetSurvey(ctx context.Context, surveyID string) (*model.Survey, error) {
	if m.GetSurveyFunc != nil {
		return m.GetSurveyFunc(ctx, surveyID)
	}
	return nil, nil
}

func (m *MockSurveyStore) GetSurveyByStartTime(ctx context.Context, startAt int64) (*model.Survey, error) {
	if m.GetSurveyByStartTimeFunc != nil {
		return m.GetSurveyByStartTimeFunc(ctx, startAt)
	}
	return nil, nil
}

func (m *MockSurveyStore) GetSurveysByStatus(ctx context.Context, status string) ([]*model.Survey, error) {
	if m.GetSurveysByStatusFunc != nil {
		return m.GetSurveysByStatusFunc(ctx, status)
	}
	return nil, nil
}

func (m *MockSurveyStore) UpdateSurveyStatus(ctx context.Context, surveyID, status string, updateAt int64) error {
	if m.UpdateSurveyStatusFunc != nil {
		return m.UpdateSurveyStatusFunc(ctx, surveyID, status, updateAt)
	}
	return nil
}

func (m *MockSurveyStore) GetSurveyStatList(ctx context.Context) ([]*model.SurveyStat, error) {
	if m.GetSurveyStatListFunc != nil {
		return m.GetSurveyStatListFunc(ctx)
	}
	return nil, nil
}

func (m *MockSurveyStore) IncrementReceiptCount(ctx context.Context, surveyID string) error {
	if m.IncrementReceiptCountFunc != nil {
		return m.IncrementReceiptCountFunc(ctx, surveyID)
	}
	return nil
}

// MockResponseStore implements service.ResponseStore with injectable funcs.
type MockResponseStore struct {
	GetResponseFunc             func(ctx context.Context, surveyID, userID string) (*model.SurveyResponse, error)
	UpsertResponseFunc          func(ctx context.Context, response *model.SurveyResponse, priorUpdateAt int64) (bool, error)
	GetResponsesPageFunc        func(ctx context.Context, surveyID, afterID string, limit int) ([]*model.SurveyResponse, error)
	IncrementResponseCountFunc  func(ctx context.Context, surveyID string) error
	UpdateRatingGroupCountsFunc func(ctx context.Context, surveyID string, promoter, passive, detractor int) error
}

func (m *MockResponseStore) GetResponse(ctx context.Context, surveyID, userID string) (*model.SurveyResponse, error) {
	if m.GetResponseFunc != nil {
		return m.GetResponseFunc(ctx, surveyID, userID)
	}
	return nil, nil
}

func (m *MockResponseStore) UpsertResponse(ctx context.Context, response *model.SurveyResponse, priorUpdateAt int64) (bool, error) {
	if m.UpsertResponseFunc != nil {
		return m.UpsertResponseFunc(ctx, response, priorUpdateAt)
	}
	return true, nil
}

func (m *MockResponseStore) GetResponsesPage(ctx context.Context, surveyID, afterID string, limit int) ([]*model.SurveyResponse, error) {
	if m.GetResponsesPageFunc != nil {
		return m.GetResponsesPageFunc(ctx, surveyID, afterID, limit)
	}
	return nil, nil
}

func (m *MockResponseStore) IncrementResponseCount(ctx context.Context, surveyID string) error {
	if m.IncrementResponseCountFunc != nil {
		return m.IncrementResponseCountFunc(ctx, surveyID)
	}
	return nil
}

func (m *MockResponseStore) UpdateRatingGroupCounts(ctx context.Context, surveyID string, promoter, passive, detractor int) error {
	if m.UpdateRatingGroupCountsFunc != nil {
		return m.UpdateRatingGroupCountsFunc(ctx, surveyID, promoter, passive, detractor)
	}
	return nil
}

// MockSettingsStore implements service.SettingsStore with injectable funcs.
type MockSettingsStore struct {
	GetSettingsFunc  func(ctx context.Context) (*model.Settings, error)
	SaveSettingsFunc func(ctx context.Context, settings *model.Settings) error
}

func (m *MockSettingsStore) GetSettings(ctx context.Context) (*model.Settings, error) {
	if m.GetSettingsFunc != nil {
		return m.GetSettingsFunc(ctx)
	}
	return nil, nil
}

func (m *MockSettingsStore) SaveSettings(ctx context.Context, settings *model.Settings) error {
	if m.SaveSettingsFunc != nil {
		return m.SaveSettingsFunc(ctx, settings)
	}
	return nil
}
