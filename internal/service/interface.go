package service

import (
	"context"

	"github.com/feedbacklab/survey-server/internal/model"
)

// SurveyStore defines the survey persistence operations used by services.
type SurveyStore interface {
	SaveSurvey(ctx context.Context, survey *model.Survey) error
	GetSurvey(ctx context.Context, surveyID string) (*model.Survey, error)
	GetSurveyByStartTime(ctx context.Context, startAt int64) (*model.Survey, error)
	GetSurveysByStatus(ctx context.Context, status string) ([]*model.Survey, error)
	UpdateSurveyStatus(ctx context.Context, surveyID, status string, updateAt int64) error
	GetSurveyStatList(ctx context.Context) ([]*model.SurveyStat, error)
	IncrementReceiptCount(ctx context.Context, surveyID string) error
}

// ResponseStore defines the response persistence operations used by services.
// UpsertResponse must guarantee at most one row per (survey, user) pair under
// concurrent submissions from the same user. priorUpdateAt carries the
// update_at the caller read before merging, or a negative value when the
// caller expects no row yet; the write applies only while that version still
// holds, so callers can detect a lost race and retry against fresh state.
type ResponseStore interface {
	GetResponse(ctx context.Context, surveyID, userID string) (*model.SurveyResponse, error)
	UpsertResponse(ctx context.Context, response *model.SurveyResponse, priorUpdateAt int64) (bool, error)
	GetResponsesPage(ctx context.Context, surveyID, afterID string, limit int) ([]*model.SurveyResponse, error)
	IncrementResponseCount(ctx context.Context, surveyID string) error
	UpdateRatingGroupCounts(ctx context.Context, surveyID string, promoter, passive, detractor int) error
}

// SettingsStore persists the combined admin settings blob.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*model.Settings, error)
	SaveSettings(ctx context.Context, settings *model.Settings) error
}
