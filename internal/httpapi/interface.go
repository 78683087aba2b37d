package httpapi

import (
	"context"
	"io"
	"time"

	"github.com/feedbacklab/survey-server/internal/model"
	"github.com/feedbacklab/survey-server/internal/service"
)

// Cacher defines the interface for cache operations.
type Cacher interface {
	Close() error
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type SurveyService interface {
	ActiveSurvey(ctx context.Context) (*model.Survey, error)
	End(ctx context.Context, surveyID string) (string, error)
	StatList(ctx context.Context) ([]*model.SurveyStat, error)
	RecordReceipt(ctx context.Context, surveyID string) error
	Settings(ctx context.Context) (*model.Settings, error)
	UpdateSettings(ctx context.Context, update service.SettingsUpdate) (*model.Settings, map[string]string, error)
	WriteReportCSV(ctx context.Context, surveyID string, w io.Writer) error
}

type ResponseService interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*model.SurveyResponse, error)
}
