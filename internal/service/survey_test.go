package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feedbacklab/survey-server/internal/model"
	"github.com/feedbacklab/survey-server/internal/service/mocks"
)

type surveyFixture struct {
	svc       *SurveyService
	surveys   *mocks.MockSurveyStore
	responses *mocks.MockResponseStore
	settings  *mocks.MockSettingsStore

	statusUpdates []string
	savedSurveys  []*model.Survey
	savedSettings []*model.Settings
	receipts      []string
}

func newSurveyFixture(t *testing.T) *surveyFixture {
	t.Helper()

	f := &surveyFixture{
		surveys:   &mocks.MockSurveyStore{},
		responses: &mocks.MockResponseStore{},
		settings:  &mocks.MockSettingsStore{},
	}

	f.surveys.UpdateSurveyStatusFunc = func(ctx context.Context, surveyID, status string, updateAt int64) error {
		f.statusUpdates = append(f.statusUpdates, status)
		return nil
	}
	f.surveys.SaveSurveyFunc = func(ctx context.Context, survey *model.Survey) error {
		f.savedSurveys = append(f.savedSurveys, survey)
		return nil
	}
	f.surveys.IncrementReceiptCountFunc = func(ctx context.Context, surveyID string) error {
		f.receipts = append(f.receipts, surveyID)
		return nil
	}
	f.settings.SaveSettingsFunc = func(ctx context.Context, settings *model.Settings) error {
		f.savedSettings = append(f.savedSettings, settings)
		return nil
	}

	f.svc = NewSurveyService(f.surveys, f.responses, f.settings, zap.NewNop())
	f.svc.now = func() time.Time { return testNow }

	return f
}

func validQuestions() model.SurveyQuestions {
	return model.SurveyQuestions{
		SurveyMessageText: "We would love your feedback!",
		Questions: []model.Question{
			{ID: "q-rating", Text: "How likely are you to recommend us?", Type: model.QuestionTypeLinearScale, System: true, Mandatory: true},
			{ID: "q-feedback", Text: "How can we make your experience better?", Type: model.QuestionTypeText},
		},
	}
}

func TestActiveSurvey(t *testing.T) {
	t.Run("none running", func(t *testing.T) {
		f := newSurveyFixture(t)
		f.surveys.GetSurveysByStatusFunc = func(ctx context.Context, status string) ([]*model.Survey, error) {
			return nil, nil
		}

		survey, err := f.svc.ActiveSurvey(context.Background())
		require.NoError(t, err)
		assert.Nil(t, survey)
	})

	t.Run("exactly one running", func(t *testing.T) {
		f := newSurveyFixture(t)
		running := activeTestSurvey()
		f.surveys.GetSurveysByStatusFunc = func(ctx context.Context, status string) ([]*model.Survey, error) {
			assert.Equal(t, model.SurveyStatusInProgress, status)
			return []*model.Survey{running}, nil
		}

		survey, err := f.svc.ActiveSurvey(context.Background())
		require.NoError(t, err)
		assert.Equal(t, running.ID, survey.ID)
	})

	t.Run("two running is an integrity failure", func(t *testing.T) {
		f := newSurveyFixture(t)
		f.surveys.GetSurveysByStatusFunc = func(ctx context.Context, status string) ([]*model.Survey, error) {
			return []*model.Survey{activeTestSurvey(), activeTestSurvey()}, nil
		}

		_, err := f.svc.ActiveSurvey(context.Background())
		assert.ErrorIs(t, err, ErrStorageFailure)
	})
}

func TestEnd(t *testing.T) {
	t.Run("ends a running survey", func(t *testing.T) {
		f := newSurveyFixture(t)
		survey := activeTestSurvey()
		f.surveys.GetSurveyFunc = func(ctx context.Context, surveyID string) (*model.Survey, error) {
			return survey, nil
		}

		status, err := f.svc.End(context.Background(), survey.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SurveyStatusEnded, status)
		assert.Equal(t, []string{model.SurveyStatusEnded}, f.statusUpdates)
	})

	t.Run("ending twice is a no-op", func(t *testing.T) {
		f := newSurveyFixture(t)
		survey := activeTestSurvey()
		survey.Status = model.SurveyStatusEnded
		f.surveys.GetSurveyFunc = func(ctx context.Context, surveyID string) (*model.Survey, error) {
			return survey, nil
		}

		status, err := f.svc.End(context.Background(), survey.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SurveyStatusEnded, status)
		assert.Empty(t, f.statusUpdates, "an already ended survey must not be re-written")
	})

	t.Run("folds a time-expired survey forward", func(t *testing.T) {
		f := newSurveyFixture(t)
		survey := activeTestSurvey()
		survey.StartAt = testNow.Add(-31 * 24 * time.Hour).UnixMilli()
		f.surveys.GetSurveyFunc = func(ctx context.Context, surveyID string) (*model.Survey, error) {
			return survey, nil
		}

		status, err := f.svc.End(context.Background(), survey.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SurveyStatusEnded, status)
		assert.Equal(t, []string{model.SurveyStatusEnded}, f.statusUpdates)
	})

	t.Run("unknown survey", func(t *testing.T) {
		f := newSurveyFixture(t)
		f.surveys.GetSurveyFunc = func(ctx context.Context, surveyID string) (*model.Survey, error) {
			return nil, nil
		}

		_, err := f.svc.End(context.Background(), model.NewID())
		assert.ErrorIs(t, err, ErrSurveyNotFound)
	})

	t.Run("malformed ID", func(t *testing.T) {
		f := newSurveyFixture(t)

		_, err := f.svc.End(context.Background(), "not-an-id")
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestStartScheduled(t *testing.T) {
	dueSettings := func() *model.Settings {
		return &model.Settings{
			EnableSurvey: true,
			SurveyDateTime: model.SurveyDateTime{
				Timestamp: testNow.Add(-time.Minute).UnixMilli(),
			},
			SurveyExpiry:    model.SurveyExpiry{Days: 30},
			SurveyQuestions: validQuestions(),
			TeamFilter:      model.TeamFilter{FilterType: model.FilterTypeEveryone},
		}
	}

	t.Run("activates a due survey", func(t *testing.T) {
		f := newSurveyFixture(t)
		f.surveys.GetSurveysByStatusFunc = func(ctx context.Context, status string) ([]*model.Survey, error) {
			return nil, nil
		}

		survey, err := f.svc.StartScheduled(context.Background(), dueSettings())
		require.NoError(t, err)
		require.NotNil(t, survey)

		assert.Equal(t, model.SurveyStatusInProgress, survey.Status)
		assert.Equal(t, 30, survey.ExpiryDays)
		assert.True(t, model.IsValidID(survey.ID))
		require.Len(t, f.savedSurveys, 1)
	})

	t.Run("not due yet", func(t *testing.T) {
		f := newSurveyFixture(t)
		settings := dueSettings()
		settings.SurveyDateTime.Timestamp = testNow.Add(time.Hour).UnixMilli()

		survey, err := f.svc.StartScheduled(context.Background(), settings)
		require.NoError(t, err)
		assert.Nil(t, survey)
		assert.Empty(t, f.savedSurveys)
	})

	t.Run("disabled", func(t *testing.T) {
		f := newSurveyFixture(t)
		settings := dueSettings()
		settings.EnableSurvey = false

		survey, err := f.svc.StartScheduled(context.Background(), settings)
		require.NoError(t, err)
		assert.Nil(t, survey)
	})

	t.Run("one survey at a time", func(t *testing.T) {
		f := newSurveyFixture(t)
		f.surveys.GetSurveysByStatusFunc = func(ctx context.Context, status string) ([]*model.Survey, error) {
			return []*model.Survey{activeTestSurvey()}, nil
		}

		survey, err := f.svc.StartScheduled(context.Background(), dueSettings())
		require.NoError(t, err)
		assert.Nil(t, survey)
		assert.Empty(t, f.savedSurveys)
	})

	t.Run("ended survey is not respawned", func(t *testing.T) {
		f := newSurveyFixture(t)
		settings := dueSettings()

		// the admin ended the survey, but the settings still carry the same
		// enabled schedule; a redelivered tick must not mint a duplicate
		ended := activeTestSurvey()
		ended.StartAt = settings.SurveyDateTime.Timestamp
		ended.Status = model.SurveyStatusEnded
		f.surveys.GetSurveyByStartTimeFunc = func(ctx context.Context, startAt int64) (*model.Survey, error) {
			assert.Equal(t, settings.SurveyDateTime.Timestamp, startAt)
			return ended, nil
		}

		survey, err := f.svc.StartScheduled(context.Background(), settings)
		require.NoError(t, err)
		assert.Nil(t, survey)
		assert.Empty(t, f.savedSurveys)
	})

	t.Run("expired survey is not recreated", func(t *testing.T) {
		f := newSurveyFixture(t)
		settings := dueSettings()
		settings.SurveyDateTime.Timestamp = testNow.Add(-31 * 24 * time.Hour).UnixMilli()

		expired := activeTestSurvey()
		expired.StartAt = settings.SurveyDateTime.Timestamp
		expired.Status = model.SurveyStatusEnded
		f.surveys.GetSurveyByStartTimeFunc = func(ctx context.Context, startAt int64) (*model.Survey, error) {
			return expired, nil
		}

		survey, err := f.svc.StartScheduled(context.Background(), settings)
		require.NoError(t, err)
		assert.Nil(t, survey)
		assert.Empty(t, f.savedSurveys)
	})

	t.Run("invalid questions block activation", func(t *testing.T) {
		f := newSurveyFixture(t)
		settings := dueSettings()
		settings.SurveyQuestions.Questions = nil

		_, err := f.svc.StartScheduled(context.Background(), settings)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestExpireOverdue(t *testing.T) {
	f := newSurveyFixture(t)

	fresh := activeTestSurvey()
	overdue := activeTestSurvey()
	overdue.StartAt = testNow.Add(-31 * 24 * time.Hour).UnixMilli()

	f.surveys.GetSurveysByStatusFunc = func(ctx context.Context, status string) ([]*model.Survey, error) {
		return []*model.Survey{fresh, overdue}, nil
	}

	ended, err := f.svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ended)
	assert.Equal(t, []string{model.SurveyStatusEnded}, f.statusUpdates)
}

func TestRecordReceipt(t *testing.T) {
	f := newSurveyFixture(t)
	surveyID := model.NewID()

	require.NoError(t, f.svc.RecordReceipt(context.Background(), surveyID))
	assert.Equal(t, []string{surveyID}, f.receipts)

	err := f.svc.RecordReceipt(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSettings_DefaultsWhenUnset(t *testing.T) {
	f := newSurveyFixture(t)
	f.settings.GetSettingsFunc = func(ctx context.Context) (*model.Settings, error) {
		return nil, nil
	}

	settings, err := f.svc.Settings(context.Background())
	require.NoError(t, err)

	assert.False(t, settings.EnableSurvey)
	assert.Equal(t, model.DefaultExpiryDays, settings.SurveyExpiry.Days)
	assert.Equal(t, model.FilterTypeEveryone, settings.TeamFilter.FilterType)
}

func TestUpdateSettings(t *testing.T) {
	t.Run("applies valid sub-settings", func(t *testing.T) {
		f := newSurveyFixture(t)
		enable := true

		settings, fieldErrors, err := f.svc.UpdateSettings(context.Background(), SettingsUpdate{
			EnableSurvey: &enable,
			SurveyExpiry: &model.SurveyExpiry{Days: 14},
		})
		require.NoError(t, err)

		assert.Empty(t, fieldErrors)
		assert.True(t, settings.EnableSurvey)
		assert.Equal(t, 14, settings.SurveyExpiry.Days)
		require.Len(t, f.savedSettings, 1)
	})

	t.Run("a failing sub-setting never blocks its siblings", func(t *testing.T) {
		f := newSurveyFixture(t)
		enable := true

		settings, fieldErrors, err := f.svc.UpdateSettings(context.Background(), SettingsUpdate{
			EnableSurvey: &enable,
			SurveyExpiry: &model.SurveyExpiry{Days: 0},
			TeamFilter:   &model.TeamFilter{FilterType: "bogus"},
		})
		require.NoError(t, err)

		assert.Len(t, fieldErrors, 2)
		assert.Contains(t, fieldErrors, "SurveyExpiry")
		assert.Contains(t, fieldErrors, "TeamFilter")

		// the valid enable flag still landed, invalid values kept their defaults
		assert.True(t, settings.EnableSurvey)
		assert.Equal(t, model.DefaultExpiryDays, settings.SurveyExpiry.Days)
		require.Len(t, f.savedSettings, 1)
	})

	t.Run("nothing valid to apply skips the save", func(t *testing.T) {
		f := newSurveyFixture(t)

		_, fieldErrors, err := f.svc.UpdateSettings(context.Background(), SettingsUpdate{
			SurveyExpiry: &model.SurveyExpiry{Days: -1},
		})
		require.NoError(t, err)

		assert.Len(t, fieldErrors, 1)
		assert.Empty(t, f.savedSettings)
	})

	t.Run("storage failure surfaces", func(t *testing.T) {
		f := newSurveyFixture(t)
		f.settings.GetSettingsFunc = func(ctx context.Context) (*model.Settings, error) {
			return nil, errors.New("disk on fire")
		}

		_, _, err := f.svc.UpdateSettings(context.Background(), SettingsUpdate{})
		assert.ErrorIs(t, err, ErrStorageFailure)
	})
}
