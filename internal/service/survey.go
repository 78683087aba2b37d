package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/feedbacklab/survey-server/internal/model"
)

// SurveyService owns the survey lifecycle, the admin settings blob and the
// aggregate stat view.
type SurveyService struct {
	surveys   SurveyStore
	responses ResponseStore
	settings  SettingsStore
	logger    *zap.Logger
	now       func() time.Time
}

// NewSurveyService creates a new SurveyService instance.
func NewSurveyService(surveys SurveyStore, responses ResponseStore, settings SettingsStore, logger *zap.Logger) *SurveyService {
	if surveys == nil {
		panic("storage must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	return &SurveyService{
		surveys:   surveys,
		responses: responses,
		settings:  settings,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ActiveSurvey returns the single in-progress survey, or nil when none is
// running. More than one in-progress survey is a data integrity failure.
func (s *SurveyService) ActiveSurvey(ctx context.Context) (*model.Survey, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	surveys, err := s.surveys.GetSurveysByStatus(dbCtx, model.SurveyStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	switch len(surveys) {
	case 0:
		return nil, nil
	case 1:
		return surveys[0], nil
	default:
		return nil, fmt.Errorf("%w: found %d in-progress surveys, expected at most one", ErrStorageFailure, len(surveys))
	}
}

// End marks a survey ended and returns its terminal status. Ending an
// already-ended survey succeeds without side effect: the triggering
// collaborator may redeliver the action at-least-once.
func (s *SurveyService) End(ctx context.Context, surveyID string) (string, error) {
	if !model.IsValidID(surveyID) {
		return "", fmt.Errorf("%w: malformed survey ID %q", ErrValidation, surveyID)
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	survey, err := s.surveys.GetSurvey(dbCtx, surveyID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if survey == nil {
		return "", ErrSurveyNotFound
	}

	if StatusAt(survey, s.now()) == model.SurveyStatusEnded {
		if survey.Status != model.SurveyStatusEnded {
			// expired by time but not yet persisted; fold the row forward
			if err := s.surveys.UpdateSurveyStatus(dbCtx, surveyID, model.SurveyStatusEnded, s.now().UnixMilli()); err != nil {
				return "", fmt.Errorf("%w: %v", ErrStorageFailure, err)
			}
		}
		return model.SurveyStatusEnded, nil
	}

	if err := s.surveys.UpdateSurveyStatus(dbCtx, surveyID, model.SurveyStatusEnded, s.now().UnixMilli()); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	s.logger.Info("survey ended", zap.String("surveyID", surveyID))
	return model.SurveyStatusEnded, nil
}

// StartScheduled activates a survey from the admin settings once the
// scheduled start has passed. At most one survey runs at a time, and a
// schedule activates exactly once: a survey that was ended or expired is
// never respawned from the same SurveyDateTime on a later tick. Returns the
// activated survey, or nil.
func (s *SurveyService) StartScheduled(ctx context.Context, settings *model.Settings) (*model.Survey, error) {
	if settings == nil || !settings.EnableSurvey || settings.SurveyDateTime.Timestamp == 0 {
		return nil, nil
	}

	now := s.now()
	if now.UnixMilli() < settings.SurveyDateTime.Timestamp {
		return nil, nil
	}

	lookupCtx, lookupCancel := context.WithTimeout(ctx, dbTimeout)
	already, err := s.surveys.GetSurveyByStartTime(lookupCtx, settings.SurveyDateTime.Timestamp)
	lookupCancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if already != nil {
		// this schedule has run, regardless of how that survey finished
		return nil, nil
	}

	if err := settings.SurveyExpiry.IsValid(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := settings.SurveyQuestions.IsValid(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := settings.TeamFilter.IsValid(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	active, err := s.ActiveSurvey(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, nil
	}

	survey := &model.Survey{
		StartAt:         settings.SurveyDateTime.Timestamp,
		ExpiryDays:      settings.SurveyExpiry.Days,
		Questions:       settings.SurveyQuestions.Questions,
		FilterType:      settings.TeamFilter.FilterType,
		FilteredTeamIDs: settings.TeamFilter.FilteredTeamIDs,
		Status:          model.SurveyStatusInProgress,
	}
	survey.SetDefaults()

	if err := survey.IsValid(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := s.surveys.SaveSurvey(dbCtx, survey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	s.logger.Info("survey activated",
		zap.String("surveyID", survey.ID),
		zap.Time("startAt", survey.StartTime()),
		zap.Int("expiryDays", survey.ExpiryDays))

	return survey, nil
}

// ExpireOverdue ends every in-progress survey whose expiry has passed and
// returns how many were ended. Expiry and a manual end commute: whichever
// is observed first wins and the other becomes a no-op.
func (s *SurveyService) ExpireOverdue(ctx context.Context) (int, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	surveys, err := s.surveys.GetSurveysByStatus(dbCtx, model.SurveyStatusInProgress)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	now := s.now()
	ended := 0
	for _, survey := range surveys {
		if StatusAt(survey, now) != model.SurveyStatusEnded {
			continue
		}
		if err := s.surveys.UpdateSurveyStatus(dbCtx, survey.ID, model.SurveyStatusEnded, now.UnixMilli()); err != nil {
			return ended, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
		s.logger.Info("survey expired", zap.String("surveyID", survey.ID), zap.Time("expireAt", survey.EndTime()))
		ended++
	}

	return ended, nil
}

// StatList returns the raw counters for every survey, newest first.
func (s *SurveyService) StatList(ctx context.Context) ([]*model.SurveyStat, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	stats, err := s.surveys.GetSurveyStatList(dbCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return stats, nil
}

// RecordReceipt counts one delivered survey message. The delivery
// collaborator reports sends through this path.
func (s *SurveyService) RecordReceipt(ctx context.Context, surveyID string) error {
	if !model.IsValidID(surveyID) {
		return fmt.Errorf("%w: malformed survey ID %q", ErrValidation, surveyID)
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := s.surveys.IncrementReceiptCount(dbCtx, surveyID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return nil
}

// Settings returns the stored admin configuration, or defaults when none
// has been saved yet.
func (s *SurveyService) Settings(ctx context.Context) (*model.Settings, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	settings, err := s.settings.GetSettings(dbCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if settings == nil {
		return &model.Settings{
			SurveyExpiry: model.SurveyExpiry{Days: model.DefaultExpiryDays},
			TeamFilter:   model.TeamFilter{FilterType: model.FilterTypeEveryone},
		}, nil
	}
	return settings, nil
}

// SettingsUpdate carries the sub-settings present in one admin save. Nil
// fields were not edited and keep their stored value.
type SettingsUpdate struct {
	EnableSurvey    *bool
	SurveyDateTime  *model.SurveyDateTime
	SurveyExpiry    *model.SurveyExpiry
	SurveyQuestions *model.SurveyQuestions
	TeamFilter      *model.TeamFilter
}

// UpdateSettings validates each provided sub-setting independently, folds
// the valid ones over the stored configuration and persists the aggregate.
// A failing sub-setting never blocks its siblings; its error is reported in
// the returned map keyed by sub-setting name.
func (s *SurveyService) UpdateSettings(ctx context.Context, update SettingsUpdate) (*model.Settings, map[string]string, error) {
	current, err := s.Settings(ctx)
	if err != nil {
		return nil, nil, err
	}

	fieldErrors := map[string]string{}
	var patches []SettingsPatch

	if update.EnableSurvey != nil {
		patches = append(patches, WithEnabled(*update.EnableSurvey))
	}

	if update.SurveyDateTime != nil {
		if update.SurveyDateTime.Timestamp <= 0 {
			fieldErrors["SurveyDateTime"] = "survey start timestamp must be set"
		} else {
			patches = append(patches, WithDateTime(*update.SurveyDateTime))
		}
	}

	if update.SurveyExpiry != nil {
		if err := update.SurveyExpiry.IsValid(); err != nil {
			fieldErrors["SurveyExpiry"] = err.Error()
		} else {
			patches = append(patches, WithExpiry(*update.SurveyExpiry))
		}
	}

	if update.SurveyQuestions != nil {
		if err := update.SurveyQuestions.IsValid(); err != nil {
			fieldErrors["SurveyQuestions"] = err.Error()
		} else {
			patches = append(patches, WithQuestions(*update.SurveyQuestions))
		}
	}

	if update.TeamFilter != nil {
		if err := update.TeamFilter.IsValid(); err != nil {
			fieldErrors["TeamFilter"] = err.Error()
		} else {
			patches = append(patches, WithTeamFilter(*update.TeamFilter))
		}
	}

	merged := MergeSettings(*current, patches...)

	if len(patches) > 0 {
		dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
		defer cancel()

		if err := s.settings.SaveSettings(dbCtx, &merged); err != nil {
			return nil, fieldErrors, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}

		s.logger.Info("admin settings saved",
			zap.Int("appliedSubSettings", len(patches)),
			zap.Int("rejectedSubSettings", len(fieldErrors)))
	}

	return &merged, fieldErrors, nil
}
