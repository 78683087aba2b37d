package service

import (
	"time"

	"github.com/feedbacklab/survey-server/internal/model"
)

// StatusAt derives a survey's lifecycle status from the clock. Statuses move
// only forward: scheduled, then in progress, then ended. A survey manually
// ended stays ended regardless of the clock.
func StatusAt(survey *model.Survey, now time.Time) string {
	if survey.Status == model.SurveyStatusEnded {
		return model.SurveyStatusEnded
	}

	nowMillis := now.UnixMilli()
	switch {
	case nowMillis < survey.StartAt:
		return model.SurveyStatusScheduled
	case nowMillis >= survey.ExpireAt():
		return model.SurveyStatusEnded
	default:
		return model.SurveyStatusInProgress
	}
}
