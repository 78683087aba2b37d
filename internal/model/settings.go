package model

import (
	"errors"
	"fmt"
)

const (
	FilterTypeEveryone        = "everyone"
	FilterTypeIncludeSelected = "include_selected"
	FilterTypeExcludeSelected = "exclude_selected"

	DefaultExpiryDays = 30
	DefaultSurveyTime = "09:00"
)

// Settings is the combined admin configuration blob. Each sub-setting is an
// independent value with its own validation; the aggregate is produced by
// folding validated partials (service.MergeSettings), never by mutating a
// shared reference.
type Settings struct {
	EnableSurvey    bool            `json:"EnableSurvey"`
	SurveyDateTime  SurveyDateTime  `json:"SurveyDateTime"`
	SurveyExpiry    SurveyExpiry    `json:"SurveyExpiry"`
	SurveyQuestions SurveyQuestions `json:"SurveyQuestions"`
	TeamFilter      TeamFilter      `json:"TeamFilter"`
}

// SurveyDateTime stores the admin-chosen start as canonical UTC millis.
// Date and Time keep the admin's local wall-clock selection for display;
// they are a projection, never the system of record.
type SurveyDateTime struct {
	Date      string `json:"date,omitempty"`
	Time      string `json:"time,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type SurveyExpiry struct {
	Days int `json:"days"`
}

func (se SurveyExpiry) IsValid() error {
	if se.Days < 1 {
		return fmt.Errorf("survey expiry must be at least one day, got %d", se.Days)
	}
	return nil
}

type SurveyQuestions struct {
	SurveyMessageText string     `json:"surveyMessageText"`
	Questions         []Question `json:"questions"`
}

func (sq SurveyQuestions) IsValid() error {
	if len(sq.Questions) == 0 {
		return errors.New("survey must have at least one question")
	}

	systemRatingCount := 0
	for _, question := range sq.Questions {
		if question.ID == "" {
			return errors.New("survey question ID cannot be empty")
		}
		if question.Type != QuestionTypeLinearScale && question.Type != QuestionTypeText {
			return fmt.Errorf("survey question %s has unknown type %q", question.ID, question.Type)
		}
		if question.System && question.Type == QuestionTypeLinearScale {
			systemRatingCount++
		}
	}

	if systemRatingCount != 1 {
		return fmt.Errorf("survey must have exactly one system rating question, found %d", systemRatingCount)
	}

	return nil
}

type TeamFilter struct {
	FilterType      string   `json:"filterType"`
	FilteredTeamIDs []string `json:"filteredTeamIDs"`
}

func (tf TeamFilter) IsValid() error {
	switch tf.FilterType {
	case "", FilterTypeEveryone, FilterTypeIncludeSelected, FilterTypeExcludeSelected:
		return nil
	default:
		return fmt.Errorf("unknown team filter type %q", tf.FilterType)
	}
}
