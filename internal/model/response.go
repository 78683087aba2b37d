package model

import (
	"errors"
	"fmt"
)

const (
	ResponseTypePartial  = "partial"
	ResponseTypeComplete = "complete"
)

// SurveyResponse holds one user's answers for one survey, keyed by question
// ID. At most one row exists per (survey, user) pair; repeated submissions
// merge into it until the response is marked complete.
type SurveyResponse struct {
	ID           string            `json:"id"`
	UserID       string            `json:"userID"`
	SurveyID     string            `json:"surveyID"`
	Answers      map[string]string `json:"answers"`
	CreateAt     int64             `json:"createAt"`
	UpdateAt     int64             `json:"updateAt"`
	ResponseType string            `json:"responseType"`
}

func (sr *SurveyResponse) SetDefaults() {
	if sr.ID == "" {
		sr.ID = NewID()
	}

	now := NowMillis()
	if sr.CreateAt == 0 {
		sr.CreateAt = now
	}
	if sr.UpdateAt == 0 {
		sr.UpdateAt = now
	}
	if sr.ResponseType == "" {
		sr.ResponseType = ResponseTypePartial
	}
}

func (sr *SurveyResponse) IsValid() error {
	if !IsValidID(sr.ID) {
		return fmt.Errorf("survey response has malformed ID %q", sr.ID)
	}

	if sr.UserID == "" {
		return errors.New("survey response user ID cannot be empty")
	}

	if !IsValidID(sr.SurveyID) {
		return fmt.Errorf("survey response has malformed survey ID %q", sr.SurveyID)
	}

	if len(sr.Answers) == 0 {
		return errors.New("survey response answers cannot be empty")
	}

	if sr.ResponseType != ResponseTypePartial && sr.ResponseType != ResponseTypeComplete {
		return fmt.Errorf("survey response has unknown type %q", sr.ResponseType)
	}

	return nil
}

// ToReportRow flattens the response into a CSV row: user, submission time,
// then one column per survey question in question order.
func (sr *SurveyResponse) ToReportRow(questions []Question) []string {
	row := []string{sr.UserID, sr.SubmittedTime()}
	for _, question := range questions {
		row = append(row, sr.Answers[question.ID])
	}
	return row
}

func (sr *SurveyResponse) SubmittedTime() string {
	return FormatMillis(sr.UpdateAt)
}
