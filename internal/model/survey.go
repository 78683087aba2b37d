package model

import (
	"errors"
	"fmt"
	"time"
)

const (
	SurveyStatusScheduled  = "scheduled"
	SurveyStatusInProgress = "in_progress"
	SurveyStatusEnded      = "ended"

	QuestionTypeLinearScale = "linear_scale"
	QuestionTypeText        = "text"

	millisPerDay = int64(24 * time.Hour / time.Millisecond)
)

var SurveyStatuses = []string{SurveyStatusScheduled, SurveyStatusInProgress, SurveyStatusEnded}

type Question struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Type      string `json:"type"`
	System    bool   `json:"system"`
	Mandatory bool   `json:"mandatory"`
}

// Survey is an immutable snapshot of the admin configuration taken when the
// survey is activated. Counters live on the same row and are updated in SQL.
type Survey struct {
	ID              string     `json:"id"`
	CreateAt        int64      `json:"createAt"`
	UpdateAt        int64      `json:"updateAt"`
	StartAt         int64      `json:"startAt"`
	ExpiryDays      int        `json:"expiryDays"`
	Questions       []Question `json:"questions"`
	FilterType      string     `json:"filterType"`
	FilteredTeamIDs []string   `json:"filteredTeamIDs"`
	Status          string     `json:"status"`
}

func (s *Survey) SetDefaults() {
	if s.ID == "" {
		s.ID = NewID()
	}

	now := NowMillis()
	if s.CreateAt == 0 {
		s.CreateAt = now
	}
	if s.UpdateAt == 0 {
		s.UpdateAt = now
	}
	if s.Status == "" {
		s.Status = SurveyStatusScheduled
	}
}

func (s *Survey) IsValid() error {
	if !IsValidID(s.ID) {
		return fmt.Errorf("survey has malformed ID %q", s.ID)
	}

	if s.StartAt <= 0 {
		return errors.New("survey start time cannot be empty")
	}

	if s.ExpiryDays < 1 {
		return errors.New("survey expiry must be at least one day")
	}

	if len(s.Questions) == 0 {
		return errors.New("survey must have at least one question")
	}

	if _, err := s.SystemRatingQuestionID(); err != nil {
		return err
	}

	return nil
}

// ExpireAt is always StartAt plus the configured number of whole days.
func (s *Survey) ExpireAt() int64 {
	return s.StartAt + int64(s.ExpiryDays)*millisPerDay
}

func (s *Survey) StartTime() time.Time {
	return time.UnixMilli(s.StartAt).UTC()
}

func (s *Survey) EndTime() time.Time {
	return time.UnixMilli(s.ExpireAt()).UTC()
}

// SystemRatingQuestionID returns the ID of the canonical rating question,
// the single system-generated linear scale question every survey carries.
func (s *Survey) SystemRatingQuestionID() (string, error) {
	for _, question := range s.Questions {
		if question.System && question.Type == QuestionTypeLinearScale {
			return question.ID, nil
		}
	}

	return "", errors.New("survey has no system rating question")
}

// NowMillis is the clock used for all persisted timestamps.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// FormatMillis renders a persisted timestamp as RFC 3339 UTC.
func FormatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
