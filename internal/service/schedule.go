package service

import (
	"fmt"
	"time"

	"github.com/feedbacklab/survey-server/internal/model"
)

const (
	// DateLayout is the wall-clock date format used in the settings blob.
	DateLayout = "02/01/2006"
	// TimeLayout is the time-of-day format admins pick the start time in.
	TimeLayout = "15:04"
)

// locationOrUTC resolves an IANA zone name, treating unknown or absent
// zones as UTC so the input passes through unconverted.
func locationOrUTC(zone string) *time.Location {
	if zone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ToUTC converts an admin's local date and HH:mm selection into the
// canonical UTC instant. The zone offset is resolved at the target calendar
// date, so schedules crossing a DST transition convert correctly.
func ToUTC(date, timeOfDay, zone string) (time.Time, error) {
	clock, err := time.Parse(TimeLayout, timeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed time of day %q, expected HH:mm", ErrValidation, timeOfDay)
	}

	loc := locationOrUTC(zone)
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed date %q, expected dd/MM/yyyy", ErrValidation, date)
	}

	local := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	return local.UTC(), nil
}

// ToLocal projects a UTC instant back into the admin's zone for display.
// The persisted schedule stays UTC; this is never the system of record.
func ToLocal(instant time.Time, zone string) (date, timeOfDay string) {
	local := instant.In(locationOrUTC(zone))
	return local.Format(DateLayout), local.Format(TimeLayout)
}

// ExpireAt returns the instant a survey started at start stops accepting
// responses. days must be a whole number of days, at least one.
func ExpireAt(start time.Time, days int) (time.Time, error) {
	if days < 1 {
		return time.Time{}, fmt.Errorf("%w: expiry must be at least one day, got %d", ErrValidation, days)
	}
	return start.Add(time.Duration(days) * 24 * time.Hour), nil
}

// NewSurveyDateTime validates an admin's local schedule selection and
// produces the canonical sub-setting value.
func NewSurveyDateTime(date, timeOfDay, zone string) (model.SurveyDateTime, error) {
	utc, err := ToUTC(date, timeOfDay, zone)
	if err != nil {
		return model.SurveyDateTime{}, err
	}

	return model.SurveyDateTime{
		Date:      date,
		Time:      timeOfDay,
		Timestamp: utc.UnixMilli(),
	}, nil
}

// SettingsPatch is an immutable partial-config value produced by one
// admin sub-setting.
type SettingsPatch func(*model.Settings)

func WithEnabled(enabled bool) SettingsPatch {
	return func(s *model.Settings) { s.EnableSurvey = enabled }
}

func WithDateTime(dt model.SurveyDateTime) SettingsPatch {
	return func(s *model.Settings) { s.SurveyDateTime = dt }
}

func WithExpiry(expiry model.SurveyExpiry) SettingsPatch {
	return func(s *model.Settings) { s.SurveyExpiry = expiry }
}

func WithQuestions(questions model.SurveyQuestions) SettingsPatch {
	return func(s *model.Settings) { s.SurveyQuestions = questions }
}

func WithTeamFilter(filter model.TeamFilter) SettingsPatch {
	return func(s *model.Settings) { s.TeamFilter = filter }
}

// MergeSettings folds validated partial values over a base configuration
// and returns the combined aggregate. The base is never mutated.
func MergeSettings(base model.Settings, patches ...SettingsPatch) model.Settings {
	merged := base
	for _, patch := range patches {
		patch(&merged)
	}
	return merged
}
