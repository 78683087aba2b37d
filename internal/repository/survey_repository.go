package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/feedbacklab/survey-server/internal/model"
)

type SurveyRepository struct {
	db *sql.DB
}

func NewSurveyRepository(db *sql.DB) *SurveyRepository {
	return &SurveyRepository{db: db}
}

const surveyColumns = `
	id, create_at, update_at, start_at, expiry_days,
	questions, filter_type, filtered_team_ids, status
`

// SaveSurvey inserts a new survey row with all counters at zero.
func (r *SurveyRepository) SaveSurvey(ctx context.Context, survey *model.Survey) error {
	questionsJSON, teamIDsJSON, err := marshalSurveyFields(survey)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO surveys (
			id, create_at, update_at, start_at, expiry_days,
			questions, filter_type, filtered_team_ids, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		survey.ID,
		survey.CreateAt,
		survey.UpdateAt,
		survey.StartAt,
		survey.ExpiryDays,
		questionsJSON,
		survey.FilterType,
		teamIDsJSON,
		survey.Status,
	)
	if err != nil {
		return fmt.Errorf("insert SaveSurvey: %w", err)
	}

	return nil
}

// GetSurvey fetches one survey by ID, or nil when it does not exist.
func (r *SurveyRepository) GetSurvey(ctx context.Context, surveyID string) (*model.Survey, error) {
	const query = `
		SELECT ` + surveyColumns + `
		FROM surveys
		WHERE id = ?
	`

	row := r.db.QueryRowContext(ctx, query, surveyID)
	survey, err := scanSurvey(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query GetSurvey: %w", err)
	}

	return survey, nil
}

// GetSurveyByStartTime fetches the survey activated for the given scheduled
// start, or nil when that schedule has never run. Activation keys surveys by
// their schedule timestamp, so at most one row matches.
func (r *SurveyRepository) GetSurveyByStartTime(ctx context.Context, startAt int64) (*model.Survey, error) {
	const query = `
		SELECT ` + surveyColumns + `
		FROM surveys
		WHERE start_at = ?
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, startAt)
	survey, err := scanSurvey(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query GetSurveyByStartTime: %w", err)
	}

	return survey, nil
}

// GetSurveysByStatus fetches every survey in the given status, oldest first.
func (r *SurveyRepository) GetSurveysByStatus(ctx context.Context, status string) ([]*model.Survey, error) {
	const query = `
		SELECT ` + surveyColumns + `
		FROM surveys
		WHERE status = ?
		ORDER BY start_at
	`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("query GetSurveysByStatus: %w", err)
	}
	defer rows.Close()

	var surveys []*model.Survey
	for rows.Next() {
		survey, err := scanSurvey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan GetSurveysByStatus row: %w", err)
		}
		surveys = append(surveys, survey)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetSurveysByStatus: %w", err)
	}
	return surveys, nil
}

// UpdateSurveyStatus moves a survey to the given status.
func (r *SurveyRepository) UpdateSurveyStatus(ctx context.Context, surveyID, status string, updateAt int64) error {
	const query = `
		UPDATE surveys
		SET status = ?, update_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, status, updateAt, surveyID)
	if err != nil {
		return fmt.Errorf("exec UpdateSurveyStatus: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected UpdateSurveyStatus: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("UpdateSurveyStatus: survey %s not found", surveyID)
	}

	return nil
}

// GetSurveyStatList returns every survey with its raw counters, newest
// start first.
func (r *SurveyRepository) GetSurveyStatList(ctx context.Context) ([]*model.SurveyStat, error) {
	const query = `
		SELECT ` + surveyColumns + `,
			receipt_count, response_count,
			promoter_count, passive_count, detractor_count
		FROM surveys
		ORDER BY start_at DESC, status DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query GetSurveyStatList: %w", err)
	}
	defer rows.Close()

	var stats []*model.SurveyStat
	for rows.Next() {
		var stat model.SurveyStat
		var questionsJSON, teamIDsJSON string

		err := rows.Scan(
			&stat.ID,
			&stat.CreateAt,
			&stat.UpdateAt,
			&stat.StartAt,
			&stat.ExpiryDays,
			&questionsJSON,
			&stat.FilterType,
			&teamIDsJSON,
			&stat.Status,
			&stat.ReceiptCount,
			&stat.ResponseCount,
			&stat.PromoterCount,
			&stat.PassiveCount,
			&stat.DetractorCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan GetSurveyStatList row: %w", err)
		}

		if err := unmarshalSurveyFields(&stat.Survey, questionsJSON, teamIDsJSON); err != nil {
			return nil, err
		}
		stats = append(stats, &stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetSurveyStatList: %w", err)
	}
	return stats, nil
}

// IncrementReceiptCount counts one delivered survey message.
func (r *SurveyRepository) IncrementReceiptCount(ctx context.Context, surveyID string) error {
	const query = `
		UPDATE surveys
		SET receipt_count = receipt_count + 1
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, surveyID)
	if err != nil {
		return fmt.Errorf("exec IncrementReceiptCount: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected IncrementReceiptCount: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("IncrementReceiptCount: survey %s not found", surveyID)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSurvey(row rowScanner) (*model.Survey, error) {
	var survey model.Survey
	var questionsJSON, teamIDsJSON string

	err := row.Scan(
		&survey.ID,
		&survey.CreateAt,
		&survey.UpdateAt,
		&survey.StartAt,
		&survey.ExpiryDays,
		&questionsJSON,
		&survey.FilterType,
		&teamIDsJSON,
		&survey.Status,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalSurveyFields(&survey, questionsJSON, teamIDsJSON); err != nil {
		return nil, err
	}
	return &survey, nil
}

func marshalSurveyFields(survey *model.Survey) (questionsJSON, teamIDsJSON []byte, err error) {
	questionsJSON, err = json.Marshal(survey.Questions)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal survey questions: %w", err)
	}

	teamIDs := survey.FilteredTeamIDs
	if teamIDs == nil {
		teamIDs = []string{}
	}
	teamIDsJSON, err = json.Marshal(teamIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal filtered team IDs: %w", err)
	}

	return questionsJSON, teamIDsJSON, nil
}

func unmarshalSurveyFields(survey *model.Survey, questionsJSON, teamIDsJSON string) error {
	if err := json.Unmarshal([]byte(questionsJSON), &survey.Questions); err != nil {
		return fmt.Errorf("unmarshal survey questions: %w", err)
	}
	if err := json.Unmarshal([]byte(teamIDsJSON), &survey.FilteredTeamIDs); err != nil {
		return fmt.Errorf("unmarshal filtered team IDs: %w", err)
	}
	return nil
}
