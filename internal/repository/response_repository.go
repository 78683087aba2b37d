package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/feedbacklab/survey-server/internal/model"
)

type ResponseRepository struct {
	db *sql.DB
}

func NewResponseRepository(db *sql.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

const responseColumns = `
	id, survey_id, user_id, answers, response_type, create_at, update_at
`

// GetResponse fetches the single response a user holds for a survey, or nil.
// The UNIQUE (survey_id, user_id) constraint guarantees at most one row.
func (r *ResponseRepository) GetResponse(ctx context.Context, surveyID, userID string) (*model.SurveyResponse, error) {
	const query = `
		SELECT ` + responseColumns + `
		FROM survey_responses
		WHERE survey_id = ? AND user_id = ?
	`

	row := r.db.QueryRowContext(ctx, query, surveyID, userID)
	response, err := scanResponse(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query GetResponse: %w", err)
	}

	return response, nil
}

// UpsertResponse writes the response keyed by (survey, user). A concurrent
// first write from the same user resolves through the unique constraint into
// an update of the winner's row, never a second row. The update applies only
// while the stored row is still partial and still carries priorUpdateAt (a
// negative priorUpdateAt means the caller saw no row); it returns false when
// the guard failed and nothing was written, so the caller can re-read the
// winning row instead of clobbering counters it never saw.
func (r *ResponseRepository) UpsertResponse(ctx context.Context, response *model.SurveyResponse, priorUpdateAt int64) (bool, error) {
	answersJSON, err := json.Marshal(response.Answers)
	if err != nil {
		return false, fmt.Errorf("marshal response answers: %w", err)
	}

	const query = `
		INSERT INTO survey_responses (
			id, survey_id, user_id, answers, response_type, create_at, update_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (survey_id, user_id) DO UPDATE SET
			answers = excluded.answers,
			response_type = excluded.response_type,
			update_at = excluded.update_at
		WHERE survey_responses.response_type = ?
			AND survey_responses.update_at = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		response.ID,
		response.SurveyID,
		response.UserID,
		answersJSON,
		response.ResponseType,
		response.CreateAt,
		response.UpdateAt,
		model.ResponseTypePartial,
		priorUpdateAt,
	)
	if err != nil {
		return false, fmt.Errorf("exec UpsertResponse: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected UpsertResponse: %w", err)
	}

	return affected > 0, nil
}

// GetResponsesPage returns up to limit responses with IDs after afterID,
// ordered by ID, for paginated report generation.
func (r *ResponseRepository) GetResponsesPage(ctx context.Context, surveyID, afterID string, limit int) ([]*model.SurveyResponse, error) {
	const query = `
		SELECT ` + responseColumns + `
		FROM survey_responses
		WHERE survey_id = ? AND id > ?
		ORDER BY id
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, surveyID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query GetResponsesPage: %w", err)
	}
	defer rows.Close()

	var responses []*model.SurveyResponse
	for rows.Next() {
		response, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan GetResponsesPage row: %w", err)
		}
		responses = append(responses, response)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetResponsesPage: %w", err)
	}
	return responses, nil
}

// IncrementResponseCount counts one first-time respondent.
func (r *ResponseRepository) IncrementResponseCount(ctx context.Context, surveyID string) error {
	const query = `
		UPDATE surveys
		SET response_count = response_count + 1
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, surveyID); err != nil {
		return fmt.Errorf("exec IncrementResponseCount: %w", err)
	}
	return nil
}

// UpdateRatingGroupCounts applies signed per-bucket deltas to the survey's
// promoter/passive/detractor counters in one statement.
func (r *ResponseRepository) UpdateRatingGroupCounts(ctx context.Context, surveyID string, promoter, passive, detractor int) error {
	if promoter == 0 && passive == 0 && detractor == 0 {
		return nil
	}

	const query = `
		UPDATE surveys
		SET promoter_count = promoter_count + ?,
			passive_count = passive_count + ?,
			detractor_count = detractor_count + ?
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, promoter, passive, detractor, surveyID); err != nil {
		return fmt.Errorf("exec UpdateRatingGroupCounts: %w", err)
	}
	return nil
}

func scanResponse(row rowScanner) (*model.SurveyResponse, error) {
	var response model.SurveyResponse
	var answersJSON string

	err := row.Scan(
		&response.ID,
		&response.SurveyID,
		&response.UserID,
		&answersJSON,
		&response.ResponseType,
		&response.CreateAt,
		&response.UpdateAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(answersJSON), &response.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal response answers: %w", err)
	}
	return &response, nil
}
