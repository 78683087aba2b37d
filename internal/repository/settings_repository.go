package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/feedbacklab/survey-server/internal/model"
)

// SettingsRepository stores the combined admin settings as a single JSON
// document. There is exactly one row.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSettings returns the stored settings blob, or nil when never saved.
func (r *SettingsRepository) GetSettings(ctx context.Context) (*model.Settings, error) {
	const query = `
		SELECT blob
		FROM admin_settings
		WHERE id = 1
	`

	var blob string
	err := r.db.QueryRowContext(ctx, query).Scan(&blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query GetSettings: %w", err)
	}

	var settings model.Settings
	if err := json.Unmarshal([]byte(blob), &settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings blob: %w", err)
	}
	return &settings, nil
}

// SaveSettings replaces the stored settings blob.
func (r *SettingsRepository) SaveSettings(ctx context.Context, settings *model.Settings) error {
	blob, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings blob: %w", err)
	}

	const query = `
		INSERT INTO admin_settings (id, blob, update_at)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			blob = excluded.blob,
			update_at = excluded.update_at
	`

	if _, err := r.db.ExecContext(ctx, query, blob, model.NowMillis()); err != nil {
		return fmt.Errorf("exec SaveSettings: %w", err)
	}
	return nil
}
