package repository

// Schema is the idempotent DDL for the survey store. Counters live on the
// survey row so rating group bookkeeping is a single UPDATE.
const Schema = `
CREATE TABLE IF NOT EXISTS surveys (
	id TEXT PRIMARY KEY,
	create_at INTEGER NOT NULL,
	update_at INTEGER NOT NULL,
	start_at INTEGER NOT NULL,
	expiry_days INTEGER NOT NULL,
	questions TEXT NOT NULL,
	filter_type TEXT NOT NULL DEFAULT '',
	filtered_team_ids TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	receipt_count INTEGER NOT NULL DEFAULT 0,
	response_count INTEGER NOT NULL DEFAULT 0,
	promoter_count INTEGER NOT NULL DEFAULT 0,
	passive_count INTEGER NOT NULL DEFAULT 0,
	detractor_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_surveys_status ON surveys (status);

CREATE TABLE IF NOT EXISTS survey_responses (
	id TEXT PRIMARY KEY,
	survey_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	answers TEXT NOT NULL,
	response_type TEXT NOT NULL,
	create_at INTEGER NOT NULL,
	update_at INTEGER NOT NULL,
	UNIQUE (survey_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_survey_responses_survey_id ON survey_responses (survey_id, id);

CREATE TABLE IF NOT EXISTS admin_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	blob TEXT NOT NULL,
	update_at INTEGER NOT NULL
);
`
