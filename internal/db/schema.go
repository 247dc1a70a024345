package db

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'employee',
		department TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS auth_sessions (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		session_token_hash TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ,
		ip_address TEXT,
		user_agent TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_auth_sessions_user_id ON auth_sessions(user_id)`,
	`CREATE TABLE IF NOT EXISTS auth_guard_states (
		id BIGSERIAL PRIMARY KEY,
		purpose TEXT NOT NULL,
		subject_key TEXT NOT NULL,
		failed_count INT NOT NULL DEFAULT 0,
		locked_until TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (purpose, subject_key)
	)`,
	`CREATE TABLE IF NOT EXISTS modules (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		module_type TEXT NOT NULL,
		content_url TEXT,
		drive_file_id TEXT,
		duration_minutes INT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_by BIGINT REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS quizzes (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		quiz_type TEXT NOT NULL DEFAULT 'quiz',
		module_id BIGINT REFERENCES modules(id),
		passing_score INT NOT NULL DEFAULT 70,
		time_limit_minutes INT,
		total_questions INT NOT NULL DEFAULT 0,
		import_ref TEXT,
		source_file_id TEXT,
		source_file_name TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_by BIGINT REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quizzes_module_id ON quizzes(module_id)`,
	`CREATE TABLE IF NOT EXISTS quiz_questions (
		id BIGSERIAL PRIMARY KEY,
		quiz_id BIGINT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
		module_id BIGINT REFERENCES modules(id),
		order_index INT NOT NULL,
		question_type TEXT NOT NULL,
		question_text TEXT NOT NULL,
		options JSONB,
		correct_answer TEXT,
		points INT NOT NULL DEFAULT 10,
		explanation TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quiz_questions_quiz_id ON quiz_questions(quiz_id)`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id BIGSERIAL PRIMARY KEY,
		actor_id BIGINT NOT NULL,
		action TEXT NOT NULL,
		entity TEXT NOT NULL,
		entity_id BIGINT NOT NULL,
		detail TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_logs_entity ON activity_logs(entity, entity_id)`,
}

// Migrate applies the schema. Statements are idempotent so the call is
// safe on every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
