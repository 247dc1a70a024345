package db

import (
	"strings"
	"testing"
)

// The services build their SQL by hand, so the startup schema and the
// statements they issue can only drift apart silently. This pins the column
// set each write path depends on to the CREATE TABLE that provides it.
func TestSchemaCarriesServiceColumns(t *testing.T) {
	cases := []struct {
		table   string
		columns []string
	}{
		{
			table: "users",
			columns: []string{
				"username", "email", "password_hash", "full_name", "role",
				"department", "is_active", "last_login_at", "created_at", "updated_at",
			},
		},
		{
			table: "auth_sessions",
			columns: []string{
				"user_id", "session_token_hash", "expires_at", "revoked_at",
				"ip_address", "user_agent", "created_at",
			},
		},
		{
			table: "auth_guard_states",
			columns: []string{
				"purpose", "subject_key", "failed_count", "locked_until",
				"created_at", "updated_at",
			},
		},
		{
			table: "modules",
			columns: []string{
				"title", "description", "module_type", "content_url", "drive_file_id",
				"duration_minutes", "is_active", "created_by", "created_at", "updated_at",
			},
		},
		{
			table: "quizzes",
			columns: []string{
				"title", "description", "quiz_type", "module_id", "passing_score",
				"time_limit_minutes", "source_file_id", "source_file_name", "import_ref",
				"total_questions", "is_active", "created_by", "created_at", "updated_at",
			},
		},
		{
			table: "quiz_questions",
			columns: []string{
				"quiz_id", "module_id", "question_text", "question_type", "options",
				"correct_answer", "explanation", "points", "order_index", "is_active",
				"created_at",
			},
		},
		{
			table: "activity_logs",
			columns: []string{
				"actor_id", "action", "entity", "entity_id", "detail", "created_at",
			},
		},
	}

	for _, tc := range cases {
		stmt := createTableStatement(t, tc.table)
		for _, col := range tc.columns {
			if !strings.Contains(stmt, col) {
				t.Errorf("table %s: missing column %s", tc.table, col)
			}
		}
	}
}

func TestQuizForeignKeysAreNullable(t *testing.T) {
	for _, tc := range []struct{ table, column string }{
		{"quizzes", "module_id"},
		{"quiz_questions", "module_id"},
	} {
		stmt := createTableStatement(t, tc.table)
		for _, line := range strings.Split(stmt, "\n") {
			if strings.Contains(line, tc.column) && strings.Contains(line, "NOT NULL") {
				t.Errorf("table %s: %s must accept NULL", tc.table, tc.column)
			}
		}
	}
}

func createTableStatement(t *testing.T, table string) string {
	t.Helper()
	prefix := "CREATE TABLE IF NOT EXISTS " + table + " "
	for _, stmt := range schemaStatements {
		if strings.HasPrefix(stmt, prefix) {
			return stmt
		}
	}
	t.Fatalf("no CREATE TABLE statement for %s", table)
	return ""
}
