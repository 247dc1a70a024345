package quiz

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrModuleNotFound   = errors.New("module not found")
	ErrValidationFailed = errors.New("import validation failed")
)

// FileFetcher is the slice of the Drive collaborator the importer needs:
// fetch raw spreadsheet bytes by file id. Retries, if any, live behind it.
type FileFetcher interface {
	Download(ctx context.Context, fileID string) ([]byte, string, error)
}

type Service struct {
	db    *sql.DB
	files FileFetcher
}

func NewService(db *sql.DB, files FileFetcher) *Service {
	return &Service{db: db, files: files}
}

type Quiz struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      *string   `json:"description,omitempty"`
	QuizType         string    `json:"quiz_type"`
	ModuleID         *int64    `json:"module_id,omitempty"`
	PassingScore     int       `json:"passing_score"`
	TimeLimitMinutes *int      `json:"time_limit_minutes,omitempty"`
	SourceFileID     *string   `json:"source_file_id,omitempty"`
	SourceFileName   *string   `json:"source_file_name,omitempty"`
	ImportRef        string    `json:"import_ref"`
	TotalQuestions   int       `json:"total_questions"`
	IsActive         bool      `json:"is_active"`
	CreatedBy        *int64    `json:"created_by,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Question struct {
	ID            int64             `json:"id"`
	QuizID        int64             `json:"quiz_id"`
	ModuleID      *int64            `json:"module_id,omitempty"`
	QuestionText  string            `json:"question_text"`
	QuestionType  QuestionType      `json:"question_type"`
	Options       map[string]string `json:"options,omitempty"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   *string           `json:"explanation,omitempty"`
	Points        int               `json:"points"`
	OrderIndex    int               `json:"order_index"`
}

type QuizDetail struct {
	Quiz      Quiz       `json:"quiz"`
	Questions []Question `json:"questions"`
}

// ImportPreview is what the operator reviews before committing: the
// candidates (editable), the row-level parse errors, and the validation
// report over the parsed batch.
type ImportPreview struct {
	Candidates  []Candidate       `json:"candidates"`
	ParseErrors []string          `json:"parse_errors"`
	Report      *ValidationReport `json:"report"`
}

type ImportCommitInput struct {
	Title            string
	Description      string
	QuizType         string
	ModuleID         *int64
	PassingScore     int
	TimeLimitMinutes *int
	SourceFileID     string
	SourceFileName   string
	Candidates       []Candidate
	CreatedBy        int64
}

// PreviewImport parses and validates a spreadsheet without touching the
// store.
func (s *Service) PreviewImport(ctx context.Context, r io.Reader) (*ImportPreview, error) {
	_ = ctx
	result, err := ParseWorkbook(r)
	if err != nil {
		return nil, err
	}
	return &ImportPreview{
		Candidates:  result.Candidates,
		ParseErrors: result.Errors,
		Report:      Validate(result.Candidates),
	}, nil
}

// ImportFromDrive fetches the spreadsheet bytes from the Drive collaborator
// and previews them. Returns the Drive file name for the commit step.
func (s *Service) ImportFromDrive(ctx context.Context, fileID string) (*ImportPreview, string, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, "", fmt.Errorf("%w: file_id is required", ErrInvalidInput)
	}
	if s.files == nil {
		return nil, "", errors.New("drive client is not configured")
	}
	data, name, err := s.files.Download(ctx, fileID)
	if err != nil {
		return nil, "", fmt.Errorf("download drive file: %w", err)
	}
	preview, err := s.PreviewImport(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	return preview, name, nil
}

func normalizeQuizType(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "", "quiz":
		return "quiz"
	case "certification", "sertifikasi":
		return "certification"
	default:
		return ""
	}
}

// CreateQuizFromImport persists an accepted candidate batch: one quiz
// header plus one question row per candidate, inside a single transaction
// so a failed question insert never leaves an orphaned quiz.
func (s *Service) CreateQuizFromImport(ctx context.Context, in ImportCommitInput) (*Quiz, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	quizType := normalizeQuizType(in.QuizType)

	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if quizType == "" {
		return nil, fmt.Errorf("%w: quiz_type must be quiz or certification", ErrInvalidInput)
	}
	if len(in.Candidates) == 0 {
		return nil, fmt.Errorf("%w: at least one question is required", ErrInvalidInput)
	}
	if in.PassingScore <= 0 {
		in.PassingScore = 70
	}
	if in.PassingScore > 100 {
		return nil, fmt.Errorf("%w: passing_score must be between 1 and 100", ErrInvalidInput)
	}
	if in.TimeLimitMinutes != nil && *in.TimeLimitMinutes <= 0 {
		return nil, fmt.Errorf("%w: time_limit_minutes must be positive", ErrInvalidInput)
	}

	report := Validate(in.Candidates)
	if !report.IsValid {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(report.Errors, "; "))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if in.ModuleID != nil {
		var moduleExists bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM modules WHERE id = $1 AND is_active = TRUE)
		`, *in.ModuleID).Scan(&moduleExists); err != nil {
			return nil, fmt.Errorf("check module: %w", err)
		}
		if !moduleExists {
			return nil, ErrModuleNotFound
		}
	}

	importRef := uuid.NewString()
	row := tx.QueryRowContext(ctx, `
		INSERT INTO quizzes (
			title, description, quiz_type, module_id, passing_score, time_limit_minutes,
			source_file_id, source_file_name, import_ref, total_questions,
			is_active, created_by, created_at, updated_at
		) VALUES (
			$1, NULLIF($2,''), $3, $4, $5, $6,
			NULLIF($7,''), NULLIF($8,''), $9, $10,
			TRUE, NULLIF($11, 0), now(), now()
		)
		RETURNING id, title, description, quiz_type, module_id, passing_score, time_limit_minutes,
			source_file_id, source_file_name, import_ref, total_questions, is_active, created_by,
			created_at, updated_at
	`, in.Title, in.Description, quizType, nullInt64Ptr(in.ModuleID), in.PassingScore,
		nullIntPtr(in.TimeLimitMinutes), in.SourceFileID, in.SourceFileName, importRef,
		len(in.Candidates), in.CreatedBy)

	out, err := scanQuiz(row)
	if err != nil {
		return nil, fmt.Errorf("insert quiz: %w", err)
	}

	for i, c := range in.Candidates {
		var optionsJSON any
		if c.QuestionType == TypeMultipleChoice {
			raw, err := json.Marshal(c.Options)
			if err != nil {
				return nil, fmt.Errorf("marshal options: %w", err)
			}
			optionsJSON = string(raw)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO quiz_questions (
				quiz_id, module_id, question_text, question_type, options,
				correct_answer, explanation, points, order_index, is_active, created_at
			) VALUES (
				$1, $2, $3, $4, $5::jsonb,
				$6, $7, $8, $9, TRUE, now()
			)
		`, out.ID, nullInt64Ptr(in.ModuleID), c.QuestionText, string(c.QuestionType),
			optionsJSON, c.CorrectAnswer, nullStringPtr(c.Explanation), c.Points, i+1); err != nil {
			return nil, fmt.Errorf("insert question %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return out, nil
}

func (s *Service) ListQuizzes(ctx context.Context, includeInactive bool) ([]Quiz, error) {
	query := `
		SELECT id, title, description, quiz_type, module_id, passing_score, time_limit_minutes,
			source_file_id, source_file_name, import_ref, total_questions, is_active, created_by,
			created_at, updated_at
		FROM quizzes
	`
	if !includeInactive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query quizzes: %w", err)
	}
	defer rows.Close()

	items := make([]Quiz, 0)
	for rows.Next() {
		item, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quizzes: %w", err)
	}
	return items, nil
}

func (s *Service) GetQuiz(ctx context.Context, quizID int64) (*QuizDetail, error) {
	if quizID <= 0 {
		return nil, ErrInvalidInput
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, quiz_type, module_id, passing_score, time_limit_minutes,
			source_file_id, source_file_name, import_ref, total_questions, is_active, created_by,
			created_at, updated_at
		FROM quizzes
		WHERE id = $1 AND is_active = TRUE
	`, quizID)
	q, err := scanQuiz(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("load quiz: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, quiz_id, module_id, question_text, question_type, options,
			correct_answer, explanation, points, order_index
		FROM quiz_questions
		WHERE quiz_id = $1 AND is_active = TRUE
		ORDER BY order_index ASC, id ASC
	`, quizID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	questions := make([]Question, 0, q.TotalQuestions)
	for rows.Next() {
		var item Question
		var moduleID sql.NullInt64
		var options []byte
		var explanation sql.NullString
		if err := rows.Scan(&item.ID, &item.QuizID, &moduleID, &item.QuestionText,
			&item.QuestionType, &options, &item.CorrectAnswer, &explanation,
			&item.Points, &item.OrderIndex); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if moduleID.Valid {
			item.ModuleID = &moduleID.Int64
		}
		if explanation.Valid {
			item.Explanation = &explanation.String
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &item.Options); err != nil {
				return nil, fmt.Errorf("decode options: %w", err)
			}
		}
		questions = append(questions, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}

	return &QuizDetail{Quiz: *q, Questions: questions}, nil
}

func (s *Service) DeleteQuiz(ctx context.Context, quizID int64) error {
	if quizID <= 0 {
		return ErrInvalidInput
	}
	var deletedID int64
	if err := s.db.QueryRowContext(ctx, `
		UPDATE quizzes
		SET is_active = FALSE,
			updated_at = now()
		WHERE id = $1 AND is_active = TRUE
		RETURNING id
	`, quizID).Scan(&deletedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("delete quiz: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE quiz_questions
		SET is_active = FALSE
		WHERE quiz_id = $1
	`, quizID)
	if err != nil {
		return fmt.Errorf("deactivate questions: %w", err)
	}
	return nil
}

func scanQuiz(scanner interface{ Scan(dest ...any) error }) (*Quiz, error) {
	var out Quiz
	var description sql.NullString
	var moduleID sql.NullInt64
	var timeLimit sql.NullInt64
	var sourceFileID sql.NullString
	var sourceFileName sql.NullString
	var createdBy sql.NullInt64
	if err := scanner.Scan(
		&out.ID,
		&out.Title,
		&description,
		&out.QuizType,
		&moduleID,
		&out.PassingScore,
		&timeLimit,
		&sourceFileID,
		&sourceFileName,
		&out.ImportRef,
		&out.TotalQuestions,
		&out.IsActive,
		&createdBy,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if description.Valid {
		out.Description = &description.String
	}
	if moduleID.Valid {
		out.ModuleID = &moduleID.Int64
	}
	if timeLimit.Valid {
		v := int(timeLimit.Int64)
		out.TimeLimitMinutes = &v
	}
	if sourceFileID.Valid {
		out.SourceFileID = &sourceFileID.String
	}
	if sourceFileName.Valid {
		out.SourceFileName = &sourceFileName.String
	}
	if createdBy.Valid {
		out.CreatedBy = &createdBy.Int64
	}
	return &out, nil
}

func nullStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return s
}

func nullInt64Ptr(v *int64) any {
	if v == nil || *v <= 0 {
		return nil
	}
	return *v
}

func nullIntPtr(v *int) any {
	if v == nil || *v <= 0 {
		return nil
	}
	return *v
}
