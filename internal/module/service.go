package module

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrModuleNotFound = errors.New("module not found")
)

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

type Module struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     *string   `json:"description,omitempty"`
	ModuleType      string    `json:"module_type"`
	ContentURL      *string   `json:"content_url,omitempty"`
	DriveFileID     *string   `json:"drive_file_id,omitempty"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedBy       *int64    `json:"created_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CreateModuleInput struct {
	Title           string
	Description     string
	ModuleType      string
	ContentURL      string
	DriveFileID     string
	DurationMinutes *int
	CreatedBy       int64
}

type UpdateModuleInput struct {
	Title           string
	Description     string
	ModuleType      string
	ContentURL      string
	DriveFileID     string
	DurationMinutes *int
}

func normalizeModuleType(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "document", "dokumen":
		return "document"
	case "video":
		return "video"
	case "animation", "animasi":
		return "animation"
	default:
		return ""
	}
}

func (s *Service) CreateModule(ctx context.Context, in CreateModuleInput) (*Module, error) {
	title := strings.TrimSpace(in.Title)
	moduleType := normalizeModuleType(in.ModuleType)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if moduleType == "" {
		return nil, fmt.Errorf("%w: module_type must be document, video, or animation", ErrInvalidInput)
	}
	if in.DurationMinutes != nil && *in.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration_minutes must be positive", ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO modules (
			title, description, module_type, content_url, drive_file_id,
			duration_minutes, is_active, created_by, created_at, updated_at
		) VALUES (
			$1, NULLIF($2,''), $3, NULLIF($4,''), NULLIF($5,''),
			$6, TRUE, NULLIF($7, 0), now(), now()
		)
		RETURNING id, title, description, module_type, content_url, drive_file_id,
			duration_minutes, is_active, created_by, created_at, updated_at
	`, title, strings.TrimSpace(in.Description), moduleType, strings.TrimSpace(in.ContentURL),
		strings.TrimSpace(in.DriveFileID), nullIntPtr(in.DurationMinutes), in.CreatedBy)

	out, err := scanModule(row)
	if err != nil {
		return nil, fmt.Errorf("create module: %w", err)
	}
	return out, nil
}

func (s *Service) UpdateModule(ctx context.Context, moduleID int64, in UpdateModuleInput) (*Module, error) {
	title := strings.TrimSpace(in.Title)
	moduleType := normalizeModuleType(in.ModuleType)
	if moduleID <= 0 || title == "" || moduleType == "" {
		return nil, fmt.Errorf("%w: id, title, and module_type are required", ErrInvalidInput)
	}
	if in.DurationMinutes != nil && *in.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration_minutes must be positive", ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE modules
		SET title = $2,
			description = NULLIF($3,''),
			module_type = $4,
			content_url = NULLIF($5,''),
			drive_file_id = NULLIF($6,''),
			duration_minutes = $7,
			updated_at = now()
		WHERE id = $1 AND is_active = TRUE
		RETURNING id, title, description, module_type, content_url, drive_file_id,
			duration_minutes, is_active, created_by, created_at, updated_at
	`, moduleID, title, strings.TrimSpace(in.Description), moduleType,
		strings.TrimSpace(in.ContentURL), strings.TrimSpace(in.DriveFileID),
		nullIntPtr(in.DurationMinutes))

	out, err := scanModule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrModuleNotFound
		}
		return nil, fmt.Errorf("update module: %w", err)
	}
	return out, nil
}

func (s *Service) ListModules(ctx context.Context, moduleType string, includeInactive bool) ([]Module, error) {
	moduleType = strings.ToLower(strings.TrimSpace(moduleType))
	if moduleType != "" && normalizeModuleType(moduleType) == "" {
		return nil, fmt.Errorf("%w: invalid module_type filter", ErrInvalidInput)
	}

	query := `
		SELECT id, title, description, module_type, content_url, drive_file_id,
			duration_minutes, is_active, created_by, created_at, updated_at
		FROM modules
		WHERE ($1 = '' OR module_type = $1)
	`
	if !includeInactive {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, moduleType)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()

	items := make([]Module, 0)
	for rows.Next() {
		item, err := scanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modules: %w", err)
	}
	return items, nil
}

func (s *Service) GetModule(ctx context.Context, moduleID int64) (*Module, error) {
	if moduleID <= 0 {
		return nil, ErrInvalidInput
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, module_type, content_url, drive_file_id,
			duration_minutes, is_active, created_by, created_at, updated_at
		FROM modules
		WHERE id = $1 AND is_active = TRUE
	`, moduleID)

	out, err := scanModule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrModuleNotFound
		}
		return nil, fmt.Errorf("load module: %w", err)
	}
	return out, nil
}

func (s *Service) DeleteModule(ctx context.Context, moduleID int64) error {
	if moduleID <= 0 {
		return ErrInvalidInput
	}
	var deletedID int64
	if err := s.db.QueryRowContext(ctx, `
		UPDATE modules
		SET is_active = FALSE,
			updated_at = now()
		WHERE id = $1 AND is_active = TRUE
		RETURNING id
	`, moduleID).Scan(&deletedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrModuleNotFound
		}
		return fmt.Errorf("delete module: %w", err)
	}
	return nil
}

func scanModule(scanner interface{ Scan(dest ...any) error }) (*Module, error) {
	var out Module
	var description sql.NullString
	var contentURL sql.NullString
	var driveFileID sql.NullString
	var duration sql.NullInt64
	var createdBy sql.NullInt64
	if err := scanner.Scan(
		&out.ID,
		&out.Title,
		&description,
		&out.ModuleType,
		&contentURL,
		&driveFileID,
		&duration,
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
	if contentURL.Valid {
		out.ContentURL = &contentURL.String
	}
	if driveFileID.Valid {
		out.DriveFileID = &driveFileID.String
	}
	if duration.Valid {
		v := int(duration.Int64)
		out.DurationMinutes = &v
	}
	if createdBy.Valid {
		out.CreatedBy = &createdBy.Int64
	}
	return &out, nil
}

func nullIntPtr(v *int) any {
	if v == nil || *v <= 0 {
		return nil
	}
	return *v
}
