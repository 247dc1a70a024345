package activity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidInput = errors.New("invalid input")

// Service appends to and reads the activity log. Entries are written by
// handlers after successful mutations; a failed write never fails the
// operation that produced it.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

type Entry struct {
	ID        int64     `json:"id"`
	ActorID   int64     `json:"actor_id"`
	ActorName *string   `json:"actor_name,omitempty"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  int64     `json:"entity_id"`
	Detail    *string   `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Service) Record(ctx context.Context, actorID int64, action, entity string, entityID int64, detail string) error {
	action = strings.TrimSpace(action)
	entity = strings.TrimSpace(entity)
	if actorID <= 0 || action == "" || entity == "" {
		return ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (actor_id, action, entity, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), now())
	`, actorID, action, entity, entityID, strings.TrimSpace(detail))
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, entity string, actorID int64, limit, offset int) ([]Entry, error) {
	entity = strings.TrimSpace(entity)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.actor_id, u.full_name, a.action, a.entity, a.entity_id, a.detail, a.created_at
		FROM activity_logs a
		LEFT JOIN users u ON u.id = a.actor_id
		WHERE ($1 = '' OR a.entity = $1)
		  AND ($2 = 0 OR a.actor_id = $2)
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $3
		OFFSET $4
	`, entity, actorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var actorName sql.NullString
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.ActorID, &actorName, &e.Action, &e.Entity, &e.EntityID, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if actorName.Valid {
			e.ActorName = &actorName.String
		}
		if detail.Valid {
			e.Detail = &detail.String
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return out, nil
}
