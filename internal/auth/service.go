package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrRateLimited        = errors.New("too many requests")
	ErrUserNotFound       = errors.New("user not found")
)

type Service struct {
	db                *sql.DB
	sessionTTL        time.Duration
	bcryptCost        int
	loginMaxFailures  int
	loginLockDuration time.Duration
}

type ServiceConfig struct {
	SessionTTL        time.Duration
	BcryptCost        int
	LoginMaxFailures  int
	LoginLockDuration time.Duration
}

type User struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Email    *string `json:"email,omitempty"`
	FullName string  `json:"full_name"`
	Role     string  `json:"role"`
}

type AdminUserRecord struct {
	ID         int64      `json:"id"`
	Username   string     `json:"username"`
	Email      *string    `json:"email,omitempty"`
	FullName   string     `json:"full_name"`
	Role       string     `json:"role"`
	Department *string    `json:"department,omitempty"`
	IsActive   bool       `json:"is_active"`
	LastLogin  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type AdminDashboardStats struct {
	AdminCount    int64 `json:"admin_count"`
	ManagerCount  int64 `json:"manager_count"`
	TrainerCount  int64 `json:"trainer_count"`
	EmployeeCount int64 `json:"employee_count"`
	ModuleCount   int64 `json:"module_count"`
	QuizCount     int64 `json:"quiz_count"`
}

type AdminCreateUserInput struct {
	Username   string
	Email      string
	Password   string
	FullName   string
	Role       string
	Department string
}

type AdminUpdateUserInput struct {
	FullName   string
	Email      string
	Role       string
	Password   string
	Department string
}

func NewService(db *sql.DB, cfg ServiceConfig) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.LoginMaxFailures <= 0 {
		cfg.LoginMaxFailures = 5
	}
	if cfg.LoginLockDuration <= 0 {
		cfg.LoginLockDuration = 15 * time.Minute
	}

	return &Service{
		db:                db,
		sessionTTL:        cfg.SessionTTL,
		bcryptCost:        cfg.BcryptCost,
		loginMaxFailures:  cfg.LoginMaxFailures,
		loginLockDuration: cfg.LoginLockDuration,
	}
}

func (s *Service) AuthenticatePassword(ctx context.Context, identifier, password string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	guardKey := normalizeGuardKey(identifier)
	locked, _, err := s.isGuardLocked(ctx, "password_login", guardKey)
	if err != nil {
		return nil, fmt.Errorf("check login guard: %w", err)
	}
	if locked {
		return nil, ErrRateLimited
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, full_name, role, is_active, password_hash
		FROM users
		WHERE username = $1 OR email = $1
		LIMIT 1
	`, identifier)

	var u User
	var email sql.NullString
	var isActive bool
	var passwordHash string
	if err := row.Scan(&u.ID, &u.Username, &email, &u.FullName, &u.Role, &isActive, &passwordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = s.registerFailure(ctx, "password_login", guardKey)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	if email.Valid {
		u.Email = &email.String
	}

	if !isActive {
		_ = s.registerFailure(ctx, "password_login", guardKey)
		return nil, ErrForbidden
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		_ = s.registerFailure(ctx, "password_login", guardKey)
		return nil, ErrInvalidCredentials
	}

	_ = s.clearGuard(ctx, "password_login", guardKey)
	_, _ = s.db.ExecContext(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, u.ID)
	return &u, nil
}

func (s *Service) CreateSession(ctx context.Context, userID int64, ipAddress, userAgent string) (string, time.Time, error) {
	token, err := generateToken(32)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate session token: %w", err)
	}
	tokenHash := hashToken(token)
	expiresAt := time.Now().Add(s.sessionTTL)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (
			user_id, session_token_hash, expires_at, ip_address, user_agent, created_at
		) VALUES (
			$1, $2, $3, $4, $5, now()
		)
	`, userID, tokenHash, expiresAt, nullableString(ipAddress), nullableString(userAgent))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("insert session: %w", err)
	}
	return token, expiresAt, nil
}

func (s *Service) GetSessionUser(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrUnauthorized
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.email, u.full_name, u.role, u.is_active
		FROM auth_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.session_token_hash = $1
		  AND s.revoked_at IS NULL
		  AND s.expires_at > now()
		LIMIT 1
	`, hashToken(token))

	var u User
	var email sql.NullString
	var isActive bool
	if err := row.Scan(&u.ID, &u.Username, &email, &u.FullName, &u.Role, &isActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("query session user: %w", err)
	}
	if email.Valid {
		u.Email = &email.String
	}
	if !isActive {
		return nil, ErrUnauthorized
	}
	return &u, nil
}

func (s *Service) RevokeSession(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE auth_sessions
		SET revoked_at = now()
		WHERE session_token_hash = $1
		  AND revoked_at IS NULL
	`, hashToken(token))
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func isValidRole(role string) bool {
	switch role {
	case "admin", "manager", "trainer", "employee":
		return true
	default:
		return false
	}
}

func (s *Service) ListUsers(ctx context.Context, role, q string, limit, offset int) ([]AdminUserRecord, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != "" && !isValidRole(role) {
		return nil, errors.New("invalid role filter")
	}
	q = strings.TrimSpace(q)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, email, full_name, role, department, is_active, last_login_at, created_at
		FROM users
		WHERE ($1 = '' OR role = $1)
		  AND (
			$2 = ''
			OR username ILIKE '%' || $2 || '%'
			OR full_name ILIKE '%' || $2 || '%'
			OR COALESCE(email,'') ILIKE '%' || $2 || '%'
			OR COALESCE(department,'') ILIKE '%' || $2 || '%'
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT $3
		OFFSET $4
	`, role, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]AdminUserRecord, 0, limit)
	for rows.Next() {
		item, err := scanAdminUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

func (s *Service) AdminDashboardStats(ctx context.Context) (*AdminDashboardStats, error) {
	out := &AdminDashboardStats{}
	if err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE role = 'admin' AND is_active = TRUE),
			COUNT(*) FILTER (WHERE role = 'manager' AND is_active = TRUE),
			COUNT(*) FILTER (WHERE role = 'trainer' AND is_active = TRUE),
			COUNT(*) FILTER (WHERE role = 'employee' AND is_active = TRUE)
		FROM users
	`).Scan(&out.AdminCount, &out.ManagerCount, &out.TrainerCount, &out.EmployeeCount); err != nil {
		return nil, fmt.Errorf("query user stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM modules WHERE is_active = TRUE),
			(SELECT COUNT(*) FROM quizzes WHERE is_active = TRUE)
	`).Scan(&out.ModuleCount, &out.QuizCount); err != nil {
		return nil, fmt.Errorf("query content stats: %w", err)
	}
	return out, nil
}

func (s *Service) CreateUserByAdmin(ctx context.Context, actorID int64, in AdminCreateUserInput) (*AdminUserRecord, error) {
	_ = actorID
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	fullName := strings.TrimSpace(in.FullName)
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if username == "" || fullName == "" || !isValidRole(role) || len(strings.TrimSpace(in.Password)) < 8 {
		return nil, errors.New("username, full_name, role, and password(>=8) are required")
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, errors.New("invalid email")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (
			username, password_hash, full_name, role, department,
			email, is_active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, NULLIF($5,''),
			NULLIF($6,''), TRUE, now(), now()
		)
		RETURNING id, username, email, full_name, role, department, is_active, last_login_at, created_at
	`, username, string(hash), fullName, role, strings.TrimSpace(in.Department), email)

	out, err := scanAdminUser(row)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return out, nil
}

func (s *Service) UpdateUserByAdmin(ctx context.Context, actorID, userID int64, in AdminUpdateUserInput) (*AdminUserRecord, error) {
	_ = actorID
	fullName := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if userID <= 0 || fullName == "" || !isValidRole(role) {
		return nil, errors.New("id, full_name, and valid role are required")
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, errors.New("invalid email")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if strings.TrimSpace(in.Password) != "" {
		if len(strings.TrimSpace(in.Password)) < 8 {
			return nil, errors.New("password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users
			SET password_hash = $2,
				updated_at = now()
			WHERE id = $1
		`, userID, string(hash)); err != nil {
			return nil, fmt.Errorf("update password: %w", err)
		}
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE users
		SET full_name = $2,
			role = $3,
			department = NULLIF($4,''),
			email = NULLIF($5,''),
			updated_at = now()
		WHERE id = $1
		RETURNING id, username, email, full_name, role, department, is_active, last_login_at, created_at
	`, userID, fullName, role, strings.TrimSpace(in.Department), email)

	out, err := scanAdminUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update user: %w", err)
	}
	return out, nil
}

func (s *Service) DeactivateUserByAdmin(ctx context.Context, actorID, userID int64) error {
	_ = actorID
	if userID <= 0 {
		return errors.New("invalid user id")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_active = FALSE,
			updated_at = now()
		WHERE id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrUserNotFound
	}

	// A deactivated user must not keep a usable session.
	_, err = s.db.ExecContext(ctx, `
		UPDATE auth_sessions
		SET revoked_at = now()
		WHERE user_id = $1
		  AND revoked_at IS NULL
	`, userID)
	if err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

func scanAdminUser(scanner interface{ Scan(dest ...any) error }) (*AdminUserRecord, error) {
	var out AdminUserRecord
	var email sql.NullString
	var department sql.NullString
	var lastLogin sql.NullTime
	if err := scanner.Scan(
		&out.ID,
		&out.Username,
		&email,
		&out.FullName,
		&out.Role,
		&department,
		&out.IsActive,
		&lastLogin,
		&out.CreatedAt,
	); err != nil {
		return nil, err
	}
	if email.Valid {
		out.Email = &email.String
	}
	if department.Valid {
		out.Department = &department.String
	}
	if lastLogin.Valid {
		out.LastLogin = &lastLogin.Time
	}
	return &out, nil
}

func (s *Service) isGuardLocked(ctx context.Context, purpose, subjectKey string) (bool, time.Time, error) {
	var lockedUntil sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT locked_until
		FROM auth_guard_states
		WHERE purpose = $1 AND subject_key = $2
	`, purpose, subjectKey).Scan(&lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, err
	}
	if !lockedUntil.Valid {
		return false, time.Time{}, nil
	}
	if time.Now().Before(lockedUntil.Time) {
		return true, lockedUntil.Time, nil
	}
	return false, lockedUntil.Time, nil
}

func (s *Service) registerFailure(ctx context.Context, purpose, subjectKey string) error {
	var failedCount int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO auth_guard_states (purpose, subject_key, failed_count, updated_at, created_at)
		VALUES ($1, $2, 1, now(), now())
		ON CONFLICT (purpose, subject_key)
		DO UPDATE SET
			failed_count = auth_guard_states.failed_count + 1,
			updated_at = now()
		RETURNING failed_count
	`, purpose, subjectKey).Scan(&failedCount)
	if err != nil {
		return err
	}

	if failedCount >= s.loginMaxFailures {
		_, err = s.db.ExecContext(ctx, `
			UPDATE auth_guard_states
			SET locked_until = now() + ($3 || ' seconds')::interval,
				failed_count = 0,
				updated_at = now()
			WHERE purpose = $1 AND subject_key = $2
		`, purpose, subjectKey, int(s.loginLockDuration.Seconds()))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) clearGuard(ctx context.Context, purpose, subjectKey string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM auth_guard_states
		WHERE purpose = $1 AND subject_key = $2
	`, purpose, subjectKey)
	return err
}

func normalizeGuardKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func nullableString(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func generateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
