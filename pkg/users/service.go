package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/cache"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/platinummonkey/clubhub/pkg/storage/postgres"
	"github.com/sirupsen/logrus"
)

const userColumns = `id, name, email, password, role, COALESCE(department, ''), image, created_at, updated_at`

var errInvalidCredentials = apperrors.Unauthenticated("invalid credentials")

// PostgresService implements Service using PostgreSQL
type PostgresService struct {
	db     *sql.DB
	hasher *auth.PasswordHasher
	cache  cache.Invalidator
	logger logrus.FieldLogger
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB, hasher *auth.PasswordHasher, invalidator cache.Invalidator, logger logrus.FieldLogger) *PostgresService {
	return &PostgresService{
		db:     db,
		hasher: hasher,
		cache:  invalidator,
		logger: logger.WithField("component", "users"),
	}
}

// Create inserts a user. The role defaults to student.
func (s *PostgresService) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = auth.RoleStudent
	}
	if req.Image == "" {
		req.Image = DefaultImage
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Email:      req.Email,
		Password:   hash,
		Role:       req.Role,
		Department: req.Department,
		Image:      req.Image,
	}

	query := `
		INSERT INTO users (id, name, email, password, role, department, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		user.ID, user.Name, user.Email, user.Password, string(user.Role), nullIfEmpty(user.Department), user.Image,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, postgres.ConstraintUsersEmail) {
			return nil, apperrors.Validation("the email has already been taken")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Register creates a self-service account, which is always a student
func (s *PostgresService) Register(ctx context.Context, req CreateUserRequest) (*User, error) {
	req.Role = auth.RoleStudent
	return s.Create(ctx, req)
}

// Get retrieves a user by ID
func (s *PostgresService) Get(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email, case-insensitively
func (s *PostgresService) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, normalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// List returns a page of users. The filter status selects a global role.
func (s *PostgresService) List(ctx context.Context, filter httputil.Filter) ([]*User, int, error) {
	role := filter.StatusFilter()

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE ($1 = '' OR role = $1)`, role,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, role, filter.Limit, filter.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	return users, total, nil
}

// Update changes the non-nil fields of a user. Callers decide who may change
// the role.
func (s *PostgresService) Update(ctx context.Context, id string, req UpdateUserRequest) (*User, error) {
	var role sql.NullString
	if req.Role != nil {
		parsed, err := auth.ParseRole(string(*req.Role))
		if err != nil {
			return nil, apperrors.Validation("invalid role")
		}
		role = sql.NullString{String: string(parsed), Valid: true}
	}
	email := req.Email
	if email != nil {
		normalized := normalizeEmail(*email)
		email = &normalized
	}

	query := `
		UPDATE users SET
			name = COALESCE($2, name),
			email = COALESCE($3, email),
			department = COALESCE($4, department),
			image = COALESCE($5, image),
			role = COALESCE($6, role),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	user, err := scanUser(s.db.QueryRowContext(ctx, query,
		id, nullString(req.Name), nullString(email), nullString(req.Department), nullString(req.Image), role,
	))
	if err != nil {
		if postgres.IsUniqueViolation(err, postgres.ConstraintUsersEmail) {
			return nil, apperrors.Validation("the email has already been taken")
		}
		return nil, postgres.TranslateError(err, "user not found")
	}

	return user, nil
}

// Delete removes a user. Memberships and registrations cascade, so the club
// and event collections are invalidated.
func (s *PostgresService) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NotFound("user not found")
	}

	s.cache.Invalidate(ctx, cache.KindUsers, cache.KindClubs, cache.KindEvents)
	return nil
}

// Authenticate checks an email and password pair
func (s *PostgresService) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := s.hasher.Compare(user.Password, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces a user's password after checking the current one
func (s *PostgresService) ChangePassword(ctx context.Context, id, current, next string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(user.Password, current); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperrors.Validation("current password is incorrect")
		}
		return err
	}
	if len(next) < auth.MinPasswordLength {
		return apperrors.Validation("password must be at least 8 characters")
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET password = $1, updated_at = NOW() WHERE id = $2`, hash, id,
	); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// LoadPrincipal returns the user with all of its club memberships
func (s *PostgresService) LoadPrincipal(ctx context.Context, userID string) (*auth.Principal, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT club_id, role, status
		FROM club_user
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	defer rows.Close()

	principal := &auth.Principal{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
	}
	for rows.Next() {
		var m auth.Membership
		var role string
		if err := rows.Scan(&m.ClubID, &role, &m.Status); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		m.Role = auth.Role(role)
		if parsed, err := auth.ParseRole(role); err == nil {
			m.Role = parsed
		}
		principal.Memberships = append(principal.Memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}

	return principal, nil
}

// EnsureAdmin creates a global admin, or elevates and resets the password of
// the existing account with the same email
func (s *PostgresService) EnsureAdmin(ctx context.Context, req CreateUserRequest) (*User, error) {
	req.Role = auth.RoleAdmin
	if err := req.Validate(); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO users (id, name, email, password, role, image)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE SET
			role = EXCLUDED.role,
			password = EXCLUDED.password,
			updated_at = NOW()
		RETURNING ` + userColumns
	user, err := scanUser(s.db.QueryRowContext(ctx, query,
		uuid.NewString(), req.Name, req.Email, hash, string(auth.RoleAdmin), DefaultImage,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to ensure admin: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("Admin account ensured")
	return user, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	user := &User{}
	var role string
	if err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.Password, &role,
		&user.Department, &user.Image, &user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = auth.Role(role)
	return user, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
