// Package announcements stores the notices a club's admin-members post to
// the club page.
package announcements

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/cache"
	"github.com/platinummonkey/clubhub/pkg/storage/postgres"
)

// Announcement is a notice posted to a club
type Announcement struct {
	ID        string    `json:"id"`
	ClubID    string    `json:"club_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest is the input of Create
type CreateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Validate checks required fields
func (r *CreateRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	switch {
	case r.Title == "":
		return apperrors.Validation("title is required")
	case len(r.Title) > 255:
		return apperrors.Validation("title must be at most 255 characters")
	case strings.TrimSpace(r.Content) == "":
		return apperrors.Validation("content is required")
	}
	return nil
}

// Service is the announcement store
type Service interface {
	List(ctx context.Context, clubID string) ([]*Announcement, error)
	Create(ctx context.Context, clubID, authorID string, req CreateRequest) (*Announcement, error)
	Delete(ctx context.Context, clubID, id string) error
}

// PostgresService implements Service using PostgreSQL
type PostgresService struct {
	db    *sql.DB
	cache cache.Invalidator
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB, invalidator cache.Invalidator) *PostgresService {
	return &PostgresService{db: db, cache: invalidator}
}

// List returns a club's announcements, newest first
func (s *PostgresService) List(ctx context.Context, clubID string) ([]*Announcement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, club_id, title, content, COALESCE(created_by::text, ''), created_at, updated_at
		FROM announcements
		WHERE club_id = $1
		ORDER BY created_at DESC
	`, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer rows.Close()

	announcements := []*Announcement{}
	for rows.Next() {
		a := &Announcement{}
		if err := rows.Scan(&a.ID, &a.ClubID, &a.Title, &a.Content, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		announcements = append(announcements, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	return announcements, nil
}

// Create posts an announcement to a club
func (s *PostgresService) Create(ctx context.Context, clubID, authorID string, req CreateRequest) (*Announcement, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	a := &Announcement{
		ID:        uuid.NewString(),
		ClubID:    clubID,
		Title:     req.Title,
		Content:   req.Content,
		CreatedBy: authorID,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO announcements (id, club_id, title, content, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, a.ID, a.ClubID, a.Title, a.Content, authorID).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, postgres.TranslateError(err, "club not found")
	}

	s.cache.Invalidate(ctx, cache.KindClubs)
	return a, nil
}

// Delete removes an announcement from a club
func (s *PostgresService) Delete(ctx context.Context, clubID, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM announcements WHERE id = $1 AND club_id = $2`, id, clubID)
	if err != nil {
		return fmt.Errorf("failed to delete announcement: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NotFound("announcement not found")
	}

	s.cache.Invalidate(ctx, cache.KindClubs)
	return nil
}
