package clubs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/async"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/bus"
	"github.com/platinummonkey/clubhub/pkg/cache"
	"github.com/platinummonkey/clubhub/pkg/observability"
	"github.com/platinummonkey/clubhub/pkg/storage/postgres"
	"github.com/sirupsen/logrus"
)

const clubColumns = `
	c.id, c.name, c.description, c.image, c.category, c.max_members,
	COALESCE(c.created_by::text, ''), c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM club_user cu WHERE cu.club_id = c.id AND cu.status = 'approved')
`

// PostgresService implements Service using PostgreSQL
type PostgresService struct {
	db        *sql.DB
	cache     *cache.Cache
	publisher bus.Publisher
	metrics   *observability.Metrics
	logger    logrus.FieldLogger
	retry     async.RetryPolicy
}

// NewPostgresService creates a new PostgresService. cache and metrics may be nil.
func NewPostgresService(db *sql.DB, c *cache.Cache, publisher bus.Publisher, metrics *observability.Metrics, logger logrus.FieldLogger) *PostgresService {
	return &PostgresService{
		db:        db,
		cache:     c,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.WithField("component", "clubs"),
		retry:     async.DefaultRetryPolicy(),
	}
}

// List returns every club, newest first, through the collection cache
func (s *PostgresService) List(ctx context.Context) ([]*Club, error) {
	return cache.Remember(ctx, s.cache, cache.KindClubs, s.listClubs)
}

func (s *PostgresService) listClubs(ctx context.Context) ([]*Club, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clubColumns+` FROM clubs c ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clubs: %w", err)
	}
	defer rows.Close()

	clubs := []*Club{}
	for rows.Next() {
		club, err := scanClub(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan club: %w", err)
		}
		clubs = append(clubs, club)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list clubs: %w", err)
	}
	return clubs, nil
}

// Create inserts a club and makes its creator an approved admin-member
func (s *PostgresService) Create(ctx context.Context, creatorID string, req CreateClubRequest) (*Club, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Image == "" {
		req.Image = DefaultImage
	}

	club := &Club{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Description:  req.Description,
		Image:        req.Image,
		Category:     req.Category,
		MaxMembers:   req.MaxMembers,
		CreatedBy:    creatorID,
		MembersCount: 1,
	}

	err := postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO clubs (id, name, description, image, category, max_members, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at
		`, club.ID, club.Name, club.Description, club.Image, club.Category, club.MaxMembers, creatorID,
		).Scan(&club.CreatedAt, &club.UpdatedAt)
		if err != nil {
			if postgres.IsUniqueViolation(err, postgres.ConstraintClubsName) {
				return ErrDuplicateName
			}
			return postgres.TranslateError(err, "user not found")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO club_user (id, user_id, club_id, role, status, joined_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`, uuid.NewString(), creatorID, club.ID, string(auth.RoleAdminMember), string(StatusApproved))
		if err != nil {
			return fmt.Errorf("failed to add club creator: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.KindClubs, cache.KindEvents)
	s.logger.WithFields(logrus.Fields{"club_id": club.ID, "user_id": creatorID}).Info("Club created")
	return club, nil
}

// Get returns a club with its approved members and its events
func (s *PostgresService) Get(ctx context.Context, id string) (*ClubDetail, error) {
	club, err := scanClub(s.db.QueryRowContext(ctx, `SELECT `+clubColumns+` FROM clubs c WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("club not found")
		}
		return nil, fmt.Errorf("failed to get club: %w", err)
	}

	members, err := s.listMembers(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, date, status, max_participants
		FROM events
		WHERE club_id = $1
		ORDER BY date ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list club events: %w", err)
	}
	defer rows.Close()

	events := []*EventSummary{}
	for rows.Next() {
		e := &EventSummary{}
		if err := rows.Scan(&e.ID, &e.Title, &e.Date, &e.Status, &e.MaxParticipants); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list club events: %w", err)
	}

	return &ClubDetail{Club: club, Members: members, Events: events}, nil
}

// Update changes the non-nil fields of a club
func (s *PostgresService) Update(ctx context.Context, id string, req UpdateClubRequest) (*Club, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var maxMembers sql.NullInt64
	if req.MaxMembers != nil {
		maxMembers = sql.NullInt64{Int64: int64(*req.MaxMembers), Valid: true}
	}

	var clubID string
	err := s.db.QueryRowContext(ctx, `
		UPDATE clubs SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			image = COALESCE($4, image),
			category = COALESCE($5, category),
			max_members = COALESCE($6, max_members),
			updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`, id, nullString(req.Name), nullString(req.Description), nullString(req.Image), nullString(req.Category), maxMembers,
	).Scan(&clubID)
	if err != nil {
		if postgres.IsUniqueViolation(err, postgres.ConstraintClubsName) {
			return nil, ErrDuplicateName
		}
		return nil, postgres.TranslateError(err, "club not found")
	}

	s.cache.Invalidate(ctx, cache.KindClubs, cache.KindEvents)

	club, err := scanClub(s.db.QueryRowContext(ctx, `SELECT `+clubColumns+` FROM clubs c WHERE c.id = $1`, clubID))
	if err != nil {
		return nil, postgres.TranslateError(err, "club not found")
	}
	return club, nil
}

// Delete removes a club. Events, memberships and announcements cascade.
func (s *PostgresService) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clubs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete club: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NotFound("club not found")
	}

	s.cache.Invalidate(ctx, cache.KindClubs, cache.KindEvents)
	s.logger.WithField("club_id", id).Info("Club deleted")
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClub(row rowScanner) (*Club, error) {
	c := &Club{}
	if err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.Image, &c.Category, &c.MaxMembers,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt, &c.MembersCount,
	); err != nil {
		return nil, err
	}
	return c, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
