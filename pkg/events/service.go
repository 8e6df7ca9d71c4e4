package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/cache"
	"github.com/platinummonkey/clubhub/pkg/observability"
	"github.com/platinummonkey/clubhub/pkg/storage/postgres"
	"github.com/sirupsen/logrus"
)

const eventColumns = `
	e.id, e.club_id, c.name, e.title, e.description, e.date, e.location, e.image,
	e.max_participants, COALESCE(e.created_by::text, ''), e.status,
	(SELECT COUNT(*) FROM event_registrations r WHERE r.event_id = e.id),
	e.created_at, e.updated_at
`

const eventFrom = ` FROM events e JOIN clubs c ON c.id = e.club_id`

// PostgresService implements Service using PostgreSQL
type PostgresService struct {
	db      *sql.DB
	cache   *cache.Cache
	metrics *observability.Metrics
	logger  logrus.FieldLogger
}

// NewPostgresService creates a new PostgresService. cache and metrics may be nil.
func NewPostgresService(db *sql.DB, c *cache.Cache, metrics *observability.Metrics, logger logrus.FieldLogger) *PostgresService {
	return &PostgresService{
		db:      db,
		cache:   c,
		metrics: metrics,
		logger:  logger.WithField("component", "events"),
	}
}

// List returns every event, newest first, through the collection cache
func (s *PostgresService) List(ctx context.Context) ([]*Event, error) {
	return cache.Remember(ctx, s.cache, cache.KindEvents, s.listEvents)
}

func (s *PostgresService) listEvents(ctx context.Context) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+eventFrom+` ORDER BY e.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// Create inserts a pending event for a club
func (s *PostgresService) Create(ctx context.Context, creatorID string, req CreateEventRequest) (*Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Image == "" {
		req.Image = DefaultImage
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, club_id, title, description, date, location, image, max_participants, created_by, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, id, req.ClubID, req.Title, req.Description, req.Date, req.Location, req.Image,
		req.MaxParticipants, creatorID, string(StatusPending))
	if err != nil {
		return nil, postgres.TranslateError(err, "club not found")
	}

	s.cache.Invalidate(ctx, cache.KindEvents)
	s.logger.WithFields(logrus.Fields{"event_id": id, "club_id": req.ClubID}).Info("Event created")
	return s.Get(ctx, id)
}

// Get retrieves an event by ID
func (s *PostgresService) Get(ctx context.Context, id string) (*Event, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx, `SELECT `+eventColumns+eventFrom+` WHERE e.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("event not found")
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// Update changes the non-nil fields of an event
func (s *PostgresService) Update(ctx context.Context, id string, req UpdateEventRequest) (*Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var date sql.NullTime
	if req.Date != nil {
		date = sql.NullTime{Time: *req.Date, Valid: true}
	}
	var maxParticipants sql.NullInt64
	if req.MaxParticipants != nil {
		maxParticipants = sql.NullInt64{Int64: int64(*req.MaxParticipants), Valid: true}
	}
	var status sql.NullString
	if req.Status != nil {
		status = sql.NullString{String: string(*req.Status), Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE events SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			date = COALESCE($4, date),
			location = COALESCE($5, location),
			image = COALESCE($6, image),
			max_participants = COALESCE($7, max_participants),
			status = COALESCE($8, status),
			updated_at = NOW()
		WHERE id = $1
	`, id, nullString(req.Title), nullString(req.Description), date, nullString(req.Location),
		nullString(req.Image), maxParticipants, status)
	if err != nil {
		return nil, postgres.TranslateError(err, "event not found")
	}
	if err := expectOne(result, "event not found"); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.KindEvents)
	return s.Get(ctx, id)
}

// Delete removes an event. Registrations cascade.
func (s *PostgresService) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if err := expectOne(result, "event not found"); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, cache.KindEvents)
	s.logger.WithField("event_id", id).Info("Event deleted")
	return nil
}

// SetStatus moves an event to any status
func (s *PostgresService) SetStatus(ctx context.Context, id string, status Status) (*Event, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to update event status: %w", err)
	}
	if err := expectOne(result, "event not found"); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.KindEvents)
	return s.Get(ctx, id)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*Event, error) {
	e := &Event{}
	var status string
	if err := row.Scan(
		&e.ID, &e.ClubID, &e.ClubName, &e.Title, &e.Description, &e.Date, &e.Location, &e.Image,
		&e.MaxParticipants, &e.CreatedBy, &status, &e.RegistrationsCount, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.Status = Status(status)
	return e, nil
}

func expectOne(result sql.Result, notFound string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NotFound(notFound)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
