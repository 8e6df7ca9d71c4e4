package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/cache"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/platinummonkey/clubhub/pkg/storage/postgres"
	"github.com/sirupsen/logrus"
)

const registrationColumns = `id, event_id, user_id, status, registered_at, created_at, updated_at`

// Register creates a pending registration. The event row is locked for the
// duration of the check so concurrent registrations cannot both take the
// last place.
func (s *PostgresService) Register(ctx context.Context, userID, eventID string) (*Registration, error) {
	var reg *Registration
	err := postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var maxParticipants int
		err := tx.QueryRowContext(ctx,
			`SELECT max_participants FROM events WHERE id = $1 FOR UPDATE`, eventID,
		).Scan(&maxParticipants)
		if err != nil {
			return postgres.TranslateError(err, "event not found")
		}

		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM event_registrations WHERE event_id = $1 AND user_id = $2)`,
			eventID, userID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check registration: %w", err)
		}
		if exists {
			return ErrAlreadyRegistered
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM event_registrations WHERE event_id = $1`, eventID,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to count registrations: %w", err)
		}
		if count >= maxParticipants {
			return ErrEventFull
		}

		reg, err = scanRegistration(tx.QueryRowContext(ctx, `
			INSERT INTO event_registrations (id, event_id, user_id, status, registered_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING `+registrationColumns,
			uuid.NewString(), eventID, userID, string(StatusPending),
		))
		if err != nil {
			if postgres.IsUniqueViolation(err, postgres.ConstraintRegistrationPair) {
				return ErrAlreadyRegistered
			}
			return postgres.TranslateError(err, "user not found")
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEventFull):
			s.outcome("full")
		case errors.Is(err, ErrAlreadyRegistered):
			s.outcome("duplicate")
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.KindEvents)
	s.outcome("registered")
	return reg, nil
}

// Review approves or rejects a pending registration. Decisions are final,
// and capacity is not re-checked.
func (s *PostgresService) Review(ctx context.Context, eventID, userID string, decision Status) (*Registration, error) {
	if decision != StatusApproved && decision != StatusRejected {
		return nil, apperrors.Validation("status must be approved or rejected")
	}

	var reg *Registration
	err := postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := scanRegistration(tx.QueryRowContext(ctx,
			`SELECT `+registrationColumns+` FROM event_registrations WHERE event_id = $1 AND user_id = $2 FOR UPDATE`,
			eventID, userID,
		))
		if err != nil {
			return postgres.TranslateError(err, "registration not found")
		}
		if current.Status != StatusPending {
			return ErrAlreadyReviewed
		}

		reg, err = scanRegistration(tx.QueryRowContext(ctx, `
			UPDATE event_registrations SET status = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING `+registrationColumns,
			current.ID, string(decision),
		))
		if err != nil {
			return fmt.Errorf("failed to review registration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.KindEvents)
	s.outcome(string(decision))
	s.logger.WithFields(logrus.Fields{
		"event_id": eventID,
		"user_id":  userID,
		"decision": decision,
	}).Info("Registration reviewed")
	return reg, nil
}

// ListEventRegistrations returns a page of an event's registrations
func (s *PostgresService) ListEventRegistrations(ctx context.Context, eventID string, filter httputil.Filter) ([]*Registrant, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_registrations WHERE event_id = $1 AND ($2 = '' OR status = $2)`,
		eventID, filter.StatusFilter(),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count registrations: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.event_id, r.user_id, r.status, r.registered_at, r.created_at, r.updated_at, u.name, u.email
		FROM event_registrations r
		JOIN users u ON u.id = r.user_id
		WHERE r.event_id = $1 AND ($2 = '' OR r.status = $2)
		ORDER BY r.registered_at ASC
		LIMIT $3 OFFSET $4
	`, eventID, filter.StatusFilter(), filter.Limit, filter.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	var registrants []*Registrant
	for rows.Next() {
		r := &Registrant{}
		var status string
		if err := rows.Scan(
			&r.ID, &r.EventID, &r.UserID, &status, &r.RegisteredAt, &r.CreatedAt, &r.UpdatedAt,
			&r.UserName, &r.UserEmail,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan registration: %w", err)
		}
		r.Status = Status(status)
		registrants = append(registrants, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list registrations: %w", err)
	}

	return registrants, total, nil
}

// ListUserRegistrations returns a page of a user's registrations with their events
func (s *PostgresService) ListUserRegistrations(ctx context.Context, userID string, filter httputil.Filter) ([]*UserRegistration, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_registrations WHERE user_id = $1 AND ($2 = '' OR status = $2)`,
		userID, filter.StatusFilter(),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count registrations: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.event_id, r.user_id, r.status, r.registered_at, r.created_at, r.updated_at,
		       e.title, e.date, e.club_id
		FROM event_registrations r
		JOIN events e ON e.id = r.event_id
		WHERE r.user_id = $1 AND ($2 = '' OR r.status = $2)
		ORDER BY r.registered_at DESC
		LIMIT $3 OFFSET $4
	`, userID, filter.StatusFilter(), filter.Limit, filter.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	var registrations []*UserRegistration
	for rows.Next() {
		r := &UserRegistration{}
		var status string
		if err := rows.Scan(
			&r.ID, &r.EventID, &r.UserID, &status, &r.RegisteredAt, &r.CreatedAt, &r.UpdatedAt,
			&r.EventTitle, &r.EventDate, &r.ClubID,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan registration: %w", err)
		}
		r.Status = Status(status)
		registrations = append(registrations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list registrations: %w", err)
	}

	return registrations, total, nil
}

func (s *PostgresService) outcome(name string) {
	if s.metrics != nil {
		s.metrics.RegistrationOutcomesTotal.WithLabelValues(name).Inc()
	}
}

func scanRegistration(row rowScanner) (*Registration, error) {
	r := &Registration{}
	var status string
	if err := row.Scan(
		&r.ID, &r.EventID, &r.UserID, &status, &r.RegisteredAt, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.Status = Status(status)
	return r, nil
}
