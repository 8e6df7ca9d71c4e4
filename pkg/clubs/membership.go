package clubs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/async"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/bus"
	"github.com/platinummonkey/clubhub/pkg/cache"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/platinummonkey/clubhub/pkg/storage/postgres"
	"github.com/sirupsen/logrus"
)

const membershipColumns = `id, user_id, club_id, role, status, joined_at, created_at, updated_at`

// approvalRetryTimeout bounds the background redelivery of an approval
const approvalRetryTimeout = 30 * time.Second

// RequestJoin creates the user's pending request for a club, or resets the
// existing row to pending
func (s *PostgresService) RequestJoin(ctx context.Context, userID, clubID string) (*Membership, error) {
	if err := s.ensureClub(ctx, s.db, clubID, false); err != nil {
		return nil, err
	}

	m, err := scanMembership(s.db.QueryRowContext(ctx, `
		INSERT INTO club_user (id, user_id, club_id, role, status, joined_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id, club_id) DO UPDATE SET
			role = EXCLUDED.role,
			status = EXCLUDED.status,
			joined_at = EXCLUDED.joined_at,
			updated_at = NOW()
		RETURNING `+membershipColumns,
		uuid.NewString(), userID, clubID, string(auth.RoleStudent), string(StatusPending),
	))
	if err != nil {
		return nil, postgres.TranslateError(err, "club or user not found")
	}

	s.cache.Invalidate(ctx, cache.KindClubs)
	s.transition("requested")
	return m, nil
}

// ReviewJoin approves or rejects a pending request. Approval is capacity
// checked under a lock on the club row and publishes membership.approved once
// committed.
func (s *PostgresService) ReviewJoin(ctx context.Context, clubID, userID string, decision MembershipStatus) (*Membership, error) {
	if decision != StatusApproved && decision != StatusRejected {
		return nil, apperrors.Validation("status must be approved or rejected")
	}

	var m *Membership
	err := postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.ensureClub(ctx, tx, clubID, true); err != nil {
			return err
		}

		current, err := scanMembership(tx.QueryRowContext(ctx,
			`SELECT `+membershipColumns+` FROM club_user WHERE club_id = $1 AND user_id = $2 FOR UPDATE`,
			clubID, userID,
		))
		if err != nil {
			return postgres.TranslateError(err, "membership request not found")
		}
		if current.Status != StatusPending {
			return ErrAlreadyReviewed
		}

		if decision == StatusRejected {
			if _, err := tx.ExecContext(ctx, `DELETE FROM club_user WHERE id = $1`, current.ID); err != nil {
				return fmt.Errorf("failed to delete membership: %w", err)
			}
			current.Status = StatusRejected
			m = current
			return nil
		}

		var maxMembers, approved int
		if err := tx.QueryRowContext(ctx, `
			SELECT c.max_members,
			       (SELECT COUNT(*) FROM club_user cu WHERE cu.club_id = c.id AND cu.status = 'approved')
			FROM clubs c
			WHERE c.id = $1
		`, clubID).Scan(&maxMembers, &approved); err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		if maxMembers > 0 && approved >= maxMembers {
			return ErrClubFull
		}

		m, err = scanMembership(tx.QueryRowContext(ctx, `
			UPDATE club_user SET status = $2, role = $3, joined_at = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING `+membershipColumns,
			current.ID, string(StatusApproved), string(auth.RoleMember),
		))
		if err != nil {
			return fmt.Errorf("failed to approve membership: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrClubFull) {
			s.transition("full")
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.KindClubs, cache.KindEvents)
	s.transition(string(decision))

	entry := s.logger.WithFields(logrus.Fields{"club_id": clubID, "user_id": userID, "decision": decision})
	if decision == StatusApproved && s.publisher != nil {
		s.publishApproval(ctx, entry, bus.MembershipApproved{UserID: userID, ClubID: clubID})
	}
	entry.Info("Membership reviewed")

	return m, nil
}

// PromoteToAdmin makes an existing member of a club one of its admin-members
func (s *PostgresService) PromoteToAdmin(ctx context.Context, clubID, userID string) (*Membership, error) {
	m, err := scanMembership(s.db.QueryRowContext(ctx, `
		UPDATE club_user SET role = $3, updated_at = NOW()
		WHERE club_id = $1 AND user_id = $2
		RETURNING `+membershipColumns,
		clubID, userID, string(auth.RoleAdminMember),
	))
	if err != nil {
		return nil, postgres.TranslateError(err, "membership not found")
	}

	s.cache.Invalidate(ctx, cache.KindClubs)
	s.transition("promoted")
	return m, nil
}

// ListMembers returns a club's roster, i.e. its approved rows
func (s *PostgresService) ListMembers(ctx context.Context, clubID string) ([]*Member, error) {
	if err := s.ensureClub(ctx, s.db, clubID, false); err != nil {
		return nil, err
	}
	return s.listMembers(ctx, clubID)
}

func (s *PostgresService) listMembers(ctx context.Context, clubID string) ([]*Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, cu.role, cu.status, cu.joined_at
		FROM club_user cu
		JOIN users u ON u.id = cu.user_id
		WHERE cu.club_id = $1 AND cu.status = 'approved'
		ORDER BY cu.joined_at ASC
	`, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	return scanMembers(rows)
}

// ListClubRequests returns a page of a club's membership rows of any status
func (s *PostgresService) ListClubRequests(ctx context.Context, clubID string, filter httputil.Filter) ([]*Member, int, error) {
	if err := s.ensureClub(ctx, s.db, clubID, false); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM club_user WHERE club_id = $1 AND ($2 = '' OR status = $2)`,
		clubID, filter.StatusFilter(),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, cu.role, cu.status, cu.joined_at
		FROM club_user cu
		JOIN users u ON u.id = cu.user_id
		WHERE cu.club_id = $1 AND ($2 = '' OR cu.status = $2)
		ORDER BY cu.joined_at DESC
		LIMIT $3 OFFSET $4
	`, clubID, filter.StatusFilter(), filter.Limit, filter.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	members, err := scanMembers(rows)
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

// ListUserRequests returns a page of a user's club requests with club names
func (s *PostgresService) ListUserRequests(ctx context.Context, userID string, filter httputil.Filter) ([]*JoinRequest, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM club_user WHERE user_id = $1 AND ($2 = '' OR status = $2)`,
		userID, filter.StatusFilter(),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count club requests: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT cu.id, cu.user_id, cu.club_id, cu.role, cu.status, cu.joined_at, cu.created_at, cu.updated_at, c.name
		FROM club_user cu
		JOIN clubs c ON c.id = cu.club_id
		WHERE cu.user_id = $1 AND ($2 = '' OR cu.status = $2)
		ORDER BY cu.created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, filter.StatusFilter(), filter.Limit, filter.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list club requests: %w", err)
	}
	defer rows.Close()

	var requests []*JoinRequest
	for rows.Next() {
		r := &JoinRequest{}
		var role, status string
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.ClubID, &role, &status,
			&r.JoinedAt, &r.CreatedAt, &r.UpdatedAt, &r.ClubName,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan club request: %w", err)
		}
		r.Role = auth.Role(role)
		r.Status = MembershipStatus(status)
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list club requests: %w", err)
	}

	return requests, total, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ensureClub returns NotFound when the club does not exist, optionally locking its row
func (s *PostgresService) ensureClub(ctx context.Context, q queryer, clubID string, lock bool) error {
	query := `SELECT id FROM clubs WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var id string
	if err := q.QueryRowContext(ctx, query, clubID).Scan(&id); err != nil {
		return postgres.TranslateError(err, "club not found")
	}
	return nil
}

// publishApproval delivers the approval to subscribers. A failed delivery is
// retried in the background, so subscribers must be idempotent.
func (s *PostgresService) publishApproval(ctx context.Context, entry logrus.FieldLogger, event bus.MembershipApproved) {
	err := s.publisher.Publish(ctx, event)
	if err == nil {
		return
	}
	entry.WithError(err).Warn("Failed to publish membership approval, retrying")
	async.SafeGo(ctx, s.logger, approvalRetryTimeout, "membership approval retry", func(ctx context.Context) error {
		return async.Retry(ctx, s.retry, func(ctx context.Context) error {
			return s.publisher.Publish(ctx, event)
		})
	})
}

func (s *PostgresService) transition(name string) {
	if s.metrics != nil {
		s.metrics.MembershipTransitionsTotal.WithLabelValues(name).Inc()
	}
}

func scanMembership(row rowScanner) (*Membership, error) {
	m := &Membership{}
	var role, status string
	if err := row.Scan(
		&m.ID, &m.UserID, &m.ClubID, &role, &status, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.Role = auth.Role(role)
	m.Status = MembershipStatus(status)
	return m, nil
}

func scanMembers(rows *sql.Rows) ([]*Member, error) {
	members := []*Member{}
	for rows.Next() {
		m := &Member{}
		var role, status string
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &role, &status, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Role = auth.Role(role)
		m.Status = MembershipStatus(status)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}
