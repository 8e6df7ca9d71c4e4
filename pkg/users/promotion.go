package users

import (
	"context"
	"fmt"

	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/bus"
	"github.com/sirupsen/logrus"
)

// Subscribe registers the global role promotion on the bus
func (s *PostgresService) Subscribe(b *bus.Bus) {
	b.Subscribe(bus.TopicMembershipApproved, s.HandleMembershipApproved)
}

// HandleMembershipApproved promotes a student to member. Any other global
// role is left alone, which keeps the promotion one-way.
func (s *PostgresService) HandleMembershipApproved(ctx context.Context, event bus.Event) error {
	approved, ok := event.(bus.MembershipApproved)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2 AND role = $3`,
		string(auth.RoleMember), approved.UserID, string(auth.RoleStudent),
	)
	if err != nil {
		return fmt.Errorf("failed to promote user: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n > 0 {
		s.logger.WithFields(logrus.Fields{
			"user_id": approved.UserID,
			"club_id": approved.ClubID,
		}).Info("Promoted student to member")
	}
	return nil
}
