package clubs

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/bus"
	"github.com/platinummonkey/clubhub/pkg/cache"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/platinummonkey/clubhub/pkg/storage/postgres"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var membershipRowColumns = []string{
	"id", "user_id", "club_id", "role", "status", "joined_at", "created_at", "updated_at",
}

func membershipRow(role auth.Role, status MembershipStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(membershipRowColumns).
		AddRow("m1", "u2", "c1", string(role), string(status), now, now, now)
}

func (f *fixture) transitions(name string) float64 {
	return testutil.ToFloat64(f.metrics.MembershipTransitionsTotal.WithLabelValues(name))
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision(" Approved ")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, d)

	d, err = ParseDecision("rejected")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, d)

	_, err = ParseDecision("pending")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestRequestJoin(t *testing.T) {
	t.Run("creates a pending student row", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectQuery(`SELECT id FROM clubs WHERE id = \$1`).
			WithArgs("c1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c1"))
		f.mock.ExpectQuery(`ON CONFLICT \(user_id, club_id\) DO UPDATE`).
			WithArgs(sqlmock.AnyArg(), "u2", "c1", "student", "pending").
			WillReturnRows(membershipRow(auth.RoleStudent, StatusPending))

		m, err := f.svc.RequestJoin(context.Background(), "u2", "c1")
		require.NoError(t, err)
		assert.Equal(t, StatusPending, m.Status)
		assert.Equal(t, auth.RoleStudent, m.Role)
		assert.Equal(t, float64(1), f.invalidations(cache.KindClubs))
		assert.Equal(t, float64(1), f.transitions("requested"))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("repeated request reuses the row", func(t *testing.T) {
		f := newFixture(t)

		for i := 0; i < 2; i++ {
			f.mock.ExpectQuery(`SELECT id FROM clubs WHERE id = \$1`).
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c1"))
			f.mock.ExpectQuery(`ON CONFLICT \(user_id, club_id\) DO UPDATE`).
				WillReturnRows(membershipRow(auth.RoleStudent, StatusPending))
		}

		first, err := f.svc.RequestJoin(context.Background(), "u2", "c1")
		require.NoError(t, err)
		second, err := f.svc.RequestJoin(context.Background(), "u2", "c1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("unknown club", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectQuery(`SELECT id FROM clubs WHERE id = \$1`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := f.svc.RequestJoin(context.Background(), "u2", "missing")
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectQuery(`SELECT id FROM clubs WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c1"))
		f.mock.ExpectQuery(`INSERT INTO club_user`).
			WillReturnError(&pq.Error{Code: postgres.CodeForeignKeyViolation})

		_, err := f.svc.RequestJoin(context.Background(), "ghost", "c1")
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})
}

func expectReviewPrelude(f *fixture, row *sqlmock.Rows) {
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`SELECT id FROM clubs WHERE id = \$1 FOR UPDATE`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c1"))
	q := f.mock.ExpectQuery(`FROM club_user WHERE club_id = \$1 AND user_id = \$2 FOR UPDATE`).
		WithArgs("c1", "u2")
	if row == nil {
		q.WillReturnError(sql.ErrNoRows)
		return
	}
	q.WillReturnRows(row)
}

func TestReviewJoin(t *testing.T) {
	t.Run("approve sets member role and publishes after commit", func(t *testing.T) {
		f := newFixture(t)

		expectReviewPrelude(f, membershipRow(auth.RoleStudent, StatusPending))
		f.mock.ExpectQuery(`SELECT c.max_members`).
			WithArgs("c1").
			WillReturnRows(sqlmock.NewRows([]string{"max_members", "count"}).AddRow(10, 3))
		f.mock.ExpectQuery(`UPDATE club_user SET status = \$2, role = \$3`).
			WithArgs("m1", "approved", "member").
			WillReturnRows(membershipRow(auth.RoleMember, StatusApproved))
		f.mock.ExpectCommit()

		m, err := f.svc.ReviewJoin(context.Background(), "c1", "u2", StatusApproved)
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, m.Status)
		assert.Equal(t, auth.RoleMember, m.Role)
		assert.Equal(t, []bus.Event{bus.MembershipApproved{UserID: "u2", ClubID: "c1"}}, f.publisher.published())
		assert.Equal(t, float64(1), f.transitions("approved"))
		assert.Equal(t, float64(1), f.invalidations(cache.KindClubs))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("reject deletes the row and publishes nothing", func(t *testing.T) {
		f := newFixture(t)

		expectReviewPrelude(f, membershipRow(auth.RoleStudent, StatusPending))
		f.mock.ExpectExec(`DELETE FROM club_user WHERE id = \$1`).
			WithArgs("m1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()

		m, err := f.svc.ReviewJoin(context.Background(), "c1", "u2", StatusRejected)
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, m.Status)
		assert.Empty(t, f.publisher.published())
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("already reviewed", func(t *testing.T) {
		f := newFixture(t)

		expectReviewPrelude(f, membershipRow(auth.RoleMember, StatusApproved))
		f.mock.ExpectRollback()

		_, err := f.svc.ReviewJoin(context.Background(), "c1", "u2", StatusApproved)
		assert.ErrorIs(t, err, ErrAlreadyReviewed)
		assert.Empty(t, f.publisher.published())
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("club is full", func(t *testing.T) {
		f := newFixture(t)

		expectReviewPrelude(f, membershipRow(auth.RoleStudent, StatusPending))
		f.mock.ExpectQuery(`SELECT c.max_members`).
			WillReturnRows(sqlmock.NewRows([]string{"max_members", "count"}).AddRow(2, 2))
		f.mock.ExpectRollback()

		_, err := f.svc.ReviewJoin(context.Background(), "c1", "u2", StatusApproved)
		assert.ErrorIs(t, err, ErrClubFull)
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
		assert.Equal(t, float64(1), f.transitions("full"))
		assert.Equal(t, float64(0), f.invalidations(cache.KindClubs))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("unlimited capacity", func(t *testing.T) {
		f := newFixture(t)

		expectReviewPrelude(f, membershipRow(auth.RoleStudent, StatusPending))
		f.mock.ExpectQuery(`SELECT c.max_members`).
			WillReturnRows(sqlmock.NewRows([]string{"max_members", "count"}).AddRow(0, 500))
		f.mock.ExpectQuery(`UPDATE club_user SET status`).
			WillReturnRows(membershipRow(auth.RoleMember, StatusApproved))
		f.mock.ExpectCommit()

		_, err := f.svc.ReviewJoin(context.Background(), "c1", "u2", StatusApproved)
		require.NoError(t, err)
	})

	t.Run("no request", func(t *testing.T) {
		f := newFixture(t)

		expectReviewPrelude(f, nil)
		f.mock.ExpectRollback()

		_, err := f.svc.ReviewJoin(context.Background(), "c1", "u2", StatusApproved)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	approve := func(f *fixture) {
		expectReviewPrelude(f, membershipRow(auth.RoleStudent, StatusPending))
		f.mock.ExpectQuery(`SELECT c.max_members`).
			WillReturnRows(sqlmock.NewRows([]string{"max_members", "count"}).AddRow(0, 0))
		f.mock.ExpectQuery(`UPDATE club_user SET status`).
			WillReturnRows(membershipRow(auth.RoleMember, StatusApproved))
		f.mock.ExpectCommit()
	}

	t.Run("failed publish is redelivered", func(t *testing.T) {
		f := newFixture(t)
		f.publisher.err = errors.New("subscriber down")
		f.publisher.failures = 1

		approve(f)
		_, err := f.svc.ReviewJoin(context.Background(), "c1", "u2", StatusApproved)
		require.NoError(t, err)

		assert.Eventually(t, func() bool { return len(f.publisher.published()) == 2 }, time.Second, 5*time.Millisecond)
		want := bus.MembershipApproved{UserID: "u2", ClubID: "c1"}
		assert.Equal(t, []bus.Event{want, want}, f.publisher.published())
	})

	t.Run("persistent publish failure does not fail the review", func(t *testing.T) {
		f := newFixture(t)
		f.publisher.err = errors.New("subscriber down")

		approve(f)
		_, err := f.svc.ReviewJoin(context.Background(), "c1", "u2", StatusApproved)
		require.NoError(t, err)

		// one inline attempt plus the three retries
		assert.Eventually(t, func() bool { return len(f.publisher.published()) == 4 }, time.Second, 5*time.Millisecond)
	})

	t.Run("invalid decision", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ReviewJoin(context.Background(), "c1", "u2", StatusPending)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})
}

func TestPromoteToAdmin(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery(`UPDATE club_user SET role = \$3`).
		WithArgs("c1", "u2", "admin-member").
		WillReturnRows(membershipRow(auth.RoleAdminMember, StatusApproved))

	m, err := f.svc.PromoteToAdmin(context.Background(), "c1", "u2")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdminMember, m.Role)
	assert.Equal(t, StatusApproved, m.Status)

	f.mock.ExpectQuery(`UPDATE club_user SET role = \$3`).
		WithArgs("c1", "u9", "admin-member").
		WillReturnError(sql.ErrNoRows)

	_, err = f.svc.PromoteToAdmin(context.Background(), "c1", "u9")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestListUserRequests(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	f.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM club_user WHERE user_id = \$1`).
		WithArgs("u2", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	f.mock.ExpectQuery(`JOIN clubs c ON c.id = cu.club_id`).
		WithArgs("u2", "pending", 10, 0).
		WillReturnRows(sqlmock.NewRows(append(membershipRowColumns, "name")).
			AddRow("m1", "u2", "c1", "student", "pending", now, now, now, "Chess"))

	requests, total, err := f.svc.ListUserRequests(context.Background(), "u2", httputil.Filter{Status: "pending", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, requests, 1)
	assert.Equal(t, "Chess", requests[0].ClubName)
	assert.Equal(t, StatusPending, requests[0].Status)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestListClubRequests_AllStatuses(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	f.mock.ExpectQuery(`SELECT id FROM clubs WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c1"))
	f.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM club_user WHERE club_id = \$1`).
		WithArgs("c1", "").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	f.mock.ExpectQuery(`LIMIT \$3 OFFSET \$4`).
		WithArgs("c1", "", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "role", "status", "joined_at"}).
			AddRow("u2", "Bo", "bo@example.com", "student", "pending", now).
			AddRow("u1", "Ada", "ada@example.com", "admin-member", "approved", now))

	members, total, err := f.svc.ListClubRequests(context.Background(), "c1", httputil.Filter{Status: httputil.StatusAll, Page: 1, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, members, 2)
	require.NoError(t, f.mock.ExpectationsWereMet())
}
