package events

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/cache"
	"github.com/platinummonkey/clubhub/pkg/observability"
	"github.com/platinummonkey/clubhub/pkg/storage/postgres"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClubID = "5f0c1f43-4c1a-4a8e-9d0e-3f8f2c6b7a10"

var eventRowColumns = []string{
	"id", "club_id", "club_name", "title", "description", "date", "location", "image",
	"max_participants", "created_by", "status", "registrations_count", "created_at", "updated_at",
}

type fixture struct {
	svc     *PostgresService
	mock    sqlmock.Sqlmock
	metrics *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	metrics := observability.NewNopMetrics()
	c := cache.New(cache.NewMemoryStore(100, time.Minute), cache.Config{Enabled: true, TTL: time.Minute}, logger, metrics)

	return &fixture{
		svc:     NewPostgresService(db, c, metrics, logger),
		mock:    mock,
		metrics: metrics,
	}
}

func (f *fixture) invalidations() float64 {
	return testutil.ToFloat64(f.metrics.CacheInvalidationsTotal.WithLabelValues(cache.KindEvents.String()))
}

func (f *fixture) outcomes(name string) float64 {
	return testutil.ToFloat64(f.metrics.RegistrationOutcomesTotal.WithLabelValues(name))
}

func eventRows(ids ...string) *sqlmock.Rows {
	now := time.Now().UTC()
	rows := sqlmock.NewRows(eventRowColumns)
	for _, id := range ids {
		rows.AddRow(id, testClubID, "Chess", "Open night", "", now, "Hall", DefaultImage, 1, "u1", "pending", 0, now, now)
	}
	return rows
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "APPROVED", " rejected "} {
		_, err := ParseStatus(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseStatus("cancelled")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = ParseDecision("pending")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestList_ServedFromCacheUntilWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mock.ExpectQuery(`ORDER BY e.created_at DESC`).WillReturnRows(eventRows("e1"))

	first, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = f.svc.List(ctx)
	require.NoError(t, err)

	f.mock.ExpectExec(`UPDATE events SET status = \$2`).
		WithArgs("e1", "approved").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery(`WHERE e.id = \$1`).WithArgs("e1").WillReturnRows(eventRows("e1"))

	_, err = f.svc.SetStatus(ctx, "e1", StatusApproved)
	require.NoError(t, err)

	f.mock.ExpectQuery(`ORDER BY e.created_at DESC`).WillReturnRows(eventRows("e1", "e2"))

	third, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, third, 2)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreate(t *testing.T) {
	date := time.Date(2026, 11, 1, 18, 0, 0, 0, time.UTC)

	t.Run("inserts a pending event", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectExec(`INSERT INTO events`).
			WithArgs(sqlmock.AnyArg(), testClubID, "Open night", "", date, "Hall", DefaultImage, 1, "u1", "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectQuery(`WHERE e.id = \$1`).WillReturnRows(eventRows("e1"))

		e, err := f.svc.Create(context.Background(), "u1", CreateEventRequest{
			ClubID: testClubID, Title: "Open night", Date: date, Location: "Hall", MaxParticipants: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, StatusPending, e.Status)
		assert.Equal(t, float64(1), f.invalidations())
		require.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("unknown club", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectExec(`INSERT INTO events`).
			WillReturnError(&pq.Error{Code: postgres.CodeForeignKeyViolation})

		_, err := f.svc.Create(context.Background(), "u1", CreateEventRequest{
			ClubID: testClubID, Title: "Open night", Date: date,
		})
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t)

		tests := []CreateEventRequest{
			{ClubID: "nope", Title: "x", Date: date},
			{ClubID: testClubID, Date: date},
			{ClubID: testClubID, Title: "x"},
			{ClubID: testClubID, Title: "x", Date: date, MaxParticipants: -1},
		}
		for _, req := range tests {
			_, err := f.svc.Create(context.Background(), "u1", req)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		}
		require.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(`WHERE e.id = \$1`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := f.svc.Get(context.Background(), "missing")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	title := "Finals"
	status := Status("Approved")

	f.mock.ExpectExec(`UPDATE events SET`).
		WithArgs("e1", title, nil, nil, nil, nil, nil, "approved").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery(`WHERE e.id = \$1`).WillReturnRows(eventRows("e1"))

	_, err := f.svc.Update(context.Background(), "e1", UpdateEventRequest{Title: &title, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, float64(1), f.invalidations())

	f.mock.ExpectExec(`UPDATE events SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = f.svc.Update(context.Background(), "missing", UpdateEventRequest{Title: &title})
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	bad := Status("cancelled")
	_, err = f.svc.Update(context.Background(), "e1", UpdateEventRequest{Status: &bad})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectExec(`DELETE FROM events WHERE id = \$1`).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, f.svc.Delete(context.Background(), "e1"))
	assert.Equal(t, float64(1), f.invalidations())

	f.mock.ExpectExec(`DELETE FROM events WHERE id = \$1`).
		WithArgs("e2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := f.svc.Delete(context.Background(), "e2")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	require.NoError(t, f.mock.ExpectationsWereMet())
}
