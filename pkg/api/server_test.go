package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/platinummonkey/clubhub/pkg/bus"
	"github.com/platinummonkey/clubhub/pkg/cache"
	"github.com/platinummonkey/clubhub/pkg/clubs"
	"github.com/platinummonkey/clubhub/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_OperationalRoutes(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	registry := prometheus.NewRegistry()
	srv := NewServer(Dependencies{
		Users:         &mockUserService{},
		Clubs:         &mockClubService{},
		Events:        &mockEventService{},
		Announcements: &mockAnnouncementService{},
		Health:        observability.NewHealthChecker(nil, nil, "test"),
		Registry:      registry,
		Metrics:       observability.NewMetrics(registry),
		Logger:        logger,
	})

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clubs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `clubhub_http_requests_total{method="GET",route="/clubs",status="200"} 1`)
}

func TestServer_NotFoundAndMethods(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", errorMessage(t, w))

	w = h.do(http.MethodPatch, "/clubs", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_CORS(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodOptions, "/clubs", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/clubs", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RejectsNonJSONBodies(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("email=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

// A club list is served from cache until a club write, and the next read
// after the write hits the database again.
func TestServer_ClubListCacheAfterWrite(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	metrics := observability.NewNopMetrics()
	c := cache.New(cache.NewMemoryStore(100, time.Minute), cache.Config{Enabled: true, TTL: time.Minute}, logger, metrics)

	h := newHarness(t, withClubService(clubs.NewPostgresService(db, c, bus.New(), metrics, logger)))
	token := h.as(student(userA))

	columns := []string{
		"id", "name", "description", "image", "category", "max_members",
		"created_by", "created_at", "updated_at", "members_count",
	}
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM clubs c ORDER BY c.created_at DESC`).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(clubA, "Chess", "", clubs.DefaultImage, "games", 0, adminID, now, now, 3))

	for i := 0; i < 2; i++ {
		w := h.do(http.MethodGet, "/clubs", "", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var list []*clubs.Club
		decode(t, w, &list)
		require.Len(t, list, 1)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO clubs`).
		WithArgs(sqlmock.AnyArg(), "Rowing", "", clubs.DefaultImage, "sports", 0, userA).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`INSERT INTO club_user`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := h.do(http.MethodPost, "/clubs", token, clubs.CreateClubRequest{Name: "Rowing", Category: "sports"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	mock.ExpectQuery(`FROM clubs c ORDER BY c.created_at DESC`).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(clubB, "Rowing", "", clubs.DefaultImage, "sports", 0, userA, now, now, 1).
			AddRow(clubA, "Chess", "", clubs.DefaultImage, "games", 0, adminID, now, now, 3))

	w = h.do(http.MethodGet, "/clubs", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []*clubs.Club
	decode(t, w, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "Rowing", list[0].Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}
