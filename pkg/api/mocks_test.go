package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/clubhub/pkg/announcements"
	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/audit"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/clubs"
	"github.com/platinummonkey/clubhub/pkg/events"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/platinummonkey/clubhub/pkg/middleware"
	"github.com/platinummonkey/clubhub/pkg/observability"
	"github.com/platinummonkey/clubhub/pkg/storage"
	"github.com/platinummonkey/clubhub/pkg/users"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret-with-at-least-32-bytes!!"

	clubA   = "0a4c3ef1-8f2c-4b8e-9d6e-1f2a3b4c5d01"
	clubB   = "0a4c3ef1-8f2c-4b8e-9d6e-1f2a3b4c5d02"
	eventE  = "1b5d4f02-9a3d-4c9f-8e7f-2a3b4c5d6e01"
	userA   = "2c6e5a13-ab4e-4da0-9f80-3b4c5d6e7f01"
	userB   = "2c6e5a13-ab4e-4da0-9f80-3b4c5d6e7f02"
	adminID = "2c6e5a13-ab4e-4da0-9f80-3b4c5d6e7f03"
	clubMgr = "2c6e5a13-ab4e-4da0-9f80-3b4c5d6e7f04"
)

// mockUserService is a mock implementation of users.Service for testing
type mockUserService struct {
	createFunc         func(ctx context.Context, req users.CreateUserRequest) (*users.User, error)
	registerFunc       func(ctx context.Context, req users.CreateUserRequest) (*users.User, error)
	getFunc            func(ctx context.Context, id string) (*users.User, error)
	listFunc           func(ctx context.Context, filter httputil.Filter) ([]*users.User, int, error)
	updateFunc         func(ctx context.Context, id string, req users.UpdateUserRequest) (*users.User, error)
	deleteFunc         func(ctx context.Context, id string) error
	authenticateFunc   func(ctx context.Context, email, password string) (*users.User, error)
	changePasswordFunc func(ctx context.Context, id, current, next string) error
	loadPrincipalFunc  func(ctx context.Context, userID string) (*auth.Principal, error)
}

func (m *mockUserService) Create(ctx context.Context, req users.CreateUserRequest) (*users.User, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return &users.User{ID: userA, Name: req.Name, Email: req.Email, Role: req.Role}, nil
}

func (m *mockUserService) Register(ctx context.Context, req users.CreateUserRequest) (*users.User, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, req)
	}
	return &users.User{ID: userA, Name: req.Name, Email: req.Email, Role: auth.RoleStudent}, nil
}

func (m *mockUserService) Get(ctx context.Context, id string) (*users.User, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &users.User{ID: id, Name: "User", Email: "user@example.edu", Role: auth.RoleStudent}, nil
}

func (m *mockUserService) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return nil, apperrors.NotFound("user not found")
}

func (m *mockUserService) List(ctx context.Context, filter httputil.Filter) ([]*users.User, int, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return []*users.User{}, 0, nil
}

func (m *mockUserService) Update(ctx context.Context, id string, req users.UpdateUserRequest) (*users.User, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, req)
	}
	return &users.User{ID: id}, nil
}

func (m *mockUserService) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockUserService) Authenticate(ctx context.Context, email, password string) (*users.User, error) {
	if m.authenticateFunc != nil {
		return m.authenticateFunc(ctx, email, password)
	}
	return nil, apperrors.Unauthenticated("invalid credentials")
}

func (m *mockUserService) ChangePassword(ctx context.Context, id, current, next string) error {
	if m.changePasswordFunc != nil {
		return m.changePasswordFunc(ctx, id, current, next)
	}
	return nil
}

func (m *mockUserService) LoadPrincipal(ctx context.Context, userID string) (*auth.Principal, error) {
	if m.loadPrincipalFunc != nil {
		return m.loadPrincipalFunc(ctx, userID)
	}
	return nil, apperrors.NotFound("user not found")
}

func (m *mockUserService) EnsureAdmin(ctx context.Context, req users.CreateUserRequest) (*users.User, error) {
	return &users.User{ID: adminID, Email: req.Email, Role: auth.RoleAdmin}, nil
}

// mockClubService is a mock implementation of clubs.Service for testing
type mockClubService struct {
	listFunc             func(ctx context.Context) ([]*clubs.Club, error)
	createFunc           func(ctx context.Context, creatorID string, req clubs.CreateClubRequest) (*clubs.Club, error)
	getFunc              func(ctx context.Context, id string) (*clubs.ClubDetail, error)
	updateFunc           func(ctx context.Context, id string, req clubs.UpdateClubRequest) (*clubs.Club, error)
	deleteFunc           func(ctx context.Context, id string) error
	requestJoinFunc      func(ctx context.Context, userID, clubID string) (*clubs.Membership, error)
	reviewJoinFunc       func(ctx context.Context, clubID, userID string, decision clubs.MembershipStatus) (*clubs.Membership, error)
	promoteToAdminFunc   func(ctx context.Context, clubID, userID string) (*clubs.Membership, error)
	listMembersFunc      func(ctx context.Context, clubID string) ([]*clubs.Member, error)
	listClubRequestsFunc func(ctx context.Context, clubID string, filter httputil.Filter) ([]*clubs.Member, int, error)
	listUserRequestsFunc func(ctx context.Context, userID string, filter httputil.Filter) ([]*clubs.JoinRequest, int, error)
}

func (m *mockClubService) List(ctx context.Context) ([]*clubs.Club, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return []*clubs.Club{}, nil
}

func (m *mockClubService) Create(ctx context.Context, creatorID string, req clubs.CreateClubRequest) (*clubs.Club, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, creatorID, req)
	}
	return &clubs.Club{ID: clubA, Name: req.Name, CreatedBy: creatorID}, nil
}

func (m *mockClubService) Get(ctx context.Context, id string) (*clubs.ClubDetail, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &clubs.ClubDetail{Club: &clubs.Club{ID: id}}, nil
}

func (m *mockClubService) Update(ctx context.Context, id string, req clubs.UpdateClubRequest) (*clubs.Club, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, req)
	}
	return &clubs.Club{ID: id}, nil
}

func (m *mockClubService) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockClubService) RequestJoin(ctx context.Context, userID, clubID string) (*clubs.Membership, error) {
	if m.requestJoinFunc != nil {
		return m.requestJoinFunc(ctx, userID, clubID)
	}
	return &clubs.Membership{UserID: userID, ClubID: clubID, Role: auth.RoleStudent, Status: clubs.StatusPending}, nil
}

func (m *mockClubService) ReviewJoin(ctx context.Context, clubID, userID string, decision clubs.MembershipStatus) (*clubs.Membership, error) {
	if m.reviewJoinFunc != nil {
		return m.reviewJoinFunc(ctx, clubID, userID, decision)
	}
	return &clubs.Membership{UserID: userID, ClubID: clubID, Role: auth.RoleMember, Status: decision}, nil
}

func (m *mockClubService) PromoteToAdmin(ctx context.Context, clubID, userID string) (*clubs.Membership, error) {
	if m.promoteToAdminFunc != nil {
		return m.promoteToAdminFunc(ctx, clubID, userID)
	}
	return &clubs.Membership{UserID: userID, ClubID: clubID, Role: auth.RoleAdminMember, Status: clubs.StatusApproved}, nil
}

func (m *mockClubService) ListMembers(ctx context.Context, clubID string) ([]*clubs.Member, error) {
	if m.listMembersFunc != nil {
		return m.listMembersFunc(ctx, clubID)
	}
	return []*clubs.Member{}, nil
}

func (m *mockClubService) ListClubRequests(ctx context.Context, clubID string, filter httputil.Filter) ([]*clubs.Member, int, error) {
	if m.listClubRequestsFunc != nil {
		return m.listClubRequestsFunc(ctx, clubID, filter)
	}
	return nil, 0, nil
}

func (m *mockClubService) ListUserRequests(ctx context.Context, userID string, filter httputil.Filter) ([]*clubs.JoinRequest, int, error) {
	if m.listUserRequestsFunc != nil {
		return m.listUserRequestsFunc(ctx, userID, filter)
	}
	return nil, 0, nil
}

// mockEventService is a mock implementation of events.Service for testing
type mockEventService struct {
	listFunc                   func(ctx context.Context) ([]*events.Event, error)
	createFunc                 func(ctx context.Context, creatorID string, req events.CreateEventRequest) (*events.Event, error)
	getFunc                    func(ctx context.Context, id string) (*events.Event, error)
	updateFunc                 func(ctx context.Context, id string, req events.UpdateEventRequest) (*events.Event, error)
	deleteFunc                 func(ctx context.Context, id string) error
	setStatusFunc              func(ctx context.Context, id string, status events.Status) (*events.Event, error)
	registerFunc               func(ctx context.Context, userID, eventID string) (*events.Registration, error)
	reviewFunc                 func(ctx context.Context, eventID, userID string, decision events.Status) (*events.Registration, error)
	listEventRegistrationsFunc func(ctx context.Context, eventID string, filter httputil.Filter) ([]*events.Registrant, int, error)
	listUserRegistrationsFunc  func(ctx context.Context, userID string, filter httputil.Filter) ([]*events.UserRegistration, int, error)
}

func (m *mockEventService) List(ctx context.Context) ([]*events.Event, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return []*events.Event{}, nil
}

func (m *mockEventService) Create(ctx context.Context, creatorID string, req events.CreateEventRequest) (*events.Event, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, creatorID, req)
	}
	return &events.Event{ID: eventE, ClubID: req.ClubID, Title: req.Title, CreatedBy: creatorID}, nil
}

func (m *mockEventService) Get(ctx context.Context, id string) (*events.Event, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &events.Event{ID: id, ClubID: clubA, Title: "Match"}, nil
}

func (m *mockEventService) Update(ctx context.Context, id string, req events.UpdateEventRequest) (*events.Event, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, req)
	}
	return &events.Event{ID: id, ClubID: clubA}, nil
}

func (m *mockEventService) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockEventService) SetStatus(ctx context.Context, id string, status events.Status) (*events.Event, error) {
	if m.setStatusFunc != nil {
		return m.setStatusFunc(ctx, id, status)
	}
	return &events.Event{ID: id, ClubID: clubA, Status: status}, nil
}

func (m *mockEventService) Register(ctx context.Context, userID, eventID string) (*events.Registration, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, userID, eventID)
	}
	return &events.Registration{EventID: eventID, UserID: userID, Status: events.StatusPending}, nil
}

func (m *mockEventService) Review(ctx context.Context, eventID, userID string, decision events.Status) (*events.Registration, error) {
	if m.reviewFunc != nil {
		return m.reviewFunc(ctx, eventID, userID, decision)
	}
	return &events.Registration{EventID: eventID, UserID: userID, Status: decision}, nil
}

func (m *mockEventService) ListEventRegistrations(ctx context.Context, eventID string, filter httputil.Filter) ([]*events.Registrant, int, error) {
	if m.listEventRegistrationsFunc != nil {
		return m.listEventRegistrationsFunc(ctx, eventID, filter)
	}
	return nil, 0, nil
}

func (m *mockEventService) ListUserRegistrations(ctx context.Context, userID string, filter httputil.Filter) ([]*events.UserRegistration, int, error) {
	if m.listUserRegistrationsFunc != nil {
		return m.listUserRegistrationsFunc(ctx, userID, filter)
	}
	return nil, 0, nil
}

// mockAnnouncementService is a mock implementation of announcements.Service for testing
type mockAnnouncementService struct {
	listFunc   func(ctx context.Context, clubID string) ([]*announcements.Announcement, error)
	createFunc func(ctx context.Context, clubID, authorID string, req announcements.CreateRequest) (*announcements.Announcement, error)
	deleteFunc func(ctx context.Context, clubID, id string) error
}

func (m *mockAnnouncementService) List(ctx context.Context, clubID string) ([]*announcements.Announcement, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, clubID)
	}
	return []*announcements.Announcement{}, nil
}

func (m *mockAnnouncementService) Create(ctx context.Context, clubID, authorID string, req announcements.CreateRequest) (*announcements.Announcement, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, clubID, authorID, req)
	}
	return &announcements.Announcement{ClubID: clubID, Title: req.Title, CreatedBy: authorID}, nil
}

func (m *mockAnnouncementService) Delete(ctx context.Context, clubID, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, clubID, id)
	}
	return nil
}

// recordingAudit collects the audit events the server records
type recordingAudit struct {
	mu     sync.Mutex
	events []*audit.AuditEvent
}

func (a *recordingAudit) Log(_ context.Context, event *audit.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *recordingAudit) Close() error { return nil }

func (a *recordingAudit) recorded() []*audit.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*audit.AuditEvent(nil), a.events...)
}

// mockAuditStore is a mock implementation of audit.Store for testing
type mockAuditStore struct {
	searchFunc func(ctx context.Context, filter audit.SearchFilter) ([]*audit.AuditEvent, int, error)
	filters    []audit.SearchFilter
}

func (m *mockAuditStore) Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.AuditEvent, int, error) {
	m.filters = append(m.filters, filter)
	if m.searchFunc != nil {
		return m.searchFunc(ctx, filter)
	}
	return []*audit.AuditEvent{}, 0, nil
}

func (m *mockAuditStore) Cleanup(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// harness is a server over mocks with a real token manager
type harness struct {
	t             *testing.T
	users         *mockUserService
	clubs         *mockClubService
	events        *mockEventService
	announcements *mockAnnouncementService
	tokens        *auth.TokenManager
	metrics       *observability.Metrics
	principals    map[string]*auth.Principal
	limiter       middleware.Limiter
	clubService   clubs.Service
	images        *storage.Images
	audit         *recordingAudit
	auditStore    audit.Store
	srv           *Server
}

type harnessOption func(*harness)

func withLimiter(l middleware.Limiter) harnessOption {
	return func(h *harness) { h.limiter = l }
}

// withImages enables the image routes over the given store
func withImages(images *storage.Images) harnessOption {
	return func(h *harness) { h.images = images }
}

// withAuditStore enables the audit routes over store
func withAuditStore(store audit.Store) harnessOption {
	return func(h *harness) { h.auditStore = store }
}

// withClubService replaces the club mock, e.g. with a real service over sqlmock
func withClubService(svc clubs.Service) harnessOption {
	return func(h *harness) { h.clubService = svc }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		t:             t,
		users:         &mockUserService{},
		clubs:         &mockClubService{},
		events:        &mockEventService{},
		announcements: &mockAnnouncementService{},
		metrics:       observability.NewNopMetrics(),
		principals:    map[string]*auth.Principal{},
		audit:         &recordingAudit{},
	}
	for _, opt := range opts {
		opt(h)
	}

	h.tokens = auth.NewTokenManager(auth.TokenConfig{
		Secret:     testSecret,
		Issuer:     "clubhub-test",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, auth.NewMemoryRevocationStore(24 * time.Hour))

	h.users.loadPrincipalFunc = func(_ context.Context, userID string) (*auth.Principal, error) {
		p, ok := h.principals[userID]
		if !ok {
			return nil, apperrors.NotFound("user not found")
		}
		copied := *p
		return &copied, nil
	}

	h.srv = h.build()
	return h
}

func (h *harness) build() *Server {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var clubService clubs.Service = h.clubs
	if h.clubService != nil {
		clubService = h.clubService
	}

	return NewServer(Dependencies{
		Users:          h.users,
		Clubs:          clubService,
		Events:         h.events,
		Announcements:  h.announcements,
		Tokens:         h.tokens,
		Images:         h.images,
		Audit:          h.audit,
		AuditStore:     h.auditStore,
		Limiter:        h.limiter,
		Metrics:        h.metrics,
		Logger:         logger,
		AllowedOrigins: []string{"http://localhost:5173"},
	})
}

// as registers a principal and returns an access token for it
func (h *harness) as(p *auth.Principal) string {
	h.t.Helper()
	h.principals[p.UserID] = p
	pair, err := h.tokens.IssuePair(p.UserID)
	require.NoError(h.t, err)
	return pair.AccessToken
}

func (h *harness) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	decode(t, w, &body)
	return body.Error
}

func student(id string, memberships ...auth.Membership) *auth.Principal {
	return &auth.Principal{UserID: id, Email: id + "@example.edu", Role: auth.RoleStudent, Memberships: memberships}
}

func admin() *auth.Principal {
	return &auth.Principal{UserID: adminID, Email: "admin@example.edu", Role: auth.RoleAdmin}
}

func clubAdminOf(clubID string) *auth.Principal {
	return &auth.Principal{
		UserID: clubMgr,
		Email:  "manager@example.edu",
		Role:   auth.RoleMember,
		Memberships: []auth.Membership{
			{ClubID: clubID, Role: auth.RoleAdminMember, Status: string(clubs.StatusApproved)},
		},
	}
}
