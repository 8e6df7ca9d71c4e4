package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/platinummonkey/clubhub/pkg/announcements"
	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/clubs"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListClubs(t *testing.T) {
	h := newHarness(t)
	h.clubs.listFunc = func(context.Context) ([]*clubs.Club, error) {
		return []*clubs.Club{{ID: clubA, Name: "Chess"}, {ID: clubB, Name: "Rowing"}}, nil
	}

	w := h.do(http.MethodGet, "/clubs", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list []*clubs.Club
	decode(t, w, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "Chess", list[0].Name)
}

func TestCreateClub(t *testing.T) {
	h := newHarness(t)

	var creator string
	h.clubs.createFunc = func(_ context.Context, creatorID string, req clubs.CreateClubRequest) (*clubs.Club, error) {
		creator = creatorID
		if req.Name == "Chess" {
			return nil, clubs.ErrDuplicateName
		}
		return &clubs.Club{ID: clubA, Name: req.Name, CreatedBy: creatorID, MembersCount: 1}, nil
	}

	w := h.do(http.MethodPost, "/clubs", "", clubs.CreateClubRequest{Name: "Rowing"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := h.as(student(userA))
	w = h.do(http.MethodPost, "/clubs", token, clubs.CreateClubRequest{Name: "Rowing"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, userA, creator)

	w = h.do(http.MethodPost, "/clubs", token, clubs.CreateClubRequest{Name: "Chess"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "the club name has already been taken", errorMessage(t, w))
}

func TestGetClub(t *testing.T) {
	h := newHarness(t)
	h.clubs.getFunc = func(_ context.Context, id string) (*clubs.ClubDetail, error) {
		if id != clubA {
			return nil, apperrors.NotFound("club not found")
		}
		return &clubs.ClubDetail{
			Club:    &clubs.Club{ID: clubA, Name: "Chess"},
			Members: []*clubs.Member{{UserID: userA, Role: auth.RoleMember, Status: clubs.StatusApproved}},
			Events:  []*clubs.EventSummary{},
		}, nil
	}

	w := h.do(http.MethodGet, "/clubs/"+clubA, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		ID      string          `json:"id"`
		Members []*clubs.Member `json:"members"`
	}
	decode(t, w, &detail)
	assert.Equal(t, clubA, detail.ID)
	assert.Len(t, detail.Members, 1)

	w = h.do(http.MethodGet, "/clubs/"+clubB, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodGet, "/clubs/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateClub_Authorization(t *testing.T) {
	tests := []struct {
		name      string
		principal *auth.Principal
		want      int
	}{
		{name: "global admin", principal: admin(), want: http.StatusOK},
		{name: "admin-member of the club", principal: clubAdminOf(clubA), want: http.StatusOK},
		{name: "admin-member of another club", principal: clubAdminOf(clubB), want: http.StatusForbidden},
		{
			name:      "approved member",
			principal: student(userA, auth.Membership{ClubID: clubA, Role: auth.RoleMember, Status: "approved"}),
			want:      http.StatusForbidden,
		},
		{name: "student without membership", principal: student(userA), want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			called := false
			h.clubs.updateFunc = func(_ context.Context, id string, _ clubs.UpdateClubRequest) (*clubs.Club, error) {
				called = true
				return &clubs.Club{ID: id}, nil
			}

			name := "Chess Club"
			w := h.do(http.MethodPut, "/clubs/"+clubA, h.as(tt.principal), clubs.UpdateClubRequest{Name: &name})
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Equal(t, tt.want == http.StatusOK, called)
		})
	}
}

func TestDeleteClub(t *testing.T) {
	h := newHarness(t)
	var deleted string
	h.clubs.deleteFunc = func(_ context.Context, id string) error {
		deleted = id
		return nil
	}

	w := h.do(http.MethodDelete, "/clubs/"+clubA, h.as(clubAdminOf(clubA)), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, clubA, deleted)

	w = h.do(http.MethodDelete, "/clubs/"+clubA, h.as(student(userA)), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestJoinClub(t *testing.T) {
	h := newHarness(t)
	var gotUser, gotClub string
	h.clubs.requestJoinFunc = func(_ context.Context, userID, clubID string) (*clubs.Membership, error) {
		gotUser, gotClub = userID, clubID
		return &clubs.Membership{UserID: userID, ClubID: clubID, Role: auth.RoleStudent, Status: clubs.StatusPending}, nil
	}

	w := h.do(http.MethodPost, "/clubs/join/"+clubA, h.as(student(userA)), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, userA, gotUser)
	assert.Equal(t, clubA, gotClub)

	var resp struct {
		Message string           `json:"message"`
		Data    clubs.Membership `json:"data"`
	}
	decode(t, w, &resp)
	assert.Equal(t, clubs.StatusPending, resp.Data.Status)
	assert.Equal(t, auth.RoleStudent, resp.Data.Role)
}

func TestReviewJoin(t *testing.T) {
	tests := []struct {
		name    string
		body    interface{}
		err     error
		want    int
		wantMsg string
	}{
		{name: "approve", body: ReviewRequest{UserID: userA, Status: "approved"}, want: http.StatusOK},
		{name: "reject", body: ReviewRequest{UserID: userA, Status: "REJECTED"}, want: http.StatusOK},
		{name: "pending is not a decision", body: ReviewRequest{UserID: userA, Status: "pending"}, want: http.StatusUnprocessableEntity},
		{name: "missing user", body: ReviewRequest{Status: "approved"}, want: http.StatusUnprocessableEntity},
		{name: "malformed user", body: ReviewRequest{UserID: "42", Status: "approved"}, want: http.StatusNotFound},
		{
			name:    "club full",
			body:    ReviewRequest{UserID: userA, Status: "approved"},
			err:     clubs.ErrClubFull,
			want:    http.StatusConflict,
			wantMsg: "club is full",
		},
		{
			name:    "already reviewed",
			body:    ReviewRequest{UserID: userA, Status: "approved"},
			err:     clubs.ErrAlreadyReviewed,
			want:    http.StatusConflict,
			wantMsg: "membership request has already been reviewed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			var gotDecision clubs.MembershipStatus
			h.clubs.reviewJoinFunc = func(_ context.Context, clubID, userID string, decision clubs.MembershipStatus) (*clubs.Membership, error) {
				gotDecision = decision
				if tt.err != nil {
					return nil, tt.err
				}
				return &clubs.Membership{UserID: userID, ClubID: clubID, Status: decision}, nil
			}

			w := h.do(http.MethodPost, "/clubs/"+clubA+"/approve-student", h.as(clubAdminOf(clubA)), tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, errorMessage(t, w))
			}
			if tt.name == "reject" {
				assert.Equal(t, clubs.StatusRejected, gotDecision)
			}
		})
	}
}

func TestReviewJoin_RequiresClubAdmin(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPost, "/clubs/"+clubA+"/approve-student", h.as(clubAdminOf(clubB)), ReviewRequest{UserID: userA, Status: "approved"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPromoteToAdmin(t *testing.T) {
	h := newHarness(t)
	h.clubs.promoteToAdminFunc = func(_ context.Context, clubID, userID string) (*clubs.Membership, error) {
		if userID == userB {
			return nil, apperrors.NotFound("membership not found")
		}
		return &clubs.Membership{UserID: userID, ClubID: clubID, Role: auth.RoleAdminMember}, nil
	}
	token := h.as(admin())

	w := h.do(http.MethodPut, "/clubs/"+clubA+"/admin", token, PromoteRequest{UserID: userA})
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodPut, "/clubs/"+clubA+"/admin", token, PromoteRequest{UserID: userB})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRequests(t *testing.T) {
	h := newHarness(t)
	var got httputil.Filter
	h.clubs.listClubRequestsFunc = func(_ context.Context, _ string, filter httputil.Filter) ([]*clubs.Member, int, error) {
		got = filter
		return []*clubs.Member{{UserID: userA, Status: clubs.StatusPending}}, 11, nil
	}
	token := h.as(clubAdminOf(clubA))

	w := h.do(http.MethodGet, "/clubs/"+clubA+"/requests?status=pending&page=2", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, httputil.Filter{Status: "pending", Page: 2, Limit: 10}, got)

	var page httputil.Paginated[*clubs.Member]
	decode(t, w, &page)
	assert.Len(t, page.Data, 1)
	assert.Equal(t, httputil.PageMeta{Page: 2, Limit: 10, Total: 11}, page.Meta)

	w = h.do(http.MethodGet, "/clubs/"+clubA+"/requests?status=unknown", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAnnouncements(t *testing.T) {
	h := newHarness(t)
	var author string
	h.announcements.createFunc = func(_ context.Context, clubID, authorID string, req announcements.CreateRequest) (*announcements.Announcement, error) {
		author = authorID
		if err := req.Validate(); err != nil {
			return nil, err
		}
		return &announcements.Announcement{ClubID: clubID, Title: req.Title, CreatedBy: authorID}, nil
	}
	var deletedFrom string
	h.announcements.deleteFunc = func(_ context.Context, clubID, _ string) error {
		deletedFrom = clubID
		return nil
	}

	w := h.do(http.MethodGet, "/clubs/"+clubA+"/announcements", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	manager := h.as(clubAdminOf(clubA))
	w = h.do(http.MethodPost, "/clubs/"+clubA+"/announcements", manager, announcements.CreateRequest{Title: "Tryouts", Content: "Friday"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, clubMgr, author)

	w = h.do(http.MethodPost, "/clubs/"+clubA+"/announcements", manager, announcements.CreateRequest{Title: "Tryouts"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = h.do(http.MethodPost, "/clubs/"+clubA+"/announcements", h.as(student(userA)), announcements.CreateRequest{Title: "Hi", Content: "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodDelete, "/clubs/"+clubA+"/announcements/"+eventE, manager, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, clubA, deletedFrom)
}
