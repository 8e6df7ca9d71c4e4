package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/clubhub/pkg/auth"
	"github.com/platinummonkey/clubhub/pkg/clubs"
	"github.com/platinummonkey/clubhub/pkg/events"
	"github.com/platinummonkey/clubhub/pkg/httputil"
	"github.com/platinummonkey/clubhub/pkg/rbac"
	"github.com/platinummonkey/clubhub/pkg/storage"
	"github.com/platinummonkey/clubhub/pkg/users"
	"github.com/sirupsen/logrus"
)

// imageFormField is the multipart field carrying an upload
const imageFormField = "image"

// multipartOverhead is the room left for part headers and boundaries
const multipartOverhead = 64 << 10

var imageFolders = map[string]bool{
	storage.FolderClubs:  true,
	storage.FolderEvents: true,
	storage.FolderUsers:  true,
}

// ImageHandlers handles image uploads for clubs, events and users, and
// serves stored images
type ImageHandlers struct {
	images    *storage.Images
	clubs     clubs.Service
	events    events.Service
	users     users.Service
	resolver  *rbac.Resolver
	logger    logrus.FieldLogger
	authn     func(http.Handler) http.Handler
	clubAdmin func(http.Handler) http.Handler
}

// NewImageHandlers creates image handlers
func NewImageHandlers(images *storage.Images, clubService clubs.Service, eventService events.Service, userService users.Service, resolver *rbac.Resolver, logger logrus.FieldLogger, authn func(http.Handler) http.Handler) *ImageHandlers {
	return &ImageHandlers{
		images:    images,
		clubs:     clubService,
		events:    eventService,
		users:     userService,
		resolver:  resolver,
		logger:    logger,
		authn:     authn,
		clubAdmin: rbac.RequireRoles(resolver, logger, rbac.ClubVar("club"), auth.RoleAdmin, auth.RoleAdminMember),
	}
}

// MaxUploadBytes is the body limit for multipart requests
func (h *ImageHandlers) MaxUploadBytes() int64 {
	return h.images.MaxBytes() + multipartOverhead
}

// RegisterRoutes registers image routes
func (h *ImageHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/clubs/{club}/image", guarded(h.UploadClubImage, h.authn, h.clubAdmin)).Methods(http.MethodPut)
	router.Handle("/events/{event}/image", guarded(h.UploadEventImage, h.authn)).Methods(http.MethodPut)
	router.Handle("/users/{user}/image", guarded(h.UploadUserImage, h.authn)).Methods(http.MethodPut)
	router.HandleFunc("/images/{folder}/{name}", h.ServeImage).Methods(http.MethodGet)
}

// UploadClubImage handles PUT /clubs/{club}/image
func (h *ImageHandlers) UploadClubImage(w http.ResponseWriter, r *http.Request) {
	clubID, ok := httputil.ParsePathIDOrError(w, r, "club")
	if !ok {
		return
	}
	club, err := h.clubs.Get(r.Context(), clubID)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	key, ok := h.receive(w, r, storage.FolderClubs)
	if !ok {
		return
	}

	updated, err := h.clubs.Update(r.Context(), clubID, clubs.UpdateClubRequest{Image: &key})
	h.attach(r.Context(), w, club.Image, key, updated, err)
}

// UploadEventImage handles PUT /events/{event}/image
func (h *ImageHandlers) UploadEventImage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	eventID, ok := httputil.ParsePathIDOrError(w, r, "event")
	if !ok {
		return
	}
	event, err := h.events.Get(r.Context(), eventID)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	if _, err := h.resolver.Authorize(p, rbac.InClub(event.ClubID), auth.RoleAdmin, auth.RoleAdminMember); err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	key, ok := h.receive(w, r, storage.FolderEvents)
	if !ok {
		return
	}

	updated, err := h.events.Update(r.Context(), eventID, events.UpdateEventRequest{Image: &key})
	h.attach(r.Context(), w, event.Image, key, updated, err)
}

// UploadUserImage handles PUT /users/{user}/image
func (h *ImageHandlers) UploadUserImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathIDOrError(w, r, "user")
	if !ok {
		return
	}
	if _, ok := selfOrAdmin(w, r, userID); !ok {
		return
	}
	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}

	key, ok := h.receive(w, r, storage.FolderUsers)
	if !ok {
		return
	}

	updated, err := h.users.Update(r.Context(), userID, users.UpdateUserRequest{Image: &key})
	h.attach(r.Context(), w, user.Image, key, updated, err)
}

// ServeImage handles GET /images/{folder}/{name}
func (h *ImageHandlers) ServeImage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !imageFolders[vars["folder"]] {
		httputil.WriteNotFoundError(w, "image not found")
		return
	}

	obj, err := h.images.Open(r.Context(), vars["folder"]+"/"+vars["name"])
	if err != nil {
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.WithError(err).Debug("Image download interrupted")
	}
}

// receive streams the image part of a multipart body into storage
func (h *ImageHandlers) receive(w http.ResponseWriter, r *http.Request, folder string) (string, bool) {
	if !httputil.IsMultipart(r) {
		httputil.WriteValidationError(w, "image must be uploaded as multipart/form-data")
		return "", false
	}
	reader, err := r.MultipartReader()
	if err != nil {
		httputil.WriteValidationError(w, "malformed multipart body")
		return "", false
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			httputil.WriteValidationError(w, "image is required")
			return "", false
		}
		if err != nil {
			h.writeReadError(w, err)
			return "", false
		}
		if part.FormName() != imageFormField {
			continue
		}

		key, err := h.images.Upload(r.Context(), folder, part)
		if err != nil {
			h.writeReadError(w, err)
			return "", false
		}
		return key, true
	}
}

func (h *ImageHandlers) writeReadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		httputil.WriteValidationError(w, fmt.Sprintf("image must not be greater than %d kilobytes", (h.images.MaxBytes()+1023)/1024))
		return
	}
	httputil.WriteAppError(w, h.logger, err)
}

// attach finishes an upload: the new key is dropped if the owning row could
// not be updated, otherwise the previous image is
func (h *ImageHandlers) attach(ctx context.Context, w http.ResponseWriter, previous, key string, updated interface{}, err error) {
	if err != nil {
		h.images.Discard(ctx, key)
		httputil.WriteAppError(w, h.logger, err)
		return
	}
	h.images.Replace(ctx, previous, key)
	httputil.WriteSuccess(w, updated)
}
