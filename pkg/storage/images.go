package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/platinummonkey/clubhub/pkg/apperrors"
	"github.com/sirupsen/logrus"
)

// Image folders, one per owning resource
const (
	FolderClubs  = "clubs"
	FolderEvents = "events"
	FolderUsers  = "users"
)

// imageTypes maps the accepted sniffed content types to file extensions
var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// Images validates uploads and stores them under generated keys
type Images struct {
	store    BlobStore
	maxBytes int64
	logger   logrus.FieldLogger
}

// NewImages creates an image service over store
func NewImages(store BlobStore, maxBytes int64, logger logrus.FieldLogger) *Images {
	if maxBytes <= 0 {
		maxBytes = DefaultConfig().MaxImageBytes
	}
	return &Images{store: store, maxBytes: maxBytes, logger: logger.WithField("component", "images")}
}

// MaxBytes is the largest accepted upload
func (i *Images) MaxBytes() int64 {
	return i.maxBytes
}

// Upload checks that r holds a JPEG, PNG or GIF within the size limit and
// stores it in folder. It returns the new key.
func (i *Images) Upload(ctx context.Context, folder string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, i.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return "", apperrors.Validation("image is required")
	}
	if int64(len(data)) > i.maxBytes {
		return "", apperrors.Validation(fmt.Sprintf("image must not be greater than %d kilobytes", (i.maxBytes+1023)/1024))
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageTypes[contentType]
	if !ok {
		return "", apperrors.Validation("image must be a jpeg, png or gif")
	}

	key := folder + "/" + uuid.NewString() + ext
	if err := i.store.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", err
	}

	i.logger.WithFields(logrus.Fields{"key": key, "bytes": len(data)}).Debug("Image stored")
	return key, nil
}

// Open returns the stored image for key
func (i *Images) Open(ctx context.Context, key string) (*Object, error) {
	obj, err := i.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, apperrors.NotFound("image not found")
	}
	return obj, err
}

// Replace drops a previous upload once a new key is in place. Default images
// and foreign keys are never deleted, and failures are only logged.
func (i *Images) Replace(ctx context.Context, previous, current string) {
	if previous == "" || previous == current || strings.HasSuffix(previous, "/default.png") {
		return
	}
	i.Discard(ctx, previous)
}

// Discard deletes an upload that was never attached to a resource
func (i *Images) Discard(ctx context.Context, key string) {
	if err := i.store.Delete(ctx, key); err != nil {
		i.logger.WithError(err).WithField("key", key).Warn("Failed to delete image")
	}
}
