package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no object exists under a key
var ErrNotFound = errors.New("object not found")

// BlobStore holds uploaded images under slash-separated keys such as
// "clubs/3f1c....png"
type BlobStore interface {
	Put(ctx context.Context, key string, content io.Reader, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	HealthCheck(ctx context.Context) error
}

// Object is an open blob; callers must close Body
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Backend names
const (
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
)

// Config for the image storage backend
type Config struct {
	Backend string `yaml:"backend"`

	// Filesystem config
	FilesystemRoot string `yaml:"filesystem_root"`

	// S3 config
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3Region       string `yaml:"s3_region"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`

	// MaxImageBytes bounds a single upload
	MaxImageBytes int64 `yaml:"max_image_bytes"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Backend:        BackendFilesystem,
		FilesystemRoot: "./data/images",
		S3Region:       "us-east-1",
		MaxImageBytes:  2 << 20,
	}
}

// Open returns the BlobStore selected by cfg.Backend
func Open(ctx context.Context, cfg Config) (BlobStore, error) {
	switch cfg.Backend {
	case "", BackendFilesystem:
		return NewFileSystemStore(cfg.FilesystemRoot)
	case BackendS3:
		return NewS3Store(ctx, cfg)
	default:
		return nil, errors.New("unknown storage backend: " + cfg.Backend)
	}
}
