package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Storage is implemented by the S3 and local backends.
type Storage interface {
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	GetURL(key string) string
}

// Config selects and configures a backend.
type Config struct {
	Driver string // "s3" or "local"

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string

	LocalPath string
	LocalURL  string
}

// New builds the backend named by cfg.Driver.
func New(cfg Config) (Storage, error) {
	switch strings.ToLower(cfg.Driver) {
	case "s3":
		return NewS3Storage(cfg)
	case "local", "":
		return NewLocalStorage(cfg.LocalPath, cfg.LocalURL)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}
