// Package storage holds uploaded media on an asset host.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Storage stores and removes media objects.
type Storage interface {
	// Upload stores data under folder and returns the object's key and public URL.
	Upload(ctx context.Context, folder, filename, contentType string, data io.Reader) (*Object, error)

	// Delete removes an object by key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteMany removes every object in keys.
	DeleteMany(ctx context.Context, keys []string) error
}

// Object is a stored file.
type Object struct {
	Key string
	URL string
}

// Driver represents the storage backend type.
type Driver string

const (
	DriverLocal Driver = "local"
	DriverS3    Driver = "s3"
)

// Config holds configuration for storage.
type Config struct {
	Driver Driver

	// S3
	S3Bucket        string
	S3Region        string
	S3Endpoint      string // S3-compatible hosts (MinIO, R2); enables path-style addressing
	S3PublicBaseURL string
	AWSAccessKey    string
	AWSSecretKey    string

	// Local
	LocalDir     string
	LocalBaseURL string
}

// New creates a storage backend based on configuration.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Driver {
	case DriverLocal:
		return NewLocal(cfg.LocalDir, cfg.LocalBaseURL)
	case DriverS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required for s3 storage")
		}
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// objectKey builds a unique key under folder that keeps the original extension.
func objectKey(folder, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	name = strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "_")
	if name == "" {
		name = "file"
	}
	ext = unsafeChars.ReplaceAllString(strings.ToLower(ext), "")

	folder = strings.Trim(folder, "/")
	key := fmt.Sprintf("%s_%s%s", uuid.NewString(), name, ext)
	if folder == "" {
		return key
	}
	return folder + "/" + key
}

// joinURL appends a key to a base URL.
func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
