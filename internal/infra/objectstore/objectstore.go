// Package objectstore defines the object storage capability surface used
// by the crawl handler to persist article JSON/text/PDF output (spec §4.6,
// grounded on core/s3_utils.py's AsyncBoto3S3).
package objectstore

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a stored object without fetching its body.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// Store is the capability surface for object storage.
type Store interface {
	PutBytes(ctx context.Context, key string, body []byte, contentType string) error
	GetBytes(ctx context.Context, key string) ([]byte, error)
	GetRange(ctx context.Context, key string, offset, length int64) ([]byte, error)
	Head(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	DeleteBatch(ctx context.Context, keys []string) error
	// ListPrefix streams object keys under prefix to yield, stopping and
	// returning yield's error if it returns one.
	ListPrefix(ctx context.Context, prefix string, yield func(ObjectInfo) error) error
	Copy(ctx context.Context, srcKey, dstKey string) error
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
	PresignPut(ctx context.Context, key string, expires time.Duration) (string, error)
}

// ReaderStore is an optional extension for streaming large uploads, kept
// separate so the basic Store surface above stays small.
type ReaderStore interface {
	PutReader(ctx context.Context, key string, body io.Reader, contentType string) error
}
