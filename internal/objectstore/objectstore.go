// Package objectstore issues presigned multipart upload destinations against
// S3-compatible storage. Bytes never pass through assetflow; callers PUT each
// part directly to the returned URL.
package objectstore

import (
	"context"
	"net/url"
	"time"
)

// CompletedPart pairs a part number with the integrity token (ETag) the
// storage backend returned for it.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// Backend is the storage collaborator consumed by the upload manager.
type Backend interface {
	// Begin reserves a multipart upload for key and returns its upload id.
	Begin(ctx context.Context, key, contentType string) (string, error)
	// PartURL returns a time-limited destination for one part.
	PartURL(ctx context.Context, key, uploadID string, partNumber int, ttl time.Duration) (*url.URL, error)
	// Finish asks the backend to assemble the reported parts.
	Finish(ctx context.Context, key, uploadID string, parts []CompletedPart) error
	// Abort releases a multipart upload and its stored parts.
	Abort(ctx context.Context, key, uploadID string) error
}
