package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"assetflow/internal/config"
)

// MinIO implements Backend with minio-go's low level multipart API.
type MinIO struct {
	core   *minio.Core
	bucket string
}

// NewMinIO builds a client for the configured endpoint and bucket. No network
// call is made until the first operation.
func NewMinIO(cfg config.Storage) (*MinIO, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("objectstore: endpoint and bucket are required")
	}
	core, err := minio.NewCore(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: init client: %w", err)
	}
	return &MinIO{core: core, bucket: cfg.Bucket}, nil
}

// Bucket returns the target bucket name.
func (m *MinIO) Bucket() string {
	return m.bucket
}

// BucketExists reports whether the configured bucket is reachable and present.
func (m *MinIO) BucketExists(ctx context.Context) (bool, error) {
	exists, err := m.core.BucketExists(ctx, m.bucket)
	if err != nil {
		return false, fmt.Errorf("objectstore: check bucket %q: %w", m.bucket, err)
	}
	return exists, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinIO) EnsureBucket(ctx context.Context, region string) error {
	exists, err := m.core.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("objectstore: check bucket %q: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.core.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("objectstore: create bucket %q: %w", m.bucket, err)
	}
	return nil
}

func (m *MinIO) Begin(ctx context.Context, key, contentType string) (string, error) {
	uploadID, err := m.core.NewMultipartUpload(ctx, m.bucket, key, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("objectstore: begin multipart upload %q: %w", key, err)
	}
	return uploadID, nil
}

func (m *MinIO) PartURL(ctx context.Context, key, uploadID string, partNumber int, ttl time.Duration) (*url.URL, error) {
	params := url.Values{}
	params.Set("partNumber", strconv.Itoa(partNumber))
	params.Set("uploadId", uploadID)
	u, err := m.core.Presign(ctx, "PUT", m.bucket, key, ttl, params)
	if err != nil {
		return nil, fmt.Errorf("objectstore: presign part %d of %q: %w", partNumber, key, err)
	}
	return u, nil
}

func (m *MinIO) Finish(ctx context.Context, key, uploadID string, parts []CompletedPart) error {
	complete := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		complete = append(complete, minio.CompletePart{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	sort.Slice(complete, func(i, j int) bool { return complete[i].PartNumber < complete[j].PartNumber })
	_, err := m.core.CompleteMultipartUpload(ctx, m.bucket, key, uploadID, complete, minio.PutObjectOptions{})
	if err == nil {
		return nil
	}
	// A retry after an earlier successful completion finds the upload gone
	// and the object in place.
	if minio.ToErrorResponse(err).Code == "NoSuchUpload" {
		if _, statErr := m.core.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); statErr == nil {
			return nil
		}
	}
	return fmt.Errorf("objectstore: complete multipart upload %q: %w", key, err)
}

func (m *MinIO) Abort(ctx context.Context, key, uploadID string) error {
	if err := m.core.AbortMultipartUpload(ctx, m.bucket, key, uploadID); err != nil {
		return fmt.Errorf("objectstore: abort multipart upload %q: %w", key, err)
	}
	return nil
}
