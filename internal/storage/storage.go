// Package storage talks to the S3-compatible object store that holds
// the original photo files. The API layer never proxies file bytes on
// upload; clients PUT directly against presigned URLs and the server
// only moves, stats and deletes objects.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/duckgeunpark/IWT/internal/config"
)

// DefaultUploadExpiry bounds how long a presigned upload URL stays valid.
const DefaultUploadExpiry = time.Hour

// FileInfo describes a stored object.
type FileInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	LastModified time.Time `json:"last_modified"`
}

// Client wraps a MinIO client bound to a single bucket.
type Client struct {
	mc     *minio.Client
	bucket string
}

// NewClient creates a storage client from configuration. It validates
// the settings but does not dial the endpoint; connectivity problems
// surface on the first operation.
func NewClient(cfg *config.StorageConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("storage credentials are required")
	}

	// minio wants a bare host, not a URL
	endpoint := strings.TrimPrefix(cfg.Endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	mc, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &Client{mc: mc, bucket: cfg.Bucket}, nil
}

// PresignUpload returns a URL the client can PUT the object bytes to.
func (c *Client) PresignUpload(ctx context.Context, key string, expiry time.Duration) (*url.URL, error) {
	if expiry <= 0 {
		expiry = DefaultUploadExpiry
	}

	u, err := c.mc.PresignedPutObject(ctx, c.bucket, key, expiry)
	if err != nil {
		return nil, fmt.Errorf("presign upload for %s: %w", key, err)
	}

	return u, nil
}

// Exists reports whether an object is present under the given key.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.mc.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object %s: %w", key, err)
	}

	return true, nil
}

// FileInfo returns metadata for a stored object, or nil when the key
// does not exist.
func (c *Client) FileInfo(ctx context.Context, key string) (*FileInfo, error) {
	stat, err := c.mc.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat object %s: %w", key, err)
	}

	return &FileInfo{
		Key:          key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		LastModified: stat.LastModified,
	}, nil
}

// Finalize moves an uploaded object from its temp key to its permanent
// key. S3 has no rename, so this is a server-side copy followed by a
// delete of the source.
func (c *Client) Finalize(ctx context.Context, tempKey, permanentKey string) error {
	src := minio.CopySrcOptions{
		Bucket: c.bucket,
		Object: tempKey,
	}
	dst := minio.CopyDestOptions{
		Bucket: c.bucket,
		Object: permanentKey,
	}

	if _, err := c.mc.CopyObject(ctx, dst, src); err != nil {
		return fmt.Errorf("copy %s to %s: %w", tempKey, permanentKey, err)
	}

	if err := c.mc.RemoveObject(ctx, c.bucket, tempKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove temp object %s: %w", tempKey, err)
	}

	return nil
}

// Download reads a whole object into memory. Photo originals are a few
// megabytes at most, so buffering is fine for the enrichment pipeline.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	// GetObject is lazy; missing keys surface here
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("object %s not found", key)
		}
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}

	return data, nil
}

// Delete removes an object. Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.mc.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}

	return nil
}

// Health verifies the bucket is reachable and exists.
func (c *Client) Health(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", c.bucket)
	}

	return nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}
