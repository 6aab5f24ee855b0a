package minio

import (
	"context"
	"fmt"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage holds source videos and the temporary segment clips cut from them.
// Object URIs follow the storage://bucket/key scheme.
type Storage struct {
	client     *miniogo.Client
	clipBucket string
	clipPrefix string
}

type StorageConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
	ClipBucket string
	ClipPrefix string
}

const uriScheme = "storage://"

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Storage{
		client:     client,
		clipBucket: cfg.ClipBucket,
		clipPrefix: strings.Trim(cfg.ClipPrefix, "/"),
	}, nil
}

// EnsureClipBucket creates the temp clip bucket if missing.
func (s *Storage) EnsureClipBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.clipBucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.clipBucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.clipBucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.clipBucket, err)
		}
	}
	return nil
}

// ParseURI splits storage://bucket/key into its parts.
func ParseURI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, uriScheme) {
		return "", "", fmt.Errorf("invalid storage uri %q: missing %s prefix", uri, uriScheme)
	}
	rest := strings.TrimPrefix(uri, uriScheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid storage uri %q", uri)
	}
	return bucket, key, nil
}

// ValidURI reports whether the reference looks like a storage object URI.
// Submission validation only; reachability is checked by the download.
func ValidURI(uri string) bool {
	_, _, err := ParseURI(uri)
	return err == nil
}

func (s *Storage) DownloadVideo(ctx context.Context, videoURI string, destPath string) error {
	bucket, key, err := ParseURI(videoURI)
	if err != nil {
		return err
	}
	if err := s.client.FGetObject(ctx, bucket, key, destPath, miniogo.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s: %w", videoURI, err)
	}
	return nil
}

// UploadClip stores a cut segment clip under the temp prefix and returns its URI.
func (s *Storage) UploadClip(ctx context.Context, objectKey string, localPath string) (string, error) {
	key := s.clipPrefix + "/" + strings.TrimPrefix(objectKey, "/")
	_, err := s.client.FPutObject(ctx, s.clipBucket, key, localPath, miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		return "", fmt.Errorf("upload clip %s: %w", key, err)
	}
	return uriScheme + s.clipBucket + "/" + key, nil
}

func (s *Storage) DeleteClip(ctx context.Context, clipURI string) error {
	bucket, key, err := ParseURI(clipURI)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete clip %s: %w", clipURI, err)
	}
	return nil
}
