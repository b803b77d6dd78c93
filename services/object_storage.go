package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStat describes an object without its content.
type ObjectStat struct {
	Size         int64
	LastModified time.Time
	ContentType  string
}

// ObjectInfo is one entry of a prefix listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ListOptions controls a prefix listing.
type ListOptions struct {
	Recursive         bool
	MaxKeys           int
	ContinuationToken string
}

// ObjectListing is one page of a prefix listing. ChildPrefixes holds the
// virtual sub-directories seen in a non-recursive listing.
type ObjectListing struct {
	Objects       []ObjectInfo
	ChildPrefixes []string
	NextToken     string
	Truncated     bool
}

// ObjectStorage is the object-store capability the managers are built on.
// Head returns (nil, nil) when the object does not exist.
type ObjectStorage interface {
	Put(ctx context.Context, container, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, container, key string) (io.ReadCloser, error)
	Head(ctx context.Context, container, key string) (*ObjectStat, error)
	Delete(ctx context.Context, container, key string) error
	Copy(ctx context.Context, container, srcKey, dstKey string) error
	ListUnderPrefix(ctx context.Context, container, prefix string, opts ListOptions) (*ObjectListing, error)
	PresignGet(ctx context.Context, container, key string, ttl time.Duration) (string, error)
	PresignPut(ctx context.Context, container, key string, ttl time.Duration) (string, error)
	// EnsurePrefix writes the zero-byte marker object representing a folder.
	EnsurePrefix(ctx context.Context, container, prefix string) error
}

// S3StorageConfig holds the connection settings for the S3 gateway.
type S3StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// S3Storage is the MinIO-backed ObjectStorage implementation. It is safe for
// concurrent use by multiple goroutines.
type S3Storage struct {
	client *miniogo.Client
}

func NewS3Storage(cfg S3StorageConfig) (*S3Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	return &S3Storage{client: client}, nil
}

func (s *S3Storage) Put(ctx context.Context, container, key string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, container, key, body, size, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Storage) Get(ctx context.Context, container, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, container, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return obj, nil
}

func (s *S3Storage) Head(ctx context.Context, container, key string) (*ObjectStat, error) {
	stat, err := s.client.StatObject(ctx, container, key, miniogo.StatObjectOptions{})
	if err != nil {
		if miniogo.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return &ObjectStat{
		Size:         stat.Size,
		LastModified: stat.LastModified,
		ContentType:  stat.ContentType,
	}, nil
}

func (s *S3Storage) Delete(ctx context.Context, container, key string) error {
	if err := s.client.RemoveObject(ctx, container, key, miniogo.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

func (s *S3Storage) Copy(ctx context.Context, container, srcKey, dstKey string) error {
	_, err := s.client.CopyObject(ctx,
		miniogo.CopyDestOptions{Bucket: container, Object: dstKey},
		miniogo.CopySrcOptions{Bucket: container, Object: srcKey},
	)
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", srcKey, dstKey, err)
	}
	return nil
}

func (s *S3Storage) ListUnderPrefix(ctx context.Context, container, prefix string, opts ListOptions) (*ObjectListing, error) {
	listOpts := miniogo.ListObjectsOptions{
		Prefix:     prefix,
		Recursive:  opts.Recursive,
		StartAfter: opts.ContinuationToken,
	}

	listing := &ObjectListing{}
	count := 0

	for obj := range s.client.ListObjects(ctx, container, listOpts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list prefix %s: %w", prefix, obj.Err)
		}

		if !opts.Recursive && strings.HasSuffix(obj.Key, "/") && obj.Key != prefix {
			listing.ChildPrefixes = append(listing.ChildPrefixes, obj.Key)
		} else {
			listing.Objects = append(listing.Objects, ObjectInfo{
				Key:          obj.Key,
				Size:         obj.Size,
				LastModified: obj.LastModified,
			})
		}

		count++
		if opts.MaxKeys > 0 && count >= opts.MaxKeys {
			listing.Truncated = true
			listing.NextToken = obj.Key
			break
		}
	}

	return listing, nil
}

func (s *S3Storage) PresignGet(ctx context.Context, container, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, container, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign download for %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *S3Storage) PresignPut(ctx context.Context, container, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, container, key, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to presign upload for %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *S3Storage) EnsurePrefix(ctx context.Context, container, prefix string) error {
	_, err := s.client.PutObject(ctx, container, prefix, bytes.NewReader(nil), 0, miniogo.PutObjectOptions{
		ContentType: "application/x-directory",
	})
	if err != nil {
		return fmt.Errorf("failed to create prefix marker %s: %w", prefix, err)
	}
	return nil
}
