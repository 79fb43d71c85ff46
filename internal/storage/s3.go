package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spherical/pdf2jpeg/internal/domain"
)

// S3Options configures an S3Sink.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Insecure  bool
}

// S3Sink uploads objects to an S3-compatible bucket under a key prefix.
type S3Sink struct {
	client *minio.Client
	bucket string
	prefix string
}

// ParseS3URL splits s3://bucket/prefix into its parts.
func ParseS3URL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", domain.ConfigError(fmt.Sprintf("invalid s3 destination %q", raw), err)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// NewS3Sink connects to the endpoint and checks that the bucket exists.
func NewS3Sink(ctx context.Context, destination string, opts S3Options) (*S3Sink, error) {
	bucket, prefix, err := ParseS3URL(destination)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: !opts.Insecure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, domain.ConfigError("failed to init S3 client", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, domain.IOError("failed to check bucket", err)
	}
	if !exists {
		return nil, domain.ConfigError(fmt.Sprintf("bucket %q does not exist", bucket), nil)
	}

	return &S3Sink{client: client, bucket: bucket, prefix: prefix}, nil
}

// Put uploads r as <prefix>/<name>. Existing objects are replaced.
func (s *S3Sink) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	key := s.key(name)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"uploaded-at": time.Now().Format(time.RFC3339)},
	})
	if err != nil {
		return "", domain.IOError(fmt.Sprintf("upload of %s failed", key), err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Location returns the s3:// URL of the prefix.
func (s *S3Sink) Location() string {
	if s.prefix == "" {
		return "s3://" + s.bucket
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.prefix)
}

func (s *S3Sink) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}
