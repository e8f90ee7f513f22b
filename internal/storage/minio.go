package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions configures an S3-compatible backend. The defaults in
// infra.Config target the GCS interoperability endpoint.
type MinioOptions struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	UseSSL        bool
	PublicBaseURL string
	Transport     http.RoundTripper
}

// MinioStore writes objects and presigns uploads through minio-go.
type MinioStore struct {
	client        *minio.Client
	publicBaseURL string
}

func NewMinioStore(opts MinioOptions) (*MinioStore, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	endpoint = strings.TrimRight(endpoint, "/")
	if endpoint == "" {
		return nil, errors.New("storage: endpoint is required")
	}

	// A fixed region keeps presigning offline; otherwise minio-go looks up
	// the bucket location first.
	region := opts.Region
	if region == "" {
		region = "auto"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:    opts.UseSSL,
		Region:    region,
		Transport: opts.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create minio client: %w", err)
	}

	base := strings.TrimRight(opts.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + endpoint
	}
	return &MinioStore{client: client, publicBaseURL: base}, nil
}

func (s *MinioStore) Write(ctx context.Context, obj Object) error {
	opts := minio.PutObjectOptions{ContentType: obj.ContentType}
	if obj.Public {
		opts.UserMetadata = map[string]string{"x-amz-acl": "public-read"}
	}
	_, err := s.client.PutObject(ctx, obj.Bucket, obj.Name, bytes.NewReader(obj.Data), int64(len(obj.Data)), opts)
	if err != nil {
		return fmt.Errorf("storage: put %s/%s: %w", obj.Bucket, obj.Name, err)
	}
	return nil
}

func (s *MinioStore) PublicURL(bucket, name string) string {
	return joinPublicURL(s.publicBaseURL, bucket, name)
}

// SignedWriteURL presigns a PUT bound to contentType. The uploader must send
// the same Content-Type header.
func (s *MinioStore) SignedWriteURL(ctx context.Context, bucket, name, contentType string, expiry time.Duration) (string, error) {
	headers := http.Header{}
	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}
	u, err := s.client.PresignHeader(ctx, http.MethodPut, bucket, name, expiry, nil, headers)
	if err != nil {
		return "", fmt.Errorf("storage: presign %s/%s: %w", bucket, name, err)
	}
	return u.String(), nil
}

var (
	_ ObjectStore = (*MinioStore)(nil)
	_ URLSigner   = (*MinioStore)(nil)
)
