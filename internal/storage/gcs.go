package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"asset-forge/internal/domain"
)

var (
	_ domain.ObjectStore = (*GCSStore)(nil)
	_ Presigner          = (*GCSStore)(nil)
)

// GCSStore uploads to a Google Cloud Storage bucket.
type GCSStore struct {
	client     *storage.Client
	bucket     string
	publicBase string
}

// NewGCSStore creates a GCSStore. An empty credentialsFile uses application
// default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile, publicBase string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("GCS bucket is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	if publicBase == "" {
		publicBase = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{client: client, bucket: bucket, publicBase: publicBase}, nil
}

// Put uploads data under filename and returns its public URL.
func (s *GCSStore) Put(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	if err := ValidateName(filename); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = ContentType(filename)
	}
	w := s.client.Bucket(s.bucket).Object(filename).NewWriter(ctx)
	w.ContentType = contentType
	w.ContentDisposition = attachment(filename)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gs://%s/%s: %w", s.bucket, filename, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close gs://%s/%s: %w", s.bucket, filename, err)
	}
	return s.URL(filename), nil
}

// URL returns the public reference for filename.
func (s *GCSStore) URL(filename string) string {
	return publicURL(s.publicBase, filename)
}

// SignedURL returns a V4 signed GET URL for filename.
func (s *GCSStore) SignedURL(_ context.Context, filename string, expiry time.Duration) (string, error) {
	if err := ValidateName(filename); err != nil {
		return "", err
	}
	u, err := s.client.Bucket(s.bucket).SignedURL(filename, &storage.SignedURLOptions{
		Method:  http.MethodGet,
		Expires: time.Now().Add(expiry),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("sign GetObject for %q: %w", filename, err)
	}
	return u, nil
}
