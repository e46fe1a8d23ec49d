package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"asset-forge/internal/domain"
)

var (
	_ domain.ObjectStore = (*S3Store)(nil)
	_ Presigner          = (*S3Store)(nil)
)

// S3Options configures an S3-compatible bucket such as Cloudflare R2.
type S3Options struct {
	Endpoint   string // https://<account>.r2.cloudflarestorage.com; scheme optional
	Region     string
	KeyID      string
	Secret     string
	Bucket     string
	PublicBase string // public bucket domain; defaults to <endpoint>/<bucket>
}

// S3Store uploads with PutObject using path-style addressing, which R2 and
// most S3-compatible providers accept.
type S3Store struct {
	client     *s3.Client
	presign    *s3.PresignClient
	bucket     string
	publicBase string
}

// NewS3Store creates an S3Store.
func NewS3Store(opts S3Options) (*S3Store, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, errors.New("S3 endpoint and bucket are required")
	}
	endpoint := opts.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	region := opts.Region
	if region == "" {
		region = "auto"
	}

	client := s3.New(s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(opts.KeyID, opts.Secret, ""),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	})

	base := opts.PublicBase
	if base == "" {
		base = strings.TrimRight(endpoint, "/") + "/" + opts.Bucket
	}
	return &S3Store{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucket:     opts.Bucket,
		publicBase: base,
	}, nil
}

// Put uploads data under filename and returns its public URL.
func (s *S3Store) Put(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	if err := ValidateName(filename); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = ContentType(filename)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(filename),
		Body:               bytes.NewReader(data),
		ContentLength:      aws.Int64(int64(len(data))),
		ContentType:        aws.String(contentType),
		ContentDisposition: aws.String(attachment(filename)),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, filename, err)
	}
	return s.URL(filename), nil
}

// URL returns the public reference for filename.
func (s *S3Store) URL(filename string) string {
	return publicURL(s.publicBase, filename)
}

// SignedURL returns a presigned GET URL for filename.
func (s *S3Store) SignedURL(ctx context.Context, filename string, expiry time.Duration) (string, error) {
	if err := ValidateName(filename); err != nil {
		return "", err
	}
	out, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(filename),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign GetObject for %q: %w", filename, err)
	}
	return out.URL, nil
}
