// Package storage uploads generated documents to object storage and builds
// their public references. Writing an existing name overwrites it.
package storage

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"asset-forge/internal/config"
	"asset-forge/internal/domain"
)

// Presigner is implemented by backends that can mint time-limited download
// URLs for private buckets.
type Presigner interface {
	SignedURL(ctx context.Context, filename string, expiry time.Duration) (string, error)
}

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".html": "text/html; charset=utf-8",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ContentType returns the MIME type for filename's extension.
func ContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// attachment builds a Content-Disposition value that makes browsers download
// the object under its own name.
func attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}

// ValidateName rejects names that would escape the bucket prefix or the
// local directory.
func ValidateName(filename string) error {
	if filename == "" || filename == "." || filename == ".." {
		return domain.ErrValidation("invalid object name %q", filename)
	}
	if strings.ContainsAny(filename, `/\`) || path.Base(filename) != filename {
		return domain.ErrValidation("object name %q must not contain path separators", filename)
	}
	return nil
}

// publicURL joins base and filename.
func publicURL(base, filename string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(filename)
}

// New builds the object store selected by cfg.Storage.Backend.
func New(ctx context.Context, cfg *config.Config) (domain.ObjectStore, error) {
	s := cfg.Storage
	switch s.Backend {
	case "s3":
		return NewS3Store(S3Options{
			Endpoint:   s.S3Endpoint,
			Region:     s.S3Region,
			KeyID:      s.S3KeyID,
			Secret:     s.S3Secret,
			Bucket:     s.S3Bucket,
			PublicBase: s.PublicBase,
		})
	case "gcs":
		return NewGCSStore(ctx, s.GCSBucket, s.GCSCredentialsFile, s.PublicBase)
	case "azure":
		return NewAzureStore(AzureOptions{
			AccountName: s.AzureAccountName,
			AccountKey:  s.AzureAccountKey,
			Container:   s.AzureContainer,
			Endpoint:    s.AzureEndpoint,
			PublicBase:  s.PublicBase,
		})
	case "local", "":
		base := s.PublicBase
		if base == "" {
			base = "/files"
		}
		return NewLocalStore(s.LocalDir, base)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", s.Backend)
	}
}
