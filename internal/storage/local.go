package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"asset-forge/internal/domain"
)

var _ domain.ObjectStore = (*LocalStore)(nil)

// LocalStore writes objects to a directory for development. Each Put writes
// a temp file and renames it over the target, so concurrent writers of the
// same name leave one complete file (last write wins).
type LocalStore struct {
	dir        string
	publicBase string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, publicBase string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &LocalStore{dir: dir, publicBase: publicBase}, nil
}

// Dir returns the directory served under the public base.
func (s *LocalStore) Dir() string { return s.dir }

// Put writes data under filename and returns its public URL.
func (s *LocalStore) Put(_ context.Context, data []byte, filename, _ string) (string, error) {
	if err := ValidateName(filename); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", filename, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, filename)); err != nil {
		return "", fmt.Errorf("rename %s: %w", filename, err)
	}
	return s.URL(filename), nil
}

// URL returns the public reference for filename.
func (s *LocalStore) URL(filename string) string {
	return publicURL(s.publicBase, filename)
}
