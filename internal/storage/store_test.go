package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-forge/internal/config"
	"asset-forge/internal/domain"
)

func TestContentType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want string
	}{
		{"report.pdf", "application/pdf"},
		{"notes.TXT", "text/plain; charset=utf-8"},
		{"doc.md", "text/markdown; charset=utf-8"},
		{"page.html", "text/html; charset=utf-8"},
		{"brief.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"blob", "application/octet-stream"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ContentType(tc.name))
		})
	}
}

func TestValidateName(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateName("prompt_optimizer_1700000000.txt"))
	for _, bad := range []string{"", ".", "..", "../x.pdf", "a/b.pdf", `a\b.pdf`} {
		err := ValidateName(bad)
		var ve *domain.ValidationError
		assert.ErrorAs(t, err, &ve, "name %q", bad)
	}
}

func TestAttachment(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `attachment; filename=report_1.pdf`, attachment("report_1.pdf"))
	assert.Equal(t, `attachment; filename="my report.pdf"`, attachment("my report.pdf"))
}

func TestLocalStore_PutAndOverwrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8080/files/")
	require.NoError(t, err)

	url, err := store.Put(context.Background(), []byte("first"), "a.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/a.txt", url)

	_, err = store.Put(context.Background(), []byte("second"), "a.txt", "")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLocalStore_ConcurrentSameName(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/files")
	require.NoError(t, err)

	payloads := []string{"aaaaaaaa", "bbbbbbbb", "cccccccc", "dddddddd"}
	var wg sync.WaitGroup
	for _, p := range payloads {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			_, err := store.Put(context.Background(), []byte(p), "same.txt", "")
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	got, err := os.ReadFile(filepath.Join(dir, "same.txt"))
	require.NoError(t, err)
	assert.Contains(t, payloads, string(got), "file must hold one complete payload")
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	t.Parallel()
	store, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)
	_, err = store.Put(context.Background(), []byte("x"), "../escape.txt", "")
	require.Error(t, err)
}

type capturedRequest struct {
	method      string
	path        string
	contentType string
	disposition string
}

func TestS3Store_Put(t *testing.T) {
	t.Parallel()
	var (
		mu  sync.Mutex
		got []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		got = append(got, capturedRequest{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			disposition: r.Header.Get("Content-Disposition"),
		})
		mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	store, err := NewS3Store(S3Options{
		Endpoint:   srv.URL,
		KeyID:      "key",
		Secret:     "secret",
		Bucket:     "assets",
		PublicBase: "https://cdn.example.com",
	})
	require.NoError(t, err)

	url, err := store.Put(context.Background(), []byte("%PDF-1.3"), "contract_intel_1700000000.pdf", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/contract_intel_1700000000.pdf", url)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPut, got[0].method)
	assert.Equal(t, "/assets/contract_intel_1700000000.pdf", got[0].path)
	assert.Equal(t, "application/pdf", got[0].contentType)
	assert.Equal(t, "attachment; filename=contract_intel_1700000000.pdf", got[0].disposition)
}

func TestS3Store_PutFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
	}))
	t.Cleanup(srv.Close)

	store, err := NewS3Store(S3Options{Endpoint: srv.URL, KeyID: "k", Secret: "s", Bucket: "assets"})
	require.NoError(t, err)

	_, err = store.Put(context.Background(), []byte("x"), "a.txt", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put s3://assets/a.txt")
}

func TestS3Store_DefaultPublicBase(t *testing.T) {
	t.Parallel()
	store, err := NewS3Store(S3Options{Endpoint: "acct.r2.cloudflarestorage.com", Bucket: "assets"})
	require.NoError(t, err)
	assert.Equal(t, "https://acct.r2.cloudflarestorage.com/assets/x.pdf", store.URL("x.pdf"))
}

func TestS3Store_SignedURL(t *testing.T) {
	t.Parallel()
	store, err := NewS3Store(S3Options{Endpoint: "https://acct.r2.cloudflarestorage.com", KeyID: "k", Secret: "s", Bucket: "assets"})
	require.NoError(t, err)

	u, err := store.SignedURL(context.Background(), "x.pdf", 0)
	require.NoError(t, err)
	assert.Contains(t, u, "/assets/x.pdf")
	assert.Contains(t, u, "X-Amz-Signature=")
}

func TestAzureStore_URL(t *testing.T) {
	t.Parallel()
	store, err := NewAzureStore(AzureOptions{
		AccountName: "forge",
		AccountKey:  "c2VjcmV0LWtleS1mb3ItdGVzdHM=",
		Container:   "assets",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://forge.blob.core.windows.net/assets/a.html", store.URL("a.html"))
}

func TestNewAzureStore_MissingFields(t *testing.T) {
	t.Parallel()
	_, err := NewAzureStore(AzureOptions{AccountName: "forge"})
	require.Error(t, err)
}

func TestNew_Local(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Storage: config.StorageConfig{Backend: "local", LocalDir: t.TempDir()}}
	store, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)
	assert.Equal(t, "/files/a.pdf", store.URL("a.pdf"))
}

func TestNew_UnknownBackend(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), &config.Config{Storage: config.StorageConfig{Backend: "ftp"}})
	require.Error(t, err)
}
