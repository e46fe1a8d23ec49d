package intel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-forge/internal/domain"
)

func TestHTTPProvider_Fetch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ethereum/tokens/0xAbC123/holders", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{"holders":42}`))
	}))
	t.Cleanup(srv.Close)

	p := NewHTTPProvider(HTTPProviderOptions{
		Name:    "explorer",
		URL:     srv.URL + "/{network}/tokens/{address}/holders",
		Headers: map[string]string{"X-API-Key": "secret"},
	})
	data, err := p.Fetch(context.Background(), domain.Subject{Address: "0xAbC123", Network: "Ethereum"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"holders":42}`, string(data))
	assert.Equal(t, "explorer", p.Name())
}

func TestHTTPProvider_StatusHandling(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status  int
		wantNil bool
		wantErr bool
	}{
		{http.StatusNotFound, true, false},
		{http.StatusNoContent, true, false},
		{http.StatusInternalServerError, true, true},
		{http.StatusTooManyRequests, true, true},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			t.Cleanup(srv.Close)

			data, err := NewHTTPProvider(HTTPProviderOptions{Name: "x", URL: srv.URL}).Fetch(context.Background(), subject)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Nil(t, data)
		})
	}
}

func TestHTTPProvider_RateLimited(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	p := NewHTTPProvider(HTTPProviderOptions{Name: "x", URL: srv.URL, RPS: 1, Burst: 1})
	_, err := p.Fetch(context.Background(), subject)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Fetch(ctx, subject)
	require.Error(t, err, "second call within the same second must wait past the deadline")
}

func TestExpandURL(t *testing.T) {
	t.Parallel()
	got := ExpandURL("https://x/{network}/{address}?n={network}", domain.Subject{Address: " a/b ", Network: "BSC"})
	assert.Equal(t, "https://x/bsc/a%2Fb?n=bsc", got)
}

const projectPage = `<!doctype html>
<html><head>
<title>
  Acme   Token
</title>
<meta name="description" content="Acme is a   community token.">
<meta property="og:description" content="ignored when description is present">
</head><body>
<a href="/about">About</a>
<a href="#top">Top</a>
<a href="https://twitter.com/acme">Twitter</a>
<a href="https://x.com/acme">X</a>
<a href="https://t.me/acmechat">Telegram</a>
<a href="https://discord.gg/acme">Discord</a>
<a href="https://acme.io">Website</a>
<a href="https://acme.io">Website again</a>
<a href="mailto:team@acme.io">Mail</a>
</body></html>`

func TestParseProfile(t *testing.T) {
	t.Parallel()
	prof, err := ParseProfile("https://tokens.example.com/eth/0xabc", []byte(projectPage))
	require.NoError(t, err)

	assert.Equal(t, "Acme Token", prof.Title)
	assert.Equal(t, "Acme is a community token.", prof.Description)
	assert.Equal(t, []string{"https://twitter.com/acme", "https://x.com/acme"}, prof.TwitterCandidates)
	assert.Equal(t, []string{"https://t.me/acmechat"}, prof.TelegramCandidates)
	assert.Equal(t, []string{"https://discord.gg/acme"}, prof.DiscordCandidates)
	assert.Equal(t, []string{"https://acme.io"}, prof.WebsiteCandidates)
}

func TestParseProfile_OGDescriptionFallback(t *testing.T) {
	t.Parallel()
	prof, err := ParseProfile("https://x", []byte(`<meta property="og:description" content="from og">`))
	require.NoError(t, err)
	assert.Equal(t, "from og", prof.Description)
}

func TestProfileProvider_Fetch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "blank") {
			_, _ = w.Write([]byte(`<html><body><p>nothing</p></body></html>`))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(projectPage))
	}))
	t.Cleanup(srv.Close)

	p := NewProfileProvider(HTTPProviderOptions{Name: "page", URL: srv.URL + "/{address}"})
	data, err := p.Fetch(context.Background(), subject)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title":"Acme Token"`)

	blank := NewProfileProvider(HTTPProviderOptions{Name: "page", URL: srv.URL + "/blank"})
	data, err = blank.Fetch(context.Background(), subject)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestParseProviders(t *testing.T) {
	t.Setenv("FORGE_TEST_EXPLORER_KEY", "k-123")
	f, err := ParseProviders([]byte(`
categories:
  holders:
    - name: primary
      url: https://a.example/{network}/{address}
      headers:
        X-API-Key: ${FORGE_TEST_EXPLORER_KEY}
      timeout: 3s
      rate_per_second: 2
    - name: secondary
      url: https://b.example/{address}
  profile:
    - name: page
      type: website
      url: https://tokens.example/{address}
`))
	require.NoError(t, err)
	require.Len(t, f.Categories[domain.CategoryHolders], 2)
	primary := f.Categories[domain.CategoryHolders][0]
	assert.Equal(t, 3*time.Second, primary.Timeout)
	assert.Equal(t, "k-123", primary.Headers["X-API-Key"])

	chains := f.Chains(http.DefaultClient)
	require.Len(t, chains[domain.CategoryHolders], 2)
	assert.Equal(t, "primary", chains[domain.CategoryHolders][0].Name())
	assert.Equal(t, "secondary", chains[domain.CategoryHolders][1].Name())
	assert.IsType(t, &ProfileProvider{}, chains[domain.CategoryProfile][0])
	assert.Equal(t, 3*time.Second, chains[domain.CategoryHolders][0].(TimeoutProvider).Timeout())
}

func TestParseProviders_Invalid(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"unknown category": "categories:\n  prices:\n    - {name: a, url: http://x}\n",
		"missing name":     "categories:\n  risk:\n    - {url: http://x}\n",
		"missing url":      "categories:\n  risk:\n    - {name: a}\n",
		"duplicate":        "categories:\n  risk:\n    - {name: a, url: http://x}\n    - {name: a, url: http://y}\n",
		"bad type":         "categories:\n  risk:\n    - {name: a, url: http://x, type: grpc}\n",
		"bad yaml":         "categories: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseProviders([]byte(doc))
			require.Error(t, err)
		})
	}
}
