package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"asset-forge/internal/domain"
)

// maxPayloadBytes caps how much of a provider response is read.
const maxPayloadBytes = 4 << 20

var (
	_ domain.Provider = (*HTTPProvider)(nil)
	_ TimeoutProvider = (*HTTPProvider)(nil)
)

// HTTPProvider fetches a JSON document from a URL template. The template
// placeholders {address} and {network} are replaced with the path-escaped
// subject fields.
type HTTPProvider struct {
	name     string
	template string
	headers  map[string]string
	timeout  time.Duration
	limiter  *rate.Limiter
	client   *http.Client
}

// HTTPProviderOptions configures an HTTPProvider.
type HTTPProviderOptions struct {
	Name     string
	URL      string
	Headers  map[string]string
	Timeout  time.Duration
	RPS      float64 // 0 disables throttling
	Burst    int
	Client   *http.Client
}

// NewHTTPProvider creates an HTTPProvider.
func NewHTTPProvider(opts HTTPProviderOptions) *HTTPProvider {
	p := &HTTPProvider{
		name:     opts.Name,
		template: opts.URL,
		headers:  opts.Headers,
		timeout:  opts.Timeout,
		client:   opts.Client,
	}
	if p.client == nil {
		p.client = http.DefaultClient
	}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return p
}

// Name implements domain.Provider.
func (p *HTTPProvider) Name() string { return p.name }

// Timeout implements TimeoutProvider.
func (p *HTTPProvider) Timeout() time.Duration { return p.timeout }

// Fetch implements domain.Provider. 404 and 204 mean no data.
func (p *HTTPProvider) Fetch(ctx context.Context, subject domain.Subject) (json.RawMessage, error) {
	body, status, err := p.get(ctx, subject, "application/json")
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || status == http.StatusNoContent {
		return nil, nil
	}
	return json.RawMessage(body), nil
}

// get performs the throttled request and returns the body of 2xx and 404
// responses.
func (p *HTTPProvider) get(ctx context.Context, subject domain.Subject, accept string) ([]byte, int, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("%s: rate limit wait: %w", p.name, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ExpandURL(p.template, subject), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: build request: %w", p.name, err)
	}
	req.Header.Set("Accept", accept)
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", p.name, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("%s: unexpected status %d", p.name, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s: read body: %w", p.name, err)
	}
	return body, resp.StatusCode, nil
}

// ExpandURL substitutes {address} and {network} in template.
func ExpandURL(template string, subject domain.Subject) string {
	r := strings.NewReplacer(
		"{address}", url.PathEscape(strings.TrimSpace(subject.Address)),
		"{network}", url.PathEscape(strings.ToLower(strings.TrimSpace(subject.Network))),
	)
	return r.Replace(template)
}
