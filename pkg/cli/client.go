package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PaymentHeader carries the payment proof on submissions.
const PaymentHeader = "X-Payment"

// APIError is a non-2xx response from the server.
type APIError struct {
	HTTPStatus int    `json:"http_status"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
	ErrorClass string `json:"error_class,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.HTTPStatus)
	}
	if e.ErrorClass != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.HTTPStatus, e.ErrorClass, msg)
	}
	return fmt.Sprintf("API error %d: %s", e.HTTPStatus, msg)
}

// Client talks to the forge HTTP API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a Client with a 30s timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends a request and decodes a JSON response into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, header http.Header, body, out interface{}) error {
	u := strings.TrimRight(c.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		apiErr.HTTPStatus = resp.StatusCode
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// SubmitRequest is the body of POST /api/{component}.
type SubmitRequest struct {
	Text            string `json:"text,omitempty"`
	Format          string `json:"format,omitempty"`
	Wallet          string `json:"wallet,omitempty"`
	Chain           string `json:"chain,omitempty"`
	ContractAddress string `json:"contract_address,omitempty"`
	Network         string `json:"network,omitempty"`
}

// SubmitResponse acknowledges a queued job.
type SubmitResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

// JobResult is the payload of a succeeded job.
type JobResult struct {
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
	Format      string `json:"format"`
}

// JobStatus is the response of GET /api/job-status/{id}.
type JobStatus struct {
	JobID       string     `json:"job_id"`
	Kind        string     `json:"kind"`
	State       string     `json:"state"`
	Result      *JobResult `json:"result,omitempty"`
	ErrorClass  string     `json:"error_class,omitempty"`
	Error       string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the job reached SUCCEEDED or FAILED.
func (s *JobStatus) Terminal() bool {
	return s.State == "SUCCEEDED" || s.State == "FAILED"
}

// LedgerEntry is one ledger row.
type LedgerEntry struct {
	ID          int64     `json:"id"`
	AssetID     string    `json:"asset_id"`
	Wallet      string    `json:"wallet"`
	TxSignature *string   `json:"tx_signature"`
	Component   string    `json:"component"`
	Price       string    `json:"price"`
	Status      string    `json:"status"`
	Filename    string    `json:"filename,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// LedgerPage is the response of GET /api/ledger.
type LedgerPage struct {
	Wallet  string        `json:"wallet"`
	Entries []LedgerEntry `json:"entries"`
	Total   int64         `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

// Submit queues a job for component, paying with proof.
func (c *Client) Submit(ctx context.Context, component, proof string, req SubmitRequest) (*SubmitResponse, error) {
	var out SubmitResponse
	header := http.Header{}
	if proof != "" {
		header.Set(PaymentHeader, proof)
	}
	if err := c.do(ctx, http.MethodPost, "/api/"+url.PathEscape(component), nil, header, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the current status of job id.
func (c *Client) Status(ctx context.Context, id string) (*JobStatus, error) {
	var out JobStatus
	if err := c.do(ctx, http.MethodGet, "/api/job-status/"+url.PathEscape(id), nil, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ledger returns one page of wallet's ledger entries.
func (c *Client) Ledger(ctx context.Context, wallet string, limit, offset int) (*LedgerPage, error) {
	q := url.Values{"wallet": {wallet}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var out LedgerPage
	if err := c.do(ctx, http.MethodGet, "/api/ledger", q, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Recent returns the newest ledger entries across wallets.
func (c *Client) Recent(ctx context.Context, limit int) ([]LedgerEntry, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Entries []LedgerEntry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/ledger/recent", q, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}
