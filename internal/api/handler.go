// Package api serves the HTTP surface: job submission, job status, ledger
// queries and artifact downloads.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"asset-forge/internal/domain"
	"asset-forge/internal/service/billing"
	"asset-forge/internal/service/dispatch"
	"asset-forge/internal/storage"
)

const (
	// PaymentHeader carries the payment proof on submissions.
	PaymentHeader = "X-Payment"

	maxBodyBytes    = 1 << 20
	signedURLExpiry = 15 * time.Minute
	healthzTimeout  = 2 * time.Second
)

// JobService submits jobs and reports their status.
type JobService interface {
	Submit(ctx context.Context, s dispatch.Submission) (string, error)
	Status(ctx context.Context, id string) (*domain.JobRecord, error)
}

// LedgerService reads the billing ledger.
type LedgerService interface {
	ListByWallet(ctx context.Context, wallet string, limit, offset int) (*billing.WalletPage, error)
	Recent(ctx context.Context, limit int) ([]domain.LedgerEntry, error)
}

// Options are the collaborators of a Handler. Presigner and Health are
// optional.
type Options struct {
	Jobs      JobService
	Ledger    LedgerService
	Store     domain.ObjectStore
	Presigner storage.Presigner
	Health    func(ctx context.Context) error
	Stats     func() interface{}
}

// Handler implements the HTTP routes.
type Handler struct {
	opts   Options
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(opts Options, logger *slog.Logger) *Handler {
	return &Handler{opts: opts, logger: logger.With("component", "api")}
}

// Routes mounts every route on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.healthz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/job-status/{id}", h.jobStatus)
		r.Get("/ledger", h.ledgerByWallet)
		r.Get("/ledger/recent", h.ledgerRecent)
		r.Post("/{component}", h.submit)
	})
	r.Get("/download/{filename}", h.download)
}

// submitRequest is the union of the per-kind request bodies.
type submitRequest struct {
	Text            string `json:"text"`
	Format          string `json:"format"`
	Wallet          string `json:"wallet"`
	Chain           string `json:"chain"`
	ContractAddress string `json:"contract_address"`
	Network         string `json:"network"`
}

type submitResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseJobKind(chi.URLParam(r, "component"))
	if err != nil {
		writeError(w, r, h.logger, domain.ErrNotFound("unknown component %q", chi.URLParam(r, "component")))
		return
	}

	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, h.logger, domain.ErrValidation("invalid request body: %v", err))
		return
	}

	id, err := h.opts.Jobs.Submit(r.Context(), dispatch.Submission{
		Kind: kind,
		Input: domain.JobInput{
			Text:            req.Text,
			Chain:           req.Chain,
			ContractAddress: req.ContractAddress,
			Network:         req.Network,
		},
		Format: req.Format,
		Wallet: req.Wallet,
		Proof:  r.Header.Get(PaymentHeader),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{
		JobID:     id,
		Status:    string(domain.JobStatusQueued),
		StatusURL: "/api/job-status/" + id,
	})
}

type jobStatusResponse struct {
	JobID       string            `json:"job_id"`
	Kind        domain.JobKind    `json:"kind"`
	State       domain.JobStatus  `json:"state"`
	Result      *domain.JobResult `json:"result,omitempty"`
	ErrorClass  string            `json:"error_class,omitempty"`
	Error       string            `json:"error,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

func (h *Handler) jobStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := h.opts.Jobs.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp := jobStatusResponse{
		JobID:       rec.ID,
		Kind:        rec.Kind,
		State:       rec.Status,
		Result:      rec.Result,
		ErrorClass:  string(rec.ErrorClass),
		SubmittedAt: rec.SubmittedAt,
		CompletedAt: rec.CompletedAt,
	}
	if rec.ErrorMessage != nil {
		resp.Error = *rec.ErrorMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

type ledgerEntryJSON struct {
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

func ledgerEntriesToJSON(entries []domain.LedgerEntry) []ledgerEntryJSON {
	out := make([]ledgerEntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, ledgerEntryJSON{
			ID:          e.ID,
			AssetID:     e.AssetID,
			Wallet:      e.Wallet,
			TxSignature: e.TxSignature,
			Component:   string(e.Component),
			Price:       e.Price.StringFixed(2),
			Status:      string(e.Status),
			Filename:    e.Filename,
			Timestamp:   e.Timestamp,
		})
	}
	return out
}

type walletLedgerResponse struct {
	Wallet  string            `json:"wallet"`
	Entries []ledgerEntryJSON `json:"entries"`
	Total   int64             `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
}

func (h *Handler) ledgerByWallet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	offset, err := intParam(q.Get("offset"), "offset")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	wallet := q.Get("wallet")
	page, err := h.opts.Ledger.ListByWallet(r.Context(), wallet, limit, offset)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, walletLedgerResponse{
		Wallet:  strings.TrimSpace(wallet),
		Entries: ledgerEntriesToJSON(page.Entries),
		Total:   page.Total,
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
}

func (h *Handler) ledgerRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	entries, err := h.opts.Ledger.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": ledgerEntriesToJSON(entries)})
}

// download redirects to a signed URL when the backend can mint one and to
// the public URL otherwise.
func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if err := storage.ValidateName(filename); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	target := h.opts.Store.URL(filename)
	if h.opts.Presigner != nil {
		u, err := h.opts.Presigner.SignedURL(r.Context(), filename, signedURLExpiry)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		target = u
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok"}
	if h.opts.Stats != nil {
		body["worker"] = h.opts.Stats()
	}
	if h.opts.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthzTimeout)
		defer cancel()
		if err := h.opts.Health(ctx); err != nil {
			h.logger.Warn("health check failed", "error", err)
			body["status"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.ErrValidation("%s must be an integer", name)
	}
	return n, nil
}
