// Package intel resolves on-chain subject data from prioritized external
// providers and tracks changes against the last snapshot.
package intel

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"asset-forge/internal/domain"
)

// DefaultProviderTimeout bounds a single provider call when neither the
// resolver nor the provider sets one.
const DefaultProviderTimeout = 10 * time.Second

// TimeoutProvider is implemented by providers with their own call budget.
type TimeoutProvider interface {
	Timeout() time.Duration
}

// Chains maps each category to its providers in priority order.
type Chains map[domain.Category][]domain.Provider

// Options configures a Resolver.
type Options struct {
	// Timeout bounds each provider call unless the provider overrides it.
	Timeout time.Duration
	// Parallelism caps how many categories resolve at once; 0 means all.
	Parallelism int
	Now         func() time.Time
}

// Resolver fans out across categories and falls back across providers
// within each category. Provider failures never surface as errors.
type Resolver struct {
	chains    Chains
	snapshots domain.SnapshotStore
	opts      Options
	logger    *slog.Logger
}

// NewResolver creates a Resolver. snapshots may be nil to disable change
// detection.
func NewResolver(chains Chains, snapshots domain.SnapshotStore, opts Options, logger *slog.Logger) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultProviderTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Resolver{
		chains:    chains,
		snapshots: snapshots,
		opts:      opts,
		logger:    logger.With("component", "resolver"),
	}
}

// Resolve builds the aggregate for subject. Categories whose providers all
// fail come back with Resolved=false. The only error returned is the
// context's, when it ends before resolution completes.
func (r *Resolver) Resolve(ctx context.Context, subject domain.Subject) (*domain.Aggregate, error) {
	key := subject.Key()
	previous := r.loadSnapshot(ctx, key)

	results := make([]domain.CategoryResult, len(domain.Categories))
	var g errgroup.Group
	if r.opts.Parallelism > 0 {
		g.SetLimit(r.opts.Parallelism)
	}
	for i, cat := range domain.Categories {
		g.Go(func() error {
			results[i] = r.resolveCategory(ctx, cat, subject)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agg := &domain.Aggregate{Subject: subject, Categories: results}
	canonical, hash, err := ContentHash(agg)
	if err != nil {
		return nil, err
	}
	agg.ContentHash = hash
	if previous != nil {
		agg.PreviousHash = previous.ContentHash
	}
	agg.Changed = agg.PreviousHash != hash

	r.storeSnapshot(ctx, &domain.Snapshot{
		SubjectKey:  key,
		CapturedAt:  r.opts.Now().UTC(),
		Aggregate:   canonical,
		ContentHash: hash,
	})

	r.logger.Info("subject resolved",
		"subject", key,
		"resolved", resolvedCount(results),
		"changed", agg.Changed)
	return agg, nil
}

func (r *Resolver) resolveCategory(ctx context.Context, cat domain.Category, subject domain.Subject) domain.CategoryResult {
	for _, p := range r.chains[cat] {
		if ctx.Err() != nil {
			break
		}
		data, err := r.fetch(ctx, p, subject)
		if err != nil {
			r.logger.Warn("provider failed",
				"category", cat, "provider", p.Name(), "subject", subject.Key(), "error", err)
			continue
		}
		if data == nil {
			r.logger.Debug("provider returned no data",
				"category", cat, "provider", p.Name(), "subject", subject.Key())
			continue
		}
		return domain.CategoryResult{Category: cat, Source: p.Name(), Data: data, Resolved: true}
	}
	return domain.CategoryResult{Category: cat}
}

// fetch calls p under its own deadline and canonicalizes the payload. A nil
// payload with a nil error means "no data".
func (r *Resolver) fetch(ctx context.Context, p domain.Provider, subject domain.Subject) (json.RawMessage, error) {
	timeout := r.opts.Timeout
	if tp, ok := p.(TimeoutProvider); ok && tp.Timeout() > 0 {
		timeout = tp.Timeout()
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := p.Fetch(callCtx, subject)
	if err != nil {
		return nil, err
	}
	return Canonical(raw), nil
}

func (r *Resolver) loadSnapshot(ctx context.Context, key string) *domain.Snapshot {
	if r.snapshots == nil {
		return nil
	}
	snap, err := r.snapshots.Get(ctx, key)
	if err != nil {
		var nf *domain.NotFoundError
		if !errors.As(err, &nf) {
			r.logger.Warn("snapshot read failed", "subject", key, "error", err)
		}
		return nil
	}
	return snap
}

func (r *Resolver) storeSnapshot(ctx context.Context, snap *domain.Snapshot) {
	if r.snapshots == nil {
		return
	}
	if err := r.snapshots.Put(ctx, snap); err != nil {
		r.logger.Warn("snapshot write failed", "subject", snap.SubjectKey, "error", err)
	}
}

// Canonical validates a provider payload and re-encodes it with sorted
// object keys. Empty, invalid, null and empty-container payloads return nil.
func Canonical(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	if dec.More() {
		return nil
	}
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		if len(t) == 0 {
			return nil
		}
	case []any:
		if len(t) == 0 {
			return nil
		}
	case string:
		if t == "" {
			return nil
		}
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return out
}

// hashedAggregate is the part of an aggregate that identifies its content.
type hashedAggregate struct {
	Subject    string                  `json:"subject"`
	Categories []domain.CategoryResult `json:"categories"`
}

// ContentHash returns the canonical JSON of agg's content and its hex
// sha256. Two aggregates with equal category data hash equally regardless of
// subject letter case or provider key order.
func ContentHash(agg *domain.Aggregate) (json.RawMessage, string, error) {
	cats := make([]domain.CategoryResult, len(agg.Categories))
	for i, c := range agg.Categories {
		if c.Resolved {
			c.Data = Canonical(c.Data)
		}
		cats[i] = c
	}
	canonical, err := json.Marshal(hashedAggregate{Subject: agg.Subject.Key(), Categories: cats})
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(canonical)
	return canonical, hex.EncodeToString(sum[:]), nil
}

func resolvedCount(results []domain.CategoryResult) int {
	n := 0
	for _, r := range results {
		if r.Resolved {
			n++
		}
	}
	return n
}
