// Package app wires repositories, backends and services into a runnable
// pipeline.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/redis/go-redis/v9"

	"asset-forge/internal/admission"
	"asset-forge/internal/api"
	"asset-forge/internal/config"
	"asset-forge/internal/db/postgres"
	"asset-forge/internal/db/repository"
	"asset-forge/internal/domain"
	"asset-forge/internal/intel"
	"asset-forge/internal/llm"
	"asset-forge/internal/middleware"
	"asset-forge/internal/service/billing"
	"asset-forge/internal/service/dispatch"
	"asset-forge/internal/service/generation"
	"asset-forge/internal/storage"
	"asset-forge/internal/worker"
)

// recoverTimeout bounds the startup pass over unfinished jobs.
const recoverTimeout = time.Minute

// Deps holds the external dependencies that main() must provide. Text and
// Store override the configured backends when set.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger

	Text       domain.TextGenerator
	Store      domain.ObjectStore
	HTTPClient *http.Client
}

// App holds the fully-wired pipeline.
type App struct {
	Dispatcher *dispatch.Dispatcher
	Ledger     *billing.Service
	Pool       *worker.Pool
	Sweeper    *dispatch.Sweeper
	Store      domain.ObjectStore
	Handler    *api.Handler

	cfg     *config.Config
	logger  *slog.Logger
	closers []func() error
}

// New wires every component from deps. Nothing runs until Start.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	a := &App{cfg: cfg, logger: logger}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Intel.ProviderTimeout + 5*time.Second}
	}

	// === Repositories ===
	jobs := repository.NewJobRepo(deps.WriteDB)
	snapshots := repository.NewSnapshotRepo(deps.WriteDB)

	ledgerWriter, ledgerReader, err := a.ledgerRepos(ctx, deps)
	if err != nil {
		a.close()
		return nil, err
	}
	proofs, err := a.proofStore(ctx, deps)
	if err != nil {
		a.close()
		return nil, err
	}

	// === Backends ===
	store := deps.Store
	if store == nil {
		store, err = storage.New(ctx, cfg)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("object store: %w", err)
		}
	}
	a.Store = store

	text := deps.Text
	if text == nil {
		text = llm.NewClient(llm.Options{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		})
	}

	chains := intel.Chains{}
	if cfg.Intel.ProvidersFile != "" {
		file, err := intel.LoadProvidersFile(cfg.Intel.ProvidersFile)
		if err != nil {
			a.close()
			return nil, err
		}
		chains = file.Chains(httpClient)
	} else {
		logger.Warn("PROVIDERS_FILE not set, contract-intel categories will be unresolved")
	}
	resolver := intel.NewResolver(chains, snapshots, intel.Options{
		Timeout:     cfg.Intel.ProviderTimeout,
		Parallelism: cfg.Intel.Parallelism,
	}, logger)

	// === Services ===
	prices := cfg.Prices()
	a.Ledger = billing.NewService(ledgerReader, logger)
	exec := generation.NewExecutor(generation.Deps{
		Jobs:     jobs,
		Text:     text,
		Resolver: resolver,
		Store:    store,
		Ledger:   billing.NewService(ledgerWriter, logger),
		Prices:   prices,
		Brand:    cfg.Brand,
	}, logger)

	a.Pool = worker.New(exec, worker.Options{
		Slots:           cfg.Worker.Slots,
		MaxTasksPerSlot: cfg.Worker.MaxTasksPerSlot,
		MemoryLimit:     cfg.MemoryLimitBytes(),
		JobTimeout:      cfg.Worker.JobTimeout,
		QueueSize:       cfg.Worker.QueueSize,
	}, logger)

	gate := admission.NewGate(admission.NewReceiptVerifier(cfg.Payment.Secret, cfg.Payment.Issuer), proofs, prices, logger)
	a.Dispatcher = dispatch.NewDispatcher(gate, jobs, a.Pool, exec, logger)
	a.Sweeper = dispatch.NewSweeper(jobs, cfg.Worker.Retention, cfg.Worker.RetentionSchedule, logger)

	presigner, _ := store.(storage.Presigner)
	a.Handler = api.NewHandler(api.Options{
		Jobs:      a.Dispatcher,
		Ledger:    a.Ledger,
		Store:     store,
		Presigner: presigner,
		Health:    deps.ReadDB.PingContext,
		Stats:     func() interface{} { return a.Pool.Stats() },
	}, logger)

	return a, nil
}

// ledgerRepos returns the ledger used by the job path and the one used for
// reads. Both are the same repository on PostgreSQL.
func (a *App) ledgerRepos(ctx context.Context, deps Deps) (writer, reader domain.LedgerRepository, err error) {
	if a.cfg.LedgerBackend != "postgres" {
		return repository.NewLedgerRepo(deps.WriteDB), repository.NewLedgerRepo(deps.ReadDB), nil
	}
	pool, err := postgres.Open(ctx, a.cfg.LedgerPGDSN)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	repo := postgres.NewLedgerRepo(pool)
	a.logger.Info("ledger backend: postgres")
	return repo, repo, nil
}

func (a *App) proofStore(ctx context.Context, deps Deps) (domain.ProofStore, error) {
	p := a.cfg.Payment
	if p.ProofStore != "redis" {
		return repository.NewProofRepo(deps.WriteDB), nil
	}
	client := redis.NewClient(&redis.Options{Addr: p.RedisAddr, Password: p.RedisPass, DB: p.RedisDB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", p.RedisAddr, err)
	}
	a.closers = append(a.closers, client.Close)
	a.logger.Info("proof store: redis", "addr", p.RedisAddr)
	return admission.NewRedisProofStore(client, p.ProofTTL), nil
}

// Start fails jobs a previous process left unfinished, then launches the
// worker pool and the retention sweeper. The Go runtime soft memory limit is
// set to the sum of the slot ceilings.
func (a *App) Start() error {
	if limit := a.cfg.MemoryLimitBytes(); limit > 0 {
		debug.SetMemoryLimit(limit * int64(a.cfg.Worker.Slots))
	}

	ctx, cancel := context.WithTimeout(context.Background(), recoverTimeout)
	defer cancel()
	n, err := a.Dispatcher.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover unfinished jobs: %w", err)
	}
	if n > 0 {
		a.logger.Warn("failed jobs interrupted by a previous shutdown", "count", n)
	}

	a.Pool.Start()
	return a.Sweeper.Start()
}

// Router returns the HTTP handler with the standard middleware stack.
func (a *App) Router(ctx context.Context) http.Handler {
	cfg := api.RouterConfig{
		AllowedOrigins: a.cfg.CORSAllowedOrigins,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: a.cfg.RateLimitRPS,
			Burst:             a.cfg.RateLimitBurst,
		},
	}
	if local, ok := a.Store.(*storage.LocalStore); ok {
		cfg.FilesDir = local.Dir()
	}
	return api.NewRouter(ctx, a.Handler, cfg, a.logger)
}

// Shutdown stops the sweeper, drains the pool within ctx and releases
// backend connections.
func (a *App) Shutdown(ctx context.Context) error {
	a.Sweeper.Stop()
	err := a.Pool.Shutdown(ctx)
	return errors.Join(err, a.close())
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
