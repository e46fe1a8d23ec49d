// Package config handles application configuration and environment loading.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"asset-forge/internal/domain"
)

const devPaymentSecret = "dev-payment-secret-change-in-production"

// WorkerConfig bounds the worker pool.
type WorkerConfig struct {
	Slots             int           `env:"WORKER_SLOTS" envDefault:"4"`
	MaxTasksPerSlot   int           `env:"WORKER_MAX_TASKS_PER_SLOT" envDefault:"50"`
	MemoryLimitMB     int           `env:"WORKER_MEMORY_LIMIT_MB" envDefault:"512"`
	JobTimeout        time.Duration `env:"JOB_TIMEOUT" envDefault:"5m"`
	QueueSize         int           `env:"JOB_QUEUE_SIZE" envDefault:"256"`
	Retention         time.Duration `env:"JOB_RETENTION" envDefault:"24h"`
	RetentionSchedule string        `env:"JOB_RETENTION_SCHEDULE" envDefault:"@every 10m"`
}

// LLMConfig configures the OpenAI-compatible text-generation endpoint.
type LLMConfig struct {
	BaseURL     string        `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	APIKey      string        `env:"LLM_API_KEY"`
	Model       string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	Timeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`
	Temperature float64       `env:"LLM_TEMPERATURE" envDefault:"0.4"`
}

// PaymentConfig configures proof verification, consumption and pricing.
type PaymentConfig struct {
	Secret     string        `env:"PAYMENT_SECRET"`
	Issuer     string        `env:"PAYMENT_ISSUER"`
	ProofStore string        `env:"PROOF_STORE" envDefault:"sqlite"` // sqlite or redis
	RedisAddr  string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass  string        `env:"REDIS_PASSWORD"`
	RedisDB    int           `env:"REDIS_DB" envDefault:"0"`
	ProofTTL   time.Duration `env:"PROOF_TTL" envDefault:"720h"`

	PricePromptOptimizer decimal.Decimal `env:"PRICE_PROMPT_OPTIMIZER" envDefault:"0.50"`
	PriceCodeExplainer   decimal.Decimal `env:"PRICE_CODE_EXPLAINER" envDefault:"0.75"`
	PricePromptTester    decimal.Decimal `env:"PRICE_PROMPT_TESTER" envDefault:"0.50"`
	PriceContractIntel   decimal.Decimal `env:"PRICE_CONTRACT_INTEL" envDefault:"2.00"`
}

// StorageConfig selects and configures the object store backend.
type StorageConfig struct {
	Backend    string `env:"STORAGE_BACKEND" envDefault:"local"` // local, s3, gcs, azure
	PublicBase string `env:"STORAGE_PUBLIC_BASE"`
	LocalDir   string `env:"STORAGE_LOCAL_DIR" envDefault:"artifacts"`

	// S3-compatible (Cloudflare R2, MinIO, AWS).
	S3Endpoint string `env:"R2_ENDPOINT"`
	S3KeyID    string `env:"R2_ACCESS_KEY_ID"`
	S3Secret   string `env:"R2_SECRET_ACCESS_KEY"`
	S3Bucket   string `env:"R2_BUCKET_NAME"`
	S3Region   string `env:"R2_REGION" envDefault:"auto"`

	GCSBucket          string `env:"GCS_BUCKET"`
	GCSCredentialsFile string `env:"GCS_CREDENTIALS_FILE"`

	AzureAccountName string `env:"AZURE_ACCOUNT_NAME"`
	AzureAccountKey  string `env:"AZURE_ACCOUNT_KEY"`
	AzureContainer   string `env:"AZURE_CONTAINER"`
	AzureEndpoint    string `env:"AZURE_ENDPOINT"`
}

// IntelConfig configures the multi-source resolver.
type IntelConfig struct {
	ProvidersFile   string        `env:"PROVIDERS_FILE"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	Parallelism     int           `env:"RESOLVER_PARALLELISM" envDefault:"3"`
}

// Config holds the configuration for the HTTP API, worker pool and backends.
type Config struct {
	DBPath     string `env:"FORGE_DB_PATH" envDefault:"forge.sqlite"`
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	Env        string `env:"ENV" envDefault:"development"`
	Brand      string `env:"DOCUMENT_BRAND" envDefault:"Aetheron"`

	// Ledger backend: sqlite (default) or postgres.
	LedgerBackend string `env:"LEDGER_BACKEND" envDefault:"sqlite"`
	LedgerPGDSN   string `env:"LEDGER_PG_DSN"`

	// Rate limiting
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	Worker  WorkerConfig
	LLM     LLMConfig
	Payment PaymentConfig
	Storage StorageConfig
	Intel   IntelConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string `env:"-"`
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// HasS3Config returns true if all required S3 fields are set.
func (c *Config) HasS3Config() bool {
	s := c.Storage
	return s.S3Endpoint != "" && s.S3KeyID != "" && s.S3Secret != "" && s.S3Bucket != ""
}

// Prices returns the price of each job kind.
func (c *Config) Prices() map[domain.JobKind]decimal.Decimal {
	return map[domain.JobKind]decimal.Decimal{
		domain.KindPromptOptimize: c.Payment.PricePromptOptimizer,
		domain.KindCodeExplain:    c.Payment.PriceCodeExplainer,
		domain.KindPromptTest:     c.Payment.PricePromptTester,
		domain.KindContractIntel:  c.Payment.PriceContractIntel,
	}
}

// MemoryLimitBytes returns the per-slot memory ceiling in bytes.
func (c *Config) MemoryLimitBytes() int64 {
	return int64(c.Worker.MemoryLimitMB) << 20
}

var parsers = map[reflect.Type]env.ParserFunc{
	reflect.TypeOf(decimal.Decimal{}): func(v string) (interface{}, error) {
		return decimal.NewFromString(strings.TrimSpace(v))
	},
}

// LoadFromEnv loads configuration from environment variables.
// Storage and LLM credentials are optional in development.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{FuncMap: parsers}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.CORSAllowedOrigins = compactNonEmpty(cfg.CORSAllowedOrigins)
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Payment.Secret == "" {
		cfg.Payment.Secret = devPaymentSecret
		cfg.Warnings = append(cfg.Warnings, "PAYMENT_SECRET not set, using insecure default. Set PAYMENT_SECRET in production!")
	}
	if cfg.LLM.APIKey == "" {
		cfg.Warnings = append(cfg.Warnings, "LLM_API_KEY not set, text generation requests will be unauthenticated")
	}
	if cfg.Storage.Backend == "local" {
		cfg.Warnings = append(cfg.Warnings, "STORAGE_BACKEND=local, artifacts are written to "+cfg.Storage.LocalDir)
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.Payment.Secret == devPaymentSecret {
			return nil, errors.New("PAYMENT_SECRET must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, errors.New("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	w := c.Worker
	if w.Slots <= 0 {
		return fmt.Errorf("WORKER_SLOTS must be positive, got %d", w.Slots)
	}
	if w.MaxTasksPerSlot <= 0 {
		return fmt.Errorf("WORKER_MAX_TASKS_PER_SLOT must be positive, got %d", w.MaxTasksPerSlot)
	}
	if w.MemoryLimitMB <= 0 {
		return fmt.Errorf("WORKER_MEMORY_LIMIT_MB must be positive, got %d", w.MemoryLimitMB)
	}
	if w.QueueSize <= 0 {
		return fmt.Errorf("JOB_QUEUE_SIZE must be positive, got %d", w.QueueSize)
	}

	switch c.Storage.Backend {
	case "local":
	case "s3":
		if !c.HasS3Config() {
			return errors.New("STORAGE_BACKEND=s3 requires R2_ENDPOINT, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_BUCKET_NAME")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return errors.New("STORAGE_BACKEND=gcs requires GCS_BUCKET")
		}
	case "azure":
		if c.Storage.AzureAccountName == "" || c.Storage.AzureAccountKey == "" || c.Storage.AzureContainer == "" {
			return errors.New("STORAGE_BACKEND=azure requires AZURE_ACCOUNT_NAME, AZURE_ACCOUNT_KEY and AZURE_CONTAINER")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend)
	}

	switch c.Payment.ProofStore {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("unsupported PROOF_STORE %q: use sqlite or redis", c.Payment.ProofStore)
	}

	switch c.LedgerBackend {
	case "sqlite":
	case "postgres":
		if c.LedgerPGDSN == "" {
			return errors.New("LEDGER_BACKEND=postgres requires LEDGER_PG_DSN")
		}
	default:
		return fmt.Errorf("unsupported LEDGER_BACKEND %q: use sqlite or postgres", c.LedgerBackend)
	}

	for kind, price := range c.Prices() {
		if price.IsNegative() {
			return fmt.Errorf("price for %s must not be negative", kind)
		}
	}
	return nil
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
