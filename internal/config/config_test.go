package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-forge/internal/domain"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	unsetEnv(t, "ENV", "PAYMENT_SECRET", "STORAGE_BACKEND", "FORGE_DB_PATH", "CORS_ALLOWED_ORIGINS",
		"WORKER_SLOTS", "WORKER_MAX_TASKS_PER_SLOT", "JOB_TIMEOUT", "WORKER_MEMORY_LIMIT_MB")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "forge.sqlite", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, devPaymentSecret, cfg.Payment.Secret)
	assert.Equal(t, 4, cfg.Worker.Slots)
	assert.Equal(t, 50, cfg.Worker.MaxTasksPerSlot)
	assert.Equal(t, 5*time.Minute, cfg.Worker.JobTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, int64(512)<<20, cfg.MemoryLimitBytes())
	assert.NotEmpty(t, cfg.Warnings)
}

// unsetEnv removes keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadFromEnv_Prices(t *testing.T) {
	t.Setenv("PRICE_CONTRACT_INTEL", "3.25")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	prices := cfg.Prices()
	assert.Equal(t, "3.25", prices[domain.KindContractIntel].String())
	assert.Equal(t, "0.5", prices[domain.KindPromptOptimize].String())
	assert.Len(t, prices, len(domain.JobKinds))
}

func TestLoadFromEnv_InvalidPrice(t *testing.T) {
	t.Setenv("PRICE_PROMPT_TESTER", "free")

	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnv_S3RequiresCredentials(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("R2_ENDPOINT", "https://account.r2.cloudflarestorage.com")
	t.Setenv("R2_ACCESS_KEY_ID", "")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "R2_ACCESS_KEY_ID")
}

func TestLoadFromEnv_WithS3(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("R2_ENDPOINT", "https://account.r2.cloudflarestorage.com")
	t.Setenv("R2_ACCESS_KEY_ID", "key")
	t.Setenv("R2_SECRET_ACCESS_KEY", "secret")
	t.Setenv("R2_BUCKET_NAME", "assets")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.HasS3Config())
	assert.Equal(t, "auto", cfg.Storage.S3Region)
}

func TestLoadFromEnv_UnknownBackends(t *testing.T) {
	t.Run("storage", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "ftp")
		_, err := LoadFromEnv()
		require.Error(t, err)
	})
	t.Run("proof store", func(t *testing.T) {
		t.Setenv("PROOF_STORE", "memcached")
		_, err := LoadFromEnv()
		require.Error(t, err)
	})
	t.Run("ledger without dsn", func(t *testing.T) {
		t.Setenv("LEDGER_BACKEND", "postgres")
		t.Setenv("LEDGER_PG_DSN", "")
		_, err := LoadFromEnv()
		require.Error(t, err)
	})
}

func TestLoadFromEnv_ProductionRejectsInsecureDefaults(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("PAYMENT_SECRET", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYMENT_SECRET")

	t.Setenv("PAYMENT_SECRET", "s3cret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "*")
	_, err = LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CORS")

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadFromEnv_RejectsNonPositiveSlots(t *testing.T) {
	t.Setenv("WORKER_SLOTS", "0")
	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := &Config{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	require.NoError(t, LoadDotEnv("/nonexistent/.env"))
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("# comment\nFORGE_TEST_KEY=\"test_value\"\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("FORGE_TEST_KEY") })

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "test_value", os.Getenv("FORGE_TEST_KEY"))
}

func TestLoadDotEnv_EnvTakesPrecedence(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FORGE_TEST_PRECEDENCE=from_file\n"), 0o600))
	t.Setenv("FORGE_TEST_PRECEDENCE", "from_env")

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "from_env", os.Getenv("FORGE_TEST_PRECEDENCE"))
}
