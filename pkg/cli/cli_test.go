package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves the subset of routes the CLI calls.
type fakeAPI struct {
	polls atomic.Int32

	mu         sync.Mutex
	lastProof  string
	lastBody   SubmitRequest
	lastWallet string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/{component}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastProof = r.Header.Get(PaymentHeader)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastBody))
		if f.lastProof == "used" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"code":402,"message":"payment proof already consumed","error_class":"PaymentInvalid"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(SubmitResponse{JobID: "job-1", Status: "QUEUED", StatusURL: "/api/job-status/job-1"})
	})
	mux.HandleFunc("GET /api/job-status/{id}", func(w http.ResponseWriter, r *http.Request) {
		st := JobStatus{JobID: r.PathValue("id"), Kind: "prompt-optimizer", State: "RUNNING"}
		if f.polls.Add(1) >= 2 {
			st.State = "SUCCEEDED"
			st.Result = &JobResult{Filename: "prompt_optimizer_1.txt", Format: "txt", DownloadURL: "/download/prompt_optimizer_1.txt"}
		}
		_ = json.NewEncoder(w).Encode(st)
	})
	mux.HandleFunc("GET /api/ledger", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastWallet = r.URL.Query().Get("wallet")
		_ = json.NewEncoder(w).Encode(LedgerPage{
			Wallet: f.lastWallet,
			Entries: []LedgerEntry{
				{ID: 2, Wallet: f.lastWallet, Component: "prompt-optimizer", Price: "0.10", Status: "success", Filename: "prompt_optimizer_1.txt"},
			},
			Total: 1,
			Limit: 5,
		})
	})
	mux.HandleFunc("GET /api/ledger/recent", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"entries":[{"id":7,"wallet":"w1","component":"contract-intel","price":"0.50","status":"failed"}]}`))
	})
	return mux
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FORGE_HOST", "")
	t.Setenv("FORGE_OUTPUT", "")
	t.Setenv("FORGE_WALLET", "")
	t.Setenv("FORGE_PAYMENT", "")
}

func TestSubmitCommand(t *testing.T) {
	isolateHome(t)
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	out, err := runCLI(t, "--host", srv.URL, "submit", "prompt-optimizer",
		"--text", "make it better", "--format", "txt", "--wallet", "w1", "--payment", "proof-1")
	require.NoError(t, err)
	assert.Contains(t, out, "job-1")
	assert.Contains(t, out, "QUEUED")

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, "proof-1", api.lastProof)
	assert.Equal(t, "make it better", api.lastBody.Text)
	assert.Equal(t, "w1", api.lastBody.Wallet)
	assert.Equal(t, "txt", api.lastBody.Format)
}

func TestSubmitCommand_UnknownComponent(t *testing.T) {
	isolateHome(t)
	_, err := runCLI(t, "submit", "image-maker", "--text", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown component")
}

func TestSubmitCommand_PaymentRejected(t *testing.T) {
	isolateHome(t)
	srv := httptest.NewServer((&fakeAPI{}).handler(t))
	t.Cleanup(srv.Close)

	_, err := runCLI(t, "--host", srv.URL, "submit", "prompt-optimizer", "--text", "x", "--payment", "used")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.HTTPStatus)
	assert.Equal(t, "PaymentInvalid", apiErr.ErrorClass)
}

func TestSubmitCommand_WaitJSON(t *testing.T) {
	isolateHome(t)
	srv := httptest.NewServer((&fakeAPI{}).handler(t))
	t.Cleanup(srv.Close)

	out, err := runCLI(t, "--host", srv.URL, "-o", "json", "submit", "prompt-optimizer",
		"--text", "x", "--payment", "p", "--wait", "--interval", "10ms")
	require.NoError(t, err)

	var st JobStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "SUCCEEDED", st.State)
	require.NotNil(t, st.Result)
	assert.Equal(t, "prompt_optimizer_1.txt", st.Result.Filename)
}

func TestStatusCommand(t *testing.T) {
	isolateHome(t)
	srv := httptest.NewServer((&fakeAPI{}).handler(t))
	t.Cleanup(srv.Close)

	out, err := runCLI(t, "--host", srv.URL, "status", "job-9")
	require.NoError(t, err)
	assert.Contains(t, out, "job-9")
	assert.Contains(t, out, "RUNNING")
}

func TestLedgerListUsesProfileWallet(t *testing.T) {
	isolateHome(t)
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	require.NoError(t, SaveUserConfig(&UserConfig{
		CurrentProfile: "default",
		Profiles:       map[string]Profile{"default": {Host: srv.URL, Wallet: "wallet-from-profile"}},
	}))

	out, err := runCLI(t, "ledger", "list")
	require.NoError(t, err)
	api.mu.Lock()
	assert.Equal(t, "wallet-from-profile", api.lastWallet)
	api.mu.Unlock()
	assert.Contains(t, out, "PRICE")
	assert.Contains(t, out, "0.10")
	assert.Contains(t, out, "Showing 1-1 of 1")
}

func TestLedgerListRequiresWallet(t *testing.T) {
	isolateHome(t)
	_, err := runCLI(t, "ledger", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--wallet is required")
}

func TestLedgerRecent(t *testing.T) {
	isolateHome(t)
	srv := httptest.NewServer((&fakeAPI{}).handler(t))
	t.Cleanup(srv.Close)

	out, err := runCLI(t, "--host", srv.URL, "ledger", "recent")
	require.NoError(t, err)
	assert.Contains(t, out, "contract-intel")
	assert.Contains(t, out, "failed")
}

func TestConfigSetAndUseProfile(t *testing.T) {
	isolateHome(t)

	_, err := runCLI(t, "config", "set-profile", "--name", "prod",
		"--profile-host", "https://forge.example.com", "--wallet", "w-prod", "--default-output", "json")
	require.NoError(t, err)

	_, err = runCLI(t, "config", "use-profile", "prod")
	require.NoError(t, err)

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.CurrentProfile)
	assert.Equal(t, Profile{Host: "https://forge.example.com", Output: "json", Wallet: "w-prod"}, cfg.Profiles["prod"])

	_, err = runCLI(t, "config", "use-profile", "missing")
	require.Error(t, err)
}

func TestConfigSetProfile_RejectsBadOutput(t *testing.T) {
	isolateHome(t)
	_, err := runCLI(t, "config", "set-profile", "--name", "x", "--default-output", "yaml")
	require.Error(t, err)
}

func TestInvalidOutputFlag(t *testing.T) {
	isolateHome(t)
	_, err := runCLI(t, "-o", "xml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestVersionCommand(t *testing.T) {
	isolateHome(t)
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "forge version")
}
