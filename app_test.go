package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pifp_protocol/auth"
	"pifp_protocol/config"
	"pifp_protocol/contract"
	"pifp_protocol/kv"
	"pifp_protocol/ledger"
	"pifp_protocol/sdk"
)

const hardhatKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Store.Backend = "memory"
	cfg.Log.Level = "error"
	return cfg
}

// TestAppBootstrapsSuperAdmin checks serve initializes the configured super admin once.
func TestAppBootstrapsSuperAdmin(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Bootstrap.SuperAdmin = "hive:Tibfox"

	app, err := NewApp(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.shutdown() })

	sa, ok, err := app.contract.SuperAdmin(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sdk.Address("hive:tibfox"), sa)

	// a second pass over the same store leaves it alone
	require.NoError(t, app.bootstrap(context.Background()))
	role, ok, err := app.contract.RoleOf(context.Background(), sa)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, contract.RoleSuperAdmin, role)
}

// TestBootstrapOverArchivedState checks a restart after a long idle stretch neither fails
// nor hands the protocol to the configured super admin again.
func TestBootstrapOverArchivedState(t *testing.T) {
	clock := sdk.NewManualClock(1_756_857_600)
	rt := ledger.New(kv.NewMemoryStore(), "contract:pifp", ledger.WithClock(clock))
	c := contract.New(rt, zerolog.Nop())
	first := sdk.Address("hive:first")
	require.NoError(t, c.Init(sdk.SignedBy(context.Background(), first), first))
	clock.Advance(contract.PersistentLifetime + 1)

	cfg := memoryConfig(t)
	cfg.Bootstrap.SuperAdmin = "hive:second"
	app := &App{cfg: cfg, log: zerolog.Nop(), runtime: rt, contract: c}
	require.NoError(t, app.bootstrap(context.Background()))

	_, err := c.Restore(context.Background(), nil, nil)
	require.NoError(t, err)
	sa, ok, err := c.SuperAdmin(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, sa)
}

func TestAppWithoutBootstrap(t *testing.T) {
	app, err := NewApp(context.Background(), memoryConfig(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.shutdown() })

	_, ok, err := app.contract.SuperAdmin(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestAppRoutes checks the assembled handler serves health, metrics and the faucet when asked.
func TestAppRoutes(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Faucet.Enabled = true

	app, err := NewApp(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.shutdown() })
	h := app.apiServer.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	body := `{"token":"contract:usdc","to":"hive:bob","amount":"10"}`
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/faucet", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pifp_http_requests_total")
}

// TestSignCommand checks the printed header value recovers to the key's address.
func TestSignCommand(t *testing.T) {
	body := []byte(`{"nonce":1}`)
	cmd := &cobra.Command{RunE: runSign}
	cmd.Flags().String("key", "0x"+hardhatKey, "")
	cmd.Flags().String("body", "-", "")
	cmd.SetIn(bytes.NewReader(body))
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())
	addr, err := auth.Recover(body, strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, sdk.Address("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), addr)
}

func TestApplyFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().String("store", "", "")
	require.NoError(t, cmd.Flags().Set("log-level", "debug"))
	require.NoError(t, cmd.Flags().Set("store", "redis"))

	cfg := memoryConfig(t)
	applyFlags(cmd, cfg)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.False(t, cfg.Faucet.Enabled)
}
