package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "badger", cfg.Store.Backend)
	assert.Equal(t, "data/badger", cfg.Store.Badger.Dir)
	assert.Equal(t, 10*time.Minute, cfg.Store.Badger.GCInterval)
	assert.Equal(t, "contract:pifp", cfg.Ledger.ContractAddress)
	assert.Equal(t, uint64(86400), cfg.Ledger.DefaultTTL)
	assert.Equal(t, ":8081", cfg.API.ListenAddr)
	assert.Equal(t, 15*time.Second, cfg.API.ReadTimeout)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Faucet.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pifp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
store:
  backend: redis
  redis:
    addr: redis:6379
faucet:
  enabled: true
  max_amount: "500"
`), 0o600))
	t.Setenv("PIFP_STORE_REDIS_DB", "3")
	t.Setenv("PIFP_API_LISTEN_ADDR", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 3, cfg.Store.Redis.DB)
	assert.Equal(t, ":9999", cfg.API.ListenAddr)
	assert.Equal(t, "500", cfg.FaucetMax().Dec())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"backend":       func(c *Config) { c.Store.Backend = "etcd" },
		"badger dir":    func(c *Config) { c.Store.Badger.Dir = " " },
		"cache size":    func(c *Config) { c.Store.Cache.Enabled = true; c.Store.Cache.MaxMB = 0 },
		"contract addr": func(c *Config) { c.Ledger.ContractAddress = "hive:pifp" },
		"ttl":           func(c *Config) { c.Ledger.DefaultTTL = 0 },
		"listen":        func(c *Config) { c.API.ListenAddr = "" },
		"body":          func(c *Config) { c.API.MaxBodyBytes = 0 },
		"super admin":   func(c *Config) { c.Bootstrap.SuperAdmin = "alice" },
		"faucet":        func(c *Config) { c.Faucet.Enabled = true; c.Faucet.MaxAmount = "-1" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := *base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestDump(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	raw, err := Dump(cfg)
	require.NoError(t, err)

	var back Config
	require.NoError(t, yaml.Unmarshal(raw, &back))
	assert.Equal(t, cfg.Store.Backend, back.Store.Backend)
	assert.Contains(t, string(raw), "contract_address: contract:pifp")
}
