// Package config loads the node configuration from yaml and PIFP_ prefixed env vars.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pifp_protocol/sdk"
)

// EnvPrefix is prepended to every env override, store.redis.addr becomes PIFP_STORE_REDIS_ADDR.
const EnvPrefix = "PIFP"

// Config holds the complete node configuration
type Config struct {
	Log       LogConfig       `mapstructure:"log"       yaml:"log"`
	Store     StoreConfig     `mapstructure:"store"     yaml:"store"`
	Ledger    LedgerConfig    `mapstructure:"ledger"    yaml:"ledger"`
	API       APIServerConfig `mapstructure:"api"       yaml:"api"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap" yaml:"bootstrap"`
	Faucet    FaucetConfig    `mapstructure:"faucet"    yaml:"faucet"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// StoreConfig picks and tunes the kv backend
type StoreConfig struct {
	// Backend is one of memory, badger, redis.
	Backend string       `mapstructure:"backend" yaml:"backend"`
	Badger  BadgerConfig `mapstructure:"badger"  yaml:"badger"`
	Redis   RedisConfig  `mapstructure:"redis"   yaml:"redis"`
	Cache   CacheConfig  `mapstructure:"cache"   yaml:"cache"`
}

type BadgerConfig struct {
	Dir        string        `mapstructure:"dir"         yaml:"dir"`
	SyncWrites bool          `mapstructure:"sync_writes" yaml:"sync_writes"`
	GCInterval time.Duration `mapstructure:"gc_interval" yaml:"gc_interval"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"     yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db"       yaml:"db"`
	Prefix   string `mapstructure:"prefix"   yaml:"prefix"`
}

// CacheConfig puts bigcache in front of the backend
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"     yaml:"enabled"`
	LifeWindow time.Duration `mapstructure:"life_window" yaml:"life_window"`
	MaxMB      int           `mapstructure:"max_mb"      yaml:"max_mb"`
}

type LedgerConfig struct {
	ContractAddress string `mapstructure:"contract_address" yaml:"contract_address"`
	// DefaultTTL is the fresh entry lifetime in seconds.
	DefaultTTL uint64 `mapstructure:"default_ttl" yaml:"default_ttl"`
}

// APIServerConfig holds HTTP API server configuration
type APIServerConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr"         yaml:"listen_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"        yaml:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"       yaml:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"        yaml:"idle_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"    yaml:"max_header_bytes"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"      yaml:"max_body_bytes"`
	CORS              bool          `mapstructure:"cors"                yaml:"cors"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// BootstrapConfig names the super admin that serve initializes on an empty store.
type BootstrapConfig struct {
	SuperAdmin string `mapstructure:"super_admin" yaml:"super_admin"`
}

// FaucetConfig gates the native token faucet, meant for dev networks only.
type FaucetConfig struct {
	Enabled   bool   `mapstructure:"enabled"    yaml:"enabled"`
	MaxAmount string `mapstructure:"max_amount" yaml:"max_amount"`
}

// Load reads configuration from the optional file and the environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("store.backend", "badger")
	v.SetDefault("store.badger.dir", "data/badger")
	v.SetDefault("store.badger.sync_writes", true)
	v.SetDefault("store.badger.gc_interval", "10m")
	v.SetDefault("store.redis.addr", "127.0.0.1:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "pifp:")
	v.SetDefault("store.cache.enabled", false)
	v.SetDefault("store.cache.life_window", "10m")
	v.SetDefault("store.cache.max_mb", 256)

	v.SetDefault("ledger.contract_address", "contract:pifp")
	v.SetDefault("ledger.default_ttl", 24*60*60)

	v.SetDefault("api.listen_addr", ":8081")
	v.SetDefault("api.read_header_timeout", "5s")
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "30s")
	v.SetDefault("api.idle_timeout", "120s")
	v.SetDefault("api.max_header_bytes", 1048576)
	v.SetDefault("api.max_body_bytes", 64*1024)
	v.SetDefault("api.cors", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("bootstrap.super_admin", "")

	v.SetDefault("faucet.enabled", false)
	v.SetDefault("faucet.max_amount", "1000000")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateBootstrap(); err != nil {
		return err
	}
	return c.validateFaucet()
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "memory":
	case "badger":
		if strings.TrimSpace(c.Store.Badger.Dir) == "" {
			return fmt.Errorf("store.badger.dir is required for the badger backend")
		}
	case "redis":
		if strings.TrimSpace(c.Store.Redis.Addr) == "" {
			return fmt.Errorf("store.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("store.backend must be memory, badger or redis, got %q", c.Store.Backend)
	}
	if c.Store.Cache.Enabled {
		if c.Store.Cache.MaxMB <= 0 {
			return fmt.Errorf("store.cache.max_mb must be positive, got %d", c.Store.Cache.MaxMB)
		}
		if c.Store.Cache.LifeWindow <= 0 {
			return fmt.Errorf("store.cache.life_window must be positive")
		}
	}
	return nil
}

func (c *Config) validateLedger() error {
	if sdk.Address(c.Ledger.ContractAddress).Domain() != sdk.AddressDomainContract {
		return fmt.Errorf("ledger.contract_address must start with contract:, got %q", c.Ledger.ContractAddress)
	}
	if c.Ledger.DefaultTTL == 0 {
		return fmt.Errorf("ledger.default_ttl must be positive")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if strings.TrimSpace(c.API.ListenAddr) == "" {
		return fmt.Errorf("api.listen_addr is required")
	}
	if c.API.ReadTimeout <= 0 || c.API.WriteTimeout <= 0 {
		return fmt.Errorf("api read and write timeouts must be positive")
	}
	if c.API.MaxBodyBytes <= 0 {
		return fmt.Errorf("api.max_body_bytes must be positive, got %d", c.API.MaxBodyBytes)
	}
	return nil
}

func (c *Config) validateBootstrap() error {
	sa := strings.TrimSpace(c.Bootstrap.SuperAdmin)
	if sa != "" && !sdk.Address(sa).IsValid() {
		return fmt.Errorf("bootstrap.super_admin %q is not a known address type", sa)
	}
	return nil
}

func (c *Config) validateFaucet() error {
	if !c.Faucet.Enabled {
		return nil
	}
	v, err := uint256.FromDecimal(c.Faucet.MaxAmount)
	if err != nil || v.IsZero() {
		return fmt.Errorf("faucet.max_amount must be a positive integer, got %q", c.Faucet.MaxAmount)
	}
	return nil
}

// FaucetMax parses the faucet cap, Validate has already checked it.
func (c *Config) FaucetMax() *uint256.Int {
	v, err := uint256.FromDecimal(c.Faucet.MaxAmount)
	if err != nil {
		return new(uint256.Int)
	}
	return v
}

// Dump renders the effective configuration as yaml.
func Dump(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
