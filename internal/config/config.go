package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxSyncWindow is the largest number of transactions persisted per address per sync
const MaxSyncWindow = 10

// Config represents the application configuration
type Config struct {
	Server  ServerConfig `yaml:"server"`
	Pebble  PebbleConfig `yaml:"pebble"`
	Ledger  LedgerConfig `yaml:"ledger"`
	Bitcoin ChainConfig  `yaml:"bitcoin"`
	Sync    SyncConfig   `yaml:"sync"`
	Log     LogConfig    `yaml:"log"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// PebbleConfig represents the Pebble database configuration
type PebbleConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// LedgerConfig selects and tunes the ledger source
type LedgerConfig struct {
	Source   string        `yaml:"source"` // "blockchain" or "node"
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"` // 0 disables the cache
	Network  string        `yaml:"network"`   // mainnet, testnet3, regtest, signet
	TxLimit  int           `yaml:"tx_limit"`  // transactions requested per address
}

// ChainConfig represents the configuration for a bitcoin node used when Ledger.Source is "node"
type ChainConfig struct {
	Host       string `yaml:"host"`
	User       string `yaml:"user"`
	Pass       string `yaml:"pass"`
	Cert       string `yaml:"cert"`
	DisableTLS bool   `yaml:"disable_tls"`
	HTTPMode   bool   `yaml:"http_mode"` // Use HTTP POST instead of WebSocket (for bitcoind)
}

// SyncConfig tunes transaction synchronization
type SyncConfig struct {
	Window    int `yaml:"window"`     // capped at MaxSyncWindow
	ReadLimit int `yaml:"read_limit"` // default page size of stored transactions
	Workers   int `yaml:"workers"`    // background sync workers and SyncAll fan-out
	QueueSize int `yaml:"queue_size"`
}

// LogConfig configures the logger
type LogConfig struct {
	Env string `yaml:"env"` // "prod" selects JSON output
}

// Default returns the configuration used when no file or environment overrides are present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Pebble: PebbleConfig{
			Path: "./data/pebble",
		},
		Ledger: LedgerConfig{
			Source:   "blockchain",
			BaseURL:  "https://blockchain.info",
			Timeout:  15 * time.Second,
			CacheTTL: 30 * time.Second,
			Network:  "mainnet",
			TxLimit:  50,
		},
		Sync: SyncConfig{
			Window:    MaxSyncWindow,
			ReadLimit: 20,
			Workers:   4,
			QueueSize: 256,
		},
		Log: LogConfig{
			Env: "dev",
		},
	}
}

// Load loads configuration from a YAML file and environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	// Load from YAML file if it exists
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	cfg.loadEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Ledger.Source {
	case "blockchain", "node":
	default:
		return fmt.Errorf("invalid ledger source %q: must be 'blockchain' or 'node'", c.Ledger.Source)
	}
	if c.Ledger.Source == "node" && c.Bitcoin.Host == "" {
		return fmt.Errorf("ledger source 'node' requires bitcoin.host")
	}
	if c.Sync.Window <= 0 || c.Sync.Window > MaxSyncWindow {
		c.Sync.Window = MaxSyncWindow
	}
	if c.Sync.ReadLimit <= 0 {
		c.Sync.ReadLimit = 20
	}
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = 1
	}
	if c.Sync.QueueSize <= 0 {
		c.Sync.QueueSize = 1
	}
	return nil
}

func (c *Config) loadEnv() {
	// Server config
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}

	// Pebble config
	if path := os.Getenv("PEBBLE_PATH"); path != "" {
		c.Pebble.Path = path
	}
	if mem := os.Getenv("PEBBLE_IN_MEMORY"); mem != "" {
		c.Pebble.InMemory = mem == "true" || mem == "1"
	}

	// Ledger config
	if source := os.Getenv("LEDGER_SOURCE"); source != "" {
		c.Ledger.Source = source
	}
	if baseURL := os.Getenv("LEDGER_BASE_URL"); baseURL != "" {
		c.Ledger.BaseURL = baseURL
	}
	if timeout := os.Getenv("LEDGER_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.Ledger.Timeout = d
		}
	}
	if ttl := os.Getenv("LEDGER_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			c.Ledger.CacheTTL = d
		}
	}
	if network := os.Getenv("LEDGER_NETWORK"); network != "" {
		c.Ledger.Network = network
	}

	// Bitcoin node config
	c.loadChainEnv(&c.Bitcoin, "BTC")

	// Sync config
	if window := os.Getenv("SYNC_WINDOW"); window != "" {
		if w, err := strconv.Atoi(window); err == nil {
			c.Sync.Window = w
		}
	}
	if workers := os.Getenv("SYNC_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			c.Sync.Workers = w
		}
	}

	// Log config
	if env := os.Getenv("LOG_ENV"); env != "" {
		c.Log.Env = env
	}
}

func (c *Config) loadChainEnv(chain *ChainConfig, prefix string) {
	if host := os.Getenv(prefix + "_HOST"); host != "" {
		chain.Host = host
	}
	if user := os.Getenv(prefix + "_USER"); user != "" {
		chain.User = user
	}
	if pass := os.Getenv(prefix + "_PASS"); pass != "" {
		chain.Pass = pass
	}
	if cert := os.Getenv(prefix + "_CERT"); cert != "" {
		chain.Cert = cert
	}
	if disableTLS := os.Getenv(prefix + "_DISABLE_TLS"); disableTLS != "" {
		chain.DisableTLS = disableTLS == "true" || disableTLS == "1"
	}
	if httpMode := os.Getenv(prefix + "_HTTP_MODE"); httpMode != "" {
		chain.HTTPMode = httpMode == "true" || httpMode == "1"
	}
}
