package config

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/alexjbarnes/idsrv-docstore/internal/docdb"
	"github.com/alexjbarnes/idsrv-docstore/internal/holder"
	"github.com/alexjbarnes/idsrv-docstore/internal/logging"
)

// Config holds all environment-based configuration for the stores.
type Config struct {
	// Configuration store (clients and resources). Leave both empty to
	// skip it.
	ConfigStoreURLs     []string `env:"CONFIG_STORE_URLS" envSeparator:","`
	ConfigStoreDatabase string   `env:"CONFIG_STORE_DATABASE"`

	// Operational store (grants and device codes). Leave both empty to
	// skip it.
	OperationalStoreURLs     []string `env:"OPERATIONAL_STORE_URLS" envSeparator:","`
	OperationalStoreDatabase string   `env:"OPERATIONAL_STORE_DATABASE"`

	// Client certificate for remote databases, as a PEM pair or a PFX
	// bundle. Used by both stores.
	CertFile    string `env:"STORE_CERT_FILE"`
	KeyFile     string `env:"STORE_KEY_FILE"`
	PFXFile     string `env:"STORE_PFX_FILE"`
	PFXPassword string `env:"STORE_PFX_PASSWORD"`

	CreateIndexes        bool          `env:"CREATE_INDEXES" envDefault:"true"`
	IndexWaitTimeout     time.Duration `env:"INDEX_WAIT_TIMEOUT" envDefault:"5s"`
	NonStaleQueryTimeout time.Duration `env:"NON_STALE_QUERY_TIMEOUT" envDefault:"0s"`

	// Configuration store cache. Disabled when the expiration is zero.
	CacheExpiration time.Duration `env:"CONFIG_CACHE_EXPIRATION" envDefault:"0s"`
	CacheSize       int           `env:"CONFIG_CACHE_SIZE" envDefault:"1000"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.ConfigStoreURLs = compact(cfg.ConfigStoreURLs)
	cfg.OperationalStoreURLs = compact(cfg.OperationalStoreURLs)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func compact(urls []string) []string {
	var out []string

	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}

	return out
}

func (c *Config) validate() error {
	if err := storePair("CONFIG_STORE", c.ConfigStoreURLs, c.ConfigStoreDatabase); err != nil {
		return err
	}

	if err := storePair("OPERATIONAL_STORE", c.OperationalStoreURLs, c.OperationalStoreDatabase); err != nil {
		return err
	}

	if !c.HasConfigurationStore() && !c.HasOperationalStore() {
		return fmt.Errorf("at least one of CONFIG_STORE_URLS or OPERATIONAL_STORE_URLS must be set")
	}

	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("STORE_CERT_FILE and STORE_KEY_FILE must be set together")
	}

	if c.CertFile != "" && c.PFXFile != "" {
		return fmt.Errorf("STORE_CERT_FILE and STORE_PFX_FILE are mutually exclusive")
	}

	if c.IndexWaitTimeout <= 0 {
		return fmt.Errorf("INDEX_WAIT_TIMEOUT must be positive")
	}

	if c.NonStaleQueryTimeout < 0 {
		return fmt.Errorf("NON_STALE_QUERY_TIMEOUT must not be negative")
	}

	if c.CacheExpiration < 0 {
		return fmt.Errorf("CONFIG_CACHE_EXPIRATION must not be negative")
	}

	if c.LogLevel != "" {
		if _, ok := logging.ParseLevel(c.LogLevel); !ok {
			return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel)
		}
	}

	return nil
}

func storePair(prefix string, urls []string, database string) error {
	if len(urls) > 0 && database == "" {
		return fmt.Errorf("%s_DATABASE is required when %s_URLS is set", prefix, prefix)
	}

	if len(urls) == 0 && database != "" {
		return fmt.Errorf("%s_URLS is required when %s_DATABASE is set", prefix, prefix)
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasConfigurationStore reports whether the configuration store is set up.
func (c *Config) HasConfigurationStore() bool {
	return len(c.ConfigStoreURLs) > 0
}

// HasOperationalStore reports whether the operational store is set up.
func (c *Config) HasOperationalStore() bool {
	return len(c.OperationalStoreURLs) > 0
}

// CacheEnabled reports whether the configuration stores are cached.
func (c *Config) CacheEnabled() bool {
	return c.CacheExpiration > 0
}

// LoadCertificate loads the configured client certificate, or returns nil
// when none is configured. Each store needs its own copy since closing a
// store wipes its certificate.
func (c *Config) LoadCertificate() (*docdb.Certificate, error) {
	switch {
	case c.PFXFile != "":
		return docdb.LoadPKCS12(c.PFXFile, c.PFXPassword)
	case c.CertFile != "":
		return docdb.LoadX509KeyPair(c.CertFile, c.KeyFile)
	default:
		return nil, nil
	}
}

// ConfigurationStore returns the options for the configuration store.
func (c *Config) ConfigurationStore() (func(*holder.StoreOptions), error) {
	return c.storeOptions(c.ConfigStoreURLs, c.ConfigStoreDatabase)
}

// OperationalStore returns the options for the operational store.
func (c *Config) OperationalStore() (func(*holder.StoreOptions), error) {
	return c.storeOptions(c.OperationalStoreURLs, c.OperationalStoreDatabase)
}

func (c *Config) storeOptions(urls []string, database string) (func(*holder.StoreOptions), error) {
	cert, err := c.LoadCertificate()
	if err != nil {
		return nil, fmt.Errorf("loading store certificate: %w", err)
	}

	return func(o *holder.StoreOptions) {
		o.CreateIndexes = c.CreateIndexes
		o.IndexWaitTimeout = c.IndexWaitTimeout
		o.NonStaleQueryTimeout = c.NonStaleQueryTimeout
		o.ConfigureDocumentStore = func(d *docdb.Options) {
			d.URLs = urls
			d.Database = database
			d.Certificate = cert
		}
	}, nil
}
