package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/idsrv-docstore/internal/docdb"
	"github.com/alexjbarnes/idsrv-docstore/internal/holder"
)

// clearConfigEnv unsets all config env vars so tests start clean.
func clearConfigEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"CONFIG_STORE_URLS",
		"CONFIG_STORE_DATABASE",
		"OPERATIONAL_STORE_URLS",
		"OPERATIONAL_STORE_DATABASE",
		"STORE_CERT_FILE",
		"STORE_KEY_FILE",
		"STORE_PFX_FILE",
		"STORE_PFX_PASSWORD",
		"CREATE_INDEXES",
		"INDEX_WAIT_TIMEOUT",
		"NON_STALE_QUERY_TIMEOUT",
		"CONFIG_CACHE_EXPIRATION",
		"CONFIG_CACHE_SIZE",
		"ENVIRONMENT",
		"LOG_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// setStoresEnv sets the minimum env vars for both stores.
func setStoresEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_STORE_URLS", "bolt:///var/lib/idsrv")
	t.Setenv("CONFIG_STORE_DATABASE", "config")
	t.Setenv("OPERATIONAL_STORE_URLS", "redis://cache-1:6379/0, redis://cache-2:6379/0")
	t.Setenv("OPERATIONAL_STORE_DATABASE", "ops")
}

func TestLoad_BothStores(t *testing.T) {
	clearConfigEnv(t)
	setStoresEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"bolt:///var/lib/idsrv"}, cfg.ConfigStoreURLs)
	assert.Equal(t, "config", cfg.ConfigStoreDatabase)
	assert.Equal(t, []string{"redis://cache-1:6379/0", "redis://cache-2:6379/0"}, cfg.OperationalStoreURLs)
	assert.Equal(t, "ops", cfg.OperationalStoreDatabase)
	assert.True(t, cfg.HasConfigurationStore())
	assert.True(t, cfg.HasOperationalStore())
}

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)
	setStoresEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.CreateIndexes)
	assert.Equal(t, 5*time.Second, cfg.IndexWaitTimeout)
	assert.Zero(t, cfg.NonStaleQueryTimeout)
	assert.False(t, cfg.CacheEnabled())
	assert.Equal(t, 1000, cfg.CacheSize)
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoad_OnlyOperational(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("OPERATIONAL_STORE_URLS", "bolt:///tmp")
	t.Setenv("OPERATIONAL_STORE_DATABASE", "ops")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.HasConfigurationStore())
	assert.True(t, cfg.HasOperationalStore())
}

func TestLoad_NoStores(t *testing.T) {
	clearConfigEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIG_STORE_URLS")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"database without urls", map[string]string{"CONFIG_STORE_URLS": "", "CONFIG_STORE_DATABASE": "config"}, "CONFIG_STORE_URLS"},
		{"urls without database", map[string]string{"OPERATIONAL_STORE_DATABASE": ""}, "OPERATIONAL_STORE_DATABASE"},
		{"cert without key", map[string]string{"STORE_CERT_FILE": "client.crt"}, "STORE_KEY_FILE"},
		{"cert and pfx", map[string]string{"STORE_CERT_FILE": "c", "STORE_KEY_FILE": "k", "STORE_PFX_FILE": "p"}, "mutually exclusive"},
		{"zero index wait", map[string]string{"INDEX_WAIT_TIMEOUT": "0s"}, "INDEX_WAIT_TIMEOUT"},
		{"negative cache expiration", map[string]string{"CONFIG_CACHE_EXPIRATION": "-1m"}, "CONFIG_CACHE_EXPIRATION"},
		{"unknown log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"bad duration", map[string]string{"INDEX_WAIT_TIMEOUT": "soon"}, "parsing config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			setStoresEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_BlankURLsIgnored(t *testing.T) {
	clearConfigEnv(t)
	setStoresEnv(t)
	t.Setenv("CONFIG_STORE_URLS", " , ")
	t.Setenv("CONFIG_STORE_DATABASE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.HasConfigurationStore())
}

func TestIsProduction(t *testing.T) {
	assert.True(t, (&Config{Environment: "production"}).IsProduction())
	assert.False(t, (&Config{Environment: "development"}).IsProduction())
}

func TestLoadCertificate_None(t *testing.T) {
	cert, err := (&Config{}).LoadCertificate()
	require.NoError(t, err)
	assert.Nil(t, cert)
}

func TestLoadCertificate_MissingFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := (&Config{CertFile: filepath.Join(dir, "c.crt"), KeyFile: filepath.Join(dir, "c.key")}).LoadCertificate()
	assert.Error(t, err)

	_, err = (&Config{PFXFile: filepath.Join(dir, "c.pfx")}).LoadCertificate()
	assert.Error(t, err)

	_, err = (&Config{PFXFile: filepath.Join(dir, "c.pfx")}).OperationalStore()
	assert.Error(t, err)
}

func TestConfigurationStore_Options(t *testing.T) {
	cfg := &Config{
		ConfigStoreURLs:      []string{"bolt:///data"},
		ConfigStoreDatabase:  "config",
		CreateIndexes:        false,
		IndexWaitTimeout:     2 * time.Second,
		NonStaleQueryTimeout: time.Second,
	}

	configure, err := cfg.ConfigurationStore()
	require.NoError(t, err)

	opts := holder.DefaultStoreOptions()
	configure(&opts)
	assert.False(t, opts.CreateIndexes)
	assert.Equal(t, 2*time.Second, opts.IndexWaitTimeout)
	assert.Equal(t, time.Second, opts.NonStaleQueryTimeout)

	var dbOpts docdb.Options
	opts.ConfigureDocumentStore(&dbOpts)
	assert.Equal(t, []string{"bolt:///data"}, dbOpts.URLs)
	assert.Equal(t, "config", dbOpts.Database)
	assert.Nil(t, dbOpts.Certificate)
}
