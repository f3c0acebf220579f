package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, OnErrorFail, cfg.OnError)
	assert.Equal(t, 1e-5, cfg.InverseTolerance)
	assert.Equal(t, 10, cfg.MaxIterations)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"no grids", func(c *Config) { c.TKY2JGDPath, c.PatchJGDPath = "", "" }},
		{"zero tolerance", func(c *Config) { c.InverseTolerance = 0 }},
		{"zero iterations", func(c *Config) { c.MaxIterations = 0 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"bad policy", func(c *Config) { c.OnError = "retry" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConnectionString(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "host=localhost port=5432 dbname=gis user=postgres sslmode=disable", cfg.ConnectionString())

	cfg.DBPassword = "secret"
	assert.Contains(t, cfg.ConnectionString(), " password=secret")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jgd.yaml")
	content := `
tky2jgd: /data/TKY2JGD.grid
strict_grid: true
workers: 3
on_error: KEEP
metrics_interval: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, "/data/TKY2JGD.grid", cfg.TKY2JGDPath)
	assert.True(t, cfg.StrictGrid)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, OnErrorKeep, cfg.OnError)
	assert.Equal(t, 5*time.Second, cfg.MetricsInterval)
	// untouched keys keep defaults
	assert.Equal(t, "touhokutaiheiyouoki2011.par", cfg.PatchJGDPath)
	assert.Equal(t, 5432, cfg.DBPort)
}

func TestLoadFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [1"), 0o644))
	assert.Error(t, cfg.LoadFile(path))
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("JGD_WORKERS", "7")
	t.Setenv("JGD_ON_ERROR", "SKIP")
	t.Setenv("JGD_DB_HOST", "db.internal")

	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("JGD_PATCHJGD=/grids/patch.grid\nJGD_WORKERS=2\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("JGD_PATCHJGD") })

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadEnv(dotenv, filepath.Join(t.TempDir(), "absent.env")))

	assert.Equal(t, 7, cfg.Workers, "environment wins over .env")
	assert.Equal(t, OnErrorSkip, cfg.OnError)
	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, "/grids/patch.grid", cfg.PatchJGDPath)
}

func TestLoadEnvVariables(t *testing.T) {
	tests := []struct {
		name  string
		value string
		check func(t *testing.T, c *Config)
	}{
		{"JGD_TKY2JGD", "/grids/tky.par", func(t *testing.T, c *Config) { assert.Equal(t, "/grids/tky.par", c.TKY2JGDPath) }},
		{"JGD_STRICT_GRID", "true", func(t *testing.T, c *Config) { assert.True(t, c.StrictGrid) }},
		{"JGD_INVERSE_TOLERANCE", "0.001", func(t *testing.T, c *Config) { assert.Equal(t, 0.001, c.InverseTolerance) }},
		{"JGD_MAX_ITERATIONS", "3", func(t *testing.T, c *Config) { assert.Equal(t, 3, c.MaxIterations) }},
		{"JGD_BATCH_SIZE", "250", func(t *testing.T, c *Config) { assert.Equal(t, 250, c.BatchSize) }},
		{"JGD_DB_PORT", "6543", func(t *testing.T, c *Config) { assert.Equal(t, 6543, c.DBPort) }},
		{"JGD_DB_NAME", "survey", func(t *testing.T, c *Config) { assert.Equal(t, "survey", c.DBName) }},
		{"JGD_DB_USER", "mapper", func(t *testing.T, c *Config) { assert.Equal(t, "mapper", c.DBUser) }},
		{"JGD_DB_PASSWORD", "secret", func(t *testing.T, c *Config) { assert.Equal(t, "secret", c.DBPassword) }},
		{"JGD_DB_SCHEMA", "geo", func(t *testing.T, c *Config) { assert.Equal(t, "geo", c.DBSchema) }},
		{"JGD_DB_TABLE", "tokyo_points", func(t *testing.T, c *Config) { assert.Equal(t, "tokyo_points", c.DBTable) }},
		{"JGD_VERBOSE", "1", func(t *testing.T, c *Config) { assert.True(t, c.Verbose) }},
		{"JGD_LOG_FILE", "/var/log/jgd.log", func(t *testing.T, c *Config) { assert.Equal(t, "/var/log/jgd.log", c.LogFile) }},
		{"JGD_METRICS_INTERVAL", "1m30s", func(t *testing.T, c *Config) { assert.Equal(t, 90*time.Second, c.MetricsInterval) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.name, tt.value)
			cfg := DefaultConfig()
			require.NoError(t, cfg.LoadEnv())
			tt.check(t, cfg)
		})
	}
}

func TestLoadEnvCoversConfig(t *testing.T) {
	for _, name := range []string{
		"JGD_TKY2JGD", "JGD_PATCHJGD", "JGD_STRICT_GRID", "JGD_INVERSE_TOLERANCE",
		"JGD_MAX_ITERATIONS", "JGD_WORKERS", "JGD_BATCH_SIZE", "JGD_ON_ERROR",
		"JGD_DB_HOST", "JGD_DB_PORT", "JGD_DB_NAME", "JGD_DB_USER", "JGD_DB_PASSWORD",
		"JGD_DB_SCHEMA", "JGD_DB_TABLE", "JGD_VERBOSE", "JGD_LOG_FILE", "JGD_METRICS_INTERVAL",
	} {
		assert.Contains(t, envVars, name)
	}
}

func TestLoadEnvInvalid(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"JGD_BATCH_SIZE", "lots"},
		{"JGD_INVERSE_TOLERANCE", "tight"},
		{"JGD_MAX_ITERATIONS", "3.5"},
		{"JGD_VERBOSE", "loud"},
		{"JGD_METRICS_INTERVAL", "30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.name, tt.value)
			cfg := DefaultConfig()
			assert.ErrorContains(t, cfg.LoadEnv(), tt.name)
		})
	}
}
