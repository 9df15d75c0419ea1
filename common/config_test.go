package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bufpool.toml")
	content := `
pool-size = 64
replacer = "clock"
virtual-disk = true
log-level = "warn"
workers = 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(64), cfg.PoolSize)
	assert.Equal(t, "clock", cfg.Replacer)
	assert.True(t, cfg.VirtualDisk)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 8, cfg.Workers)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultConfig().OpsPerWorker, cfg.OpsPerWorker)
	assert.Equal(t, DefaultConfig().DBFile, cfg.DBFile)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`replacer = "lfu"`), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero pool", func(c *Config) { c.PoolSize = 0 }, true},
		{"no file on real disk", func(c *Config) { c.DBFile = "" }, true},
		{"no file on virtual disk", func(c *Config) { c.DBFile = ""; c.VirtualDisk = true }, false},
		{"negative workers", func(c *Config) { c.Workers = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestSetLogLevel(t *testing.T) {
	defer func() { _ = SetLogLevel("info") }()

	require.NoError(t, SetLogLevel("debug"))
	assert.NotZero(t, LogLevelSetting&BUFFER_INTERNAL_STATE)

	require.NoError(t, SetLogLevel("error"))
	assert.Zero(t, LogLevelSetting&WARN)
	assert.NotZero(t, LogLevelSetting&ERROR)

	assert.Error(t, SetLogLevel("verbose"))
}
