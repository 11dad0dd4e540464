package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
name: quote-relay-test
host: 127.0.0.1
port: 8090
log_level: ERROR

storage:
  db_type: sqlite
  db_path: test.db
  retention_days: 7

network:
  enabled: false
  timeout: 10
  retries: 3
  concurrent_requests: 4

feed:
  history_points: 100
  sources:
    - name: replay-local
      type: replay
      instruments: ["005930", "000660"]
      ticks_per_second: 10

coalescer:
  flush_interval_ms: 100
  mailbox_size: 1024
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// -----------------------------------------------------------------------------

func TestNewConfigValid(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "quote-relay-test", cfg.Name)
	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, "sqlite", cfg.Storage.DBType)
	assert.Equal(t, 100, cfg.Coalescer.FlushIntervalMs)
	require.Len(t, cfg.Feed.Sources, 1)
	assert.Equal(t, "replay", cfg.Feed.Sources[0].Type)
	assert.Len(t, cfg.Feed.Sources[0].Instruments, 2)
}

func TestNewConfigMissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"empty name", func(c *Config) { c.Name = "" }, "name"},
		{"reserved port", func(c *Config) { c.Port = 80 }, "port"},
		{"missing db path", func(c *Config) { c.Storage.DBPath = "" }, "path"},
		{"zero retention", func(c *Config) { c.Storage.RetentionDays = 0 }, "retention"},
		{"no sources", func(c *Config) { c.Feed.Sources = nil }, "source"},
		{"bad source type", func(c *Config) { c.Feed.Sources[0].Type = "csv" }, "unsupported"},
		{"kis without endpoint", func(c *Config) { c.Feed.Sources[0].Type = "kis" }, "endpoint"},
		{"negative flush interval", func(c *Config) { c.Coalescer.FlushIntervalMs = -1 }, "flush"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(writeConfig(t, validYAML))
			require.NoError(t, err)

			tc.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(out))

	reloaded, err := NewConfig(out)
	require.NoError(t, err)

	// Marshalling turns an absent proxy list into an empty one; both mean
	// "no proxies", so compare that field by emptiness and the rest exactly.
	assert.Empty(t, reloaded.Network.Proxies)
	reloaded.Network.Proxies = cfg.Network.Proxies
	assert.Equal(t, cfg.MConfig, reloaded.MConfig)
}
