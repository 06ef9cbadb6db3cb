package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOptionsMissingFileYieldsDefaults(t *testing.T) {
	opts, err := LoadOptions(filepath.Join(t.TempDir(), "options.yaml"))
	require.NoError(t, err)
	assert.False(t, opts.EnableTLS)
	assert.Empty(t, opts.TuningDirectives())
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	content := "enable-tls: true\nmaxmemory: 256mb\nmaxmemory-policy: allkeys-lru\ntcp-keepalive: 300\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.True(t, opts.EnableTLS)
	assert.Equal(t, [][2]string{
		{"maxmemory", "256mb"},
		{"maxmemory-policy", "allkeys-lru"},
		{"tcp-keepalive", "300"},
	}, opts.TuningDirectives())
}

func TestLoadOptionsRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte("no-such-option: 1\n"), 0o600))

	_, err := LoadOptions(path)
	assert.Error(t, err)
}

func TestOperatorValidateDefaults(t *testing.T) {
	cfg := &Operator{
		AppName:     "redkeeper",
		UnitOrdinal: 0,
		UnitAddress: "10.0.0.10",
		Resources:   Resources{Image: "redis:7"},
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/redkeeper", cfg.DataDir)
	assert.Equal(t, "/var/lib/redkeeper/peers.yaml", cfg.PeersFile)
	assert.Equal(t, "/charm/containers/redis/pebble.sock", cfg.RedisSocket)
	assert.Equal(t, "127.0.0.1:9121", cfg.MetricsAddr)
}

func TestOperatorValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		cfg  Operator
	}{
		{"missing app name", Operator{UnitAddress: "10.0.0.10", Resources: Resources{Image: "redis:7"}}},
		{"missing address", Operator{AppName: "redkeeper", Resources: Resources{Image: "redis:7"}}},
		{"missing image", Operator{AppName: "redkeeper", UnitAddress: "10.0.0.10"}},
		{"negative ordinal", Operator{AppName: "redkeeper", UnitOrdinal: -1, UnitAddress: "10.0.0.10", Resources: Resources{Image: "redis:7"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}
