package retrieval

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig.Validate())
	assert.Equal(t, 0.65, DefaultConfig.ContentThreshold)
	assert.Equal(t, 0.60, DefaultConfig.MemoryThreshold)
	assert.Equal(t, 5, DefaultConfig.MemoryLimit)
	assert.Equal(t, 300, DefaultConfig.MaxEntryChars)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeConfig(t, "retrieval.yaml", `
content_threshold: 0.7
connector_timeout: 2s
connectors:
  - kind: calendar
    similarity: 0.9
  - kind: email
    label: Inbox
    timeout: 1500ms
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.7, cfg.ContentThreshold)
	assert.Equal(t, 2*time.Second, cfg.ConnectorTimeout)
	assert.Equal(t, DefaultConfig.MemoryThreshold, cfg.MemoryThreshold)
	assert.Equal(t, DefaultConfig.ContentTimeout, cfg.ContentTimeout)
	require.Len(t, cfg.Connectors, 2)
	assert.Equal(t, ConnectorConfig{Kind: "calendar", Similarity: 0.9}, cfg.Connectors[0])
	assert.Equal(t, ConnectorConfig{Kind: "email", Label: "Inbox", Timeout: 1500 * time.Millisecond}, cfg.Connectors[1])

	cc, ok := cfg.connector("email")
	assert.True(t, ok)
	assert.Equal(t, "Inbox", cc.Label)
	_, ok = cfg.connector("drive")
	assert.False(t, ok)
}

func TestLoadConfig_TOML(t *testing.T) {
	path := writeConfig(t, "retrieval.toml", `
memory_limit = 3
max_entry_chars = 120
memory_timeout = "4s"

[[connectors]]
kind = "drive"
label = "Shared Docs"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MemoryLimit)
	assert.Equal(t, 120, cfg.MaxEntryChars)
	assert.Equal(t, 4*time.Second, cfg.MemoryTimeout)
	assert.Equal(t, DefaultConfig.ContentThreshold, cfg.ContentThreshold)
	require.Len(t, cfg.Connectors, 1)
	assert.Equal(t, "Shared Docs", cfg.Connectors[0].Label)
}

func TestLoadConfig_DoesNotMutateDefaults(t *testing.T) {
	path := writeConfig(t, "c.yml", "content_threshold: 0.9\n")
	_, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.65, DefaultConfig.ContentThreshold)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"unsupported extension", "c.json", `{}`},
		{"bad yaml", "c.yaml", "content_threshold: [\n"},
		{"bad toml", "c.toml", "memory_limit = \n"},
		{"threshold out of range", "c.yaml", "memory_threshold: 1.5\n"},
		{"zero timeout", "c.yaml", "content_timeout: 0s\n"},
		{"missing kind", "c.yaml", "connectors:\n  - label: x\n"},
		{"duplicate kind", "c.yaml", "connectors:\n  - kind: email\n  - kind: email\n"},
		{"connector similarity", "c.toml", "[[connectors]]\nkind = \"drive\"\nsimilarity = 2.0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
