package retrieval

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds retrieval tunables. Zero values are not filled in; start
// from DefaultConfig or LoadConfig.
type Config struct {
	// ContentThreshold is the minimum cosine similarity for messages and files.
	ContentThreshold float64 `yaml:"content_threshold" toml:"content_threshold"`

	// MemoryThreshold is the minimum cosine similarity for memories. It is a
	// little looser than ContentThreshold because memories are short.
	MemoryThreshold float64 `yaml:"memory_threshold" toml:"memory_threshold"`

	// MemoryLimit caps how many memories a single retrieval may return.
	MemoryLimit int `yaml:"memory_limit" toml:"memory_limit"`

	// ConnectorLimit caps items per connector (further capped by MaxResults).
	ConnectorLimit int `yaml:"connector_limit" toml:"connector_limit"`

	ContentTimeout   time.Duration `yaml:"content_timeout" toml:"content_timeout"`
	MemoryTimeout    time.Duration `yaml:"memory_timeout" toml:"memory_timeout"`
	ConnectorTimeout time.Duration `yaml:"connector_timeout" toml:"connector_timeout"`

	// MaxEntryChars truncates each rendered message, file and connector entry.
	MaxEntryChars int `yaml:"max_entry_chars" toml:"max_entry_chars"`

	// CharsPerToken drives the token estimate. The estimate is reported,
	// never enforced.
	CharsPerToken int `yaml:"chars_per_token" toml:"chars_per_token"`

	// Connectors lists connector kinds in rendering order, with optional
	// per-kind overrides.
	Connectors []ConnectorConfig `yaml:"connectors" toml:"connectors"`
}

// ConnectorConfig overrides defaults for one connector kind.
type ConnectorConfig struct {
	Kind string `yaml:"kind" toml:"kind"`

	// Label is the section heading; defaults to "From <Kind>".
	Label string `yaml:"label" toml:"label"`

	// Similarity is the pseudo-similarity given to every hit. Zero uses
	// connector.SimilarityFor(Kind).
	Similarity float64 `yaml:"similarity" toml:"similarity"`

	// Timeout overrides Config.ConnectorTimeout for this kind.
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

// DefaultConfig is used when no config is supplied.
var DefaultConfig = &Config{
	ContentThreshold: 0.65,
	MemoryThreshold:  0.60,
	MemoryLimit:      5,
	ConnectorLimit:   5,
	ContentTimeout:   10 * time.Second,
	MemoryTimeout:    10 * time.Second,
	ConnectorTimeout: 5 * time.Second,
	MaxEntryChars:    300,
	CharsPerToken:    4,
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) file. Keys missing
// from the file keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := *DefaultConfig
	cfg.Connectors = nil

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode YAML config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("decode TOML config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config %s: unsupported format %q", path, filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and connector entries.
func (c *Config) Validate() error {
	if c.ContentThreshold < 0 || c.ContentThreshold > 1 {
		return fmt.Errorf("content_threshold %v out of range [0,1]", c.ContentThreshold)
	}
	if c.MemoryThreshold < 0 || c.MemoryThreshold > 1 {
		return fmt.Errorf("memory_threshold %v out of range [0,1]", c.MemoryThreshold)
	}
	if c.MemoryLimit < 0 || c.ConnectorLimit < 0 {
		return fmt.Errorf("memory_limit and connector_limit must not be negative")
	}
	if c.ContentTimeout <= 0 || c.MemoryTimeout <= 0 || c.ConnectorTimeout <= 0 {
		return fmt.Errorf("source timeouts must be positive")
	}
	if c.MaxEntryChars <= 0 || c.CharsPerToken <= 0 {
		return fmt.Errorf("max_entry_chars and chars_per_token must be positive")
	}

	seen := make(map[string]bool, len(c.Connectors))
	for i, cc := range c.Connectors {
		if cc.Kind == "" {
			return fmt.Errorf("connectors[%d]: kind is required", i)
		}
		if seen[cc.Kind] {
			return fmt.Errorf("connectors[%d]: duplicate kind %q", i, cc.Kind)
		}
		seen[cc.Kind] = true
		if cc.Similarity < 0 || cc.Similarity > 1 {
			return fmt.Errorf("connectors[%d]: similarity %v out of range [0,1]", i, cc.Similarity)
		}
		if cc.Timeout < 0 {
			return fmt.Errorf("connectors[%d]: negative timeout", i)
		}
	}
	return nil
}

// connector returns the overrides for kind, if any.
func (c *Config) connector(kind string) (ConnectorConfig, bool) {
	for _, cc := range c.Connectors {
		if cc.Kind == kind {
			return cc, true
		}
	}
	return ConnectorConfig{}, false
}
