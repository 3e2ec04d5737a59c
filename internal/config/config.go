// Package config loads the server configuration from a JSON or YAML file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is intentionally small and file-friendly. Zero values are replaced
// by Default() when loading.
type Config struct {
	// Root is the directory served. Default: the working directory.
	Root string `json:"root" yaml:"root"`

	// Addr is the listen address.
	Addr string `json:"addr" yaml:"addr"`

	// CacheEntries caps the small-file cache. Fixed for the process lifetime.
	CacheEntries int `json:"cacheEntries" yaml:"cacheEntries"`

	// CacheMaxFileBytes is the largest file kept in the small-file cache.
	CacheMaxFileBytes int64 `json:"cacheMaxFileBytes" yaml:"cacheMaxFileBytes"`

	// ChunkSize is the read size used when streaming large files.
	ChunkSize int `json:"chunkSize" yaml:"chunkSize"`

	// MaxInFlight caps concurrently served requests; the rest wait.
	MaxInFlight int `json:"maxInFlight" yaml:"maxInFlight"`

	// Thumbnails enables /thumb/ and inline previews in listings. Default: true.
	Thumbnails *bool `json:"thumbnails,omitempty" yaml:"thumbnails,omitempty"`

	// ThumbEntries caps the in-memory thumbnail cache.
	ThumbEntries int `json:"thumbEntries" yaml:"thumbEntries"`

	// WebDAV mounts a read-only WebDAV view of Root under /dav/.
	WebDAV bool `json:"webdav" yaml:"webdav"`

	// Metrics exposes Prometheus metrics on /metrics. Default: true.
	Metrics *bool `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	Log Log `json:"log" yaml:"log"`
}

// Log selects logger verbosity and encoding.
type Log struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // console, json
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Root:              ".",
		Addr:              "0.0.0.0:3000",
		CacheEntries:      100,
		CacheMaxFileBytes: 1 << 20,
		ChunkSize:         8 << 10,
		MaxInFlight:       64,
		ThumbEntries:      256,
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// ThumbnailsEnabled reports whether thumbnails are served.
func (c Config) ThumbnailsEnabled() bool {
	return c.Thumbnails == nil || *c.Thumbnails
}

// MetricsEnabled reports whether /metrics is served.
func (c Config) MetricsEnabled() bool {
	return c.Metrics == nil || *c.Metrics
}

// Load reads path over Default(). The format follows the file extension:
// .yaml/.yml for YAML, anything else is parsed as JSON.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	return cfg, nil
}

// Normalize makes Root absolute and checks every limit.
func (c *Config) Normalize() error {
	if strings.TrimSpace(c.Root) == "" {
		return fmt.Errorf("config: root is required")
	}
	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("config: abs root: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("config: root: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("config: root is not a directory: %s", abs)
	}
	c.Root = abs

	if c.Addr == "" {
		return fmt.Errorf("config: addr is required")
	}
	checks := []struct {
		name string
		v    int64
	}{
		{"cacheEntries", int64(c.CacheEntries)},
		{"cacheMaxFileBytes", c.CacheMaxFileBytes},
		{"chunkSize", int64(c.ChunkSize)},
		{"maxInFlight", int64(c.MaxInFlight)},
		{"thumbEntries", int64(c.ThumbEntries)},
	}
	for _, ch := range checks {
		if ch.v <= 0 {
			return fmt.Errorf("config: %s must be positive, got %d", ch.name, ch.v)
		}
	}
	return nil
}
