// Package config loads the server configuration from an optional TOML file
// and MAP_IMAGE_* environment variables. Environment variables win over the
// file, and the file wins over the defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Environment variables read by Load.
const (
	EnvLogLevel       = "MAP_IMAGE_LOG_LEVEL"
	EnvPixelRatio     = "MAP_IMAGE_PIXEL_RATIO"
	EnvPatternCatalog = "MAP_IMAGE_PATTERN_CATALOG"
	EnvAssetsURL      = "MAP_IMAGE_ASSETS_URL"
	EnvAssetsToken    = "MAP_IMAGE_ASSETS_TOKEN"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Duration is a time.Duration written as a Go duration string ("15s").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config holds every tunable of the image pipeline server.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	// PixelRatio is the display density rasters are produced for.
	PixelRatio float64 `toml:"pixel_ratio"`

	// RevisionGuard makes competing loads for one name resolve in request
	// order instead of completion order.
	RevisionGuard bool `toml:"revision_guard"`

	Fetch    FetchConfig    `toml:"fetch"`
	Table    TableConfig    `toml:"table"`
	Patterns PatternsConfig `toml:"patterns"`
	Assets   AssetsConfig   `toml:"assets"`
}

// FetchConfig bounds image acquisition.
type FetchConfig struct {
	Timeout     Duration `toml:"timeout"`
	MaxBytes    int64    `toml:"max_bytes"`
	MaxInFlight int      `toml:"max_in_flight"`
}

// TableConfig configures the in-process image table.
type TableConfig struct {
	MaxDimension int `toml:"max_dimension"`
}

// PatternsConfig locates the pattern catalog.
type PatternsConfig struct {
	// Catalog is a YAML catalog path. Empty uses the built-in catalog.
	Catalog string `toml:"catalog"`

	// Watch reloads and re-syncs patterns when the catalog file changes.
	Watch bool `toml:"watch"`

	// SyncOnStart registers the catalog's patterns when the server starts.
	SyncOnStart bool `toml:"sync_on_start"`
}

// AssetsConfig points at the asset upload API.
type AssetsConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:   "info",
		PixelRatio: 1,
		Fetch: FetchConfig{
			Timeout:     Duration(15 * time.Second),
			MaxBytes:    4 << 20,
			MaxInFlight: 8,
		},
		Table: TableConfig{
			MaxDimension: 4096,
		},
		Patterns: PatternsConfig{
			SyncOnStart: true,
		},
	}
}

// Load builds the configuration from defaults, the TOML file at path (if
// path is not empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvPixelRatio); ok && v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvPixelRatio, v, err)
		}
		c.PixelRatio = ratio
	}
	if v, ok := lookup(EnvPatternCatalog); ok && v != "" {
		c.Patterns.Catalog = v
	}
	if v, ok := lookup(EnvAssetsURL); ok && v != "" {
		c.Assets.BaseURL = v
	}
	if v, ok := lookup(EnvAssetsToken); ok && v != "" {
		c.Assets.Token = v
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.PixelRatio < 1 {
		return fmt.Errorf("%w: pixel_ratio %v is below 1", ErrInvalidConfig, c.PixelRatio)
	}
	if c.Fetch.Timeout < 0 || c.Fetch.MaxBytes < 0 || c.Fetch.MaxInFlight < 0 {
		return fmt.Errorf("%w: fetch limits must not be negative", ErrInvalidConfig)
	}
	if c.Table.MaxDimension < 0 {
		return fmt.Errorf("%w: table.max_dimension must not be negative", ErrInvalidConfig)
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
