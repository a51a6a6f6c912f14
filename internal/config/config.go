// Package config loads and watches the core's TOML configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full configuration tree.
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Editor  EditorConfig  `toml:"editor"`
	View    ViewConfig    `toml:"view"`
	Plugins PluginConfig  `toml:"plugins"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`

	// File receives log output when set. Empty means stderr.
	File string `toml:"file"`
}

// EditorConfig controls buffer behavior.
type EditorConfig struct {
	// UndoLimit caps the number of undoable edit groups per buffer.
	UndoLimit int `toml:"undo_limit"`

	// UndoGroupTimeoutMs closes an undo group after this much idle
	// time between edits. Zero disables time-based grouping.
	UndoGroupTimeoutMs int `toml:"undo_group_timeout_ms"`
}

// ViewConfig controls line-cache behavior.
type ViewConfig struct {
	// ScrollSlop is the number of lines kept materialized beyond the
	// visible window on each side.
	ScrollSlop int `toml:"scroll_slop"`

	// PreserveExtent is the distance in lines from the window within
	// which off-screen cache entries are kept instead of discarded.
	PreserveExtent int `toml:"preserve_extent"`
}

// PluginConfig controls the Lua plugin host.
type PluginConfig struct {
	// Enabled turns the plugin host on.
	Enabled bool `toml:"enabled"`

	// Dir is the directory scanned for *.lua plugins.
	Dir string `toml:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Editor: EditorConfig{
			UndoLimit:          1000,
			UndoGroupTimeoutMs: 300,
		},
		View: ViewConfig{
			ScrollSlop:     2,
			PreserveExtent: 1000,
		},
		Plugins: PluginConfig{
			Enabled: true,
		},
	}
}

// Load reads the config file at path, layered over defaults. A
// missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadReader reads configuration from r, layered over defaults.
func LoadReader(r io.Reader) (*Config, error) {
	cfg := Default()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &ParseError{Path: "<reader>", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	if c.Editor.UndoLimit < 1 {
		return &ValidationError{Field: "editor.undo_limit", Message: "must be at least 1"}
	}
	if c.Editor.UndoGroupTimeoutMs < 0 {
		return &ValidationError{Field: "editor.undo_group_timeout_ms", Message: "must not be negative"}
	}
	if c.View.ScrollSlop < 0 {
		return &ValidationError{Field: "view.scroll_slop", Message: "must not be negative"}
	}
	if c.View.PreserveExtent < 0 {
		return &ValidationError{Field: "view.preserve_extent", Message: "must not be negative"}
	}
	return nil
}

// DefaultPath returns the user config file location.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "plume", "config.toml")
	}
	return ""
}

// ParseError reports a malformed config file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports an out-of-range config value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config field %s: %s", e.Field, e.Message)
}
