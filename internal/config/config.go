// Package config provides configuration types and defaults for loom.
package config

import (
	"fmt"
)

// Config holds all configuration options for loom.
type Config struct {
	// AllowDuplicates downgrades duplicate definitions and duplicate
	// expanded records from errors to warnings; the later one wins.
	AllowDuplicates bool `mapstructure:"allow_duplicates"`

	// AllowEmptyVariables substitutes missing placeholder keys with the
	// empty string instead of failing the expansion.
	AllowEmptyVariables bool `mapstructure:"allow_empty_variables"`

	// KeepDescriptions leaves records without a description untouched
	// instead of defaulting it before the managed marker is appended.
	KeepDescriptions bool `mapstructure:"keep_descriptions"`

	// IncludePath is the ordered list of directories searched by the
	// include directives, ahead of the including document's directory.
	IncludePath []string `mapstructure:"include_path"`

	Log     LogConfig     `mapstructure:"log"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// LogConfig holds logging options.
type LogConfig struct {
	Level string `mapstructure:"level"` // "debug", "info", "warn" or "error"
	File  string `mapstructure:"file"`  // empty logs to stderr
}

// TracingConfig holds tracing options.
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"`  // "stdout" or "file"
	FilePath string `mapstructure:"file_path"` // required when exporter=file
}

// Defaults returns the configuration used when no file or flags are
// given.
func Defaults() Config {
	return Config{
		AllowDuplicates:     false,
		AllowEmptyVariables: false,
		KeepDescriptions:    false,
		Log: LogConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Exporter: "stdout",
		},
	}
}

// Validate checks the configuration for values no component can act on.
func (c Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Tracing.Exporter {
	case "stdout", "file":
	default:
		return fmt.Errorf("tracing.exporter must be 'stdout' or 'file', got %q", c.Tracing.Exporter)
	}
	if c.Tracing.Enabled && c.Tracing.Exporter == "file" && c.Tracing.FilePath == "" {
		return fmt.Errorf("tracing.file_path is required when tracing.exporter is 'file'")
	}
	return nil
}
