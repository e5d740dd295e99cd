// Package config provides configuration management for morphir.
// It supports multi-layer configuration with precedence:
//  1. Built-in defaults (lowest priority)
//  2. Global user config (~/.config/morphir/config.toml)
//  3. Project config (.morphir/config.toml or morphir.toml)
//  4. Environment variables (MORPHIR_*)
//  5. CLI flags (highest priority)
package config

import "time"

// Config is the main configuration struct for morphir.
type Config struct {
	// Engine configures how the compilation engine is reached.
	Engine EngineConfig `toml:"engine"`

	// Make configures the make command.
	Make MakeConfig `toml:"make"`

	// Generate configures the gen command.
	Generate GenerateConfig `toml:"generate"`

	// Scan configures which source files change detection considers.
	Scan ScanConfig `toml:"scan"`

	// Watch configures make --watch.
	Watch WatchConfig `toml:"watch"`
}

// EngineConfig locates the compilation engine.
type EngineConfig struct {
	// Path is the engine binary. Empty searches MORPHIR_ENGINE, next to
	// morphir, then PATH.
	Path string `toml:"path"`

	// Args are extra arguments passed to a spawned engine.
	Args []string `toml:"args"`

	// Socket dials an already running engine instead of spawning one.
	Socket string `toml:"socket"`
}

// MakeConfig holds make defaults.
type MakeConfig struct {
	// Output is the artifact path.
	Output string `toml:"output"`

	// TypesOnly restricts the build to type information.
	TypesOnly *bool `toml:"types_only"`
}

// GenerateConfig holds gen defaults.
type GenerateConfig struct {
	// Output is the generated code directory.
	Output string `toml:"output"`

	// TargetVersion selects Scala/sdk/src-<version> when copying redistributables.
	TargetVersion string `toml:"target_version"`

	// RedistributableDir holds the Scala SDK sources copied into the output.
	RedistributableDir string `toml:"redistributable_dir"`
}

// ScanConfig filters the source tree.
type ScanConfig struct {
	// Extensions limits detection to these file extensions. Empty means all files.
	Extensions []string `toml:"extensions"`

	// IgnoreDirs are directory name prefixes to skip.
	IgnoreDirs []string `toml:"ignore_dirs"`

	// Workers bounds concurrent file reads. Zero uses GOMAXPROCS.
	Workers int `toml:"workers"`
}

// WatchConfig holds make --watch settings.
type WatchConfig struct {
	// DebounceMS is the quiet period after a change before rebuilding.
	DebounceMS int `toml:"debounce_ms"`
}

// NewConfig creates a new Config with built-in defaults.
func NewConfig() *Config {
	falseVal := false
	return &Config{
		Make: MakeConfig{
			Output:    "morphir-ir.json",
			TypesOnly: &falseVal,
		},
		Generate: GenerateConfig{
			Output:        "dist",
			TargetVersion: "2.11",
		},
		Scan: ScanConfig{
			Extensions: []string{},
			IgnoreDirs: []string{},
		},
		Watch: WatchConfig{
			DebounceMS: 500,
		},
	}
}

// Debounce returns the watch debounce as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// IsTypesOnly reports the effective types_only setting.
func (c *Config) IsTypesOnly() bool {
	return c.Make.TypesOnly != nil && *c.Make.TypesOnly
}

// Merge merges another config into this one (other takes precedence).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Merge engine config
	if other.Engine.Path != "" {
		c.Engine.Path = other.Engine.Path
	}
	if len(other.Engine.Args) > 0 {
		c.Engine.Args = other.Engine.Args
	}
	if other.Engine.Socket != "" {
		c.Engine.Socket = other.Engine.Socket
	}

	// Merge make config
	if other.Make.Output != "" {
		c.Make.Output = other.Make.Output
	}
	if other.Make.TypesOnly != nil {
		c.Make.TypesOnly = other.Make.TypesOnly
	}

	// Merge generate config
	if other.Generate.Output != "" {
		c.Generate.Output = other.Generate.Output
	}
	if other.Generate.TargetVersion != "" {
		c.Generate.TargetVersion = other.Generate.TargetVersion
	}
	if other.Generate.RedistributableDir != "" {
		c.Generate.RedistributableDir = other.Generate.RedistributableDir
	}

	// Merge scan config
	if len(other.Scan.Extensions) > 0 {
		c.Scan.Extensions = other.Scan.Extensions
	}
	if len(other.Scan.IgnoreDirs) > 0 {
		c.Scan.IgnoreDirs = append(c.Scan.IgnoreDirs, other.Scan.IgnoreDirs...)
	}
	if other.Scan.Workers > 0 {
		c.Scan.Workers = other.Scan.Workers
	}

	// Merge watch config
	if other.Watch.DebounceMS > 0 {
		c.Watch.DebounceMS = other.Watch.DebounceMS
	}
}
