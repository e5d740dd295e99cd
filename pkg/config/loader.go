package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/albertocavalcante/morphir-make/internal/errs"
	"github.com/albertocavalcante/morphir-make/internal/log"
)

// ConfigFileName is the name of the project-level config file.
const ConfigFileName = "morphir.toml"

// ConfigDirName is the name of the project-level config directory.
const ConfigDirName = ".morphir"

// GlobalConfigDir is the name of the global config directory inside user's config.
const GlobalConfigDir = "morphir"

// Load loads configuration from all layers in order of precedence:
//  1. Built-in defaults
//  2. Global user config (~/.config/morphir/config.toml)
//  3. Project config (.morphir/config.toml or morphir.toml)
//  4. Environment variables (MORPHIR_*)
//
// CLI flags are applied separately after Load() returns.
func Load() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return LoadFrom(wd)
}

// LoadFrom loads configuration starting from a specific directory.
func LoadFrom(dir string) *Config {
	cfg := NewConfig()

	// Layer 2: Global user config
	if globalCfg := loadGlobalConfig(); globalCfg != nil {
		cfg.Merge(globalCfg)
	}

	// Layer 3: Project config from specified directory
	if projectCfg := loadProjectConfigFrom(dir); projectCfg != nil {
		cfg.Merge(projectCfg)
	}

	// Layer 4: Environment variables
	applyEnvironmentVariables(cfg)

	return cfg
}

// LoadFile decodes a single TOML config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.E(errs.KindConfig, "read config", path, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errs.E(errs.KindConfig, "parse config", path, err)
	}

	return &cfg, nil
}

// loadGlobalConfig loads the global user configuration from ~/.config/morphir/config.toml.
func loadGlobalConfig() *Config {
	path := GetGlobalConfigPath()
	if path == "" {
		return nil
	}
	return loadConfigFile(path)
}

// loadProjectConfigFrom looks for project configuration starting from the given directory.
func loadProjectConfigFrom(dir string) *Config {
	// Search up the directory tree for config files
	current := dir
	for {
		for _, path := range GetProjectConfigPaths(current) {
			if cfg := loadConfigFile(path); cfg != nil {
				return cfg
			}
		}

		// Stop at filesystem root or project/repository root
		if isWorkspaceRoot(current) {
			break
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return nil
}

// isWorkspaceRoot checks if the directory is a project root (has .git or morphir.json).
func isWorkspaceRoot(dir string) bool {
	markers := []string{".git", "morphir.json"}
	for _, marker := range markers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// loadConfigFile loads a configuration from a TOML file. A missing file is
// silently skipped; a malformed one is skipped with a warning.
func loadConfigFile(path string) *Config {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	cfg, err := LoadFile(path)
	if err != nil {
		log.Warn("ignoring config file", "component", "config", "error", err)
		return nil
	}
	return cfg
}

// applyEnvironmentVariables applies MORPHIR_* environment variables to the config.
func applyEnvironmentVariables(cfg *Config) {
	// Engine settings. MORPHIR_ENGINE itself is honored by the engine locator.
	if v := os.Getenv("MORPHIR_ENGINE_ARGS"); v != "" {
		cfg.Engine.Args = strings.Fields(v)
	}
	if v := os.Getenv("MORPHIR_ENGINE_SOCKET"); v != "" {
		cfg.Engine.Socket = v
	}

	// Make settings
	if v := os.Getenv("MORPHIR_MAKE_OUTPUT"); v != "" {
		cfg.Make.Output = v
	}
	applyBoolEnv("MORPHIR_MAKE_TYPES_ONLY", &cfg.Make.TypesOnly)

	// Generate settings
	if v := os.Getenv("MORPHIR_GENERATE_OUTPUT"); v != "" {
		cfg.Generate.Output = v
	}
	if v := os.Getenv("MORPHIR_GENERATE_TARGET_VERSION"); v != "" {
		cfg.Generate.TargetVersion = v
	}
	if v := os.Getenv("MORPHIR_GENERATE_REDISTRIBUTABLE_DIR"); v != "" {
		cfg.Generate.RedistributableDir = v
	}

	// Scan settings: comma-separated lists
	if v := os.Getenv("MORPHIR_SCAN_EXTENSIONS"); v != "" {
		cfg.Scan.Extensions = splitAndTrim(v)
	}
	if v := os.Getenv("MORPHIR_SCAN_IGNORE_DIRS"); v != "" {
		cfg.Scan.IgnoreDirs = splitAndTrim(v)
	}
	applyIntEnv("MORPHIR_SCAN_WORKERS", &cfg.Scan.Workers)

	// Watch settings
	applyIntEnv("MORPHIR_WATCH_DEBOUNCE_MS", &cfg.Watch.DebounceMS)
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// applyBoolEnv applies a boolean environment variable to a pointer.
func applyBoolEnv(envVar string, target **bool) {
	if v := os.Getenv(envVar); v != "" {
		v = strings.ToLower(v)
		if v == "true" || v == "1" || v == "yes" {
			t := true
			*target = &t
		} else if v == "false" || v == "0" || v == "no" {
			f := false
			*target = &f
		}
	}
}

// applyIntEnv applies a positive integer environment variable.
func applyIntEnv(envVar string, target *int) {
	if v := os.Getenv(envVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*target = n
		}
	}
}

// GetGlobalConfigPath returns the path to the global config file.
func GetGlobalConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, GlobalConfigDir, "config.toml")
}

// GetProjectConfigPaths returns potential project config paths for a given directory.
func GetProjectConfigPaths(dir string) []string {
	return []string{
		filepath.Join(dir, ConfigDirName, "config.toml"),
		filepath.Join(dir, ConfigFileName),
	}
}
