// Package config loads harness configuration from files and environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	// Dialect is the default dialect (URI or shortname) for runs that do
	// not select one explicitly.
	Dialect string `mapstructure:"dialect"`
	// ImageRepository prefixes bare implementation names when resolving
	// them to container images.
	ImageRepository string `mapstructure:"image_repository"`
	// Runtime is the container runtime binary used to launch images.
	Runtime string `mapstructure:"runtime"`
	// Timeout bounds each protocol exchange (Go duration string).
	Timeout string `mapstructure:"timeout"`
	// MaxFail is the default cumulative failure threshold; zero disables.
	MaxFail int  `mapstructure:"max_fail"`
	Quiet   bool `mapstructure:"quiet"`
	Verbose bool `mapstructure:"verbose"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		ImageRepository: "ghcr.io/jsvx/crosscheck",
		Runtime:         "docker",
		Timeout:         "10s",
	}
}

// Load loads configuration from files and environment.
// Config file search order (highest precedence first):
// 1. ./.crosscheck.yaml or ./.crosscheck.yml
// 2. ~/.crosscheck.yaml or ~/.crosscheck.yml
// 3. $XDG_CONFIG_HOME/crosscheck/config.yaml
func Load() (*Config, error) {
	cfg := Default()

	configFile := findConfigFile()
	if configFile != "" {
		v := viper.New()
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// findConfigFile searches for a config file in standard locations.
func findConfigFile() string {
	names := []string{".crosscheck.yaml", ".crosscheck.yml", "crosscheck.yaml", "crosscheck.yml"}

	var searchPaths []string
	if cwd, err := os.Getwd(); err == nil {
		searchPaths = append(searchPaths, cwd)
	}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, home)
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(configDir, "crosscheck"))
	}

	for _, dir := range searchPaths {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
		path := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CROSSCHECK_DIALECT"); v != "" {
		cfg.Dialect = v
	}
	if v := os.Getenv("CROSSCHECK_IMAGE_REPOSITORY"); v != "" {
		cfg.ImageRepository = v
	}
	if v := os.Getenv("CROSSCHECK_RUNTIME"); v != "" {
		cfg.Runtime = v
	}
	if v := os.Getenv("CROSSCHECK_TIMEOUT"); v != "" {
		cfg.Timeout = v
	}
	if v := os.Getenv("CROSSCHECK_MAX_FAIL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxFail = n
		}
	}
	if v := os.Getenv("CROSSCHECK_QUIET"); v == "true" || v == "1" {
		cfg.Quiet = true
	}
	if v := os.Getenv("CROSSCHECK_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
	}
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigFile returns the path to the config file that would be loaded.
func ConfigFile() string {
	return findConfigFile()
}
