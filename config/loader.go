package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config file names.
const (
	LocalConfigFile = "facetcrawl.yaml"
	XDGConfigFile   = "config.yaml"
)

// Config file errors.
var (
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrConfigExists   = errors.New("configuration file already exists")
)

// LoadConfigFile reads a YAML file over the defaults. Keys absent from the
// file keep their default values; a facets list replaces the default order.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ResolveSinkPath()
	return cfg, nil
}

// FindConfigFile returns the first config file that exists, looking at
// configPath, then ./facetcrawl.yaml, then $XDG_CONFIG_HOME/facetcrawl/config.yaml.
// An explicit configPath that does not exist yields "".
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, LocalConfigFile)
		if _, err := os.Stat(local); err == nil {
			return local
		}
	}

	xdgPath := filepath.Join(XDGConfigDir(), XDGConfigFile)
	if _, err := os.Stat(xdgPath); err == nil {
		return xdgPath
	}
	return ""
}

// Load finds and loads the config file, falling back to the defaults when none
// exists. An explicit configPath that cannot be found is an error.
func Load(configPath string) (*Config, string, error) {
	path := FindConfigFile(configPath)
	if path == "" {
		if configPath != "" {
			return nil, "", fmt.Errorf("%s: %w", configPath, ErrConfigNotFound)
		}
		return NewConfig(), "", nil
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// WriteConfigFile writes cfg as YAML to path, creating parent directories.
// An existing file is kept unless force is set.
func WriteConfigFile(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, ErrConfigExists)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
