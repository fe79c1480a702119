package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	defaultDir = ".marrow"
	configFile = "config.yaml"
)

// Loader handles loading and saving configuration files.
type Loader struct {
	homeDir string
}

// NewLoader creates a new config loader. The base directory is resolved in
// this order:
//  1. MARROW_CONFIG environment variable.
//  2. User home directory (~/).
//  3. /tmp/marrow-fallback (containerized environments without a home dir).
//
// The loader never returns an error; when no config file exists, Load
// returns defaults.
func NewLoader() *Loader {
	if baseDir := os.Getenv("MARROW_CONFIG"); baseDir != "" {
		return &Loader{homeDir: baseDir}
	}
	homeDir, err := os.UserHomeDir()
	if err == nil {
		return &Loader{homeDir: homeDir}
	}
	return &Loader{homeDir: "/tmp/marrow-fallback"}
}

// Path returns the path to the config file.
func (l *Loader) Path() string {
	return filepath.Join(l.homeDir, defaultDir, configFile)
}

// Load reads the config file, returning defaults when it does not exist.
func (l *Loader) Load() (*Config, error) {
	data, err := os.ReadFile(l.Path())
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", l.Path(), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", l.Path(), err)
	}
	return cfg, nil
}

// Save writes the config file, creating the directory as needed.
func (l *Loader) Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.Path()), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(l.Path(), data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
