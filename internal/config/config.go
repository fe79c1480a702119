// Package config provides configuration loading and management.
package config

import (
	"fmt"

	"github.com/marrow-forensics/marrow/internal/scanner"
)

// Config is the persisted tool configuration.
type Config struct {
	Version string        `yaml:"version"`
	Log     LogConfig     `yaml:"log"`
	Symbols SymbolsConfig `yaml:"symbols"`
	Scan    ScanConfig    `yaml:"scan"`
}

// LogConfig controls logger behavior.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// SymbolsConfig locates symbol resources.
type SymbolsConfig struct {
	// Dir is searched for intermediate symbol files when a table is
	// named without a path.
	Dir string `yaml:"dir"`
}

// ScanConfig is the region scanner policy.
type ScanConfig struct {
	// SkipUnmapped logs and continues past non-resident chunks instead
	// of aborting the scan.
	SkipUnmapped bool `yaml:"skip_unmapped"`
	// ChunkSize and Overlap override the matcher defaults when nonzero.
	ChunkSize uint64 `yaml:"chunk_size"`
	Overlap   uint64 `yaml:"overlap"`
	// MaxSize caps how many bytes of a single region are scanned.
	MaxSize uint64 `yaml:"max_size"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: "1",
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
		Scan: ScanConfig{
			SkipUnmapped: false,
			ChunkSize:    scanner.DefaultChunkSize,
			Overlap:      scanner.DefaultOverlap,
			MaxSize:      1 << 30,
		},
	}
}

// Validate checks invariants the scanner depends on.
func (c *Config) Validate() error {
	if c.Scan.ChunkSize == 0 {
		return fmt.Errorf("scan.chunk_size must be positive")
	}
	if c.Scan.Overlap >= c.Scan.ChunkSize {
		return fmt.Errorf("scan.overlap (%d) must be smaller than scan.chunk_size (%d)",
			c.Scan.Overlap, c.Scan.ChunkSize)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}
