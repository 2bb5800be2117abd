// Package config loads optional tinycxx.toml project settings: default
// runtime tunables for the VM and default diagnostics behavior for the
// compiler.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents a tinycxx.toml project configuration.
type Config struct {
	Runtime Runtime `toml:"runtime"`
	Build   Build   `toml:"build"`

	// Dir is the directory containing the tinycxx.toml file (set at load time).
	Dir string `toml:"-"`
}

// Runtime configures VM defaults.
type Runtime struct {
	StaticMemInitialCells int  `toml:"static-mem-initial-cells"`
	HeapGrowChunk         int  `toml:"heap-grow-chunk"`
	Debug                 bool `toml:"debug"`
	Stats                 bool `toml:"stats"`
}

// Build configures compiler defaults.
type Build struct {
	WarningsAsNotes bool `toml:"warnings-as-notes"`
}

// Default returns the configuration used when no tinycxx.toml is found.
func Default() *Config {
	return &Config{
		Runtime: Runtime{
			StaticMemInitialCells: 1024,
			HeapGrowChunk:         1024,
		},
		Build: Build{
			WarningsAsNotes: true,
		},
	}
}

// Load parses a tinycxx.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "tinycxx.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir looking for a tinycxx.toml file. It
// returns the default configuration, not an error, if none is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", startDir, err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "tinycxx.toml")); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}
