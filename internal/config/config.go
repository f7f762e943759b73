package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Default values shared by code and configuration parsing
const (
	DefaultThreshold     = 0.85
	DefaultWorkers       = 8
	DefaultAlgorithm     = "ratcliff-obershelp"
	DefaultProgressEvery = 50
	DefaultCompression   = "zstd"
)

// File names searched by LoadDir, in order
var configFileNames = []string{".strmatch.kdl", ".strmatch.toml"}

type Config struct {
	Linking Linking `toml:"linking"`
	Matrix  Matrix  `toml:"matrix"`
	Cache   Cache   `toml:"cache"`
}

type Linking struct {
	Threshold  float64 `toml:"threshold"`    // Ratio a pair must exceed to be linked
	Warning    float64 `toml:"warning"`      // Lower bound of the near-miss band; 0 disables it
	SortBySize bool    `toml:"sort_by_size"` // Order assembled clusters by descending size
}

type Matrix struct {
	Workers            int    `toml:"workers"`           // 0 = DefaultWorkers
	MaxIndex           int    `toml:"max_index"`         // 0 = full set
	Algorithm          string `toml:"algorithm"`         // Similarity algorithm name
	ProgressEvery      int    `toml:"progress_every"`    // Report progress every N rows
	ProgressIntervalMs int    `toml:"progress_interval"` // Report at most once per interval instead; 0 disables
}

type Cache struct {
	Enabled     bool   `toml:"enabled"`
	Path        string `toml:"path"` // Cache file; caching is skipped with a warning when empty
	Compression string `toml:"compression"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Linking: Linking{
			Threshold:  DefaultThreshold,
			Warning:    0,
			SortBySize: true,
		},
		Matrix: Matrix{
			Workers:       DefaultWorkers,
			MaxIndex:      0,
			Algorithm:     DefaultAlgorithm,
			ProgressEvery: DefaultProgressEvery,
		},
		Cache: Cache{
			Enabled:     true,
			Compression: DefaultCompression,
		},
	}
}

// Load reads a configuration file, choosing the format by extension. A
// missing file yields the defaults. Relative cache paths are resolved against
// the directory holding the file.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".kdl":
		cfg, err = parseKDL(string(content))
	case ".toml":
		cfg, err = parseTOML(content)
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .kdl or .toml)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Path != "" && !filepath.IsAbs(cfg.Cache.Path) {
		cfg.Cache.Path = filepath.Clean(filepath.Join(filepath.Dir(path), cfg.Cache.Path))
	}
	return cfg, nil
}

// LoadDir loads the first of .strmatch.kdl or .strmatch.toml found in dir,
// falling back to the defaults.
func LoadDir(dir string) (*Config, error) {
	if dir == "" {
		dir = "."
	}
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Default(), nil
}
