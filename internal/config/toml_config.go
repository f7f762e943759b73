package config

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// parseTOML decodes a .strmatch.toml document on top of the defaults, so keys
// the file leaves out keep their default values.
func parseTOML(content []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return cfg, nil
}
