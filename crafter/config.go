package crafter

import (
	"github.com/hazyhaar/infcraft/crafter/internal/config"
)

// Config is the top-level crafter configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// TargetConfig locates the game page and its elements.
type TargetConfig = config.TargetConfig

// ExploreConfig selects the exploration policies and pacing.
type ExploreConfig = config.ExploreConfig

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = config.ErrInvalid

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}
