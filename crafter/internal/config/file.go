// Package config handles crafter configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// DefaultURL is the game the explorer drives.
const DefaultURL = "https://neal.fun/infinite-craft/"

// Config is the top-level crafter configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Target  TargetConfig  `yaml:"target"`
	Explore ExploreConfig `yaml:"explore"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Journal JournalConfig `yaml:"journal"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Stealth          string        `yaml:"stealth"` // headless | headful
	Xvfb             bool          `yaml:"xvfb"`    // headful only: run on a virtual display
	XvfbDisplay      string        `yaml:"xvfb_display"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
}

// TargetConfig locates the game page and its elements.
type TargetConfig struct {
	URL             string        `yaml:"url"`
	ItemSelector    string        `yaml:"item_selector"`
	ConsentSelector string        `yaml:"consent_selector"`
	ConsentTimeout  time.Duration `yaml:"consent_timeout"`
	LoadTimeout     time.Duration `yaml:"load_timeout"`
}

// ExploreConfig selects the exploration policies and pacing.
type ExploreConfig struct {
	Selection    string        `yaml:"selection"`   // exhaustive | random
	Termination  string        `yaml:"termination"` // fixed_point | ceiling
	MaxAttempts  int           `yaml:"max_attempts"`
	SampleSize   int           `yaml:"sample_size"`
	Seed         uint64        `yaml:"seed"` // 0 = time based
	ClickDelay   time.Duration `yaml:"click_delay"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
	PassInterval time.Duration `yaml:"pass_interval"`
	Replay       *bool         `yaml:"replay"` // replay the ledger before exploring; default true
	SkipPresent  bool          `yaml:"replay_skip_present"`
}

// LedgerConfig locates the discoveries file.
type LedgerConfig struct {
	Path string `yaml:"path"`
	Mode string `yaml:"mode"` // batch | incremental
}

// JournalConfig locates the SQLite attempt journal. Empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file, applies defaults and validates.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ReplayEnabled reports whether the ledger is replayed before exploring.
func (c *Config) ReplayEnabled() bool {
	return c.Explore.Replay == nil || *c.Explore.Replay
}

func (c *Config) applyDefaults() {
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"images", "media"}
	}

	if c.Target.URL == "" {
		c.Target.URL = DefaultURL
	}
	if c.Target.ItemSelector == "" {
		c.Target.ItemSelector = ".item"
	}
	if c.Target.ConsentSelector == "" {
		c.Target.ConsentSelector = "button.fc-cta-consent"
	}
	if c.Target.ConsentTimeout <= 0 {
		c.Target.ConsentTimeout = 500 * time.Millisecond
	}
	if c.Target.LoadTimeout <= 0 {
		c.Target.LoadTimeout = 30 * time.Second
	}

	if c.Explore.Selection == "" {
		c.Explore.Selection = "exhaustive"
	}
	if c.Explore.Termination == "" {
		if c.Explore.Selection == "random" {
			c.Explore.Termination = "ceiling"
		} else {
			c.Explore.Termination = "fixed_point"
		}
	}
	if c.Explore.SampleSize <= 0 {
		c.Explore.SampleSize = 50
	}
	if c.Explore.ClickDelay <= 0 {
		c.Explore.ClickDelay = 50 * time.Millisecond
	}
	if c.Explore.SettleDelay <= 0 {
		c.Explore.SettleDelay = 200 * time.Millisecond
	}
	if c.Explore.PassInterval <= 0 {
		c.Explore.PassInterval = time.Second
	}

	if c.Ledger.Path == "" {
		c.Ledger.Path = "results.json"
	}
	if c.Ledger.Mode == "" {
		c.Ledger.Mode = "batch"
	}
}

// Validate checks enumerations and the termination guarantees.
func (c *Config) Validate() error {
	switch c.Browser.Stealth {
	case "headless", "headful":
	default:
		return fmt.Errorf("%w: browser.stealth %q (want headless or headful)", ErrInvalid, c.Browser.Stealth)
	}
	switch c.Explore.Selection {
	case "exhaustive", "random":
	default:
		return fmt.Errorf("%w: explore.selection %q (want exhaustive or random)", ErrInvalid, c.Explore.Selection)
	}
	switch c.Explore.Termination {
	case "fixed_point", "ceiling":
	default:
		return fmt.Errorf("%w: explore.termination %q (want fixed_point or ceiling)", ErrInvalid, c.Explore.Termination)
	}
	switch c.Ledger.Mode {
	case "batch", "incremental":
	default:
		return fmt.Errorf("%w: ledger.mode %q (want batch or incremental)", ErrInvalid, c.Ledger.Mode)
	}
	if c.Explore.MaxAttempts < 0 {
		return fmt.Errorf("%w: explore.max_attempts must be >= 0", ErrInvalid)
	}
	if c.Explore.Termination == "ceiling" && c.Explore.MaxAttempts == 0 {
		return fmt.Errorf("%w: explore.termination ceiling needs explore.max_attempts > 0", ErrInvalid)
	}
	if c.Explore.Selection == "random" && c.Explore.Termination != "ceiling" {
		return fmt.Errorf("%w: explore.selection random has no fixed point, set termination ceiling", ErrInvalid)
	}
	if c.Target.ItemSelector == "" {
		return fmt.Errorf("%w: target.item_selector is required", ErrInvalid)
	}
	return nil
}
