// Package config loads the governance configuration: guard enforcement
// flags, trust lifecycle tuning, and store location. Defaults are built
// in; a YAML file overlays only the fields it names.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GuardConfig holds the per-guard enforcement flags.
type GuardConfig struct {
	DenyOnHardLimit    bool `yaml:"deny_on_hard_limit"`
	ConfirmOnSoftLimit bool `yaml:"confirm_on_soft_limit"`
	LogAllDecisions    bool `yaml:"log_all_decisions"`
}

// TrustConfig tunes the trust score lifecycle.
type TrustConfig struct {
	// DailyGainCap bounds positive score gain per rolling 24h window.
	// Zero disables the cap.
	DailyGainCap int `yaml:"daily_gain_cap"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `yaml:"driver"`

	// Path is the SQLite database file. Empty means the default under
	// ~/.trustgate.
	Path string `yaml:"path"`
}

// Config is the full governance configuration.
type Config struct {
	Guard GuardConfig `yaml:"guard"`
	Trust TrustConfig `yaml:"trust"`
	Store StoreConfig `yaml:"store"`
}

// DefaultConfig returns full enforcement with the built-in tuning.
func DefaultConfig() *Config {
	return &Config{
		Guard: GuardConfig{
			DenyOnHardLimit:    true,
			ConfirmOnSoftLimit: true,
			LogAllDecisions:    true,
		},
		Trust: TrustConfig{
			DailyGainCap: 150,
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
	}
}

// DefaultPath is the config file consulted when no path is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".trustgate", "config.yaml")
}

// LoadConfig loads configuration from a YAML file. Empty path falls
// back to ~/.trustgate/config.yaml. Missing file returns defaults.
// Invalid YAML returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads configuration and returns the SHA-256 of the
// raw bytes on disk. Decisions recorded under this configuration carry
// the hash, so an audit replay can tell which policy was in force. When
// no file exists the hash is the SHA-256 of empty input.
func LoadConfigWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, "", fmt.Errorf("read config: %w", err)
			}
			data = nil
		}
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	cfg := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "", "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Trust.DailyGainCap < 0 {
		return fmt.Errorf("config: daily_gain_cap must not be negative")
	}
	return nil
}
