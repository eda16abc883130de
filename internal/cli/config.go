package cli

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/modman-dev/modman/pkg/artifact"
	"github.com/modman-dev/modman/pkg/errors"
)

// configEnv overrides the config file location.
const configEnv = "MODMAN_CONFIG"

// Config is the optional user configuration file. Every field has a
// working default; an absent file is not an error.
type Config struct {
	// APIURL overrides the catalog API base URL.
	APIURL string `toml:"api_url"`

	// CacheTTLDays is how long cached artifacts stay trusted.
	CacheTTLDays int `toml:"cache_ttl_days"`

	// Workers bounds concurrent artifact downloads.
	Workers int `toml:"workers"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		CacheTTLDays: int(artifact.DefaultTTL.Hours() / 24),
		Workers:      artifact.DefaultWorkers,
	}
}

// ConfigPath returns the config file location, honoring MODMAN_CONFIG.
func ConfigPath() (string, error) {
	if p := os.Getenv(configEnv); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// LoadConfig reads the config file if it exists, layering it over the
// defaults.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parsing %s", path)
	}
	return cfg, nil
}
