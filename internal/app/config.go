package app

import (
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Config is the client configuration, populated from the environment and
// overridable by flags. ServerURL is the websocket base; APIURL is derived
// from it when unset.
type Config struct {
	ServerURL   string `env:"GYMCHAT_SERVER" envDefault:"ws://localhost:8000"`
	APIURL      string `env:"GYMCHAT_API"`
	DBPath      string `env:"GYMCHAT_DB"`
	LogDir      string `env:"GYMCHAT_LOG_DIR"`
	MetricsPath string `env:"GYMCHAT_METRICS"`
	Debug       bool   `env:"GYMCHAT_DEBUG"`
}

// Load reads the environment and fills in per-user default paths.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	if cfg.LogDir == "" {
		cfg.LogDir = DefaultLogDir()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = filepath.Join(cfg.LogDir, "metrics.json")
	}
	return cfg, nil
}

// DefaultDBPath stores the local database under the user config dir, falling
// back to the working directory when none resolves.
func DefaultDBPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "gymchat.db"
	}
	return filepath.Join(base, "gymchat", "gymchat.db")
}

// DefaultLogDir keeps logs next to the database.
func DefaultLogDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "gymchat", "logs")
}
