package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.spoolrc, $XDG_CONFIG_HOME/spool/config.toml, ~/.config/spool/config.toml
func Load() (*Config, error) {
	cfg := Default()

	path := findConfigFile()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	paths := []string{
		filepath.Join(home, ".spoolrc"),
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	paths = append(paths, filepath.Join(xdgConfig, "spool", "config.toml"))

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("SPOOL_SERVER_URL"); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv("SPOOL_SERVER_TOKEN"); v != "" {
		cfg.Server.Token = v
	}

	// Playback
	if v := os.Getenv("SPOOL_PLAYBACK_WINDOW"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Playback.Window = i
		}
	}
	if v := os.Getenv("SPOOL_PLAYBACK_AUTOPLAY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Playback.Autoplay = b
		}
	}

	// Settings
	if v := os.Getenv("SPOOL_SETTINGS_PATH"); v != "" {
		cfg.Settings.Path = v
	}

	// Log
	if v := os.Getenv("SPOOL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SPOOL_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}
