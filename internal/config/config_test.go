package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFrom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[server]
url = "https://media.example.com:32400"
token = "abc"

[playback]
window = 20
autoplay = false

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.URL != "https://media.example.com:32400" {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
	if cfg.Server.Token != "abc" {
		t.Errorf("Server.Token = %q", cfg.Server.Token)
	}
	if cfg.Playback.Window != 20 {
		t.Errorf("Playback.Window = %d, want 20", cfg.Playback.Window)
	}
	if cfg.Playback.Autoplay {
		t.Error("Playback.Autoplay = true, want false from file")
	}
	if cfg.Playback.HeartbeatInterval != 10000 {
		t.Errorf("Playback.HeartbeatInterval = %d, want default 10000", cfg.Playback.HeartbeatInterval)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPOOL_SERVER_TOKEN", "from-env")
	t.Setenv("SPOOL_PLAYBACK_WINDOW", "12")

	cfg := Default()
	applyEnvOverrides(cfg)

	if cfg.Server.Token != "from-env" {
		t.Errorf("Server.Token = %q, want from-env", cfg.Server.Token)
	}
	if cfg.Playback.Window != 12 {
		t.Errorf("Playback.Window = %d, want 12", cfg.Playback.Window)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad scheme", func(c *Config) { c.Server.URL = "ftp://x" }, "scheme"},
		{"negative window", func(c *Config) { c.Playback.Window = -1 }, "window"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"negative rate", func(c *Config) { c.Timeline.Rate = -1 }, "rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
