package config

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Playback PlaybackConfig `toml:"playback"`
	Timeline TimelineConfig `toml:"timeline"`
	Settings SettingsConfig `toml:"settings"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig holds media server connection settings.
type ServerConfig struct {
	URL     string `toml:"url"`
	Token   string `toml:"token"`
	Product string `toml:"product"`
	Timeout int    `toml:"timeout"` // seconds
}

// PlaybackConfig holds queue and buffer settings.
type PlaybackConfig struct {
	Window            int  `toml:"window"`
	HeartbeatInterval int  `toml:"heartbeat_interval"` // milliseconds
	Autoplay          bool `toml:"autoplay"`
}

// TimelineConfig holds timeline report throttling.
type TimelineConfig struct {
	Rate  float64 `toml:"rate"` // reports per second
	Burst int     `toml:"burst"`
	Queue int     `toml:"queue"`
}

// SettingsConfig locates the persisted local settings file.
type SettingsConfig struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}
