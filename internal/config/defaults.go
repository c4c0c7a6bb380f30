package config

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:     "http://127.0.0.1:32400",
			Product: "spool",
			Timeout: 30,
		},
		Playback: PlaybackConfig{
			Window:            50,
			HeartbeatInterval: 10000,
			Autoplay:          true,
		},
		Timeline: TimelineConfig{
			Rate:  4,
			Burst: 4,
			Queue: 32,
		},
		Settings: SettingsConfig{
			Watch: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Server
	if c.Server.URL == "" {
		c.Server.URL = d.Server.URL
	}
	if c.Server.Product == "" {
		c.Server.Product = d.Server.Product
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = d.Server.Timeout
	}

	// Playback
	if c.Playback.Window == 0 {
		c.Playback.Window = d.Playback.Window
	}
	if c.Playback.HeartbeatInterval == 0 {
		c.Playback.HeartbeatInterval = d.Playback.HeartbeatInterval
	}

	// Timeline
	if c.Timeline.Rate == 0 {
		c.Timeline.Rate = d.Timeline.Rate
	}
	if c.Timeline.Burst == 0 {
		c.Timeline.Burst = d.Timeline.Burst
	}
	if c.Timeline.Queue == 0 {
		c.Timeline.Queue = d.Timeline.Queue
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}
