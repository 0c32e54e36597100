package config

import "time"

// Duration accessors. Validation guarantees the strings parse; the fallbacks
// below only matter for configs constructed programmatically without Load.

// InitialDelay returns the parsed retry initial delay.
func (g GitConfig) InitialDelay() time.Duration {
	if d, err := time.ParseDuration(g.RetryInitialDelay); err == nil && d > 0 {
		return d
	}
	return time.Second
}

// MaxDelay returns the parsed retry delay cap.
func (g GitConfig) MaxDelay() time.Duration {
	if d, err := time.ParseDuration(g.RetryMaxDelay); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// BuildTimeout returns the parsed per-invocation cargo timeout; zero disables it.
func (p *ProjectConfig) BuildTimeout() time.Duration {
	if p == nil || p.Build.Timeout == "" {
		return 0
	}
	if d, err := time.ParseDuration(p.Build.Timeout); err == nil && d > 0 {
		return d
	}
	return 0
}

// HistoryEnabled reports whether the SQLite build history store is active.
func (c *Config) HistoryEnabled() bool {
	return c.History != nil && (c.History.Enabled == nil || *c.History.Enabled)
}

// HistoryMaxAge returns the parsed history retention window.
func (c *Config) HistoryMaxAge() time.Duration {
	if c.History != nil && c.History.MaxAge != "" {
		if d, err := time.ParseDuration(c.History.MaxAge); err == nil && d > 0 {
			return d
		}
	}
	return 90 * 24 * time.Hour
}

// ConfigWatchEnabled reports whether the daemon hot-reloads its config file.
func (d *DaemonConfig) ConfigWatchEnabled() bool {
	return d != nil && (d.WatchConfig == nil || *d.WatchConfig)
}
