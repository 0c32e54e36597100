package config

// Config represents the unified configuration format for daemon and direct modes.
type Config struct {
	Version       string               `yaml:"version"`
	Projects      []*ProjectConfig     `yaml:"projects"`
	Git           GitConfig            `yaml:"git,omitempty"`
	Workspace     WorkspaceConfig      `yaml:"workspace,omitempty"`
	Daemon        *DaemonConfig        `yaml:"daemon,omitempty"`
	History       *HistoryConfig       `yaml:"history,omitempty"`
	Notifications *NotificationsConfig `yaml:"notifications,omitempty"`
	Monitoring    *MonitoringConfig    `yaml:"monitoring,omitempty"`
}

// ProjectConfig describes one crate whose documentation is built and shipped.
type ProjectConfig struct {
	Name      string          `yaml:"name"`
	Source    SourceConfig    `yaml:"source"`
	Toolchain ToolchainConfig `yaml:"toolchain,omitempty"`
	Build     BuildConfig     `yaml:"build,omitempty"`
	Publish   PublishConfig   `yaml:"publish"`
	// Cron expression for scheduled rebuilds; empty disables scheduling.
	Schedule string `yaml:"schedule,omitempty"`
	// Per-project webhook secret; falls back to daemon.webhook_secret when empty.
	WebhookSecret string `yaml:"webhook_secret,omitempty"`
}

// SourceConfig identifies the repository and branch whose pushes trigger builds.
type SourceConfig struct {
	URL    string      `yaml:"url"`
	Branch string      `yaml:"branch,omitempty"`
	Auth   *AuthConfig `yaml:"auth,omitempty"`
}

// ToolchainConfig selects the rustup toolchains used for documentation builds.
// Primary is tried first; Fallback only runs when the primary build fails.
type ToolchainConfig struct {
	Primary  string `yaml:"primary,omitempty"`
	Fallback string `yaml:"fallback,omitempty"`
	Profile  string `yaml:"profile,omitempty"` // rustup profile for installs (minimal|default)
}

// BuildConfig controls the cargo invocation for a project.
type BuildConfig struct {
	// Args passed to cargo after the +toolchain selector. Defaults to ["doc", "--no-deps"].
	Args []string `yaml:"args,omitempty"`
	// Env entries applied to the build process on top of the inherited environment.
	// CARGO_INCREMENTAL, CARGO_TERM_COLOR, and RUST_BACKTRACE are always present
	// after defaults; explicit entries here override their values but cannot
	// remove the keys.
	Env map[string]string `yaml:"env,omitempty"`
	// Timeout for one cargo invocation, duration string. Zero means no limit.
	Timeout string `yaml:"timeout,omitempty"`
}

// PublishConfig describes the pages repository receiving the generated docs.
type PublishConfig struct {
	Repository    string        `yaml:"repository"`
	Branch        string        `yaml:"branch,omitempty"`
	TargetDir     string        `yaml:"target_dir,omitempty"`
	Token         string        `yaml:"token"`
	CommitMessage string        `yaml:"commit_message,omitempty"`
	Author        PublishAuthor `yaml:"author,omitempty"`
}

// PublishAuthor is the committer identity used for deploy commits.
type PublishAuthor struct {
	Name  string `yaml:"name,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// GitConfig carries retry/backoff tuning shared by checkout and publish operations.
type GitConfig struct {
	MaxRetries        int              `yaml:"max_retries,omitempty"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff,omitempty"`
	RetryInitialDelay string           `yaml:"retry_initial_delay,omitempty"`
	RetryMaxDelay     string           `yaml:"retry_max_delay,omitempty"`
}

// WorkspaceConfig controls where checkouts and build artifacts live.
type WorkspaceConfig struct {
	Root string `yaml:"root,omitempty"`
	// Keep ephemeral build directories after completion (debugging aid).
	Keep bool `yaml:"keep,omitempty"`
}

// DaemonConfig represents daemon-specific configuration.
type DaemonConfig struct {
	HTTP  HTTPConfig  `yaml:"http"`
	Queue QueueConfig `yaml:"queue"`
	// Shared webhook secret used when a project does not define its own.
	WebhookSecret string `yaml:"webhook_secret,omitempty"`
	// WatchConfig enables hot reload of the configuration file.
	WatchConfig *bool `yaml:"watch_config,omitempty"`
}

// HTTPConfig represents HTTP server configuration.
type HTTPConfig struct {
	WebhookPort int `yaml:"webhook_port"` // Webhook reception port
	AdminPort   int `yaml:"admin_port"`   // Admin/status endpoints port
}

// QueueConfig sizes the build queue and its worker pool.
type QueueConfig struct {
	Workers int `yaml:"workers"`
	Size    int `yaml:"size"`
}

// HistoryConfig configures the SQLite build history store.
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
	// MaxAge is how long build events are kept before the daily prune
	// removes them, as a duration string. Defaults to 90 days.
	MaxAge string `yaml:"max_age,omitempty"`
}

// NotificationsConfig groups outbound notification transports.
type NotificationsConfig struct {
	NATS *NATSConfig `yaml:"nats,omitempty"`
}

// NATSConfig configures build report publication over NATS.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
	KVBucket      string `yaml:"kv_bucket,omitempty"`
}

// MonitoringConfig represents monitoring and observability configuration.
type MonitoringConfig struct {
	Metrics MonitoringMetrics `yaml:"metrics"`
	Health  MonitoringHealth  `yaml:"health"`
	Logging MonitoringLogging `yaml:"logging"`
}

// MonitoringMetrics represents metrics configuration.
type MonitoringMetrics struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MonitoringHealth represents health check configuration.
type MonitoringHealth struct {
	Path string `yaml:"path"`
}

// MonitoringLogging represents logging configuration.
type MonitoringLogging struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Project returns the project with the given name, or nil when absent.
func (c *Config) Project(name string) *ProjectConfig {
	for _, p := range c.Projects {
		if p != nil && p.Name == name {
			return p
		}
	}
	return nil
}

// EffectiveWebhookSecret resolves the secret used to validate push events for
// a project: the project's own secret wins over the daemon-wide one.
func (c *Config) EffectiveWebhookSecret(p *ProjectConfig) string {
	if p != nil && p.WebhookSecret != "" {
		return p.WebhookSecret
	}
	if c.Daemon != nil {
		return c.Daemon.WebhookSecret
	}
	return ""
}
