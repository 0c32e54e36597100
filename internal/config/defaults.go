package config

import (
	"path/filepath"
)

// Fixed build environment keys applied to every documentation build.
const (
	EnvCargoIncremental = "CARGO_INCREMENTAL"
	EnvCargoTermColor   = "CARGO_TERM_COLOR"
	EnvRustBacktrace    = "RUST_BACKTRACE"
)

// FixedBuildEnv returns the build-flag settings every cargo invocation receives.
// Incremental compilation is disabled (throwaway CI builds gain nothing from it),
// terminal colors are forced for readable captured output, and full backtraces
// make nightly ICEs diagnosable from logs alone. Projects may override the
// values per key but the keys themselves are always present.
func FixedBuildEnv() map[string]string {
	return map[string]string{
		EnvCargoIncremental: "0",
		EnvCargoTermColor:   "always",
		EnvRustBacktrace:    "full",
	}
}

// Default toolchain selection; fallback only runs when the primary build fails.
const (
	DefaultPrimaryToolchain  = "nightly"
	DefaultFallbackToolchain = "stable"
)

// ConfigDefaultApplier applies defaults for a specific configuration domain.
type ConfigDefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// ProjectDefaultApplier fills per-project defaults for source, toolchain, build, and publish.
type ProjectDefaultApplier struct{}

func (p *ProjectDefaultApplier) Domain() string { return "projects" }

func (p *ProjectDefaultApplier) ApplyDefaults(cfg *Config) error {
	for _, prj := range cfg.Projects {
		if prj == nil {
			continue
		}
		if prj.Source.Branch == "" {
			prj.Source.Branch = "master"
		}
		if prj.Toolchain.Primary == "" {
			prj.Toolchain.Primary = DefaultPrimaryToolchain
		}
		if prj.Toolchain.Fallback == "" {
			prj.Toolchain.Fallback = DefaultFallbackToolchain
		}
		if prj.Toolchain.Profile == "" {
			prj.Toolchain.Profile = "minimal"
		}
		if len(prj.Build.Args) == 0 {
			prj.Build.Args = []string{"doc", "--no-deps"}
		}
		if prj.Build.Env == nil {
			prj.Build.Env = make(map[string]string, 3)
		}
		for k, v := range FixedBuildEnv() {
			if _, ok := prj.Build.Env[k]; !ok {
				prj.Build.Env[k] = v
			}
		}
		if prj.Build.Timeout == "" {
			prj.Build.Timeout = "30m"
		}
		if prj.Publish.Branch == "" {
			prj.Publish.Branch = "master"
		}
		if prj.Publish.TargetDir == "" {
			prj.Publish.TargetDir = "doc"
		}
		if prj.Publish.Author.Name == "" {
			prj.Publish.Author.Name = "docship"
		}
		if prj.Publish.Author.Email == "" {
			prj.Publish.Author.Email = "docship@localhost"
		}
	}
	return nil
}

// GitDefaultApplier handles retry/backoff defaults for git operations.
type GitDefaultApplier struct{}

func (g *GitDefaultApplier) Domain() string { return "git" }

func (g *GitDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Git.MaxRetries < 0 {
		cfg.Git.MaxRetries = 0
	}
	if cfg.Git.MaxRetries == 0 { // default 2 retries (3 total attempts) unless explicitly set >0
		cfg.Git.MaxRetries = 2
	}
	if cfg.Git.RetryBackoff == "" {
		cfg.Git.RetryBackoff = RetryBackoffLinear
	} else {
		cfg.Git.RetryBackoff = NormalizeRetryBackoff(string(cfg.Git.RetryBackoff))
		if cfg.Git.RetryBackoff == "" { // fallback to default if unknown
			cfg.Git.RetryBackoff = RetryBackoffLinear
		}
	}
	if cfg.Git.RetryInitialDelay == "" {
		cfg.Git.RetryInitialDelay = "1s"
	}
	if cfg.Git.RetryMaxDelay == "" {
		cfg.Git.RetryMaxDelay = "30s"
	}
	return nil
}

// WorkspaceDefaultApplier handles workspace configuration defaults.
type WorkspaceDefaultApplier struct{}

func (w *WorkspaceDefaultApplier) Domain() string { return "workspace" }

func (w *WorkspaceDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = "./workspace"
	}
	return nil
}

// DaemonDefaultApplier handles daemon configuration defaults.
type DaemonDefaultApplier struct{}

func (d *DaemonDefaultApplier) Domain() string { return "daemon" }

func (d *DaemonDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Daemon == nil {
		return nil // No daemon config to apply defaults to
	}
	if cfg.Daemon.HTTP.WebhookPort == 0 {
		cfg.Daemon.HTTP.WebhookPort = 8081
	}
	if cfg.Daemon.HTTP.AdminPort == 0 {
		cfg.Daemon.HTTP.AdminPort = 8082
	}
	if cfg.Daemon.Queue.Workers <= 0 {
		cfg.Daemon.Queue.Workers = 2
	}
	if cfg.Daemon.Queue.Size <= 0 {
		cfg.Daemon.Queue.Size = 16
	}
	if cfg.Daemon.WatchConfig == nil {
		enabled := true
		cfg.Daemon.WatchConfig = &enabled
	}
	return nil
}

// HistoryDefaultApplier handles build history configuration defaults.
type HistoryDefaultApplier struct{}

func (h *HistoryDefaultApplier) Domain() string { return "history" }

func (h *HistoryDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.History == nil {
		cfg.History = &HistoryConfig{}
	}
	if cfg.History.Enabled == nil {
		enabled := true
		cfg.History.Enabled = &enabled
	}
	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(cfg.Workspace.Root, "history.db")
	}
	return nil
}

// NotificationsDefaultApplier handles notification transport defaults.
// Notifications are opt-in: a nil section stays nil.
type NotificationsDefaultApplier struct{}

func (n *NotificationsDefaultApplier) Domain() string { return "notifications" }

func (n *NotificationsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Notifications == nil || cfg.Notifications.NATS == nil {
		return nil
	}
	nc := cfg.Notifications.NATS
	if nc.URL == "" {
		nc.URL = "nats://localhost:4222"
	}
	if nc.SubjectPrefix == "" {
		nc.SubjectPrefix = "docship"
	}
	if nc.KVBucket == "" {
		nc.KVBucket = "docship-reports"
	}
	return nil
}

// MonitoringDefaultApplier handles monitoring configuration defaults.
type MonitoringDefaultApplier struct{}

func (m *MonitoringDefaultApplier) Domain() string { return "monitoring" }

func (m *MonitoringDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Monitoring == nil {
		cfg.Monitoring = &MonitoringConfig{}
	}
	if cfg.Monitoring.Metrics.Path == "" {
		cfg.Monitoring.Metrics.Path = "/metrics"
	}
	if cfg.Monitoring.Health.Path == "" {
		cfg.Monitoring.Health.Path = "/healthz"
	}
	if cfg.Monitoring.Logging.Level == "" {
		cfg.Monitoring.Logging.Level = LogLevelInfo
	} else {
		if lvl := NormalizeLogLevel(string(cfg.Monitoring.Logging.Level)); lvl != "" {
			cfg.Monitoring.Logging.Level = lvl
		}
	}
	if cfg.Monitoring.Logging.Format == "" {
		cfg.Monitoring.Logging.Format = LogFormatJSON
	} else {
		if f := NormalizeLogFormat(string(cfg.Monitoring.Logging.Format)); f != "" {
			cfg.Monitoring.Logging.Format = f
		}
	}
	return nil
}
