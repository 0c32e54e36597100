package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SupportedVersion is the configuration schema version this binary reads.
const SupportedVersion = "1.0"

// Load loads a configuration file (version 1.x).
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFile(); err != nil {
		// Don't fail if .env doesn't exist, just log it
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate version
	if !strings.HasPrefix(config.Version, "1.") {
		return nil, fmt.Errorf("unsupported configuration version: %s (expected %s)", config.Version, SupportedVersion)
	}

	// Normalization pass (case-fold enumerations, bounds, early coercions)
	if nres, nerr := NormalizeConfig(&config); nerr != nil {
		return nil, fmt.Errorf("normalize: %w", nerr)
	} else if nres != nil && len(nres.Warnings) > 0 {
		for _, w := range nres.Warnings {
			fmt.Fprintf(os.Stderr, "config normalization: %s\n", w)
		}
	}
	// Apply defaults (after normalization so canonical values drive defaults)
	if err := applyDefaults(&config); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyDefaults applies default values to configuration
func applyDefaults(config *Config) error {
	applier := NewDefaultApplier()
	return applier.ApplyDefaults(config)
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	return ValidateConfig(config)
}

// Init writes an example configuration file (version 1.0).
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Config{
		Version: SupportedVersion,
		Projects: []*ProjectConfig{
			{
				Name: "d3d12",
				Source: SourceConfig{
					URL:    "https://github.com/gfx-rs/d3d12-rs.git",
					Branch: "master",
				},
				Toolchain: ToolchainConfig{
					Primary:  DefaultPrimaryToolchain,
					Fallback: DefaultFallbackToolchain,
				},
				Build: BuildConfig{
					Args: []string{"doc", "--no-deps"},
				},
				Publish: PublishConfig{
					Repository: "https://github.com/gfx-rs/gfx-rs.github.io.git",
					Branch:     "master",
					TargetDir:  "doc",
					Token:      "${DOCSHIP_PAGES_TOKEN}",
				},
				Schedule: "0 4 * * *",
			},
		},
		Git: GitConfig{
			MaxRetries:        2,
			RetryBackoff:      RetryBackoffLinear,
			RetryInitialDelay: "1s",
			RetryMaxDelay:     "30s",
		},
		Workspace: WorkspaceConfig{
			Root: "./workspace",
		},
		Daemon: &DaemonConfig{
			HTTP: HTTPConfig{
				WebhookPort: 8081,
				AdminPort:   8082,
			},
			Queue: QueueConfig{
				Workers: 2,
				Size:    16,
			},
			WebhookSecret: "${DOCSHIP_WEBHOOK_SECRET}",
		},
		Notifications: &NotificationsConfig{
			NATS: &NATSConfig{
				Enabled:       false,
				URL:           "nats://localhost:4222",
				SubjectPrefix: "docship",
			},
		},
		Monitoring: &MonitoringConfig{
			Metrics: MonitoringMetrics{
				Enabled: true,
				Path:    "/metrics",
			},
			Health: MonitoringHealth{
				Path: "/healthz",
			},
			Logging: MonitoringLogging{
				Level:  "info",
				Format: "json",
			},
		},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
