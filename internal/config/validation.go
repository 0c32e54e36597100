package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/docship/internal/util/sets"
)

// ValidateConfig validates the complete configuration structure.
func ValidateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

// validate performs configuration validation using domain-specific methods.
func (cv *configurationValidator) validate() error {
	if err := cv.validateProjects(); err != nil {
		return err
	}
	if err := cv.validateGit(); err != nil {
		return err
	}
	if err := cv.validateDaemon(); err != nil {
		return err
	}
	if err := cv.validateHistory(); err != nil {
		return err
	}
	return nil
}

// validateProjects validates each configured project.
func (cv *configurationValidator) validateProjects() error {
	if len(cv.config.Projects) == 0 {
		return errors.New("at least one project must be configured")
	}

	names := sets.New[string]()
	for i, p := range cv.config.Projects {
		if p == nil {
			return fmt.Errorf("projects[%d] is empty", i)
		}
		if p.Name == "" {
			return fmt.Errorf("projects[%d]: name cannot be empty", i)
		}
		if names.Has(p.Name) {
			return fmt.Errorf("duplicate project name: %s", p.Name)
		}
		names.Add(p.Name)

		if err := cv.validateSource(p); err != nil {
			return err
		}
		if err := cv.validateBuild(p); err != nil {
			return err
		}
		if err := cv.validatePublish(p); err != nil {
			return err
		}
		if err := cv.validateSchedule(p); err != nil {
			return err
		}
	}
	return nil
}

func (cv *configurationValidator) validateSource(p *ProjectConfig) error {
	if p.Source.URL == "" {
		return fmt.Errorf("project %s: source.url cannot be empty", p.Name)
	}
	if p.Source.Auth != nil {
		switch p.Source.Auth.Type {
		case AuthTypeToken:
			if p.Source.Auth.Token == "" {
				return fmt.Errorf("project %s: source.auth.token required for token auth (is the referenced environment variable set?)", p.Name)
			}
		case AuthTypeBasic:
			if p.Source.Auth.Username == "" || p.Source.Auth.Password == "" {
				return fmt.Errorf("project %s: source.auth username and password required for basic auth", p.Name)
			}
		case AuthTypeNone, "":
			// public source, nothing to check
		default:
			return fmt.Errorf("project %s: unsupported source.auth.type: %s", p.Name, p.Source.Auth.Type)
		}
	}
	return nil
}

func (cv *configurationValidator) validateBuild(p *ProjectConfig) error {
	if p.Build.Timeout != "" {
		if _, err := time.ParseDuration(p.Build.Timeout); err != nil {
			return fmt.Errorf("project %s: invalid build.timeout %q: %w", p.Name, p.Build.Timeout, err)
		}
	}
	if p.Toolchain.Primary == "" {
		return fmt.Errorf("project %s: toolchain.primary cannot be empty", p.Name)
	}
	return nil
}

func (cv *configurationValidator) validatePublish(p *ProjectConfig) error {
	if p.Publish.Repository == "" {
		return fmt.Errorf("project %s: publish.repository cannot be empty", p.Name)
	}
	if p.Publish.Token == "" {
		return fmt.Errorf("project %s: publish.token cannot be empty (is the referenced environment variable set?)", p.Name)
	}
	if strings.Contains(p.Publish.TargetDir, "..") {
		return fmt.Errorf("project %s: publish.target_dir must not contain '..'", p.Name)
	}
	return nil
}

func (cv *configurationValidator) validateSchedule(p *ProjectConfig) error {
	if p.Schedule == "" {
		return nil
	}
	// Full parsing happens when the scheduler registers the job; this catches
	// obviously malformed expressions at load time.
	fields := strings.Fields(p.Schedule)
	if len(fields) != 5 && len(fields) != 6 {
		return fmt.Errorf("project %s: schedule %q must be a 5 or 6 field cron expression", p.Name, p.Schedule)
	}
	return nil
}

func (cv *configurationValidator) validateGit() error {
	g := cv.config.Git
	for field, raw := range map[string]string{
		"git.retry_initial_delay": g.RetryInitialDelay,
		"git.retry_max_delay":     g.RetryMaxDelay,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid %s %q: %w", field, raw, err)
		}
	}
	return nil
}

func (cv *configurationValidator) validateDaemon() error {
	d := cv.config.Daemon
	if d == nil {
		return nil
	}
	for name, port := range map[string]int{
		"daemon.http.webhook_port": d.HTTP.WebhookPort,
		"daemon.http.admin_port":   d.HTTP.AdminPort,
	} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("%s out of range: %d", name, port)
		}
	}
	if d.HTTP.WebhookPort != 0 && d.HTTP.WebhookPort == d.HTTP.AdminPort {
		return fmt.Errorf("daemon.http webhook_port and admin_port must differ (both %d)", d.HTTP.WebhookPort)
	}
	if d.Queue.Workers < 0 {
		return fmt.Errorf("daemon.queue.workers cannot be negative")
	}
	if d.Queue.Size < 0 {
		return fmt.Errorf("daemon.queue.size cannot be negative")
	}
	return nil
}

func (cv *configurationValidator) validateHistory() error {
	h := cv.config.History
	if h == nil || h.MaxAge == "" {
		return nil
	}
	d, err := time.ParseDuration(h.MaxAge)
	if err != nil {
		return fmt.Errorf("invalid history.max_age %q: %w", h.MaxAge, err)
	}
	if d <= 0 {
		return fmt.Errorf("history.max_age must be positive, got %q", h.MaxAge)
	}
	return nil
}
