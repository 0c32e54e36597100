package config

import (
	"fmt"
	"strings"
)

// NormalizationResult captures adjustments & warnings from normalization pass.
type NormalizationResult struct{ Warnings []string }

// NormalizeConfig performs canonicalization on enumerated and bounded fields prior to default application.
// It mutates the provided config in-place and returns a result describing any coercions.
func NormalizeConfig(c *Config) (*NormalizationResult, error) {
	if c == nil {
		return nil, fmt.Errorf("config nil")
	}
	res := &NormalizationResult{}
	normalizeProjects(c.Projects, res)
	normalizeGit(&c.Git, res)
	normalizeMonitoring(&c.Monitoring, res)
	return res, nil
}

func normalizeProjects(projects []*ProjectConfig, res *NormalizationResult) {
	for _, p := range projects {
		if p == nil {
			continue
		}
		if trimmed := strings.TrimSpace(p.Name); trimmed != p.Name {
			res.Warnings = append(res.Warnings, warnChanged("project.name", p.Name, trimmed))
			p.Name = trimmed
		}
		p.Source.URL = strings.TrimSpace(p.Source.URL)
		p.Source.Branch = strings.TrimSpace(p.Source.Branch)
		if a := p.Source.Auth; a != nil {
			if norm := NormalizeAuthType(a.Type); norm != a.Type {
				res.Warnings = append(res.Warnings, warnChanged("source.auth.type", a.Type, norm))
				a.Type = norm
			}
		}
		p.Publish.Repository = strings.TrimSpace(p.Publish.Repository)
		p.Publish.Branch = strings.TrimSpace(p.Publish.Branch)
		// target_dir is joined into the pages worktree; strip separators so a
		// leading slash can't escape the clone.
		if cleaned := strings.Trim(strings.TrimSpace(p.Publish.TargetDir), "/"); cleaned != p.Publish.TargetDir && p.Publish.TargetDir != "" {
			res.Warnings = append(res.Warnings, warnChanged("publish.target_dir", p.Publish.TargetDir, cleaned))
			p.Publish.TargetDir = cleaned
		}
		normalizeToolchain(p, res)
		p.Build.Args = trimStringSlice(p.Build.Args)
	}
}

func normalizeToolchain(p *ProjectConfig, res *NormalizationResult) {
	// Toolchain names stay case-sensitive (rustup accepts pinned dates and
	// custom names); only surrounding whitespace is dropped.
	p.Toolchain.Primary = strings.TrimSpace(p.Toolchain.Primary)
	p.Toolchain.Fallback = strings.TrimSpace(p.Toolchain.Fallback)
	p.Toolchain.Profile = strings.ToLower(strings.TrimSpace(p.Toolchain.Profile))
	if p.Toolchain.Primary != "" && p.Toolchain.Primary == p.Toolchain.Fallback {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("project %s: toolchain.fallback equals toolchain.primary (%s); the fallback build cannot succeed where the primary failed", p.Name, p.Toolchain.Primary))
	}
}

func normalizeGit(g *GitConfig, res *NormalizationResult) {
	if g == nil {
		return
	}
	if rb := NormalizeRetryBackoff(string(g.RetryBackoff)); rb != "" {
		if g.RetryBackoff != rb {
			res.Warnings = append(res.Warnings, warnChanged("git.retry_backoff", g.RetryBackoff, rb))
			g.RetryBackoff = rb
		}
	} else if strings.TrimSpace(string(g.RetryBackoff)) != "" {
		res.Warnings = append(res.Warnings, warnUnknown("git.retry_backoff", string(g.RetryBackoff), string(RetryBackoffLinear)))
		g.RetryBackoff = RetryBackoffLinear
	}
	if g.MaxRetries < 0 {
		g.MaxRetries = 0
	}
}

func normalizeMonitoring(m **MonitoringConfig, res *NormalizationResult) {
	if m == nil || *m == nil {
		return
	}
	cfg := *m
	// Logging level
	if lvl := NormalizeLogLevel(string(cfg.Logging.Level)); lvl != "" {
		if cfg.Logging.Level != lvl {
			res.Warnings = append(res.Warnings, warnChanged("monitoring.logging.level", cfg.Logging.Level, lvl))
			cfg.Logging.Level = lvl
		}
	} else if string(cfg.Logging.Level) != "" {
		res.Warnings = append(res.Warnings, warnUnknown("monitoring.logging.level", string(cfg.Logging.Level), string(LogLevelInfo)))
		cfg.Logging.Level = LogLevelInfo
	}
	// Logging format
	if f := NormalizeLogFormat(string(cfg.Logging.Format)); f != "" {
		if cfg.Logging.Format != f {
			res.Warnings = append(res.Warnings, warnChanged("monitoring.logging.format", cfg.Logging.Format, f))
			cfg.Logging.Format = f
		}
	} else if string(cfg.Logging.Format) != "" {
		res.Warnings = append(res.Warnings, warnUnknown("monitoring.logging.format", string(cfg.Logging.Format), string(LogFormatText)))
		cfg.Logging.Format = LogFormatText
	}
}

func warnChanged(field string, from, to interface{}) string {
	return fmt.Sprintf("normalized %s from '%v' to '%v'", field, from, to)
}

func warnUnknown(field, value, def string) string {
	return fmt.Sprintf("unknown %s '%s', defaulting to %s", field, value, def)
}

// trimStringSlice removes empty entries (after trimming whitespace) from a string slice.
// Does not dedupe or sort; cargo argument order is significant.
func trimStringSlice(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		if tp := strings.TrimSpace(p); tp != "" {
			out = append(out, tp)
		}
	}
	return out
}
