package config

import (
	"strings"
	"testing"
)

func TestNormalizeGitBackoff(t *testing.T) {
	cfg := &Config{Git: GitConfig{RetryBackoff: " Linear "}}
	res, err := NormalizeConfig(cfg)
	if err != nil {
		t.Fatalf("NormalizeConfig error: %v", err)
	}
	if cfg.Git.RetryBackoff != RetryBackoffLinear {
		t.Errorf("backoff = %v, want linear", cfg.Git.RetryBackoff)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("expected 1 warning for case fold, got %v", res.Warnings)
	}

	cfg = &Config{Git: GitConfig{RetryBackoff: "quadratic"}}
	res, _ = NormalizeConfig(cfg)
	if cfg.Git.RetryBackoff != RetryBackoffLinear {
		t.Errorf("unknown backoff should default to linear, got %v", cfg.Git.RetryBackoff)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "unknown") {
		t.Errorf("expected unknown-value warning, got %v", res.Warnings)
	}
}

func TestNormalizeProjectFields(t *testing.T) {
	p := &ProjectConfig{
		Name:      "  spaced  ",
		Source:    SourceConfig{URL: " https://example.com/x.git ", Branch: " dev "},
		Toolchain: ToolchainConfig{Primary: " nightly ", Fallback: "nightly"},
		Build:     BuildConfig{Args: []string{" doc ", "", "--no-deps"}},
		Publish:   PublishConfig{TargetDir: "/doc/"},
	}
	cfg := &Config{Projects: []*ProjectConfig{p}}

	res, err := NormalizeConfig(cfg)
	if err != nil {
		t.Fatalf("NormalizeConfig error: %v", err)
	}

	if p.Name != "spaced" {
		t.Errorf("name = %q", p.Name)
	}
	if p.Source.URL != "https://example.com/x.git" || p.Source.Branch != "dev" {
		t.Errorf("source not trimmed: %+v", p.Source)
	}
	if p.Toolchain.Primary != "nightly" {
		t.Errorf("primary = %q", p.Toolchain.Primary)
	}
	if len(p.Build.Args) != 2 || p.Build.Args[0] != "doc" {
		t.Errorf("args = %v", p.Build.Args)
	}
	if p.Publish.TargetDir != "doc" {
		t.Errorf("target_dir = %q, want doc", p.Publish.TargetDir)
	}

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "fallback equals toolchain.primary") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected same-toolchain warning, got %v", res.Warnings)
	}
}

func TestNormalizeNilConfig(t *testing.T) {
	if _, err := NormalizeConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
