package config

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Snapshot computes a stable hash of build-affecting normalized configuration fields.
// It is intentionally narrower than full serialization so unrelated config edits
// (logging levels, ports) don't look like project changes to the reload path.
// Callers SHOULD run NormalizeConfig + applyDefaults before computing a snapshot
// to ensure canonical field values.
func (c *Config) Snapshot() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) { h.Write([]byte(strings.Join(parts, "="))); h.Write([]byte{0}) }

	// Projects sorted by name for order-insensitivity.
	names := make([]string, 0, len(c.Projects))
	byName := make(map[string]*ProjectConfig, len(c.Projects))
	for _, p := range c.Projects {
		if p == nil {
			continue
		}
		names = append(names, p.Name)
		byName[p.Name] = p
	}
	sort.Strings(names)
	for _, n := range names {
		p := byName[n]
		w("project", n)
		w(n+".source.url", p.Source.URL)
		w(n+".source.branch", p.Source.Branch)
		w(n+".toolchain.primary", p.Toolchain.Primary)
		w(n+".toolchain.fallback", p.Toolchain.Fallback)
		w(n+".build.args", strings.Join(p.Build.Args, " "))
		if len(p.Build.Env) > 0 {
			keys := make([]string, 0, len(p.Build.Env))
			for k := range p.Build.Env {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				w(n+".build.env."+k, p.Build.Env[k])
			}
		}
		w(n+".publish.repository", p.Publish.Repository)
		w(n+".publish.branch", p.Publish.Branch)
		w(n+".publish.target_dir", p.Publish.TargetDir)
		w(n+".schedule", p.Schedule)
	}

	// Git retry tuning affects build behavior under flaky networks.
	w("git.max_retries", strconv.Itoa(c.Git.MaxRetries))
	w("git.retry_backoff", string(c.Git.RetryBackoff))
	w("workspace.root", c.Workspace.Root)
	return hex.EncodeToString(h.Sum(nil))
}
