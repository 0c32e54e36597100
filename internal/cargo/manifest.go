// Package cargo reads the crate metadata docship needs from a checkout's
// Cargo.toml: the crate name (which names the rustdoc output directory),
// version, and description for the landing page.
package cargo

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest is the subset of Cargo.toml docship cares about.
type Manifest struct {
	Package   *Package   `toml:"package"`
	Workspace *Workspace `toml:"workspace"`
}

// Package mirrors the [package] table.
type Package struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Description string `toml:"description"`
}

// Workspace mirrors the [workspace] table of a virtual manifest.
type Workspace struct {
	Members []string `toml:"members"`
}

// Load parses a Cargo.toml file.
func Load(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &m, nil
}

// LoadDir parses <dir>/Cargo.toml. A virtual workspace manifest (no
// [package]) is resolved by reading the first literal member's manifest;
// glob members are skipped.
func LoadDir(dir string) (*Manifest, error) {
	m, err := Load(filepath.Join(dir, "Cargo.toml"))
	if err != nil {
		return nil, err
	}
	if m.Package != nil && m.Package.Name != "" {
		return m, nil
	}
	if m.Workspace == nil {
		return nil, fmt.Errorf("%s/Cargo.toml has no [package] or [workspace]", dir)
	}
	for _, member := range m.Workspace.Members {
		if strings.ContainsAny(member, "*?[") {
			continue
		}
		mm, merr := Load(filepath.Join(dir, filepath.FromSlash(member), "Cargo.toml"))
		if merr != nil {
			continue
		}
		if mm.Package != nil && mm.Package.Name != "" {
			return mm, nil
		}
	}
	return nil, fmt.Errorf("%s/Cargo.toml is a workspace with no resolvable package member", dir)
}

// CrateName returns the crate name, empty for virtual manifests.
func (m *Manifest) CrateName() string {
	if m == nil || m.Package == nil {
		return ""
	}
	return m.Package.Name
}

// IndexDir returns the rustdoc output directory for the crate: the crate
// name with hyphens mapped to underscores.
func (m *Manifest) IndexDir() string {
	return strings.ReplaceAll(m.CrateName(), "-", "_")
}
