package cargo

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestLoadDirPackageManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "Cargo.toml", ""+
		"[package]\n"+
		"name = \"d3d12\"\n"+
		"version = \"0.7.0\"\n"+
		"description = \"Low level D3D12 API wrapper\"\n"+
		"\n"+
		"[dependencies]\n"+
		"bitflags = \"1\"\n")

	m, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if m.CrateName() != "d3d12" {
		t.Errorf("CrateName() = %q", m.CrateName())
	}
	if m.Package.Version != "0.7.0" {
		t.Errorf("Version = %q", m.Package.Version)
	}
	if m.Package.Description == "" {
		t.Error("Description should be parsed")
	}
}

func TestLoadDirWorkspaceManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "Cargo.toml", ""+
		"[workspace]\n"+
		"members = [\"crates/*\", \"gfx-hal\"]\n")
	writeManifest(t, dir, "gfx-hal/Cargo.toml", ""+
		"[package]\n"+
		"name = \"gfx-hal\"\n"+
		"version = \"0.9.0\"\n")

	m, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if m.CrateName() != "gfx-hal" {
		t.Errorf("CrateName() = %q", m.CrateName())
	}
}

func TestLoadDirNoManifest(t *testing.T) {
	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Error("expected error for missing Cargo.toml")
	}
}

func TestLoadDirWorkspaceWithoutResolvableMember(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "Cargo.toml", "[workspace]\nmembers = [\"crates/*\"]\n")
	if _, err := LoadDir(dir); err == nil {
		t.Error("expected error for unresolvable workspace")
	}
}

func TestIndexDir(t *testing.T) {
	m := &Manifest{Package: &Package{Name: "gfx-backend-vulkan"}}
	if got := m.IndexDir(); got != "gfx_backend_vulkan" {
		t.Errorf("IndexDir() = %q", got)
	}

	var nilManifest *Manifest
	if nilManifest.IndexDir() != "" {
		t.Error("nil manifest should yield empty index dir")
	}
}
