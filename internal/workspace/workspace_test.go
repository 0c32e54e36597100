package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewBuildDir(t *testing.T) {
	mgr := NewManager(t.TempDir(), false)

	bd, err := mgr.NewBuildDir("d3d12")
	if err != nil {
		t.Fatalf("NewBuildDir() failed: %v", err)
	}

	if !strings.HasPrefix(filepath.Base(bd.Path()), "d3d12-") {
		t.Errorf("build dir should carry project name, got %s", bd.Path())
	}
	if filepath.Base(filepath.Dir(bd.Path())) != "builds" {
		t.Errorf("build dir should live under builds/, got %s", bd.Path())
	}
	if _, err := os.Stat(bd.Path()); err != nil {
		t.Fatalf("build dir not created: %v", err)
	}
}

func TestBuildDirsNeverCollide(t *testing.T) {
	mgr := NewManager(t.TempDir(), false)

	a, err := mgr.NewBuildDir("d3d12")
	if err != nil {
		t.Fatalf("first NewBuildDir() failed: %v", err)
	}
	b, err := mgr.NewBuildDir("d3d12")
	if err != nil {
		t.Fatalf("second NewBuildDir() failed: %v", err)
	}
	if a.Path() == b.Path() {
		t.Errorf("two builds of the same project share a directory: %s", a.Path())
	}
}

func TestSubdirs(t *testing.T) {
	mgr := NewManager(t.TempDir(), false)

	bd, err := mgr.NewBuildDir("proj")
	if err != nil {
		t.Fatalf("NewBuildDir() failed: %v", err)
	}

	pages, err := bd.PagesDir()
	if err != nil {
		t.Fatalf("PagesDir() failed: %v", err)
	}
	reports, err := bd.Subdir(ReportsDirName)
	if err != nil {
		t.Fatalf("Subdir(reports) failed: %v", err)
	}

	if filepath.Dir(pages) != bd.Path() || filepath.Dir(reports) != bd.Path() {
		t.Error("subdirs should live directly under the build dir")
	}
	for _, dir := range []string{pages, reports} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("subdir not created: %v", err)
		}
	}
}

func TestCheckoutDirIsStable(t *testing.T) {
	mgr := NewManager(t.TempDir(), false)

	a, err := mgr.CheckoutDir("d3d12")
	if err != nil {
		t.Fatalf("CheckoutDir() failed: %v", err)
	}
	b, err := mgr.CheckoutDir("d3d12")
	if err != nil {
		t.Fatalf("CheckoutDir() failed: %v", err)
	}
	if a != b {
		t.Errorf("checkout dir must be stable per project: %s vs %s", a, b)
	}
	if filepath.Base(filepath.Dir(a)) != "checkouts" {
		t.Errorf("checkout dir should live under checkouts/, got %s", a)
	}

	// Parent exists; the leaf itself is left to the git client.
	if _, err := os.Stat(filepath.Dir(a)); err != nil {
		t.Errorf("checkouts parent not created: %v", err)
	}
}

func TestCleanup(t *testing.T) {
	mgr := NewManager(t.TempDir(), false)

	bd, err := mgr.NewBuildDir("proj")
	if err != nil {
		t.Fatalf("NewBuildDir() failed: %v", err)
	}
	path := bd.Path()

	if err := bd.Cleanup(); err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("build dir should be removed after cleanup")
	}

	// Cleanup is idempotent.
	if err := bd.Cleanup(); err != nil {
		t.Errorf("second Cleanup() failed: %v", err)
	}

	if _, err := bd.Subdir("x"); err == nil {
		t.Error("Subdir after cleanup should fail")
	}
}

func TestCleanupKeep(t *testing.T) {
	mgr := NewManager(t.TempDir(), true)

	bd, err := mgr.NewBuildDir("proj")
	if err != nil {
		t.Fatalf("NewBuildDir() failed: %v", err)
	}

	if err := bd.Cleanup(); err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}
	if _, err := os.Stat(bd.Path()); err != nil {
		t.Error("keep mode should retain the build dir")
	}
}

func TestEmptyRootFallsBackToTemp(t *testing.T) {
	mgr := NewManager("", false)
	if mgr.Root() != os.TempDir() {
		t.Errorf("Root() = %s, want %s", mgr.Root(), os.TempDir())
	}
}
