package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docship/internal/logfields"
)

const (
	// PagesDirName is the subdirectory holding the pages repository clone.
	PagesDirName = "pages"
	// ReportsDirName is the subdirectory holding run reports.
	ReportsDirName = "reports"

	buildsDirName    = "builds"
	checkoutsDirName = "checkouts"
)

// Manager hands out per-build directories under a common root.
type Manager struct {
	root string
	keep bool
}

// NewManager creates a workspace manager rooted at root. An empty root falls
// back to the system temp directory. When keep is true, build directories are
// retained after Cleanup.
func NewManager(root string, keep bool) *Manager {
	if root == "" {
		root = os.TempDir()
	}
	return &Manager{root: root, keep: keep}
}

// Root returns the workspace root directory.
func (m *Manager) Root() string {
	return m.root
}

// EnsureRoot creates the workspace root and its builds directory.
func (m *Manager) EnsureRoot() error {
	if err := os.MkdirAll(filepath.Join(m.root, buildsDirName), 0o750); err != nil {
		return fmt.Errorf("failed to create workspace root: %w", err)
	}
	return nil
}

// CheckoutDir returns the persistent checkout directory for a project,
// creating its parent. The checkout survives across builds so updates can
// fetch instead of recloning.
func (m *Manager) CheckoutDir(project string) (string, error) {
	parent := filepath.Join(m.root, checkoutsDirName)
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return "", fmt.Errorf("failed to create checkouts directory: %w", err)
	}
	return filepath.Join(parent, project), nil
}

// NewBuildDir creates a fresh directory for one build of the named project.
// The directory name carries a timestamp and a short random id so concurrent
// builds of the same project never collide.
func (m *Manager) NewBuildDir(project string) (*BuildDir, error) {
	if err := m.EnsureRoot(); err != nil {
		return nil, err
	}

	stamp := time.Now().Format("20060102-150405")
	id := uuid.NewString()[:8]
	path := filepath.Join(m.root, buildsDirName, fmt.Sprintf("%s-%s-%s", project, stamp, id))

	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create build directory: %w", err)
	}

	slog.Debug("Created build directory", logfields.Project(project), logfields.Path(path))
	return &BuildDir{path: path, keep: m.keep}, nil
}

// BuildDir is the working directory of a single build.
type BuildDir struct {
	path string
	keep bool
}

// Path returns the build directory itself.
func (b *BuildDir) Path() string {
	return b.path
}

// PagesDir returns the pages clone directory, creating it if needed.
func (b *BuildDir) PagesDir() (string, error) {
	return b.Subdir(PagesDirName)
}

// Subdir creates (if necessary) and returns a subdirectory of the build dir.
func (b *BuildDir) Subdir(name string) (string, error) {
	if b.path == "" {
		return "", fmt.Errorf("build directory already cleaned up")
	}
	sub := filepath.Join(b.path, name)
	if err := os.MkdirAll(sub, 0o750); err != nil {
		return "", fmt.Errorf("failed to create subdirectory %s: %w", name, err)
	}
	return sub, nil
}

// Cleanup removes the build directory. With keep set it leaves the directory
// in place and only logs where it lives.
func (b *BuildDir) Cleanup() error {
	if b.path == "" {
		return nil
	}

	if b.keep {
		slog.Debug("Keeping build directory", logfields.Path(b.path))
		return nil
	}

	if err := os.RemoveAll(b.path); err != nil {
		return fmt.Errorf("failed to clean up build directory: %w", err)
	}

	slog.Debug("Removed build directory", logfields.Path(b.path))
	b.path = ""
	return nil
}
