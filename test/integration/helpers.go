package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docship/internal/config"
	gitclient "git.home.luguber.info/inful/docship/internal/git"
	"git.home.luguber.info/inful/docship/internal/pipeline"
	"git.home.luguber.info/inful/docship/internal/toolchain"
	"git.home.luguber.info/inful/docship/internal/workspace"
)

// fakeToolchain scripts rustup and cargo so the full pipeline can run
// without a Rust installation. Toolchains listed in failing produce a
// compiler-style error; the rest write a minimal rustdoc tree into
// <dir>/target/doc/<crateDir>.
type fakeToolchain struct {
	mu       sync.Mutex
	crateDir string
	failing  map[string]bool
	// runs records every invocation as "<bin> <args...>" in order.
	runs []string
	// buildEnvs keeps the env of the last docs build per toolchain.
	buildEnvs map[string][]string
}

func newFakeToolchain(crateDir string, failing ...string) *fakeToolchain {
	f := &fakeToolchain{
		crateDir:  crateDir,
		failing:   map[string]bool{},
		buildEnvs: map[string][]string{},
	}
	for _, tc := range failing {
		f.failing[tc] = true
	}
	return f
}

func (f *fakeToolchain) Look(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

func (f *fakeToolchain) Run(_ context.Context, spec toolchain.RunSpec) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, spec.Name+" "+strings.Join(spec.Args, " "))

	if spec.Name == "rustup" {
		// Install probe: `rustup run <tc> rustc --version`.
		return []byte("rustc 1.92.0-nightly (0000000aa 2026-08-01)\n"), nil
	}
	if spec.Name != "cargo" || len(spec.Args) == 0 || !strings.HasPrefix(spec.Args[0], "+") {
		return nil, fmt.Errorf("unexpected command: %s %v", spec.Name, spec.Args)
	}

	tc := strings.TrimPrefix(spec.Args[0], "+")
	rest := spec.Args[1:]
	if len(rest) > 0 && rest[0] == "--version" {
		return []byte(fmt.Sprintf("cargo 1.92.0-%s (0000000aa 2026-08-01)\n", tc)), nil
	}

	// `cargo +<tc> doc ...`
	f.buildEnvs[tc] = spec.Env
	if f.failing[tc] {
		out := "error[E0658]: use of unstable library feature\nerror: could not document `demo-crate`\n"
		return []byte(out), errors.New("exit status 101")
	}

	docDir := filepath.Join(spec.Dir, "target", "doc", f.crateDir)
	if err := os.MkdirAll(docDir, 0o750); err != nil {
		return nil, err
	}
	page := fmt.Sprintf("<html><body>docs built with %s</body></html>\n", tc)
	if err := os.WriteFile(filepath.Join(docDir, "index.html"), []byte(page), 0o600); err != nil {
		return nil, err
	}
	return []byte("Documenting demo-crate v0.1.0\n Finished dev profile\n"), nil
}

// commands returns the recorded invocations matching the given prefix.
func (f *fakeToolchain) commands(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.runs {
		if strings.HasPrefix(r, prefix) {
			out = append(out, r)
		}
	}
	return out
}

// seedSourceRepo creates a crate repository with one commit on master and
// returns its path and head hash.
func seedSourceRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"Cargo.toml": "[package]\nname = \"demo-crate\"\nversion = \"0.1.0\"\ndescription = \"Integration fixture crate\"\n",
		"README.md":  "# demo-crate\n\nA fixture crate used to exercise the build pipeline.\n",
		"src/lib.rs": "//! Fixture crate.\npub fn answer() -> u32 { 42 }\n",
	}
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
	}

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.AddWithOptions(&git.AddOptions{All: true}))
	hash, err := wt.Commit("initial crate", &git.CommitOptions{
		Author: &object.Signature{Name: "fixture", Email: "fixture@localhost", When: time.Now()},
	})
	require.NoError(t, err)
	return dir, hash.String()
}

// seedPagesRemote creates an empty bare repository; the first publish
// bootstraps the pages branch.
func seedPagesRemote(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pages.git")
	_, err := git.PlainInit(path, true)
	require.NoError(t, err)
	return path
}

// writeConfig writes a docship.yaml wiring the seeded repositories and loads
// it through the full configuration pipeline.
func writeConfig(t *testing.T, sourceURL, pagesURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	// Local path remotes ignore auth; the token only satisfies validation.
	content := fmt.Sprintf(`version: "1.0"
workspace:
  root: %q
projects:
  - name: demo
    source:
      url: %q
      branch: master
    publish:
      repository: %q
      branch: master
      target_dir: doc
      token: "local-test-token"
`, filepath.Join(dir, "workspace"), sourceURL, pagesURL)

	path := filepath.Join(dir, "docship.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

// newRunner assembles a production pipeline around the scripted toolchain.
func newRunner(cfg *config.Config, fake *fakeToolchain) *pipeline.Runner {
	ws := workspace.NewManager(cfg.Workspace.Root, cfg.Workspace.Keep)
	return pipeline.NewRunner(ws, gitclient.NewClient(&cfg.Git), toolchain.NewManager(fake), nil)
}

// clonePages clones the pages remote for assertions on deployed content.
func clonePages(t *testing.T, pagesURL string) string {
	t.Helper()
	dir := t.TempDir()
	_, err := git.PlainClone(dir, false, &git.CloneOptions{URL: pagesURL})
	require.NoError(t, err)
	return dir
}

// requireNoBranches asserts that a bare remote received no push.
func requireNoBranches(t *testing.T, path string) {
	t.Helper()
	repo, err := git.PlainOpen(path)
	require.NoError(t, err)
	branches, err := repo.Branches()
	require.NoError(t, err)
	defer branches.Close()
	_, err = branches.Next()
	require.Error(t, err, "expected no branches on the pages remote")
}
