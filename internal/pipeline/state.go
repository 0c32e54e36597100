package pipeline

import (
	"path/filepath"

	"git.home.luguber.info/inful/docship/internal/cargo"
	"git.home.luguber.info/inful/docship/internal/config"
	"git.home.luguber.info/inful/docship/internal/toolchain"
	"git.home.luguber.info/inful/docship/internal/workspace"
)

// BuildState carries mutable state across the stages of one build.
type BuildState struct {
	Project *config.ProjectConfig
	Report  *RunReport

	// CheckoutDir is the persistent source checkout for this project.
	CheckoutDir string
	// Build is the ephemeral per-build directory (pages clone, reports).
	Build *workspace.BuildDir
	// ArtifactDir is the rustdoc output tree once a docs stage succeeded.
	ArtifactDir string
	// Crate is the manifest of the checked-out source; nil when unreadable.
	Crate *cargo.Manifest

	// primaryErr arms the fallback stage: set when the primary toolchain
	// could not produce docs (install or build failure).
	primaryErr error
}

// docsBuilt records a successful cargo doc run.
func (bs *BuildState) docsBuilt(res *toolchain.BuildResult) {
	bs.ArtifactDir = filepath.Join(bs.CheckoutDir, "target", "doc")
	bs.Report.Toolchain = res.Toolchain
}
