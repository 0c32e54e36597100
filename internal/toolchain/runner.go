package toolchain

import (
	"context"
	"os"
	"os/exec"
)

// RunSpec describes one subprocess invocation.
type RunSpec struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current directory.
	Dir string
	// Env entries are appended to the inherited environment (KEY=VALUE).
	Env []string
}

// CommandRunner abstracts subprocess execution so tests can script toolchain
// behavior instead of requiring rustup on the machine.
type CommandRunner interface {
	// Look resolves name on PATH, mirroring exec.LookPath.
	Look(name string) (string, error)
	// Run executes the command and returns its combined stdout+stderr.
	Run(ctx context.Context, spec RunSpec) ([]byte, error)
}

// ExecRunner is the os/exec backed CommandRunner used in production.
type ExecRunner struct{}

func (ExecRunner) Look(name string) (string, error) {
	return exec.LookPath(name)
}

func (ExecRunner) Run(ctx context.Context, spec RunSpec) ([]byte, error) {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...) // #nosec G204 -- argv comes from validated config
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	return cmd.CombinedOutput()
}
