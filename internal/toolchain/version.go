package toolchain

import (
	"context"
	"regexp"
	"strings"

	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
)

// cargoVersionRE matches the version token in lines like
// "cargo 1.92.0-nightly (0b0a3efe1 2026-07-14)" or "cargo 1.88.0 (873a06493 2025-05-26)".
var cargoVersionRE = regexp.MustCompile(`cargo (\d+\.\d+\.\d+(?:-[a-z0-9.]+)?)`)

// Version probes `cargo +<toolchain> --version` and returns the parsed
// version token. Reports record it so a build can be tied to the exact
// nightly that produced it.
func (m *Manager) Version(ctx context.Context, tc string) (string, error) {
	if _, err := m.runner.Look(cargoBin); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryConfig, "cargo not found on PATH").Fatal().Build()
	}
	out, err := m.runner.Run(ctx, RunSpec{
		Name: cargoBin,
		Args: []string{"+" + tc, "--version"},
	})
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryToolchain, "cargo version probe failed").
			UserAction().
			WithContext("toolchain", tc).
			WithContext("output", tail(out)).
			Build()
	}
	v := parseCargoVersion(string(out))
	if v == "" {
		return "", ferrors.NewError(ferrors.CategoryToolchain, "unparseable cargo version output").
			WithContext("toolchain", tc).
			WithContext("output", tail(out)).
			Build()
	}
	return v, nil
}

// parseCargoVersion extracts the version token, falling back to the trimmed
// first line when the output does not look like cargo's banner.
func parseCargoVersion(out string) string {
	if m := cargoVersionRE.FindStringSubmatch(out); len(m) == 2 {
		return m[1]
	}
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(line)
}
