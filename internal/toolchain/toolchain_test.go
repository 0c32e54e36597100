package toolchain

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
)

// fakeRunner scripts subprocess behavior per invocation.
type fakeRunner struct {
	missing map[string]bool
	handler func(spec RunSpec) ([]byte, error)
	calls   []RunSpec
}

func (f *fakeRunner) Look(name string) (string, error) {
	if f.missing[name] {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return "/usr/bin/" + name, nil
}

func (f *fakeRunner) Run(_ context.Context, spec RunSpec) ([]byte, error) {
	f.calls = append(f.calls, spec)
	if f.handler == nil {
		return nil, nil
	}
	return f.handler(spec)
}

func argv(spec RunSpec) string {
	return spec.Name + " " + strings.Join(spec.Args, " ")
}

func TestEnsureInstalledSkipsWhenProbeSucceeds(t *testing.T) {
	fr := &fakeRunner{handler: func(spec RunSpec) ([]byte, error) {
		return []byte("rustc 1.92.0-nightly (abc 2026-07-14)\n"), nil
	}}
	m := NewManager(fr)

	if err := m.EnsureInstalled(context.Background(), "nightly", "minimal"); err != nil {
		t.Fatalf("EnsureInstalled: %v", err)
	}
	if len(fr.calls) != 1 {
		t.Fatalf("expected only the probe call, got %d calls", len(fr.calls))
	}
	if got := argv(fr.calls[0]); got != "rustup run nightly rustc --version" {
		t.Errorf("probe argv = %q", got)
	}
}

func TestEnsureInstalledInstallsWhenProbeFails(t *testing.T) {
	fr := &fakeRunner{handler: func(spec RunSpec) ([]byte, error) {
		if len(spec.Args) > 0 && spec.Args[0] == "run" {
			return []byte("error: toolchain 'nightly' is not installed\n"), fmt.Errorf("exit status 1")
		}
		return []byte("installed\n"), nil
	}}
	m := NewManager(fr)

	if err := m.EnsureInstalled(context.Background(), "nightly", "minimal"); err != nil {
		t.Fatalf("EnsureInstalled: %v", err)
	}
	if len(fr.calls) != 2 {
		t.Fatalf("expected probe + install, got %d calls", len(fr.calls))
	}
	if got := argv(fr.calls[1]); got != "rustup toolchain install nightly --profile minimal" {
		t.Errorf("install argv = %q", got)
	}
}

func TestEnsureInstalledDefaultsProfile(t *testing.T) {
	fr := &fakeRunner{handler: func(spec RunSpec) ([]byte, error) {
		if len(spec.Args) > 0 && spec.Args[0] == "run" {
			return nil, fmt.Errorf("exit status 1")
		}
		return nil, nil
	}}
	m := NewManager(fr)

	if err := m.EnsureInstalled(context.Background(), "stable", ""); err != nil {
		t.Fatalf("EnsureInstalled: %v", err)
	}
	if got := argv(fr.calls[1]); !strings.HasSuffix(got, "--profile minimal") {
		t.Errorf("expected minimal profile default, argv = %q", got)
	}
}

func TestEnsureInstalledMissingRustup(t *testing.T) {
	fr := &fakeRunner{missing: map[string]bool{"rustup": true}}
	m := NewManager(fr)

	err := m.EnsureInstalled(context.Background(), "nightly", "minimal")
	if err == nil {
		t.Fatal("expected error for missing rustup")
	}
	if ferrors.GetCategory(err) != ferrors.CategoryConfig {
		t.Errorf("category = %v, want config", ferrors.GetCategory(err))
	}
	if len(fr.calls) != 0 {
		t.Errorf("no subprocess should run without rustup, got %d calls", len(fr.calls))
	}
}

func TestEnsureInstalledInstallFailure(t *testing.T) {
	fr := &fakeRunner{handler: func(spec RunSpec) ([]byte, error) {
		return []byte("download error\n"), fmt.Errorf("exit status 1")
	}}
	m := NewManager(fr)

	err := m.EnsureInstalled(context.Background(), "nightly", "minimal")
	if err == nil {
		t.Fatal("expected install failure")
	}
	if ferrors.GetCategory(err) != ferrors.CategoryToolchain {
		t.Errorf("category = %v, want toolchain", ferrors.GetCategory(err))
	}
	ce, ok := ferrors.AsClassified(err)
	if !ok {
		t.Fatalf("expected classified error, got %T", err)
	}
	if got := ce.Context()["output"]; got != "download error\n" {
		t.Errorf("output context = %q", got)
	}
}

func TestBuildDocsRunsCargo(t *testing.T) {
	fr := &fakeRunner{handler: func(spec RunSpec) ([]byte, error) {
		return []byte(" Documenting d3d12 v0.7.0\n    Finished `dev` profile\n"), nil
	}}
	m := NewManager(fr)

	res, err := m.BuildDocs(context.Background(), BuildRequest{
		Toolchain: "nightly",
		Dir:       "/work/checkouts/d3d12",
		Args:      []string{"doc", "--no-deps"},
		Env: map[string]string{
			"RUST_BACKTRACE":    "full",
			"CARGO_INCREMENTAL": "0",
			"CARGO_TERM_COLOR":  "always",
		},
	})
	if err != nil {
		t.Fatalf("BuildDocs: %v", err)
	}
	if res.Toolchain != "nightly" {
		t.Errorf("result toolchain = %q", res.Toolchain)
	}
	if !strings.Contains(res.Output, "Documenting d3d12") {
		t.Errorf("output not captured: %q", res.Output)
	}

	spec := fr.calls[0]
	if got := argv(spec); got != "cargo +nightly doc --no-deps" {
		t.Errorf("argv = %q", got)
	}
	if spec.Dir != "/work/checkouts/d3d12" {
		t.Errorf("dir = %q", spec.Dir)
	}
	want := []string{"CARGO_INCREMENTAL=0", "CARGO_TERM_COLOR=always", "RUST_BACKTRACE=full"}
	if len(spec.Env) != len(want) {
		t.Fatalf("env = %v", spec.Env)
	}
	for i, e := range want {
		if spec.Env[i] != e {
			t.Errorf("env[%d] = %q, want %q (env must be sorted)", i, spec.Env[i], e)
		}
	}
}

func TestBuildDocsFailureKeepsOutputTail(t *testing.T) {
	fr := &fakeRunner{handler: func(spec RunSpec) ([]byte, error) {
		return []byte("error[E0658]: use of unstable library feature\n"), fmt.Errorf("exit status 101")
	}}
	m := NewManager(fr)

	_, err := m.BuildDocs(context.Background(), BuildRequest{Toolchain: "nightly", Args: []string{"doc"}})
	if err == nil {
		t.Fatal("expected build failure")
	}
	if ferrors.GetCategory(err) != ferrors.CategoryBuild {
		t.Errorf("category = %v, want build", ferrors.GetCategory(err))
	}
	ce, _ := ferrors.AsClassified(err)
	out, _ := ce.Context()["output"].(string)
	if !strings.Contains(out, "E0658") {
		t.Errorf("error context missing compiler output: %q", out)
	}
	if tc := ce.Context()["toolchain"]; tc != "nightly" {
		t.Errorf("toolchain context = %v", tc)
	}
}

func TestBuildDocsMissingCargo(t *testing.T) {
	fr := &fakeRunner{missing: map[string]bool{"cargo": true}}
	m := NewManager(fr)

	_, err := m.BuildDocs(context.Background(), BuildRequest{Toolchain: "stable", Args: []string{"doc"}})
	if err == nil {
		t.Fatal("expected error for missing cargo")
	}
	if ferrors.GetCategory(err) != ferrors.CategoryConfig {
		t.Errorf("category = %v, want config", ferrors.GetCategory(err))
	}
}

func TestBuildDocsTimeout(t *testing.T) {
	fr := &fakeRunner{}
	fr.handler = func(spec RunSpec) ([]byte, error) {
		time.Sleep(20 * time.Millisecond)
		return nil, fmt.Errorf("signal: killed")
	}
	m := NewManager(fr)

	_, err := m.BuildDocs(context.Background(), BuildRequest{
		Toolchain: "nightly",
		Args:      []string{"doc"},
		Timeout:   time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error should mention timeout: %v", err)
	}
}

func TestFlattenEnvSortedAndEmpty(t *testing.T) {
	if got := flattenEnv(nil); got != nil {
		t.Errorf("flattenEnv(nil) = %v", got)
	}
	got := flattenEnv(map[string]string{"B": "2", "A": "1", "C": "3"})
	want := []string{"A=1", "B=2", "C=3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("flattenEnv = %v, want %v", got, want)
		}
	}
}

func TestTailBoundsLargeOutput(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 4000; i++ {
		fmt.Fprintf(&sb, "line %04d: some cargo progress output\n", i)
	}
	full := sb.String()

	got := tail([]byte(full))
	if len(got) > maxOutputTail {
		t.Fatalf("tail length = %d, want <= %d", len(got), maxOutputTail)
	}
	if !strings.HasPrefix(got, "line ") {
		t.Errorf("tail should start on a line boundary: %q", got[:20])
	}
	if !strings.HasSuffix(got, "line 3999: some cargo progress output\n") {
		t.Errorf("tail should keep the end of the output")
	}

	if short := tail([]byte("ok\n")); short != "ok\n" {
		t.Errorf("short output should pass through, got %q", short)
	}
}
