package toolchain

import (
	"context"
	"fmt"
	"testing"
)

func TestVersionProbes(t *testing.T) {
	fr := &fakeRunner{handler: func(spec RunSpec) ([]byte, error) {
		return []byte("cargo 1.92.0-nightly (0b0a3efe1 2026-07-14)\n"), nil
	}}
	m := NewManager(fr)

	v, err := m.Version(context.Background(), "nightly")
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != "1.92.0-nightly" {
		t.Errorf("version = %q", v)
	}
	if got := argv(fr.calls[0]); got != "cargo +nightly --version" {
		t.Errorf("argv = %q", got)
	}
}

func TestVersionProbeFailure(t *testing.T) {
	fr := &fakeRunner{handler: func(spec RunSpec) ([]byte, error) {
		return []byte("error: toolchain 'nightly' is not installed\n"), fmt.Errorf("exit status 1")
	}}
	m := NewManager(fr)

	if _, err := m.Version(context.Background(), "nightly"); err == nil {
		t.Fatal("expected probe failure")
	}
}

func TestParseCargoVersion(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{"nightly", "cargo 1.92.0-nightly (0b0a3efe1 2026-07-14)\n", "1.92.0-nightly"},
		{"stable", "cargo 1.88.0 (873a06493 2025-05-26)\n", "1.88.0"},
		{"beta", "cargo 1.89.0-beta.3 (abc123 2025-06-01)\n", "1.89.0-beta.3"},
		{"first line fallback", "some unexpected banner\nmore\n", "some unexpected banner"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseCargoVersion(tt.out); got != tt.want {
				t.Errorf("parseCargoVersion(%q) = %q, want %q", tt.out, got, tt.want)
			}
		})
	}
}
