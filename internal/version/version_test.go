package version

import "testing"

func TestDefaults(t *testing.T) {
	// All three are overridden by ldflags in release builds; in tests they
	// must still be initialized so /api/status never serves empty strings.
	for name, v := range map[string]string{
		"Version":   Version,
		"BuildTime": BuildTime,
		"GitCommit": GitCommit,
	} {
		if v == "" {
			t.Errorf("%s should not be empty", name)
		}
	}

	if Version != "unknown" {
		t.Logf("Version is: %s (expected 'unknown' unless set via ldflags)", Version)
	}
}
