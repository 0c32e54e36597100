package version

// Version contains the application version information.
// This should be set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/docship/internal/version.Version=v1.2.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version with build metadata, omitting fields that were
// never stamped.
func String() string {
	s := Version
	if GitCommit != "unknown" && GitCommit != "" {
		c := GitCommit
		if len(c) > 8 {
			c = c[:8]
		}
		s += " (" + c + ")"
	}
	if BuildTime != "unknown" && BuildTime != "" {
		s += " built " + BuildTime
	}
	return s
}
