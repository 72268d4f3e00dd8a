// Package version is the single source of truth for build version info.
package version

// Overridable at build time:
// go build -ldflags "-X codegraph/internal/version.Version=1.0.0 -X codegraph/internal/version.Commit=abc123"
var (
	// Version is the semantic version of codegraph.
	Version = "0.3.0"

	// Commit is the git commit hash (set at build time).
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time).
	BuildDate = "unknown"
)

// Info returns a short version string for display.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information.
func Full() string {
	return "codegraph version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}
