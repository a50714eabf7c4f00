// Package version holds build-time metadata injected via ldflags.
package version

// Set at build time:
//
//	-X 'github.com/janekbaraniewski/tokenwatch/internal/version.Version=...'
//	-X 'github.com/janekbaraniewski/tokenwatch/internal/version.CommitHash=...'
var (
	Version    = "dev"
	CommitHash = "unknown"
)

// String returns a formatted version string.
func String() string {
	return Version + " (" + CommitHash + ")"
}
