// Package version holds build information for the codemap binary.
package version

import "fmt"

// Set at build time:
// go build -ldflags "-X codemap/internal/version.Version=0.4.0 -X codemap/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version   = "0.4.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info returns the version with the abbreviated commit as build metadata,
// e.g. "0.4.0+1a2b3c4". The commit is omitted when unknown or too short.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + "+" + Commit[:7]
	}
	return Version
}

// Full returns the multi-line version banner.
func Full() string {
	return fmt.Sprintf("codemap %s\ncommit: %s\nbuilt: %s", Version, Commit, BuildDate)
}
