// Package version holds build information set through -ldflags, e.g.
//
//	-X github.com/MeKo-Tech/filmdx/internal/version.Version=v1.2.0
package version

import "fmt"

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version information
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String formats the build information for the version command.
func String() string {
	return fmt.Sprintf("filmdx %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
