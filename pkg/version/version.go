// Package version carries the build information stamped in by the linker:
//
//	-ldflags "-X github.com/ciscodnac/dnac-backup/pkg/version.version=v1.2.0"
package version

import (
	"fmt"

	"golang.org/x/mod/semver"
)

var (
	version   string
	commit    string
	buildTime string
)

// Version returns the release version, "dev" for unstamped builds.
func Version() string {
	if version == "" {
		return "dev"
	}
	return version
}

func GitCommit() string { return commit }

func BuildTime() string { return buildTime }

// IsRelease reports whether the binary was stamped with a final semantic
// version, not a pre-release or a dev build.
func IsRelease() bool {
	v := Version()
	return semver.IsValid(v) && semver.Prerelease(v) == "" && semver.Build(v) == ""
}

// UserAgent is sent with every appliance request.
func UserAgent() string {
	return "dnac-backup/" + Version()
}

func String() string {
	return fmt.Sprintf("version: %s, commit: %s, built: %s", Version(), commit, buildTime)
}
