// Package versions provides build version information for the authkit CLI.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

const unknownStr = "unknown"

var (
	// Version is the current version of authkit, set at build time via ldflags.
	Version = "dev"
	// Commit is the git commit the binary was built from, set via ldflags.
	Commit = unknownStr
	// BuildDate is the build timestamp in RFC 3339, set via ldflags.
	BuildDate = unknownStr
)

// VersionInfo describes the running binary.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersionInfo returns the version information of the binary. Development
// builds without ldflags fall back to VCS metadata embedded by the Go
// toolchain.
func GetVersionInfo() VersionInfo {
	version, commit, buildDate := Version, Commit, BuildDate

	if commit == unknownStr {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					commit = setting.Value
				case "vcs.time":
					buildDate = setting.Value
				}
			}
		}
	}

	// Development builds are identified by their commit rather than a
	// version tag.
	if version == "dev" {
		if commit != unknownStr && len(commit) >= 8 {
			version = "build-" + commit[:8]
		} else {
			version = "build-" + unknownStr
		}
	}

	if buildDate != unknownStr {
		if t, err := time.Parse(time.RFC3339, buildDate); err == nil {
			buildDate = t.UTC().Format("2006-01-02 15:04:05 UTC")
		}
	}

	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}
