// Package version reports the build version of the specforge binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set via ldflags at release time; left as defaults for local builds.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns version, commit, and build date, preferring ldflags values
// and falling back to module build info for plain `go install` builds.
func Info() (version, commit, date string) {
	if Version != "dev" || Commit != "none" || Date != "unknown" {
		return Version, Commit, Date
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return Version, Commit, Date
	}

	version, commit, date = Version, Commit, Date
	if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
			if len(commit) > 7 {
				commit = commit[:7]
			}
		case "vcs.time":
			date = s.Value
		}
	}
	return version, commit, date
}

// String formats the version info on one line.
func String() string {
	v, c, d := Info()
	return fmt.Sprintf("specforge %s (commit %s, built %s)", v, c, d)
}
