// Package version reports the mdexec build.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags, e.g.
// go build -ldflags "-X git.home.luguber.info/inful/mdexec/internal/version.Version=v0.3.0".
var (
	Version   = "unknown"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Resolved returns Version, falling back to the module version recorded by
// `go install` when no ldflags were given.
func Resolved() string {
	return resolve(Version, debug.ReadBuildInfo)
}

func resolve(v string, read func() (*debug.BuildInfo, bool)) string {
	if v != "unknown" && v != "" {
		return v
	}
	if info, ok := read(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "unknown"
}

// String renders the line printed by `mdexec --version`.
func String() string {
	return fmt.Sprintf("mdexec %s (commit %s, built %s)", Resolved(), GitCommit, BuildTime)
}
