// Package version holds build metadata for the docchat binary, injected at
// link time:
//
//	go build -ldflags="-X github.com/54b3r/docchat/internal/version.Version=v0.3.0 \
//	                    -X github.com/54b3r/docchat/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/docchat/internal/version.BuildDate=2026-01-01"
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the short git SHA.
	Commit = "unknown"
	// BuildDate is the UTC build date.
	BuildDate = "unknown"
)

// String renders the build metadata on one line.
func String() string {
	return fmt.Sprintf("docchat %s (commit %s, built %s, %s %s/%s)",
		Version, Commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
