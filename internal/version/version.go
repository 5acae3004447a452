// Package version holds build metadata injected with
// -ldflags "-X github.com/ramiqadoumi/go-pricing-agents/internal/version.Version=...".
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func GoVersion() string { return runtime.Version() }

// String is the one-line form logged at startup.
func String() string {
	commit := GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, GoVersion())
}
