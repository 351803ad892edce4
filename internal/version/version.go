// Package version reports the build identity of the fleetcost binary.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set at release time with
// -ldflags "-X github.com/pankaj-dahiya-devops/fleetcost/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the text printed by fleetcost version: one "key: value" line per
// build attribute after the leading version line.
func Info() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fleetcost version %s\n", Version)
	fmt.Fprintf(&b, "commit: %s\n", Commit)
	fmt.Fprintf(&b, "built: %s\n", Date)
	fmt.Fprintf(&b, "go: %s\n", runtime.Version())
	return b.String()
}
