// Package buildinfo carries the release identity stamped in by the linker, e.g.
//
//	go build -ldflags "-X github.com/m3rciful/petbot/core/buildinfo.Version=v0.3.0 \
//	  -X github.com/m3rciful/petbot/core/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/m3rciful/petbot/core/buildinfo.Date=$(date -u +%FT%TZ)"
package buildinfo

import "strings"

var (
	Version = "dev"
	Commit  = "local"
	// Date is RFC 3339; empty for local builds.
	Date = ""
)

// String renders the identity as "version (commit, date)".
func String() string {
	parts := []string{Commit}
	if Date != "" {
		parts = append(parts, Date)
	}
	return Version + " (" + strings.Join(parts, ", ") + ")"
}
