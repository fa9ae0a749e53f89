// Package buildinfo carries release metadata stamped by the linker, e.g.
//
//	go build -ldflags "-X github.com/m3rciful/redistbot/core/buildinfo.Version=v0.4.0 \
//	  -X github.com/m3rciful/redistbot/core/buildinfo.Commit=$(git rev-parse --short HEAD)"
//
// The bootstrap log line and `redistbot version` both print it.
package buildinfo

var (
	Version = "dev"
	Commit  = "local"
	Date    = "" // RFC3339, empty for local builds
)
