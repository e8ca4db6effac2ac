// Package version stamps binaries with their build
package version

import (
	"runtime/debug"
	"sync"
)

// BuildInfo is served by /meta/version and sent to ClickHouse as client info
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// stamped at link time:
//
//	go build -ldflags "-X hitclust/internal/core/version.version=v0.4.0 -X hitclust/internal/core/version.commit=$(git rev-parse --short HEAD)"
var (
	service = "hitclust"
	version = "dev"
	commit  string
	date    string
)

// vcs reads what the go tool embeds when building inside a checkout
var vcs = sync.OnceValues(func() (rev, at string) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
			if len(rev) > 7 {
				rev = rev[:7]
			}
		case "vcs.time":
			at = s.Value
		}
	}
	return rev, at
})

// Info returns the build stamp, falling back to embedded vcs data for an unstamped commit or date
func Info() BuildInfo {
	bi := BuildInfo{Service: service, Version: version, Commit: commit, Date: date}
	rev, at := vcs()
	if bi.Commit == "" {
		bi.Commit = or(rev, "none")
	}
	if bi.Date == "" {
		bi.Date = or(at, "unknown")
	}
	return bi
}

// SetService names the running binary; mains call it before anything logs
func SetService(name string) { service = name }

func or(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
