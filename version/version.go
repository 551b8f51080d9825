// Package version reports build metadata for the threatbrief binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set through -ldflags "-X github.com/teranos/threatbrief/version.Version=..."
var (
	Version    = "dev"
	CommitHash = ""
	BuildTime  = ""
)

// Info contains version and build information
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Modified   bool   `json:"modified,omitempty"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the current build information. Commit and build time not
// injected by ldflags are taken from the VCS stamp the go tool embeds.
func Get() Info {
	info := Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.CommitHash == "" {
					info.CommitHash = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}
	if info.CommitHash == "" {
		info.CommitHash = "unknown"
	}
	if info.BuildTime == "" {
		info.BuildTime = "unknown"
	}
	return info
}

func (i Info) String() string {
	dirty := ""
	if i.Modified {
		dirty = "+dirty"
	}
	return fmt.Sprintf("threatbrief %s (commit %s%s, built %s, %s %s)",
		i.Version, i.Short(), dirty, i.BuildTime, i.GoVersion, i.Platform)
}

// Short returns the abbreviated commit hash
func (i Info) Short() string {
	if len(i.CommitHash) > 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}

// UserAgent identifies outbound requests to generation backends
func UserAgent() string {
	return "threatbrief/" + Version
}
