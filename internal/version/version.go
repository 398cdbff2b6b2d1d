// Package version reports the yamlinc build version, used in the header of
// every generated document and by the version command.
package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Name is the program name used in the engine string.
const Name = "yamlinc"

// Set with -ldflags "-X github.com/conneroisu/yamlinc/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = ""
	// Date is the RFC3339 build time.
	Date = ""
)

// Info describes the running binary.
type Info struct {
	Version   string    `json:"version"`
	Commit    string    `json:"commit,omitempty"`
	BuildTime time.Time `json:"build_time,omitzero"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
}

// Get collects the build information. Values not injected at link time
// are taken from the module and VCS data embedded by the go tool.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if t, err := time.Parse(time.RFC3339, Date); err == nil {
		info.BuildTime = t
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildTime.IsZero() {
				info.BuildTime, _ = time.Parse(time.RFC3339, s.Value)
			}
		}
	}
	return info
}

// ShortCommit is the first seven characters of the commit, if known.
func (i Info) ShortCommit() string {
	if len(i.Commit) < 7 {
		return i.Commit
	}
	return i.Commit[:7]
}

// Short returns "<version> (<commit>)", or just the version when the
// commit is unknown.
func Short() string {
	info := Get()
	if c := info.ShortCommit(); c != "" {
		return info.Version + " (" + c + ")"
	}
	return info.Version
}

// Engine returns the "name@version" string written into generated files.
func Engine() string {
	return Name + "@" + strings.TrimPrefix(Get().Version, "v")
}
