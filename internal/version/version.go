// Package version reports the agentrec build version.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/agentrec"

// buildVersion is set via -ldflags "-X pkt.systems/agentrec/internal/version.buildVersion=...".
var buildVersion = ""

// Build describes the running binary.
type Build struct {
	Version   string
	Module    string
	GoVersion string
	Revision  string
	Modified  bool
}

// Read collects version details from the linker flag and build info.
func Read() Build {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info, buildVersion)
}

func fromBuildInfo(info *debug.BuildInfo, override string) Build {
	b := Build{Module: defaultModule, Version: "v0.0.0-unknown"}
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			b.Module = path
		}
		b.GoVersion = info.GoVersion
		b.Revision, b.Modified = vcsState(info)
		if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
			b.Version = strings.TrimSuffix(v, "+dirty")
		} else if v := pseudoVersion(info); v != "" {
			b.Version = v
		}
	}
	if v := strings.TrimSpace(override); v != "" {
		b.Version = v
	}
	return b
}

func vcsState(info *debug.BuildInfo) (string, bool) {
	var revision string
	var modified bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	return revision, modified
}

// pseudoVersion builds a Go-style pseudo version from VCS settings.
func pseudoVersion(info *debug.BuildInfo) string {
	revision, _ := vcsState(info)
	var vcsTime string
	for _, setting := range info.Settings {
		if setting.Key == "vcs.time" {
			vcsTime = setting.Value
		}
	}
	if revision == "" || vcsTime == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339, vcsTime)
	if err != nil {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	return "v0.0.0-" + parsed.UTC().Format("20060102150405") + "-" + revision
}
