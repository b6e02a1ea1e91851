// Package buildinfo exposes version metadata for the CLI. Values can be
// overridden at build time via -ldflags; cli.Version and cli.Date are honored
// for external build scripts, and the VCS revision recorded by the Go
// toolchain fills an empty Commit.
package buildinfo

import (
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/flarebyte/deltapack/cli"
)

var (
	// Version is the semantic version or custom string. Defaults to cli.Version or "dev".
	Version = "dev"
	// Commit is the VCS commit hash (optional).
	Commit = ""
	// Date is the build time in RFC3339 or similar (optional). Falls back to cli.Date.
	Date = ""
	// BuiltBy is an optional builder identifier (optional).
	BuiltBy = ""
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

func version() string {
	if Version != "" {
		return Version
	}
	if cli.Version != "" {
		return cli.Version
	}
	return "dev"
}

func date() string {
	if Date != "" {
		return Date
	}
	return cli.Date
}

func commit() string {
	if Commit != "" {
		return Commit
	}
	info, ok := readBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

// Summary returns a concise single-line version string.
func Summary() string {
	v := version()
	parts := make([]string, 0, 2)
	if c := commit(); c != "" {
		if len(c) > 7 {
			c = c[:7]
		}
		parts = append(parts, "commit="+c)
	}
	if d := date(); d != "" {
		parts = append(parts, "date="+d)
	}
	if len(parts) > 0 {
		v += " (" + strings.Join(parts, ", ") + ")"
	}
	return v
}

// Info is the detailed version record printed by `deltapack version --json`.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	BuiltBy string `json:"built_by"`
	Go      string `json:"go"`
	GoOS    string `json:"go_os"`
	GoArch  string `json:"go_arch"`
}

// Details returns the resolved build metadata.
func Details() Info {
	return Info{
		Version: version(),
		Commit:  commit(),
		Date:    date(),
		BuiltBy: BuiltBy,
		Go:      runtime.Version(),
		GoOS:    runtime.GOOS,
		GoArch:  runtime.GOARCH,
	}
}
