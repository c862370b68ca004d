// Package version reports the Kairo release.
package version

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the release from the embedded VERSION file. When the file is
// empty it falls back to the module version recorded in the build.
func Get() string {
	if v := strings.TrimSpace(versionContent); v != "" {
		return v
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return strings.TrimPrefix(info.Main.Version, "v")
	}
	return "dev"
}
