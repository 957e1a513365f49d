package misc

import (
	"runtime/debug"
)

// GetVersionInfo returns the module version baked in at build time, or the
// vcs revision when built from a checkout.
func GetVersionInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	version := info.Main.Version
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 8 {
			version += " (" + setting.Value[:8] + ")"
		}
	}
	return version
}
