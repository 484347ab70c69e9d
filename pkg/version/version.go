package version

import (
	"runtime/debug"
)

// Build information, set with -ldflags "-X" at link time. Unset values are
// filled from the module build info.
var (
	Version   = ""
	Revision  = ""
	Branch    = ""
	BuildUser = ""
	BuildDate = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		setDefaults("", nil)

		return
	}

	setDefaults(info.Main.Version, info.Settings)
}

func setDefaults(mainVersion string, settings []debug.BuildSetting) {
	if Version == "" {
		Version = mainVersion
	}

	if Version == "" || Version == "(devel)" {
		Version = "0.0.0-dev"
	}

	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if Revision == "" {
				Revision = s.Value
			}
		case "vcs.time":
			if BuildDate == "" {
				BuildDate = s.Value
			}
		}
	}

	if Revision == "" {
		Revision = "unknown"
	}
}
