// SPDX-License-Identifier: MIT
//
// Package build carries the version metadata shown by --version. Release
// builds stamp it with linker flags:
//
//	go build -ldflags "-X visualizer/pkg/build.buildName=visualizer \
//	  -X visualizer/pkg/build.buildVersion=v0.3.0 ..."
//
// Unstamped builds fall back to the module and VCS information the Go
// toolchain embeds.
package build

import (
	"fmt"
	"runtime/debug"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
	Stamped     bool // true when the values came from -ldflags
}

// String formats the version line printed by --version.
func (i *Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

// Package-level variables for build information. These are populated by
// -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultInfo()

	readBuildInfo = debug.ReadBuildInfo
)

func defaultInfo() *Info {
	return &Info{
		Name:        "visualizer",
		Description: "Live audio spectrum visualizer",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize copies the ldflags values into the build information. A binary
// without any of them is a development build and reads what the toolchain
// recorded instead. A partially stamped binary is a broken release build and
// returns an error naming the first missing flag.
func Initialize() error {
	if buildName == "" && buildTime == "" && buildCommit == "" && buildVersion == "" {
		fromToolchain(buildFlags)
		return nil
	}

	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion
	buildFlags.Stamped = true

	return nil
}

func fromToolchain(info *Info) {
	bi, ok := readBuildInfo()
	if !ok {
		return
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		info.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "vcs.time":
			info.Time = s.Value
		}
	}
}

// GetBuildFlags returns the current build information. Call Initialize
// first.
func GetBuildFlags() *Info {
	return buildFlags
}
