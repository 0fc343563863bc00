// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package version reports the extsign build version. Release builds inject
// the values with -ldflags; other builds fall back to the module and VCS
// information the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with: go build -ldflags "-X github.com/extsign/extsign/internal/version.Version=1.0.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// shortCommit is the length of the abbreviated revision.
const shortCommit = 12

// resolve fills unset fields from build info.
func resolve(info *debug.BuildInfo, ok bool) (version, commit, built string) {
	version, commit, built = Version, GitCommit, BuildTime
	if !ok || info == nil {
		return
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "unknown" {
				commit = s.Value
				if len(commit) > shortCommit {
					commit = commit[:shortCommit]
				}
			}
		case "vcs.time":
			if built == "unknown" {
				built = s.Value
			}
		}
	}
	return
}

// String returns the line printed by --version.
func String() string {
	v, c, b := resolve(debug.ReadBuildInfo())
	return fmt.Sprintf("%s (commit: %s, built: %s, %s/%s)", v, c, b, runtime.GOOS, runtime.GOARCH)
}
