/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of playlist-gen.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/playlist_gen/internal/version.Version=X.Y.Z
var Version = "0.1.0-dev"

// Commit is the VCS revision, set at build time like Version.
var Commit = ""

// String formats the version for display.
func String() string {
	s := "playlistgen " + Version
	if Commit != "" {
		s += fmt.Sprintf(" (%s)", shortCommit(Commit))
	}
	return s + " " + runtime.Version()
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}
