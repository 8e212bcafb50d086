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

// Version is set at build time via ldflags:
//
//	-X github.com/friendsincode/mustard/internal/version.Version=X.Y.Z
var Version = "0.3.0"

// Commit is the git revision, also set via ldflags.
var Commit = "dev"

// String renders the version for `mustard version` and logs.
func String() string {
	return fmt.Sprintf("mustard %s (%s, %s)", Version, Commit, runtime.Version())
}
