// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the small set of top-level helpers shared
// by crucible's command-line entrypoints.
package process

import (
	"fmt"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1. Use it
// in main() for errors surfaced from a run() function, where the
// structured logger may not yet be configured (or the error predates
// any logging setup worth doing).
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// ExitCode mirrors a builder's exit code back out of the process,
// for commands (like `crucible realize`) whose failure should be
// visible to a calling shell script via $? rather than just stderr
// text.
func ExitCode(code int) {
	os.Exit(code)
}
