// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/crucible-build/crucible/buildlog"
)

// Kind selects a sandbox backend (spec §6 "Configuration accepted by
// the realizer").
type Kind string

const (
	// Container runs the builder inside a bubblewrap-isolated
	// namespace. This is the default.
	Container Kind = "container"
	// None runs the builder directly on the host, with no isolation
	// beyond a sanitized environment and NO_NEW_PRIVS.
	None Kind = "none"
)

// Job describes a single builder invocation.
type Job struct {
	// Builder is the executable to run (an absolute path).
	Builder string
	// Args are passed to Builder.
	Args []string
	// Env is the complete environment (already including the
	// standard bindings from hasher.Instantiate); it is passed as-is,
	// never merged with the ambient process environment.
	Env map[string]string
	// StoreDir is bind-mounted read-only inside the container
	// backend. Ignored by the direct backend.
	StoreDir string
	// OutPath is the builder's designated output directory. The
	// container backend bind-mounts ScratchDir onto this path inside
	// the sandbox; the direct backend creates it directly.
	OutPath string
	// ScratchDir is a host-side writable directory that will become
	// OutPath's content once the build succeeds.
	ScratchDir string
	// Network allows outbound network access. Realize forces this to
	// true for fixed-output derivations and otherwise passes through
	// its Config.Network setting (spec §4.5 step 4, §6).
	Network bool
	// ContainerImage is the base image used by the container backend.
	ContainerImage string
	// Verbose controls whether the builder's stdio is inherited
	// (true) or captured (false, the default — captured stderr is
	// what Result.Stderr reports on failure).
	Verbose bool
	// LogPath, if set, persists the builder's combined stdout/stderr
	// to this path, zstd-compressed, regardless of outcome. Ignored
	// when Verbose is true, since stdio is inherited in that case.
	LogPath string
}

// Result reports the outcome of a successful Run.
type Result struct {
	// RegisterFrom is the host directory holding the builder's
	// output, to be passed as the tempDir argument of
	// store.RegisterOutput. The container backend reports its
	// scratch directory (content must still be moved into place);
	// the direct backend reports job.OutPath itself, since it wrote
	// there directly (spec §4.5 step 4).
	RegisterFrom string
}

// ExitError reports a non-zero exit from the builder, carrying the
// exit code and captured stderr (spec's BuildFailedError is
// constructed from this by the realize package).
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("builder exited with code %d", e.Code)
}

// Run dispatches to the backend named by kind and executes job.
func Run(ctx context.Context, kind Kind, job Job, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch kind {
	case Container, "":
		return runContainer(ctx, job, logger)
	case None:
		return runDirect(ctx, job, logger)
	default:
		return Result{}, &Error{Reason: fmt.Sprintf("unknown sandbox kind %q", kind)}
	}
}

// Error reports a failure to start a backend (e.g. bwrap missing),
// distinct from a builder ExitError.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sandbox: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("sandbox: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// runCommand executes cmd, wiring stdio per job.Verbose and
// translating a non-zero exit into *ExitError with captured stderr.
// On success, Result.RegisterFrom is set to registerFrom.
func runCommand(cmd *exec.Cmd, job Job, logger *slog.Logger, registerFrom string) (Result, error) {
	var stderr bytes.Buffer
	var log *buildlog.Writer
	if job.Verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else if job.LogPath != "" {
		log = buildlog.Create(job.LogPath)
		cmd.Stdout = log
		cmd.Stderr = io.MultiWriter(&stderr, log)
	} else {
		cmd.Stderr = &stderr
	}

	logger.Debug("running builder", "path", cmd.Path, "args", cmd.Args)

	runErr := cmd.Run()

	if log != nil {
		if closeErr := log.Close(); closeErr != nil {
			logger.Warn("failed to persist build log", "path", job.LogPath, "err", closeErr)
		}
	}

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return Result{}, &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return Result{}, &Error{Reason: "failed to start builder", Err: runErr}
	}
	return Result{RegisterFrom: registerFrom}, nil
}
