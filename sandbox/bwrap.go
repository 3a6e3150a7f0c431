// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
)

// baseRootDirs are ro-bound into the sandbox so a builder can find its
// dynamic linker, libc, and shell — bubblewrap's new mount namespace
// is otherwise completely empty, and even job.Builder == "/bin/sh"
// (the spec's own example of a valid absolute-host-path builder)
// would fail to exec without them. Mirrors the teacher's default
// "developer" bwrap profile (sandbox/profile.go's defaultProfilesYAML,
// which ro-binds /usr, /bin, /lib, /lib64 for the same reason).
var baseRootDirs = []string{"usr", "bin", "lib", "lib64"}

// bwrapSearchPaths mirrors the teacher's standard-location probe for
// locating bubblewrap without depending on PATH alone.
var bwrapSearchPaths = []string{
	"/usr/bin/bwrap",
	"/usr/local/bin/bwrap",
	"/bin/bwrap",
}

// bwrapPath resolves the bubblewrap binary, checking PATH first and
// then the standard install locations.
func bwrapPath() (string, error) {
	if path, err := exec.LookPath("bwrap"); err == nil {
		return path, nil
	}
	for _, path := range bwrapSearchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("bwrap not found on PATH or in standard locations")
}

// buildBwrapArgs assembles the bubblewrap argument list for job: a
// fresh set of namespaces, the store mounted read-only, the scratch
// directory bind-mounted onto the output path, /proc and /dev, a
// cleared environment re-populated from job.Env, and the builder
// command itself.
func buildBwrapArgs(job Job) []string {
	var args []string

	args = append(args,
		"--unshare-pid",
		"--unshare-ipc",
		"--unshare-uts",
		"--unshare-cgroup",
		"--die-with-parent",
		"--new-session",
	)
	if !job.Network {
		args = append(args, "--unshare-net")
	}

	args = append(args, "--proc", "/proc", "--dev", "/dev")
	args = append(args, rootBinds(job.ContainerImage)...)
	args = append(args, "--ro-bind", job.StoreDir, job.StoreDir)
	args = append(args, "--bind", job.ScratchDir, job.OutPath)
	args = append(args, "--chdir", job.OutPath)

	args = append(args, "--clearenv")
	keys := make([]string, 0, len(job.Env))
	for k := range job.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--setenv", k, job.Env[k])
	}

	args = append(args, "--")
	args = append(args, job.Builder)
	args = append(args, job.Args...)
	return args
}

// rootBinds returns the --ro-bind pairs giving the sandbox a minimal
// base filesystem (spec §4.5 step 4's "container spawned from a fixed
// base image"). When containerImage names a local rootfs directory,
// its usr/bin/lib/lib64 subtrees stand in for the sandbox's; bwrap has
// no OCI image support of its own, so a plain directory tree is the
// only "base image" it can mount. With no containerImage configured,
// the host's own /usr, /bin, /lib, /lib64 are bound instead — there is
// no fixed image to pin to, so the host root is the fallback base,
// same as the teacher's default "developer" profile does for its
// local-development sandbox. A missing subtree (e.g. hosts without
// /lib64) is skipped rather than failing the build.
func rootBinds(containerImage string) []string {
	var args []string
	for _, dir := range baseRootDirs {
		dest := "/" + dir
		source := dest
		if containerImage != "" {
			source = filepath.Join(containerImage, dir)
		}
		if _, err := os.Stat(source); err != nil {
			continue
		}
		args = append(args, "--ro-bind", source, dest)
	}
	return args
}

// runContainer executes job's builder inside a bubblewrap sandbox
// (spec §4.5 step 4, "Container-backed").
func runContainer(ctx context.Context, job Job, logger *slog.Logger) (Result, error) {
	path, err := bwrapPath()
	if err != nil {
		return Result{}, &Error{Reason: "bubblewrap unavailable", Err: err}
	}

	if job.ContainerImage != "" {
		info, statErr := os.Stat(job.ContainerImage)
		if statErr != nil || !info.IsDir() {
			return Result{}, &Error{Reason: fmt.Sprintf("container image %q is not a directory", job.ContainerImage), Err: statErr}
		}
	}

	if err := os.MkdirAll(job.ScratchDir, 0o755); err != nil {
		return Result{}, &Error{Reason: "creating scratch directory", Err: err}
	}

	args := buildBwrapArgs(job)
	cmd := exec.CommandContext(ctx, path, args...)
	// The bwrap process itself must not inherit the parent's full
	// environment — only what it needs to locate its own libraries.
	// Everything the builder sees is passed via --setenv instead.
	cmd.Env = []string{"PATH=/usr/bin:/bin"}

	return runCommand(cmd, job, logger, job.ScratchDir)
}
