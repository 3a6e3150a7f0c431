// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"
)

// runDirect executes job's builder on the host with no filesystem
// isolation: OutPath is created directly, the environment is
// replaced wholesale with job.Env plus the TMPDIR family pointed at
// ScratchDir, and NO_NEW_PRIVS is asserted on the child so the
// builder cannot regain privileges via a setuid helper (spec §4.5
// step 4, "Direct (no sandbox)").
func runDirect(ctx context.Context, job Job, logger *slog.Logger) (Result, error) {
	if err := os.MkdirAll(job.ScratchDir, 0o755); err != nil {
		return Result{}, &Error{Reason: "creating scratch directory", Err: err}
	}
	if err := os.MkdirAll(job.OutPath, 0o755); err != nil {
		return Result{}, &Error{Reason: "creating output directory", Err: err}
	}

	cmd := exec.CommandContext(ctx, job.Builder, job.Args...)
	cmd.Dir = job.ScratchDir
	cmd.Env = directEnv(job)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := assertNoNewPrivs(); err != nil {
		logger.Warn("could not assert NO_NEW_PRIVS for direct sandbox", "error", err)
	}

	return runCommand(cmd, job, logger, job.OutPath)
}

func directEnv(job Job) []string {
	env := make([]string, 0, len(job.Env)+4)
	for k, v := range job.Env {
		env = append(env, k+"="+v)
	}
	for _, name := range []string{"TMPDIR", "TEMPDIR", "TMP", "TEMP"} {
		env = append(env, name+"="+job.ScratchDir)
	}
	return env
}

// assertNoNewPrivs sets PR_SET_NO_NEW_PRIVS on the calling OS thread
// before the builder is forked from it (runDirect locks its goroutine
// to that thread), so the child inherits it and cannot gain
// privileges through a setuid/setgid executable.
func assertNoNewPrivs() error {
	return unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0)
}
