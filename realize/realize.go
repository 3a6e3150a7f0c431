// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

// Package realize executes a derivation's builder and atomically
// installs its output into the store (spec §4.5).
package realize

import (
	"context"
	"log/slog"
	"os"

	"github.com/crucible-build/crucible/errs"
	"github.com/crucible-build/crucible/recursivehash"
	"github.com/crucible-build/crucible/sandbox"
	"github.com/crucible-build/crucible/store"
)

// Config configures the sandbox backend and its network policy
// (spec §6 "Configuration accepted by the realizer").
type Config struct {
	Sandbox        sandbox.Kind
	ContainerImage string
	Network        bool
	Verbose        bool
	Logger         *slog.Logger
}

// Realize reads the derivation file at drvPath, recursively realizes
// its inputs, and — unless the output already exists — runs the
// builder and installs the result. Returns the output path. Unless
// Config.Verbose is set (the builder's stdio is then inherited), the
// builder's combined stdout/stderr is captured zstd-compressed
// alongside the derivation file (see package buildlog), independent
// of the stderr tail carried on a returned BuildFailedError.
func Realize(ctx context.Context, s *store.Store, drvPath string, config Config) (string, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	drvFile, err := s.ReadDrv(drvPath)
	if err != nil {
		return "", err
	}
	outPath := drvFile.Outputs.Out.Path

	if s.Has(outPath) {
		return outPath, nil
	}

	for inputDrvPath := range drvFile.InputDrvs {
		if _, err := Realize(ctx, s, inputDrvPath, config); err != nil {
			return "", err
		}
	}

	network := config.Network || drvFile.FixedOutput

	scratchDir, err := s.NewScratchDir()
	if err != nil {
		return "", err
	}

	job := sandbox.Job{
		Builder:        drvFile.Builder,
		Args:           drvFile.Args,
		Env:            drvFile.Env,
		StoreDir:       s.Dir(),
		OutPath:        outPath,
		ScratchDir:     scratchDir,
		Network:        network,
		ContainerImage: config.ContainerImage,
		Verbose:        config.Verbose,
		LogPath:        drvPath + ".log.zst",
	}

	logger.Info("realizing derivation", "drvPath", drvPath, "outPath", outPath, "sandbox", config.Sandbox)

	sandboxResult, err := sandbox.Run(ctx, config.Sandbox, job, logger)
	if err != nil {
		// The direct backend builds straight at outPath (no temp
		// staging), so a failed build can leave partial content there
		// unless it is cleaned up explicitly (spec P6).
		if config.Sandbox == sandbox.None {
			os.RemoveAll(outPath)
		}
		switch e := err.(type) {
		case *sandbox.ExitError:
			return "", &errs.BuildFailedError{Path: drvPath, ExitCode: e.Code, Stderr: e.Stderr}
		case *sandbox.Error:
			return "", &errs.SandboxError{Reason: e.Reason, Err: e.Err}
		default:
			return "", err
		}
	}

	// A zero-exit builder that never populated (or removed) its
	// designated output directory is reported as MissingOutputError
	// rather than as a filesystem error from RegisterOutput (spec
	// §4.5 step 5).
	if !s.Has(sandboxResult.RegisterFrom) {
		return "", &errs.MissingOutputError{OutPath: outPath}
	}

	// Fixed-output derivations declare their content hash up front; the
	// core spec only requires that declaration to determine the output
	// path (§4.2), but this implementation also verifies the built
	// content actually matches it (§9 E6), failing the build rather
	// than silently installing mismatched content.
	if drvFile.FixedOutput {
		mode := drvFile.OutputHashMode
		if mode == "" {
			mode = "flat"
		}
		if err := recursivehash.Verify(sandboxResult.RegisterFrom, mode, drvFile.OutputHash); err != nil {
			os.RemoveAll(sandboxResult.RegisterFrom)
			return "", &errs.ContentMismatchError{OutPath: outPath, Err: err}
		}
	}

	if err := s.RegisterOutput(sandboxResult.RegisterFrom, outPath); err != nil {
		return "", err
	}

	if !s.Has(outPath) {
		return "", &errs.MissingOutputError{OutPath: outPath}
	}

	return outPath, nil
}
