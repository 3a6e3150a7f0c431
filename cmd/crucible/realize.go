// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/crucible-build/crucible/cache"
	"github.com/crucible-build/crucible/hasher"
	"github.com/crucible-build/crucible/realize"
	"github.com/crucible-build/crucible/sandbox"
)

// realizeCmd implements "crucible realize" (aliased "build"):
// instantiate a recipe if needed, then run its builder and install
// the output. Accepts either a recipe path or an already-instantiated
// .drv path directly in the store.
func realizeCmd(args []string) error {
	fs := pflag.NewFlagSet("realize", pflag.ContinueOnError)
	configFlag := addConfigFlag(fs)
	network := fs.Bool("network", false, "allow outbound network access for every build, not just fixed-output")
	verbose := fs.Bool("verbose", false, "inherit the builder's stdio instead of capturing it")
	sandboxKind := fs.String("sandbox", "", "sandbox backend: container or none (default: from config)")
	containerImage := fs.String("container-image", "", "base image for the container backend (default: from config)")
	fs.Usage = func() {
		fmt.Print(`crucible realize - instantiate (if needed) and build a recipe or .drv

USAGE
    crucible realize [flags] <recipe.crucible.jsonc | drv-path>

FLAGS
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	target, err := requireArg(fs.Args(), "a recipe path or .drv path")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}

	kind := cfg.Sandbox.Kind
	if *sandboxKind != "" {
		kind = sandbox.Kind(*sandboxKind)
	}
	image := cfg.Sandbox.ContainerImage
	if *containerImage != "" {
		image = *containerImage
	}

	realizeConfig := realize.Config{
		Sandbox:        kind,
		ContainerImage: image,
		Network:        *network || cfg.Sandbox.Network,
		Verbose:        *verbose || cfg.Sandbox.Verbose,
		Logger:         slog.Default(),
	}

	var drvPath, drvHash string
	if isDrvPath(target) {
		drvPath = target
	} else {
		root, err := loadRecipe(target)
		if err != nil {
			return err
		}
		if err := hasher.DetectCycle(root); err != nil {
			return err
		}
		drvHash, err = hasher.HashDerivationModulo(root, s.Dir(), hasher.Memo{})
		if err != nil {
			return err
		}
		result, err := hasher.Instantiate(s, root, hasher.InstantiateMemo{})
		if err != nil {
			return err
		}
		drvPath = result.DrvPath
	}

	buildCache, cacheErr := cache.Open(cfg.Cache)
	if cacheErr != nil {
		slog.Default().Warn("realize cache unavailable, continuing without it", "err", cacheErr)
	}
	var fingerprint string
	if buildCache != nil && drvHash != "" {
		fingerprint = cache.Fingerprint(drvHash, s.Dir())
		if entry, ok := buildCache.Lookup(fingerprint); ok && entry.Success && s.Has(entry.OutPath) {
			fmt.Println(entry.OutPath)
			return nil
		}
	}

	if realizeConfig.Verbose {
		announceVerboseBuild(drvPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	start := time.Now()
	outPath, realizeErr := realize.Realize(ctx, s, drvPath, realizeConfig)

	if buildCache != nil && fingerprint != "" {
		entry := cache.Entry{DrvHash: drvHash, OutPath: outPath, Success: realizeErr == nil}
		if err := buildCache.Record(fingerprint, entry); err != nil {
			slog.Default().Warn("failed to record realize cache entry", "err", err)
		}
	}

	if realizeErr != nil {
		return realizeErr
	}

	slog.Default().Debug("realize complete", "drvPath", drvPath, "elapsed", time.Since(start))
	fmt.Println(outPath)
	return nil
}

// announceVerboseBuild prints a header line before a --verbose build,
// whose stdio the sandbox inherits directly (see sandbox.runCommand),
// leaving crucible no later opportunity to annotate the builder's own
// output. Styling is applied only when stderr is an actual terminal,
// not a pipe or file, so captured logs stay plain text.
func announceVerboseBuild(drvPath string) {
	line := fmt.Sprintf("building %s (verbose)", drvPath)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		line = "\033[1m" + line + "\033[0m"
	}
	fmt.Fprintln(os.Stderr, line)
}
