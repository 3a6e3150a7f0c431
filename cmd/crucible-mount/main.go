// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

// crucible-mount exposes a content-addressed store as a read-only
// FUSE filesystem, so store paths can be browsed (or handed to tools
// that expect an ordinary directory tree) without copying them out of
// the store.
//
// Usage:
//
//	crucible-mount [--config path] <mountpoint>
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/crucible-build/crucible/config"
	"github.com/crucible-build/crucible/process"
	"github.com/crucible-build/crucible/store"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	fs := pflag.NewFlagSet("crucible-mount", pflag.ContinueOnError)
	configFlag := fs.String("config", "", "path to crucible.yaml (default: $CRUCIBLE_CONFIG)")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, `crucible-mount - mount a crucible store read-only via FUSE

USAGE
    crucible-mount [flags] <mountpoint>

FLAGS
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	args := fs.Args()
	if len(args) == 0 {
		return fmt.Errorf("mountpoint is required")
	}
	mountpoint := args[0]

	var cfg *config.Config
	var err error
	if *configFlag != "" {
		cfg, err = config.LoadFile(*configFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}

	server, err := Mount(Options{Mountpoint: mountpoint, Store: s})
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	return server.Unmount()
}
