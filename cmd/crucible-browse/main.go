// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

// crucible-browse is a read-only terminal browser over a crucible
// store: it lists store entries and, for a selected derivation file,
// renders its JSON with syntax highlighting. It is a convenience
// viewer in the same spirit as the core's deliberately bare-bones
// public API — it adds no store or derivation semantics of its own.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/crucible-build/crucible/config"
	"github.com/crucible-build/crucible/process"
	"github.com/crucible-build/crucible/store"
	"github.com/crucible-build/crucible/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	fs := pflag.NewFlagSet("crucible-browse", pflag.ContinueOnError)
	configFlag := fs.String("config", "", "path to crucible.yaml (default: $CRUCIBLE_CONFIG)")
	showVersion := fs.BoolP("version", "v", false, "show version and exit")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, `crucible-browse - interactively browse a crucible store

USAGE
    crucible-browse [flags]

FLAGS
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *showVersion {
		fmt.Println(version.Full())
		return nil
	}

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

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("crucible-browse requires an interactive terminal; stdout is not a tty")
	}

	s, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}

	model, err := newModel(s)
	if err != nil {
		return err
	}

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}
