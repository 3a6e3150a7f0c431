// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
)

// storeCmd dispatches "crucible store list" and "crucible store
// watch".
func storeCmd(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("store subcommand required: list or watch")
	}
	switch args[0] {
	case "list":
		return storeListCmd(args[1:])
	case "watch":
		return storeWatchCmd(args[1:])
	default:
		return fmt.Errorf("unknown store subcommand: %s", args[0])
	}
}

func storeListCmd(args []string) error {
	fs := pflag.NewFlagSet("store list", pflag.ContinueOnError)
	configFlag := addConfigFlag(fs)
	if err := fs.Parse(args); err != nil {
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

	entries, err := s.List()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Println(entry)
	}
	return nil
}

// storeWatchCmd tails newly-registered store entries as they appear,
// supplementing spec §4.3's list() inspection with a live view (an
// explicitly permitted CLI enrichment, not a core operation).
func storeWatchCmd(args []string) error {
	fs := pflag.NewFlagSet("store watch", pflag.ContinueOnError)
	configFlag := addConfigFlag(fs)
	if err := fs.Parse(args); err != nil {
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

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating store watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.Dir()); err != nil {
		return fmt.Errorf("watching %s: %w", s.Dir(), err)
	}

	fmt.Fprintf(os.Stderr, "watching %s for new store entries (Ctrl-C to stop)\n", s.Dir())
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				fmt.Println(filepath.Base(event.Name))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}
