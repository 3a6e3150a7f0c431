// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/crucible-build/crucible/config"
	"github.com/crucible-build/crucible/derivation"
	"github.com/crucible-build/crucible/recipe"
	"github.com/crucible-build/crucible/store"
)

// addConfigFlag registers the --config flag shared by every
// subcommand that needs a Config. When unset, loadConfig falls back
// to config.Load's CRUCIBLE_CONFIG lookup — there is still no hidden
// search path, just a second explicit source.
func addConfigFlag(fs *pflag.FlagSet) *string {
	return fs.String("config", "", "path to crucible.yaml (default: $CRUCIBLE_CONFIG)")
}

func loadConfig(configFlag string) (*config.Config, error) {
	if configFlag != "" {
		return config.LoadFile(configFlag)
	}
	return config.Load()
}

// openStore opens the store directory named by cfg, validating cfg
// first so a missing store path is reported before any filesystem
// mutation is attempted.
func openStore(cfg *config.Config) (*store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return store.Open(cfg.Store)
}

// loadRecipe reads and resolves a .crucible.jsonc file, returning its
// root *derivation.Input.
func loadRecipe(path string) (*derivation.Input, error) {
	_, root, err := recipe.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return root, nil
}

// isDrvPath reports whether arg is treated as a derivation file path
// rather than a recipe to parse. It checks only the ".drv" suffix;
// whether the file exists is not checked.
func isDrvPath(arg string) bool {
	return strings.HasSuffix(arg, ".drv")
}

func requireArg(args []string, what string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%s is required", what)
	}
	return args[0], nil
}
