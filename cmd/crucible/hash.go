// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/crucible-build/crucible/hasher"
)

// hashCmd implements "crucible hash": prints a recipe's
// derivation-modulo hash without writing anything to the store (spec
// §4.1's hash, available on its own rather than only as a side effect
// of instantiate).
func hashCmd(args []string) error {
	fs := pflag.NewFlagSet("hash", pflag.ContinueOnError)
	configFlag := addConfigFlag(fs)
	fs.Usage = func() {
		fmt.Print(`crucible hash - print a recipe's derivation-modulo hash

USAGE
    crucible hash [flags] <recipe.crucible.jsonc>

FLAGS
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	recipePath, err := requireArg(fs.Args(), "a recipe path")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		return err
	}

	root, err := loadRecipe(recipePath)
	if err != nil {
		return err
	}
	if err := hasher.DetectCycle(root); err != nil {
		return err
	}

	hash, err := hasher.HashDerivationModulo(root, cfg.Store, hasher.Memo{})
	if err != nil {
		return err
	}

	fmt.Println(hash)
	return nil
}
