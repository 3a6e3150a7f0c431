// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/crucible-build/crucible/hasher"
)

// instantiateCmd implements "crucible instantiate".
func instantiateCmd(args []string) error {
	fs := pflag.NewFlagSet("instantiate", pflag.ContinueOnError)
	configFlag := addConfigFlag(fs)
	fs.Usage = func() {
		fmt.Print(`crucible instantiate - resolve a recipe into a .drv without building it

USAGE
    crucible instantiate [flags] <recipe.crucible.jsonc>

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
	s, err := openStore(cfg)
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

	result, err := hasher.Instantiate(s, root, hasher.InstantiateMemo{})
	if err != nil {
		return err
	}

	fmt.Println(result.DrvPath)
	return nil
}
