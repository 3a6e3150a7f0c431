// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/crucible-build/crucible/derivation"
	"github.com/crucible-build/crucible/hasher"
)

// graphCmd implements "crucible graph": prints a recipe's
// topologically sorted build order and the number of its transitive
// dependencies, useful for audit (spec §4.4 describes getAllDeps as
// "useful for audit and testing").
func graphCmd(args []string) error {
	fs := pflag.NewFlagSet("graph", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Print(`crucible graph - print a recipe's dependency graph and build order

USAGE
    crucible graph <recipe.crucible.jsonc>
`)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	recipePath, err := requireArg(fs.Args(), "a recipe path")
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

	order, err := hasher.TopoSort([]*derivation.Input{root})
	if err != nil {
		return err
	}

	fmt.Println("build order:")
	for i, n := range order {
		marker := " "
		if n == root {
			marker = "*"
		}
		fmt.Printf("  %2d. %s %s\n", i+1, marker, n.Name)
	}

	deps := hasher.GetAllDeps(root)
	fmt.Printf("\n%d transitive dependencies of %q\n", len(deps), root.Name)
	return nil
}
