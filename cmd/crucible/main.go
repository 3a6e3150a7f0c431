// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

// crucible builds content-addressed derivations: it instantiates
// recipes into .drv files, realizes them by running their builders in
// a sandbox, and inspects the resulting store.
//
// Usage:
//
//	crucible instantiate <recipe.crucible.jsonc>
//	crucible realize <recipe.crucible.jsonc | drv-path>
//	crucible hash <recipe.crucible.jsonc>
//	crucible graph <recipe.crucible.jsonc>
//	crucible store list
//	crucible store watch
//	crucible version
package main

import (
	"fmt"
	"os"

	"github.com/crucible-build/crucible/errs"
	"github.com/crucible-build/crucible/process"
	"github.com/crucible-build/crucible/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "instantiate":
		err = instantiateCmd(args)
	case "realize", "build":
		err = realizeCmd(args)
	case "hash":
		err = hashCmd(args)
	case "graph":
		err = graphCmd(args)
	case "store":
		err = storeCmd(args)
	case "version", "--version", "-v":
		fmt.Println(version.Full())
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if code, ok := errs.IsBuildFailedError(err); ok {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			process.ExitCode(code)
		}
		process.Fatal(err)
	}
}

func printUsage() {
	fmt.Print(`crucible - build content-addressed derivations

USAGE
    crucible <command> [flags]

COMMANDS
    instantiate   Resolve a recipe into a .drv without building it
    realize       Instantiate (if needed) and build a recipe or .drv
    hash          Print a recipe's derivation-modulo hash
    graph         Print a recipe's dependency graph and build order
    store list    List the store's top-level entries
    store watch   Tail newly-registered store entries
    version       Show version information

ENVIRONMENT
    CRUCIBLE_CONFIG   Path to the crucible.yaml configuration file

For more information, run "crucible <command> --help".
`)
}
