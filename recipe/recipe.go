// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

// Package recipe parses .crucible.jsonc files — JSON extended with
// comments and trailing commas — into a graph of *derivation.Input
// values the rest of crucible operates on.
//
// A recipe file describes a named set of derivations and which one is
// the build's root:
//
//	{
//	  "derivations": {
//	    "libfoo": {
//	      "builder": "/bin/sh",
//	      "args": ["build-libfoo.sh"],
//	    },
//	    "hello": {
//	      "builder": "/bin/sh",
//	      "args": ["build-hello.sh"],
//	      "inputs": ["libfoo"],
//	    },
//	  },
//	  "root": "hello",
//	}
//
// Inputs reference sibling derivations by name; recipe resolves those
// names into the *derivation.Input pointers the hasher and realizer
// require for identity (spec §9 E2).
package recipe

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/crucible-build/crucible/derivation"
	"github.com/crucible-build/crucible/storepath"
)

// Document is the top-level shape of a .crucible.jsonc file.
type Document struct {
	Derivations map[string]*Definition `json:"derivations"`
	Root        string                 `json:"root"`
}

// Definition is a single derivation as authored in a recipe file,
// before its Inputs (named by string) are resolved to *derivation.Input
// pointers.
type Definition struct {
	Builder        string            `json:"builder"`
	Args           []string          `json:"args"`
	Env            map[string]string `json:"env"`
	System         string            `json:"system"`
	Inputs         []string          `json:"inputs"`
	SrcPath        string            `json:"srcPath"`
	OutputHash     string            `json:"outputHash"`
	OutputHashAlgo string            `json:"outputHashAlgo"`
	OutputHashMode string            `json:"outputHashMode"`
}

// ReadFile reads and parses a .crucible.jsonc file at path, returning
// the named derivation graph and the root the caller asked to build.
func ReadFile(path string) (graph map[string]*derivation.Input, root *derivation.Input, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return Resolve(doc)
}

// Parse strips JSONC comments and trailing commas from data and
// unmarshals the result into a Document.
func Parse(data []byte) (*Document, error) {
	stripped := jsonc.ToJSON(data)

	var doc Document
	if err := json.Unmarshal(stripped, &doc); err != nil {
		return nil, fmt.Errorf("parsing recipe: %w", err)
	}
	return &doc, nil
}

// Resolve builds the *derivation.Input graph named by doc, linking
// each Definition's string-named Inputs to the corresponding
// *derivation.Input pointer.
//
// Derivations are constructed in two passes so that forward
// references (a derivation named earlier in the map referring to one
// defined later) resolve correctly regardless of map iteration order:
// first every named derivation gets an empty *Input allocated (so its
// pointer identity exists), then each one's fields and Inputs are
// filled in.
func Resolve(doc *Document) (graph map[string]*derivation.Input, root *derivation.Input, err error) {
	graph = make(map[string]*derivation.Input, len(doc.Derivations))
	for name := range doc.Derivations {
		graph[name] = &derivation.Input{Name: name}
	}

	for name, def := range doc.Derivations {
		in := graph[name]
		in.Builder = def.Builder
		in.Args = def.Args
		in.Env = def.Env
		in.System = def.System
		in.OutputHash = def.OutputHash
		in.OutputHashAlgo = def.OutputHashAlgo
		in.OutputHashMode = storepath.OutputHashMode(def.OutputHashMode)

		if def.SrcPath != "" {
			in.Src = &derivation.Source{Kind: derivation.SourcePath, Path: def.SrcPath}
		}

		in.Inputs = make([]*derivation.Input, 0, len(def.Inputs))
		for _, depName := range def.Inputs {
			dep, ok := graph[depName]
			if !ok {
				return nil, nil, fmt.Errorf("derivation %q: undefined input %q", name, depName)
			}
			in.Inputs = append(in.Inputs, dep)
		}
	}

	if doc.Root == "" {
		return nil, nil, fmt.Errorf("recipe has no \"root\" derivation named")
	}
	root, ok := graph[doc.Root]
	if !ok {
		return nil, nil, fmt.Errorf("root derivation %q is not defined", doc.Root)
	}

	return graph, root, nil
}
