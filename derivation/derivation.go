// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

// Package derivation defines crucible's core data model: the input
// form a caller constructs in memory (Input), the Source a derivation
// may draw on, and the stored form persisted as a .drv file (DrvFile).
//
// Input's identity is its pointer — two *Input values with identical
// fields are still distinct derivations unless they are the same
// pointer (spec §9 E2). Callers build a derivation graph by
// constructing Inputs and referencing other Inputs by pointer in the
// Inputs field; the hasher and instantiator use pointer identity as
// their memoization key, which gives diamond-shaped graphs (the same
// dependency reached through two paths) the collapsing behavior spec
// §8 P3/scenario 3 requires.
package derivation

import (
	"strings"

	"github.com/crucible-build/crucible/errs"
	"github.com/crucible-build/crucible/storepath"
)

// SourceKind distinguishes the two forms a Source may take.
type SourceKind int

const (
	// SourcePath is a local filesystem path to be hashed into the
	// store.
	SourcePath SourceKind = iota
	// SourceFixedRef is a declared content fingerprint standing in for
	// material that is not hashed by crucible itself (e.g. content
	// already identified by a fixed-output derivation elsewhere).
	SourceFixedRef
)

// Source describes material a derivation draws on outside of its
// declared inputs.
type Source struct {
	Kind SourceKind
	// Path is the local filesystem path, valid when Kind == SourcePath.
	Path string
	// FixedHash is the declared content fingerprint, valid when
	// Kind == SourceFixedRef.
	FixedHash string
}

// Input is a derivation as constructed by a caller: a name, a
// builder, its arguments and environment, its inputs (by pointer,
// logically a set), optional source material, and an optional
// fixed-output triple.
//
// An Input must not be mutated after it has been passed to
// hasher.HashDerivationModulo or hasher.Instantiate — doing so
// invalidates any cached hash keyed on its pointer (spec §9 E3).
// Treat a constructed Input as read-only.
type Input struct {
	Name    string
	Builder string
	Args    []string
	Env     map[string]string
	System  string // optional; defaults to the host system tag at hash time
	Inputs  []*Input
	Src     *Source

	// Fixed-output triple. OutputHashAlgo must be "sha256" when set.
	// Presence of OutputHash marks this Input as fixed-output (spec
	// §3, §4.4 step 2).
	OutputHash     string
	OutputHashAlgo string
	OutputHashMode storepath.OutputHashMode
}

// IsFixedOutput reports whether this Input declares a fixed output
// hash (spec §3, §4.4 step 2).
func (in *Input) IsFixedOutput() bool {
	return in.OutputHash != ""
}

// EffectiveOutputHashMode returns in.OutputHashMode, defaulting to
// Flat when unset (spec §4.4 step 2: "M = drv.outputHashMode ?? flat").
func (in *Input) EffectiveOutputHashMode() storepath.OutputHashMode {
	if in.OutputHashMode == "" {
		return storepath.Flat
	}
	return in.OutputHashMode
}

// Validate checks the structural requirements spec §4.4 step 1 places
// on an Input before instantiation: a non-empty name with no '/' or
// NUL, a non-empty builder, and (for fixed-output derivations) a
// supported output hash algorithm.
func Validate(in *Input) error {
	if in.Name == "" {
		return &errs.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if strings.ContainsRune(in.Name, '/') {
		return &errs.ValidationError{Field: "name", Reason: "must not contain '/'"}
	}
	if strings.ContainsRune(in.Name, 0) {
		return &errs.ValidationError{Field: "name", Reason: "must not contain NUL"}
	}
	if in.Builder == "" {
		return &errs.ValidationError{Field: "builder", Reason: "must not be empty"}
	}
	if in.IsFixedOutput() && in.OutputHashAlgo != "sha256" {
		return &errs.ValidationError{Field: "outputHashAlgo", Reason: "only \"sha256\" is supported"}
	}
	return nil
}

// Outputs holds the output descriptors of a stored DrvFile. crucible
// only ever has a single output, named "out" (spec §3; multi-output
// derivations are an explicit Non-goal).
type Outputs struct {
	Out OutputDescriptor `json:"out"`
}

// OutputDescriptor describes a single output's store path.
type OutputDescriptor struct {
	Path string `json:"path"`
}

// DrvFile is the resolved, post-instantiation record persisted as
// JSON in the store (spec §3 "Derivation file (stored form)").
//
// FixedOutput, OutputHash, and OutputHashMode are not named by the
// spec's literal field list but are carried through instantiation
// anyway: the realizer needs to know whether a derivation is
// fixed-output to apply the "network always allowed" rule (spec §4.5
// step 4) and, for the flat- and recursive-mode content verification
// this implementation adds beyond the core spec (§9 E6), the declared
// hash and mode to verify the build result against. That information is
// otherwise lost once outputHash has been folded into the output path
// at instantiation time.
type DrvFile struct {
	Outputs        Outputs             `json:"outputs"`
	InputDrvs      map[string][]string `json:"inputDrvs"`
	InputSrcs      []string            `json:"inputSrcs"`
	System         string              `json:"system"`
	Builder        string              `json:"builder"`
	Args           []string            `json:"args"`
	Env            map[string]string   `json:"env"`
	FixedOutput    bool                `json:"fixedOutput,omitempty"`
	OutputHash     string              `json:"outputHashDeclared,omitempty"`
	OutputHashMode string              `json:"outputHashMode,omitempty"`
}
