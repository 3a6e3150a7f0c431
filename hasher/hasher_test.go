// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package hasher

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/crucible-build/crucible/derivation"
	"github.com/crucible-build/crucible/errs"
	"github.com/crucible-build/crucible/store"
)

func leaf(name string) *derivation.Input {
	return &derivation.Input{
		Name:    name,
		Builder: "/bin/sh",
		Args:    []string{"-c", "true"},
		System:  "x86_64-linux",
	}
}

func TestHashDerivationModuloDeterministic(t *testing.T) {
	d := leaf("hello")
	h1, err := HashDerivationModulo(d, "/crucible/store", Memo{})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashDerivationModulo(d, "/crucible/store", Memo{})
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("hash not deterministic: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64", len(h1))
	}
}

func TestHashDerivationModuloInputSensitivity(t *testing.T) {
	base := leaf("hello")
	baseHash, err := HashDerivationModulo(base, "/store", Memo{})
	if err != nil {
		t.Fatal(err)
	}

	variants := []*derivation.Input{
		{Name: "different", Builder: base.Builder, Args: base.Args, System: base.System},
		{Name: base.Name, Builder: "/bin/bash", Args: base.Args, System: base.System},
		{Name: base.Name, Builder: base.Builder, Args: []string{"-c", "false"}, System: base.System},
		{Name: base.Name, Builder: base.Builder, Args: base.Args, System: "aarch64-linux"},
		{Name: base.Name, Builder: base.Builder, Args: base.Args, System: base.System, Env: map[string]string{"X": "1"}},
	}

	for i, v := range variants {
		hash, err := HashDerivationModulo(v, "/store", Memo{})
		if err != nil {
			t.Fatal(err)
		}
		if hash == baseHash {
			t.Errorf("variant %d did not change the hash", i)
		}
	}
}

func TestHashDerivationModuloInputSetSemantics(t *testing.T) {
	// P3: permutation and duplication of inputs must not affect the hash.
	d := leaf("d")

	a1 := &derivation.Input{Name: "a", Builder: "/bin/sh", Inputs: []*derivation.Input{d, d}}
	a2 := &derivation.Input{Name: "a", Builder: "/bin/sh", Inputs: []*derivation.Input{d}}

	h1, err := HashDerivationModulo(a1, "/store", Memo{})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashDerivationModulo(a2, "/store", Memo{})
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("duplicate inputs changed the hash: %s vs %s", h1, h2)
	}
}

func TestHashDiamondCollapse(t *testing.T) {
	// Scenario 3: D leaf, B and C each depend on D, A depends on [B, C].
	d := leaf("d")
	b := &derivation.Input{Name: "b", Builder: "/bin/sh", Inputs: []*derivation.Input{d}}
	c := &derivation.Input{Name: "c", Builder: "/bin/sh", Inputs: []*derivation.Input{d}}
	a := &derivation.Input{Name: "a", Builder: "/bin/sh", Inputs: []*derivation.Input{b, c}}

	h1, err := HashDerivationModulo(a, "/store", Memo{})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashDerivationModulo(a, "/store", Memo{})
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("repeated hash of A differs: %s vs %s", h1, h2)
	}

	deps := GetAllDeps(a)
	if len(deps) != 3 {
		t.Errorf("GetAllDeps(A) size = %d, want 3", len(deps))
	}
}

func TestFixedOutputIsolation(t *testing.T) {
	// P4: two fixed-output derivations with the same declared hash but
	// different builders/args/env/inputs hash identically.
	sameHash := strings.Repeat("a", 64)

	d1 := &derivation.Input{
		Name: "source", Builder: "/bin/fetch-a", Args: []string{"url-a"},
		OutputHash: sameHash, OutputHashAlgo: "sha256",
	}
	d2 := &derivation.Input{
		Name: "source", Builder: "/bin/fetch-b", Args: []string{"url-b"}, Env: map[string]string{"X": "1"},
		OutputHash: sameHash, OutputHashAlgo: "sha256",
	}

	h1, err := HashDerivationModulo(d1, "/store", Memo{})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashDerivationModulo(d2, "/store", Memo{})
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("fixed-output hashes differ despite identical declared hash: %s vs %s", h1, h2)
	}
}

func TestDetectCycleAcyclic(t *testing.T) {
	d := leaf("d")
	b := &derivation.Input{Name: "b", Builder: "/bin/sh", Inputs: []*derivation.Input{d}}
	if err := DetectCycle(b); err != nil {
		t.Errorf("unexpected cycle error on acyclic graph: %v", err)
	}
}

func TestDetectCycleRejectsCycle(t *testing.T) {
	// Scenario 6: A -> B -> C -> A.
	a := &derivation.Input{Name: "A", Builder: "/bin/sh"}
	b := &derivation.Input{Name: "B", Builder: "/bin/sh"}
	c := &derivation.Input{Name: "C", Builder: "/bin/sh"}
	a.Inputs = []*derivation.Input{b}
	b.Inputs = []*derivation.Input{c}
	c.Inputs = []*derivation.Input{a}

	err := DetectCycle(a)
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	cycleErr, ok := err.(*errs.CycleError)
	if !ok {
		t.Fatalf("expected *errs.CycleError, got %T", err)
	}
	joined := strings.Join(cycleErr.Path, ",")
	for _, name := range []string{"A", "B", "C"} {
		if !strings.Contains(joined, name) {
			t.Errorf("cycle path %v missing %s", cycleErr.Path, name)
		}
	}
}

func TestTopoSortOrdering(t *testing.T) {
	// P8: every edge u -> v has index(v) < index(u).
	d := leaf("d")
	b := &derivation.Input{Name: "b", Builder: "/bin/sh", Inputs: []*derivation.Input{d}}
	c := &derivation.Input{Name: "c", Builder: "/bin/sh", Inputs: []*derivation.Input{d}}
	a := &derivation.Input{Name: "a", Builder: "/bin/sh", Inputs: []*derivation.Input{b, c}}

	order, err := TopoSort([]*derivation.Input{a})
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 4 {
		t.Fatalf("topo order length = %d, want 4", len(order))
	}

	index := make(map[*derivation.Input]int, len(order))
	for i, n := range order {
		index[n] = i
	}
	if index[d] >= index[b] || index[d] >= index[c] || index[b] >= index[a] || index[c] >= index[a] {
		t.Errorf("topo order violates dependency ordering: %v", order)
	}
}

func TestTopoSortRejectsCycle(t *testing.T) {
	a := &derivation.Input{Name: "A", Builder: "/bin/sh"}
	b := &derivation.Input{Name: "B", Builder: "/bin/sh"}
	a.Inputs = []*derivation.Input{b}
	b.Inputs = []*derivation.Input{a}

	_, err := TopoSort([]*derivation.Input{a})
	if _, ok := err.(*errs.CycleError); !ok {
		t.Fatalf("expected *errs.CycleError, got %v", err)
	}
}

func TestInstantiateDeepChainStability(t *testing.T) {
	// Scenario 5: leaf -> level-1 -> ... -> level-19 instantiates and
	// produces exactly 20 .drv entries in the store.
	s, err := store.Open(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatal(err)
	}

	var chain *derivation.Input
	for i := 0; i < 20; i++ {
		name := "leaf"
		var inputs []*derivation.Input
		if chain != nil {
			name = "level-" + strconv.Itoa(i-1)
			inputs = []*derivation.Input{chain}
		}
		chain = &derivation.Input{Name: name, Builder: "/bin/sh", Args: []string{"-c", "true"}, Inputs: inputs}
	}

	if _, err := Instantiate(s, chain, InstantiateMemo{}); err != nil {
		t.Fatal(err)
	}

	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	drvCount := 0
	for _, e := range entries {
		if strings.HasSuffix(e, ".drv") {
			drvCount++
		}
	}
	if drvCount != 20 {
		t.Errorf("store has %d .drv entries, want 20", drvCount)
	}
}

func TestInstantiateWritesStandardEnvBindings(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatal(err)
	}
	d := &derivation.Input{Name: "hello", Builder: "/bin/sh", Args: []string{"-c", "true"}}

	result, err := Instantiate(s, d, InstantiateMemo{})
	if err != nil {
		t.Fatal(err)
	}

	drvFile, err := s.ReadDrv(result.DrvPath)
	if err != nil {
		t.Fatal(err)
	}
	if drvFile.Env["out"] != result.OutPath {
		t.Errorf("env[out] = %q, want %q", drvFile.Env["out"], result.OutPath)
	}
	if drvFile.Env["PATH"] != "/path-not-set" {
		t.Errorf("env[PATH] = %q, want /path-not-set", drvFile.Env["PATH"])
	}
	if drvFile.Env["HOME"] != "/homeless-shelter" {
		t.Errorf("env[HOME] = %q, want /homeless-shelter", drvFile.Env["HOME"])
	}
	if drvFile.Env["NIX_STORE"] != s.Dir() {
		t.Errorf("env[NIX_STORE] = %q, want %q", drvFile.Env["NIX_STORE"], s.Dir())
	}
}

func TestInstantiateResolvesRelativeBuilderIntoStore(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	builderPath := filepath.Join(wd, "build.sh")
	if err := os.WriteFile(builderPath, []byte("#!/bin/sh\ntrue\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	defer os.Remove(builderPath)

	d := &derivation.Input{Name: "hello", Builder: "build.sh"}
	result, err := Instantiate(s, d, InstantiateMemo{})
	if err != nil {
		t.Fatal(err)
	}

	drvFile, err := s.ReadDrv(result.DrvPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(drvFile.Builder, s.Dir()) {
		t.Errorf("builder %q was not resolved into the store", drvFile.Builder)
	}
	if len(drvFile.InputSrcs) == 0 {
		t.Error("expected the resolved builder to be recorded in inputSrcs")
	}
}

func TestInstantiateKeepsAbsoluteBuilderAsIs(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatal(err)
	}
	d := &derivation.Input{Name: "hello", Builder: "/bin/sh", Args: []string{"-c", "true"}}
	result, err := Instantiate(s, d, InstantiateMemo{})
	if err != nil {
		t.Fatal(err)
	}
	drvFile, err := s.ReadDrv(result.DrvPath)
	if err != nil {
		t.Fatal(err)
	}
	if drvFile.Builder != "/bin/sh" {
		t.Errorf("builder = %q, want /bin/sh unchanged", drvFile.Builder)
	}
	if len(drvFile.InputSrcs) != 0 {
		t.Errorf("absolute builder should not be added to inputSrcs, got %v", drvFile.InputSrcs)
	}
}
