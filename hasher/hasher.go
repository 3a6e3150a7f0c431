// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

// Package hasher implements crucible's derivation-modulo hash
// algorithm and the instantiation pipeline that recursively
// materializes a derivation graph into .drv files in the store
// (spec §4.4).
package hasher

import (
	"fmt"
	"runtime"

	"github.com/crucible-build/crucible/derivation"
	"github.com/crucible-build/crucible/errs"
	"github.com/crucible-build/crucible/hashutil"
	"github.com/crucible-build/crucible/store"
	"github.com/crucible-build/crucible/storepath"
)

// Memo is the per-call memoization map threaded through
// HashDerivationModulo, keyed on an Input's pointer identity (spec
// §9 E2) rather than its structural contents.
type Memo map[*derivation.Input]string

// HashDerivationModulo computes the derivation-modulo hash of drv
// (spec §4.4). Callers must run cycle detection (see DetectCycle)
// before calling this — memoization alone does not terminate on a
// self-referential graph (spec §9 E1).
func HashDerivationModulo(drv *derivation.Input, storeDir string, memo Memo) (string, error) {
	if hash, ok := memo[drv]; ok {
		return hash, nil
	}

	if drv.IsFixedOutput() {
		hash := fixedOutputHash(drv)
		memo[drv] = hash
		return hash, nil
	}

	inputsMap := make(hashutil.Map, len(drv.Inputs))
	for _, input := range drv.Inputs {
		inputHash, err := HashDerivationModulo(input, storeDir, memo)
		if err != nil {
			return "", err
		}
		inputsMap[inputHash] = hashutil.Seq{"out"}
	}

	record := hashutil.Map{
		"name":    drv.Name,
		"system":  effectiveSystem(drv.System),
		"builder": drv.Builder,
		"args":    argsSeq(drv.Args),
		"env":     envMap(drv.Env),
		"inputs":  inputsMap,
		"outputs": hashutil.Map{"out": ""},
		"src":     srcFingerprint(drv.Src),
	}

	data, err := hashutil.Serialize(record)
	if err != nil {
		return "", err
	}

	hash := hashutil.SHA256Hex(data)
	memo[drv] = hash
	return hash, nil
}

// fixedOutputHash computes the hash a fixed-output derivation's
// declared output hash reduces to (spec §4.4 step 2), independent of
// builder, args, env, or inputs (invariant I3).
func fixedOutputHash(drv *derivation.Input) string {
	mode := drv.EffectiveOutputHashMode()
	fingerprint := "fixed:out:"
	if mode == storepath.Recursive {
		fingerprint += "r:"
	}
	fingerprint += "sha256:" + drv.OutputHash + ":"
	return hashutil.SHA256Hex([]byte(fingerprint))
}

func effectiveSystem(system string) string {
	if system != "" {
		return system
	}
	return HostSystemTag()
}

// HostSystemTag maps the running Go runtime's GOOS/GOARCH to a
// Nix-style system tag. Only the pairs crucible is built and tested
// on are named explicitly; anything else falls back to a literal
// "<GOARCH>-<GOOS>" pairing.
func HostSystemTag() string {
	switch runtime.GOOS + "/" + runtime.GOARCH {
	case "linux/amd64":
		return "x86_64-linux"
	case "linux/arm64":
		return "aarch64-linux"
	case "darwin/amd64":
		return "x86_64-darwin"
	case "darwin/arm64":
		return "aarch64-darwin"
	default:
		return runtime.GOARCH + "-" + runtime.GOOS
	}
}

func argsSeq(args []string) hashutil.Seq {
	seq := make(hashutil.Seq, len(args))
	for i, a := range args {
		seq[i] = a
	}
	return seq
}

func envMap(env map[string]string) hashutil.Map {
	m := make(hashutil.Map, len(env))
	for k, v := range env {
		m[k] = v
	}
	return m
}

// srcFingerprint returns the value the hashable record's "src" key
// takes on: the local path string for a path source, the declared
// hash for a fixed reference, or hashutil.Absent when there is no
// source (spec §4.4 step 4).
func srcFingerprint(src *derivation.Source) any {
	if src == nil {
		return hashutil.Absent
	}
	switch src.Kind {
	case derivation.SourcePath:
		return src.Path
	case derivation.SourceFixedRef:
		return src.FixedHash
	default:
		return hashutil.Absent
	}
}

// Result is the outcome of instantiating a single Input: the paths
// of its derivation file and its (eventual) output.
type Result struct {
	DrvPath string
	OutPath string
}

// InstantiateMemo is the per-call memoization map threaded through
// Instantiate, distinct from a HashDerivationModulo Memo because it
// caches the richer Result rather than a bare hash.
type InstantiateMemo map[*derivation.Input]Result

// Instantiate materializes drv and its transitive inputs into s,
// depth-first, writing one .drv file per distinct Input (spec §4.4
// "instantiate"). Callers should run DetectCycle(drv) first; a cyclic
// graph passed directly to Instantiate will recurse until the Go
// runtime's stack is exhausted.
func Instantiate(s *store.Store, drv *derivation.Input, memo InstantiateMemo) (Result, error) {
	if result, ok := memo[drv]; ok {
		return result, nil
	}

	if err := derivation.Validate(drv); err != nil {
		return Result{}, err
	}

	inputResults := make([]Result, len(drv.Inputs))
	for i, input := range drv.Inputs {
		result, err := Instantiate(s, input, memo)
		if err != nil {
			return Result{}, err
		}
		inputResults[i] = result
	}

	drvHash, err := HashDerivationModulo(drv, s.Dir(), Memo{})
	if err != nil {
		return Result{}, err
	}

	system := effectiveSystem(drv.System)

	var outPath string
	if drv.IsFixedOutput() {
		outPath, err = storepath.FixedOutput(drv.OutputHash, drv.EffectiveOutputHashMode(), s.Dir(), drv.Name)
		if err != nil {
			return Result{}, err
		}
	} else {
		outPath = storepath.Compute("output:out", drvHash, s.Dir(), drv.Name)
	}
	drvPath := storepath.DrvPath(storepath.Compute("output:out", drvHash, s.Dir(), drv.Name))

	var inputSrcs []string

	if drv.Src != nil && drv.Src.Kind == derivation.SourcePath {
		srcPath, err := s.AddSource(drv.Src.Path, "")
		if err != nil {
			return Result{}, err
		}
		inputSrcs = append(inputSrcs, srcPath)
	}

	builder, builderSrcs, err := resolveBuilder(s, drv.Builder)
	if err != nil {
		return Result{}, err
	}
	inputSrcs = append(inputSrcs, builderSrcs...)

	inputDrvs := make(map[string][]string, len(inputResults))
	for _, r := range inputResults {
		inputDrvs[r.DrvPath] = []string{"out"}
	}

	env := buildEnv(drv, outPath, system, s.Dir(), inputResults)

	drvFile := &derivation.DrvFile{
		Outputs:     derivation.Outputs{Out: derivation.OutputDescriptor{Path: outPath}},
		InputDrvs:   inputDrvs,
		InputSrcs:   inputSrcs,
		System:      system,
		Builder:     builder,
		Args:        append([]string(nil), drv.Args...),
		Env:         env,
		FixedOutput: drv.IsFixedOutput(),
	}
	if drv.IsFixedOutput() {
		drvFile.OutputHash = drv.OutputHash
		drvFile.OutputHashMode = string(drv.EffectiveOutputHashMode())
	}

	if err := s.AddDrv(drvPath, drvFile); err != nil {
		return Result{}, err
	}

	result := Result{DrvPath: drvPath, OutPath: outPath}
	memo[drv] = result
	return result, nil
}

// resolveBuilder implements spec §4.4 step 8: a builder reference
// already under the store directory or already absolute is kept
// as-is; anything else is treated as a local file and added to the
// store, returning the paths that must be recorded in inputSrcs.
func resolveBuilder(s *store.Store, builder string) (string, []string, error) {
	if len(builder) >= len(s.Dir()) && builder[:len(s.Dir())] == s.Dir() {
		return builder, nil, nil
	}
	if len(builder) > 0 && builder[0] == '/' {
		return builder, nil, nil
	}
	path, err := s.AddSource(builder, "")
	if err != nil {
		return "", nil, err
	}
	return path, []string{path}, nil
}

// buildEnv overlays the standard bindings (spec §4.4 step 9) on top
// of the user-supplied environment.
func buildEnv(drv *derivation.Input, outPath, system, storeDir string, inputResults []Result) map[string]string {
	env := make(map[string]string, len(drv.Env)+len(inputResults)+6)
	for k, v := range drv.Env {
		env[k] = v
	}
	env["out"] = outPath
	env["name"] = drv.Name
	env["system"] = system
	env["PATH"] = "/path-not-set"
	env["HOME"] = "/homeless-shelter"
	env["NIX_STORE"] = storeDir
	for i, r := range inputResults {
		env[fmt.Sprintf("input%d", i)] = r.OutPath
	}
	return env
}

// DetectCycle walks the dependency graph rooted at drv using a
// recursion-path set distinct from any memoization map (spec §9 E1),
// and fails with *errs.CycleError carrying the offending path if a
// node is reached while still on the current recursion path.
func DetectCycle(drv *derivation.Input) error {
	onStack := make(map[*derivation.Input]bool)
	visited := make(map[*derivation.Input]bool)
	var path []string

	var walk func(n *derivation.Input) error
	walk = func(n *derivation.Input) error {
		if onStack[n] {
			cyclePath := append(append([]string(nil), path...), n.Name)
			return &errs.CycleError{Path: cyclePath}
		}
		if visited[n] {
			return nil
		}

		onStack[n] = true
		path = append(path, n.Name)
		for _, input := range n.Inputs {
			if err := walk(input); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		onStack[n] = false
		visited[n] = true
		return nil
	}

	return walk(drv)
}

// TopoSort returns the roots and their transitive inputs in an order
// where every input precedes its consumers, each distinct derivation
// appearing exactly once (spec §4.4 "topoSort"). It runs DetectCycle
// on each root before traversal.
func TopoSort(roots []*derivation.Input) ([]*derivation.Input, error) {
	for _, root := range roots {
		if err := DetectCycle(root); err != nil {
			return nil, err
		}
	}

	visited := make(map[*derivation.Input]bool)
	var order []*derivation.Input

	var walk func(n *derivation.Input)
	walk = func(n *derivation.Input) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, input := range n.Inputs {
			walk(input)
		}
		order = append(order, n)
	}

	for _, root := range roots {
		walk(root)
	}
	return order, nil
}

// GetAllDeps returns the set of transitively reachable inputs of
// drv, excluding drv itself (spec §4.4 "getAllDeps").
func GetAllDeps(drv *derivation.Input) map[*derivation.Input]struct{} {
	deps := make(map[*derivation.Input]struct{})

	var walk func(n *derivation.Input)
	walk = func(n *derivation.Input) {
		for _, input := range n.Inputs {
			if _, ok := deps[input]; ok {
				continue
			}
			deps[input] = struct{}{}
			walk(input)
		}
	}

	walk(drv)
	return deps
}
