// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package recipe

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseStripsCommentsAndTrailingCommas(t *testing.T) {
	data := []byte(`{
		// a comment
		"derivations": {
			"hello": {
				"builder": "/bin/sh",
				"args": ["-c", "true"],
			},
		},
		"root": "hello",
	}`)

	doc, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Root != "hello" {
		t.Errorf("Root = %q", doc.Root)
	}
	if _, ok := doc.Derivations["hello"]; !ok {
		t.Fatal("expected \"hello\" derivation")
	}
}

func TestResolveLinksInputsByPointer(t *testing.T) {
	doc := &Document{
		Derivations: map[string]*Definition{
			"leaf": {Builder: "/bin/sh", Args: []string{"-c", "true"}},
			"top":  {Builder: "/bin/sh", Args: []string{"-c", "true"}, Inputs: []string{"leaf"}},
		},
		Root: "top",
	}

	graph, root, err := Resolve(doc)
	if err != nil {
		t.Fatal(err)
	}
	if root != graph["top"] {
		t.Error("root should be the same pointer as graph[\"top\"]")
	}
	if len(root.Inputs) != 1 || root.Inputs[0] != graph["leaf"] {
		t.Error("top's single input should be the same pointer as graph[\"leaf\"]")
	}
}

func TestResolveRejectsUndefinedInput(t *testing.T) {
	doc := &Document{
		Derivations: map[string]*Definition{
			"top": {Builder: "/bin/sh", Inputs: []string{"nonexistent"}},
		},
		Root: "top",
	}

	_, _, err := Resolve(doc)
	if err == nil {
		t.Fatal("expected an error for an undefined input reference")
	}
}

func TestResolveRejectsMissingRoot(t *testing.T) {
	doc := &Document{
		Derivations: map[string]*Definition{
			"top": {Builder: "/bin/sh"},
		},
		Root: "nonexistent",
	}

	_, _, err := Resolve(doc)
	if err == nil {
		t.Fatal("expected an error for an undefined root")
	}
}

func TestResolveHandlesForwardReferences(t *testing.T) {
	// "first" (in map iteration this may be visited before "second" is
	// fully populated) depends on "second", authored after it.
	doc := &Document{
		Derivations: map[string]*Definition{
			"first":  {Builder: "/bin/sh", Inputs: []string{"second"}},
			"second": {Builder: "/bin/sh"},
		},
		Root: "first",
	}

	graph, root, err := Resolve(doc)
	if err != nil {
		t.Fatal(err)
	}
	if root.Inputs[0] != graph["second"] {
		t.Error("forward reference did not resolve to the correct pointer")
	}
}

func TestReadFileParsesAndResolves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.crucible.jsonc")
	content := `{
		"derivations": {
			"hello": {
				"builder": "/bin/sh",
				"args": ["-c", "echo hi"],
			},
		},
		"root": "hello",
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	graph, root, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if root != graph["hello"] {
		t.Error("root should match the named derivation")
	}
	if root.Builder != "/bin/sh" {
		t.Errorf("Builder = %q", root.Builder)
	}
}

func TestResolveCarriesSrcPathAndFixedOutputFields(t *testing.T) {
	doc := &Document{
		Derivations: map[string]*Definition{
			"fixed": {
				Builder:        "/bin/sh",
				SrcPath:        "./fetch.sh",
				OutputHash:     "abc123",
				OutputHashAlgo: "sha256",
				OutputHashMode: "recursive",
			},
		},
		Root: "fixed",
	}

	_, root, err := Resolve(doc)
	if err != nil {
		t.Fatal(err)
	}
	if root.Src == nil || root.Src.Path != "./fetch.sh" {
		t.Errorf("Src = %+v", root.Src)
	}
	if !root.IsFixedOutput() {
		t.Error("expected IsFixedOutput() to be true")
	}
	if root.EffectiveOutputHashMode() != "recursive" {
		t.Errorf("EffectiveOutputHashMode() = %q", root.EffectiveOutputHashMode())
	}
}
