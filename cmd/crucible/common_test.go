// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// captureStdout captures stdout output during fn execution.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	original := os.Stdout
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = writer

	fn()

	writer.Close()
	os.Stdout = original

	var buffer bytes.Buffer
	io.Copy(&buffer, reader)
	reader.Close()

	return buffer.String()
}

// writeConfig writes a minimal crucible.yaml pointing at a fresh store
// and cache under dir, and returns its path.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	cfgPath := filepath.Join(dir, "crucible.yaml")
	contents := "store: " + filepath.Join(dir, "store") + "\n" +
		"cache: " + filepath.Join(dir, "cache") + "\n" +
		"sandbox:\n  kind: none\n"
	if err := os.WriteFile(cfgPath, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

// writeRecipe writes a single-derivation recipe file to dir and
// returns its path.
func writeRecipe(t *testing.T, dir, name string) string {
	t.Helper()
	recipePath := filepath.Join(dir, name+".crucible.jsonc")
	contents := `{
  // a trivial no-op derivation, just enough to exercise the CLI
  "derivations": {
    "hello": {
      "builder": "/bin/true",
    },
  },
  "root": "hello",
}
`
	if err := os.WriteFile(recipePath, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return recipePath
}

func TestIsDrvPath(t *testing.T) {
	cases := map[string]bool{
		"foo.drv":            true,
		"/a/b/c.drv":         true,
		"foo.crucible.jsonc": false,
		"foo":                false,
		"":                   false,
	}
	for arg, want := range cases {
		if got := isDrvPath(arg); got != want {
			t.Errorf("isDrvPath(%q) = %v, want %v", arg, got, want)
		}
	}
}

func TestRequireArg(t *testing.T) {
	if _, err := requireArg(nil, "a thing"); err == nil {
		t.Error("expected an error for no args")
	}
	got, err := requireArg([]string{"first", "second"}, "a thing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "first" {
		t.Errorf("requireArg = %q, want %q", got, "first")
	}
}

func TestLoadConfigExplicitPath(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Store != filepath.Join(dir, "store") {
		t.Errorf("Store = %q, want %q", cfg.Store, filepath.Join(dir, "store"))
	}
}

func TestLoadConfigMissingEnvAndFlag(t *testing.T) {
	t.Setenv("CRUCIBLE_CONFIG", "")
	if _, err := loadConfig(""); err == nil {
		t.Error("expected an error when neither --config nor CRUCIBLE_CONFIG is set")
	}
}

func TestOpenStoreRejectsMissingStorePath(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	cfg.Store = ""

	if _, err := openStore(cfg); err == nil {
		t.Error("expected openStore to reject a config with an empty store path")
	}
}

func TestLoadRecipe(t *testing.T) {
	dir := t.TempDir()
	recipePath := writeRecipe(t, dir, "hello")

	root, err := loadRecipe(recipePath)
	if err != nil {
		t.Fatalf("loadRecipe: %v", err)
	}
	if root.Name != "hello" {
		t.Errorf("root.Name = %q, want %q", root.Name, "hello")
	}
	if root.Builder != "/bin/true" {
		t.Errorf("root.Builder = %q, want %q", root.Builder, "/bin/true")
	}
}
