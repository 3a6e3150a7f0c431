// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/crucible-build/crucible/derivation"
	"github.com/crucible-build/crucible/hasher"
	"github.com/crucible-build/crucible/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatal(err)
	}
	d := &derivation.Input{Name: "hello", Builder: "/bin/sh", Args: []string{"-c", "true"}}
	if _, err := hasher.Instantiate(s, d, hasher.InstantiateMemo{}); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewModelListsStoreEntriesSorted(t *testing.T) {
	s := testStore(t)
	m, err := newModel(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.entries) == 0 {
		t.Fatal("expected at least one store entry")
	}
	for i := 1; i < len(m.entries); i++ {
		if m.entries[i-1] > m.entries[i] {
			t.Errorf("entries not sorted: %q before %q", m.entries[i-1], m.entries[i])
		}
	}
}

func TestCursorMovesWithinBounds(t *testing.T) {
	s := testStore(t)
	m, err := newModel(s)
	if err != nil {
		t.Fatal(err)
	}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = updated.(*model)
	if len(m.entries) > 1 && m.cursor != 1 {
		t.Errorf("cursor = %d, want 1 after moving down", m.cursor)
	}

	for i := 0; i < len(m.entries)+5; i++ {
		updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
		m = updated.(*model)
	}
	if m.cursor != len(m.entries)-1 {
		t.Errorf("cursor = %d, want clamped to %d", m.cursor, len(m.entries)-1)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	m = updated.(*model)
	if m.cursor != len(m.entries)-2 && len(m.entries) > 1 {
		t.Errorf("cursor = %d, want %d after moving up", m.cursor, len(m.entries)-2)
	}
}

func TestQuitKeyReturnsQuitCommand(t *testing.T) {
	s := testStore(t)
	m, err := newModel(s)
	if err != nil {
		t.Fatal(err)
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("expected a non-nil command for the quit key")
	}
	msg := cmd()
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("expected tea.QuitMsg, got %T", msg)
	}
}

func TestRenderDetailShowsDrvJSONForDrvEntries(t *testing.T) {
	s := testStore(t)
	m, err := newModel(s)
	if err != nil {
		t.Fatal(err)
	}

	var drvName string
	for _, e := range m.entries {
		if strings.HasSuffix(e, ".drv") {
			drvName = e
			break
		}
	}
	if drvName == "" {
		t.Fatal("expected at least one .drv entry in the store")
	}

	detail := m.renderDetail(drvName)
	if !strings.Contains(detail, "builder") {
		t.Errorf("expected rendered detail to mention the builder field, got: %s", detail)
	}
}

func TestRenderDetailNotesNonDrvEntries(t *testing.T) {
	s := testStore(t)
	srcPath := filepath.Join(t.TempDir(), "greeting.txt")
	if err := os.WriteFile(srcPath, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddSource(srcPath, "greeting"); err != nil {
		t.Fatal(err)
	}
	m, err := newModel(s)
	if err != nil {
		t.Fatal(err)
	}

	var outName string
	for _, e := range m.entries {
		if !strings.HasSuffix(e, ".drv") {
			outName = e
			break
		}
	}
	if outName == "" {
		t.Fatal("expected at least one non-.drv entry in the store")
	}

	detail := m.renderDetail(outName)
	if !strings.Contains(detail, "not a derivation file") {
		t.Errorf("expected a non-derivation note, got: %s", detail)
	}
}
