// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

// Package store implements crucible's content-addressed store: an
// immutable on-disk directory supporting membership tests, atomic
// writes, read-only permission enforcement, and typed reads of
// derivation files (spec §4.3).
//
// Source files and derivation files are written to a uniquely named
// temporary file inside the store, made read-only, then renamed
// atomically into place; build outputs staged in a scratch directory
// are locked down and renamed the same way. A final path that already
// exists is left untouched and the temporary copy is discarded — the
// first writer wins, and collisions are benign because content is
// identical by construction (spec invariant I4). An output that the
// direct backend built in place at its final path is only made
// read-only; no temporary copy or rename is involved.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/crucible-build/crucible/derivation"
	"github.com/crucible-build/crucible/errs"
	"github.com/crucible-build/crucible/hashutil"
	"github.com/crucible-build/crucible/storepath"
)

// Store is bound to a single directory on disk.
type Store struct {
	dir string
}

// Open binds a Store to dir, creating it (mode 0o755) if absent.
func Open(dir string) (*Store, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving store directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, &errs.IoError{Path: absDir, Err: err}
	}
	return &Store{dir: absDir}, nil
}

// Dir returns the store's absolute root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Has reports whether path exists on disk.
func (s *Store) Has(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// List returns the entries immediately under the store directory.
// No ordering is guaranteed. Transient "*.tmp-*" scratch directories
// are excluded.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &errs.IoError{Path: s.dir, Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if isScratchName(name) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Read returns the raw bytes of a file entry at path.
func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.IoError{Path: path, Err: err}
	}
	return data, nil
}

// ReadDrv reads and JSON-decodes the derivation file at path.
func (s *Store) ReadDrv(path string) (*derivation.DrvFile, error) {
	data, err := s.Read(path)
	if err != nil {
		return nil, err
	}
	var drvFile derivation.DrvFile
	if err := json.Unmarshal(data, &drvFile); err != nil {
		return nil, fmt.Errorf("decoding derivation file %s: %w", path, err)
	}
	return &drvFile, nil
}

// AddSource computes a content hash of the file at localPath, derives
// a source store path (type "source"), and — if not already
// present — atomically writes the file's bytes there. name defaults
// to the local basename. Returns the store path.
func (s *Store) AddSource(localPath, name string) (string, error) {
	if name == "" {
		name = filepath.Base(localPath)
	}

	content, err := os.ReadFile(localPath)
	if err != nil {
		return "", &errs.IoError{Path: localPath, Err: err}
	}

	innerDigest := hashutil.SHA256Hex(content)
	path := storepath.Compute("source", innerDigest, s.dir, name)

	if s.Has(path) {
		return path, nil
	}

	if err := s.atomicWriteFile(path, content, 0o444); err != nil {
		return "", err
	}
	return path, nil
}

// AddDrv serializes drv as JSON and atomically installs it at path.
// A no-op if path already exists.
func (s *Store) AddDrv(path string, drv *derivation.DrvFile) error {
	if s.Has(path) {
		return nil
	}

	data, err := json.MarshalIndent(drv, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling derivation file: %w", err)
	}

	return s.atomicWriteFile(path, data, 0o444)
}

// RegisterOutput recursively applies read-only permissions to
// tempDir (files 0o444, directories 0o555), then renames it to
// finalPath. If finalPath already exists, tempDir is discarded
// instead — the first writer wins (spec invariant I4/I6).
//
// tempDir and finalPath may be the same path: the direct (no
// sandbox) backend builds directly at finalPath and calls
// RegisterOutput(outPath, outPath) purely to lock down permissions
// (spec §4.5 step 4). In that case there is nothing to discard or
// rename.
func (s *Store) RegisterOutput(tempDir, finalPath string) error {
	if tempDir == finalPath {
		return lockDownPermissions(tempDir)
	}

	if s.Has(finalPath) {
		return os.RemoveAll(tempDir)
	}

	if err := lockDownPermissions(tempDir); err != nil {
		os.RemoveAll(tempDir)
		return err
	}

	if err := os.Rename(tempDir, finalPath); err != nil {
		os.RemoveAll(tempDir)
		return &errs.IoError{Path: finalPath, Err: err}
	}
	return nil
}

// NewScratchDir creates a fresh, uniquely named temporary directory
// inside the store (on the same filesystem, so the later rename is
// atomic) and returns its path. Callers are responsible for removing
// it on any failure path that does not end in RegisterOutput.
func (s *Store) NewScratchDir() (string, error) {
	name := scratchPrefix + uuid.NewString()
	path := filepath.Join(s.dir, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", &errs.IoError{Path: path, Err: err}
	}
	return path, nil
}

const scratchPrefix = ".tmp-"

func isScratchName(name string) bool {
	return len(name) >= len(scratchPrefix) && name[:len(scratchPrefix)] == scratchPrefix
}

// atomicWriteFile writes data to a uniquely named temporary file
// inside the store, applies mode, and renames it atomically to path.
// If path already exists by the time the rename would happen, the
// temporary file is discarded and no error is returned (first writer
// wins, spec I4/I6). On any failure the temporary file is removed.
func (s *Store) atomicWriteFile(path string, data []byte, mode os.FileMode) error {
	tempPath := filepath.Join(s.dir, scratchPrefix+uuid.NewString())

	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := os.WriteFile(tempPath, data, mode); err != nil {
		return &errs.IoError{Path: tempPath, Err: err}
	}
	// os.WriteFile applies mode subject to umask; re-assert it so the
	// on-disk permission matches the immutability contract exactly.
	if err := os.Chmod(tempPath, mode); err != nil {
		return &errs.IoError{Path: tempPath, Err: err}
	}

	if s.Has(path) {
		success = true
		return nil
	}

	if err := os.Rename(tempPath, path); err != nil {
		return &errs.IoError{Path: path, Err: err}
	}
	success = true
	return nil
}

// lockDownPermissions recursively sets files to 0o444 and directories
// to 0o555 under root, enforcing store immutability (spec I5) before
// the final rename.
func lockDownPermissions(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return os.Chmod(path, 0o555)
		}
		return os.Chmod(path, 0o444)
	})
}
