// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache maintains a local index of realized derivations,
// keyed by a domain-separated BLAKE3 fingerprint of the derivation's
// hash and store directory. It is a non-core convenience: realize
// already short-circuits on store.Has(outPath), and the cache never
// influences the derivation-modulo hash itself (spec invariants I4,
// P4 — core hashing stays on SHA-256, never BLAKE3).
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/crucible-build/crucible/errs"
)

// encMode encodes cache entries with CBOR Core Deterministic Encoding
// (RFC 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Byte-stable encoding isn't load-bearing
// here the way it is for the core hash's serialization, but an entry
// re-encoded after a round trip should still produce identical bytes.
var encMode cbor.EncMode

func init() {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}
	encMode = mode
}

// realizeDomainKey domain-separates the cache's fingerprint from any
// other use of BLAKE3 keyed hashing a future caller might add; the
// bytes are the ASCII name of the domain, zero-padded to 32.
var realizeDomainKey = [32]byte{
	'c', 'r', 'u', 'c', 'i', 'b', 'l', 'e', '.', 'c', 'a', 'c', 'h', 'e', '.',
	'r', 'e', 'a', 'l', 'i', 'z', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Entry is a single realize-cache record: the output path a
// derivation-modulo hash resolved to, and whether that realization
// ultimately succeeded.
type Entry struct {
	DrvHash string `cbor:"drvHash"`
	OutPath string `cbor:"outPath"`
	Success bool   `cbor:"success"`
}

// Cache is a flat directory of CBOR-encoded Entry files, one per
// fingerprint, named by its hex digest — mirroring the store's own
// flat, content-addressed layout rather than introducing a second
// persistence engine (see DESIGN.md for why this is not backed by
// an embedded database).
type Cache struct {
	dir string
}

// Open binds a Cache to dir, creating it (mode 0o755) if absent.
func Open(dir string) (*Cache, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving cache directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, &errs.IoError{Path: absDir, Err: err}
	}
	return &Cache{dir: absDir}, nil
}

// Fingerprint computes the cache key for a (drvHash, storeDir) pair:
// a domain-separated BLAKE3 keyed hash, hex-encoded.
func Fingerprint(drvHash, storeDir string) string {
	hasher, err := blake3.NewKeyed(realizeDomainKey[:])
	if err != nil {
		panic("cache: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(drvHash))
	hasher.Write([]byte{0})
	hasher.Write([]byte(storeDir))
	sum := hasher.Sum(nil)
	return fmt.Sprintf("%x", sum)
}

// Lookup returns the cached Entry for fingerprint, and whether one
// was found.
func (c *Cache) Lookup(fingerprint string) (Entry, bool) {
	data, err := os.ReadFile(c.path(fingerprint))
	if err != nil {
		return Entry{}, false
	}
	var entry Entry
	if err := cbor.Unmarshal(data, &entry); err != nil {
		return Entry{}, false
	}
	return entry, true
}

// Record writes entry under fingerprint. Unlike the store, cache
// entries may be overwritten — a derivation's realization outcome
// can legitimately change (e.g. retried after a transient failure).
func (c *Cache) Record(fingerprint string, entry Entry) error {
	data, err := encMode.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := os.WriteFile(c.path(fingerprint), data, 0o644); err != nil {
		return &errs.IoError{Path: c.path(fingerprint), Err: err}
	}
	return nil
}

func (c *Cache) path(fingerprint string) string {
	return filepath.Join(c.dir, fingerprint+".cbor")
}
