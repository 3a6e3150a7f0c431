// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

// Package storepath computes content-addressed store paths from a
// type tag, an inner SHA-256 digest, a store directory, and a name
// (spec §4.2). It also implements the fixed-output variant, which
// derives its inner digest from a declared content hash rather than
// from a derivation-modulo hash.
package storepath

import (
	"fmt"
	"strings"

	"github.com/crucible-build/crucible/hashutil"
)

// OutputHashMode selects how a fixed-output derivation's content hash
// is interpreted.
type OutputHashMode string

const (
	// Flat mode hashes the output's raw bytes directly (a single
	// file).
	Flat OutputHashMode = "flat"
	// Recursive mode hashes a serialized form of an output directory
	// tree (see spec §9 E6; crucible resolves this via the tar-based
	// tree hash in package recursivehash).
	Recursive OutputHashMode = "recursive"
)

// Compute builds a store path: storeDir + "/" + nix32(digest20) + "-" + name,
// where digest20 is the first 20 bytes of SHA-256 over the fingerprint
// string "type:sha256:innerDigest:storeDir:name".
//
// innerDigest must be 64 lowercase hex characters (a SHA-256 digest in
// text form). name must not contain '/' or NUL — callers are expected
// to have validated this already (see derivation.Validate);
// Compute does not re-validate it so it can also be used internally
// with names like "foo.drv" that carry a conventional suffix.
func Compute(typeTag, innerDigest, storeDir, name string) string {
	fingerprint := typeTag + ":sha256:" + innerDigest + ":" + storeDir + ":" + name
	digest := hashutil.SHA256([]byte(fingerprint))
	digest20 := digest[:20]
	return storeDir + "/" + hashutil.Nix32(digest20) + "-" + name
}

// FixedOutput computes the store path for a fixed-output derivation
// given its declared content hash (64-hex SHA-256), hash mode, store
// directory, and name (spec §4.2 "Fixed-output variant").
func FixedOutput(contentHashHex string, mode OutputHashMode, storeDir, name string) (string, error) {
	if len(contentHashHex) != 64 {
		return "", fmt.Errorf("fixed-output content hash must be 64 hex characters, got %d", len(contentHashHex))
	}

	var fingerprint strings.Builder
	fingerprint.WriteString("fixed:out:")
	if mode == Recursive {
		fingerprint.WriteString("r:")
	}
	fingerprint.WriteString("sha256:")
	fingerprint.WriteString(contentHashHex)
	fingerprint.WriteString(":")

	innerDigest := hashutil.SHA256Hex([]byte(fingerprint.String()))
	return Compute("output:out", innerDigest, storeDir, name), nil
}

// DrvPath returns the conventional derivation-file path for a given
// plain output path: the output path with ".drv" appended (spec §3,
// "Derivation-file path").
func DrvPath(outputPath string) string {
	return outputPath + ".drv"
}
