// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox executes a derivation's builder in isolation: a
// bubblewrap-backed container mounting the store read-only and the
// output directory read-write, or a direct backend for hosts without
// bubblewrap available. It is the only package in crucible permitted
// to spawn external processes (spec §4.5).
package sandbox
