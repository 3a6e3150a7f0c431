// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package hashutil

// nix32Alphabet is the 32-symbol alphabet used by the Nix32 encoding.
// The letters e, o, u, t are omitted (chosen historically to avoid
// accidentally spelling words and to avoid visual confusion with 0/1).
const nix32Alphabet = "0123456789abcdfghijklmnpqrsvwxyz"

// Nix32Length returns the encoded length in characters for a digest of
// byteLength bytes: ceil(8*byteLength / 5).
func Nix32Length(byteLength int) int {
	return (byteLength*8 + 4) / 5
}

// Nix32 encodes a byte buffer using the Nix32 base-32 encoding (see
// spec §4.1). For a 20-byte input (the truncated-SHA-256 path digest
// case) this produces a 32-character string.
//
// The algorithm reads the input least-significant-byte-first (as if
// the buffer were reversed) and packs 5-bit groups from the
// bottom of the output upward, mirroring Nix's own big-integer-style
// base32 encoder.
func Nix32(data []byte) string {
	length := len(data)
	outputLength := Nix32Length(length)
	result := make([]byte, outputLength)

	for n := 0; n < outputLength; n++ {
		b := 5 * n
		i := b / 8
		j := b % 8

		c := (data[length-1-i] >> uint(j)) & 0x1F
		if i+1 < length && j > 3 {
			c |= (data[length-1-(i+1)] << uint(8-j)) & 0x1F
		}

		result[outputLength-1-n] = nix32Alphabet[c]
	}

	return string(result)
}
