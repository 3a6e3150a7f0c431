// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package hashutil

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/crucible-build/crucible/errs"
)

// Absent marks a mapping entry that should be elided entirely rather
// than serialized as an explicit null. This is how hasher constructs
// the hashable record for a Derivation without an optional field
// (e.g. a regular derivation's src) while keeping the record's key set
// otherwise stable.
var Absent = absentMarker{}

type absentMarker struct{}

// Map is an ordered-by-key mapping value for Serialize. Keys are
// emitted in ascending lexicographic order by UTF-8 bytes regardless
// of Go's (randomized) map iteration order.
type Map map[string]any

// Seq is a sequence value for Serialize. Order is preserved as given.
type Seq []any

// Serialize deterministically encodes a JSON-shaped value (nil, bool,
// finite number, string, Seq, or Map, possibly nested) to bytes
// suitable as a SHA-256 pre-image. The encoding is a pure function of
// the value's shape: equal values always produce byte-identical
// output, regardless of process, platform, or Go map iteration order.
//
// Map keys are sorted; Seq order is preserved; Absent entries in a Map
// are elided rather than emitted as null. The input must be a finite
// tree — Serialize detects cycles (by tracking the identity of
// in-progress Maps and Seqs on the current recursion path) and returns
// a *errs.SerializationError rather than recursing forever.
func Serialize(v any) ([]byte, error) {
	buf := make([]byte, 0, 256)
	seen := map[uintptr]bool{}
	buf, err := serializeInto(buf, v, seen)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func serializeInto(buf []byte, v any, seen map[uintptr]bool) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return append(buf, "null"...), nil
	case bool:
		if val {
			return append(buf, "true"...), nil
		}
		return append(buf, "false"...), nil
	case string:
		return appendJSONString(buf, val), nil
	case int:
		return strconv.AppendInt(buf, int64(val), 10), nil
	case int64:
		return strconv.AppendInt(buf, val, 10), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, &errs.SerializationError{Reason: "non-finite number"}
		}
		return strconv.AppendFloat(buf, val, 'g', -1, 64), nil
	case Seq:
		return serializeSeq(buf, val, seen)
	case Map:
		return serializeMap(buf, val, seen)
	default:
		return nil, &errs.SerializationError{Reason: fmt.Sprintf("unsupported value type %T", v)}
	}
}

func serializeSeq(buf []byte, seq Seq, seen map[uintptr]bool) ([]byte, error) {
	ptr := sliceIdentity(seq)
	if ptr != 0 {
		if seen[ptr] {
			return nil, &errs.SerializationError{Reason: "cycle detected in sequence"}
		}
		seen[ptr] = true
		defer delete(seen, ptr)
	}

	buf = append(buf, '[')
	for i, elem := range seq {
		if i > 0 {
			buf = append(buf, ',')
		}
		var err error
		buf, err = serializeInto(buf, elem, seen)
		if err != nil {
			return nil, err
		}
	}
	buf = append(buf, ']')
	return buf, nil
}

func serializeMap(buf []byte, m Map, seen map[uintptr]bool) ([]byte, error) {
	ptr := mapIdentity(m)
	if ptr != 0 {
		if seen[ptr] {
			return nil, &errs.SerializationError{Reason: "cycle detected in mapping"}
		}
		seen[ptr] = true
		defer delete(seen, ptr)
	}

	keys := make([]string, 0, len(m))
	for k, v := range m {
		if _, absent := v.(absentMarker); absent {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendJSONString(buf, k)
		buf = append(buf, ':')
		var err error
		buf, err = serializeInto(buf, m[k], seen)
		if err != nil {
			return nil, err
		}
	}
	buf = append(buf, '}')
	return buf, nil
}

// sliceIdentity returns a stable pointer-sized identity for a slice's
// backing array, or 0 for a nil slice (which cannot meaningfully
// participate in a cycle).
func sliceIdentity(s Seq) uintptr {
	if s == nil {
		return 0
	}
	return reflect.ValueOf([]any(s)).Pointer()
}

// mapIdentity returns a stable pointer-sized identity for a map, or 0
// for a nil map.
func mapIdentity(m Map) uintptr {
	if m == nil {
		return 0
	}
	return reflect.ValueOf(map[string]any(m)).Pointer()
}

// appendJSONString appends the standard JSON-escaped representation
// of s to buf, wrapped in double quotes.
func appendJSONString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for _, r := range s {
		switch r {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		default:
			if r < 0x20 {
				buf = append(buf, fmt.Sprintf(`\u%04x`, r)...)
			} else {
				buf = append(buf, string(r)...)
			}
		}
	}
	buf = append(buf, '"')
	return buf
}
