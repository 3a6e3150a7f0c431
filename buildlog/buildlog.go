// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildlog captures a builder's combined stdout/stderr to a
// zstd-compressed file alongside its derivation, so a failed or
// verbose build can be inspected after the fact without holding the
// raw bytes in memory. This is a non-core convenience — the realize
// contract itself only needs the stderr tail carried on
// errs.BuildFailedError.
package buildlog

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/crucible-build/crucible/errs"
)

// encoder is reused across writers; zstd.Encoder is safe for
// concurrent use once created (one per process, per the teacher's
// artifactstore compression package).
var encoder *zstd.Encoder

func init() {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("buildlog: zstd encoder initialization failed: " + err.Error())
	}
	encoder = enc
}

// Writer captures bytes written to it, compressing and flushing them
// to a file on Close.
type Writer struct {
	path string
	buf  []byte
}

// Create returns a Writer that will persist its captured bytes to
// path (conventionally drvPath + ".log.zst") on Close.
func Create(path string) *Writer {
	return &Writer{path: path}
}

// Write implements io.Writer, buffering bytes for later compression.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Close compresses the buffered bytes and writes them to the
// writer's path.
func (w *Writer) Close() error {
	compressed := encoder.EncodeAll(w.buf, nil)
	if err := os.WriteFile(w.path, compressed, 0o644); err != nil {
		return &errs.IoError{Path: w.path, Err: err}
	}
	return nil
}

// Read decompresses and returns the full captured log at path.
func Read(path string) ([]byte, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.IoError{Path: path, Err: err}
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("initializing zstd decoder: %w", err)
	}
	defer decoder.Close()

	decompressed, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing build log %s: %w", path, err)
	}
	return decompressed, nil
}

// Tail returns at most maxBytes from the end of the captured log at
// path, decompressing it in full first — build logs are expected to
// be small enough (single builder invocations) that streaming
// decompression is not worth the complexity.
func Tail(path string, maxBytes int) (string, error) {
	data, err := Read(path)
	if err != nil {
		return "", err
	}
	if len(data) <= maxBytes {
		return string(data), nil
	}
	return string(data[len(data)-maxBytes:]), nil
}

var _ io.WriteCloser = (*Writer)(nil)
