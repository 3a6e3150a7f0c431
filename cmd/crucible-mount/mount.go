// Copyright 2026 The Crucible Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/crucible-build/crucible/store"
)

// Options configures the store FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Store is the content-addressed store to expose.
	Store *store.Store

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Mount mounts a read-only view of options.Store at options.Mountpoint.
// The caller must call Unmount on the returned Server when done. Every
// store entry and the files beneath it are exposed exactly as they sit
// on disk — the store's own read-only permission discipline (0o444
// files, 0o555 directories) already makes the tree immutable, so this
// filesystem adds no write path of its own.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &storeNode{path: options.Store.Dir(), logger: options.Logger}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "crucible-store",
			Name:       "crucible",
			AllowOther: options.AllowOther,
			Options:    []string{"ro"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("store mounted read-only", "mountpoint", options.Mountpoint, "store", options.Store.Dir())
	return server, nil
}

// storeNode is a read-only passthrough node: it mirrors whatever is
// on disk at path, presenting a directory or a regular file depending
// on what it finds there. One node type suffices for every level of
// the tree since the store has no namespace of its own beyond the
// real filesystem layout (unlike the teacher's artifact store, which
// distinguishes a "tag" naming layer from its content-addressed "cas"
// layer, crucible's store paths are already the user-facing names).
type storeNode struct {
	gofuse.Inode
	path   string
	logger *slog.Logger
}

var _ gofuse.InodeEmbedder = (*storeNode)(nil)
var _ gofuse.NodeLookuper = (*storeNode)(nil)
var _ gofuse.NodeReaddirer = (*storeNode)(nil)
var _ gofuse.NodeGetattrer = (*storeNode)(nil)
var _ gofuse.NodeOpener = (*storeNode)(nil)
var _ gofuse.NodeReader = (*storeNode)(nil)

func (n *storeNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	childPath := filepath.Join(n.path, name)
	info, err := os.Lstat(childPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, syscall.ENOENT
		}
		n.logger.Error("lstat failed", "path", childPath, "error", err)
		return nil, syscall.EIO
	}

	mode := uint32(syscall.S_IFREG)
	if info.IsDir() {
		mode = syscall.S_IFDIR
	}
	child := n.NewPersistentInode(ctx, &storeNode{path: childPath, logger: n.logger}, gofuse.StableAttr{Mode: mode})
	fillAttr(&out.Attr, info)
	return child, 0
}

func (n *storeNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, err := os.ReadDir(n.path)
	if err != nil {
		n.logger.Error("readdir failed", "path", n.path, "error", err)
		return nil, syscall.EIO
	}

	dirEntries := make([]fuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		mode := uint32(syscall.S_IFREG)
		if entry.IsDir() {
			mode = syscall.S_IFDIR
		}
		dirEntries = append(dirEntries, fuse.DirEntry{Name: entry.Name(), Mode: mode})
	}
	return &sliceDirStream{entries: dirEntries}, 0
}

func (n *storeNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := os.Lstat(n.path)
	if err != nil {
		return syscall.EIO
	}
	fillAttr(&out.Attr, info)
	return 0
}

// Open always denies write access — the store is read-only by
// construction and this filesystem adds no mechanism to bypass that.
func (n *storeNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *storeNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	file, err := os.Open(n.path)
	if err != nil {
		return nil, syscall.EIO
	}
	defer file.Close()

	count, err := file.ReadAt(dest, off)
	if err != nil && count == 0 {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(dest[:count]), 0
}

func fillAttr(out *fuse.Attr, info os.FileInfo) {
	mode := uint32(syscall.S_IFREG | 0o444)
	if info.IsDir() {
		mode = syscall.S_IFDIR | 0o555
	}
	out.Mode = mode
	out.Size = uint64(info.Size())
}

// sliceDirStream implements gofuse.DirStream over a fixed slice of
// entries.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}
