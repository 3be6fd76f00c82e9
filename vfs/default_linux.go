// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build linux

package vfs

import (
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

func wrapOSFile(f *os.File) File {
	return &linuxFile{File: f, fd: f.Fd()}
}

// Assert that linuxFile implements vfs.File.
var _ File = (*linuxFile)(nil)

type linuxFile struct {
	*os.File
	fd uintptr
}

func (f *linuxFile) Preallocate(offset, length int64) error {
	// FALLOC_FL_KEEP_SIZE reserves the blocks without extending the visible
	// size; the file only grows as extents are written.
	err := unix.Fallocate(int(f.fd), unix.FALLOC_FL_KEEP_SIZE, offset, length)
	if errors.Is(err, unix.EOPNOTSUPP) || errors.Is(err, unix.ENOSYS) {
		return nil
	}
	return err
}

func (f *linuxFile) SyncData() error {
	return unix.Fdatasync(int(f.fd))
}
