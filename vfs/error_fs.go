// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vfs

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// ErrInjected is the error returned by operations failed by an ErrorFS.
var ErrInjected = errors.New("injected error")

// ErrorFSMode is a bit field specifying the operation types for which error
// injection is enabled.
type ErrorFSMode int

const (
	// ErrorFSRead enables errors for file reads.
	ErrorFSRead ErrorFSMode = 0x1
	// ErrorFSWrite enables errors for file writes.
	ErrorFSWrite ErrorFSMode = 0x2
)

// ErrorFS wraps another FS and fails file reads and/or writes while it is
// armed. Opening, renaming and stat-ing files never fail.
type ErrorFS struct {
	FS
	mode  ErrorFSMode
	armed atomic.Bool
	count atomic.Int64
}

// NewErrorFS returns a new disarmed ErrorFS.
func NewErrorFS(fs FS, mode ErrorFSMode) *ErrorFS {
	return &ErrorFS{FS: fs, mode: mode}
}

// Arm enables error injection.
func (fs *ErrorFS) Arm() { fs.armed.Store(true) }

// Disarm disables error injection.
func (fs *ErrorFS) Disarm() { fs.armed.Store(false) }

// Injected returns the number of errors injected so far.
func (fs *ErrorFS) Injected() int64 { return fs.count.Load() }

func (fs *ErrorFS) maybeError(mode ErrorFSMode) error {
	if fs.mode&mode == 0 || !fs.armed.Load() {
		return nil
	}
	fs.count.Add(1)
	return ErrInjected
}

// Create implements FS.Create.
func (fs *ErrorFS) Create(name string) (File, error) {
	f, err := fs.FS.Create(name)
	if err != nil {
		return nil, err
	}
	return &errorFile{File: f, fs: fs}, nil
}

// Open implements FS.Open.
func (fs *ErrorFS) Open(name string) (File, error) {
	f, err := fs.FS.Open(name)
	if err != nil {
		return nil, err
	}
	return &errorFile{File: f, fs: fs}, nil
}

// OpenReadWrite implements FS.OpenReadWrite.
func (fs *ErrorFS) OpenReadWrite(name string) (File, error) {
	f, err := fs.FS.OpenReadWrite(name)
	if err != nil {
		return nil, err
	}
	return &errorFile{File: f, fs: fs}, nil
}

type errorFile struct {
	File
	fs *ErrorFS
}

func (f *errorFile) ReadAt(p []byte, off int64) (int, error) {
	if err := f.fs.maybeError(ErrorFSRead); err != nil {
		return 0, err
	}
	return f.File.ReadAt(p, off)
}

func (f *errorFile) WriteAt(p []byte, off int64) (int, error) {
	if err := f.fs.maybeError(ErrorFSWrite); err != nil {
		return 0, err
	}
	return f.File.WriteAt(p, off)
}
