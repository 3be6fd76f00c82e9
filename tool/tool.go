// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"github.com/extentstore/extentstore/internal/base"
	"github.com/extentstore/extentstore/vfs"
	"github.com/spf13/cobra"
)

// BlockValidator validates the payload of a block during fsck. Tombstones are
// not validated.
type BlockValidator func(id base.BlockID, payload []byte) error

// T is the container for all of the introspection tools.
type T struct {
	Commands []*cobra.Command

	fs        vfs.FS
	validator BlockValidator

	fsck    *fsckT
	extract *extractT
	layout  *layoutT
	metablk *metablockT
	bench   *benchT
}

// Option is a functional option for configuring the tool.
type Option func(*T)

// FS sets the filesystem the tools read from and write to. Defaults to
// vfs.Default.
func FS(fs vfs.FS) Option {
	return func(t *T) {
		t.fs = fs
	}
}

// Validator registers a hook fsck calls on every live block payload.
func Validator(v BlockValidator) Option {
	return func(t *T) {
		t.validator = v
	}
}

// New creates a new introspection tool.
func New(opts ...Option) *T {
	t := &T{fs: vfs.Default}
	for _, opt := range opts {
		opt(t)
	}

	t.fsck = newFsck(t)
	t.extract = newExtract(t)
	t.layout = newLayout(t)
	t.metablk = newMetablock(t)
	t.bench = newBench()
	t.Commands = []*cobra.Command{
		t.fsck.Root,
		t.extract.Root,
		t.layout.Root,
		t.metablk.Root,
		t.bench.Root,
	}
	return t
}
