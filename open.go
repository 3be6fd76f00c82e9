// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package extentstore

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/extentstore/extentstore/internal/base"
	"github.com/extentstore/extentstore/internal/ioqueue"
	"github.com/extentstore/extentstore/internal/metablock"
	"github.com/extentstore/extentstore/registry"
)

// MetablockPath returns the path of the metablock file of the data file at
// path.
func MetablockPath(path string) string {
	return path + ".meta"
}

// Open opens the Store whose data file is at path, creating an empty one if
// it does not exist. The location of every block is recovered by scanning the
// data file: for each block id, the version with the highest transaction id
// is current. Slots that fail to decode are skipped and reported through
// EventListener.RecoveryWarning.
func Open(path string, opts *Options) (_ *Store, err error) {
	// Make a copy of the options so that we don't mutate the passed in options.
	if opts == nil {
		opts = &Options{}
	} else {
		o := *opts
		opts = &o
	}
	opts = opts.EnsureDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	layout := opts.Layout()

	file, err := opts.FS.OpenReadWrite(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = errors.CombineErrors(err, file.Close())
		}
	}()
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if err := layout.CheckFileSize(size); err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}

	meta := metablock.File{FS: opts.FS, Path: MetablockPath(path)}
	mixin, ok, err := meta.Read()
	if err != nil {
		return nil, err
	}
	if !ok {
		mixin = PrepareInitialMetablock(layout)
	}

	res, err := registry.Build(context.Background(), file, size, layout, func(off base.Offset, err error) {
		opts.EventListener.RecoveryWarning(fmt.Sprintf("skipping slot %s: %v", off, err))
	})
	if err != nil {
		return nil, errors.Wrapf(err, "recovering %s", path)
	}
	if !res.Registry.CheckBlockIDContiguity() {
		opts.EventListener.RecoveryWarning(fmt.Sprintf(
			"block ids are not contiguous: %d missing, %d present",
			res.Registry.NumMissing(), res.Registry.Len()))
	}
	mapping := res.Registry.DestroyTransactionIDs()

	s := &Store{
		opts:   opts,
		path:   path,
		file:   file,
		meta:   meta,
		layout: layout,
	}
	s.mu.index.Init(mapping.Len())
	s.mu.nextTxn = res.MaxTxnID + 1

	s.ioq = ioqueue.New(file, opts.IOWorkers)
	s.fg = s.ioq.NewAccount("foreground", 4)
	s.dbm, err = NewDataBlockManager(opts, file, s.ioq, s, meta)
	if err != nil {
		s.ioq.Close()
		return nil, err
	}
	s.dbm.StartReconstruct()
	for id, off := range mapping.All() {
		// Tombstones stay live so that older versions of the block cannot
		// resurface on the next recovery.
		s.mu.index.Put(id, indexEntry{off: off})
		s.dbm.MarkLive(off.Offset())
	}
	s.dbm.EndReconstruct()
	if err := s.dbm.StartExisting(mixin); err != nil {
		s.ioq.Close()
		return nil, err
	}
	opts.Logger.Infof("opened %s: %d blocks, %d corrupt slots, %s",
		path, mapping.Len(), res.Corrupt, s.dbm.Metrics().Extents.summary())
	if !opts.DisableAutomaticGC {
		s.dbm.StartGC()
	}
	return s, nil
}
