// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package registry

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/extentstore/extentstore/internal/base"
	"github.com/extentstore/extentstore/internal/blockfmt"
)

// Observation is a slot found by Scan.
type Observation struct {
	Offset  base.Offset
	Header  blockfmt.Header
	Payload []byte
	// Err is set, and Header and Payload are zero, for a slot that does not
	// hold a valid block. It is always a corruption error.
	Err error
}

// FlaggedOffset returns the offset of the observation carrying the deleted
// flag of its header.
func (o *Observation) FlaggedOffset() base.FlaggedOffset {
	return base.MakeFlaggedOffset(o.Offset, o.Header.Deleted)
}

// Scan reads the first size bytes of r extent by extent, in offset order, and
// calls fn for every written slot. Unwritten slots are skipped. The
// observation, including its payload, is only valid during the call.
//
// Scan stops at the first error returned by fn, or when ctx is done; the
// context is checked between extents.
func Scan(
	ctx context.Context, r io.ReaderAt, size int64, layout base.Layout, fn func(*Observation) error,
) error {
	if err := layout.Validate(); err != nil {
		return err
	}
	if err := layout.CheckFileSize(size); err != nil {
		return err
	}
	buf := make([]byte, layout.ExtentSize)
	var obs Observation
	for ext := int64(0); ext < size; ext += layout.ExtentSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.ReadAt(buf, ext)
		if errors.Is(err, io.EOF) {
			// A short tail reads as unwritten slots.
			clear(buf[n:])
		} else if err != nil {
			return errors.Wrapf(err, "reading extent at %d", ext)
		}
		for slot := int64(0); slot < layout.ExtentSize; slot += layout.BlockSize {
			h, payload, err := blockfmt.Decode(buf[slot : slot+layout.BlockSize])
			if errors.Is(err, blockfmt.ErrUnwritten) {
				continue
			}
			obs = Observation{Offset: base.Offset(ext + slot)}
			if err != nil {
				obs.Err = err
			} else {
				obs.Header, obs.Payload = h, payload
			}
			if err := fn(&obs); err != nil {
				return err
			}
		}
	}
	return nil
}

// BuildResult is returned by Build.
type BuildResult struct {
	Registry *Registry
	// MaxTxnID is the highest transaction id observed.
	MaxTxnID base.TxnID
	// Blocks is the number of valid slots observed.
	Blocks int
	// Corrupt is the number of slots that did not hold a valid block.
	Corrupt int
}

// Build scans the file into a new Registry. onCorrupt, if non-nil, is called
// for every slot that does not hold a valid block; such slots are otherwise
// ignored.
func Build(
	ctx context.Context,
	r io.ReaderAt,
	size int64,
	layout base.Layout,
	onCorrupt func(off base.Offset, err error),
) (BuildResult, error) {
	res := BuildResult{Registry: New()}
	err := Scan(ctx, r, size, layout, func(o *Observation) error {
		if o.Err != nil {
			res.Corrupt++
			if onCorrupt != nil {
				onCorrupt(o.Offset, o.Err)
			}
			return nil
		}
		res.Blocks++
		res.MaxTxnID = max(res.MaxTxnID, o.Header.TxnID)
		res.Registry.TellBlock(o.FlaggedOffset(), o.Header.BlockID, o.Header.TxnID)
		return nil
	})
	if err != nil {
		return BuildResult{}, err
	}
	return res, nil
}
