// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// Layout describes the block and extent geometry of a data file. BlockSize is
// the size of a slot on disk, header included.
type Layout struct {
	BlockSize  int64
	ExtentSize int64
}

// Validate returns an error if the extent size is not a positive multiple of
// the block size.
func (l Layout) Validate() error {
	if l.BlockSize <= 0 {
		return errors.Newf("block size %d must be positive", l.BlockSize)
	}
	if l.ExtentSize <= 0 || l.ExtentSize%l.BlockSize != 0 {
		return errors.Newf("extent size %d must be a positive multiple of the block size %d",
			l.ExtentSize, l.BlockSize)
	}
	return nil
}

// SlotsPerExtent returns the number of block slots in an extent.
func (l Layout) SlotsPerExtent() int {
	return int(l.ExtentSize / l.BlockSize)
}

// ExtentIndex returns the index of the extent containing off.
func (l Layout) ExtentIndex(off Offset) int {
	return int(int64(off) / l.ExtentSize)
}

// ExtentStart returns the offset of the start of the extent containing off.
func (l Layout) ExtentStart(off Offset) Offset {
	return Offset(int64(off) - int64(off)%l.ExtentSize)
}

// ExtentOffset returns the offset of the extent with the given index.
func (l Layout) ExtentOffset(idx int) Offset {
	return Offset(int64(idx) * l.ExtentSize)
}

// SlotIndex returns the index, within its extent, of the slot starting at off.
func (l Layout) SlotIndex(off Offset) int {
	return int((int64(off) % l.ExtentSize) / l.BlockSize)
}

// SlotOffset returns the offset of the given slot of the given extent.
func (l Layout) SlotOffset(extentIdx, slot int) Offset {
	return Offset(int64(extentIdx)*l.ExtentSize + int64(slot)*l.BlockSize)
}

// IsSlotAligned returns true if off is the start of a slot.
func (l Layout) IsSlotAligned(off Offset) bool {
	return off >= 0 && int64(off)%l.BlockSize == 0
}

// CheckFileSize returns a corruption error if size is not a multiple of the
// extent size.
func (l Layout) CheckFileSize(size int64) error {
	if size < 0 || size%l.ExtentSize != 0 {
		return CorruptionErrorf("file size %d is not a multiple of the extent size %d",
			errors.Safe(size), errors.Safe(l.ExtentSize))
	}
	return nil
}
