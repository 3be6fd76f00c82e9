// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package extentstore

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// ShouldPerformReadAhead returns true if a read of the block at off may be
// widened. Read-ahead is skipped for extents that are still being written,
// whose unwritten slots hold nothing worth reading.
func (m *DataBlockManager) ShouldPerformReadAhead(off Offset) bool {
	if m.readAheadDisabled.Load() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mu.state != stateReady {
		return false
	}
	e := m.entryLocked(m.layout.ExtentIndex(off))
	return e != nil && e.state != extentBeingWritten
}

// DisableReadAhead turns read-ahead off for the rest of the manager's life.
func (m *DataBlockManager) DisableReadAhead() {
	m.readAheadDisabled.Store(true)
}

// ReadAheadBoundaries returns the start of every live block in the extent
// containing off, relative to the extent start, together with the sentinels
// 0 and the extent size. The result is sorted.
func (m *DataBlockManager) ReadAheadBoundaries(off Offset) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := []int64{0}
	if e := m.entryLocked(m.layout.ExtentIndex(off)); e != nil {
		for _, s := range e.liveSlots(m.slots) {
			if s > 0 {
				res = append(res, int64(s)*m.layout.BlockSize)
			}
		}
	}
	return append(res, m.layout.ExtentSize)
}

// ReadAheadInterval returns the byte range to read in order to read the block
// at off.
func (m *DataBlockManager) ReadAheadInterval(off Offset) (start, end Offset) {
	s, e := UnalignedReadAheadInterval(int64(off), m.layout.BlockSize, m.layout.ExtentSize,
		m.opts.ReadAheadSize, m.ReadAheadBoundaries(off))
	return Offset(s), Offset(e)
}

// UnalignedReadAheadInterval widens a read of serBlockSize bytes at
// blockOffset to a window of readAheadSize bytes, snapped outwards to block
// boundaries. The window is aligned to readAheadSize and never crosses the
// boundary of the extent containing blockOffset.
//
// boundaries holds the block starts within the extent, relative to the
// extent start, sorted ascending and including 0 and extentSize. The interval
// starts at the first boundary at or after the start of the window, unless
// that would exclude the block itself, and ends at the first boundary at or
// after the end of the window. The interval always covers the requested
// block. Offsets are absolute.
//
// The start is therefore a boundary snapped into the read-ahead aligned
// window, not the largest boundary at or before blockOffset: a read of the
// second block in a window starts at the first block of that window, and a
// boundary that lies before the window is never used even if it is the
// nearest one below blockOffset.
func UnalignedReadAheadInterval(
	blockOffset, serBlockSize, extentSize, readAheadSize int64, boundaries []int64,
) (start, end int64) {
	if blockOffset < 0 || serBlockSize <= 0 || extentSize <= 0 || readAheadSize <= 0 {
		panic(errors.AssertionFailedf("invalid read-ahead request: offset %d size %d extent size %d read-ahead %d",
			blockOffset, serBlockSize, extentSize, readAheadSize))
	}
	if len(boundaries) == 0 || !slices.IsSorted(boundaries) {
		panic(errors.AssertionFailedf("read-ahead boundaries must be non-empty and sorted: %v", boundaries))
	}
	extentStart := blockOffset - blockOffset%extentSize
	rel := blockOffset - extentStart
	windowStart := max(blockOffset-blockOffset%readAheadSize, extentStart) - extentStart
	windowEnd := min(windowStart+readAheadSize, extentSize)

	start = rel
	if i, _ := slices.BinarySearch(boundaries, windowStart); i < len(boundaries) && boundaries[i] <= rel {
		start = boundaries[i]
	}
	end = boundaries[len(boundaries)-1]
	if i, _ := slices.BinarySearch(boundaries, windowEnd); i < len(boundaries) {
		end = boundaries[i]
	}
	end = min(max(end, rel+serBlockSize), extentSize)
	return extentStart + start, extentStart + end
}
