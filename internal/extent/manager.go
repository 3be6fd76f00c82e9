// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package extent implements the extent manager: the owner of the free/used
// extent map of a data file.
package extent

import (
	"container/heap"
	"iter"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/extentstore/extentstore/internal/base"
)

// ErrNoSpace is returned by Gen when the file has reached its maximum number
// of extents and none is free.
var ErrNoSpace = errors.New("extentstore: no free extent")

// Manager hands out and reclaims the fixed-size extents of a file. Extents are
// identified by their offset. Freed extents are reused lowest offset first,
// and the file only grows when no freed extent is available.
//
// Manager is not safe for concurrent use; it is owned by the data block
// manager and only mutated under its mutex.
type Manager struct {
	extentSize int64
	// maxExtents bounds the file size; 0 means unbounded.
	maxExtents int
	// inUse[i] is true if extent i is allocated. len(inUse) is the number of
	// extents the file spans.
	inUse []bool
	free  freeHeap
	used  int
}

// New returns a Manager for a file of fileSize bytes, with all of its extents
// free. fileSize must be a multiple of extentSize.
func New(extentSize, fileSize int64, maxExtents int) *Manager {
	if extentSize <= 0 || fileSize%extentSize != 0 {
		panic(errors.AssertionFailedf("file size %d is not a multiple of extent size %d", fileSize, extentSize))
	}
	m := &Manager{
		extentSize: extentSize,
		maxExtents: maxExtents,
		inUse:      make([]bool, fileSize/extentSize),
	}
	for i := range m.inUse {
		m.free = append(m.free, i)
	}
	heap.Init(&m.free)
	return m
}

// Gen allocates an extent and returns its offset.
func (m *Manager) Gen() (base.Offset, error) {
	var idx int
	if m.free.Len() > 0 {
		idx = heap.Pop(&m.free).(int)
	} else {
		if m.maxExtents > 0 && len(m.inUse) >= m.maxExtents {
			return 0, errors.Wrapf(ErrNoSpace, "%d extents in use", m.used)
		}
		idx = len(m.inUse)
		m.inUse = append(m.inUse, false)
	}
	m.inUse[idx] = true
	m.used++
	return m.offset(idx), nil
}

// Reserve marks the extent at off as in use. It is used while reconstructing
// the extent map from a scan, and is a no-op for an extent already in use.
// The file grows to cover off if necessary.
func (m *Manager) Reserve(off base.Offset) {
	m.checkAligned(off)
	idx := int(int64(off) / m.extentSize)
	for idx >= len(m.inUse) {
		m.inUse = append(m.inUse, false)
		heap.Push(&m.free, len(m.inUse)-1)
	}
	if m.inUse[idx] {
		return
	}
	m.inUse[idx] = true
	m.used++
	for i, f := range m.free {
		if f == idx {
			heap.Remove(&m.free, i)
			break
		}
	}
}

// Release returns the extent at off to the free set. Releasing an extent that
// is not in use is a fatal contract violation.
func (m *Manager) Release(off base.Offset) {
	m.checkAligned(off)
	idx := int(int64(off) / m.extentSize)
	if idx >= len(m.inUse) || !m.inUse[idx] {
		panic(errors.AssertionFailedf("release of extent %s which is not in use", off))
	}
	m.inUse[idx] = false
	m.used--
	heap.Push(&m.free, idx)
}

// InUse returns true if the extent containing off is allocated.
func (m *Manager) InUse(off base.Offset) bool {
	if off < 0 {
		return false
	}
	idx := int(int64(off) / m.extentSize)
	return idx < len(m.inUse) && m.inUse[idx]
}

// CheckOffset returns an error marked base.ErrOutOfRange if off lies outside
// the file or in an extent that is not allocated.
func (m *Manager) CheckOffset(off base.Offset) error {
	if off < 0 || int64(off) >= m.FileSize() {
		return base.OutOfRangeErrorf("offset %s is outside the file [0, %d)", off, errors.Safe(m.FileSize()))
	}
	if !m.InUse(off) {
		return base.OutOfRangeErrorf("offset %s lies in an unallocated extent", off)
	}
	return nil
}

// FileSize returns the number of bytes spanned by the extents the manager
// knows about.
func (m *Manager) FileSize() int64 {
	return int64(len(m.inUse)) * m.extentSize
}

// InUseExtents iterates over the offsets of the extents in use, in
// ascending order.
func (m *Manager) InUseExtents() iter.Seq[base.Offset] {
	return func(yield func(base.Offset) bool) {
		for i, used := range m.inUse {
			if used && !yield(m.offset(i)) {
				return
			}
		}
	}
}

// Stats describes the state of the extent map.
type Stats struct {
	Total int
	InUse int
	Free  int
}

// SafeFormat implements redact.SafeFormatter.
func (s Stats) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("extents: %d total, %d in use, %d free",
		redact.SafeInt(s.Total), redact.SafeInt(s.InUse), redact.SafeInt(s.Free))
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return redact.StringWithoutMarkers(s)
}

// Stats returns the current statistics.
func (m *Manager) Stats() Stats {
	return Stats{Total: len(m.inUse), InUse: m.used, Free: m.free.Len()}
}

func (m *Manager) offset(idx int) base.Offset {
	return base.Offset(int64(idx) * m.extentSize)
}

func (m *Manager) checkAligned(off base.Offset) {
	if off < 0 || int64(off)%m.extentSize != 0 {
		panic(errors.AssertionFailedf("offset %s is not extent aligned", off))
	}
}

// freeHeap is a min-heap of free extent indexes.
type freeHeap []int

func (h freeHeap) Len() int           { return len(h) }
func (h freeHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h freeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *freeHeap) Push(x any) {
	*h = append(*h, x.(int))
}

func (h *freeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
