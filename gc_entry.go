// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package extentstore

import (
	"container/heap"

	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/redact"
	"github.com/extentstore/extentstore/internal/invariants"
	"github.com/extentstore/extentstore/internal/metablock"
)

// extentState is the lifecycle state of an extent in use:
//
//	beingWritten -> young -> old -> (reclaimed)
//	reconstructing -> old
type extentState uint8

const (
	// extentBeingWritten extents receive new blocks. A full extent stays in
	// this state until its last write completes.
	extentBeingWritten extentState = iota
	// extentYoung extents were filled recently and are exempt from GC.
	extentYoung
	// extentOld extents are eligible for GC.
	extentOld
	// extentReconstructing extents were found during the startup scan.
	extentReconstructing
)

// SafeFormat implements redact.SafeFormatter.
func (s extentState) SafeFormat(w redact.SafePrinter, _ rune) {
	switch s {
	case extentBeingWritten:
		w.SafeString("being-written")
	case extentYoung:
		w.SafeString("young")
	case extentOld:
		w.SafeString("old")
	case extentReconstructing:
		w.SafeString("reconstructing")
	default:
		w.Printf("extentState(%d)", redact.SafeInt(s))
	}
}

func (s extentState) String() string {
	return redact.StringWithoutMarkers(s)
}

// gcEntry is the bookkeeping for one extent in use. Entries live in an arena
// indexed by extent index; the young queue and the GC priority queue refer to
// them by index.
type gcEntry struct {
	idx    int
	offset Offset
	// gen distinguishes successive uses of the same extent.
	gen   uint64
	state extentState
	// live has a bit set for every slot holding a live block.
	live metablock.Bitmap
	// liveBytes and garbageBytes count whole slots.
	liveBytes    int64
	garbageBytes int64
	// nextSlot is the next slot to allocate. Only meaningful while the extent
	// is being written.
	nextSlot int
	// pendingWrites is the number of allocated slots whose write has not
	// completed.
	pendingWrites int
	// inGC is set while a GC pass owns the extent.
	inGC bool
	// heapIndex is the position in the GC priority queue, or -1.
	heapIndex int
	// youngSince is when the extent became young.
	youngSince crtime.Mono
}

func (e *gcEntry) garbageRatio() float64 {
	total := e.liveBytes + e.garbageBytes
	if total == 0 {
		return 0
	}
	return float64(e.garbageBytes) / float64(total)
}

// markLive sets a slot live.
func (e *gcEntry) markLive(slot int, blockSize int64) bool {
	if e.live.Get(slot) {
		return false
	}
	e.live.Set(slot)
	e.liveBytes += blockSize
	return true
}

// markGarbage moves a live slot to garbage.
func (e *gcEntry) markGarbage(slot int, blockSize int64) bool {
	if !e.live.Get(slot) {
		return false
	}
	e.live.Clear(slot)
	e.liveBytes = invariants.SafeSub(e.liveBytes, blockSize)
	e.garbageBytes += blockSize
	return true
}

// liveSlots returns the indexes of the live slots, ascending.
func (e *gcEntry) liveSlots(slots int) []int {
	var res []int
	for i := 0; i < slots; i++ {
		if e.live.Get(i) {
			res = append(res, i)
		}
	}
	return res
}

// gcQueue is a priority queue of old extents, most garbage first.
type gcQueue struct {
	// arena is the manager's entry arena, indexed by extent index.
	arena *[]*gcEntry
	items []int
}

func (q *gcQueue) entry(idx int) *gcEntry {
	return (*q.arena)[idx]
}

var _ heap.Interface = (*gcQueue)(nil)

func (q *gcQueue) Len() int { return len(q.items) }

// Less orders by descending garbage ratio. Ties go to the lower offset so that
// the order is deterministic.
func (q *gcQueue) Less(i, j int) bool {
	a, b := q.entry(q.items[i]), q.entry(q.items[j])
	if ra, rb := a.garbageRatio(), b.garbageRatio(); ra != rb {
		return ra > rb
	}
	return a.offset < b.offset
}

func (q *gcQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.entry(q.items[i]).heapIndex = i
	q.entry(q.items[j]).heapIndex = j
}

func (q *gcQueue) Push(x any) {
	idx := x.(int)
	q.entry(idx).heapIndex = len(q.items)
	q.items = append(q.items, idx)
}

func (q *gcQueue) Pop() any {
	n := len(q.items)
	idx := q.items[n-1]
	q.items = q.items[:n-1]
	q.entry(idx).heapIndex = -1
	return idx
}

// youngRef is an element of the young queue. Elements whose extent has left
// the young state since they were queued are skipped.
type youngRef struct {
	idx int
	gen uint64
}
