// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package extentstore

import (
	"container/heap"
	"context"
	"runtime/pprof"

	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/extentstore/extentstore/internal/blockfmt"
	"github.com/extentstore/extentstore/internal/ioqueue"
)

var gcLabels = pprof.Labels("extentstore", "gc")

// StartGC enables garbage collection. Collection runs in the background
// whenever the aggregate garbage ratio of old extents calls for it.
func (m *DataBlockManager) StartGC() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireStateLocked(stateReady, "StartGC")
	m.mu.gc.enabled = true
	m.maybeScheduleGCLocked()
}

// IsGCActive returns true while garbage collection is collecting extents or
// has passes in flight.
func (m *DataBlockManager) IsGCActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.gc.active || m.mu.gc.running > 0
}

// GarbageRatio returns the aggregate garbage ratio of old extents.
func (m *DataBlockManager) GarbageRatio() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.garbageRatioLocked()
}

func (m *DataBlockManager) garbageRatioLocked() float64 {
	total := m.mu.oldLive + m.mu.oldGarbage
	if total == 0 {
		return 0
	}
	return float64(m.mu.oldGarbage) / float64(total)
}

func (m *DataBlockManager) wantToStartGCLocked() bool {
	return m.garbageRatioLocked() > m.opts.GC.HighRatio
}

func (m *DataBlockManager) shouldKeepGCingLocked() bool {
	return m.garbageRatioLocked() > m.opts.GC.LowRatio
}

// computeGCConcurrencyLocked scales the number of concurrent passes linearly
// from 1 at the low ratio to MaxConcurrent at the high ratio.
func (m *DataBlockManager) computeGCConcurrencyLocked() int {
	return computeGCConcurrency(m.garbageRatioLocked(), m.opts.GC.LowRatio, m.opts.GC.HighRatio, m.opts.GC.MaxConcurrent)
}

func computeGCConcurrency(ratio, low, high float64, maxConcurrent int) int {
	if maxConcurrent <= 1 || ratio <= low {
		return 1
	}
	if ratio >= high {
		return maxConcurrent
	}
	n := 1 + int((ratio-low)/(high-low)*float64(maxConcurrent-1))
	return min(max(n, 1), maxConcurrent)
}

// maybeScheduleGCLocked starts or stops garbage collection according to the
// garbage ratio, and starts passes up to the allowed concurrency.
func (m *DataBlockManager) maybeScheduleGCLocked() {
	if m.mu.state != stateReady || !m.mu.gc.enabled {
		return
	}
	m.ageYoungLocked()
	if !m.mu.gc.active {
		if !m.wantToStartGCLocked() {
			return
		}
		m.mu.gc.active = true
	} else if !m.shouldKeepGCingLocked() {
		m.mu.gc.active = false
		return
	}
	for m.mu.gc.running < m.computeGCConcurrencyLocked() && m.mu.pq.Len() > 0 {
		idx := heap.Pop(&m.mu.pq).(int)
		e := m.mu.entries[idx]
		e.inGC = true
		m.mu.gc.running++
		m.mu.gc.nextJobID++
		p := gcPass{
			jobID:  m.mu.gc.nextJobID,
			idx:    idx,
			gen:    e.gen,
			offset: e.offset,
			ratio:  e.garbageRatio(),
		}
		go pprof.Do(m.gcCtx, gcLabels, func(ctx context.Context) {
			m.gcOneExtent(ctx, p)
		})
	}
	if m.mu.gc.running == 0 && m.mu.pq.Len() == 0 {
		m.mu.gc.active = false
	}
}

// gcPass identifies the extent a GC pass collects.
type gcPass struct {
	jobID  int
	idx    int
	gen    uint64
	offset Offset
	ratio  float64
}

// gcOneExtent relocates the live blocks of an old extent so that the extent
// can be reclaimed.
func (m *DataBlockManager) gcOneExtent(ctx context.Context, p gcPass) {
	info := GCInfo{JobID: p.jobID, Extent: p.offset, GarbageRatio: p.ratio}
	m.opts.EventListener.GCBegin(info)
	start := crtime.NowMono()

	res, err := m.relocateExtent(ctx, p)

	info.Done = true
	info.Relocated = res.relocated
	info.Bytes = res.bytes
	info.Aborted = res.aborted
	info.Duration = start.Elapsed()
	info.Err = err
	m.opts.EventListener.GCEnd(info)
	if err != nil && ctx.Err() == nil {
		m.opts.EventListener.BackgroundError(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.gc.running--
	m.mu.gc.passes++
	if res.aborted {
		m.mu.gc.aborted++
	}
	m.mu.gc.relocatedBlocks += int64(res.relocated)
	m.mu.gc.relocatedBytes += res.bytes
	if e := m.entryLocked(p.idx); e != nil && e.gen == p.gen {
		e.inGC = false
		// Blocks whose relocation lost a race remain until their owner marks
		// them garbage. Keep the extent eligible until then.
		if e.state == extentOld && e.heapIndex < 0 {
			heap.Push(&m.mu.pq, e.idx)
		}
	}
	if err != nil {
		m.mu.gc.active = false
	}
	m.maybeScheduleGCLocked()
	m.mu.cond.Broadcast()
}

type relocateResult struct {
	relocated int
	bytes     int64
	aborted   bool
}

func (m *DataBlockManager) relocateExtent(ctx context.Context, p gcPass) (relocateResult, error) {
	bs := m.layout.BlockSize

	m.mu.Lock()
	e := m.entryLocked(p.idx)
	if e == nil || e.gen != p.gen || e.liveBytes == 0 {
		m.mu.Unlock()
		return relocateResult{aborted: true}, nil
	}
	slots := e.liveSlots(m.slots)
	m.mu.Unlock()

	// Read the live slots. I/O is never interrupted midway, so wait for the
	// reads regardless of ctx.
	buf := make([]byte, m.layout.ExtentSize)
	reads := ioqueue.NewCompletion(len(slots))
	for _, s := range slots {
		off := m.layout.SlotOffset(p.idx, s)
		m.gcAccount.Read(int64(off), buf[int64(s)*bs:int64(s+1)*bs], reads)
	}
	<-reads.Done()
	if err := reads.Err(); err != nil {
		return relocateResult{}, errors.Wrapf(err, "reading extent %s", p.offset)
	}
	if err := ctx.Err(); err != nil {
		return relocateResult{}, err
	}

	m.mu.Lock()
	e = m.entryLocked(p.idx)
	if e == nil || e.gen != p.gen || e.liveBytes == 0 {
		// A concurrent write superseded every block in the extent.
		m.mu.Unlock()
		return relocateResult{aborted: true}, nil
	}
	var (
		from []Offset
		ids  []BlockID
		bufs []*blockfmt.Buf
	)
	for _, s := range slots {
		if !e.live.Get(s) {
			continue
		}
		off := m.layout.SlotOffset(p.idx, s)
		b, err := blockfmt.FromSlot(buf[int64(s)*bs : int64(s+1)*bs])
		if err != nil {
			m.mu.Unlock()
			return relocateResult{}, errors.Wrapf(err, "relocating block at %s", off)
		}
		from = append(from, off)
		ids = append(ids, b.Header().BlockID)
		bufs = append(bufs, b)
	}
	tokens, err := m.allocLocked(bufs)
	if err != nil {
		m.mu.Unlock()
		return relocateResult{}, err
	}
	m.mu.inflightWrites++
	m.mu.Unlock()

	n := int64(len(bufs)) * bs
	if err := m.limiter.Wait(ctx, n); err != nil {
		m.mu.Lock()
		m.rollbackLocked(tokens)
		m.mu.inflightWrites--
		m.mu.cond.Broadcast()
		m.mu.Unlock()
		return relocateResult{}, err
	}
	writes := m.submit(tokens, bufs, m.gcAccount, m.opts.GCWriteLatency)
	<-writes.Done()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := writes.Err(); err != nil {
		for _, t := range tokens {
			m.markGarbageLocked(t.Offset)
		}
		return relocateResult{}, errors.Wrapf(err, "relocating extent %s", p.offset)
	}
	e = m.entryLocked(p.idx)
	if e == nil || e.gen != p.gen {
		// The extent was emptied and reused while the copies were being
		// written. Its slots may now hold newer versions of the same blocks.
		for _, t := range tokens {
			m.markGarbageLocked(t.Offset)
		}
		return relocateResult{aborted: true}, nil
	}
	var res relocateResult
	for i, t := range tokens {
		if e.live.Get(m.layout.SlotIndex(from[i])) && m.index.Relocate(ids[i], from[i], t.Offset) {
			m.markGarbageLocked(from[i])
			res.relocated++
			res.bytes += bs
		} else {
			// The block was superseded while it was being copied.
			m.markGarbageLocked(t.Offset)
		}
	}
	return res, nil
}
