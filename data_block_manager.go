// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package extentstore

import (
	"container/heap"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/crlib/fifo"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/extentstore/extentstore/internal/base"
	"github.com/extentstore/extentstore/internal/blockfmt"
	"github.com/extentstore/extentstore/internal/extent"
	"github.com/extentstore/extentstore/internal/ioqueue"
	"github.com/extentstore/extentstore/internal/metablock"
	"github.com/extentstore/extentstore/internal/rate"
	"github.com/extentstore/extentstore/vfs"
	"github.com/prometheus/client_golang/prometheus"
)

// LocationIndex is the authoritative mapping from block id to the offset of
// its current version. Garbage collection moves blocks through it.
type LocationIndex interface {
	// Relocate changes the location of id from `from` to `to` and returns
	// true, provided id is still located at `from`. Otherwise it returns false
	// and changes nothing. The deleted flag of the location is preserved.
	//
	// The manager only calls Relocate while the slot at `from` still holds
	// the version it copied, so comparing offsets is enough.
	Relocate(id BlockID, from, to Offset) bool
}

// MetablockPersister persists the metablock mixin written at shutdown.
type MetablockPersister interface {
	Write(metablock.Mixin) error
}

type managerState uint8

const (
	stateUnstarted managerState = iota
	stateReady
	stateShuttingDown
	stateShutDown
)

// SafeFormat implements redact.SafeFormatter.
func (s managerState) SafeFormat(w redact.SafePrinter, _ rune) {
	switch s {
	case stateUnstarted:
		w.SafeString("unstarted")
	case stateReady:
		w.SafeString("ready")
	case stateShuttingDown:
		w.SafeString("shutting-down")
	case stateShutDown:
		w.SafeString("shut-down")
	default:
		w.Printf("managerState(%d)", redact.SafeInt(s))
	}
}

func (s managerState) String() string {
	return redact.StringWithoutMarkers(s)
}

// Token is the location assigned to a block by ManyWrites.
type Token struct {
	Offset Offset
}

var youngRefPool = fifo.MakeQueueBackingPool[youngRef]()

// DataBlockManager allocates block slots in extents of a data file, writes
// blocks into them, and garbage collects extents whose blocks have been
// superseded by relocating the remaining live blocks.
//
// The manager goes through the states unstarted, ready, shutting down and
// shut down, in that order. While unstarted, the extent states are rebuilt
// with StartReconstruct, MarkLive and EndReconstruct, or from a metablock
// mixin, and StartExisting moves the manager to ready. All other operations
// require the manager to be ready; calling them in another state is a
// programming error and panics.
//
// All of the manager's state is protected by a single mutex that is never
// held across I/O. When GC relocates blocks it calls into the LocationIndex
// while holding the mutex, so the index must never call back into the
// manager while holding its own locks.
type DataBlockManager struct {
	opts      *Options
	layout    base.Layout
	slots     int
	file      vfs.File
	gcAccount *ioqueue.Account
	index     LocationIndex
	persister MetablockPersister
	limiter   *rate.Limiter
	nowFn     func() crtime.Mono

	readAheadDisabled atomic.Bool

	// gcCtx is canceled when the manager shuts down. GC passes observe it
	// between batches.
	gcCtx    context.Context
	gcCancel context.CancelFunc

	mu struct {
		sync.Mutex

		state          managerState
		reconstructing bool
		reconstructed  bool

		extents *extent.Manager
		// fileSize is the physical size of the data file.
		fileSize int64

		// entries is the arena of extent entries, indexed by extent index. A
		// nil element is an extent that is not in use.
		entries []*gcEntry
		nextGen uint64

		// active holds the indexes of the extents that receive new blocks.
		active     []int
		nextActive int

		young      fifo.Queue[youngRef]
		youngCount int

		pq gcQueue
		// oldLive and oldGarbage are the byte totals over old extents, from
		// which the aggregate garbage ratio is computed.
		oldLive    int64
		oldGarbage int64

		gc struct {
			enabled bool
			// active is the hysteresis state: set when the garbage ratio
			// exceeds the high ratio, cleared when it drops to the low ratio.
			active    bool
			running   int
			nextJobID int

			passes           int64
			aborted          int64
			relocatedBlocks  int64
			relocatedBytes   int64
			reclaimedExtents int64
		}

		// inflightWrites is the number of write batches that have not
		// completed.
		inflightWrites int
		// cond is broadcast whenever a write batch or a GC pass completes.
		cond sync.Cond

		shutdown *Completion
	}
}

// NewDataBlockManager returns an unstarted manager for the given data file.
// The file size must be a multiple of the extent size. Writes issued by
// garbage collection go through a "gc" account of ioq.
func NewDataBlockManager(
	opts *Options, file vfs.File, ioq *ioqueue.Queue, index LocationIndex, persister MetablockPersister,
) (*DataBlockManager, error) {
	opts = opts.EnsureDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	layout := opts.Layout()
	if err := layout.CheckFileSize(info.Size()); err != nil {
		return nil, err
	}
	m := &DataBlockManager{
		opts:      opts,
		layout:    layout,
		slots:     layout.SlotsPerExtent(),
		file:      file,
		gcAccount: ioq.NewAccount("gc", 1),
		index:     index,
		persister: persister,
		limiter:   rate.NewLimiter(opts.GC.TargetBytesPerSecond, float64(opts.ExtentSize)),
		nowFn:     opts.private.nowFn,
	}
	m.readAheadDisabled.Store(opts.DisableReadAhead)
	m.gcCtx, m.gcCancel = context.WithCancel(context.Background())
	m.mu.extents = extent.New(opts.ExtentSize, info.Size(), opts.MaxExtents)
	m.mu.fileSize = info.Size()
	m.mu.young = fifo.MakeQueue(&youngRefPool)
	m.mu.pq.arena = &m.mu.entries
	m.mu.cond.L = &m.mu.Mutex
	return m, nil
}

// PrepareInitialMetablock returns the mixin of a data file with no extents in
// use.
func PrepareInitialMetablock(layout Layout) metablock.Mixin {
	return metablock.Mixin{Version: metablock.Version1, Layout: layout}
}

// Layout returns the block and extent geometry of the manager.
func (m *DataBlockManager) Layout() Layout {
	return m.layout
}

// GCAccount returns the I/O account used by garbage collection.
func (m *DataBlockManager) GCAccount() *IOAccount {
	return m.gcAccount
}

func (m *DataBlockManager) requireStateLocked(want managerState, op redact.SafeString) {
	if m.mu.state != want {
		panic(errors.AssertionFailedf("%s called in state %s, want %s", op, m.mu.state, want))
	}
}

// StartReconstruct begins rebuilding the extent states from a scan of the
// data file.
func (m *DataBlockManager) StartReconstruct() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireStateLocked(stateUnstarted, "StartReconstruct")
	if m.mu.reconstructing || m.mu.reconstructed {
		panic(errors.AssertionFailedf("StartReconstruct called twice"))
	}
	m.mu.reconstructing = true
}

// MarkLive records that the slot at off holds a live block. It may only be
// called between StartReconstruct and EndReconstruct.
func (m *DataBlockManager) MarkLive(off Offset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireStateLocked(stateUnstarted, "MarkLive")
	if !m.mu.reconstructing {
		panic(errors.AssertionFailedf("MarkLive(%s) outside of reconstruction", off))
	}
	if !m.layout.IsSlotAligned(off) {
		panic(errors.AssertionFailedf("MarkLive(%s): offset is not slot aligned", off))
	}
	idx := m.layout.ExtentIndex(off)
	e := m.entryLocked(idx)
	if e == nil {
		m.mu.extents.Reserve(m.layout.ExtentStart(off))
		e = m.newEntryLocked(idx, extentReconstructing)
	}
	if !e.markLive(m.layout.SlotIndex(off), m.layout.BlockSize) {
		panic(errors.AssertionFailedf("MarkLive(%s): slot is already live", off))
	}
}

// EndReconstruct ends the reconstruction begun by StartReconstruct.
func (m *DataBlockManager) EndReconstruct() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireStateLocked(stateUnstarted, "EndReconstruct")
	if !m.mu.reconstructing {
		panic(errors.AssertionFailedf("EndReconstruct without StartReconstruct"))
	}
	m.mu.reconstructing = false
	m.mu.reconstructed = true
}

// StartExisting starts the manager. If the extent states were reconstructed,
// the mixin only identifies the extents that were being written, which resume
// where they left off; every other reconstructed extent becomes old.
// Otherwise the extent states are rebuilt from the mixin alone.
func (m *DataBlockManager) StartExisting(mixin metablock.Mixin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireStateLocked(stateUnstarted, "StartExisting")
	if m.mu.reconstructing {
		panic(errors.AssertionFailedf("StartExisting during reconstruction"))
	}
	if mixin.Layout != m.layout {
		return errors.Newf("metablock layout (block size %d, extent size %d) does not match "+
			"the configured layout (block size %d, extent size %d)",
			mixin.Layout.BlockSize, mixin.Layout.ExtentSize, m.layout.BlockSize, m.layout.ExtentSize)
	}

	records := make(map[int]*metablock.ExtentRecord, len(mixin.Extents))
	for i := range mixin.Extents {
		rec := &mixin.Extents[i]
		records[m.layout.ExtentIndex(rec.Offset)] = rec
	}

	if !m.mu.reconstructed {
		for i := range mixin.Extents {
			rec := &mixin.Extents[i]
			if rec.LiveSlots() == 0 {
				continue
			}
			idx := m.layout.ExtentIndex(rec.Offset)
			m.mu.extents.Reserve(rec.Offset)
			e := m.newEntryLocked(idx, extentReconstructing)
			for slot := 0; slot < m.slots; slot++ {
				if rec.Live.Get(slot) {
					e.markLive(slot, m.layout.BlockSize)
				}
			}
		}
	}

	for idx, e := range m.mu.entries {
		if e == nil {
			continue
		}
		if e.state != extentReconstructing {
			panic(errors.AssertionFailedf("extent %s in state %s at start", e.offset, e.state))
		}
		resume := -1
		if rec, ok := records[idx]; ok && rec.Active {
			resume = max(rec.NextSlot, e.live.Last()+1)
		}
		if resume >= 0 && resume < m.slots && len(m.mu.active) < m.opts.ActiveExtents {
			e.state = extentBeingWritten
			e.nextSlot = resume
			e.garbageBytes = int64(resume)*m.layout.BlockSize - e.liveBytes
			m.mu.active = append(m.mu.active, idx)
			continue
		}
		// The extent was written in full before it stopped being written.
		e.garbageBytes = m.layout.ExtentSize - e.liveBytes
		m.toOldLocked(e)
	}
	m.mu.state = stateReady
	return nil
}

func (m *DataBlockManager) entryLocked(idx int) *gcEntry {
	if idx < 0 || idx >= len(m.mu.entries) {
		return nil
	}
	return m.mu.entries[idx]
}

func (m *DataBlockManager) newEntryLocked(idx int, state extentState) *gcEntry {
	if idx >= len(m.mu.entries) {
		m.mu.entries = slices.Grow(m.mu.entries, idx+1-len(m.mu.entries))[:idx+1]
	}
	if m.mu.entries[idx] != nil {
		panic(errors.AssertionFailedf("extent %d already has an entry", idx))
	}
	m.mu.nextGen++
	e := &gcEntry{
		idx:       idx,
		offset:    m.layout.ExtentOffset(idx),
		gen:       m.mu.nextGen,
		state:     state,
		live:      metablock.MakeBitmap(m.slots),
		heapIndex: -1,
	}
	m.mu.entries[idx] = e
	return e
}

// openExtentLocked allocates a new extent to write to.
func (m *DataBlockManager) openExtentLocked() error {
	off, err := m.mu.extents.Gen()
	if err != nil {
		return err
	}
	if size := m.mu.extents.FileSize(); size > m.mu.fileSize {
		if err := m.file.Truncate(size); err != nil {
			m.mu.extents.Release(off)
			return errors.Wrapf(err, "growing data file to %d bytes", size)
		}
		if err := m.file.Preallocate(int64(off), m.layout.ExtentSize); err != nil {
			m.opts.Logger.Infof("preallocating extent %s: %v", off, err)
		}
		m.mu.fileSize = size
	}
	idx := m.layout.ExtentIndex(off)
	m.newEntryLocked(idx, extentBeingWritten)
	m.mu.active = append(m.mu.active, idx)
	return nil
}

// allocSlotLocked assigns a slot in one of the active extents.
func (m *DataBlockManager) allocSlotLocked() (Offset, error) {
	for len(m.mu.active) < m.opts.ActiveExtents {
		if err := m.openExtentLocked(); err != nil {
			if len(m.mu.active) > 0 {
				break
			}
			return 0, err
		}
	}
	i := m.mu.nextActive % len(m.mu.active)
	m.mu.nextActive++
	idx := m.mu.active[i]
	e := m.mu.entries[idx]
	slot := e.nextSlot
	e.nextSlot++
	e.markLive(slot, m.layout.BlockSize)
	e.pendingWrites++
	if e.nextSlot == m.slots {
		// Full. It stays being written until its pending writes complete.
		m.mu.active = slices.Delete(m.mu.active, i, i+1)
	}
	return m.layout.SlotOffset(idx, slot), nil
}

// allocLocked assigns a slot to every buffer. On failure, no slot remains
// assigned.
func (m *DataBlockManager) allocLocked(bufs []*blockfmt.Buf) ([]Token, error) {
	tokens := make([]Token, 0, len(bufs))
	for _, b := range bufs {
		if int64(b.Len()) != m.layout.BlockSize {
			panic(errors.AssertionFailedf("buffer of %d bytes for block size %d", b.Len(), m.layout.BlockSize))
		}
		off, err := m.allocSlotLocked()
		if err != nil {
			m.rollbackLocked(tokens)
			return nil, err
		}
		tokens = append(tokens, Token{Offset: off})
	}
	return tokens, nil
}

// rollbackLocked gives back slots whose writes were never issued.
func (m *DataBlockManager) rollbackLocked(tokens []Token) {
	for _, t := range tokens {
		m.markGarbageLocked(t.Offset)
		m.writeDoneLocked(t.Offset)
	}
}

// writeDoneLocked records the completion of the write to off.
func (m *DataBlockManager) writeDoneLocked(off Offset) {
	e := m.entryLocked(m.layout.ExtentIndex(off))
	if e == nil || e.state != extentBeingWritten || e.pendingWrites == 0 {
		panic(errors.AssertionFailedf("completed write to %s which has no pending write", off))
	}
	e.pendingWrites--
	if e.pendingWrites == 0 && e.nextSlot == m.slots {
		m.toYoungLocked(e)
	}
}

func (m *DataBlockManager) toYoungLocked(e *gcEntry) {
	if e.liveBytes == 0 {
		m.releaseLocked(e)
		return
	}
	e.state = extentYoung
	e.youngSince = m.nowFn()
	m.mu.young.PushBack(youngRef{idx: e.idx, gen: e.gen})
	m.mu.youngCount++
	m.ageYoungLocked()
}

func (m *DataBlockManager) toOldLocked(e *gcEntry) {
	e.state = extentOld
	m.mu.oldLive += e.liveBytes
	m.mu.oldGarbage += e.garbageBytes
	heap.Push(&m.mu.pq, e.idx)
}

// ageYoungLocked moves young extents to old, oldest first, while there are
// too many of them or the oldest has been young for too long.
func (m *DataBlockManager) ageYoungLocked() {
	now := m.nowFn()
	for m.mu.young.Len() > 0 {
		ref := *m.mu.young.PeekFront()
		e := m.entryLocked(ref.idx)
		if e == nil || e.gen != ref.gen || e.state != extentYoung {
			m.mu.young.PopFront()
			continue
		}
		if m.mu.youngCount <= m.opts.GC.YoungExtentMaxCount &&
			now.Sub(e.youngSince) < m.opts.GC.YoungExtentTimeLimit {
			return
		}
		m.mu.young.PopFront()
		m.mu.youngCount--
		m.toOldLocked(e)
	}
}

// ManyWrites assigns a slot to every buffer and issues the writes through
// acct. It returns the slots in order, along with a completion that resolves
// once all of the writes are durable. It does not wait for the writes.
//
// The slots are live from the moment they are assigned: if the writes fail,
// the caller must mark them garbage. If no slot can be assigned, no token is
// returned and the completion carries the error.
func (m *DataBlockManager) ManyWrites(bufs []*blockfmt.Buf, acct *IOAccount) ([]Token, *Completion) {
	m.mu.Lock()
	m.requireStateLocked(stateReady, "ManyWrites")
	tokens, err := m.allocLocked(bufs)
	if err != nil {
		m.mu.Unlock()
		return nil, ioqueue.Resolved(err)
	}
	m.mu.inflightWrites++
	m.mu.Unlock()
	return tokens, m.submit(tokens, bufs, acct, m.opts.WriteLatency)
}

// submit issues writes for slots assigned by allocLocked. The returned
// completion resolves once the writes are synced and accounted for.
func (m *DataBlockManager) submit(
	tokens []Token, bufs []*blockfmt.Buf, acct *IOAccount, latency prometheus.Histogram,
) *Completion {
	start := crtime.NowMono()
	writes := ioqueue.NewCompletion(len(bufs))
	for i, b := range bufs {
		acct.Write(int64(tokens[i].Offset), b.Bytes(), writes)
	}
	done := ioqueue.NewCompletion(1)
	go func() {
		<-writes.Done()
		err := writes.Err()
		if err == nil && len(bufs) > 0 && !m.opts.NoSync {
			err = errors.Wrap(m.file.SyncData(), "syncing data file")
		}
		if latency != nil {
			latency.Observe(float64(start.Elapsed()))
		}
		m.mu.Lock()
		for _, t := range tokens {
			m.writeDoneLocked(t.Offset)
		}
		m.mu.inflightWrites--
		m.maybeScheduleGCLocked()
		m.mu.cond.Broadcast()
		m.mu.Unlock()
		done.Finish(err)
	}()
	return done
}

// MarkGarbage records that the block at off is no longer referenced. An
// extent left without live blocks is returned to the free set right away,
// unless it is still being written. Marking a slot that is not live is a
// programming error and panics.
func (m *DataBlockManager) MarkGarbage(off Offset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireStateLocked(stateReady, "MarkGarbage")
	m.markGarbageLocked(off)
	m.maybeScheduleGCLocked()
}

func (m *DataBlockManager) markGarbageLocked(off Offset) {
	e := m.entryLocked(m.layout.ExtentIndex(off))
	if e == nil || !m.layout.IsSlotAligned(off) || !e.markGarbage(m.layout.SlotIndex(off), m.layout.BlockSize) {
		panic(errors.AssertionFailedf("MarkGarbage(%s): slot is not live", off))
	}
	if e.state == extentOld {
		m.mu.oldLive -= m.layout.BlockSize
		m.mu.oldGarbage += m.layout.BlockSize
		if e.heapIndex >= 0 {
			heap.Fix(&m.mu.pq, e.heapIndex)
		}
	}
	if e.liveBytes == 0 && e.state != extentBeingWritten {
		m.releaseLocked(e)
	}
}

// releaseLocked returns the extent to the extent manager and drops its entry.
func (m *DataBlockManager) releaseLocked(e *gcEntry) {
	if e.heapIndex >= 0 {
		heap.Remove(&m.mu.pq, e.heapIndex)
	}
	switch e.state {
	case extentYoung:
		m.mu.youngCount--
	case extentOld:
		m.mu.oldLive -= e.liveBytes
		m.mu.oldGarbage -= e.garbageBytes
	}
	m.mu.entries[e.idx] = nil
	m.mu.extents.Release(e.offset)
	m.mu.gc.reclaimedExtents++
	m.opts.EventListener.ExtentReclaimed(ExtentReclaimedInfo{
		Extent:       e.offset,
		GarbageBytes: e.garbageBytes,
	})
}

// CheckOffset returns an error marked ErrOutOfRange if off lies outside the
// data file or in an extent that is not in use.
func (m *DataBlockManager) CheckOffset(off Offset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.extents.CheckOffset(off)
}

// PrepareMetablock returns the mixin describing the extents in use.
func (m *DataBlockManager) PrepareMetablock() metablock.Mixin {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireStateLocked(stateReady, "PrepareMetablock")
	return m.prepareMetablockLocked()
}

func (m *DataBlockManager) prepareMetablockLocked() metablock.Mixin {
	mixin := PrepareInitialMetablock(m.layout)
	for _, e := range m.mu.entries {
		if e == nil {
			continue
		}
		rec := metablock.ExtentRecord{
			Offset: e.offset,
			Live:   slices.Clone(e.live),
		}
		if e.state == extentBeingWritten {
			rec.Active = true
			rec.NextSlot = e.nextSlot
		}
		mixin.Extents = append(mixin.Extents, rec)
	}
	return mixin
}

// Shutdown stops garbage collection, waits for in-flight GC passes and writes,
// and persists the metablock. The returned completion resolves when the
// manager is shut down. Calling Shutdown again returns the same completion.
func (m *DataBlockManager) Shutdown() *Completion {
	m.mu.Lock()
	if m.mu.shutdown != nil {
		defer m.mu.Unlock()
		return m.mu.shutdown
	}
	m.requireStateLocked(stateReady, "Shutdown")
	m.mu.state = stateShuttingDown
	c := ioqueue.NewCompletion(1)
	m.mu.shutdown = c
	m.mu.Unlock()

	m.gcCancel()
	go func() {
		m.mu.Lock()
		for m.mu.gc.running > 0 || m.mu.inflightWrites > 0 {
			m.mu.cond.Wait()
		}
		mixin := m.prepareMetablockLocked()
		m.mu.Unlock()

		var err error
		if m.persister != nil {
			err = errors.Wrap(m.persister.Write(mixin), "persisting metablock")
		}

		m.mu.Lock()
		m.mu.state = stateShutDown
		m.mu.Unlock()
		c.Finish(err)
	}()
	return c
}

// ExtentInfo describes an extent in use.
type ExtentInfo struct {
	Offset       Offset
	State        string
	LiveBytes    int64
	GarbageBytes int64
	InGC         bool
}

// Extents returns information about every extent in use, in offset order.
func (m *DataBlockManager) Extents() []ExtentInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []ExtentInfo
	for _, e := range m.mu.entries {
		if e == nil {
			continue
		}
		res = append(res, ExtentInfo{
			Offset:       e.offset,
			State:        e.state.String(),
			LiveBytes:    e.liveBytes,
			GarbageBytes: e.garbageBytes,
			InGC:         e.inGC,
		})
	}
	return res
}

// Metrics returns the manager's metrics. The Blocks and foreground I/O
// fields are left for the Store to fill in.
func (m *DataBlockManager) Metrics() Metrics {
	var met Metrics
	met.IO.GC = m.gcAccount.Metrics()

	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.mu.extents.Stats()
	met.Extents.Total, met.Extents.InUse, met.Extents.Free = s.Total, s.InUse, s.Free
	for _, e := range m.mu.entries {
		if e == nil {
			continue
		}
		switch e.state {
		case extentBeingWritten:
			met.Extents.BeingWritten++
		case extentYoung:
			met.Extents.Young++
		case extentOld:
			met.Extents.Old++
		}
		met.Extents.LiveBytes += e.liveBytes
		met.Extents.GarbageBytes += e.garbageBytes
	}
	met.Extents.GarbageRatio = m.garbageRatioLocked()
	met.GC.Active = m.mu.gc.active
	met.GC.Running = m.mu.gc.running
	met.GC.Passes = m.mu.gc.passes
	met.GC.Aborted = m.mu.gc.aborted
	met.GC.RelocatedBlocks = m.mu.gc.relocatedBlocks
	met.GC.RelocatedBytes = m.mu.gc.relocatedBytes
	met.GC.ReclaimedExtents = m.mu.gc.reclaimedExtents
	return met
}
