// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package extentstore

import (
	"context"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"
	"github.com/extentstore/extentstore/internal/base"
	"github.com/extentstore/extentstore/internal/blockfmt"
	"github.com/extentstore/extentstore/internal/ioqueue"
	"github.com/extentstore/extentstore/internal/metablock"
	"github.com/extentstore/extentstore/vfs"
)

// maxReadAttempts bounds the number of times Get follows a block that moves
// while it is being read.
const maxReadAttempts = 10

// WriteOp is one operation of a batch passed to Store.Apply.
type WriteOp struct {
	ID   BlockID
	Data []byte
	// Delete writes a tombstone for ID. Data is ignored.
	Delete bool
}

// indexEntry is the current location of a block. txn orders concurrent
// writes to the same id; recovered entries have txn 0.
type indexEntry struct {
	off FlaggedOffset
	txn TxnID
}

// Store is a block store over a single data file. Blocks are addressed by id
// and rewritten out of place; a DataBlockManager reclaims the space of
// superseded versions in the background. The location of every block is kept
// in memory and recovered by scanning the data file when the Store is opened.
//
// A Store is safe for concurrent use.
type Store struct {
	opts   *Options
	path   string
	file   vfs.File
	meta   metablock.File
	ioq    *ioqueue.Queue
	fg     *IOAccount
	dbm    *DataBlockManager
	layout base.Layout

	// closeMu is held for reading by every operation and for writing by
	// Close.
	closeMu sync.RWMutex
	closed  bool

	mu struct {
		sync.Mutex
		index   swiss.Map[BlockID, indexEntry]
		nextTxn TxnID
	}
}

var _ LocationIndex = (*Store)(nil)

func (s *Store) enter() {
	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		panic(ErrClosed)
	}
}

func (s *Store) exit() {
	s.closeMu.RUnlock()
}

// Set writes data as the new version of block id.
func (s *Store) Set(ctx context.Context, id BlockID, data []byte) error {
	return s.Apply(ctx, []WriteOp{{ID: id, Data: data}})
}

// Delete writes a tombstone for block id. It returns ErrNotFound if the block
// does not exist.
func (s *Store) Delete(ctx context.Context, id BlockID) error {
	return s.Apply(ctx, []WriteOp{{ID: id, Delete: true}})
}

// Apply writes a batch of operations. Every operation gets its own
// transaction id, in batch order, so a later operation on the same id wins.
// Block ids above MaxBlockID are rejected with an error marked ErrOutOfRange.
// Apply returns once the batch is durable and visible to Get. If the batch
// fails, none of it is visible.
func (s *Store) Apply(ctx context.Context, ops []WriteOp) error {
	s.enter()
	defer s.exit()
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	maxPayload := blockfmt.MaxPayload(s.layout.BlockSize)
	for _, op := range ops {
		if op.ID > MaxBlockID {
			return base.OutOfRangeErrorf("block %s exceeds the largest block id %s", op.ID, MaxBlockID)
		}
		if !op.Delete && len(op.Data) > maxPayload {
			return errors.Wrapf(ErrBlockTooLarge, "block %s: %d bytes, at most %d fit",
				op.ID, errors.Safe(len(op.Data)), errors.Safe(maxPayload))
		}
	}

	txns := make([]TxnID, len(ops))
	s.mu.Lock()
	for i, op := range ops {
		if op.Delete && !s.existsLocked(op.ID, ops[:i]) {
			s.mu.Unlock()
			return errors.Wrapf(ErrNotFound, "deleting block %s", op.ID)
		}
	}
	for i := range ops {
		txns[i] = s.mu.nextTxn
		s.mu.nextTxn++
	}
	s.mu.Unlock()

	bufs := make([]*blockfmt.Buf, len(ops))
	for i, op := range ops {
		h := blockfmt.Header{BlockID: op.ID, TxnID: txns[i], Deleted: op.Delete}
		var payload []byte
		if !op.Delete {
			payload = op.Data
		}
		b, err := blockfmt.NewBuf(s.layout.BlockSize, h, payload)
		if err != nil {
			return err
		}
		bufs[i] = b
	}

	tokens, c := s.dbm.ManyWrites(bufs, s.fg)
	<-c.Done()
	if err := c.Err(); err != nil {
		for _, t := range tokens {
			s.dbm.MarkGarbage(t.Offset)
		}
		return err
	}

	superseded := make([]Offset, 0, len(ops))
	s.mu.Lock()
	for i, op := range ops {
		cur, ok := s.mu.index.Get(op.ID)
		if ok && cur.txn > txns[i] {
			// A concurrent batch wrote a newer version first.
			superseded = append(superseded, tokens[i].Offset)
			continue
		}
		if ok {
			superseded = append(superseded, cur.off.Offset())
		}
		s.mu.index.Put(op.ID, indexEntry{
			off: base.MakeFlaggedOffset(tokens[i].Offset, op.Delete),
			txn: txns[i],
		})
	}
	s.mu.Unlock()

	for _, off := range superseded {
		s.dbm.MarkGarbage(off)
	}
	return nil
}

// existsLocked returns true if id has a current version that is not a
// tombstone, taking the earlier operations of the batch into account.
func (s *Store) existsLocked(id BlockID, earlier []WriteOp) bool {
	for i := len(earlier) - 1; i >= 0; i-- {
		if earlier[i].ID == id {
			return !earlier[i].Delete
		}
	}
	e, ok := s.mu.index.Get(id)
	return ok && !e.off.IsDeleted()
}

func (s *Store) lookup(id BlockID) (indexEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.index.Get(id)
}

// Get returns the payload of the current version of block id, or ErrNotFound
// if the block does not exist or was deleted.
func (s *Store) Get(ctx context.Context, id BlockID) ([]byte, error) {
	s.enter()
	defer s.exit()
	for attempt := 0; attempt < maxReadAttempts; attempt++ {
		e, ok := s.lookup(id)
		if !ok || e.off.IsDeleted() {
			return nil, ErrNotFound
		}
		payload, moved, err := s.read(ctx, id, e.off.Offset())
		if err != nil || !moved {
			return payload, err
		}
	}
	return nil, errors.Newf("block %s kept moving while being read", id)
}

// read reads the block id from off, widening the read when read-ahead is
// allowed. It returns moved if the block no longer lives at off.
func (s *Store) read(ctx context.Context, id BlockID, off Offset) (payload []byte, moved bool, _ error) {
	bs := s.layout.BlockSize
	start, end := off, off+Offset(bs)
	if s.dbm.ShouldPerformReadAhead(off) {
		start, end = s.dbm.ReadAheadInterval(off)
	}
	buf := make([]byte, end-start)
	c := ioqueue.NewCompletion(1)
	s.fg.Read(int64(start), buf, c)
	if err := c.Wait(ctx); err != nil {
		return nil, false, err
	}

	rel := int64(off - start)
	h, p, err := blockfmt.Decode(buf[rel : rel+bs])
	if err != nil || h.BlockID != id {
		// The slot may have been reclaimed and reused since the lookup.
		if cur, ok := s.lookup(id); ok && cur.off.Offset() == off {
			if err == nil {
				err = base.CorruptionErrorf("slot %s holds block %s, expected %s", off, h.BlockID, id)
			}
			return nil, false, errors.Wrapf(err, "reading block %s", id)
		}
		return nil, true, nil
	}
	payload = slices.Clone(p)

	if s.opts.OnReadAhead != nil && end-start > Offset(bs) {
		s.deliverReadAhead(buf, start, off)
	}
	return payload, false, nil
}

// deliverReadAhead passes the current blocks in buf, other than the one at
// skip, to Options.OnReadAhead.
func (s *Store) deliverReadAhead(buf []byte, start, skip Offset) {
	type found struct {
		id      BlockID
		payload []byte
	}
	var blocks []found
	bs := s.layout.BlockSize
	s.mu.Lock()
	for rel := int64(0); rel+bs <= int64(len(buf)); rel += bs {
		off := start + Offset(rel)
		if off == skip {
			continue
		}
		h, p, err := blockfmt.Decode(buf[rel : rel+bs])
		if err != nil || h.Deleted {
			continue
		}
		if e, ok := s.mu.index.Get(h.BlockID); ok && e.off == base.MakeFlaggedOffset(off, false) {
			blocks = append(blocks, found{id: h.BlockID, payload: p})
		}
	}
	s.mu.Unlock()
	for _, b := range blocks {
		s.opts.OnReadAhead(b.id, b.payload)
	}
}

// Relocate implements LocationIndex.
func (s *Store) Relocate(id BlockID, from, to Offset) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.mu.index.Get(id)
	if !ok || e.off.Offset() != from {
		return false
	}
	e.off = base.MakeFlaggedOffset(to, e.off.IsDeleted())
	s.mu.index.Put(id, e)
	return true
}

// Checkpoint syncs the data file and persists the metablock, so that a later
// Open can resume the extents being written.
func (s *Store) Checkpoint() error {
	s.enter()
	defer s.exit()
	if err := s.file.SyncData(); err != nil {
		return err
	}
	return s.meta.Write(s.dbm.PrepareMetablock())
}

// Metrics returns the metrics of the store.
func (s *Store) Metrics() *Metrics {
	s.enter()
	defer s.exit()
	m := s.dbm.Metrics()
	m.IO.Foreground = s.fg.Metrics()
	s.mu.Lock()
	m.Blocks = s.mu.index.Len()
	s.mu.Unlock()
	return &m
}

// Layout returns the block and extent geometry of the data file.
func (s *Store) Layout() Layout {
	return s.layout
}

// Close shuts down garbage collection, persists the metablock and closes the
// data file. Close is idempotent. Any other use of the Store after Close
// panics with ErrClosed.
func (s *Store) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.dbm.Shutdown().Wait(context.Background())
	s.ioq.Close()
	if !s.opts.NoSync {
		err = errors.CombineErrors(err, s.file.Sync())
	}
	return errors.CombineErrors(err, s.file.Close())
}
