// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package registry derives the authoritative "latest offset per block id"
// mapping from a raw scan of a data file.
//
// Every block written to the data file carries its block id and the
// transaction id it was written under. A raw scan finds every version of a
// block that has not been overwritten yet, in file order, which has no
// relation to write order. The Registry resolves this by keeping, for each
// block id, the observation with the highest transaction id; the result is
// independent of scan order.
//
// A Registry is a standalone value. It is built, consumed and discarded by a
// single goroutine (recovery, fsck, extract) and has no relation to a live
// data block manager.
package registry

import (
	"cmp"
	"iter"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"
	"github.com/extentstore/extentstore/internal/base"
)

// denseSlack is how far past twice the dense table an id may lie and still be
// stored densely. Ids further out go to the sparse table, so that a single
// stray id cannot force a huge allocation.
const denseSlack = 1 << 16

type entry struct {
	off base.FlaggedOffset
	txn base.TxnID
}

// Registry accumulates block observations. Any block id is accepted.
type Registry struct {
	// dense is indexed by block id; ids never observed hold NullOffset.
	dense []entry
	// sparse holds the observed ids >= len(dense).
	sparse swiss.Map[base.BlockID, entry]
	// n is the number of distinct ids observed.
	n uint64
	// maxID is the largest id observed. It is only meaningful when n > 0.
	maxID base.BlockID

	destroyed bool
}

// New returns an empty Registry.
func New() *Registry {
	r := &Registry{}
	r.sparse.Init(0)
	return r
}

// TellBlock records that the block id was observed at off with the given
// transaction id. The observation replaces the recorded one only if it is
// the first for id or its transaction id is strictly greater.
//
// TellBlock panics if called after DestroyTransactionIDs.
func (r *Registry) TellBlock(off base.FlaggedOffset, id base.BlockID, txn base.TxnID) {
	if r.destroyed {
		panic(errors.AssertionFailedf("TellBlock(%s) after DestroyTransactionIDs", id))
	}
	if off.IsNull() {
		panic(errors.AssertionFailedf("TellBlock(%s) with a null offset", id))
	}
	if uint64(id) >= uint64(len(r.dense)) && uint64(id) < 2*uint64(len(r.dense))+denseSlack {
		r.grow(id)
	}
	if uint64(id) < uint64(len(r.dense)) {
		r.update(&r.dense[id], off, id, txn)
		return
	}
	e, ok := r.sparse.Get(id)
	if !ok {
		e.off = base.NullOffset
	}
	if r.update(&e, off, id, txn) {
		r.sparse.Put(id, e)
	}
}

// update applies an observation to e and returns true if e changed.
func (r *Registry) update(e *entry, off base.FlaggedOffset, id base.BlockID, txn base.TxnID) bool {
	if e.off.IsNull() {
		if r.n == 0 || id > r.maxID {
			r.maxID = id
		}
		r.n++
	} else if txn <= e.txn {
		return false
	}
	*e = entry{off: off, txn: txn}
	return true
}

// grow extends the dense table to cover id, which must lie within its growth
// bound, and moves the sparse entries it now covers.
func (r *Registry) grow(id base.BlockID) {
	n := max(2*len(r.dense), int(id)+1, 16)
	dense := make([]entry, n)
	copy(dense, r.dense)
	for i := len(r.dense); i < n; i++ {
		dense[i].off = base.NullOffset
	}
	r.dense = dense

	var moved []base.BlockID
	r.sparse.All(func(sid base.BlockID, e entry) bool {
		if uint64(sid) < uint64(n) {
			r.dense[sid] = e
			moved = append(moved, sid)
		}
		return true
	})
	for _, sid := range moved {
		r.sparse.Delete(sid)
	}
}

func (r *Registry) has(id base.BlockID) bool {
	if uint64(id) < uint64(len(r.dense)) {
		return !r.dense[id].off.IsNull()
	}
	_, ok := r.sparse.Get(id)
	return ok
}

// Len returns the number of distinct block ids observed.
func (r *Registry) Len() int {
	return int(r.n)
}

// CheckBlockIDContiguity returns true if every block id in [0, max observed]
// has been observed. It is vacuously true for an empty registry.
func (r *Registry) CheckBlockIDContiguity() bool {
	return r.NumMissing() == 0
}

// NumMissing returns the number of block ids below the largest observed one
// that have not been observed.
func (r *Registry) NumMissing() uint64 {
	if r.n == 0 {
		return 0
	}
	return uint64(r.maxID) - (r.n - 1)
}

// MissingBlockIDs iterates over the block ids below the largest observed one
// that have not been observed, in ascending order. The sequence can be very
// long when the ids are sparse; callers are expected to stop early.
func (r *Registry) MissingBlockIDs() iter.Seq[base.BlockID] {
	return func(yield func(base.BlockID) bool) {
		if r.n == 0 {
			return
		}
		for id := base.BlockID(0); id < r.maxID; id++ {
			if !r.has(id) && !yield(id) {
				return
			}
		}
	}
}

// DestroyTransactionIDs freezes the registry and returns the final mapping,
// dropping the transaction ids. The registry cannot be told about blocks
// afterwards.
func (r *Registry) DestroyTransactionIDs() Mapping {
	if r.destroyed {
		panic(errors.AssertionFailedf("DestroyTransactionIDs called twice"))
	}
	r.destroyed = true
	m := Mapping{n: int(r.n), maxID: r.maxID}
	dense := len(r.dense)
	if r.n > 0 && uint64(r.maxID) < uint64(dense) {
		dense = int(r.maxID) + 1
	}
	m.dense = make([]base.FlaggedOffset, dense)
	for i := range m.dense {
		m.dense[i] = r.dense[i].off
	}
	r.sparse.All(func(id base.BlockID, e entry) bool {
		m.sparse = append(m.sparse, sparseEntry{id: id, off: e.off})
		return true
	})
	slices.SortFunc(m.sparse, func(a, b sparseEntry) int {
		return cmp.Compare(a.id, b.id)
	})
	r.dense = nil
	r.sparse.Init(0)
	return m
}

type sparseEntry struct {
	id  base.BlockID
	off base.FlaggedOffset
}

// Mapping is the frozen block id to offset mapping.
type Mapping struct {
	dense []base.FlaggedOffset
	// sparse holds the ids >= len(dense), sorted.
	sparse []sparseEntry
	n      int
	maxID  base.BlockID
}

// Get returns the offset of the latest version of id.
func (m Mapping) Get(id base.BlockID) (base.FlaggedOffset, bool) {
	if uint64(id) < uint64(len(m.dense)) {
		off := m.dense[id]
		return off, !off.IsNull()
	}
	i, ok := slices.BinarySearchFunc(m.sparse, id, func(e sparseEntry, id base.BlockID) int {
		return cmp.Compare(e.id, id)
	})
	if !ok {
		return base.NullOffset, false
	}
	return m.sparse[i].off, true
}

// Len returns the number of block ids in the mapping.
func (m Mapping) Len() int {
	return m.n
}

// MaxBlockID returns the largest block id in the mapping, or false if the
// mapping is empty.
func (m Mapping) MaxBlockID() (base.BlockID, bool) {
	return m.maxID, m.n > 0
}

// All iterates over the mapping in ascending block id order.
func (m Mapping) All() iter.Seq2[base.BlockID, base.FlaggedOffset] {
	return func(yield func(base.BlockID, base.FlaggedOffset) bool) {
		for i, off := range m.dense {
			if !off.IsNull() && !yield(base.BlockID(i), off) {
				return
			}
		}
		for _, e := range m.sparse {
			if !yield(e.id, e.off) {
				return
			}
		}
	}
}
