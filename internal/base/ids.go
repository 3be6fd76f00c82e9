// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"math"

	"github.com/cockroachdb/redact"
)

// BlockID identifies a block. Block ids are dense and start at 0.
type BlockID uint64

// SafeFormat implements redact.SafeFormatter.
func (id BlockID) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("b%d", redact.SafeUint(id))
}

// String implements fmt.Stringer.
func (id BlockID) String() string {
	return redact.StringWithoutMarkers(id)
}

// MaxBlockID is the largest block id a Store writes. Block ids are dense, so
// a larger id is a caller bug rather than a large store.
const MaxBlockID BlockID = 1<<48 - 1

// TxnID is the transaction id stamped on a block when it is written. It is
// monotonically non-decreasing across rewrites of the same block id, but not
// dense.
type TxnID uint64

// SafeFormat implements redact.SafeFormatter.
func (t TxnID) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("t%d", redact.SafeUint(t))
}

// String implements fmt.Stringer.
func (t TxnID) String() string {
	return redact.StringWithoutMarkers(t)
}

// Offset is a byte offset into a data file.
type Offset int64

// SafeFormat implements redact.SafeFormatter.
func (o Offset) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%d", redact.SafeInt(o))
}

// String implements fmt.Stringer.
func (o Offset) String() string {
	return redact.StringWithoutMarkers(o)
}

// FlaggedOffset is an Offset that additionally carries the reserved "deleted"
// flag. A deleted block still occupies the slot at Offset(): the tombstone
// must stay live so that older versions of the block cannot resurface during
// recovery.
type FlaggedOffset uint64

const (
	deletedBit FlaggedOffset = 1 << 63

	// NullOffset is the FlaggedOffset of a block id that has no location.
	NullOffset FlaggedOffset = math.MaxUint64 &^ deletedBit
)

// MakeFlaggedOffset constructs a FlaggedOffset.
func MakeFlaggedOffset(off Offset, deleted bool) FlaggedOffset {
	if off < 0 {
		panic("negative offset")
	}
	f := FlaggedOffset(off)
	if deleted {
		f |= deletedBit
	}
	return f
}

// IsNull returns true if f is NullOffset.
func (f FlaggedOffset) IsNull() bool {
	return f == NullOffset
}

// IsDeleted returns true if the block at this offset is a tombstone.
func (f FlaggedOffset) IsDeleted() bool {
	return !f.IsNull() && f&deletedBit != 0
}

// Offset returns the file offset with the deleted flag stripped.
func (f FlaggedOffset) Offset() Offset {
	return Offset(f &^ deletedBit)
}

// SafeFormat implements redact.SafeFormatter.
func (f FlaggedOffset) SafeFormat(w redact.SafePrinter, _ rune) {
	switch {
	case f.IsNull():
		w.SafeString("null")
	case f.IsDeleted():
		w.Printf("%d(deleted)", redact.SafeInt(f.Offset()))
	default:
		w.Printf("%d", redact.SafeInt(f.Offset()))
	}
}

// String implements fmt.Stringer.
func (f FlaggedOffset) String() string {
	return redact.StringWithoutMarkers(f)
}
