// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package extentstore implements the block storage layer of a log-structured
// engine: fixed-size blocks written into fixed-size extents of a single data
// file, with background garbage collection of extents whose blocks have been
// superseded, and recovery of the block locations from a scan of the file.
package extentstore // import "github.com/extentstore/extentstore"

import (
	"github.com/cockroachdb/errors"
	"github.com/extentstore/extentstore/internal/base"
	"github.com/extentstore/extentstore/internal/extent"
	"github.com/extentstore/extentstore/internal/ioqueue"
)

// BlockID exports the base.BlockID type.
type BlockID = base.BlockID

// MaxBlockID exports the base.MaxBlockID constant.
const MaxBlockID = base.MaxBlockID

// TxnID exports the base.TxnID type.
type TxnID = base.TxnID

// Offset exports the base.Offset type.
type Offset = base.Offset

// FlaggedOffset exports the base.FlaggedOffset type.
type FlaggedOffset = base.FlaggedOffset

// Layout exports the base.Layout type.
type Layout = base.Layout

// Logger exports the base.Logger type.
type Logger = base.Logger

// DefaultLogger exports the base.DefaultLogger value.
var DefaultLogger = base.DefaultLogger

// Completion exports the ioqueue.Completion type. It is the future returned
// by asynchronous operations.
type Completion = ioqueue.Completion

// IOAccount exports the ioqueue.Account type.
type IOAccount = ioqueue.Account

var (
	// ErrNotFound is returned when a read or delete does not find the
	// requested block.
	ErrNotFound = base.ErrNotFound
	// ErrCorruption marks errors caused by corrupted on-disk data.
	ErrCorruption = base.ErrCorruption
	// ErrOutOfRange is returned for offsets outside the file or inside an
	// unallocated extent, and for block ids above MaxBlockID.
	ErrOutOfRange = base.ErrOutOfRange
	// ErrNoSpace is returned when a write needs a new extent and MaxExtents
	// extents are in use.
	ErrNoSpace = extent.ErrNoSpace
	// ErrClosed is panicked when an operation is performed on a closed Store.
	ErrClosed = errors.New("extentstore: closed")
	// ErrBlockTooLarge is returned for a payload that does not fit in a block.
	ErrBlockTooLarge = errors.New("extentstore: block too large")
)

// IsCorruptionError returns true if the given error indicates corruption.
func IsCorruptionError(err error) bool {
	return base.IsCorruptionError(err)
}
