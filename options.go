// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package extentstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/extentstore/extentstore/internal/base"
	"github.com/extentstore/extentstore/internal/blockfmt"
	"github.com/extentstore/extentstore/vfs"
	"github.com/prometheus/client_golang/prometheus"
)

// Default geometry used when Options leaves it unset.
const (
	DefaultBlockSize  = 4 << 10 // 4 KB
	DefaultExtentSize = 1 << 20 // 1 MB
)

const (
	defaultReadAheadSize = 256 << 10
	defaultIOWorkers     = 4
)

// GCOptions configures garbage collection of extents.
type GCOptions struct {
	// HighRatio is the aggregate garbage ratio of old extents above which
	// garbage collection starts.
	HighRatio float64
	// LowRatio is the aggregate garbage ratio at or below which garbage
	// collection stops once started.
	LowRatio float64
	// MaxConcurrent is the maximum number of extents collected concurrently.
	// Concurrency scales from 1 at LowRatio to MaxConcurrent at HighRatio.
	MaxConcurrent int
	// YoungExtentMaxCount is the number of recently filled extents exempt from
	// collection. The oldest young extent becomes eligible when the count is
	// exceeded.
	YoungExtentMaxCount int
	// YoungExtentTimeLimit is the age at which a young extent becomes
	// eligible for collection.
	YoungExtentTimeLimit time.Duration
	// TargetBytesPerSecond paces relocation writes. Zero means unlimited.
	TargetBytesPerSecond float64
}

// Options holds the optional parameters for configuring a Store and its data
// block manager. These options apply to the data file.
type Options struct {
	// FS is the filesystem the data and metablock files live in. Defaults to
	// vfs.Default.
	FS vfs.FS

	// Logger used to write log messages.
	//
	// The default logger uses the Go standard library log package.
	Logger Logger

	// EventListener provides hooks to listening to significant background
	// events. A nil listener logs every event through Logger.
	EventListener *EventListener

	// BlockSize is the size of a block slot on disk, header included. The
	// largest payload is BlockSize-32 bytes.
	BlockSize int64

	// ExtentSize is the unit of space allocation and reclamation. It must be a
	// multiple of BlockSize.
	ExtentSize int64

	// MaxExtents bounds the size of the data file. Zero means unbounded.
	MaxExtents int

	// ActiveExtents is the number of extents written concurrently. Writes are
	// spread round robin across them.
	ActiveExtents int

	// IOWorkers is the number of goroutines issuing file I/O.
	IOWorkers int

	// ReadAheadSize is the size of the aligned window reads are widened to.
	ReadAheadSize int64

	// DisableReadAhead disables read-ahead altogether.
	DisableReadAhead bool

	// OnReadAhead, if set, is called for every other current block that a
	// widened read happened to cover. The payload must not be retained.
	OnReadAhead func(id BlockID, payload []byte)

	// DisableAutomaticGC prevents the Store from starting garbage collection
	// when it is opened.
	DisableAutomaticGC bool

	// NoSync disables syncing the data file after every write batch and GC
	// relocation. Durability is then only guaranteed by Close.
	NoSync bool

	GC GCOptions

	// WriteLatency, if set, records the latency of foreground write batches,
	// in nanoseconds.
	WriteLatency prometheus.Histogram

	// GCWriteLatency, if set, records the latency of relocation write batches,
	// in nanoseconds.
	GCWriteLatency prometheus.Histogram

	// private options are only used by internal tests.
	private struct {
		nowFn func() crtime.Mono
	}
}

// EnsureDefaults ensures that the default values for all options are set if
// a valid value was not already specified.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.FS == nil {
		o.FS = vfs.Default
	}
	if o.Logger == nil {
		o.Logger = DefaultLogger
	}
	if o.EventListener == nil {
		l := MakeLoggingEventListener(o.Logger)
		o.EventListener = &l
	}
	o.EventListener.EnsureDefaults(o.Logger)
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.ExtentSize <= 0 {
		o.ExtentSize = DefaultExtentSize
	}
	if o.ActiveExtents <= 0 {
		o.ActiveExtents = 1
	}
	if o.IOWorkers <= 0 {
		o.IOWorkers = defaultIOWorkers
	}
	if o.ReadAheadSize <= 0 {
		o.ReadAheadSize = defaultReadAheadSize
	}
	if o.GC.HighRatio == 0 {
		o.GC.HighRatio = 0.65
	}
	if o.GC.LowRatio == 0 {
		o.GC.LowRatio = 0.5
	}
	if o.GC.MaxConcurrent <= 0 {
		o.GC.MaxConcurrent = 4
	}
	if o.GC.YoungExtentMaxCount == 0 {
		o.GC.YoungExtentMaxCount = 50
	}
	if o.GC.YoungExtentTimeLimit == 0 {
		o.GC.YoungExtentTimeLimit = 50 * time.Millisecond
	}
	if o.private.nowFn == nil {
		o.private.nowFn = crtime.NowMono
	}
	return o
}

// Layout returns the block and extent geometry.
func (o *Options) Layout() base.Layout {
	return base.Layout{BlockSize: o.BlockSize, ExtentSize: o.ExtentSize}
}

// Validate verifies that the options are mutually consistent. For example,
// the extent size must be a multiple of the block size.
func (o *Options) Validate() error {
	// Note that we can presume Options.EnsureDefaults has been called, so there
	// is no need to check for zero values.

	var buf strings.Builder
	if o.BlockSize <= blockfmt.HeaderSize {
		fmt.Fprintf(&buf, "BlockSize (%d) must be larger than the block header (%d)\n",
			o.BlockSize, blockfmt.HeaderSize)
	}
	if o.ExtentSize%o.BlockSize != 0 {
		fmt.Fprintf(&buf, "ExtentSize (%s) must be a multiple of BlockSize (%s)\n",
			crhumanize.Bytes(o.ExtentSize, crhumanize.Compact, crhumanize.OmitI),
			crhumanize.Bytes(o.BlockSize, crhumanize.Compact, crhumanize.OmitI))
	}
	if o.MaxExtents < 0 {
		fmt.Fprintf(&buf, "MaxExtents (%d) must be >= 0\n", o.MaxExtents)
	}
	if o.MaxExtents > 0 && o.MaxExtents <= o.ActiveExtents {
		fmt.Fprintf(&buf, "MaxExtents (%d) must be > ActiveExtents (%d)\n", o.MaxExtents, o.ActiveExtents)
	}
	if !(0 < o.GC.LowRatio && o.GC.LowRatio < o.GC.HighRatio && o.GC.HighRatio < 1) {
		fmt.Fprintf(&buf, "GC ratios must satisfy 0 < LowRatio (%.2f) < HighRatio (%.2f) < 1\n",
			o.GC.LowRatio, o.GC.HighRatio)
	}
	if o.GC.YoungExtentMaxCount < 0 {
		fmt.Fprintf(&buf, "GC.YoungExtentMaxCount (%d) must be >= 0\n", o.GC.YoungExtentMaxCount)
	}
	if o.GC.TargetBytesPerSecond < 0 {
		fmt.Fprintf(&buf, "GC.TargetBytesPerSecond (%.0f) must be >= 0\n", o.GC.TargetBytesPerSecond)
	}
	if buf.Len() == 0 {
		return nil
	}
	return errors.New(buf.String())
}

// String returns a human readable rendering of the options.
func (o *Options) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "[Options]\n")
	fmt.Fprintf(&buf, "  block_size=%d\n", o.BlockSize)
	fmt.Fprintf(&buf, "  extent_size=%d\n", o.ExtentSize)
	fmt.Fprintf(&buf, "  max_extents=%d\n", o.MaxExtents)
	fmt.Fprintf(&buf, "  active_extents=%d\n", o.ActiveExtents)
	fmt.Fprintf(&buf, "  io_workers=%d\n", o.IOWorkers)
	fmt.Fprintf(&buf, "  read_ahead_size=%d\n", o.ReadAheadSize)
	fmt.Fprintf(&buf, "  disable_read_ahead=%t\n", o.DisableReadAhead)
	fmt.Fprintf(&buf, "  disable_automatic_gc=%t\n", o.DisableAutomaticGC)
	fmt.Fprintf(&buf, "  no_sync=%t\n", o.NoSync)
	fmt.Fprintf(&buf, "\n[GC]\n")
	fmt.Fprintf(&buf, "  high_ratio=%.2f\n", o.GC.HighRatio)
	fmt.Fprintf(&buf, "  low_ratio=%.2f\n", o.GC.LowRatio)
	fmt.Fprintf(&buf, "  max_concurrent=%d\n", o.GC.MaxConcurrent)
	fmt.Fprintf(&buf, "  young_extent_max_count=%d\n", o.GC.YoungExtentMaxCount)
	fmt.Fprintf(&buf, "  young_extent_time_limit=%s\n", o.GC.YoungExtentTimeLimit)
	fmt.Fprintf(&buf, "  target_bytes_per_second=%.0f\n", o.GC.TargetBytesPerSecond)
	return buf.String()
}
