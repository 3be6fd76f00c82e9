// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package extentstore

import (
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
	"github.com/extentstore/extentstore/internal/ioqueue"
)

// ExtentMetrics describes the extents of the data file.
type ExtentMetrics struct {
	// Total is the number of extents in the data file.
	Total int
	InUse int
	Free  int

	BeingWritten int
	Young        int
	Old          int

	// LiveBytes and GarbageBytes are summed over the extents in use.
	LiveBytes    int64
	GarbageBytes int64
	// GarbageRatio is the aggregate garbage ratio of old extents, which drives
	// garbage collection.
	GarbageRatio float64
}

func (e ExtentMetrics) summary() string {
	return redact.Sprintf("%d extents in use, %s live, %s garbage",
		redact.SafeInt(e.InUse), humanBytes(e.LiveBytes), humanBytes(e.GarbageBytes)).StripMarkers()
}

// GCMetrics describes garbage collection.
type GCMetrics struct {
	// Active is set while the garbage ratio has not yet dropped to the low
	// ratio since it last exceeded the high ratio.
	Active  bool
	Running int

	Passes int64
	// Aborted is the number of passes abandoned because the extent was emptied
	// concurrently.
	Aborted          int64
	RelocatedBlocks  int64
	RelocatedBytes   int64
	ReclaimedExtents int64
}

// Metrics holds metrics for a Store.
type Metrics struct {
	Extents ExtentMetrics
	GC      GCMetrics
	// Blocks is the number of block ids with a current version, tombstones
	// included.
	Blocks int
	IO     struct {
		Foreground ioqueue.AccountMetrics
		GC         ioqueue.AccountMetrics
	}
}

func humanBytes(n int64) redact.SafeString {
	return redact.SafeString(crhumanize.Bytes(n, crhumanize.Compact, crhumanize.OmitI))
}

func humanCount(n int64) redact.SafeString {
	return redact.SafeString(crhumanize.Count(n, crhumanize.Compact))
}

// SafeFormat implements redact.SafeFormatter.
func (m *Metrics) SafeFormat(w redact.SafePrinter, _ rune) {
	e := &m.Extents
	w.Printf("extents: %d total, %d in use (%d being written, %d young, %d old), %d free\n",
		redact.SafeInt(e.Total), redact.SafeInt(e.InUse), redact.SafeInt(e.BeingWritten),
		redact.SafeInt(e.Young), redact.SafeInt(e.Old), redact.SafeInt(e.Free))
	w.Printf("bytes: %s live, %s garbage, old garbage ratio %s\n",
		humanBytes(e.LiveBytes), humanBytes(e.GarbageBytes),
		redact.SafeString(crhumanize.Percent(e.GarbageRatio, 1)))

	g := &m.GC
	state := redact.SafeString("inactive")
	if g.Active {
		state = "active"
	}
	w.Printf("gc: %s, %d running, %s passes (%s aborted), %s blocks relocated (%s), %s extents reclaimed\n",
		state, redact.SafeInt(g.Running), humanCount(g.Passes), humanCount(g.Aborted),
		humanCount(g.RelocatedBlocks), humanBytes(g.RelocatedBytes), humanCount(g.ReclaimedExtents))
	w.Printf("blocks: %s\n", humanCount(int64(m.Blocks)))
	for _, a := range []struct {
		name redact.SafeString
		m    *ioqueue.AccountMetrics
	}{{"foreground", &m.IO.Foreground}, {"gc", &m.IO.GC}} {
		w.Printf("io %s: %s reads (%s), %s writes (%s), %s errors\n", a.name,
			humanCount(a.m.Reads), humanBytes(a.m.ReadBytes),
			humanCount(a.m.Writes), humanBytes(a.m.WriteBytes), humanCount(a.m.Errors))
	}
}

// String pretty-prints the metrics.
func (m *Metrics) String() string {
	return redact.StringWithoutMarkers(m)
}
