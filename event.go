// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package extentstore

import (
	"time"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
)

// GCInfo contains the info for a garbage collection event.
type GCInfo struct {
	// JobID is the ID of the garbage collection job.
	JobID int
	// Extent is the offset of the extent being collected.
	Extent Offset
	// GarbageRatio is the garbage ratio of the extent when it was picked.
	GarbageRatio float64
	// Relocated is the number of blocks moved out of the extent.
	Relocated int
	// Bytes is the number of bytes written by the relocation.
	Bytes int64
	// Aborted is set when the pass gave up without relocating, because a
	// concurrent write emptied the extent.
	Aborted  bool
	Duration time.Duration
	Done     bool
	Err      error
}

func (i GCInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i GCInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	if i.Err != nil {
		w.Printf("[JOB %d] extent GC error: %s: %s", redact.Safe(i.JobID), i.Extent, i.Err)
		return
	}
	if !i.Done {
		w.Printf("[JOB %d] collecting extent %s (garbage %s)",
			redact.Safe(i.JobID), i.Extent, crhumanize.Percent(i.GarbageRatio, 1))
		return
	}
	if i.Aborted {
		w.Printf("[JOB %d] collection of extent %s abandoned; emptied concurrently",
			redact.Safe(i.JobID), i.Extent)
		return
	}
	w.Printf("[JOB %d] collected extent %s; relocated %d blocks (%s) in %.1fs",
		redact.Safe(i.JobID), i.Extent, redact.Safe(i.Relocated),
		crhumanize.Bytes(i.Bytes, crhumanize.Compact, crhumanize.OmitI),
		redact.Safe(i.Duration.Seconds()))
}

// ExtentReclaimedInfo contains the info for an extent returned to the free
// set.
type ExtentReclaimedInfo struct {
	Extent Offset
	// GarbageBytes is the number of garbage bytes the extent held.
	GarbageBytes int64
}

func (i ExtentReclaimedInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i ExtentReclaimedInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("reclaimed extent %s (%s garbage)", i.Extent,
		crhumanize.Bytes(i.GarbageBytes, crhumanize.Compact, crhumanize.OmitI))
}

// EventListener contains a set of functions that will be invoked when various
// significant events occur. Note that the functions should not run for an
// excessive amount of time as they are invoked synchronously, in some cases
// while internal locks are held. They must not call back into the Store.
type EventListener struct {
	// BackgroundError is invoked whenever an error occurs during a background
	// operation such as garbage collection.
	BackgroundError func(error)

	// GCBegin is invoked after the inputs of an extent collection have been
	// determined, but before the collection has produced any output.
	GCBegin func(GCInfo)

	// GCEnd is invoked after an extent collection has completed or been
	// abandoned.
	GCEnd func(GCInfo)

	// ExtentReclaimed is invoked whenever an extent is returned to the free
	// set.
	ExtentReclaimed func(ExtentReclaimedInfo)

	// RecoveryWarning is invoked when recovery finds a problem it can work
	// around, such as gaps in the block id space.
	RecoveryWarning func(string)
}

// EnsureDefaults ensures that background error events are logged to the
// specified logger if a handler for those events hasn't been otherwise
// specified. Ensure all handlers are non-nil so that we don't have to check
// for nil-ness before invoking.
func (l *EventListener) EnsureDefaults(logger Logger) {
	if l.BackgroundError == nil {
		if logger != nil {
			l.BackgroundError = func(err error) {
				logger.Errorf("background error: %s", err)
			}
		} else {
			l.BackgroundError = func(error) {}
		}
	}
	if l.GCBegin == nil {
		l.GCBegin = func(GCInfo) {}
	}
	if l.GCEnd == nil {
		l.GCEnd = func(GCInfo) {}
	}
	if l.ExtentReclaimed == nil {
		l.ExtentReclaimed = func(ExtentReclaimedInfo) {}
	}
	if l.RecoveryWarning == nil {
		l.RecoveryWarning = func(string) {}
	}
}

// MakeLoggingEventListener creates an EventListener that logs all events to the
// specified logger.
func MakeLoggingEventListener(logger Logger) EventListener {
	if logger == nil {
		logger = DefaultLogger
	}

	return EventListener{
		BackgroundError: func(err error) {
			logger.Errorf("background error: %s", err)
		},
		GCBegin: func(info GCInfo) {
			logger.Infof("%s", info)
		},
		GCEnd: func(info GCInfo) {
			logger.Infof("%s", info)
		},
		ExtentReclaimed: func(info ExtentReclaimedInfo) {
			logger.Infof("%s", info)
		},
		RecoveryWarning: func(msg string) {
			logger.Infof("recovery: %s", msg)
		},
	}
}
