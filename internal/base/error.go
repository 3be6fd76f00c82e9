// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// ErrNotFound means that a read or delete did not find the requested block.
var ErrNotFound = errors.New("extentstore: not found")

// ErrCorruption is a marker to indicate that data in a file (a block header,
// a metablock) is corrupted.
var ErrCorruption = errors.New("extentstore: corruption")

// ErrOutOfRange is returned when an offset falls outside the file or inside
// an extent that is not allocated, or a block id exceeds MaxBlockID. Such
// values are never clamped.
var ErrOutOfRange = errors.New("extentstore: out of range")

// MarkCorruptionError marks given error as a corruption error.
func MarkCorruptionError(err error) error {
	if errors.Is(err, ErrCorruption) {
		return err
	}
	return errors.Mark(err, ErrCorruption)
}

// IsCorruptionError returns true if the given error indicates corruption.
func IsCorruptionError(err error) bool {
	return errors.Is(err, ErrCorruption)
}

// CorruptionErrorf formats according to a format specifier and returns
// the string as an error value that is marked as a corruption error.
func CorruptionErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

// OutOfRangeErrorf returns an error marked with ErrOutOfRange.
func OutOfRangeErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrOutOfRange)
}
