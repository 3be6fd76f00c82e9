// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines the fundamental types shared by the extentstore
// packages: block and transaction identifiers, file offsets, the
// block/extent layout of a data file, errors and the logger interface.
//
// # Layout
//
// A data file is a sequence of fixed-size extents. Every extent is a sequence
// of fixed-size slots, and every slot holds at most one block (a header
// followed by the payload). The file size is always a multiple of the extent
// size and the extent size is always a multiple of the block size.
package base
