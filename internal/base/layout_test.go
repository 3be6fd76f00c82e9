// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	l := Layout{BlockSize: 64, ExtentSize: 256}
	require.NoError(t, l.Validate())
	require.Equal(t, 4, l.SlotsPerExtent())
	require.Equal(t, 2, l.ExtentIndex(600))
	require.Equal(t, Offset(512), l.ExtentStart(600))
	require.Equal(t, 1, l.SlotIndex(320))
	require.Equal(t, Offset(320), l.SlotOffset(1, 1))
	require.True(t, l.IsSlotAligned(128))
	require.False(t, l.IsSlotAligned(130))

	require.NoError(t, l.CheckFileSize(1024))
	require.True(t, IsCorruptionError(l.CheckFileSize(1000)))

	require.Error(t, Layout{BlockSize: 64, ExtentSize: 100}.Validate())
	require.Error(t, Layout{BlockSize: 0, ExtentSize: 100}.Validate())
}

func TestFlaggedOffset(t *testing.T) {
	f := MakeFlaggedOffset(4096, false)
	require.False(t, f.IsNull())
	require.False(t, f.IsDeleted())
	require.Equal(t, Offset(4096), f.Offset())
	require.Equal(t, "4096", f.String())

	d := MakeFlaggedOffset(4096, true)
	require.True(t, d.IsDeleted())
	require.Equal(t, Offset(4096), d.Offset())
	require.Equal(t, "4096(deleted)", d.String())

	require.True(t, NullOffset.IsNull())
	require.False(t, NullOffset.IsDeleted())
	require.Equal(t, "null", NullOffset.String())

	require.Equal(t, "b7", BlockID(7).String())
	require.Equal(t, "t9", TxnID(9).String())
}
