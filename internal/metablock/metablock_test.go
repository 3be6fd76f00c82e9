// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package metablock

import (
	"testing"

	"github.com/extentstore/extentstore/internal/base"
	"github.com/extentstore/extentstore/vfs"
	"github.com/stretchr/testify/require"
)

func testMixin() Mixin {
	layout := base.Layout{BlockSize: 64, ExtentSize: 640}
	live0 := MakeBitmap(10)
	live0.Set(0)
	live0.Set(3)
	live0.Set(9)
	live1 := MakeBitmap(10)
	live1.Set(1)
	return Mixin{
		Version: Version1,
		Layout:  layout,
		Extents: []ExtentRecord{
			{Offset: 0, Live: live0, NextSlot: 10},
			{Offset: 1280, Active: true, NextSlot: 2, Live: live1},
		},
	}
}

func TestEncodeDecode(t *testing.T) {
	m := testMixin()
	got, err := Decode(Encode(m))
	require.NoError(t, err)
	require.Equal(t, m, got)
	require.Equal(t, 3, got.Extents[0].LiveSlots())
	require.Equal(t,
		"version 1, block size 64, extent size 640\n"+
			"  0: live=3\n"+
			"  1280: live=1 active next=2\n",
		got.String())
}

func TestDecodeCorruption(t *testing.T) {
	good := Encode(testMixin())

	corrupt := func(fn func(b []byte) []byte) error {
		b := append([]byte(nil), good...)
		_, err := Decode(fn(b))
		return err
	}
	for name, fn := range map[string]func(b []byte) []byte{
		"short":    func(b []byte) []byte { return b[:10] },
		"magic":    func(b []byte) []byte { b[0] ^= 1; return b },
		"version":  func(b []byte) []byte { b[4] = 9; return b },
		"checksum": func(b []byte) []byte { b[8] ^= 1; return b },
		"body":     func(b []byte) []byte { return b[:len(b)-1] },
	} {
		t.Run(name, func(t *testing.T) {
			err := corrupt(fn)
			require.Error(t, err)
			require.True(t, base.IsCorruptionError(err), "%v", err)
		})
	}
}

func TestBitmap(t *testing.T) {
	b := MakeBitmap(17)
	require.Len(t, b, 3)
	b.Set(16)
	b.Set(0)
	require.True(t, b.Get(16))
	require.False(t, b.Get(15))
	require.False(t, b.Get(100))
	require.Equal(t, 2, b.Count())
	require.Equal(t, 16, b.Last())
	b.Clear(16)
	require.Equal(t, 0, b.Last())
	b.Clear(0)
	require.Equal(t, -1, b.Last())
}

func TestFile(t *testing.T) {
	fs := vfs.NewMem()
	f := File{FS: fs, Path: "data.meta"}

	_, ok, err := f.Read()
	require.NoError(t, err)
	require.False(t, ok)

	m := testMixin()
	require.NoError(t, f.Write(m))
	got, ok, err := f.Read()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m, got)

	// The temporary file is renamed away.
	require.Equal(t, []string{"data.meta"}, fs.List())
}
