// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package extent

import (
	"slices"
	"testing"

	"github.com/extentstore/extentstore/internal/base"
	"github.com/stretchr/testify/require"
)

func TestManagerGenRelease(t *testing.T) {
	m := New(100, 0, 0)
	for i := 0; i < 3; i++ {
		off, err := m.Gen()
		require.NoError(t, err)
		require.Equal(t, base.Offset(i*100), off)
	}
	require.Equal(t, int64(300), m.FileSize())

	m.Release(100)
	m.Release(0)
	require.False(t, m.InUse(0))
	require.True(t, m.InUse(250))
	require.Equal(t, "extents: 3 total, 1 in use, 2 free", m.Stats().String())

	// The lowest free extent is handed out first.
	off, err := m.Gen()
	require.NoError(t, err)
	require.Equal(t, base.Offset(0), off)

	require.Panics(t, func() { m.Release(100) })
	require.Panics(t, func() { m.Release(50) })
}

func TestManagerMaxExtents(t *testing.T) {
	m := New(100, 200, 2)
	_, err := m.Gen()
	require.NoError(t, err)
	_, err = m.Gen()
	require.NoError(t, err)
	_, err = m.Gen()
	require.ErrorIs(t, err, ErrNoSpace)

	m.Release(100)
	off, err := m.Gen()
	require.NoError(t, err)
	require.Equal(t, base.Offset(100), off)
}

func TestManagerReserve(t *testing.T) {
	m := New(100, 300, 0)
	m.Reserve(100)
	m.Reserve(100)
	m.Reserve(500)
	require.Equal(t, int64(600), m.FileSize())
	require.Equal(t, []base.Offset{100, 500}, slices.Collect(m.InUseExtents()))

	// Reserved extents are never handed out by Gen.
	var got []base.Offset
	for i := 0; i < 4; i++ {
		off, err := m.Gen()
		require.NoError(t, err)
		got = append(got, off)
	}
	require.Equal(t, []base.Offset{0, 200, 300, 400}, got)
}

func TestManagerCheckOffset(t *testing.T) {
	m := New(100, 300, 0)
	m.Reserve(100)
	require.NoError(t, m.CheckOffset(150))
	require.ErrorIs(t, m.CheckOffset(50), base.ErrOutOfRange)
	require.ErrorIs(t, m.CheckOffset(300), base.ErrOutOfRange)
	require.ErrorIs(t, m.CheckOffset(-1), base.ErrOutOfRange)
}
