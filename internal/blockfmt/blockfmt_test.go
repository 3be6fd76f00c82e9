// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockfmt

import (
	"testing"
	"unsafe"

	"github.com/extentstore/extentstore/internal/base"
	"github.com/stretchr/testify/require"
)

func TestBufRoundTrip(t *testing.T) {
	h := Header{BlockID: 12, TxnID: 99}
	b, err := NewBuf(128, h, []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, 128, b.Len())
	require.Equal(t, Header{BlockID: 12, TxnID: 99, Size: 7}, b.Header())
	require.Equal(t, "payload", string(b.Payload()))
	require.Zero(t, uintptr(unsafe.Pointer(&b.Bytes()[0]))%8)

	got, payload, err := Decode(b.Bytes())
	require.NoError(t, err)
	require.Equal(t, b.Header(), got)
	require.Equal(t, "payload", string(payload))

	d, err := NewBuf(128, Header{BlockID: 3, TxnID: 4, Deleted: true}, nil)
	require.NoError(t, err)
	got, payload, err = Decode(d.Bytes())
	require.NoError(t, err)
	require.True(t, got.Deleted)
	require.Empty(t, payload)
	require.Equal(t, "b3 t4 size=0 deleted", got.String())
}

func TestNewBufValidation(t *testing.T) {
	_, err := NewBuf(HeaderSize, Header{}, nil)
	require.Error(t, err)

	_, err = NewBuf(64, Header{}, make([]byte, MaxPayload(64)))
	require.NoError(t, err)
	_, err = NewBuf(64, Header{}, make([]byte, MaxPayload(64)+1))
	require.Error(t, err)
}

func TestDecodeCorruption(t *testing.T) {
	_, _, err := Decode(make([]byte, 64))
	require.ErrorIs(t, err, ErrUnwritten)

	b, err := NewBuf(64, Header{BlockID: 1, TxnID: 1}, []byte("abc"))
	require.NoError(t, err)

	flip := func(i int) []byte {
		s := append([]byte(nil), b.Bytes()...)
		s[i] ^= 0xff
		return s
	}
	// Payload bit flip.
	_, _, err = Decode(flip(HeaderSize + 1))
	require.True(t, base.IsCorruptionError(err))
	// Block id bit flip.
	_, _, err = Decode(flip(0))
	require.True(t, base.IsCorruptionError(err))
	// Declared size larger than the slot.
	_, _, err = Decode(flip(19))
	require.True(t, base.IsCorruptionError(err))
	// Unknown flag.
	_, _, err = Decode(flip(flagsOffset))
	require.True(t, base.IsCorruptionError(err))
	// Too short to be a slot.
	_, _, err = Decode(b.Bytes()[:HeaderSize])
	require.True(t, base.IsCorruptionError(err))

	_, err = FromSlot(flip(HeaderSize + 1))
	require.True(t, base.IsCorruptionError(err))
	c, err := FromSlot(b.Bytes())
	require.NoError(t, err)
	require.Equal(t, b.Bytes(), c.Bytes())
}
