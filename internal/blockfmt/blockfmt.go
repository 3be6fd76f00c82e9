// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package blockfmt implements the on-disk format of a block slot.
//
// A slot is BlockSize bytes: a fixed 32-byte header followed by the payload,
// zero padded to the end of the slot. All integers are little endian.
//
//	+---------+---------+---------+-------+---------+----------+---------+
//	| blockID |  txnID  |  size   | flags | (zero)  | checksum | payload |
//	| 8 bytes | 8 bytes | 4 bytes | 1 b   | 3 bytes | 8 bytes  | size b  |
//	+---------+---------+---------+-------+---------+----------+---------+
//
// The checksum is the xxhash64 of the first 24 header bytes followed by the
// payload. A slot whose header is entirely zero has never been written.
package blockfmt

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/extentstore/extentstore/internal/base"
)

// HeaderSize is the size of the block header.
const HeaderSize = 32

const (
	checksumOffset = 24
	flagsOffset    = 20

	flagDeleted = 1 << 0
	knownFlags  = flagDeleted
)

// ErrUnwritten is returned by Decode for a slot that was never written.
var ErrUnwritten = errors.New("extentstore: unwritten slot")

// Header is the decoded header of a block.
type Header struct {
	BlockID base.BlockID
	TxnID   base.TxnID
	// Size is the length of the payload.
	Size uint32
	// Deleted is set on tombstones.
	Deleted bool
}

// String implements fmt.Stringer.
func (h Header) String() string {
	s := fmt.Sprintf("%s %s size=%d", h.BlockID, h.TxnID, h.Size)
	if h.Deleted {
		s += " deleted"
	}
	return s
}

// MaxPayload returns the largest payload a slot of the given size can hold.
func MaxPayload(blockSize int64) int {
	return int(blockSize - HeaderSize)
}

// Buf is an owned, encoded block slot. Its length is always the block size.
// A Buf can only be obtained through NewBuf or FromSlot, both of which
// guarantee that the header, payload and checksum are consistent.
type Buf struct {
	b []byte
}

// NewBuf allocates a slot of blockSize bytes holding the given header and
// payload. h.Size is ignored and set from len(payload).
func NewBuf(blockSize int64, h Header, payload []byte) (*Buf, error) {
	if blockSize <= HeaderSize {
		return nil, errors.Newf("block size %d must exceed the header size %d", blockSize, HeaderSize)
	}
	if len(payload) > MaxPayload(blockSize) {
		return nil, errors.Newf("payload of %d bytes does not fit in a %d byte block",
			len(payload), blockSize)
	}
	b := alignedSlice(int(blockSize))
	binary.LittleEndian.PutUint64(b[0:8], uint64(h.BlockID))
	binary.LittleEndian.PutUint64(b[8:16], uint64(h.TxnID))
	binary.LittleEndian.PutUint32(b[16:20], uint32(len(payload)))
	if h.Deleted {
		b[flagsOffset] |= flagDeleted
	}
	copy(b[HeaderSize:], payload)
	binary.LittleEndian.PutUint64(b[checksumOffset:HeaderSize], checksum(b[:checksumOffset], payload))
	return &Buf{b: b}, nil
}

// FromSlot validates an encoded slot and wraps a copy of it. It is used to
// relocate a block verbatim, header and transaction id included.
func FromSlot(slot []byte) (*Buf, error) {
	if _, _, err := Decode(slot); err != nil {
		return nil, err
	}
	b := alignedSlice(len(slot))
	copy(b, slot)
	return &Buf{b: b}, nil
}

// Header returns the header of the block.
func (b *Buf) Header() Header {
	h, _ := decodeHeader(b.b)
	return h
}

// Payload returns the payload of the block.
func (b *Buf) Payload() []byte {
	h, _ := decodeHeader(b.b)
	return b.b[HeaderSize : HeaderSize+int(h.Size)]
}

// Bytes returns the full slot.
func (b *Buf) Bytes() []byte {
	return b.b
}

// Len returns the size of the slot.
func (b *Buf) Len() int {
	return len(b.b)
}

func decodeHeader(slot []byte) (Header, uint8) {
	flags := slot[flagsOffset]
	return Header{
		BlockID: base.BlockID(binary.LittleEndian.Uint64(slot[0:8])),
		TxnID:   base.TxnID(binary.LittleEndian.Uint64(slot[8:16])),
		Size:    binary.LittleEndian.Uint32(slot[16:20]),
		Deleted: flags&flagDeleted != 0,
	}, flags
}

// Decode decodes the slot, which must span the whole block. It returns
// ErrUnwritten if the header is all zeros, and a corruption error if the
// checksum does not match or the declared payload size does not fit in the
// slot.
func Decode(slot []byte) (Header, []byte, error) {
	if len(slot) <= HeaderSize {
		return Header{}, nil, base.CorruptionErrorf("slot of %d bytes is too short", errors.Safe(len(slot)))
	}
	if isZero(slot[:HeaderSize]) {
		return Header{}, nil, ErrUnwritten
	}
	h, flags := decodeHeader(slot)
	if flags&^knownFlags != 0 || !isZero(slot[flagsOffset+1:checksumOffset]) {
		return Header{}, nil, base.CorruptionErrorf("block header has unknown flags %#x", errors.Safe(flags))
	}
	if int64(h.Size) > int64(len(slot)-HeaderSize) {
		return Header{}, nil, base.CorruptionErrorf("block %s declares %d payload bytes, slot has room for %d",
			h.BlockID, errors.Safe(h.Size), errors.Safe(len(slot)-HeaderSize))
	}
	payload := slot[HeaderSize : HeaderSize+int(h.Size)]
	if sum := binary.LittleEndian.Uint64(slot[checksumOffset:HeaderSize]); sum != checksum(slot[:checksumOffset], payload) {
		return Header{}, nil, base.CorruptionErrorf("block %s checksum mismatch", h.BlockID)
	}
	return h, payload, nil
}

func checksum(hdr, payload []byte) uint64 {
	d := xxhash.New()
	_, _ = d.Write(hdr)
	_, _ = d.Write(payload)
	return d.Sum64()
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// alignedSlice allocates a byte slice of length n whose first byte is word
// aligned, so that slots can be handed to direct I/O paths.
func alignedSlice(n int) []byte {
	if n == 0 {
		return nil
	}
	a := make([]uint64, (n+7)/8)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&a[0])), n)
	if ptr := uintptr(unsafe.Pointer(&b[0])); ptr%unsafe.Sizeof(int(0)) != 0 {
		panic(errors.AssertionFailedf("allocated slice not %d-aligned: pointer %p",
			unsafe.Sizeof(int(0)), &b[0]))
	}
	return b
}
