// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package metablock implements the metablock mixin: a versioned snapshot of
// the data block manager's extent states, sufficient to rebuild them on the
// next start without a reconstruction scan.
//
// Encoded mixin:
//
//	+-------------+---------------+----------------+---------------------+
//	| magic (4B)  | version (4B)  | xxhash64 (8B)  | snappy(body)        |
//	+-------------+---------------+----------------+---------------------+
//
// The checksum covers the uncompressed body. The body is a sequence of
// uvarints: block size, extent size, extent count, and for each extent its
// offset, a flags byte, the next slot to write and the live bitmap (length
// prefixed).
package metablock

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
	"github.com/extentstore/extentstore/internal/base"
	"github.com/extentstore/extentstore/vfs"
	"github.com/golang/snappy"
)

const (
	magic = 0x6d657874 // "txem"

	// Version1 is the only version written today.
	Version1       uint32 = 1
	currentVersion        = Version1

	headerLen = 16

	flagActive = 1 << 0
)

// Mixin is the persisted summary of the extents in use.
type Mixin struct {
	Version uint32
	Layout  base.Layout
	// Extents is sorted by offset.
	Extents []ExtentRecord
}

// ExtentRecord describes one extent in use.
type ExtentRecord struct {
	Offset base.Offset
	// Active is set for an extent that was being written; writing resumes at
	// NextSlot.
	Active   bool
	NextSlot int
	Live     Bitmap
}

// LiveSlots returns the number of live slots in the extent.
func (r ExtentRecord) LiveSlots() int {
	return r.Live.Count()
}

// String implements fmt.Stringer.
func (m Mixin) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "version %d, block size %d, extent size %d\n",
		m.Version, m.Layout.BlockSize, m.Layout.ExtentSize)
	for _, e := range m.Extents {
		fmt.Fprintf(&b, "  %s: live=%d", e.Offset, e.LiveSlots())
		if e.Active {
			fmt.Fprintf(&b, " active next=%d", e.NextSlot)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Bitmap is a fixed-size set of slot indexes.
type Bitmap []byte

// MakeBitmap returns a bitmap for n slots.
func MakeBitmap(n int) Bitmap {
	return make(Bitmap, (n+7)/8)
}

// Set marks slot i.
func (b Bitmap) Set(i int) {
	b[i/8] |= 1 << (i % 8)
}

// Clear unmarks slot i.
func (b Bitmap) Clear(i int) {
	b[i/8] &^= 1 << (i % 8)
}

// Get returns true if slot i is marked.
func (b Bitmap) Get(i int) bool {
	if i/8 >= len(b) {
		return false
	}
	return b[i/8]&(1<<(i%8)) != 0
}

// Last returns the highest marked slot, or -1 if none is marked.
func (b Bitmap) Last() int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0 {
			return i*8 + 7 - bits.LeadingZeros8(b[i])
		}
	}
	return -1
}

// Count returns the number of marked slots.
func (b Bitmap) Count() int {
	n := 0
	for _, x := range b {
		n += bits.OnesCount8(x)
	}
	return n
}

// Encode serializes the mixin using the current version.
func Encode(m Mixin) []byte {
	var body []byte
	body = binary.AppendUvarint(body, uint64(m.Layout.BlockSize))
	body = binary.AppendUvarint(body, uint64(m.Layout.ExtentSize))
	body = binary.AppendUvarint(body, uint64(len(m.Extents)))
	for _, e := range m.Extents {
		body = binary.AppendUvarint(body, uint64(e.Offset))
		var flags byte
		if e.Active {
			flags |= flagActive
		}
		body = append(body, flags)
		body = binary.AppendUvarint(body, uint64(e.NextSlot))
		body = binary.AppendUvarint(body, uint64(len(e.Live)))
		body = append(body, e.Live...)
	}

	buf := make([]byte, headerLen, headerLen+snappy.MaxEncodedLen(len(body)))
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], currentVersion)
	binary.LittleEndian.PutUint64(buf[8:16], xxhash.Sum64(body))
	return append(buf, snappy.Encode(nil, body)...)
}

// Decode parses an encoded mixin. Any malformation is reported as a
// corruption error.
func Decode(buf []byte) (Mixin, error) {
	if len(buf) < headerLen {
		return Mixin{}, base.CorruptionErrorf("metablock: %d bytes is too short", errors.Safe(len(buf)))
	}
	if v := binary.LittleEndian.Uint32(buf[0:4]); v != magic {
		return Mixin{}, base.CorruptionErrorf("metablock: bad magic %#x", errors.Safe(v))
	}
	version := binary.LittleEndian.Uint32(buf[4:8])
	if version != Version1 {
		return Mixin{}, base.CorruptionErrorf("metablock: unknown version %d", errors.Safe(version))
	}
	body, err := snappy.Decode(nil, buf[headerLen:])
	if err != nil {
		return Mixin{}, base.MarkCorruptionError(errors.Wrap(err, "metablock"))
	}
	if sum := xxhash.Sum64(body); sum != binary.LittleEndian.Uint64(buf[8:16]) {
		return Mixin{}, base.CorruptionErrorf("metablock: checksum mismatch")
	}

	d := decoder{b: body}
	m := Mixin{Version: version}
	m.Layout.BlockSize = int64(d.uvarint())
	m.Layout.ExtentSize = int64(d.uvarint())
	n := d.uvarint()
	if d.err == nil {
		if err := m.Layout.Validate(); err != nil {
			return Mixin{}, base.MarkCorruptionError(errors.Wrap(err, "metablock"))
		}
	}
	slots := m.Layout.SlotsPerExtent()
	for i := uint64(0); i < n && d.err == nil; i++ {
		var e ExtentRecord
		e.Offset = base.Offset(d.uvarint())
		flags := d.readByte()
		e.Active = flags&flagActive != 0
		e.NextSlot = int(d.uvarint())
		e.Live = Bitmap(d.bytes(int(d.uvarint())))
		if d.err != nil {
			break
		}
		switch {
		case flags&^flagActive != 0:
			d.err = errors.Newf("extent %s: unknown flags %#x", e.Offset, errors.Safe(flags))
		case int64(e.Offset)%m.Layout.ExtentSize != 0:
			d.err = errors.Newf("extent %s is not aligned", e.Offset)
		case e.NextSlot > slots || len(e.Live) != (slots+7)/8:
			d.err = errors.Newf("extent %s: slot state does not match the layout", e.Offset)
		case len(m.Extents) > 0 && m.Extents[len(m.Extents)-1].Offset >= e.Offset:
			d.err = errors.Newf("extent %s is out of order", e.Offset)
		}
		m.Extents = append(m.Extents, e)
	}
	if d.err == nil && len(d.b) > 0 {
		d.err = errors.Newf("%d trailing bytes", errors.Safe(len(d.b)))
	}
	if d.err != nil {
		return Mixin{}, base.MarkCorruptionError(errors.Wrap(d.err, "metablock"))
	}
	return m, nil
}

type decoder struct {
	b   []byte
	err error
}

var errTruncated = errors.New("truncated body")

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.b)
	if n <= 0 {
		d.err = errTruncated
		return 0
	}
	d.b = d.b[n:]
	return v
}

func (d *decoder) readByte() byte {
	if d.err != nil {
		return 0
	}
	if len(d.b) == 0 {
		d.err = errTruncated
		return 0
	}
	v := d.b[0]
	d.b = d.b[1:]
	return v
}

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > len(d.b) {
		d.err = errTruncated
		return nil
	}
	v := append([]byte(nil), d.b[:n]...)
	d.b = d.b[n:]
	return v
}

// File persists the mixin in a file of its own.
type File struct {
	FS   vfs.FS
	Path string
}

// Write atomically replaces the file with the encoded mixin.
func (f File) Write(m Mixin) error {
	return vfs.WriteFileAtomically(f.FS, f.Path, Encode(m))
}

// Read reads and decodes the file. It returns false if the file does not
// exist.
func (f File) Read() (Mixin, bool, error) {
	buf, err := vfs.ReadFile(f.FS, f.Path)
	if oserror.IsNotExist(err) {
		return Mixin{}, false, nil
	} else if err != nil {
		return Mixin{}, false, err
	}
	m, err := Decode(buf)
	if err != nil {
		return Mixin{}, false, errors.Wrapf(err, "reading %s", f.Path)
	}
	return m, true, nil
}
