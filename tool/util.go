// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/extentstore/extentstore"
	"github.com/extentstore/extentstore/internal/base"
	"github.com/extentstore/extentstore/internal/blockfmt"
	"github.com/extentstore/extentstore/internal/metablock"
	"github.com/extentstore/extentstore/vfs"
	"github.com/spf13/cobra"
)

// formatter formats block payloads.
type formatter struct {
	spec string
	fn   func(w io.Writer, v []byte)
}

func (f *formatter) String() string {
	return f.spec
}

func (f *formatter) Type() string {
	return "formatter"
}

func (f *formatter) Set(spec string) error {
	f.spec = spec
	switch spec {
	case "hex":
		f.fn = formatHex
	case "null":
		f.fn = formatNull
	case "quoted":
		f.fn = formatQuoted
	case "size":
		f.fn = formatSize
	default:
		if strings.Count(spec, "%") != 1 {
			return errors.Newf("unknown formatter: %q", spec)
		}
		f.fn = func(w io.Writer, v []byte) {
			fmt.Fprintf(w, f.spec, v)
		}
	}
	return nil
}

func (f *formatter) mustSet(spec string) {
	if err := f.Set(spec); err != nil {
		panic(err)
	}
}

func formatHex(w io.Writer, v []byte) {
	fmt.Fprintf(w, "[% x]", v)
}

func formatNull(w io.Writer, v []byte) {
}

func formatQuoted(w io.Writer, v []byte) {
	q := strconv.AppendQuote(make([]byte, 0, len(v)), string(v))
	q = q[1 : len(q)-1]
	_, _ = w.Write(q)
}

func formatSize(w io.Writer, v []byte) {
	fmt.Fprintf(w, "<%d bytes>", len(v))
}

// fileFlags selects the data file, its metablock file and the geometry the
// data file was written with.
type fileFlags struct {
	file       string
	metaFile   string
	blockSize  int64
	extentSize int64
}

func (f *fileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "file", "", "data file")
	cmd.Flags().StringVar(
		&f.metaFile, "metadata-file", "", "metablock file (defaults to the data file with a .meta suffix)")
	cmd.Flags().Int64Var(
		&f.blockSize, "block-size", 0, "block size (defaults to the metablock's, or 4 KB)")
	cmd.Flags().Int64Var(
		&f.extentSize, "extent-size", 0, "extent size (defaults to the metablock's, or 1 MB)")
	_ = cmd.MarkFlagRequired("file")
}

func (f *fileFlags) metaPath() string {
	if f.metaFile != "" {
		return f.metaFile
	}
	return extentstore.MetablockPath(f.file)
}

// readMetablock reads the metablock file; the returned bool is false if it
// does not exist.
func (f *fileFlags) readMetablock(fs vfs.FS) (metablock.Mixin, bool, error) {
	return metablock.File{FS: fs, Path: f.metaPath()}.Read()
}

// resolveLayout returns the geometry given by the flags. Unset sizes are taken
// from the metablock if there is one, and from the defaults otherwise.
func (f *fileFlags) resolveLayout(fs vfs.FS) (base.Layout, error) {
	l := base.Layout{BlockSize: f.blockSize, ExtentSize: f.extentSize}
	if l.BlockSize == 0 || l.ExtentSize == 0 {
		m, ok, err := f.readMetablock(fs)
		if err != nil {
			return base.Layout{}, err
		}
		def := base.Layout{BlockSize: extentstore.DefaultBlockSize, ExtentSize: extentstore.DefaultExtentSize}
		if ok {
			def = m.Layout
		}
		if l.BlockSize == 0 {
			l.BlockSize = def.BlockSize
		}
		if l.ExtentSize == 0 {
			l.ExtentSize = def.ExtentSize
		}
	}
	if err := l.Validate(); err != nil {
		return base.Layout{}, err
	}
	if l.BlockSize <= blockfmt.HeaderSize {
		return base.Layout{}, errors.Newf("block size %d must exceed the block header size %d",
			l.BlockSize, blockfmt.HeaderSize)
	}
	return l, nil
}

// openData opens the data file for reading and returns it along with its
// size.
func openData(fs vfs.FS, path string) (vfs.File, int64, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return nil, 0, errors.CombineErrors(err, f.Close())
	}
	return f, info.Size(), nil
}

// fileWriter writes sequentially to a vfs.File.
type fileWriter struct {
	f   vfs.File
	off int64
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.f.WriteAt(p, w.off)
	w.off += int64(n)
	return n, err
}

// writerLogger is a base.Logger writing lines to w.
type writerLogger struct {
	w io.Writer
}

var _ base.Logger = writerLogger{}

func (l writerLogger) Infof(format string, args ...interface{}) {
	fmt.Fprintf(l.w, format+"\n", args...)
}

func (l writerLogger) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(l.w, format+"\n", args...)
}

func (l writerLogger) Fatalf(format string, args ...interface{}) {
	panic(errors.Newf(format, args...))
}
