// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/extentstore/extentstore/internal/base"
	"github.com/extentstore/extentstore/registry"
	"github.com/extentstore/extentstore/vfs"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
)

// Extractor dumps the current version of every block of a data file. Slots
// are visited in offset order; a slot is dumped only if the rebuilt mapping
// associates its block id with exactly that slot.
type Extractor struct {
	FS     vfs.FS
	Path   string
	Layout base.Layout
	// Logger receives a line for every skipped slot. Defaults to no logging.
	Logger base.Logger
}

// ExtractResult summarizes an Extract.
type ExtractResult struct {
	Records int
	Skipped int
}

// Extract calls fn for every current block that is not a tombstone. The
// payload is only valid during the call.
func (e *Extractor) Extract(
	ctx context.Context, fn func(id base.BlockID, payload []byte) error,
) (ExtractResult, error) {
	var res ExtractResult
	logger := e.Logger
	if logger == nil {
		logger = base.NoopLoggerForTesting
	}
	f, size, err := openData(e.FS, e.Path)
	if err != nil {
		return res, err
	}
	defer f.Close()

	built, err := registry.Build(ctx, f, size, e.Layout, nil)
	if err != nil {
		return res, err
	}
	if !built.Registry.CheckBlockIDContiguity() {
		logger.Infof("block ids are not contiguous; extracting what is present")
	}
	mapping := built.Registry.DestroyTransactionIDs()

	err = registry.Scan(ctx, f, size, e.Layout, func(o *registry.Observation) error {
		if o.Err != nil {
			res.Skipped++
			logger.Infof("skipping %s: %v", o.Offset, o.Err)
			return nil
		}
		id := o.Header.BlockID
		cur, ok := mapping.Get(id)
		switch {
		case !ok || cur.Offset() != o.Offset:
			res.Skipped++
			logger.Infof("skipping %s: %s superseded by %s", o.Offset, id, cur)
			return nil
		case cur.IsDeleted():
			res.Skipped++
			logger.Infof("skipping %s: %s deleted", o.Offset, id)
			return nil
		}
		res.Records++
		return fn(id, o.Payload)
	})
	return res, err
}

// A record in extracted output is the block id and the payload length as
// uvarints, followed by the payload.

func appendRecord(dst []byte, id base.BlockID, payload []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(id))
	dst = binary.AppendUvarint(dst, uint64(len(payload)))
	return append(dst, payload...)
}

// ReadRecords decodes extracted output, calling fn for every record. The
// payload is only valid during the call.
func ReadRecords(r io.Reader, fn func(id base.BlockID, payload []byte) error) error {
	br := bufio.NewReader(r)
	var buf []byte
	for {
		id, err := binary.ReadUvarint(br)
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Wrap(err, "reading record id")
		}
		n, err := binary.ReadUvarint(br)
		if err != nil {
			return errors.Wrapf(err, "reading length of %s", base.BlockID(id))
		}
		if uint64(cap(buf)) < n {
			buf = make([]byte, n)
		}
		buf = buf[:n]
		if _, err := io.ReadFull(br, buf); err != nil {
			return errors.Wrapf(err, "reading payload of %s", base.BlockID(id))
		}
		if err := fn(base.BlockID(id), buf); err != nil {
			return err
		}
	}
}

// ReadCompressedRecords decodes extracted output written with --compress.
func ReadCompressedRecords(r io.Reader, fn func(id base.BlockID, payload []byte) error) error {
	d, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer d.Close()
	return ReadRecords(d, fn)
}

// extractT implements the extract command.
type extractT struct {
	Root *cobra.Command

	t        *T
	files    fileFlags
	output   string
	compress bool
	verbose  bool
	fmtValue formatter
}

func newExtract(t *T) *extractT {
	e := &extractT{t: t}
	e.fmtValue.mustSet("quoted")
	e.Root = &cobra.Command{
		Use:   "extract",
		Short: "dump the current version of every block",
		Long: `
Scan the data file in offset order and dump every block that is the current
version of its block id. Without --output-file the blocks are printed, one per
line; with it they are written as binary records.
`,
		Args: cobra.NoArgs,
		Run:  e.run,
	}
	e.files.register(e.Root)
	e.Root.Flags().StringVarP(&e.output, "output-file", "o", "", "write binary records to this file")
	e.Root.Flags().BoolVar(&e.compress, "compress", false, "zstd-compress the output file")
	e.Root.Flags().BoolVarP(&e.verbose, "verbose", "v", false, "log every skipped slot")
	e.Root.Flags().Var(&e.fmtValue, "value", "payload formatter when printing")
	return e
}

func (e *extractT) run(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if err := e.runE(stdout); err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
	}
}

func (e *extractT) runE(stdout io.Writer) (err error) {
	layout, err := e.files.resolveLayout(e.t.fs)
	if err != nil {
		return err
	}
	x := &Extractor{FS: e.t.fs, Path: e.files.file, Layout: layout}
	if e.verbose {
		x.Logger = writerLogger{w: stdout}
	}
	ctx := context.Background()

	if e.output == "" {
		res, err := x.Extract(ctx, func(id base.BlockID, payload []byte) error {
			fmt.Fprintf(stdout, "%s ", id)
			e.fmtValue.fn(stdout, payload)
			fmt.Fprintf(stdout, "\n")
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d records, %d slots skipped\n", res.Records, res.Skipped)
		return nil
	}

	out, err := e.t.fs.Create(e.output)
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			err = out.Sync()
		}
		err = errors.CombineErrors(err, out.Close())
	}()
	bw := bufio.NewWriter(&fileWriter{f: out})
	var w io.Writer = bw
	var enc *zstd.Encoder
	if e.compress {
		if enc, err = zstd.NewWriter(bw); err != nil {
			return err
		}
		w = enc
	}
	var rec []byte
	res, err := x.Extract(ctx, func(id base.BlockID, payload []byte) error {
		rec = appendRecord(rec[:0], id, payload)
		_, err := w.Write(rec)
		return err
	})
	if err != nil {
		return err
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d records written to %s, %d slots skipped\n", res.Records, e.output, res.Skipped)
	return nil
}
