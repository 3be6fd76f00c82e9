// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"
	"github.com/extentstore/extentstore/internal/base"
	"github.com/extentstore/extentstore/internal/blockfmt"
	"github.com/extentstore/extentstore/internal/metablock"
	"github.com/extentstore/extentstore/registry"
	"github.com/extentstore/extentstore/vfs"
	"github.com/spf13/cobra"
)

// maxMissingReported bounds the number of missing block ids named in the
// contiguity diagnostic.
const maxMissingReported = 8

// Checker validates a data file: every block id must have a current version,
// every current version must decode to its own id, and the metablock, if
// there is one, must agree with the scan.
type Checker struct {
	FS     vfs.FS
	Path   string
	Layout base.Layout
	// MetaPath is the metablock file to cross-check against. The cross-check
	// is skipped if it is empty or the file does not exist.
	MetaPath string
	// Validator, if set, is called with the payload of every current block
	// that is not a tombstone.
	Validator BlockValidator
	// Logger receives a line for every corrupt slot. Defaults to no logging.
	Logger base.Logger
}

// CheckResult summarizes a Check.
type CheckResult struct {
	Extents int
	// Blocks is the number of valid slots, current or not.
	Blocks int
	// Corrupt is the number of written slots that do not hold a valid block.
	Corrupt int
	// IDs is the number of block ids with a current version, Deleted of which
	// are tombstones.
	IDs     int
	Deleted int
	MaxID   base.BlockID
	// MetaExtents is the number of extents the metablock lists as in use, or
	// -1 if there is no metablock.
	MetaExtents int
	// Problems describes every inconsistency found.
	Problems []string
}

func (r *CheckResult) problemf(format string, args ...interface{}) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// Check runs the check. It returns an error, and aborts, if the file cannot
// be scanned or if block ids are not contiguous; other inconsistencies are
// collected in CheckResult.Problems.
func (c *Checker) Check(ctx context.Context) (CheckResult, error) {
	res := CheckResult{MetaExtents: -1}
	logger := c.Logger
	if logger == nil {
		logger = base.NoopLoggerForTesting
	}
	f, size, err := openData(c.FS, c.Path)
	if err != nil {
		return res, err
	}
	defer f.Close()

	built, err := registry.Build(ctx, f, size, c.Layout, func(off base.Offset, err error) {
		logger.Infof("corrupt slot %s: %v", off, err)
	})
	if err != nil {
		return res, err
	}
	res.Extents = int(size / c.Layout.ExtentSize)
	res.Blocks = built.Blocks
	res.Corrupt = built.Corrupt
	if !built.Registry.CheckBlockIDContiguity() {
		var missing []string
		for id := range built.Registry.MissingBlockIDs() {
			if len(missing) == maxMissingReported {
				break
			}
			missing = append(missing, id.String())
		}
		if n := built.Registry.NumMissing(); n > maxMissingReported {
			missing = append(missing, fmt.Sprintf("and %d more", n-maxMissingReported))
		}
		return res, errors.Newf("block ids are not contiguous: missing %s", strings.Join(missing, ", "))
	}
	mapping := built.Registry.DestroyTransactionIDs()
	res.IDs = mapping.Len()
	res.MaxID, _ = mapping.MaxBlockID()

	var owners swiss.Map[base.Offset, base.BlockID]
	owners.Init(mapping.Len())
	slot := make([]byte, c.Layout.BlockSize)
	for id, foff := range mapping.All() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		off := foff.Offset()
		if foff.IsDeleted() {
			res.Deleted++
		}
		if other, ok := owners.Get(off); ok {
			res.problemf("%s and %s both map to %s", other, id, off)
			continue
		}
		owners.Put(off, id)

		if _, err := f.ReadAt(slot, int64(off)); err != nil {
			return res, errors.Wrapf(err, "reading %s at %s", id, off)
		}
		h, payload, err := blockfmt.Decode(slot)
		switch {
		case err != nil:
			res.problemf("%s at %s: %v", id, off, err)
		case h.BlockID != id:
			res.problemf("%s maps to %s which holds %s", id, off, h.BlockID)
		case h.Deleted != foff.IsDeleted():
			res.problemf("%s at %s: deleted flag %t does not match the mapping", id, off, h.Deleted)
		case !h.Deleted && c.Validator != nil:
			if err := c.Validator(id, payload); err != nil {
				res.problemf("%s at %s: %v", id, off, err)
			}
		}
	}

	if c.MetaPath != "" {
		if err := c.checkMetablock(&res, mapping, &owners, size); err != nil {
			return res, err
		}
	}
	return res, nil
}

// checkMetablock cross-checks the extents and live slots recorded in the
// metablock against the scanned mapping.
func (c *Checker) checkMetablock(
	res *CheckResult, mapping registry.Mapping, owners *swiss.Map[base.Offset, base.BlockID], size int64,
) error {
	m, ok, err := metablock.File{FS: c.FS, Path: c.MetaPath}.Read()
	if err != nil || !ok {
		return err
	}
	res.MetaExtents = len(m.Extents)
	if m.Layout != c.Layout {
		res.problemf("metablock geometry %d/%d does not match %d/%d",
			m.Layout.BlockSize, m.Layout.ExtentSize, c.Layout.BlockSize, c.Layout.ExtentSize)
		return nil
	}
	var records swiss.Map[base.Offset, int]
	records.Init(len(m.Extents))
	for i, r := range m.Extents {
		if int64(r.Offset) >= size {
			res.problemf("metablock extent %s lies beyond the end of the file", r.Offset)
		}
		records.Put(r.Offset, i)
	}
	for id, foff := range mapping.All() {
		off := foff.Offset()
		i, ok := records.Get(c.Layout.ExtentStart(off))
		if !ok {
			res.problemf("%s at %s lies in an extent the metablock does not list as in use", id, off)
			continue
		}
		if !m.Extents[i].Live.Get(c.Layout.SlotIndex(off)) {
			res.problemf("%s at %s is not live in the metablock", id, off)
		}
	}
	for _, r := range m.Extents {
		for slot := range c.Layout.SlotsPerExtent() {
			if !r.Live.Get(slot) {
				continue
			}
			off := c.Layout.SlotOffset(c.Layout.ExtentIndex(r.Offset), slot)
			if _, ok := owners.Get(off); !ok {
				res.problemf("slot %s is live in the metablock but holds no current block", off)
			}
		}
	}
	return nil
}

// fsckT implements the fsck command.
type fsckT struct {
	Root *cobra.Command

	t       *T
	files   fileFlags
	verbose bool
}

func newFsck(t *T) *fsckT {
	c := &fsckT{t: t}
	c.Root = &cobra.Command{
		Use:   "fsck",
		Short: "check the consistency of a data file",
		Long: `
Scan the data file, rebuild the block id to offset mapping and check that block
ids are contiguous, that every current block decodes to its own id, and that
the metablock agrees with the scan.
`,
		Args: cobra.NoArgs,
		Run:  c.run,
	}
	c.files.register(c.Root)
	c.Root.Flags().BoolVarP(&c.verbose, "verbose", "v", false, "log every corrupt slot")
	return c
}

func (c *fsckT) run(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	layout, err := c.files.resolveLayout(c.t.fs)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	checker := &Checker{
		FS:        c.t.fs,
		Path:      c.files.file,
		Layout:    layout,
		MetaPath:  c.files.metaPath(),
		Validator: c.t.validator,
	}
	if c.verbose {
		checker.Logger = writerLogger{w: stdout}
	}
	res, err := checker.Check(context.Background())
	if err != nil {
		fmt.Fprintf(stderr, "fsck aborted: %s\n", err)
		return
	}
	fmt.Fprintf(stdout, "scanned %d extents: %d blocks, %d corrupt slots\n", res.Extents, res.Blocks, res.Corrupt)
	if res.IDs == 0 {
		fmt.Fprintf(stdout, "mapping: empty\n")
	} else {
		fmt.Fprintf(stdout, "mapping: %d ids (%d deleted), max %s\n", res.IDs, res.Deleted, res.MaxID)
	}
	if res.MetaExtents < 0 {
		fmt.Fprintf(stdout, "metablock: not found\n")
	} else {
		fmt.Fprintf(stdout, "metablock: %d extents in use\n", res.MetaExtents)
	}
	for _, p := range res.Problems {
		fmt.Fprintf(stdout, "problem: %s\n", p)
	}
	if len(res.Problems) == 0 {
		fmt.Fprintf(stdout, "ok\n")
	} else {
		fmt.Fprintf(stdout, "%d problems found\n", len(res.Problems))
	}
}
