// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/extentstore/extentstore/registry"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// extentUsage counts the slots of one extent by what they hold.
type extentUsage struct {
	current    int
	superseded int
	corrupt    int
	// state is the state recorded in the metablock, if any.
	state string
}

// layoutT implements the layout command.
type layoutT struct {
	Root *cobra.Command

	t     *T
	files fileFlags
}

func newLayout(t *T) *layoutT {
	l := &layoutT{t: t}
	l.Root = &cobra.Command{
		Use:   "layout",
		Short: "print per-extent slot usage",
		Long: `
Scan the data file and print, for every extent, how many slots hold the current
version of a block, an older version, or a corrupt block, along with the state
the metablock records for the extent.
`,
		Args: cobra.NoArgs,
		Run:  l.run,
	}
	l.files.register(l.Root)
	return l
}

func (l *layoutT) run(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if err := l.runE(stdout); err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
	}
}

func (l *layoutT) runE(stdout io.Writer) error {
	layout, err := l.files.resolveLayout(l.t.fs)
	if err != nil {
		return err
	}
	f, size, err := openData(l.t.fs, l.files.file)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := context.Background()
	built, err := registry.Build(ctx, f, size, layout, nil)
	if err != nil {
		return err
	}
	mapping := built.Registry.DestroyTransactionIDs()

	usage := make([]extentUsage, size/layout.ExtentSize)
	if m, ok, err := l.files.readMetablock(l.t.fs); err != nil {
		return err
	} else if ok && m.Layout == layout {
		for i := range usage {
			usage[i].state = "free"
		}
		for _, r := range m.Extents {
			if idx := layout.ExtentIndex(r.Offset); idx < len(usage) {
				usage[idx].state = "in use"
				if r.Active {
					usage[idx].state = "active"
				}
			}
		}
	}
	err = registry.Scan(ctx, f, size, layout, func(o *registry.Observation) error {
		u := &usage[layout.ExtentIndex(o.Offset)]
		switch {
		case o.Err != nil:
			u.corrupt++
		case isCurrent(mapping, o):
			u.current++
		default:
			u.superseded++
		}
		return nil
	})
	if err != nil {
		return err
	}

	slots := layout.SlotsPerExtent()
	tbl := tablewriter.NewWriter(stdout)
	tbl.SetHeader([]string{"Extent", "Offset", "State", "Current", "Superseded", "Corrupt", "Unwritten", "Garbage"})
	for i, u := range usage {
		written := u.current + u.superseded + u.corrupt
		tbl.Append([]string{
			fmt.Sprint(i),
			layout.ExtentOffset(i).String(),
			u.state,
			fmt.Sprint(u.current),
			fmt.Sprint(u.superseded),
			fmt.Sprint(u.corrupt),
			fmt.Sprint(slots - written),
			string(crhumanize.Percent(written-u.current, slots)),
		})
	}
	tbl.Render()
	fmt.Fprintf(stdout, "%d extents of %d slots, %d block ids\n", len(usage), slots, mapping.Len())
	return nil
}

// isCurrent returns true if the observation is the version of its block the
// mapping selects.
func isCurrent(mapping registry.Mapping, o *registry.Observation) bool {
	cur, ok := mapping.Get(o.Header.BlockID)
	return ok && cur.Offset() == o.Offset
}
