// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
	"github.com/extentstore/extentstore/internal/metablock"
	"github.com/kr/pretty"
	"github.com/spf13/cobra"
)

// metablockT implements the metablock command.
type metablockT struct {
	Root *cobra.Command

	t       *T
	verbose bool
}

func newMetablock(t *T) *metablockT {
	m := &metablockT{t: t}
	m.Root = &cobra.Command{
		Use:   "metablock <metablock-files>",
		Short: "print metablock contents",
		Long: `
Print the extents a metablock file records as in use. With --verbose the decoded
metablock is printed in full, live slot bitmaps included.
`,
		Args: cobra.MinimumNArgs(1),
		Run:  m.run,
	}
	m.Root.Flags().BoolVarP(&m.verbose, "verbose", "v", false, "print the decoded structure")
	return m
}

func (m *metablockT) run(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	for _, arg := range args {
		mixin, ok, err := metablock.File{FS: m.t.fs, Path: arg}.Read()
		if err == nil && !ok {
			err = errors.Wrapf(oserror.ErrNotExist, "%s", arg)
		}
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
			continue
		}
		fmt.Fprintf(stdout, "%s\n", arg)
		if m.verbose {
			fmt.Fprintf(stdout, "%# v\n", pretty.Formatter(mixin))
			continue
		}
		fmt.Fprint(stdout, mixin.String())
	}
}
