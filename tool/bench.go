// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/errors"
	"github.com/extentstore/extentstore"
	"github.com/extentstore/extentstore/vfs"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	minLatency = 10 * time.Microsecond
	maxLatency = 10 * time.Second
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 1)
}

// benchT implements the bench command: an overwrite-heavy workload against an
// in-memory store, with garbage collection running.
type benchT struct {
	Root *cobra.Command

	blocks     int
	ops        int
	writers    int
	batch      int
	valueSize  int
	blockSize  int64
	extentSize int64
	interval   time.Duration
	seed       uint64
}

func newBench() *benchT {
	b := &benchT{}
	b.Root = &cobra.Command{
		Use:   "bench",
		Short: "run an overwrite workload against an in-memory store",
		Long: `
Overwrite randomly chosen blocks from concurrent writers and report write
latencies along with a plot of the garbage ratio of old extents over time.
`,
		Args: cobra.NoArgs,
		Run:  b.run,
	}
	f := b.Root.Flags()
	f.IntVar(&b.blocks, "blocks", 1000, "number of distinct block ids")
	f.IntVar(&b.ops, "ops", 20000, "number of block writes across all writers")
	f.IntVarP(&b.writers, "writers", "c", 4, "number of concurrent writers")
	f.IntVar(&b.batch, "batch", 1, "blocks written per batch")
	f.IntVar(&b.valueSize, "value-size", 512, "payload size")
	f.Int64Var(&b.blockSize, "block-size", 1<<10, "block size")
	f.Int64Var(&b.extentSize, "extent-size", 64<<10, "extent size")
	f.DurationVar(&b.interval, "interval", 10*time.Millisecond, "garbage ratio sampling interval")
	f.Uint64Var(&b.seed, "seed", 1, "random seed")
	return b
}

func (b *benchT) run(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if err := b.runE(stdout); err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
	}
}

func (b *benchT) runE(stdout io.Writer) (err error) {
	if b.blocks <= 0 || b.writers <= 0 || b.batch <= 0 {
		return errors.New("--blocks, --writers and --batch must be positive")
	}
	s, err := extentstore.Open("bench", &extentstore.Options{
		FS:         vfs.NewMem(),
		Logger:     writerLogger{w: io.Discard},
		BlockSize:  b.blockSize,
		ExtentSize: b.extentSize,
		NoSync:     true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()

	ctx := context.Background()
	payload := make([]byte, b.valueSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	done := make(chan struct{})
	samplerDone := make(chan struct{})
	var ratios []float64
	go func() {
		defer close(samplerDone)
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ratios = append(ratios, s.Metrics().Extents.GarbageRatio)
			}
		}
	}()

	hists := make([]*hdrhistogram.Histogram, b.writers)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := range b.writers {
		hists[w] = newHistogram()
		n := b.ops / b.writers
		if w < b.ops%b.writers {
			n++
		}
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(b.seed, uint64(w)))
			ops := make([]extentstore.WriteOp, 0, b.batch)
			for n > 0 {
				ops = ops[:0]
				for ; n > 0 && len(ops) < b.batch; n-- {
					ops = append(ops, extentstore.WriteOp{
						ID:   extentstore.BlockID(rng.IntN(b.blocks)),
						Data: payload,
					})
				}
				t := time.Now()
				if err := s.Apply(gctx, ops); err != nil {
					return err
				}
				_ = hists[w].RecordValue(time.Since(t).Nanoseconds())
			}
			return nil
		})
	}
	err = g.Wait()
	elapsed := time.Since(start)
	close(done)
	<-samplerDone
	if err != nil {
		return err
	}

	h := newHistogram()
	for _, w := range hists {
		h.Merge(w)
	}
	fmt.Fprintf(stdout, "%d writes in %s (%.0f/sec), %d batches\n",
		b.ops, elapsed.Round(time.Millisecond), float64(b.ops)/elapsed.Seconds(), h.TotalCount())
	fmt.Fprintf(stdout, "latency: p50 %s  p95 %s  p99 %s  max %s\n",
		time.Duration(h.ValueAtQuantile(50)),
		time.Duration(h.ValueAtQuantile(95)),
		time.Duration(h.ValueAtQuantile(99)),
		time.Duration(h.Max()))
	ratios = append(ratios, s.Metrics().Extents.GarbageRatio)
	if len(ratios) == 1 {
		ratios = append(ratios, ratios[0])
	}
	fmt.Fprintf(stdout, "%s\n", asciigraph.Plot(ratios,
		asciigraph.Height(10), asciigraph.Caption("old extent garbage ratio")))
	fmt.Fprintf(stdout, "%s", s.Metrics())
	return nil
}
