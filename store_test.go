// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package extentstore

import (
	"bytes"
	"context"
	"fmt"
	"math"
	randv1 "math/rand"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metamorphic"
	"github.com/extentstore/extentstore/internal/base"
	"github.com/extentstore/extentstore/internal/blockfmt"
	"github.com/extentstore/extentstore/vfs"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func testStoreOptions(fs vfs.FS) *Options {
	return &Options{
		FS:         fs,
		Logger:     base.NoopLoggerForTesting,
		BlockSize:  128,
		ExtentSize: 1024,
		IOWorkers:  2,
		// Tests that exercise GC turn it back on.
		DisableAutomaticGC: true,
	}
}

func mustGet(t *testing.T, s *Store, id BlockID) string {
	t.Helper()
	v, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	return string(v)
}

func TestStoreBasic(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	s, err := Open("data", testStoreOptions(vfs.NewMem()))
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, 1, []byte("hello")))
	require.NoError(t, s.Set(ctx, 2, []byte("world")))
	require.Equal(t, "hello", mustGet(t, s, 1))
	require.Equal(t, "world", mustGet(t, s, 2))

	require.NoError(t, s.Set(ctx, 1, []byte("hello again")))
	require.Equal(t, "hello again", mustGet(t, s, 1))

	_, err = s.Get(ctx, 3)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, 2))
	_, err = s.Get(ctx, 2)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, 2), ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, 3), ErrNotFound)

	// A batch may delete a block it creates.
	require.NoError(t, s.Apply(ctx, []WriteOp{
		{ID: 4, Data: []byte("four")},
		{ID: 5, Data: []byte("five")},
		{ID: 4, Delete: true},
	}))
	_, err = s.Get(ctx, 4)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "five", mustGet(t, s, 5))

	// Empty payloads are allowed; oversized ones are not.
	require.NoError(t, s.Set(ctx, 6, nil))
	require.Equal(t, "", mustGet(t, s, 6))
	require.NoError(t, s.Set(ctx, 7, bytes.Repeat([]byte("x"), 96)))
	require.ErrorIs(t, s.Set(ctx, 7, bytes.Repeat([]byte("x"), 97)), ErrBlockTooLarge)

	m := s.Metrics()
	require.Equal(t, 6, m.Blocks)
	require.Equal(t, int64(6*128), m.Extents.LiveBytes)
	require.Equal(t, m.Extents.InUse, m.Extents.BeingWritten+m.Extents.Young+m.Extents.Old)
	require.Contains(t, m.String(), "blocks: 6")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.PanicsWithValue(t, ErrClosed, func() { _, _ = s.Get(ctx, 1) })
	require.PanicsWithValue(t, ErrClosed, func() { _ = s.Set(ctx, 1, nil) })
}

func TestStoreRecovery(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	fs := vfs.NewMem()
	opts := testStoreOptions(fs)

	s, err := Open("data", opts)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, s.Set(ctx, BlockID(i), []byte(fmt.Sprintf("v1-%d", i))))
	}
	for i := 0; i < 20; i += 2 {
		require.NoError(t, s.Set(ctx, BlockID(i), []byte(fmt.Sprintf("v2-%d", i))))
	}
	require.NoError(t, s.Delete(ctx, 7))
	require.NoError(t, s.Close())
	require.Equal(t, []string{"data", "data.meta"}, fs.List())

	check := func(s *Store) {
		for i := 0; i < 20; i++ {
			v, err := s.Get(ctx, BlockID(i))
			switch {
			case i == 7:
				require.ErrorIs(t, err, ErrNotFound)
			case i%2 == 0:
				require.NoError(t, err)
				require.Equal(t, fmt.Sprintf("v2-%d", i), string(v))
			default:
				require.NoError(t, err)
				require.Equal(t, fmt.Sprintf("v1-%d", i), string(v))
			}
		}
	}

	s, err = Open("data", opts)
	require.NoError(t, err)
	check(s)
	require.Equal(t, 20, s.Metrics().Blocks)

	// Transaction ids continue past the recovered ones, so new versions win
	// on the next recovery.
	require.NoError(t, s.Set(ctx, 3, []byte("v3-3")))
	require.NoError(t, s.Close())

	s, err = Open("data", opts)
	require.NoError(t, err)
	require.Equal(t, "v3-3", mustGet(t, s, 3))
	require.NoError(t, s.Close())
}

// TestStoreCrashRecovery recovers from a copy of the data file taken without
// closing the store, so that no metablock was written.
func TestStoreCrashRecovery(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	fs := vfs.NewMem()
	s, err := Open("data", testStoreOptions(fs))
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		require.NoError(t, s.Set(ctx, BlockID(i%5), []byte(fmt.Sprintf("%d", i))))
	}

	data, err := vfs.ReadFile(fs, "data")
	require.NoError(t, err)
	crashed := vfs.NewMem()
	require.NoError(t, vfs.WriteFileAtomically(crashed, "data", data))
	require.NoError(t, s.Close())

	s, err = Open("data", testStoreOptions(crashed))
	require.NoError(t, err)
	for i := 7; i < 12; i++ {
		require.Equal(t, fmt.Sprintf("%d", i), mustGet(t, s, BlockID(i%5)))
	}
	m := s.Metrics()
	require.Equal(t, 5, m.Blocks)
	require.Equal(t, int64(5*128), m.Extents.LiveBytes)
	require.NoError(t, s.Close())
}

func TestOpenErrors(t *testing.T) {
	defer leaktest.AfterTest(t)()
	fs := vfs.NewMem()
	require.NoError(t, vfs.WriteFileAtomically(fs, "data", make([]byte, 100)))
	_, err := Open("data", testStoreOptions(fs))
	require.True(t, IsCorruptionError(err), "%v", err)

	opts := testStoreOptions(vfs.NewMem())
	opts.ExtentSize = 1000
	_, err = Open("data", opts)
	require.ErrorContains(t, err, "must be a multiple of BlockSize")

	// A metablock written with a different geometry is rejected.
	fs = vfs.NewMem()
	s, err := Open("data", testStoreOptions(fs))
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), 0, []byte("x")))
	require.NoError(t, s.Close())
	opts = testStoreOptions(fs)
	opts.ExtentSize = 512
	_, err = Open("data", opts)
	require.ErrorContains(t, err, "does not match")
}

func TestOpenRecoveryWarnings(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	fs := vfs.NewMem()
	s, err := Open("data", testStoreOptions(fs))
	require.NoError(t, err)
	for _, id := range []BlockID{0, 1, 3, 6} {
		require.NoError(t, s.Set(ctx, id, []byte("x")))
	}
	require.NoError(t, s.Close())

	// Corrupt the block in the second slot.
	f, err := fs.OpenReadWrite("data")
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xff}, 128+32)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var mu sync.Mutex
	var warnings []string
	opts := testStoreOptions(fs)
	opts.EventListener = &EventListener{
		RecoveryWarning: func(msg string) {
			mu.Lock()
			defer mu.Unlock()
			warnings = append(warnings, msg)
		},
	}
	s, err = Open("data", opts)
	require.NoError(t, err)
	_, err = s.Get(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "x", mustGet(t, s, 6))
	require.NoError(t, s.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0], "skipping slot 128")
	require.Contains(t, warnings[0], "checksum mismatch")
	require.Equal(t, "block ids are not contiguous: 4 missing, 3 present", warnings[1])
}

func TestStoreBlockIDRange(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	fs := vfs.NewMem()
	s, err := Open("data", testStoreOptions(fs))
	require.NoError(t, err)

	for _, id := range []BlockID{MaxBlockID + 1, 1 << 63, math.MaxUint64} {
		err := s.Set(ctx, id, []byte("x"))
		require.ErrorIs(t, err, ErrOutOfRange)
		require.ErrorContains(t, err, "exceeds the largest block id")
	}
	// A rejected op fails the whole batch.
	err = s.Apply(ctx, []WriteOp{{ID: 0, Data: []byte("x")}, {ID: 1 << 63, Data: []byte("y")}})
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = s.Get(ctx, 0)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, 0, []byte("zero")))
	require.NoError(t, s.Set(ctx, 1, []byte("one")))
	require.NoError(t, s.Set(ctx, MaxBlockID, []byte("max")))
	require.Equal(t, "max", mustGet(t, s, MaxBlockID))
	require.NoError(t, s.Close())

	// A block carrying an id no Store writes, such as one left by a damaged
	// or foreign writer, replaces block 1 in its slot.
	b, err := blockfmt.NewBuf(128, blockfmt.Header{BlockID: 1 << 63, TxnID: 100}, []byte("huge"))
	require.NoError(t, err)
	f, err := fs.OpenReadWrite("data")
	require.NoError(t, err)
	_, err = f.WriteAt(b.Bytes(), 128)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var warnings []string
	opts := testStoreOptions(fs)
	opts.EventListener = &EventListener{
		RecoveryWarning: func(msg string) { warnings = append(warnings, msg) },
	}
	s, err = Open("data", opts)
	require.NoError(t, err)
	require.Equal(t, []string{
		fmt.Sprintf("block ids are not contiguous: %d missing, 3 present", uint64(1<<63)-2),
	}, warnings)
	require.Equal(t, "zero", mustGet(t, s, 0))
	require.Equal(t, "max", mustGet(t, s, MaxBlockID))
	require.Equal(t, "huge", mustGet(t, s, 1<<63))
	_, err = s.Get(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 3, s.Metrics().Blocks)
	require.NoError(t, s.Close())
}

func TestStoreReadAhead(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	var mu sync.Mutex
	var seen []string
	opts := testStoreOptions(vfs.NewMem())
	opts.BlockSize = 64
	opts.ExtentSize = 256
	opts.ReadAheadSize = 256
	opts.OnReadAhead = func(id BlockID, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, fmt.Sprintf("%d:%s", id, payload))
	}
	collect := func() []string {
		mu.Lock()
		defer mu.Unlock()
		res := seen
		seen = nil
		slices.Sort(res)
		return res
	}
	s, err := Open("data", opts)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Set(ctx, BlockID(i), []byte(fmt.Sprint("v", i))))
	}

	require.Equal(t, "v0", mustGet(t, s, 0))
	require.Equal(t, []string{"1:v1", "2:v2", "3:v3"}, collect())

	// Superseded and deleted blocks are not delivered.
	require.NoError(t, s.Set(ctx, 1, []byte("v1'")))
	require.NoError(t, s.Delete(ctx, 3))
	require.Equal(t, "v0", mustGet(t, s, 0))
	require.Equal(t, []string{"2:v2"}, collect())

	// Blocks in the extent being written are read without read-ahead.
	require.Equal(t, "v1'", mustGet(t, s, 1))
	require.Empty(t, collect())

	s.dbm.DisableReadAhead()
	require.Equal(t, "v2", mustGet(t, s, 2))
	require.Empty(t, collect())
	require.NoError(t, s.Close())
}

func TestStoreGC(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	opts := testStoreOptions(vfs.NewMem())
	opts.DisableAutomaticGC = false
	opts.GC.YoungExtentTimeLimit = time.Nanosecond
	opts.GC.TargetBytesPerSecond = 1 << 30
	var mu sync.Mutex
	var gcEnds int
	opts.EventListener = &EventListener{
		GCEnd: func(info GCInfo) {
			mu.Lock()
			defer mu.Unlock()
			gcEnds++
		},
	}
	s, err := Open("data", opts)
	require.NoError(t, err)

	const n = 64
	for round := 0; round < 5; round++ {
		var ops []WriteOp
		for i := 0; i < n; i++ {
			if round == 0 || i%3 != 0 {
				ops = append(ops, WriteOp{ID: BlockID(i), Data: []byte(fmt.Sprintf("%d-%d", i, round))})
			}
		}
		require.NoError(t, s.Apply(ctx, ops))
	}
	require.Eventually(t, func() bool { return !s.dbm.IsGCActive() }, 10*time.Second, time.Millisecond)

	for i := 0; i < n; i++ {
		want := fmt.Sprintf("%d-4", i)
		if i%3 == 0 {
			want = fmt.Sprintf("%d-0", i)
		}
		require.Equal(t, want, mustGet(t, s, BlockID(i)))
	}
	m := s.Metrics()
	require.Greater(t, m.GC.Passes, int64(0))
	require.Greater(t, m.GC.RelocatedBlocks, int64(0))
	require.Greater(t, m.IO.GC.Writes, int64(0))
	require.LessOrEqual(t, m.Extents.GarbageRatio, opts.GC.HighRatio)
	require.Equal(t, int64(n*128), m.Extents.LiveBytes)
	require.NoError(t, s.Close())

	mu.Lock()
	require.Equal(t, int(m.GC.Passes), gcEnds)
	mu.Unlock()

	// Relocated blocks are recovered from their new location.
	s, err = Open("data", opts)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := s.Get(ctx, BlockID(i))
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())
}

// gatedFS hands out the data file wrapped in a gatedFile.
type gatedFS struct {
	vfs.FS
	name string
	off  Offset
	gate *gatedFile
}

func (fs *gatedFS) OpenReadWrite(name string) (vfs.File, error) {
	f, err := fs.FS.OpenReadWrite(name)
	if err != nil || name != fs.name {
		return f, err
	}
	fs.gate = newGatedFile(f, fs.off)
	return fs.gate, nil
}

// TestStoreGCRacesExtentReuse overwrites a block while garbage collection is
// copying it, until the extent the copy was taken from has been reused for
// the block's newest version. Readers must see a valid version throughout, and
// the newest version must win once the copy lands.
func TestStoreGCRacesExtentReuse(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	mem := vfs.NewMem()
	// Extent 1 spans [512, 1024); the copy of block 0 takes its last slot.
	fs := &gatedFS{FS: mem, name: "data", off: 896}
	opts := testStoreOptions(fs)
	opts.ExtentSize = 512
	var now atomic.Int64
	opts.private.nowFn = func() crtime.Mono { return crtime.Mono(now.Load()) }
	s, err := Open("data", opts)
	require.NoError(t, err)

	set := func(v string, ids ...BlockID) {
		var ops []WriteOp
		for _, id := range ids {
			ops = append(ops, WriteOp{ID: id, Data: []byte(v)})
		}
		require.NoError(t, s.Apply(ctx, ops))
	}
	set("v1", 0, 1, 2, 3)
	set("v2", 1, 2, 3)
	now.Add(int64(time.Hour))
	s.dbm.mu.Lock()
	s.dbm.ageYoungLocked()
	e := s.dbm.mu.entries[0]
	require.Equal(t, extentOld, e.state)
	p := gcPass{idx: 0, gen: e.gen, offset: 0}
	s.dbm.mu.Unlock()

	type result struct {
		res relocateResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := s.dbm.relocateExtent(ctx, p)
		done <- result{res: res, err: err}
	}()
	<-fs.gate.entered

	stop := make(chan struct{})
	readErrs := make(chan error, 1)
	go func() {
		defer close(readErrs)
		for {
			select {
			case <-stop:
				return
			default:
			}
			v, err := s.Get(ctx, 0)
			if err == nil && !slices.Contains([]string{"v1", "v2", "v3"}, string(v)) {
				err = errors.Newf("unexpected version %q", v)
			}
			if err != nil {
				readErrs <- err
				return
			}
		}
	}()

	set("v2", 0)
	set("x", 4, 5, 6)
	set("v3", 0)
	e0, ok := s.lookup(0)
	require.True(t, ok)
	require.Equal(t, Offset(0), e0.off.Offset())

	close(fs.gate.release)
	r := <-done
	require.NoError(t, r.err)
	require.True(t, r.res.aborted)
	close(stop)
	require.NoError(t, <-readErrs)

	require.Equal(t, "v3", mustGet(t, s, 0))
	require.Equal(t, "v2", mustGet(t, s, 1))
	require.NoError(t, s.Close())

	reopen := *opts
	reopen.FS = mem
	s, err = Open("data", &reopen)
	require.NoError(t, err)
	require.Equal(t, "v3", mustGet(t, s, 0))
	require.Equal(t, "x", mustGet(t, s, 6))
	require.NoError(t, s.Close())
}

func TestStoreWriteError(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	fs := vfs.NewErrorFS(vfs.NewMem(), vfs.ErrorFSWrite)
	s, err := Open("data", testStoreOptions(fs))
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, 1, []byte("one")))

	fs.Arm()
	err = s.Apply(ctx, []WriteOp{{ID: 1, Data: []byte("uno")}, {ID: 2, Data: []byte("two")}})
	require.ErrorIs(t, err, vfs.ErrInjected)
	fs.Disarm()
	require.Greater(t, fs.Injected(), int64(0))

	require.Equal(t, "one", mustGet(t, s, 1))
	_, err = s.Get(ctx, 2)
	require.ErrorIs(t, err, ErrNotFound)
	m := s.Metrics()
	require.Equal(t, int64(128), m.Extents.LiveBytes)
	require.Equal(t, int64(256), m.Extents.GarbageBytes)

	require.NoError(t, s.Set(ctx, 2, []byte("two")))
	require.Equal(t, "two", mustGet(t, s, 2))
	require.NoError(t, s.Close())
}

func TestStoreWriteLatency(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	hist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "write_latency",
		Buckets: prometheus.ExponentialBucketsRange(float64(time.Microsecond), float64(10*time.Second), 20),
	})
	opts := testStoreOptions(vfs.NewMem())
	opts.WriteLatency = hist
	s, err := Open("data", opts)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Set(ctx, BlockID(i), []byte("x")))
	}
	require.NoError(t, s.Close())

	metric := &dto.Metric{}
	require.NoError(t, hist.Write(metric))
	require.Equal(t, uint64(3), metric.GetHistogram().GetSampleCount())
}

func TestStoreConcurrentWriters(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	opts := testStoreOptions(vfs.NewMem())
	opts.ActiveExtents = 2
	opts.DisableAutomaticGC = false
	opts.GC.YoungExtentTimeLimit = time.Nanosecond
	s, err := Open("data", opts)
	require.NoError(t, err)

	const writers, perWriter = 4, 200
	var g errgroup.Group
	for w := 0; w < writers; w++ {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(0, uint64(w)))
			for i := 0; i < perWriter; i++ {
				// Writers share ids, so versions race.
				id := BlockID(rng.IntN(32))
				if err := s.Set(ctx, id, []byte(fmt.Sprintf("w%d-%d", w, i))); err != nil {
					return err
				}
				if _, err := s.Get(ctx, id); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Eventually(t, func() bool { return !s.dbm.IsGCActive() }, 10*time.Second, time.Millisecond)

	current := make(map[BlockID]string)
	for id := BlockID(0); id < 32; id++ {
		if v, err := s.Get(ctx, id); err == nil {
			current[id] = string(v)
		}
	}
	require.Equal(t, int64(len(current)*128), s.Metrics().Extents.LiveBytes)
	require.NoError(t, s.Close())

	// Whatever version won in memory also wins on recovery.
	s, err = Open("data", opts)
	require.NoError(t, err)
	for id, v := range current {
		require.Equal(t, v, mustGet(t, s, id))
	}
	require.NoError(t, s.Close())
}

// TestStoreRandomized runs a random sequence of operations against a Store
// and a map, reopening the store along the way.
func TestStoreRandomized(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	seed := time.Now().UnixNano()
	t.Logf("seed %d", seed)
	rng := rand.New(rand.NewPCG(0, uint64(seed)))

	fs := vfs.NewMem()
	opts := testStoreOptions(fs)
	opts.BlockSize = 64
	opts.ExtentSize = 512
	opts.DisableAutomaticGC = false
	opts.GC.YoungExtentTimeLimit = time.Microsecond
	opts.GC.MaxConcurrent = 2
	s, err := Open("data", opts)
	require.NoError(t, err)

	const keyspace = 48
	model := make(map[BlockID]string)
	var history strings.Builder
	randomID := func() BlockID { return BlockID(rng.IntN(keyspace)) }
	ops := metamorphic.Weighted[func()]{
		{Weight: 20, Item: func() {
			id := randomID()
			v := fmt.Sprintf("%d.%d", id, rng.Uint32())
			fmt.Fprintf(&history, "set %s %s\n", id, v)
			require.NoError(t, s.Set(ctx, id, []byte(v)), "%s", history.String())
			model[id] = v
		}},
		{Weight: 4, Item: func() {
			var batch []WriteOp
			for i := rng.IntN(8) + 1; i > 0; i-- {
				id := randomID()
				v := fmt.Sprintf("%d.%d", id, rng.Uint32())
				batch = append(batch, WriteOp{ID: id, Data: []byte(v)})
				model[id] = v
			}
			fmt.Fprintf(&history, "apply %d ops\n", len(batch))
			require.NoError(t, s.Apply(ctx, batch), "%s", history.String())
		}},
		{Weight: 5, Item: func() {
			id := randomID()
			fmt.Fprintf(&history, "delete %s\n", id)
			err := s.Delete(ctx, id)
			if _, ok := model[id]; ok {
				require.NoError(t, err, "%s", history.String())
				delete(model, id)
			} else {
				require.ErrorIs(t, err, ErrNotFound, "%s", history.String())
			}
		}},
		{Weight: 10, Item: func() {
			id := randomID()
			fmt.Fprintf(&history, "get %s\n", id)
			v, err := s.Get(ctx, id)
			if want, ok := model[id]; ok {
				require.NoError(t, err, "%s", history.String())
				require.Equal(t, want, string(v), "%s", history.String())
			} else {
				require.ErrorIs(t, err, ErrNotFound, "%s", history.String())
			}
		}},
		{Weight: 1, Item: func() {
			fmt.Fprintf(&history, "checkpoint\n")
			require.NoError(t, s.Checkpoint())
		}},
		{Weight: 1, Item: func() {
			fmt.Fprintf(&history, "reopen\n")
			require.NoError(t, s.Close())
			s, err = Open("data", opts)
			require.NoError(t, err, "%s", history.String())
		}},
	}
	next := ops.RandomDeck(randv1.New(randv1.NewSource(rng.Int64())))
	for i := 0; i < 2000; i++ {
		next()()
	}

	for id := BlockID(0); id < keyspace; id++ {
		v, err := s.Get(ctx, id)
		if want, ok := model[id]; ok {
			require.NoError(t, err)
			require.Equal(t, want, string(v))
		} else {
			require.ErrorIs(t, err, ErrNotFound)
		}
	}
	require.NoError(t, s.Close())
}
