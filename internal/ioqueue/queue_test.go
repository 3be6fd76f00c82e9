// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ioqueue

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/errors"
	"github.com/extentstore/extentstore/internal/base"
	"github.com/extentstore/extentstore/vfs"
	"github.com/stretchr/testify/require"
)

func TestQueueReadWrite(t *testing.T) {
	defer leaktest.AfterTest(t)()

	f, err := vfs.NewMem().Create("data")
	require.NoError(t, err)
	q := New(f, 2)
	fg := q.NewAccount("foreground", 4)

	c := NewCompletion(2)
	fg.Write(0, []byte("hello"), c)
	fg.Write(10, []byte("world"), c)
	require.NoError(t, c.Wait(context.Background()))

	buf := make([]byte, 15)
	c = NewCompletion(1)
	fg.Read(0, buf, c)
	require.NoError(t, c.Wait(context.Background()))
	require.Equal(t, "hello\x00\x00\x00\x00\x00world", string(buf))

	// Reads must lie within the file.
	for _, tc := range []struct {
		off int64
		n   int
	}{{10, 6}, {0, 20}, {15, 1}, {100, 4}} {
		c = NewCompletion(1)
		fg.Read(tc.off, make([]byte, tc.n), c)
		err := c.Wait(context.Background())
		require.ErrorIs(t, err, base.ErrOutOfRange, "read of %d at %d", tc.n, tc.off)
	}

	m := fg.Metrics()
	require.Equal(t, int64(2), m.Writes)
	require.Equal(t, int64(10), m.WriteBytes)
	require.Equal(t, int64(1), m.Reads)
	require.Equal(t, int64(4), m.Errors)

	q.Close()
	c = NewCompletion(1)
	fg.Write(0, []byte("late"), c)
	require.ErrorIs(t, c.Wait(context.Background()), ErrClosed)
}

func TestQueueWriteError(t *testing.T) {
	defer leaktest.AfterTest(t)()

	fs := vfs.NewErrorFS(vfs.NewMem(), vfs.ErrorFSWrite)
	f, err := fs.Create("data")
	require.NoError(t, err)
	q := New(f, 1)
	defer q.Close()
	a := q.NewAccount("a", 1)

	fs.Arm()
	c := NewCompletion(2)
	a.Write(0, []byte("x"), c)
	a.Write(1, []byte("y"), c)
	err = c.Wait(context.Background())
	require.ErrorIs(t, err, vfs.ErrInjected)
	require.Equal(t, int64(2), a.Metrics().Errors)
}

// TestQueueWeightedRoundRobin exercises the scheduling policy directly on a
// queue without workers.
func TestQueueWeightedRoundRobin(t *testing.T) {
	q := &Queue{}
	q.mu.cond.L = &q.mu.Mutex
	fg := q.NewAccount("fg", 3)
	gc := q.NewAccount("gc", 1)
	for i := 0; i < 6; i++ {
		fg.queue.PushBack(request{c: NewCompletion(1)})
		gc.queue.PushBack(request{c: NewCompletion(1)})
		q.mu.pending += 2
	}
	var order strings.Builder
	for q.mu.pending > 0 {
		a, _ := q.pickLocked()
		q.mu.pending--
		order.WriteString(a.name[:1])
	}
	require.Equal(t, "fffgfffggggg", order.String())
}

func TestCompletion(t *testing.T) {
	c := NewCompletion(0)
	require.NoError(t, c.Wait(context.Background()))

	c = NewCompletion(3)
	c.Finish(nil)
	c.Finish(errors.New("first"))
	require.Nil(t, c.Err())
	select {
	case <-c.Done():
		t.Fatal("resolved early")
	default:
	}
	c.Finish(errors.New("second"))
	require.EqualError(t, c.Wait(context.Background()), "first")
	require.Panics(t, func() { c.Finish(nil) })

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	require.ErrorIs(t, NewCompletion(1).Wait(ctx), context.DeadlineExceeded)

	require.EqualError(t, Resolved(errors.New("boom")).Err(), "boom")
}
