// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package ioqueue schedules reads and writes against a data file on behalf of
// I/O accounts. Each account is a priority class; worker goroutines drain the
// accounts by weighted round robin so that background traffic (garbage
// collection) cannot starve foreground traffic, and vice versa.
package ioqueue

import (
	"context"
	"io"
	"runtime/pprof"
	"sync"

	"github.com/cockroachdb/crlib/fifo"
	"github.com/cockroachdb/errors"
	"github.com/extentstore/extentstore/internal/base"
	"github.com/extentstore/extentstore/vfs"
)

// ErrClosed is reported for requests submitted to a closed queue.
var ErrClosed = errors.New("extentstore: io queue closed")

type opType uint8

const (
	opRead opType = iota
	opWrite
)

type request struct {
	op  opType
	off int64
	buf []byte
	c   *Completion
}

var requestBackingPool = fifo.MakeQueueBackingPool[request]()

// Queue dispatches requests to a file from a fixed set of worker goroutines.
// It is safe for concurrent use.
type Queue struct {
	file vfs.File

	mu struct {
		sync.Mutex
		accounts []*Account
		// cursor is the index of the account currently being served.
		cursor int
		// pending is the total number of queued requests across accounts.
		pending int
		closed  bool
		// cond is signaled when a request is queued and on Close.
		cond sync.Cond
	}
	wg sync.WaitGroup
}

// New starts a Queue over f with the given number of workers.
func New(f vfs.File, workers int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	q := &Queue{file: f}
	q.mu.cond.L = &q.mu.Mutex
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go pprof.Do(context.Background(), pprof.Labels("extentstore", "io"), func(context.Context) {
			q.worker()
		})
	}
	return q
}

// Account is a priority class of I/O. An account with priority p is served up
// to p requests in a row before the workers move on to the next account with
// queued work.
type Account struct {
	q        *Queue
	name     string
	priority int

	// Protected by q.mu.
	queue   fifo.Queue[request]
	credits int
	metrics AccountMetrics
}

// AccountMetrics holds per-account counters.
type AccountMetrics struct {
	Reads      int64
	ReadBytes  int64
	Writes     int64
	WriteBytes int64
	Errors     int64
}

// NewAccount registers a new account with the given priority, which must be
// at least 1.
func (q *Queue) NewAccount(name string, priority int) *Account {
	if priority < 1 {
		panic(errors.AssertionFailedf("account %q: priority %d must be at least 1", name, priority))
	}
	a := &Account{
		q:        q,
		name:     name,
		priority: priority,
		queue:    fifo.MakeQueue(&requestBackingPool),
		credits:  priority,
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.mu.accounts = append(q.mu.accounts, a)
	return a
}

// Name returns the name of the account.
func (a *Account) Name() string { return a.name }

// Metrics returns a snapshot of the account's counters.
func (a *Account) Metrics() AccountMetrics {
	a.q.mu.Lock()
	defer a.q.mu.Unlock()
	return a.metrics
}

// Write submits a write of buf at off. c.Finish is called once the write has
// completed. buf must not be modified until then.
func (a *Account) Write(off int64, buf []byte, c *Completion) {
	a.submit(request{op: opWrite, off: off, buf: buf, c: c})
}

// Read submits a read into buf from off. c.Finish is called once the read has
// completed. The range must lie within the file: a read that reaches past its
// end fails with an error marked base.ErrOutOfRange.
func (a *Account) Read(off int64, buf []byte, c *Completion) {
	a.submit(request{op: opRead, off: off, buf: buf, c: c})
}

func (a *Account) submit(r request) {
	q := a.q
	q.mu.Lock()
	if q.mu.closed {
		q.mu.Unlock()
		r.c.Finish(ErrClosed)
		return
	}
	a.queue.PushBack(r)
	q.mu.pending++
	q.mu.Unlock()
	q.mu.cond.Signal()
}

// Close waits for all queued requests to finish and stops the workers.
// Requests submitted afterwards fail with ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	q.mu.closed = true
	q.mu.Unlock()
	q.mu.cond.Broadcast()
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	q.mu.Lock()
	for {
		for q.mu.pending == 0 && !q.mu.closed {
			q.mu.cond.Wait()
		}
		if q.mu.pending == 0 {
			q.mu.Unlock()
			return
		}
		a, r := q.pickLocked()
		q.mu.pending--
		q.mu.Unlock()

		err := q.do(r)

		q.mu.Lock()
		switch {
		case err != nil:
			a.metrics.Errors++
		case r.op == opRead:
			a.metrics.Reads++
			a.metrics.ReadBytes += int64(len(r.buf))
		default:
			a.metrics.Writes++
			a.metrics.WriteBytes += int64(len(r.buf))
		}
		// Resolving the completion may wake a goroutine that immediately
		// submits more work; do it without holding the lock.
		q.mu.Unlock()
		r.c.Finish(err)
		q.mu.Lock()
	}
}

// pickLocked pops the next request to serve. There must be at least one
// queued request.
func (q *Queue) pickLocked() (*Account, request) {
	n := len(q.mu.accounts)
	// Two passes suffice: the first may only refill credits.
	for i := 0; i < 2*n; i++ {
		a := q.mu.accounts[q.mu.cursor]
		if a.queue.Len() > 0 && a.credits > 0 {
			a.credits--
			r := *a.queue.PeekFront()
			a.queue.PopFront()
			return a, r
		}
		a.credits = a.priority
		q.mu.cursor = (q.mu.cursor + 1) % n
	}
	panic(errors.AssertionFailedf("no queued request among %d accounts", n))
}

func (q *Queue) do(r request) error {
	switch r.op {
	case opWrite:
		n, err := q.file.WriteAt(r.buf, r.off)
		if err == nil && n < len(r.buf) {
			err = io.ErrShortWrite
		}
		return errors.Wrapf(err, "writing %d bytes at offset %d", len(r.buf), r.off)
	default:
		n, err := q.file.ReadAt(r.buf, r.off)
		if errors.Is(err, io.EOF) || (err == nil && n < len(r.buf)) {
			return base.OutOfRangeErrorf("reading %d bytes at offset %d: file ends after %d",
				errors.Safe(len(r.buf)), errors.Safe(r.off), errors.Safe(r.off+int64(n)))
		}
		return errors.Wrapf(err, "reading %d bytes at offset %d", len(r.buf), r.off)
	}
}
