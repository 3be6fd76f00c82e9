// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package ioqueue

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Completion is a future that resolves once a fixed number of units of work
// have finished. It resolves exactly once; the error is the first error
// reported by any unit.
type Completion struct {
	remaining atomic.Int64
	done      chan struct{}
	mu        struct {
		sync.Mutex
		err error
	}
}

// NewCompletion returns a Completion that resolves after n calls to Finish.
// A Completion for zero units is resolved on construction.
func NewCompletion(n int) *Completion {
	c := &Completion{done: make(chan struct{})}
	c.remaining.Store(int64(n))
	if n == 0 {
		close(c.done)
	}
	return c
}

// Resolved returns a Completion that is already resolved with err.
func Resolved(err error) *Completion {
	c := NewCompletion(1)
	c.Finish(err)
	return c
}

// Finish marks one unit as finished, recording err if it is the first error.
func (c *Completion) Finish(err error) {
	if err != nil {
		c.mu.Lock()
		if c.mu.err == nil {
			c.mu.err = err
		}
		c.mu.Unlock()
	}
	switch r := c.remaining.Add(-1); {
	case r == 0:
		close(c.done)
	case r < 0:
		panic(errors.AssertionFailedf("completion finished more times than expected"))
	}
}

// Done returns a channel that is closed when the completion resolves.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns the error of a resolved completion, or nil if it has not
// resolved yet or resolved successfully.
func (c *Completion) Err() error {
	select {
	case <-c.done:
	default:
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.err
}

// Wait blocks until the completion resolves or ctx is done.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
