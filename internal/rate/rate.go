// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package rate provides the byte-rate limiter used to pace garbage collection
// writes.
package rate

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/tokenbucket"
)

// A Limiter paces a stream of bytes to a target rate, with bursts of at most
// the configured number of bytes. A nil *Limiter never waits.
//
// Limiter is thread-safe.
type Limiter struct {
	mu struct {
		sync.Mutex
		tb tokenbucket.TokenBucket
	}
	sleepFn func(ctx context.Context, d time.Duration) error
}

// NewLimiter returns a new Limiter that allows bytesPerSec on average with
// bursts of at most burst bytes. It returns nil if bytesPerSec is not
// positive.
func NewLimiter(bytesPerSec, burst float64) *Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	l := &Limiter{sleepFn: sleep}
	l.mu.tb.Init(tokenbucket.TokensPerSecond(bytesPerSec), tokenbucket.Tokens(burst))
	return l
}

// NewLimiterWithCustomTime returns a new Limiter that uses the given
// functions to retrieve the current time and to sleep (useful for testing).
func NewLimiterWithCustomTime(
	bytesPerSec, burst float64, nowFn func() time.Time, sleepFn func(d time.Duration),
) *Limiter {
	l := &Limiter{
		sleepFn: func(ctx context.Context, d time.Duration) error {
			sleepFn(d)
			return ctx.Err()
		},
	}
	l.mu.tb.InitWithNowFn(tokenbucket.TokensPerSecond(bytesPerSec), tokenbucket.Tokens(burst), nowFn)
	return l
}

// Wait blocks until n bytes may proceed or ctx is done. If n is more than the
// burst, the token bucket goes into debt, delaying future callers.
func (l *Limiter) Wait(ctx context.Context, n int64) error {
	if l == nil {
		return nil
	}
	for {
		l.mu.Lock()
		ok, d := l.mu.tb.TryToFulfill(tokenbucket.Tokens(n))
		l.mu.Unlock()
		if ok {
			return nil
		}
		if err := l.sleepFn(ctx, d); err != nil {
			return err
		}
	}
}

// Remove takes n bytes without waiting; it can put the bucket into debt.
func (l *Limiter) Remove(n int64) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mu.tb.Adjust(-tokenbucket.Tokens(n))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
