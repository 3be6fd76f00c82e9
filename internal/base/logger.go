// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// Logger defines an interface for writing log messages.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// DefaultLogger logs to the Go stdlib logs.
var DefaultLogger defaultLogger

type defaultLogger struct{}

var _ Logger = DefaultLogger

// Infof implements the Logger.Infof interface.
func (defaultLogger) Infof(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}

// Errorf implements the Logger.Errorf interface.
func (defaultLogger) Errorf(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}

// Fatalf implements the Logger.Fatalf interface.
func (defaultLogger) Fatalf(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// NoopLoggerForTesting discards all messages. Fatalf panics so that a test
// which trips a fatal condition fails loudly.
var NoopLoggerForTesting noopLogger

type noopLogger struct{}

var _ Logger = NoopLoggerForTesting

func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}
func (noopLogger) Fatalf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

// InMemLogger records all messages in memory. It is used by tests that
// assert on the events a component reports. It is safe for concurrent use.
type InMemLogger struct {
	mu    sync.Mutex
	lines []string
}

var _ Logger = (*InMemLogger)(nil)

func (l *InMemLogger) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, s)
}

// Lines returns a copy of the recorded messages.
func (l *InMemLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// String returns the recorded messages, one per line.
func (l *InMemLogger) String() string {
	return strings.Join(l.Lines(), "\n")
}

// Infof implements the Logger.Infof interface.
func (l *InMemLogger) Infof(format string, args ...interface{}) {
	l.add(fmt.Sprintf(format, args...))
}

// Errorf implements the Logger.Errorf interface.
func (l *InMemLogger) Errorf(format string, args ...interface{}) {
	l.add("error: " + fmt.Sprintf(format, args...))
}

// Fatalf implements the Logger.Fatalf interface.
func (l *InMemLogger) Fatalf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}
