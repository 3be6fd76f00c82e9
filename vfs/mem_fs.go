// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vfs

import (
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
)

const sep = "/"

// NewMem returns a new memory-backed FS implementation. Directories are
// implicit: any name can be created and MkdirAll is a no-op.
func NewMem() *MemFS {
	return &MemFS{files: make(map[string]*memNode)}
}

// MemFS implements FS.
type MemFS struct {
	mu    sync.Mutex
	files map[string]*memNode
}

var _ FS = (*MemFS)(nil)

type memNode struct {
	mu struct {
		sync.Mutex
		data    []byte
		modTime time.Time
	}
}

func cleanName(name string) string {
	return path.Clean(strings.ReplaceAll(name, "\\", sep))
}

func (y *MemFS) lookup(name string) (*memNode, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	n, ok := y.files[cleanName(name)]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: oserror.ErrNotExist}
	}
	return n, nil
}

// Create implements FS.Create.
func (y *MemFS) Create(name string) (File, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	n := &memNode{}
	n.mu.modTime = time.Now()
	y.files[cleanName(name)] = n
	return &memFile{name: name, n: n, write: true}, nil
}

// Open implements FS.Open.
func (y *MemFS) Open(name string) (File, error) {
	n, err := y.lookup(name)
	if err != nil {
		return nil, err
	}
	return &memFile{name: name, n: n}, nil
}

// OpenReadWrite implements FS.OpenReadWrite.
func (y *MemFS) OpenReadWrite(name string) (File, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	n, ok := y.files[cleanName(name)]
	if !ok {
		n = &memNode{}
		n.mu.modTime = time.Now()
		y.files[cleanName(name)] = n
	}
	return &memFile{name: name, n: n, write: true}, nil
}

// Remove implements FS.Remove.
func (y *MemFS) Remove(name string) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if _, ok := y.files[cleanName(name)]; !ok {
		return &os.PathError{Op: "remove", Path: name, Err: oserror.ErrNotExist}
	}
	delete(y.files, cleanName(name))
	return nil
}

// Rename implements FS.Rename.
func (y *MemFS) Rename(oldname, newname string) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	n, ok := y.files[cleanName(oldname)]
	if !ok {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: oserror.ErrNotExist}
	}
	delete(y.files, cleanName(oldname))
	y.files[cleanName(newname)] = n
	return nil
}

// MkdirAll implements FS.MkdirAll.
func (y *MemFS) MkdirAll(dir string, perm os.FileMode) error {
	return nil
}

// Stat implements FS.Stat.
func (y *MemFS) Stat(name string) (os.FileInfo, error) {
	n, err := y.lookup(name)
	if err != nil {
		return nil, err
	}
	return n.stat(path.Base(cleanName(name))), nil
}

// PathJoin implements FS.PathJoin.
func (*MemFS) PathJoin(elem ...string) string {
	return path.Join(elem...)
}

// List returns the sorted names of all files. It is intended for tests.
func (y *MemFS) List() []string {
	y.mu.Lock()
	defer y.mu.Unlock()
	names := make([]string, 0, len(y.files))
	for name := range y.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (n *memNode) stat(name string) *memFileInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	return &memFileInfo{name: name, size: int64(len(n.mu.data)), modTime: n.mu.modTime}
}

// memFile is a reader or writer of a node's data. Its methods are safe for
// concurrent use.
type memFile struct {
	name  string
	n     *memNode
	write bool
}

var _ File = (*memFile)(nil)

func (f *memFile) Close() error {
	return nil
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.Newf("negative offset %d", off)
	}
	f.n.mu.Lock()
	defer f.n.mu.Unlock()
	if off >= int64(len(f.n.mu.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.n.mu.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *memFile) WriteAt(p []byte, off int64) (int, error) {
	if !f.write {
		return 0, errors.New("vfs: file was not opened for writing")
	}
	if off < 0 {
		return 0, errors.Newf("negative offset %d", off)
	}
	f.n.mu.Lock()
	defer f.n.mu.Unlock()
	if end := off + int64(len(p)); end > int64(len(f.n.mu.data)) {
		if end > int64(cap(f.n.mu.data)) {
			grown := make([]byte, end, max(end, 2*int64(cap(f.n.mu.data))))
			copy(grown, f.n.mu.data)
			f.n.mu.data = grown
		} else {
			f.n.mu.data = f.n.mu.data[:end]
		}
	}
	f.n.mu.modTime = time.Now()
	return copy(f.n.mu.data[off:], p), nil
}

func (f *memFile) Stat() (os.FileInfo, error) {
	return f.n.stat(path.Base(cleanName(f.name))), nil
}

func (f *memFile) Sync() error {
	return nil
}

func (f *memFile) SyncData() error {
	return nil
}

func (f *memFile) Preallocate(offset, length int64) error {
	return nil
}

func (f *memFile) Truncate(size int64) error {
	if !f.write {
		return errors.New("vfs: file was not opened for writing")
	}
	f.n.mu.Lock()
	defer f.n.mu.Unlock()
	if size <= int64(len(f.n.mu.data)) {
		f.n.mu.data = f.n.mu.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, f.n.mu.data)
	f.n.mu.data = grown
	return nil
}

// memFileInfo implements os.FileInfo for a memFile.
type memFileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

var _ os.FileInfo = (*memFileInfo)(nil)

func (f *memFileInfo) Name() string       { return f.name }
func (f *memFileInfo) Size() int64        { return f.size }
func (f *memFileInfo) Mode() os.FileMode  { return 0755 }
func (f *memFileInfo) ModTime() time.Time { return f.modTime }
func (f *memFileInfo) IsDir() bool        { return false }
func (f *memFileInfo) Sys() interface{}   { return nil }
