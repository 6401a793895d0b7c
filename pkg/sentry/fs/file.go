// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fs

import (
	"fmt"
	"sync/atomic"

	"gvisor.dev/vmcore/pkg/errors/linuxerr"
	"gvisor.dev/vmcore/pkg/sync"
)

// inodeRef is an Inode shared by every File opened on it.
type inodeRef struct {
	Inode

	// name is the name the inode was opened by, for debugging.
	name string

	refs atomic.Int64
}

func (r *inodeRef) decRef() {
	switch n := r.refs.Add(-1); {
	case n == 0:
		r.Inode.Release()
	case n < 0:
		panic(fmt.Sprintf("inode %q released with %d references", r.name, n))
	}
}

// File is an open file: a reference on an inode plus a private position.
type File struct {
	ref *inodeRef

	// mu protects the fields below.
	mu sync.Mutex

	// pos is the current file position.
	pos int64

	// closed is set by Close.
	closed bool
}

// NewFile returns a File on a newly opened inode, positioned at 0. The inode
// is released when the returned File and every File reopened from it are
// closed.
func NewFile(name string, inode Inode) *File {
	r := &inodeRef{Inode: inode, name: name}
	r.refs.Store(1)
	return &File{ref: r}
}

// Name returns the name the file was opened by.
func (f *File) Name() string {
	return f.ref.name
}

// Reopen returns a new File on the same inode with its own position, at 0.
// The new file stays usable after f is closed.
func (f *File) Reopen() (*File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, linuxerr.EBADF
	}
	f.ref.refs.Add(1)
	return &File{ref: f.ref}, nil
}

// Length returns the size of the file in bytes.
func (f *File) Length() int64 {
	return f.ref.Size()
}

// Read reads from the current position and advances it by the number of
// bytes read. Reading at or past the end of the file returns 0.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.readAtLocked(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// ReadAt reads at off without moving the position.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readAtLocked(p, off)
}

// Write writes at the current position and advances it by the number of
// bytes written. Writes stop at the end of the file.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.writeAtLocked(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// WriteAt writes at off without moving the position. Writes stop at the
// end of the file.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeAtLocked(p, off)
}

// SetPosition sets the position. Positions past the end of the file are
// allowed; reads and writes there transfer nothing.
func (f *File) SetPosition(pos int64) error {
	if pos < 0 {
		return linuxerr.EINVAL
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return linuxerr.EBADF
	}
	f.pos = pos
	return nil
}

// Tell returns the position.
func (f *File) Tell() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// Close drops the file's reference on its inode. Closing twice is an error.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return linuxerr.EBADF
	}
	f.closed = true
	f.ref.decRef()
	return nil
}

// clampLocked returns the part of [off, off+n) inside the file.
//
// Preconditions: f.mu must be locked.
func (f *File) clampLocked(n int, off int64) (int, error) {
	if f.closed {
		return 0, linuxerr.EBADF
	}
	if off < 0 {
		return 0, linuxerr.EINVAL
	}
	size := f.ref.Size()
	if off >= size {
		return 0, nil
	}
	if rem := size - off; int64(n) > rem {
		n = int(rem)
	}
	return n, nil
}

func (f *File) readAtLocked(p []byte, off int64) (int, error) {
	n, err := f.clampLocked(len(p), off)
	if n == 0 || err != nil {
		return 0, err
	}
	return f.ref.ReadAt(p[:n], off)
}

func (f *File) writeAtLocked(p []byte, off int64) (int, error) {
	n, err := f.clampLocked(len(p), off)
	if n == 0 || err != nil {
		return 0, err
	}
	return f.ref.WriteAt(p[:n], off)
}
