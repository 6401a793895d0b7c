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

// Package ramfs provides an in-memory filesystem. Each file uses a simple
// byte slice as storage, and thus should only be used for small files.
package ramfs

import (
	"sort"

	"gvisor.dev/vmcore/pkg/errors/linuxerr"
	"gvisor.dev/vmcore/pkg/sentry/context"
	"gvisor.dev/vmcore/pkg/sentry/fs"
	"gvisor.dev/vmcore/pkg/sync"
)

// file is the inode of one ramfs file.
type file struct {
	// mu protects data. The length of data never changes.
	mu   sync.RWMutex
	data []byte
}

// ReadAt implements fs.Inode.ReadAt.
func (f *file) ReadAt(p []byte, off int64) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return copy(p, f.data[off:]), nil
}

// WriteAt implements fs.Inode.WriteAt.
func (f *file) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copy(f.data[off:], p), nil
}

// Size implements fs.Inode.Size.
func (f *file) Size() int64 {
	return int64(len(f.data))
}

// Release implements fs.Inode.Release.
func (*file) Release() {}

// Filesystem is an in-memory fs.Filesystem.
type Filesystem struct {
	// capacity bounds the total size of linked files. Zero means no bound.
	capacity int64

	// mu protects the fields below.
	mu sync.Mutex

	// files maps names to inodes.
	files map[string]*file

	// used is the total size of linked files.
	used int64
}

// New returns an empty Filesystem holding at most capacity bytes of linked
// files. A capacity of zero means no bound.
func New(capacity int64) *Filesystem {
	return &Filesystem{
		capacity: capacity,
		files:    make(map[string]*file),
	}
}

// Create implements fs.Filesystem.Create.
func (r *Filesystem) Create(ctx context.Context, name string, size int64) error {
	if err := fs.ValidateName(name); err != nil {
		return err
	}
	if size < 0 {
		return linuxerr.EINVAL
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.createLocked(name, size); err != nil {
		return err
	}
	ctx.Debugf("ramfs: created %q (%d bytes)", name, size)
	return nil
}

// Preconditions: r.mu must be locked. name must be valid.
func (r *Filesystem) createLocked(name string, size int64) (*file, error) {
	if _, ok := r.files[name]; ok {
		return nil, linuxerr.EEXIST
	}
	if r.capacity > 0 && r.used+size > r.capacity {
		return nil, linuxerr.ENOSPC
	}
	f := &file{data: make([]byte, size)}
	r.files[name] = f
	r.used += size
	return f, nil
}

// Remove implements fs.Filesystem.Remove.
func (r *Filesystem) Remove(ctx context.Context, name string) error {
	if err := fs.ValidateName(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[name]
	if !ok {
		return linuxerr.ENOENT
	}
	delete(r.files, name)
	r.used -= f.Size()
	ctx.Debugf("ramfs: removed %q", name)
	return nil
}

// Open implements fs.Filesystem.Open.
func (r *Filesystem) Open(ctx context.Context, name string) (*fs.File, error) {
	if err := fs.ValidateName(name); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[name]
	if !ok {
		return nil, linuxerr.ENOENT
	}
	return fs.NewFile(name, f), nil
}

// WriteFile creates name with exactly the contents of data. It is used to
// populate the filesystem before boot.
func (r *Filesystem) WriteFile(name string, data []byte) error {
	if err := fs.ValidateName(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := r.createLocked(name, int64(len(data)))
	if err != nil {
		return err
	}
	copy(f.data, data)
	return nil
}

// ReadFile returns a copy of the contents of name.
func (r *Filesystem) ReadFile(name string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[name]
	if !ok {
		return nil, linuxerr.ENOENT
	}
	data := make([]byte, f.Size())
	f.ReadAt(data, 0)
	return data, nil
}

// Names returns the names of all linked files, sorted.
func (r *Filesystem) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.files))
	for name := range r.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
