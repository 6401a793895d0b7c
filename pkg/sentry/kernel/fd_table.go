// Copyright 2018 The gVisor Authors.
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

package kernel

import (
	"fmt"
	"sort"
	"strings"

	"gvisor.dev/vmcore/pkg/sentry/context"
	"gvisor.dev/vmcore/pkg/sentry/fs"
	"gvisor.dev/vmcore/pkg/sync"
)

// descriptor is one open file in the global table.
type descriptor struct {
	owner ThreadID
	file  *fs.File
}

// FileTable is the kernel-wide table of open files. Descriptors are global
// identifiers, but every lookup is filtered by the calling task: a task can
// only use the descriptors it opened.
//
// The table's mutex also serializes filesystem access. File system calls
// hold it across the whole call, including the data transfer.
type FileTable struct {
	mu sync.Mutex

	// descriptors maps descriptor numbers to open files.
	descriptors map[int32]descriptor
}

func (f *FileTable) init() {
	f.descriptors = make(map[int32]descriptor)
}

// Lock locks the table.
func (f *FileTable) Lock() {
	f.mu.Lock()
}

// Unlock unlocks the table.
func (f *FileTable) Unlock() {
	f.mu.Unlock()
}

// NewFDLocked installs file under fd on behalf of owner.
//
// Preconditions: f must be locked. fd is not in use.
func (f *FileTable) NewFDLocked(owner ThreadID, fd int32, file *fs.File) {
	if _, ok := f.descriptors[fd]; ok {
		panic(fmt.Sprintf("descriptor %d allocated twice", fd))
	}
	f.descriptors[fd] = descriptor{owner: owner, file: file}
}

// GetLocked returns the file open under fd by owner, or nil.
//
// Preconditions: f must be locked.
func (f *FileTable) GetLocked(owner ThreadID, fd int32) *fs.File {
	d, ok := f.descriptors[fd]
	if !ok || d.owner != owner {
		return nil
	}
	return d.file
}

// RemoveLocked removes fd if owner opened it, and returns the file, which
// the caller must close. It returns nil if owner has no such descriptor.
//
// Preconditions: f must be locked.
func (f *FileTable) RemoveLocked(owner ThreadID, fd int32) *fs.File {
	d, ok := f.descriptors[fd]
	if !ok || d.owner != owner {
		return nil
	}
	delete(f.descriptors, fd)
	return d.file
}

// RemoveAll closes every file owner has open.
func (f *FileTable) RemoveAll(ctx context.Context, owner ThreadID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for fd, d := range f.descriptors {
		if d.owner != owner {
			continue
		}
		delete(f.descriptors, fd)
		if err := d.file.Close(); err != nil {
			ctx.Warningf("Closing descriptor %d: %v", fd, err)
		}
	}
}

// Size returns the number of open descriptors.
func (f *FileTable) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.descriptors)
}

// Owned returns the descriptors owner has open, in increasing order.
func (f *FileTable) Owned(owner ThreadID) []int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var fds []int32
	for fd, d := range f.descriptors {
		if d.owner == owner {
			fds = append(fds, fd)
		}
	}
	sort.Slice(fds, func(i, j int) bool { return fds[i] < fds[j] })
	return fds
}

// String returns a listing of the table, one descriptor per line.
func (f *FileTable) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	fds := make([]int32, 0, len(f.descriptors))
	for fd := range f.descriptors {
		fds = append(fds, fd)
	}
	sort.Slice(fds, func(i, j int) bool { return fds[i] < fds[j] })
	var b strings.Builder
	for _, fd := range fds {
		d := f.descriptors[fd]
		fmt.Fprintf(&b, "\tfd:%d => owner %d name:%s\n", fd, d.owner, d.file.Name())
	}
	return b.String()
}
