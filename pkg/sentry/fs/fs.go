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

// Package fs defines the flat filesystem interface used by the kernel and
// the open file type shared by all implementations.
//
// The filesystem has a single directory. Files have a fixed size chosen at
// creation: writes never extend a file. A removed file stays readable and
// writable through handles that were open before the removal.
package fs

import (
	"gvisor.dev/vmcore/pkg/errors/linuxerr"
	"gvisor.dev/vmcore/pkg/sentry/context"
)

// NameMax is the maximum length of a file name.
const NameMax = 14

// Inode is the storage behind open files.
//
// ReadAt and WriteAt are only called with ranges inside [0, Size()).
// Implementations must be safe for concurrent use.
type Inode interface {
	// ReadAt reads len(p) bytes at off.
	ReadAt(p []byte, off int64) (int, error)

	// WriteAt writes len(p) bytes at off.
	WriteAt(p []byte, off int64) (int, error)

	// Size returns the fixed size of the file.
	Size() int64

	// Release is called once the last File referring to the inode is
	// closed.
	Release()
}

// Filesystem is a flat namespace of fixed-size files.
type Filesystem interface {
	// Create creates a file of the given size, zero-filled. It fails with
	// EEXIST if the name is taken.
	Create(ctx context.Context, name string, size int64) error

	// Remove unlinks the named file. Open files are unaffected.
	Remove(ctx context.Context, name string) error

	// Open opens the named file with its position at 0.
	Open(ctx context.Context, name string) (*File, error)
}

// ValidateName checks a file name against the namespace rules.
func ValidateName(name string) error {
	switch {
	case name == "":
		return linuxerr.ENOENT
	case len(name) > NameMax:
		return linuxerr.ENAMETOOLONG
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == 0 {
			return linuxerr.EINVAL
		}
	}
	return nil
}
