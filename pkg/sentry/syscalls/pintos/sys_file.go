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

package pintos

import (
	"gvisor.dev/vmcore/pkg/errors/linuxerr"
	"gvisor.dev/vmcore/pkg/sentry/arch"
	"gvisor.dev/vmcore/pkg/sentry/fs"
	"gvisor.dev/vmcore/pkg/sentry/kernel"
)

// copyInName reads a file name argument. A pointer to a page that is not
// resident is EFAULT; later pages of the name are loaded on demand. A name
// longer than fs.NameMax is ENAMETOOLONG.
func copyInName(t *kernel.Task, arg arch.SyscallArgument) (string, error) {
	addr := arg.Pointer()
	mm := t.MemoryManager()
	if !mm.CheckPointer(addr) {
		return "", linuxerr.EFAULT
	}
	return mm.CheckAndCopyInString(t, addr, fs.NameMax+1, t.TrapSP())
}

// Create implements create: it returns 1 if a file of size args[1] was
// created, 0 otherwise.
func Create(t *kernel.Task, args arch.SyscallArguments) (int32, error) {
	name, err := copyInName(t, args[0])
	if err != nil {
		return 0, err
	}
	size := int64(args[1].Uint())

	files := t.Kernel().FileTable()
	files.Lock()
	defer files.Unlock()
	if err := t.Kernel().Filesystem().Create(t, name, size); err != nil {
		return 0, err
	}
	return 1, nil
}

// Remove implements remove: it returns 1 if the file was removed, 0
// otherwise.
func Remove(t *kernel.Task, args arch.SyscallArguments) (int32, error) {
	name, err := copyInName(t, args[0])
	if err != nil {
		return 0, err
	}

	files := t.Kernel().FileTable()
	files.Lock()
	defer files.Unlock()
	if err := t.Kernel().Filesystem().Remove(t, name); err != nil {
		return 0, err
	}
	return 1, nil
}

// Open implements open: it returns a new descriptor owned by the caller, or
// -1.
func Open(t *kernel.Task, args arch.SyscallArguments) (int32, error) {
	name, err := copyInName(t, args[0])
	if err != nil {
		return -1, err
	}

	files := t.Kernel().FileTable()
	files.Lock()
	defer files.Unlock()
	f, err := t.Kernel().Filesystem().Open(t, name)
	if err != nil {
		return -1, err
	}
	fd := t.Kernel().NextID()
	files.NewFDLocked(t.ThreadID(), fd, f)
	return fd, nil
}

// Filesize implements filesize.
func Filesize(t *kernel.Task, args arch.SyscallArguments) (int32, error) {
	fd := args[0].Int()

	files := t.Kernel().FileTable()
	files.Lock()
	defer files.Unlock()
	f := files.GetLocked(t.ThreadID(), fd)
	if f == nil {
		return -1, linuxerr.EBADF
	}
	return int32(f.Length()), nil
}

// Seek implements seek. Unknown descriptors are ignored.
func Seek(t *kernel.Task, args arch.SyscallArguments) (int32, error) {
	fd := args[0].Int()
	pos := int64(args[1].Uint())

	files := t.Kernel().FileTable()
	files.Lock()
	defer files.Unlock()
	f := files.GetLocked(t.ThreadID(), fd)
	if f == nil {
		return 0, linuxerr.EBADF
	}
	return 0, f.SetPosition(pos)
}

// Tell implements tell. It returns 0 for unknown descriptors.
func Tell(t *kernel.Task, args arch.SyscallArguments) (int32, error) {
	fd := args[0].Int()

	files := t.Kernel().FileTable()
	files.Lock()
	defer files.Unlock()
	f := files.GetLocked(t.ThreadID(), fd)
	if f == nil {
		return 0, linuxerr.EBADF
	}
	return int32(f.Tell()), nil
}

// Close implements close. Only descriptors owned by the caller are closed;
// others are ignored.
func Close(t *kernel.Task, args arch.SyscallArguments) (int32, error) {
	fd := args[0].Int()

	files := t.Kernel().FileTable()
	files.Lock()
	defer files.Unlock()
	f := files.RemoveLocked(t.ThreadID(), fd)
	if f == nil {
		return 0, linuxerr.EBADF
	}
	return 0, f.Close()
}
