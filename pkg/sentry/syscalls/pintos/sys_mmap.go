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
	"gvisor.dev/vmcore/pkg/abi/pintos"
	"gvisor.dev/vmcore/pkg/errors/linuxerr"
	"gvisor.dev/vmcore/pkg/sentry/arch"
	"gvisor.dev/vmcore/pkg/sentry/kernel"
	"gvisor.dev/vmcore/pkg/sentry/mm"
)

// Mmap implements mmap: it maps the file open as args[0] at args[1] and
// returns the mapping ID, or -1.
func Mmap(t *kernel.Task, args arch.SyscallArguments) (int32, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()

	if fd == pintos.STDIN_FILENO || fd == pintos.STDOUT_FILENO {
		return pintos.MapFailed, linuxerr.EBADF
	}
	files := t.Kernel().FileTable()
	files.Lock()
	defer files.Unlock()
	f := files.GetLocked(t.ThreadID(), fd)
	if f == nil {
		return pintos.MapFailed, linuxerr.EBADF
	}
	id, err := t.MemoryManager().MMap(t, mm.MMapOpts{File: f, Addr: addr})
	if err != nil {
		return pintos.MapFailed, err
	}
	return int32(id), nil
}

// Munmap implements munmap. Unknown mapping IDs are ignored.
func Munmap(t *kernel.Task, args arch.SyscallArguments) (int32, error) {
	id := mm.MapID(args[0].Int())

	files := t.Kernel().FileTable()
	files.Lock()
	defer files.Unlock()
	t.MemoryManager().MUnmap(t, id)
	return 0, nil
}
