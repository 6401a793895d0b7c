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
	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/sentry/arch"
	"gvisor.dev/vmcore/pkg/sentry/kernel"
)

// Read implements read. The whole buffer is made resident before anything
// is transferred; a buffer that cannot be terminates the caller.
//
// Reading from the console stops at a NUL byte, at the end of input, or
// one byte short of size, and the data read is NUL-terminated.
func Read(t *kernel.Task, args arch.SyscallArguments) (int32, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].Uint()

	mm := t.MemoryManager()
	if err := mm.CheckAndPrepareBuffer(t, addr, uint64(size), hostarch.Write, t.TrapSP()); err != nil {
		return -1, err
	}

	files := t.Kernel().FileTable()
	files.Lock()
	defer files.Unlock()
	switch fd {
	case pintos.STDOUT_FILENO:
		return -1, linuxerr.EBADF
	case pintos.STDIN_FILENO:
		return readConsole(t, addr, size)
	}
	f := files.GetLocked(t.ThreadID(), fd)
	if f == nil {
		return -1, linuxerr.EBADF
	}
	n := int64(size)
	if rem := f.Length() - f.Tell(); n > rem {
		n = rem
	}
	if n <= 0 {
		return 0, nil
	}
	buf := make([]byte, n)
	read, err := f.Read(buf)
	if err != nil {
		return -1, err
	}
	if _, err := mm.CopyOut(t, addr, buf[:read]); err != nil {
		return -1, err
	}
	return int32(read), nil
}

func readConsole(t *kernel.Task, addr hostarch.Addr, size uint32) (int32, error) {
	if size == 0 {
		return 0, nil
	}
	var buf []byte
	for uint32(len(buf)) < size-1 {
		c, err := t.Kernel().Console().ReadByte()
		if err != nil || c == 0 {
			break
		}
		buf = append(buf, c)
	}
	if _, err := t.MemoryManager().CopyOut(t, addr, append(buf, 0)); err != nil {
		return -1, err
	}
	return int32(len(buf)), nil
}

// Write implements write. The whole buffer is made resident before anything
// is transferred; a buffer that cannot be terminates the caller.
func Write(t *kernel.Task, args arch.SyscallArguments) (int32, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].Uint()

	mm := t.MemoryManager()
	if err := mm.CheckAndPrepareBuffer(t, addr, uint64(size), hostarch.Read, t.TrapSP()); err != nil {
		return -1, err
	}

	files := t.Kernel().FileTable()
	files.Lock()
	defer files.Unlock()
	if fd == pintos.STDIN_FILENO {
		return -1, linuxerr.EBADF
	}
	var f interface {
		Write(p []byte) (int, error)
	}
	if fd == pintos.STDOUT_FILENO {
		f = t.Kernel().Console()
	} else if file := files.GetLocked(t.ThreadID(), fd); file != nil {
		f = file
	} else {
		return -1, linuxerr.EBADF
	}
	buf := make([]byte, size)
	if _, err := mm.CopyIn(t, addr, buf); err != nil {
		return -1, err
	}
	n, err := f.Write(buf)
	if err != nil {
		return -1, err
	}
	return int32(n), nil
}
