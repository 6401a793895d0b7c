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

// Package pintos provides syscall implementations of the teaching kernel's
// user ABI.
package pintos

import (
	"gvisor.dev/vmcore/pkg/abi/pintos"
	"gvisor.dev/vmcore/pkg/sentry/kernel"
)

// Syscalls is the syscall table of the teaching kernel's user ABI.
var Syscalls = &kernel.SyscallTable{
	Name: "pintos",
	Table: map[uintptr]kernel.Syscall{
		pintos.SYS_HALT:     {Name: "halt", Fn: Halt, Void: true},
		pintos.SYS_EXIT:     {Name: "exit", Fn: Exit, Void: true},
		pintos.SYS_EXEC:     {Name: "exec", Fn: Exec},
		pintos.SYS_WAIT:     {Name: "wait", Fn: Wait},
		pintos.SYS_CREATE:   {Name: "create", Fn: Create},
		pintos.SYS_REMOVE:   {Name: "remove", Fn: Remove},
		pintos.SYS_OPEN:     {Name: "open", Fn: Open},
		pintos.SYS_FILESIZE: {Name: "filesize", Fn: Filesize},
		pintos.SYS_READ:     {Name: "read", Fn: Read},
		pintos.SYS_WRITE:    {Name: "write", Fn: Write},
		pintos.SYS_SEEK:     {Name: "seek", Fn: Seek, Void: true},
		pintos.SYS_TELL:     {Name: "tell", Fn: Tell},
		pintos.SYS_CLOSE:    {Name: "close", Fn: Close, Void: true},
		pintos.SYS_MMAP:     {Name: "mmap", Fn: Mmap},
		pintos.SYS_MUNMAP:   {Name: "munmap", Fn: Munmap, Void: true},
	},
}
