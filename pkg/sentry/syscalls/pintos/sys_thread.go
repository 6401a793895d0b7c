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
)

// Halt implements halt: the machine powers off.
func Halt(t *kernel.Task, args arch.SyscallArguments) (int32, error) {
	t.Kernel().Halt(t)
	return 0, nil
}

// Exit implements exit. It does not return.
func Exit(t *kernel.Task, args arch.SyscallArguments) (int32, error) {
	t.Exit(args[0].Int())
	panic("unreachable")
}

// Exec implements exec: it starts the command line at args[0] as a child
// and returns the child's ID once the child has loaded, or -1.
func Exec(t *kernel.Task, args arch.SyscallArguments) (int32, error) {
	addr := args[0].Pointer()
	if !t.MemoryManager().CheckPointer(addr) {
		return -1, linuxerr.EFAULT
	}
	cmdline, err := t.MemoryManager().CheckAndCopyInString(t, addr, pintos.CmdlineMax, t.TrapSP())
	if err != nil {
		return -1, err
	}
	return int32(t.Exec(cmdline)), nil
}

// Wait implements wait.
func Wait(t *kernel.Task, args arch.SyscallArguments) (int32, error) {
	tid := kernel.ThreadID(args[0].Int())
	status := t.Wait(tid)
	return status, nil
}
