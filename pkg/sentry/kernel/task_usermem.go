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
	goerrors "errors"

	"gvisor.dev/vmcore/pkg/abi/pintos"
	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/sentry/frame"
)

// CPU is what a user program sees of its task: a stack pointer, its
// address space, and the system call trap.
//
// Memory accesses fault pages in on demand. An access the kernel cannot
// satisfy terminates the task, so Load and Store return only on success.
type CPU interface {
	// SP returns the stack pointer.
	SP() hostarch.Addr

	// SetSP sets the stack pointer.
	SetSP(sp hostarch.Addr)

	// Load reads len(dst) bytes of user memory at addr.
	Load(addr hostarch.Addr, dst []byte)

	// Store writes src to user memory at addr.
	Store(addr hostarch.Addr, src []byte)

	// Trap performs the system call whose frame is at the stack pointer
	// and returns the result register.
	Trap() int32
}

// Program is the code of a user program. It runs on the task goroutine with
// the stack set up by the loader, and returns the process's exit status.
type Program func(cpu CPU) int32

// SP implements CPU.SP.
func (t *Task) SP() hostarch.Addr {
	return t.regs.SP
}

// SetSP implements CPU.SetSP.
func (t *Task) SetSP(sp hostarch.Addr) {
	t.regs.SP = sp
}

// Load implements CPU.Load.
func (t *Task) Load(addr hostarch.Addr, dst []byte) {
	if err := t.mm.UserCopyIn(t, addr, dst, t.regs.SP); err != nil {
		t.userFault(addr, err)
	}
}

// Store implements CPU.Store.
func (t *Task) Store(addr hostarch.Addr, src []byte) {
	if err := t.mm.UserCopyOut(t, addr, src, t.regs.SP); err != nil {
		t.userFault(addr, err)
	}
}

// Trap implements CPU.Trap.
func (t *Task) Trap() int32 {
	t.doSyscall()
	return t.regs.Return()
}

// userFault handles a page fault that could not be resolved. It does not
// return.
func (t *Task) userFault(addr hostarch.Addr, err error) {
	if goerrors.Is(err, frame.ErrOutOfFrames) {
		t.k.Panic(t, "page fault at %v: out of physical frames", addr)
		t.kill()
	}
	t.Debugf("Page fault at %v with sp %v: %v", addr, t.regs.SP, err)
	t.Exit(pintos.ExitKilled)
}
