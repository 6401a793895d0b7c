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
	"sort"
	"time"

	"gvisor.dev/vmcore/pkg/abi/pintos"
	"gvisor.dev/vmcore/pkg/errors/linuxerr"
	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/log"
	"gvisor.dev/vmcore/pkg/sentry/arch"
	"gvisor.dev/vmcore/pkg/sentry/frame"
)

// SyscallFn is a syscall implementation.
//
// The returned value is stored in the result register even when err is
// not nil, so handlers return the failure value the ABI prescribes (-1 or
// 0) together with the error. Two errors are not returned to the caller:
// EFAULT terminates the task with status -1, and frame.ErrOutOfFrames
// panics the kernel.
type SyscallFn func(t *Task, args arch.SyscallArguments) (int32, error)

// MissingFn is a syscall to be called when an implementation is missing.
type MissingFn func(t *Task, sysno uintptr, args arch.SyscallArguments)

// Syscall includes the syscall implementation and compatibility information.
type Syscall struct {
	// Name is the syscall name.
	Name string

	// Fn is the implementation of the syscall.
	Fn SyscallFn

	// Void is true for syscalls without a result. They leave the result
	// register unchanged.
	Void bool
}

// SyscallTable is a lookup table of system calls.
type SyscallTable struct {
	// Name is the name of the ABI the table implements.
	Name string

	// Table is the collection of functions.
	Table map[uintptr]Syscall

	// Missing is called for syscalls with no entry in Table. If nil, a
	// rate-limited warning is logged. The result register is left
	// unchanged either way.
	Missing MissingFn
}

// Lookup returns the syscall implementation, if one exists.
func (s *SyscallTable) Lookup(sysno uintptr) SyscallFn {
	if sc, ok := s.Table[sysno]; ok {
		return sc.Fn
	}
	return nil
}

// LookupName looks up a syscall name.
func (s *SyscallTable) LookupName(sysno uintptr) string {
	if sc, ok := s.Table[sysno]; ok {
		return sc.Name
	}
	return ""
}

// Numbers returns the implemented syscall numbers in increasing order.
func (s *SyscallTable) Numbers() []uintptr {
	nrs := make([]uintptr, 0, len(s.Table))
	for nr := range s.Table {
		nrs = append(nrs, nr)
	}
	sort.Slice(nrs, func(i, j int) bool { return nrs[i] < nrs[j] })
	return nrs
}

// unknownSyscallLog reports unimplemented syscalls. User programs can
// trigger it at will.
var unknownSyscallLog = log.BasicRateLimitedLogger(time.Second)

// doSyscall is the system call trap. The frame at the user stack pointer
// holds the syscall number followed by its arguments; every word of it must
// be resident, otherwise the task is terminated.
//
// Preconditions: The caller must be running on the task goroutine.
func (t *Task) doSyscall() {
	if t.k.IsStopped() {
		t.kill()
	}
	sp := t.regs.SP
	for i := 0; i < arch.SyscallFrameWords; i++ {
		if !t.mm.CheckPointer(sp + hostarch.Addr(i*hostarch.WordSize)) {
			t.Debugf("Syscall frame at %v is not mapped", sp)
			t.Exit(pintos.ExitKilled)
		}
	}
	var words [arch.SyscallFrameSize]byte
	if _, err := t.mm.CopyIn(t, sp, words[:]); err != nil {
		t.Debugf("Syscall frame at %v is not readable: %v", sp, err)
		t.Exit(pintos.ExitKilled)
	}
	sysno := uintptr(hostarch.ByteOrder.Uint32(words[:]))
	var args arch.SyscallArguments
	for i := range args {
		args[i].Value = hostarch.ByteOrder.Uint32(words[(i+1)*hostarch.WordSize:])
	}
	t.trapSP = sp
	t.executeSyscall(sysno, args)
	if t.k.IsStopped() {
		t.kill()
	}
}

// executeSyscall runs one syscall and stores its result.
func (t *Task) executeSyscall(sysno uintptr, args arch.SyscallArguments) {
	s := t.k.syscalls
	sc, ok := s.Table[sysno]
	if !ok {
		if s.Missing != nil {
			s.Missing(t, sysno, args)
		} else {
			unknownSyscallLog.Warningf("%sUnknown syscall %d (%#x, %#x, %#x)", t.logPrefix, sysno, args[0].Value, args[1].Value, args[2].Value)
		}
		return
	}
	if t.IsLogging(log.Debug) {
		t.Debugf("%s(%#x, %#x, %#x)", sc.Name, args[0].Value, args[1].Value, args[2].Value)
	}
	rv, err := sc.Fn(t, args)
	switch {
	case err == nil:
	case goerrors.Is(err, frame.ErrOutOfFrames):
		t.k.Panic(t, "%s: out of physical frames", sc.Name)
		t.kill()
	case linuxerr.Equals(linuxerr.EFAULT, err):
		t.Debugf("%s: bad user address, terminating", sc.Name)
		t.Exit(pintos.ExitKilled)
	default:
		t.Debugf("%s failed: %v", sc.Name, err)
	}
	if !sc.Void {
		t.regs.SetReturn(rv)
	}
}
