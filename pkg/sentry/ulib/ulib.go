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

// Package ulib is the user-side runtime of simulated programs: system call
// stubs that build frames on the user stack and trap, and helpers for
// working with user memory.
//
// Everything here runs "in user mode": it only reaches the address space
// through kernel.CPU, so every access goes through the simulated MMU.
package ulib

import (
	"gvisor.dev/vmcore/pkg/abi/pintos"
	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/sentry/arch"
	"gvisor.dev/vmcore/pkg/sentry/kernel"
)

// Main adapts fn to a kernel.Program. fn receives the arguments the loader
// pushed on the stack.
func Main(fn func(cpu kernel.CPU, args []string) int32) kernel.Program {
	return func(cpu kernel.CPU) int32 {
		return fn(cpu, Args(cpu))
	}
}

// Args reads argc and argv from the initial stack.
func Args(cpu kernel.CPU) []string {
	sp := cpu.SP()
	argc := LoadWord(cpu, sp+hostarch.WordSize)
	argv := hostarch.Addr(LoadWord(cpu, sp+2*hostarch.WordSize))
	args := make([]string, 0, argc)
	for i := uint32(0); i < argc; i++ {
		p := hostarch.Addr(LoadWord(cpu, argv+hostarch.Addr(i*hostarch.WordSize)))
		args = append(args, LoadString(cpu, p))
	}
	return args
}

// LoadWord reads a word of user memory.
func LoadWord(cpu kernel.CPU, addr hostarch.Addr) uint32 {
	var b [hostarch.WordSize]byte
	cpu.Load(addr, b[:])
	return hostarch.ByteOrder.Uint32(b[:])
}

// StoreWord writes a word of user memory.
func StoreWord(cpu kernel.CPU, addr hostarch.Addr, v uint32) {
	var b [hostarch.WordSize]byte
	hostarch.ByteOrder.PutUint32(b[:], v)
	cpu.Store(addr, b[:])
}

// LoadString reads a NUL-terminated string from user memory.
func LoadString(cpu kernel.CPU, addr hostarch.Addr) string {
	var s []byte
	var b [1]byte
	for {
		cpu.Load(addr, b[:])
		if b[0] == 0 {
			return string(s)
		}
		s = append(s, b[0])
		addr++
	}
}

// LoadBytes reads n bytes of user memory.
func LoadBytes(cpu kernel.CPU, addr hostarch.Addr, n int) []byte {
	b := make([]byte, n)
	cpu.Load(addr, b)
	return b
}

// Alloca reserves n bytes on the stack, word-aligned, and returns their
// address. The memory is not touched, so pages are only created once used.
func Alloca(cpu kernel.CPU, n uint64) hostarch.Addr {
	sp := (cpu.SP() - hostarch.Addr(n)) &^ (hostarch.WordSize - 1)
	cpu.SetSP(sp)
	return sp
}

// PushString copies s and a terminating NUL onto the stack and returns its
// address.
func PushString(cpu kernel.CPU, s string) hostarch.Addr {
	addr := Alloca(cpu, uint64(len(s))+1)
	cpu.Store(addr, append([]byte(s), 0))
	return addr
}

// Syscall pushes a frame for syscall nr and traps. The stack pointer is
// restored afterward.
func Syscall(cpu kernel.CPU, nr uint32, a0, a1, a2 arch.SyscallArgument) int32 {
	saved := cpu.SP()
	sp := saved - arch.SyscallFrameSize
	cpu.SetSP(sp)
	var frame [arch.SyscallFrameSize]byte
	for i, w := range []uint32{nr, a0.Value, a1.Value, a2.Value} {
		hostarch.ByteOrder.PutUint32(frame[i*hostarch.WordSize:], w)
	}
	cpu.Store(sp, frame[:])
	rv := cpu.Trap()
	cpu.SetSP(saved)
	return rv
}

// withString runs fn with s pushed on the stack, then pops it.
func withString(cpu kernel.CPU, s string, fn func(addr hostarch.Addr) int32) int32 {
	saved := cpu.SP()
	rv := fn(PushString(cpu, s))
	cpu.SetSP(saved)
	return rv
}

func ptr(addr hostarch.Addr) arch.SyscallArgument { return arch.PointerArg(addr) }
func num(v int32) arch.SyscallArgument            { return arch.IntArg(v) }

// None is an unused syscall argument.
var None arch.SyscallArgument

// Halt powers the machine off.
func Halt(cpu kernel.CPU) {
	Syscall(cpu, pintos.SYS_HALT, None, None, None)
}

// Exit terminates the process.
func Exit(cpu kernel.CPU, status int32) {
	Syscall(cpu, pintos.SYS_EXIT, num(status), None, None)
}

// Exec starts cmdline as a child and returns its ID, or -1.
func Exec(cpu kernel.CPU, cmdline string) int32 {
	return withString(cpu, cmdline, func(addr hostarch.Addr) int32 {
		return Syscall(cpu, pintos.SYS_EXEC, ptr(addr), None, None)
	})
}

// Wait waits for child tid and returns its exit status.
func Wait(cpu kernel.CPU, tid int32) int32 {
	return Syscall(cpu, pintos.SYS_WAIT, num(tid), None, None)
}

// Create creates a file of the given size.
func Create(cpu kernel.CPU, name string, size uint32) bool {
	return withString(cpu, name, func(addr hostarch.Addr) int32 {
		return Syscall(cpu, pintos.SYS_CREATE, ptr(addr), arch.SyscallArgument{Value: size}, None)
	}) != 0
}

// Remove removes a file.
func Remove(cpu kernel.CPU, name string) bool {
	return withString(cpu, name, func(addr hostarch.Addr) int32 {
		return Syscall(cpu, pintos.SYS_REMOVE, ptr(addr), None, None)
	}) != 0
}

// Open opens a file and returns its descriptor, or -1.
func Open(cpu kernel.CPU, name string) int32 {
	return withString(cpu, name, func(addr hostarch.Addr) int32 {
		return Syscall(cpu, pintos.SYS_OPEN, ptr(addr), None, None)
	})
}

// Filesize returns the size of the open file fd, or -1.
func Filesize(cpu kernel.CPU, fd int32) int32 {
	return Syscall(cpu, pintos.SYS_FILESIZE, num(fd), None, None)
}

// Read reads up to size bytes from fd into user memory at buf.
func Read(cpu kernel.CPU, fd int32, buf hostarch.Addr, size uint32) int32 {
	return Syscall(cpu, pintos.SYS_READ, num(fd), ptr(buf), arch.SyscallArgument{Value: size})
}

// Write writes size bytes of user memory at buf to fd.
func Write(cpu kernel.CPU, fd int32, buf hostarch.Addr, size uint32) int32 {
	return Syscall(cpu, pintos.SYS_WRITE, num(fd), ptr(buf), arch.SyscallArgument{Value: size})
}

// Seek sets the position of fd.
func Seek(cpu kernel.CPU, fd int32, pos uint32) {
	Syscall(cpu, pintos.SYS_SEEK, num(fd), arch.SyscallArgument{Value: pos}, None)
}

// Tell returns the position of fd.
func Tell(cpu kernel.CPU, fd int32) uint32 {
	return uint32(Syscall(cpu, pintos.SYS_TELL, num(fd), None, None))
}

// Close closes fd.
func Close(cpu kernel.CPU, fd int32) {
	Syscall(cpu, pintos.SYS_CLOSE, num(fd), None, None)
}

// Mmap maps the file open as fd at addr and returns the mapping ID, or
// pintos.MapFailed.
func Mmap(cpu kernel.CPU, fd int32, addr hostarch.Addr) int32 {
	return Syscall(cpu, pintos.SYS_MMAP, num(fd), ptr(addr), None)
}

// Munmap removes the mapping id.
func Munmap(cpu kernel.CPU, id int32) {
	Syscall(cpu, pintos.SYS_MUNMAP, num(id), None, None)
}

// Print writes s to the console.
func Print(cpu kernel.CPU, s string) {
	saved := cpu.SP()
	addr := PushString(cpu, s)
	Write(cpu, pintos.STDOUT_FILENO, addr, uint32(len(s)))
	cpu.SetSP(saved)
}
