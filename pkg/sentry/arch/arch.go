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

// Package arch describes the simulated 32-bit user CPU: its register file
// and its system call convention.
//
// A system call is made by pushing a frame of four words on the user stack,
// the call number followed by three arguments, and trapping with the stack
// pointer at the call number. The result is returned in the Result register.
package arch

import (
	"fmt"

	"gvisor.dev/vmcore/pkg/hostarch"
)

// SyscallFrameWords is the number of words in a system call frame.
const SyscallFrameWords = 4

// SyscallFrameSize is the size of a system call frame in bytes.
const SyscallFrameSize = SyscallFrameWords * hostarch.WordSize

// Registers is the user register file.
type Registers struct {
	// SP is the user stack pointer.
	SP hostarch.Addr

	// Result is the system call return register.
	Result uint32
}

// String implements fmt.Stringer.String.
func (r Registers) String() string {
	return fmt.Sprintf("sp=%v result=%#x", r.SP, r.Result)
}

// SetReturn stores a system call return value.
func (r *Registers) SetReturn(v int32) {
	r.Result = uint32(v)
}

// Return returns the last system call return value.
func (r *Registers) Return() int32 {
	return int32(r.Result)
}

// SyscallArgument is an argument supplied to a syscall implementation. The
// methods used to access the arguments are named after the ***C type name*** and
// they convert to the closest Go type available. For example, Int() refers to a
// 32-bit signed integer argument represented in Go as an int32.
//
// Using the accessor methods guarantees that the conversion between types is
// correct, taking into account size and signedness (i.e., zero-extension vs
// signed-extension).
type SyscallArgument struct {
	// Prefer to use accessor methods instead of 'Value' directly.
	Value uint32
}

// SyscallArguments represents the set of arguments passed to a syscall.
type SyscallArguments [SyscallFrameWords - 1]SyscallArgument

// Pointer returns the hostarch.Addr representation of a pointer argument.
func (a SyscallArgument) Pointer() hostarch.Addr {
	return hostarch.Addr(a.Value)
}

// Int returns the int32 representation of a 32-bit signed integer argument.
func (a SyscallArgument) Int() int32 {
	return int32(a.Value)
}

// Uint returns the uint32 representation of a 32-bit unsigned integer argument.
func (a SyscallArgument) Uint() uint32 {
	return a.Value
}

// SizeT returns the uint representation of a size_t argument.
func (a SyscallArgument) SizeT() uint {
	return uint(a.Value)
}

// Bool returns the truth value of a boolean argument.
func (a SyscallArgument) Bool() bool {
	return a.Value != 0
}

// PointerArg returns a SyscallArgument holding addr.
func PointerArg(addr hostarch.Addr) SyscallArgument {
	return SyscallArgument{Value: uint32(addr)}
}

// IntArg returns a SyscallArgument holding v.
func IntArg(v int32) SyscallArgument {
	return SyscallArgument{Value: uint32(v)}
}
