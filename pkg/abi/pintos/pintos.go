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

// Package pintos contains the constants of the teaching kernel's user ABI.
package pintos

// System call numbers.
const (
	SYS_HALT     = 0
	SYS_EXIT     = 1
	SYS_EXEC     = 2
	SYS_WAIT     = 3
	SYS_CREATE   = 4
	SYS_REMOVE   = 5
	SYS_OPEN     = 6
	SYS_FILESIZE = 7
	SYS_READ     = 8
	SYS_WRITE    = 9
	SYS_SEEK     = 10
	SYS_TELL     = 11
	SYS_CLOSE    = 12
	SYS_MMAP     = 13
	SYS_MUNMAP   = 14
)

// Standard descriptors. They are never allocated to files and cannot be
// mapped.
const (
	STDIN_FILENO  = 0
	STDOUT_FILENO = 1
)

// FirstAllocatedID is the first descriptor or mapping identifier handed out.
const FirstAllocatedID = 2

// MapFailed is the mmap return value on failure.
const MapFailed = -1

// ExitKilled is the exit status of a process terminated by the kernel.
const ExitKilled = -1

// CmdlineMax is the maximum length of an exec command line, including the
// terminating NUL.
const CmdlineMax = 128

// StackArgsMax bounds the bytes of argument data pushed on a new stack.
const StackArgsMax = 1024
