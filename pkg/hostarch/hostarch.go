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

// Package hostarch contains architecture-specific definitions for the
// simulated 32-bit user address space.
package hostarch

import (
	"encoding/binary"
)

const (
	// PageShift is the binary log of the page size.
	PageShift = 12

	// PageSize is the system page size.
	PageSize = 1 << PageShift

	// WordSize is the size of a machine word, in bytes. Syscall arguments
	// and stack slots are one word wide.
	WordSize = 4

	// DefaultPhysBase is the default boundary between user and kernel
	// virtual addresses. Every user address is strictly below it.
	DefaultPhysBase Addr = 0xc0000000

	// CodeBase is the address at which program images are mapped.
	CodeBase Addr = 0x08048000
)

// ByteOrder is the byte order of words in user memory.
var ByteOrder = binary.LittleEndian
