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

package mm

import (
	"bytes"

	"gvisor.dev/vmcore/pkg/errors/linuxerr"
	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/sentry/context"
)

// There are two ways to access user memory:
//
//   - Kernel copies (CopyIn, CopyOut, CopyInString, ReadWord, WriteWord)
//     never fault. CheckAndCopyInString is the exception: it resolves each
//     page of a string argument the way CheckAndPrepareBuffer does. Every page they touch must already be resident, normally
//     because CheckPointer or CheckAndPrepareBuffer said so; otherwise they
//     return EFAULT.
//
//   - User accesses (UserCopyIn, UserCopyOut) are what the simulated CPU
//     does on behalf of user code. They fault pages in through
//     HandleUserFault, page by page, with the faulting stack pointer.

// CopyIn copies len(dst) bytes from user memory at addr.
func (mm *MemoryManager) CopyIn(ctx context.Context, addr hostarch.Addr, dst []byte) (int, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.copyLocked(addr, dst, false)
}

// CopyOut copies src to user memory at addr. Every page must be resident
// and writable; pages written are marked dirty.
func (mm *MemoryManager) CopyOut(ctx context.Context, addr hostarch.Addr, src []byte) (int, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.copyLocked(addr, src, true)
}

// CopyInString copies a NUL-terminated string from user memory at addr. It
// returns ENAMETOOLONG if no NUL occurs within maxLen bytes.
func (mm *MemoryManager) CopyInString(ctx context.Context, addr hostarch.Addr, maxLen int) (string, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.copyInStringLocked(ctx, addr, maxLen, nil)
}

// CheckAndCopyInString is CopyInString for a string argument of the current
// system call: each page the string reaches is made resident first, as
// CheckAndPrepareBuffer would, with trapSP bounding stack growth. Only the
// pages up to the terminating NUL are touched.
func (mm *MemoryManager) CheckAndCopyInString(ctx context.Context, addr hostarch.Addr, maxLen int, trapSP hostarch.Addr) (string, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.copyInStringLocked(ctx, addr, maxLen, func(page hostarch.Addr) error {
		return mm.resolveLocked(ctx, page, hostarch.Read, trapSP)
	})
}

// copyInStringLocked copies a string one page-bounded chunk at a time. If
// prepare is not nil it is called with the first address of every chunk
// before the chunk is copied.
//
// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) copyInStringLocked(ctx context.Context, addr hostarch.Addr, maxLen int, prepare func(hostarch.Addr) error) (string, error) {
	var buf []byte
	for len(buf) < maxLen {
		n := int(hostarch.PageSize - addr.PageOffset())
		if rem := maxLen - len(buf); n > rem {
			n = rem
		}
		if prepare != nil {
			if err := prepare(addr); err != nil {
				ctx.Debugf("String at %v rejected at %v: %v", addr-hostarch.Addr(len(buf)), addr, err)
				return "", err
			}
		}
		chunk := make([]byte, n)
		if _, err := mm.copyLocked(addr, chunk, false); err != nil {
			return "", err
		}
		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			return string(append(buf, chunk[:i]...)), nil
		}
		buf = append(buf, chunk...)
		addr += hostarch.Addr(n)
	}
	return "", linuxerr.ENAMETOOLONG
}

// ReadWord reads one machine word from user memory at addr.
func (mm *MemoryManager) ReadWord(ctx context.Context, addr hostarch.Addr) (uint32, error) {
	var b [hostarch.WordSize]byte
	if _, err := mm.CopyIn(ctx, addr, b[:]); err != nil {
		return 0, err
	}
	return hostarch.ByteOrder.Uint32(b[:]), nil
}

// WriteWord writes one machine word to user memory at addr.
func (mm *MemoryManager) WriteWord(ctx context.Context, addr hostarch.Addr, v uint32) error {
	var b [hostarch.WordSize]byte
	hostarch.ByteOrder.PutUint32(b[:], v)
	_, err := mm.CopyOut(ctx, addr, b[:])
	return err
}

// UserCopyIn performs a user-mode read of len(dst) bytes at addr, faulting
// pages in as needed. sp is the user stack pointer at the time of the
// access.
func (mm *MemoryManager) UserCopyIn(ctx context.Context, addr hostarch.Addr, dst []byte, sp hostarch.Addr) error {
	return mm.userAccess(ctx, addr, dst, sp, false)
}

// UserCopyOut performs a user-mode write of src at addr, faulting pages in
// as needed. sp is the user stack pointer at the time of the access.
func (mm *MemoryManager) UserCopyOut(ctx context.Context, addr hostarch.Addr, src []byte, sp hostarch.Addr) error {
	return mm.userAccess(ctx, addr, src, sp, true)
}

func (mm *MemoryManager) userAccess(ctx context.Context, addr hostarch.Addr, buf []byte, sp hostarch.Addr, write bool) error {
	at := hostarch.Read
	if write {
		at = hostarch.Write
	}
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for len(buf) > 0 {
		n := int(hostarch.PageSize - addr.PageOffset())
		if n > len(buf) {
			n = len(buf)
		}
		if err := mm.resolveLocked(ctx, addr, at, sp); err != nil {
			return err
		}
		if _, err := mm.copyLocked(addr, buf[:n], write); err != nil {
			return err
		}
		buf = buf[n:]
		addr += hostarch.Addr(n)
	}
	return nil
}

// copyLocked copies between buf and resident user memory at addr. If write
// is true, buf is copied to user memory.
//
// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) copyLocked(addr hostarch.Addr, buf []byte, write bool) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if end, ok := addr.AddLength(uint64(len(buf))); !ok || !mm.layout.IsUserAddr(addr) || end > mm.layout.MaxAddr {
		return 0, linuxerr.EFAULT
	}
	// Check every page before transferring anything.
	for page := addr.RoundDown(); page < addr+hostarch.Addr(len(buf)); page += hostarch.PageSize {
		pte := mm.pt.Lookup(page)
		if !pte.Valid() || (write && !pte.Writeable()) {
			return 0, linuxerr.EFAULT
		}
	}
	mf := mm.frames.MemoryFile()
	done := 0
	for done < len(buf) {
		pte := mm.pt.Lookup(addr)
		off := addr.PageOffset()
		page := mf.MapInternal(pte.Address())[off:]
		var n int
		if write {
			n = copy(page, buf[done:])
		} else {
			n = copy(buf[done:], page)
		}
		pte.MarkAccessed(write)
		done += n
		addr += hostarch.Addr(n)
	}
	return done, nil
}
