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
	"gvisor.dev/vmcore/pkg/errors/linuxerr"
	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/sentry/context"
)

// CheckPointer returns true iff addr is a non-null user address whose page
// is resident.
func (mm *MemoryManager) CheckPointer(addr hostarch.Addr) bool {
	if !mm.layout.IsUserAddr(addr) {
		return false
	}
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.pt.Lookup(addr).Valid()
}

// CheckAndPrepareBuffer makes every page of [addr, addr+length) resident
// before the kernel transfers data to or from it. trapSP is the user stack
// pointer recorded when the current system call trapped.
//
// Pages are probed in page-sized strides; a zero-length buffer probes addr
// once. A page that is neither resident, described by a supplemental entry,
// nor within the stack-growth window below trapSP fails the whole buffer
// with EFAULT, and the caller must be terminated. Pages made resident before
// the failing one stay resident.
//
// It may also return frame.ErrOutOfFrames.
func (mm *MemoryManager) CheckAndPrepareBuffer(ctx context.Context, addr hostarch.Addr, length uint64, at hostarch.AccessType, trapSP hostarch.Addr) error {
	last := addr
	if length > 0 {
		end, ok := addr.AddLength(length)
		if !ok {
			return linuxerr.EFAULT
		}
		last = end - 1
	}
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for page := addr.RoundDown(); ; page += hostarch.PageSize {
		probe := page
		if probe < addr {
			probe = addr
		}
		if err := mm.resolveLocked(ctx, probe, at, trapSP); err != nil {
			ctx.Debugf("Buffer [%v, +%d) rejected at %v: %v", addr, length, probe, err)
			return err
		}
		if page == last.RoundDown() {
			return nil
		}
	}
}

// HandleUserFault handles a page fault taken by user code at addr. sp is the
// faulting thread's stack pointer.
//
// It returns EFAULT if the access is not legal, in which case the faulting
// process must be terminated.
func (mm *MemoryManager) HandleUserFault(ctx context.Context, addr hostarch.Addr, at hostarch.AccessType, sp hostarch.Addr) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.resolveLocked(ctx, addr, at, sp)
}

// resolveLocked ensures the page containing addr is resident and permits at.
//
// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) resolveLocked(ctx context.Context, addr hostarch.Addr, at hostarch.AccessType, sp hostarch.Addr) error {
	if !mm.layout.IsUserAddr(addr) {
		return linuxerr.EFAULT
	}
	pte := mm.pt.Lookup(addr)
	if !pte.Valid() {
		if e := mm.findEntryLocked(addr); e != nil {
			if e.Loaded {
				ctx.Warningf("Page %v is marked loaded but is not resident, reloading", e.Addr)
			}
			if err := mm.loadLocked(ctx, e); err != nil {
				return err
			}
		} else if mm.isStackGrowth(addr, sp) {
			if err := mm.growStackLocked(ctx, addr); err != nil {
				return err
			}
		} else {
			return linuxerr.EFAULT
		}
		pte = mm.pt.Lookup(addr)
	}
	if at.Write && !pte.Writeable() {
		return linuxerr.EFAULT
	}
	return nil
}

// isStackGrowth returns true iff an access at addr with stack pointer sp may
// grow the stack: addr is no more than the guard window below sp, and not
// below the stack limit.
func (mm *MemoryManager) isStackGrowth(addr, sp hostarch.Addr) bool {
	if addr < mm.layout.StackBase() || addr >= mm.layout.MaxAddr {
		return false
	}
	guard := hostarch.Addr(mm.layout.StackGuardBytes())
	if sp < guard {
		return true
	}
	return addr >= sp-guard
}

// growStackLocked maps a zero-filled writable page at addr.
//
// Preconditions: mm.mu must be locked. The page is not resident.
func (mm *MemoryManager) growStackLocked(ctx context.Context, addr hostarch.Addr) error {
	pa, err := mm.frames.Allocate(mm.owner, true)
	if err != nil {
		return err
	}
	mm.mapFrameLocked(addr, pa, true)
	ctx.Debugf("Stack grown to %v", addr.RoundDown())
	return nil
}
