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

// Package mm provides the per-process address space of the simulated kernel.
//
// A MemoryManager owns three structures describing the user half of one
// address space:
//
//   - the hardware page table (pagetables.PageTables), which holds the pages
//     that are resident;
//
//   - the supplemental page table, which describes pages that are not
//     resident yet and how to produce their contents on first access;
//
//   - the set of memory-mapped file regions created by MMap.
//
// Physical pages come from the kernel-wide frame.Table. Nothing is ever
// evicted: a page stays resident until it is unmapped or the address space
// is released.
//
// Lock order:
//
//	kernel.FileTable.mu
//	  MemoryManager.mu
//	    frame.Table.mu
//	      pgalloc.MemoryFile.mu
//
// fs.File.mu is a leaf and may be taken with MemoryManager.mu held.
package mm

import (
	"fmt"

	"github.com/google/btree"

	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/sentry/frame"
	"gvisor.dev/vmcore/pkg/sentry/fs"
	"gvisor.dev/vmcore/pkg/sentry/pagetables"
	"gvisor.dev/vmcore/pkg/sentry/pgalloc"
	"gvisor.dev/vmcore/pkg/sync"
)

const (
	// DefaultStackGuardWords is the default number of machine words below
	// the trap-time stack pointer that a kernel access may touch to grow
	// the stack.
	DefaultStackGuardWords = 32

	// DefaultMaxStackSize is the default bound on the size of the stack.
	DefaultMaxStackSize = 8 << 20
)

// Layout describes the shape of a user address space.
type Layout struct {
	// MaxAddr is the first address of kernel space. Every user address is
	// strictly below it. It must be page-aligned.
	MaxAddr hostarch.Addr

	// StackGuardWords is the size, in machine words, of the window below
	// the stack pointer in which an access to an unmapped page grows the
	// stack.
	StackGuardWords uint64

	// MaxStackSize bounds the stack: no page below MaxAddr-MaxStackSize is
	// ever created by stack growth. It must be page-aligned.
	MaxStackSize uint64
}

// DefaultLayout returns the standard layout.
func DefaultLayout() Layout {
	return Layout{
		MaxAddr:         hostarch.DefaultPhysBase,
		StackGuardWords: DefaultStackGuardWords,
		MaxStackSize:    DefaultMaxStackSize,
	}
}

// Validate checks l for consistency.
func (l Layout) Validate() error {
	if l.MaxAddr == 0 || !l.MaxAddr.IsPageAligned() {
		return fmt.Errorf("user address limit %v must be a non-zero multiple of the page size", l.MaxAddr)
	}
	if l.MaxStackSize < hostarch.PageSize || !hostarch.Addr(l.MaxStackSize).IsPageAligned() {
		return fmt.Errorf("maximum stack size %d must be a positive multiple of the page size", l.MaxStackSize)
	}
	if hostarch.Addr(l.MaxStackSize) > l.MaxAddr-hostarch.CodeBase {
		return fmt.Errorf("maximum stack size %d overlaps the code at %v", l.MaxStackSize, hostarch.CodeBase)
	}
	return nil
}

// IsUserAddr returns true iff addr is non-null and in user space.
func (l Layout) IsUserAddr(addr hostarch.Addr) bool {
	return addr != 0 && addr < l.MaxAddr
}

// StackBase returns the lowest address stack growth may reach.
func (l Layout) StackBase() hostarch.Addr {
	return l.MaxAddr - hostarch.Addr(l.MaxStackSize)
}

// StackGuardBytes returns the size of the stack-growth window in bytes.
func (l Layout) StackGuardBytes() uint64 {
	return l.StackGuardWords * hostarch.WordSize
}

// MapID identifies a memory-mapped region.
type MapID int32

// Region is a memory-mapped file region.
type Region struct {
	// ID is the mapping identifier returned by MMap.
	ID MapID

	// Start is the page-aligned base address.
	Start hostarch.Addr

	// Length is the length of the mapped file in bytes. The region covers
	// Length rounded up to whole pages.
	Length uint64

	// File is the mapping's own handle on the file, independent of the
	// descriptor it was created from.
	File *fs.File
}

// Range returns the page-aligned range covered by r.
func (r *Region) Range() hostarch.AddrRange {
	end, _ := (r.Start + hostarch.Addr(r.Length)).RoundUp()
	return hostarch.AddrRange{Start: r.Start, End: end}
}

// segment is a lazily loaded part of a program image.
type segment struct {
	ar       hostarch.AddrRange
	file     *fs.File
	writable bool
}

// MemoryManager implements a virtual address space.
type MemoryManager struct {
	// owner is the process this address space belongs to. Frames are
	// allocated on its behalf.
	owner frame.Owner

	// frames is the kernel-wide frame table.
	frames *frame.Table

	// layout is immutable.
	layout Layout

	// nextID returns a fresh mapping identifier. It is shared with the
	// kernel's descriptor numbering.
	nextID func() int32

	mu sync.Mutex

	// pt holds resident pages.
	//
	// pt is protected by mu.
	pt *pagetables.PageTables

	// spt is the supplemental page table, keyed by page address.
	//
	// spt is protected by mu.
	spt map[hostarch.Addr]*Entry

	// regions holds memory-mapped regions ordered by start address, and
	// byID indexes the same regions by identifier.
	//
	// regions and byID are protected by mu.
	regions *btree.BTreeG[*Region]
	byID    map[MapID]*Region

	// segments are the program image segments, in load order.
	//
	// segments is protected by mu.
	segments []segment

	// released is set by Release.
	//
	// released is protected by mu.
	released bool
}

// NewMemoryManager returns a MemoryManager with no mappings.
func NewMemoryManager(owner frame.Owner, frames *frame.Table, layout Layout, nextID func() int32) *MemoryManager {
	return &MemoryManager{
		owner:  owner,
		frames: frames,
		layout: layout,
		nextID: nextID,
		pt:     pagetables.New(),
		spt:    make(map[hostarch.Addr]*Entry),
		regions: btree.NewG(16, func(a, b *Region) bool {
			return a.Start < b.Start
		}),
		byID: make(map[MapID]*Region),
	}
}

// Layout returns the address space layout.
func (mm *MemoryManager) Layout() Layout {
	return mm.layout
}

// Owner returns the process the address space belongs to.
func (mm *MemoryManager) Owner() frame.Owner {
	return mm.owner
}

// ResidentPages returns the number of resident pages.
func (mm *MemoryManager) ResidentPages() int {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.pt.Len()
}

// IsResident returns true iff the page containing addr is resident.
func (mm *MemoryManager) IsResident(addr hostarch.Addr) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.pt.Lookup(addr).Valid()
}

// mapFrameLocked installs pa at the page containing addr and binds the
// frame to its slot.
//
// Preconditions: mm.mu must be locked. pa must be a frame allocated for
// mm.owner.
func (mm *MemoryManager) mapFrameLocked(addr hostarch.Addr, pa pgalloc.PhysAddr, writable bool) *pagetables.PTE {
	at := hostarch.Read
	if writable {
		at = hostarch.ReadWrite
	}
	page := addr.RoundDown()
	pte, prev := mm.pt.Map(page, pagetables.MapOpts{AccessType: at, User: true}, pa)
	if prev {
		panic(fmt.Sprintf("page %v mapped twice", page))
	}
	mm.frames.Bind(pa, pte, page)
	return pte
}

// unmapPageLocked removes the page containing addr from the page table and
// returns its frame to the frame table. It returns the old entry.
//
// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) unmapPageLocked(addr hostarch.Addr) (pagetables.PTE, bool) {
	old, ok := mm.pt.Unmap(addr)
	if ok {
		mm.frames.Release(old.Address())
	}
	return old, ok
}
