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

// Package pagetables provides the per-process hardware page table of the
// simulated MMU.
//
// Entries are kept in a map keyed by page address rather than a radix tree:
// the simulated address space is sparse and small. A *PTE is stable for as
// long as the mapping exists, which lets the frame table hold a back-pointer
// to the slot that maps each frame.
package pagetables

import (
	"fmt"
	"slices"

	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/sentry/pgalloc"
)

// MapOpts are the options for a single page mapping.
type MapOpts struct {
	// AccessType defines permissions.
	AccessType hostarch.AccessType

	// User indicates the page is accessible from user mode.
	User bool
}

// String implements fmt.Stringer.String.
func (o MapOpts) String() string {
	u := '-'
	if o.User {
		u = 'u'
	}
	return fmt.Sprintf("%s%c", o.AccessType, u)
}

// PTE is a page table entry.
type PTE struct {
	physical pgalloc.PhysAddr
	opts     MapOpts
	valid    bool

	// accessed and dirty are set by the simulated MMU on user access and by
	// kernel copies on the process's behalf.
	accessed bool
	dirty    bool
}

// Valid returns true iff this entry maps a page.
func (p *PTE) Valid() bool {
	return p != nil && p.valid
}

// Address returns the physical address of the mapped page.
func (p *PTE) Address() pgalloc.PhysAddr {
	return p.physical
}

// Opts returns the mapping options.
func (p *PTE) Opts() MapOpts {
	return p.opts
}

// Writeable returns true iff the page is writable.
func (p *PTE) Writeable() bool {
	return p.opts.AccessType.Write
}

// Accessed returns the accessed bit.
func (p *PTE) Accessed() bool {
	return p.accessed
}

// Dirty returns the dirty bit.
func (p *PTE) Dirty() bool {
	return p.dirty
}

// MarkAccessed sets the accessed bit, and the dirty bit if write is true.
func (p *PTE) MarkAccessed(write bool) {
	p.accessed = true
	if write {
		p.dirty = true
	}
}

// Clear clears this PTE, including the accessed and dirty bits.
func (p *PTE) Clear() {
	*p = PTE{}
}

// PageTables is a set of page tables for one address space.
//
// PageTables is not thread safe; the owning MemoryManager serializes access.
type PageTables struct {
	entries map[hostarch.Addr]*PTE
}

// New returns new, empty PageTables.
func New() *PageTables {
	return &PageTables{entries: make(map[hostarch.Addr]*PTE)}
}

// Map installs a mapping of the page containing addr to physical. The
// returned PTE is the slot now holding the mapping.
//
// True is returned iff there was a previous mapping for the page.
func (p *PageTables) Map(addr hostarch.Addr, opts MapOpts, physical pgalloc.PhysAddr) (*PTE, bool) {
	addr = addr.RoundDown()
	pte, prev := p.entries[addr]
	if !prev {
		pte = &PTE{}
		p.entries[addr] = pte
	}
	*pte = PTE{physical: physical, opts: opts, valid: true}
	return pte, prev
}

// Unmap removes the mapping of the page containing addr and returns a copy of
// the entry as it was, including its dirty bit.
//
// True is returned iff there was a previous mapping for the page.
func (p *PageTables) Unmap(addr hostarch.Addr) (PTE, bool) {
	addr = addr.RoundDown()
	pte, ok := p.entries[addr]
	if !ok {
		return PTE{}, false
	}
	old := *pte
	pte.Clear()
	delete(p.entries, addr)
	return old, true
}

// Lookup returns the entry mapping the page containing addr, or nil.
func (p *PageTables) Lookup(addr hostarch.Addr) *PTE {
	return p.entries[addr.RoundDown()]
}

// Translate returns the physical address for the given virtual address and
// the access permitted on its page.
func (p *PageTables) Translate(addr hostarch.Addr) (pgalloc.PhysAddr, hostarch.AccessType, bool) {
	pte := p.Lookup(addr)
	if !pte.Valid() {
		return 0, hostarch.NoAccess, false
	}
	return pte.physical + pgalloc.PhysAddr(addr.PageOffset()), pte.opts.AccessType, true
}

// Len returns the number of mapped pages.
func (p *PageTables) Len() int {
	return len(p.entries)
}

// ForEach calls fn for every mapping in ascending address order. fn must not
// modify p.
func (p *PageTables) ForEach(fn func(addr hostarch.Addr, pte *PTE)) {
	addrs := make([]hostarch.Addr, 0, len(p.entries))
	for addr := range p.entries {
		addrs = append(addrs, addr)
	}
	slices.Sort(addrs)
	for _, addr := range addrs {
		fn(addr, p.entries[addr])
	}
}
