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

// Package frame implements the frame table: the kernel-wide registry of
// physical pages checked out for user mappings.
//
// A record exists for a physical page iff that page is currently allocated
// from the MemoryFile on behalf of a user process. Records are keyed by
// physical address. There is no eviction: when the MemoryFile is exhausted,
// Allocate returns ErrOutOfFrames and the kernel decides what to do.
package frame

import (
	"errors"
	"fmt"

	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/log"
	"gvisor.dev/vmcore/pkg/sentry/pagetables"
	"gvisor.dev/vmcore/pkg/sentry/pgalloc"
	"gvisor.dev/vmcore/pkg/sync"
)

// ErrOutOfFrames is returned by Allocate when no physical page is free.
var ErrOutOfFrames = errors.New("out of physical frames")

// Owner identifies the process that owns a frame.
type Owner int32

// Record describes one allocated frame.
type Record struct {
	// Owner is the process the frame was allocated for.
	Owner Owner

	// Addr is the frame's physical address.
	Addr pgalloc.PhysAddr

	// PTE is the page table slot mapping the frame, or nil if the frame
	// has not been bound yet.
	PTE *pagetables.PTE

	// VAddr is the user virtual address of the mapped page. It is only
	// meaningful once PTE is set.
	VAddr hostarch.Addr
}

// Bound returns true iff the frame has been bound to a mapping.
func (r Record) Bound() bool {
	return r.PTE != nil
}

// String implements fmt.Stringer.String.
func (r Record) String() string {
	if !r.Bound() {
		return fmt.Sprintf("frame %v owner %d unbound", r.Addr, r.Owner)
	}
	return fmt.Sprintf("frame %v owner %d va %v", r.Addr, r.Owner, r.VAddr)
}

// Stats summarizes the table.
type Stats struct {
	// Allocated is the number of records.
	Allocated int

	// Bound is the number of records with a mapping.
	Bound int

	// Free is the number of pages left in the MemoryFile.
	Free uint64

	// Total is the size of the MemoryFile in pages.
	Total uint64
}

// Table is the frame table.
//
// All operations serialize on one mutex. The mutex is held only for the
// structural change to the table and the call into the MemoryFile, never
// across file I/O.
type Table struct {
	mf *pgalloc.MemoryFile

	mu sync.Mutex

	// frames is protected by mu.
	frames map[pgalloc.PhysAddr]*Record
}

// NewTable returns an empty frame table allocating from mf.
func NewTable(mf *pgalloc.MemoryFile) *Table {
	return &Table{
		mf:     mf,
		frames: make(map[pgalloc.PhysAddr]*Record),
	}
}

// MemoryFile returns the pool backing the table.
func (t *Table) MemoryFile() *pgalloc.MemoryFile {
	return t.mf
}

// Allocate checks out one physical page for owner, zero-filled if zero is
// true, and registers a record for it.
//
// It returns ErrOutOfFrames if the pool is exhausted.
func (t *Table) Allocate(owner Owner, zero bool) (pgalloc.PhysAddr, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pa, ok := t.mf.Allocate(zero)
	if !ok {
		log.Warningf("Frame table exhausted: %d frames allocated, allocation for owner %d failed", len(t.frames), owner)
		return 0, ErrOutOfFrames
	}
	if r, dup := t.frames[pa]; dup {
		panic(fmt.Sprintf("physical page %v handed out twice, already held by %v", pa, r))
	}
	t.frames[pa] = &Record{Owner: owner, Addr: pa}
	return pa, nil
}

// Bind records that pte maps the frame at va. It is a no-op if pa is not a
// registered frame.
func (t *Table) Bind(pa pgalloc.PhysAddr, pte *pagetables.PTE, va hostarch.Addr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.frames[pa]; ok {
		r.PTE = pte
		r.VAddr = va
	}
}

// Release removes the record for pa and returns the page to the pool. It is
// a no-op if pa is not a registered frame, so the page is never freed twice.
func (t *Table) Release(pa pgalloc.PhysAddr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.frames[pa]; !ok {
		return
	}
	delete(t.frames, pa)
	t.mf.Free(pa)
}

// Lookup returns a copy of the record for pa.
func (t *Table) Lookup(pa pgalloc.PhysAddr) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.frames[pa]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Len returns the number of allocated frames.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.frames)
}

// Owned returns the number of frames allocated for owner.
func (t *Table) Owned(owner Owner) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, r := range t.frames {
		if r.Owner == owner {
			n++
		}
	}
	return n
}

// Stats returns a snapshot of the table.
func (t *Table) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Stats{
		Allocated: len(t.frames),
		Free:      t.mf.FreePages(),
		Total:     t.mf.TotalPages(),
	}
	for _, r := range t.frames {
		if r.Bound() {
			s.Bound++
		}
	}
	return s
}
