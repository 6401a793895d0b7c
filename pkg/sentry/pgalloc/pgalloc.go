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

// Package pgalloc contains the page allocator for the simulated physical
// memory pool.
//
// The pool is a single anonymous host mapping. Pages are handed out one at a
// time and identified by their PhysAddr, the page-aligned offset into the
// pool. The allocator knows nothing about owners or mappings; that
// bookkeeping belongs to the frame table.
package pgalloc

import (
	"fmt"

	"github.com/google/btree"
	"golang.org/x/sys/unix"

	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/log"
	"gvisor.dev/vmcore/pkg/sync"
)

// PhysAddr is the address of a physical page: its offset into the pool.
type PhysAddr uint64

// String implements fmt.Stringer.String.
func (pa PhysAddr) String() string {
	return fmt.Sprintf("%#x", uint64(pa))
}

// poisonByte fills freed pages so that use-after-free reads are noticeable.
const poisonByte = 0xcc

// MemoryFile is the physical page pool.
//
// MemoryFile is safe for concurrent use. Its mutex is a leaf lock.
type MemoryFile struct {
	mu sync.Mutex

	// mapping is the host mapping backing the pool. It is immutable after
	// NewMemoryFile and released by Destroy.
	mapping []byte

	// free holds the page index of every unallocated page, so that
	// allocation always returns the lowest free page.
	//
	// free is protected by mu.
	free *btree.BTreeG[uint64]

	// destroyed is protected by mu.
	destroyed bool
}

// NewMemoryFile creates a pool of the given number of pages.
func NewMemoryFile(pages uint64) (*MemoryFile, error) {
	if pages == 0 {
		return nil, fmt.Errorf("memory file needs at least one page")
	}
	if unix.Getpagesize() > hostarch.PageSize {
		log.Debugf("Host page size %d exceeds simulated page size %d", unix.Getpagesize(), hostarch.PageSize)
	}
	size := pages * hostarch.PageSize
	m, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mapping %d bytes of physical memory: %w", size, err)
	}
	f := &MemoryFile{
		mapping: m,
		free:    btree.NewOrderedG[uint64](8),
	}
	for i := uint64(0); i < pages; i++ {
		f.free.ReplaceOrInsert(i)
	}
	log.Debugf("Physical memory pool ready: %d pages", pages)
	return f, nil
}

// TotalPages returns the size of the pool in pages.
func (f *MemoryFile) TotalPages() uint64 {
	return uint64(len(f.mapping)) / hostarch.PageSize
}

// FreePages returns the number of pages currently available.
func (f *MemoryFile) FreePages() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(f.free.Len())
}

// Allocate checks out one page. If zero is true the page is zero-filled;
// otherwise its contents are unspecified. It returns false if the pool is
// exhausted.
func (f *MemoryFile) Allocate(zero bool) (PhysAddr, bool) {
	f.mu.Lock()
	if f.destroyed {
		f.mu.Unlock()
		panic("Allocate called on a destroyed MemoryFile")
	}
	idx, ok := f.free.DeleteMin()
	f.mu.Unlock()
	if !ok {
		return 0, false
	}
	pa := PhysAddr(idx * hostarch.PageSize)
	if zero {
		clear(f.MapInternal(pa))
	}
	return pa, true
}

// Free returns a page to the pool. The page is poisoned before it becomes
// available again.
//
// Preconditions: pa was returned by Allocate and has not been freed since.
func (f *MemoryFile) Free(pa PhysAddr) {
	idx := f.checkAddr(pa)
	b := f.MapInternal(pa)
	for i := range b {
		b[i] = poisonByte
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.free.ReplaceOrInsert(idx); dup {
		panic(fmt.Sprintf("double free of physical page %v", pa))
	}
}

// MapInternal returns the page at pa as a byte slice. The slice aliases the
// pool and must not be retained past the page's release.
func (f *MemoryFile) MapInternal(pa PhysAddr) []byte {
	f.checkAddr(pa)
	return f.mapping[pa : pa+hostarch.PageSize : pa+hostarch.PageSize]
}

// Destroy releases the pool's host mapping. The MemoryFile must not be used
// afterwards.
func (f *MemoryFile) Destroy() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.destroyed {
		return nil
	}
	f.destroyed = true
	return unix.Munmap(f.mapping)
}

func (f *MemoryFile) checkAddr(pa PhysAddr) uint64 {
	if !hostarch.Addr(pa).IsPageAligned() || uint64(pa) >= uint64(len(f.mapping)) {
		panic(fmt.Sprintf("physical address %v outside the pool of %d pages", pa, f.TotalPages()))
	}
	return uint64(pa) / hostarch.PageSize
}
