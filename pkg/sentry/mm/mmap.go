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
	"gvisor.dev/vmcore/pkg/sentry/fs"
	"gvisor.dev/vmcore/pkg/sentry/pagetables"
)

// MMapOpts specifies a memory mapping request.
type MMapOpts struct {
	// File is the open file to map. The mapping takes its own reference
	// through fs.File.Reopen; File itself is not retained.
	File *fs.File

	// Addr is the page-aligned address to map the file at.
	Addr hostarch.Addr
}

// MMap maps opts.File at opts.Addr. Pages are loaded from the file on first
// access.
//
// It returns EINVAL if the address is null or not page-aligned, if the file
// is empty, if the mapping would not fit in user space, or if any page of it
// is already resident or described by a supplemental entry.
func (mm *MemoryManager) MMap(ctx context.Context, opts MMapOpts) (MapID, error) {
	if opts.Addr == 0 || !opts.Addr.IsPageAligned() {
		return 0, linuxerr.EINVAL
	}
	length := opts.File.Length()
	if length <= 0 {
		return 0, linuxerr.EINVAL
	}
	ar, ok := opts.Addr.ToRange(uint64(length))
	if !ok || ar.End > mm.layout.MaxAddr {
		return 0, linuxerr.EINVAL
	}
	ar.End = ar.End.MustRoundUp()

	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.overlapsLocked(ar) {
		ctx.Debugf("mmap of %q at %v overlaps an existing mapping", opts.File.Name(), ar)
		return 0, linuxerr.EINVAL
	}

	f, err := opts.File.Reopen()
	if err != nil {
		return 0, err
	}
	r := &Region{
		ID:     MapID(mm.nextID()),
		Start:  ar.Start,
		Length: uint64(length),
		File:   f,
	}
	for page := ar.Start; page < ar.End; page += hostarch.PageSize {
		off := int64(page - ar.Start)
		read := uint64(length - off)
		if read > hostarch.PageSize {
			read = hostarch.PageSize
		}
		mm.addEntryLocked(&Entry{
			Kind:      EntryFile,
			Addr:      page,
			File:      f,
			Offset:    off,
			ReadBytes: read,
			Writable:  true,
			Mapping:   r.ID,
		})
	}
	mm.regions.ReplaceOrInsert(r)
	mm.byID[r.ID] = r
	ctx.Debugf("Mapped %q (%d bytes) at %v as mapping %d", f.Name(), length, ar, r.ID)
	return r.ID, nil
}

// MUnmap removes the mapping id. Dirty resident pages are written back to
// the file first. Unmapping an unknown id does nothing.
func (mm *MemoryManager) MUnmap(ctx context.Context, id MapID) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if r, ok := mm.byID[id]; ok {
		mm.unmapRegionLocked(ctx, r)
	}
}

// unmapRegionLocked writes back and tears down r.
//
// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) unmapRegionLocked(ctx context.Context, r *Region) {
	ar := r.Range()
	mf := mm.frames.MemoryFile()
	for page := ar.Start; page < ar.End; page += hostarch.PageSize {
		e := mm.findEntryLocked(page)
		if e == nil || e.Mapping != r.ID {
			panic("mapped region " + ar.String() + " lost its supplemental entry at " + page.String())
		}
		if pte := mm.pt.Lookup(page); pte.Valid() && pte.Dirty() {
			data := mf.MapInternal(pte.Address())[:e.ReadBytes]
			if n, err := r.File.WriteAt(data, e.Offset); err != nil || uint64(n) != e.ReadBytes {
				ctx.Warningf("Write-back of %v to %q at offset %d: wrote %d of %d bytes, err %v", page, r.File.Name(), e.Offset, n, e.ReadBytes, err)
			}
		}
		mm.unmapPageLocked(page)
		delete(mm.spt, page)
	}
	if err := r.File.Close(); err != nil {
		ctx.Warningf("Closing mapping %d: %v", r.ID, err)
	}
	mm.regions.Delete(r)
	delete(mm.byID, r.ID)
	ctx.Debugf("Unmapped mapping %d at %v", r.ID, ar)
}

// overlapsLocked returns true iff any page of ar is already in use: part of
// a region, resident, or described by a supplemental entry.
//
// Preconditions: mm.mu must be locked. ar is page-aligned.
func (mm *MemoryManager) overlapsLocked(ar hostarch.AddrRange) bool {
	overlap := false
	mm.regions.DescendLessOrEqual(&Region{Start: ar.Start}, func(r *Region) bool {
		overlap = r.Range().Overlaps(ar)
		return false
	})
	if overlap {
		return true
	}
	mm.regions.AscendRange(&Region{Start: ar.Start}, &Region{Start: ar.End}, func(r *Region) bool {
		overlap = true
		return false
	})
	if overlap {
		return true
	}
	for page := ar.Start; page < ar.End; page += hostarch.PageSize {
		if mm.pt.Lookup(page).Valid() || mm.findEntryLocked(page) != nil {
			return true
		}
	}
	return false
}

// FindRegion returns the region containing addr.
func (mm *MemoryManager) FindRegion(addr hostarch.Addr) (Region, bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	var found *Region
	mm.regions.DescendLessOrEqual(&Region{Start: addr}, func(r *Region) bool {
		if r.Range().Contains(addr) {
			found = r
		}
		return false
	})
	if found == nil {
		return Region{}, false
	}
	return *found, true
}

// Regions returns the memory-mapped regions in address order.
func (mm *MemoryManager) Regions() []Region {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	rs := make([]Region, 0, mm.regions.Len())
	mm.regions.Ascend(func(r *Region) bool {
		rs = append(rs, *r)
		return true
	})
	return rs
}

// AddFileSegment describes a lazily loaded program segment at addr: readBytes
// bytes from f at offset followed by zeroBytes zero bytes. The segment takes
// ownership of f, which is closed by Release.
//
// addr and readBytes+zeroBytes must be page-aligned.
func (mm *MemoryManager) AddFileSegment(ctx context.Context, f *fs.File, addr hostarch.Addr, offset int64, readBytes, zeroBytes uint64, writable bool) error {
	ar, ok := addr.ToRange(readBytes + zeroBytes)
	if !ok || !ar.IsPageAligned() || !mm.layout.IsUserAddr(addr) || ar.End > mm.layout.MaxAddr {
		return linuxerr.EINVAL
	}
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.overlapsLocked(ar) {
		return linuxerr.EINVAL
	}
	for page := ar.Start; page < ar.End; page += hostarch.PageSize {
		read := readBytes
		if read > hostarch.PageSize {
			read = hostarch.PageSize
		}
		kind := EntryFile
		if read == 0 {
			kind = EntryZero
		}
		mm.addEntryLocked(&Entry{
			Kind:      kind,
			Addr:      page,
			File:      f,
			Offset:    offset,
			ReadBytes: read,
			Writable:  writable,
		})
		readBytes -= read
		offset += int64(read)
	}
	mm.segments = append(mm.segments, segment{ar: ar, file: f, writable: writable})
	return nil
}

// MapZeroPage makes the page containing addr resident, zero-filled and
// writable. It is used to set up the initial stack.
func (mm *MemoryManager) MapZeroPage(ctx context.Context, addr hostarch.Addr) error {
	if !mm.layout.IsUserAddr(addr) {
		return linuxerr.EFAULT
	}
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.pt.Lookup(addr).Valid() || mm.findEntryLocked(addr) != nil {
		return linuxerr.EINVAL
	}
	pa, err := mm.frames.Allocate(mm.owner, true)
	if err != nil {
		return err
	}
	mm.mapFrameLocked(addr, pa, true)
	return nil
}

// Release tears down the address space: every region is unmapped with
// write-back, every frame is returned and every segment file is closed.
// Release is idempotent.
func (mm *MemoryManager) Release(ctx context.Context) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.released {
		return
	}
	mm.released = true

	var rs []*Region
	mm.regions.Ascend(func(r *Region) bool {
		rs = append(rs, r)
		return true
	})
	for _, r := range rs {
		mm.unmapRegionLocked(ctx, r)
	}

	var pages []hostarch.Addr
	mm.pt.ForEach(func(addr hostarch.Addr, _ *pagetables.PTE) {
		pages = append(pages, addr)
	})
	for _, page := range pages {
		mm.unmapPageLocked(page)
	}
	clear(mm.spt)
	for _, s := range mm.segments {
		if err := s.file.Close(); err != nil {
			ctx.Warningf("Closing segment %v: %v", s.ar, err)
		}
	}
	mm.segments = nil
	ctx.Debugf("Address space released: %d pages", len(pages))
}
