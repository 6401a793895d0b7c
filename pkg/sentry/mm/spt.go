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
	"fmt"

	"gvisor.dev/vmcore/pkg/errors/linuxerr"
	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/log"
	"gvisor.dev/vmcore/pkg/sentry/context"
	"gvisor.dev/vmcore/pkg/sentry/fs"
)

// EntryKind is the backing source of a supplemental page table entry.
type EntryKind int

const (
	// EntryFile pages are read from a file. Bytes past ReadBytes are zero.
	EntryFile EntryKind = iota

	// EntryZero pages are zero-filled.
	EntryZero

	// EntrySwap pages live in swap. Swap is not implemented, so loading
	// one always fails.
	EntrySwap
)

// String implements fmt.Stringer.String.
func (k EntryKind) String() string {
	switch k {
	case EntryFile:
		return "file"
	case EntryZero:
		return "zero"
	case EntrySwap:
		return "swap"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// Entry is a supplemental page table entry: it describes how to produce the
// contents of one user page on first access.
type Entry struct {
	// Kind is the backing source.
	Kind EntryKind

	// Addr is the page address.
	Addr hostarch.Addr

	// File and Offset locate the page's contents for EntryFile.
	File   *fs.File
	Offset int64

	// ReadBytes is the number of bytes read from File. The rest of the
	// page is zero.
	ReadBytes uint64

	// Writable is the page's write permission once resident.
	Writable bool

	// Loaded is set once the page has been made resident.
	Loaded bool

	// Mapping is the region the page belongs to, or 0.
	Mapping MapID
}

// findEntryLocked returns the supplemental entry for the page containing
// addr, or nil.
//
// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) findEntryLocked(addr hostarch.Addr) *Entry {
	return mm.spt[addr.RoundDown()]
}

// addEntryLocked inserts e.
//
// Preconditions: mm.mu must be locked. No entry exists for e.Addr.
func (mm *MemoryManager) addEntryLocked(e *Entry) {
	if _, ok := mm.spt[e.Addr]; ok {
		panic(fmt.Sprintf("duplicate supplemental entry for page %v", e.Addr))
	}
	mm.spt[e.Addr] = e
}

// loadLocked makes e's page resident: it allocates a zeroed frame, fills it
// from the backing source and installs it in the page table.
//
// It returns EFAULT if the backing file is short and frame.ErrOutOfFrames if
// no frame is available.
//
// Preconditions: mm.mu must be locked. The page is not resident.
func (mm *MemoryManager) loadLocked(ctx context.Context, e *Entry) error {
	if e.Kind == EntrySwap {
		ctx.Warningf("Page %v is in swap, which is not supported", e.Addr)
		return linuxerr.EFAULT
	}
	pa, err := mm.frames.Allocate(mm.owner, true)
	if err != nil {
		return err
	}
	if e.Kind == EntryFile && e.ReadBytes > 0 {
		buf := mm.frames.MemoryFile().MapInternal(pa)[:e.ReadBytes]
		n, err := e.File.ReadAt(buf, e.Offset)
		if err != nil || uint64(n) != e.ReadBytes {
			mm.frames.Release(pa)
			ctx.Warningf("Short read loading page %v from %q at offset %d: got %d of %d bytes, err %v", e.Addr, e.File.Name(), e.Offset, n, e.ReadBytes, err)
			return linuxerr.EFAULT
		}
	}
	mm.mapFrameLocked(e.Addr, pa, e.Writable)
	e.Loaded = true
	if ctx.IsLogging(log.Debug) {
		ctx.Debugf("Loaded %s page %v into frame %v", e.Kind, e.Addr, pa)
	}
	return nil
}

// Entries returns a copy of every supplemental entry, in no particular order.
func (mm *MemoryManager) Entries() []Entry {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	es := make([]Entry, 0, len(mm.spt))
	for _, e := range mm.spt {
		es = append(es, *e)
	}
	return es
}
