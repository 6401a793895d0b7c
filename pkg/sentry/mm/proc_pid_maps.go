// Copyright 2018 The gVisor Authors.
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
	"fmt"
	"slices"
	"strings"

	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/sentry/pagetables"
)

// mapsEntry is one line of the maps listing.
type mapsEntry struct {
	ar       hostarch.AddrRange
	writable bool
	resident uint64
	name     string
}

// Maps returns a /proc/[pid]/maps-like description of the address space,
// one line per program segment, mapped region and the stack:
//
//	start-end perms resident-pages name
func (mm *MemoryManager) Maps() string {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	var entries []mapsEntry
	covered := make(map[hostarch.Addr]bool)
	addEntry := func(ar hostarch.AddrRange, writable bool, name string) {
		e := mapsEntry{ar: ar, writable: writable, name: name}
		for page := ar.Start; page < ar.End; page += hostarch.PageSize {
			covered[page] = true
			if mm.pt.Lookup(page).Valid() {
				e.resident++
			}
		}
		entries = append(entries, e)
	}
	for _, s := range mm.segments {
		addEntry(s.ar, s.writable, s.file.Name())
	}
	mm.regions.Ascend(func(r *Region) bool {
		addEntry(r.Range(), true, fmt.Sprintf("%s [map %d]", r.File.Name(), r.ID))
		return true
	})

	// Whatever else is resident was created by stack growth.
	stack := hostarch.AddrRange{Start: mm.layout.MaxAddr, End: mm.layout.MaxAddr}
	mm.pt.ForEach(func(addr hostarch.Addr, _ *pagetables.PTE) {
		if !covered[addr] && addr < stack.Start {
			stack.Start = addr
		}
	})
	if stack.Length() > 0 {
		addEntry(stack, true, "[stack]")
	}

	slices.SortFunc(entries, func(a, b mapsEntry) int {
		switch {
		case a.ar.Start < b.ar.Start:
			return -1
		case a.ar.Start > b.ar.Start:
			return 1
		}
		return 0
	})
	var b bytes.Buffer
	for _, e := range entries {
		perms := "r-"
		if e.writable {
			perms = "rw"
		}
		line := fmt.Sprintf("%08x-%08x %s %d", uint64(e.ar.Start), uint64(e.ar.End), perms, e.resident)
		b.WriteString(line)
		// Pad names into a column, as Linux does.
		if pad := 32 - len(line); pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		} else {
			b.WriteByte(' ')
		}
		b.WriteString(e.name)
		b.WriteByte('\n')
	}
	return b.String()
}
