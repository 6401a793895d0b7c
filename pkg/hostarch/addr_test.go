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

package hostarch

import (
	"testing"
)

func TestRounding(t *testing.T) {
	for _, test := range []struct {
		addr Addr
		down Addr
		up   Addr
		ok   bool
	}{
		{0, 0, 0, true},
		{1, 0, PageSize, true},
		{PageSize, PageSize, PageSize, true},
		{PageSize + 1, PageSize, 2 * PageSize, true},
		{^Addr(0), ^Addr(PageSize - 1), 0, false},
	} {
		if got := test.addr.RoundDown(); got != test.down {
			t.Errorf("%v.RoundDown() = %v, want %v", test.addr, got, test.down)
		}
		up, ok := test.addr.RoundUp()
		if ok != test.ok || (ok && up != test.up) {
			t.Errorf("%v.RoundUp() = (%v, %t), want (%v, %t)", test.addr, up, ok, test.up, test.ok)
		}
	}
}

func TestAddrRangePages(t *testing.T) {
	for _, test := range []struct {
		name string
		ar   AddrRange
		want uint64
	}{
		{"empty", AddrRange{0x1000, 0x1000}, 0},
		{"single byte", AddrRange{0x1000, 0x1001}, 1},
		{"exact page", AddrRange{0x1000, 0x2000}, 1},
		{"unaligned pair", AddrRange{0x1fff, 0x2001}, 2},
		{"three pages of 5000 bytes", AddrRange{0x1f00, 0x1f00 + 5000}, 3},
	} {
		t.Run(test.name, func(t *testing.T) {
			if got := test.ar.Pages(); got != test.want {
				t.Errorf("%v.Pages() = %d, want %d", test.ar, got, test.want)
			}
		})
	}
}

func TestAddrRangeOverlaps(t *testing.T) {
	a := AddrRange{0x1000, 0x3000}
	if !a.Overlaps(AddrRange{0x2000, 0x4000}) {
		t.Errorf("%v should overlap [0x2000, 0x4000)", a)
	}
	if a.Overlaps(AddrRange{0x3000, 0x4000}) {
		t.Errorf("%v should not overlap the adjacent [0x3000, 0x4000)", a)
	}
	if !a.IsSupersetOf(AddrRange{0x1000, 0x2000}) {
		t.Errorf("%v should contain [0x1000, 0x2000)", a)
	}
}

func TestAccessType(t *testing.T) {
	if got, want := ReadWrite.String(), "rw"; got != want {
		t.Errorf("ReadWrite.String() = %q, want %q", got, want)
	}
	if Read.SupersetOf(Write) {
		t.Errorf("Read should not be a superset of Write")
	}
	if !ReadWrite.SupersetOf(Write) {
		t.Errorf("ReadWrite should be a superset of Write")
	}
}
