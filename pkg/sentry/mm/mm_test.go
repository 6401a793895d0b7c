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
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gvisor.dev/vmcore/pkg/errors/linuxerr"
	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/sentry/context"
	"gvisor.dev/vmcore/pkg/sentry/context/contexttest"
	"gvisor.dev/vmcore/pkg/sentry/frame"
	"gvisor.dev/vmcore/pkg/sentry/fs"
	"gvisor.dev/vmcore/pkg/sentry/fs/ramfs"
	"gvisor.dev/vmcore/pkg/sentry/pgalloc"
)

const (
	page = hostarch.PageSize

	// mapBase is where tests map files.
	mapBase hostarch.Addr = 0x10000000
)

type testEnv struct {
	ctx    context.Context
	mm     *MemoryManager
	frames *frame.Table
	fs     *ramfs.Filesystem
}

func newTestEnv(t *testing.T, pages uint64) *testEnv {
	t.Helper()
	mf, err := pgalloc.NewMemoryFile(pages)
	if err != nil {
		t.Fatalf("NewMemoryFile failed: %v", err)
	}
	t.Cleanup(func() { mf.Destroy() })
	frames := frame.NewTable(mf)
	next := int32(1)
	mm := NewMemoryManager(7, frames, DefaultLayout(), func() int32 {
		next++
		return next
	})
	return &testEnv{
		ctx:    contexttest.Context(t),
		mm:     mm,
		frames: frames,
		fs:     ramfs.New(0),
	}
}

// file creates name with data and opens it.
func (e *testEnv) file(t *testing.T, name string, data []byte) *fs.File {
	t.Helper()
	if err := e.fs.WriteFile(name, data); err != nil {
		t.Fatalf("WriteFile(%q) failed: %v", name, err)
	}
	f, err := e.fs.Open(e.ctx, name)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", name, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

// stackTop maps the initial stack page and returns a stack pointer at its
// bottom, so that anything below it is not resident.
func (e *testEnv) stackTop(t *testing.T) hostarch.Addr {
	t.Helper()
	sp := e.mm.layout.MaxAddr - page
	if err := e.mm.MapZeroPage(e.ctx, sp); err != nil {
		t.Fatalf("MapZeroPage(%v) failed: %v", sp, err)
	}
	return sp
}

func TestCheckPointer(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	for _, test := range []struct {
		name string
		addr hostarch.Addr
		want bool
	}{
		{"null", 0, false},
		{"kernel", hostarch.DefaultPhysBase, false},
		{"kernel high", 0xffffffff, false},
		{"unmapped user", mapBase, false},
		{"resident", sp, true},
		{"resident last byte", hostarch.DefaultPhysBase - 1, true},
	} {
		t.Run(test.name, func(t *testing.T) {
			if got := e.mm.CheckPointer(test.addr); got != test.want {
				t.Errorf("CheckPointer(%v) = %t, want %t", test.addr, got, test.want)
			}
		})
	}
}

func TestStackGrowth(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)

	if err := e.mm.CheckAndPrepareBuffer(e.ctx, sp-4, 4, hostarch.Write, sp); err != nil {
		t.Fatalf("write at sp-4 failed: %v", err)
	}
	if !e.mm.IsResident(sp - 4) {
		t.Fatalf("page at sp-4 not resident after stack growth")
	}
	got := make([]byte, page)
	if _, err := e.mm.CopyIn(e.ctx, sp-page, got); err != nil {
		t.Fatalf("CopyIn of the new stack page failed: %v", err)
	}
	if !bytes.Equal(got, make([]byte, page)) {
		t.Errorf("new stack page is not zero-filled")
	}

	before := e.frames.Len()
	if err := e.mm.CheckAndPrepareBuffer(e.ctx, sp-10000, 4, hostarch.Write, sp); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("write at sp-10000 = %v, want EFAULT", err)
	}
	if after := e.frames.Len(); after != before {
		t.Errorf("rejected access allocated %d frames", after-before)
	}
}

func TestStackGuardWindow(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	guard := e.mm.layout.StackGuardBytes()
	if guard != 128 {
		t.Fatalf("StackGuardBytes() = %d, want 128", guard)
	}

	// The lowest address in the window still grows the stack.
	if err := e.mm.HandleUserFault(e.ctx, sp-hostarch.Addr(guard), hostarch.Write, sp); err != nil {
		t.Errorf("fault at sp-%d failed: %v", guard, err)
	}

	// One byte further is only legal because the page is now resident.
	if err := e.mm.HandleUserFault(e.ctx, sp-hostarch.Addr(guard)-1, hostarch.Write, sp); err != nil {
		t.Errorf("fault on the now-resident page failed: %v", err)
	}

	// The page below is outside the window.
	if err := e.mm.HandleUserFault(e.ctx, sp-page-1, hostarch.Write, sp); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("fault below the window = %v, want EFAULT", err)
	}
}

func TestStackLimit(t *testing.T) {
	e := newTestEnv(t, 8)
	e.mm.layout.MaxStackSize = page
	sp := e.stackTop(t)
	if err := e.mm.HandleUserFault(e.ctx, sp-4, hostarch.Write, sp); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("stack growth beyond the limit = %v, want EFAULT", err)
	}
}

func TestOutOfFrames(t *testing.T) {
	e := newTestEnv(t, 1)
	sp := e.stackTop(t)
	if err := e.mm.HandleUserFault(e.ctx, sp-4, hostarch.Write, sp); !errors.Is(err, frame.ErrOutOfFrames) {
		t.Errorf("stack growth with no free frames = %v, want %v", err, frame.ErrOutOfFrames)
	}
}

func TestBufferAcrossHole(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	a := e.file(t, "a", bytes.Repeat([]byte{'a'}, page))
	b := e.file(t, "b", bytes.Repeat([]byte{'b'}, page))
	if _, err := e.mm.MMap(e.ctx, MMapOpts{File: a, Addr: mapBase}); err != nil {
		t.Fatalf("MMap(a) failed: %v", err)
	}
	if _, err := e.mm.MMap(e.ctx, MMapOpts{File: b, Addr: mapBase + 2*page}); err != nil {
		t.Fatalf("MMap(b) failed: %v", err)
	}

	// 5000 bytes starting 100 bytes before the hole span three pages.
	addr := mapBase + page - 100
	if ar, _ := addr.ToRange(5000); ar.Pages() != 3 {
		t.Fatalf("test buffer spans %d pages, want 3", ar.Pages())
	}
	if err := e.mm.CheckAndPrepareBuffer(e.ctx, addr, 5000, hostarch.Write, sp); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("CheckAndPrepareBuffer across a hole = %v, want EFAULT", err)
	}
	if _, err := e.mm.CopyOut(e.ctx, addr, make([]byte, 5000)); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("CopyOut across a hole = %v, want EFAULT", err)
	}
	if e.mm.IsResident(mapBase + 2*page) {
		t.Errorf("page after the hole was loaded")
	}
}

func TestZeroLengthBuffer(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	if err := e.mm.CheckAndPrepareBuffer(e.ctx, sp, 0, hostarch.Read, sp); err != nil {
		t.Errorf("zero-length buffer on the stack = %v", err)
	}
	if err := e.mm.CheckAndPrepareBuffer(e.ctx, 0, 0, hostarch.Read, sp); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("zero-length buffer at null = %v, want EFAULT", err)
	}
	if err := e.mm.CheckAndPrepareBuffer(e.ctx, hostarch.DefaultPhysBase-2, 4, hostarch.Read, sp); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("buffer crossing into kernel space = %v, want EFAULT", err)
	}
	if err := e.mm.CheckAndPrepareBuffer(e.ctx, 0xfffffffffffffff0, 0x20, hostarch.Read, sp); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("wrapping buffer = %v, want EFAULT", err)
	}
}

func TestDemandLoad(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	data := make([]byte, 5000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	f := e.file(t, "data", data)
	if _, err := e.mm.MMap(e.ctx, MMapOpts{File: f, Addr: mapBase}); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	if e.mm.IsResident(mapBase) {
		t.Fatalf("MMap loaded a page eagerly")
	}
	if err := e.mm.CheckAndPrepareBuffer(e.ctx, mapBase, 2*page, hostarch.Read, sp); err != nil {
		t.Fatalf("CheckAndPrepareBuffer failed: %v", err)
	}
	got := make([]byte, 2*page)
	if _, err := e.mm.CopyIn(e.ctx, mapBase, got); err != nil {
		t.Fatalf("CopyIn failed: %v", err)
	}
	want := append(append([]byte{}, data...), make([]byte, 2*page-len(data))...)
	if !bytes.Equal(got, want) {
		t.Errorf("mapped contents differ from the file followed by zeroes")
	}
	for _, en := range e.mm.Entries() {
		if !en.Loaded {
			t.Errorf("entry %v not marked loaded", en.Addr)
		}
	}
}

func TestMMapErrors(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	f := e.file(t, "f", []byte("hello"))
	empty := e.file(t, "empty", nil)
	big := e.file(t, "big", make([]byte, 3*page))

	if _, err := e.mm.MMap(e.ctx, MMapOpts{File: big, Addr: mapBase}); err != nil {
		t.Fatalf("MMap(big) failed: %v", err)
	}

	for _, test := range []struct {
		name string
		opts MMapOpts
	}{
		{"null address", MMapOpts{File: f, Addr: 0}},
		{"unaligned", MMapOpts{File: f, Addr: mapBase + 4*page + 1}},
		{"empty file", MMapOpts{File: empty, Addr: mapBase + 4*page}},
		{"overlaps start", MMapOpts{File: f, Addr: mapBase}},
		{"overlaps middle", MMapOpts{File: f, Addr: mapBase + 2*page}},
		{"runs into mapping", MMapOpts{File: big, Addr: mapBase - page}},
		{"overlaps stack", MMapOpts{File: f, Addr: sp}},
		{"kernel", MMapOpts{File: f, Addr: hostarch.DefaultPhysBase}},
		{"crosses into kernel", MMapOpts{File: big, Addr: hostarch.DefaultPhysBase - page}},
	} {
		t.Run(test.name, func(t *testing.T) {
			if id, err := e.mm.MMap(e.ctx, test.opts); !linuxerr.Equals(linuxerr.EINVAL, err) {
				t.Errorf("MMap(%+v) = (%d, %v), want EINVAL", test.opts, id, err)
			}
		})
	}
	if n := len(e.mm.Regions()); n != 1 {
		t.Errorf("%d regions after rejected requests, want 1", n)
	}
}

func TestMMapNeverOverlaps(t *testing.T) {
	e := newTestEnv(t, 8)
	f := e.file(t, "f", make([]byte, page+1))
	id1, err := e.mm.MMap(e.ctx, MMapOpts{File: f, Addr: mapBase})
	if err != nil {
		t.Fatalf("first MMap failed: %v", err)
	}
	id2, err := e.mm.MMap(e.ctx, MMapOpts{File: f, Addr: mapBase + 2*page})
	if err != nil {
		t.Fatalf("second MMap failed: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("two mappings share id %d", id1)
	}
	rs := e.mm.Regions()
	if len(rs) != 2 || rs[0].Range().Overlaps(rs[1].Range()) {
		t.Fatalf("regions %v overlap", rs)
	}
	if _, err := e.mm.MMap(e.ctx, MMapOpts{File: f, Addr: mapBase + page}); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("overlapping MMap = %v, want EINVAL", err)
	}

	r, ok := e.mm.FindRegion(mapBase + 2*page + 5)
	if !ok || r.ID != id2 {
		t.Errorf("FindRegion = (%d, %t), want (%d, true)", r.ID, ok, id2)
	}
	if _, ok := e.mm.FindRegion(mapBase + 4*page); ok {
		t.Errorf("FindRegion found a region past the end of the last mapping")
	}
}

func TestMUnmapWriteBack(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	f := e.file(t, "f", []byte("hello, world"))
	id, err := e.mm.MMap(e.ctx, MMapOpts{File: f, Addr: mapBase})
	if err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	if err := e.mm.UserCopyOut(e.ctx, mapBase, []byte("HELLO"), sp); err != nil {
		t.Fatalf("UserCopyOut failed: %v", err)
	}

	// Nothing is written before the unmap.
	buf := make([]byte, 12)
	f.ReadAt(buf, 0)
	if got := string(buf); got != "hello, world" {
		t.Errorf("file before MUnmap = %q", got)
	}

	framesBefore := e.frames.Len()
	e.mm.MUnmap(e.ctx, id)
	f.ReadAt(buf, 0)
	if got, want := string(buf), "HELLO, world"; got != want {
		t.Errorf("file after MUnmap = %q, want %q", got, want)
	}
	if got := e.frames.Len(); got != framesBefore-1 {
		t.Errorf("frames after MUnmap = %d, want %d", got, framesBefore-1)
	}
	if e.mm.IsResident(mapBase) || len(e.mm.Regions()) != 0 || len(e.mm.Entries()) != 0 {
		t.Errorf("MUnmap left state behind")
	}

	// Unmapping again does nothing, and the range can be reused.
	e.mm.MUnmap(e.ctx, id)
	if _, err := e.mm.MMap(e.ctx, MMapOpts{File: f, Addr: mapBase}); err != nil {
		t.Errorf("MMap over an unmapped range failed: %v", err)
	}
}

func TestMUnmapCleanPagesNotWritten(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	f := e.file(t, "f", []byte("original"))
	id, _ := e.mm.MMap(e.ctx, MMapOpts{File: f, Addr: mapBase})
	buf := make([]byte, 8)
	if err := e.mm.UserCopyIn(e.ctx, mapBase, buf, sp); err != nil {
		t.Fatalf("UserCopyIn failed: %v", err)
	}

	// Change the file behind the mapping; a clean page must not clobber it.
	f.WriteAt([]byte("changed!"), 0)
	e.mm.MUnmap(e.ctx, id)
	f.ReadAt(buf, 0)
	if got := string(buf); got != "changed!" {
		t.Errorf("clean page was written back: file = %q", got)
	}
}

func TestMappingSurvivesClose(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	if err := e.fs.WriteFile("f", []byte("persist")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	f, _ := e.fs.Open(e.ctx, "f")
	if _, err := e.mm.MMap(e.ctx, MMapOpts{File: f, Addr: mapBase}); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	f.Close()
	e.fs.Remove(e.ctx, "f")
	buf := make([]byte, 7)
	if err := e.mm.UserCopyIn(e.ctx, mapBase, buf, sp); err != nil || string(buf) != "persist" {
		t.Errorf("read through mapping after close = (%q, %v)", buf, err)
	}
}

func TestReadOnlySegment(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	f := e.file(t, "prog", []byte("code"))
	seg, _ := f.Reopen()
	if err := e.mm.AddFileSegment(e.ctx, seg, hostarch.CodeBase, 0, 4, page-4, false); err != nil {
		t.Fatalf("AddFileSegment failed: %v", err)
	}
	buf := make([]byte, 4)
	if err := e.mm.UserCopyIn(e.ctx, hostarch.CodeBase, buf, sp); err != nil || string(buf) != "code" {
		t.Fatalf("read of code = (%q, %v)", buf, err)
	}
	if err := e.mm.UserCopyOut(e.ctx, hostarch.CodeBase, buf, sp); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("user write to code = %v, want EFAULT", err)
	}
	if err := e.mm.CheckAndPrepareBuffer(e.ctx, hostarch.CodeBase, 4, hostarch.Write, sp); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("write buffer in code = %v, want EFAULT", err)
	}
	if _, err := e.mm.CopyOut(e.ctx, hostarch.CodeBase, buf); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("kernel write to code = %v, want EFAULT", err)
	}
}

func TestShortSegmentFails(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	f := e.file(t, "short", []byte("abc"))
	seg, _ := f.Reopen()

	// The segment claims more file bytes than exist.
	if err := e.mm.AddFileSegment(e.ctx, seg, hostarch.CodeBase, 0, 100, page-100, false); err != nil {
		t.Fatalf("AddFileSegment failed: %v", err)
	}
	free := e.frames.MemoryFile().FreePages()
	if err := e.mm.HandleUserFault(e.ctx, hostarch.CodeBase, hostarch.Read, sp); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("fault on a short segment = %v, want EFAULT", err)
	}
	if got := e.frames.MemoryFile().FreePages(); got != free {
		t.Errorf("failed load leaked %d frames", free-got)
	}
}

func TestSwapUnsupported(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	e.mm.mu.Lock()
	e.mm.addEntryLocked(&Entry{Kind: EntrySwap, Addr: mapBase})
	e.mm.mu.Unlock()
	if err := e.mm.HandleUserFault(e.ctx, mapBase, hostarch.Read, sp); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("fault on a swap entry = %v, want EFAULT", err)
	}
}

func TestCopyInString(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)

	// Place a string so that it straddles the bottom of the initial stack
	// page and a grown page below it.
	s := "straddle"
	addr := sp - 3
	if err := e.mm.UserCopyOut(e.ctx, addr, append([]byte(s), 0), sp); err != nil {
		t.Fatalf("UserCopyOut failed: %v", err)
	}
	got, err := e.mm.CopyInString(e.ctx, addr, 64)
	if err != nil || got != s {
		t.Errorf("CopyInString = (%q, %v), want (%q, nil)", got, err, s)
	}
	if _, err := e.mm.CopyInString(e.ctx, addr, 4); !linuxerr.Equals(linuxerr.ENAMETOOLONG, err) {
		t.Errorf("CopyInString with a short limit = %v, want ENAMETOOLONG", err)
	}
	if _, err := e.mm.CopyInString(e.ctx, mapBase, 64); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("CopyInString of unmapped memory = %v, want EFAULT", err)
	}
}

func TestCheckAndCopyInString(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	data := append(bytes.Repeat([]byte{'x'}, page-3), "name\x00"...)
	f := e.file(t, "data", data)
	if _, err := e.mm.MMap(e.ctx, MMapOpts{File: f, Addr: mapBase}); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	addr := mapBase + page - 3
	if err := e.mm.HandleUserFault(e.ctx, addr, hostarch.Read, sp); err != nil {
		t.Fatalf("HandleUserFault failed: %v", err)
	}

	// The second page has a supplemental entry but is not resident yet.
	if _, err := e.mm.CopyInString(e.ctx, addr, 64); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("CopyInString across a lazy page = %v, want EFAULT", err)
	}
	got, err := e.mm.CheckAndCopyInString(e.ctx, addr, 64, sp)
	if err != nil || got != "name" {
		t.Errorf("CheckAndCopyInString = (%q, %v), want (%q, nil)", got, err, "name")
	}
	if !e.mm.IsResident(mapBase + page) {
		t.Errorf("second page not resident after CheckAndCopyInString")
	}

	// A string running off the top of user space still faults.
	top := e.mm.layout.MaxAddr - 4
	if _, err := e.mm.CopyOut(e.ctx, top, []byte("abcd")); err != nil {
		t.Fatalf("CopyOut failed: %v", err)
	}
	if _, err := e.mm.CheckAndCopyInString(e.ctx, top, 64, sp); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("CheckAndCopyInString past user space = %v, want EFAULT", err)
	}
}

func TestWords(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	if err := e.mm.WriteWord(e.ctx, sp, 0xdeadbeef); err != nil {
		t.Fatalf("WriteWord failed: %v", err)
	}
	got, err := e.mm.ReadWord(e.ctx, sp)
	if err != nil || got != 0xdeadbeef {
		t.Errorf("ReadWord = (%#x, %v), want 0xdeadbeef", got, err)
	}
	raw := make([]byte, 4)
	e.mm.CopyIn(e.ctx, sp, raw)
	if diff := cmp.Diff([]byte{0xef, 0xbe, 0xad, 0xde}, raw); diff != "" {
		t.Errorf("word is not little-endian (-want +got):\n%s", diff)
	}
}

func TestRelease(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	f := e.file(t, "f", []byte("xxxx"))
	e.mm.MMap(e.ctx, MMapOpts{File: f, Addr: mapBase})
	e.mm.UserCopyOut(e.ctx, mapBase, []byte("yy"), sp)
	e.mm.UserCopyOut(e.ctx, sp-8, []byte("stack"), sp)

	e.mm.Release(e.ctx)
	e.mm.Release(e.ctx)
	if n := e.frames.Owned(7); n != 0 {
		t.Errorf("%d frames still owned after Release", n)
	}
	buf := make([]byte, 4)
	f.ReadAt(buf, 0)
	if got := string(buf); got != "yyxx" {
		t.Errorf("file after Release = %q, want %q", got, "yyxx")
	}
}

func TestMaps(t *testing.T) {
	e := newTestEnv(t, 8)
	sp := e.stackTop(t)
	f := e.file(t, "f", make([]byte, page+1))
	id, _ := e.mm.MMap(e.ctx, MMapOpts{File: f, Addr: mapBase})
	e.mm.UserCopyIn(e.ctx, mapBase, make([]byte, 1), sp)

	lines := strings.Split(strings.TrimSpace(e.mm.Maps()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Maps() = %q, want 2 lines", lines)
	}
	if !strings.HasPrefix(lines[0], "10000000-10002000 rw 1") || !strings.HasSuffix(lines[0], fmt.Sprintf("[map %d]", id)) {
		t.Errorf("mapping line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "bffff000-c0000000 rw 1") || !strings.HasSuffix(lines[1], "[stack]") {
		t.Errorf("stack line = %q", lines[1])
	}
}
