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

package kernel

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/vmcore/pkg/sentry/context"
	"gvisor.dev/vmcore/pkg/sentry/context/contexttest"
	"gvisor.dev/vmcore/pkg/sentry/fs"
	"gvisor.dev/vmcore/pkg/sentry/fs/ramfs"
)

func runTest(t testing.TB, fn func(ctx context.Context, table *FileTable, open func() *fs.File)) {
	t.Helper() // Don't show in stacks.

	ctx := contexttest.Context(t)
	rfs := ramfs.New(0)
	if err := rfs.WriteFile("test", []byte("contents")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	open := func() *fs.File {
		f, err := rfs.Open(ctx, "test")
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		return f
	}

	table := new(FileTable)
	table.init()
	fn(ctx, table, open)
}

func TestFileTableOwnerFiltering(t *testing.T) {
	runTest(t, func(ctx context.Context, table *FileTable, open func() *fs.File) {
		table.Lock()
		table.NewFDLocked(1, 2, open())
		table.NewFDLocked(2, 3, open())
		if table.GetLocked(1, 2) == nil {
			t.Errorf("GetLocked(1, 2) = nil, want the file")
		}
		if table.GetLocked(2, 2) != nil {
			t.Errorf("GetLocked(2, 2) returned another task's file")
		}
		if f := table.RemoveLocked(2, 2); f != nil {
			t.Errorf("RemoveLocked(2, 2) removed another task's file")
		}
		if table.GetLocked(1, 7) != nil {
			t.Errorf("GetLocked(1, 7) returned a file for an unknown descriptor")
		}
		table.Unlock()

		if got, want := table.Size(), 2; got != want {
			t.Errorf("Size() = %d, want %d", got, want)
		}
	})
}

func TestFileTableRemove(t *testing.T) {
	runTest(t, func(ctx context.Context, table *FileTable, open func() *fs.File) {
		table.Lock()
		table.NewFDLocked(1, 2, open())
		f := table.RemoveLocked(1, 2)
		if f == nil {
			t.Fatalf("RemoveLocked(1, 2) = nil, want the file")
		}
		if f := table.RemoveLocked(1, 2); f != nil {
			t.Errorf("second RemoveLocked(1, 2) = %v, want nil", f)
		}
		table.Unlock()
		if err := f.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
}

func TestFileTableRemoveAll(t *testing.T) {
	runTest(t, func(ctx context.Context, table *FileTable, open func() *fs.File) {
		files := []*fs.File{open(), open(), open()}
		table.Lock()
		table.NewFDLocked(1, 2, files[0])
		table.NewFDLocked(2, 3, files[1])
		table.NewFDLocked(1, 4, files[2])
		table.Unlock()

		table.RemoveAll(ctx, 1)
		if diff := cmp.Diff([]int32{3}, table.Owned(2)); diff != "" {
			t.Errorf("Owned(2) mismatch (-want +got):\n%s", diff)
		}
		if got := table.Owned(1); len(got) != 0 {
			t.Errorf("Owned(1) = %v, want none", got)
		}
		// RemoveAll closed the files it removed.
		if err := files[0].Close(); err == nil {
			t.Errorf("file of descriptor 2 was not closed")
		}
		if err := files[1].Close(); err != nil {
			t.Errorf("file of descriptor 3 was closed: %v", err)
		}
	})
}

func TestFileTableDuplicateDescriptor(t *testing.T) {
	runTest(t, func(ctx context.Context, table *FileTable, open func() *fs.File) {
		table.Lock()
		defer table.Unlock()
		table.NewFDLocked(1, 2, open())
		defer func() {
			if recover() == nil {
				t.Errorf("NewFDLocked with a used descriptor did not panic")
			}
		}()
		table.NewFDLocked(2, 2, open())
	})
}
