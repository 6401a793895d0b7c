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

package host

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gvisor.dev/vmcore/pkg/errors/linuxerr"
	"gvisor.dev/vmcore/pkg/sentry/context/contexttest"
)

func newTestFilesystem(t *testing.T) *Filesystem {
	t.Helper()
	h, err := New(t.TempDir(), time.Second)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestCreateOpenRemove(t *testing.T) {
	ctx := contexttest.Context(t)
	h := newTestFilesystem(t)
	if err := h.Create(ctx, "data", 10); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := h.Create(ctx, "data", 10); err != linuxerr.EEXIST {
		t.Errorf("second Create = %v, want EEXIST", err)
	}
	st, err := os.Stat(filepath.Join(h.Root(), "data"))
	if err != nil || st.Size() != 10 {
		t.Fatalf("host file after Create: %v, %v", st, err)
	}

	f, err := h.Open(ctx, "data")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if n, err := f.Write([]byte("0123456789abc")); n != 10 || err != nil {
		t.Errorf("Write = (%d, %v), want (10, nil)", n, err)
	}
	if err := h.Remove(ctx, "data"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	buf := make([]byte, 10)
	if n, err := f.ReadAt(buf, 0); n != 10 || err != nil || string(buf) != "0123456789" {
		t.Errorf("ReadAt after Remove = (%q, %v)", buf[:n], err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, err := h.Open(ctx, "data"); err != linuxerr.ENOENT {
		t.Errorf("Open after Remove = %v, want ENOENT", err)
	}
}

func TestLockFileHidden(t *testing.T) {
	ctx := contexttest.Context(t)
	h := newTestFilesystem(t)
	if _, err := h.Open(ctx, lockFilename); err != linuxerr.EACCES {
		t.Errorf("Open(%q) = %v, want EACCES", lockFilename, err)
	}
	if err := h.Remove(ctx, lockFilename); err != linuxerr.EACCES {
		t.Errorf("Remove(%q) = %v, want EACCES", lockFilename, err)
	}
}

func TestRootLocked(t *testing.T) {
	h := newTestFilesystem(t)
	if _, err := New(h.Root(), 50*time.Millisecond); err == nil {
		t.Fatalf("second New on a locked root succeeded")
	}
	h.Close()
	h2, err := New(h.Root(), time.Second)
	if err != nil {
		t.Fatalf("New after Close failed: %v", err)
	}
	h2.Close()
}
