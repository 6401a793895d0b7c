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

// Package kerneltest builds complete kernels for tests: a small physical
// memory, an in-memory filesystem holding the built-in programs, and the
// standard syscall table.
package kerneltest

import (
	"bytes"
	"testing"
	"time"

	"gvisor.dev/vmcore/pkg/sentry/context"
	"gvisor.dev/vmcore/pkg/sentry/context/contexttest"
	"gvisor.dev/vmcore/pkg/sentry/fs/ramfs"
	"gvisor.dev/vmcore/pkg/sentry/kernel"
	"gvisor.dev/vmcore/pkg/sentry/mm"
	"gvisor.dev/vmcore/pkg/sentry/pgalloc"
	"gvisor.dev/vmcore/pkg/sentry/programs"
	"gvisor.dev/vmcore/pkg/sentry/syscalls/pintos"
	"gvisor.dev/vmcore/pkg/sync"
)

// DefaultPages is the default size of physical memory in pages.
const DefaultPages = 256

// Options configures a test kernel. The zero value is usable.
type Options struct {
	// Pages is the size of physical memory. Zero means DefaultPages.
	Pages uint64

	// Layout is the address space layout. The zero value means
	// mm.DefaultLayout().
	Layout mm.Layout

	// Files are added to the filesystem, name to contents.
	Files map[string]string

	// Programs are registered in addition to the built-in programs, each
	// with an image file of the same name.
	Programs map[string]kernel.Program

	// ConsoleIn is the console input.
	ConsoleIn string
}

// Harness is a kernel under test.
type Harness struct {
	Kernel     *kernel.Kernel
	FS         *ramfs.Filesystem
	Loader     *kernel.ImageLoader
	MemoryFile *pgalloc.MemoryFile

	ctx     context.Context
	console syncBuffer
}

// New builds a kernel for tb. Resources are released when tb finishes.
func New(tb testing.TB, opts Options) *Harness {
	tb.Helper()
	if opts.Pages == 0 {
		opts.Pages = DefaultPages
	}
	if opts.Layout == (mm.Layout{}) {
		opts.Layout = mm.DefaultLayout()
	}
	mf, err := pgalloc.NewMemoryFile(opts.Pages)
	if err != nil {
		tb.Fatalf("NewMemoryFile(%d): %v", opts.Pages, err)
	}
	h := &Harness{
		FS:         ramfs.New(0),
		Loader:     kernel.NewImageLoader(),
		MemoryFile: mf,
		ctx:        contexttest.Context(tb),
	}
	if err := programs.Install(h.ctx, h.FS, h.Loader); err != nil {
		tb.Fatalf("programs.Install: %v", err)
	}
	for name, p := range opts.Programs {
		h.Loader.Register(name, p)
		if err := h.FS.WriteFile(name, programs.Image(name)); err != nil {
			tb.Fatalf("WriteFile(%q): %v", name, err)
		}
	}
	for name, data := range opts.Files {
		if err := h.FS.WriteFile(name, []byte(data)); err != nil {
			tb.Fatalf("WriteFile(%q): %v", name, err)
		}
	}
	h.Kernel, err = kernel.New(kernel.InitOptions{
		MemoryFile: mf,
		Filesystem: h.FS,
		Layout:     opts.Layout,
		Syscalls:   pintos.Syscalls,
		Loader:     h.Loader,
		ConsoleOut: &h.console,
		ConsoleIn:  bytes.NewReader([]byte(opts.ConsoleIn)),
	})
	if err != nil {
		tb.Fatalf("kernel.New: %v", err)
	}
	tb.Cleanup(func() {
		// Tasks still running after a halt or panic touch physical memory
		// until they notice; only unmap memory once no task holds any.
		deadline := time.Now().Add(5 * time.Second)
		for h.Kernel.NumTasks() != 0 {
			if time.Now().After(deadline) {
				tb.Logf("%d tasks still running, leaking physical memory", h.Kernel.NumTasks())
				return
			}
			time.Sleep(time.Millisecond)
		}
		mf.Destroy()
	})
	return h
}

// Run runs cmdline as the initial process.
func (h *Harness) Run(cmdline string) (int32, error) {
	return h.Kernel.Run(h.ctx, cmdline)
}

// Output returns everything written to the console so far.
func (h *Harness) Output() string {
	return h.console.String()
}

// File returns the contents of a file, or fails tb.
func (h *Harness) File(tb testing.TB, name string) string {
	tb.Helper()
	data, err := h.FS.ReadFile(name)
	if err != nil {
		tb.Fatalf("ReadFile(%q): %v", name, err)
	}
	return string(data)
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
