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

// Package boot assembles a simulated machine from a Config: physical
// memory, a filesystem holding the built-in program images, and a kernel.
package boot

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gvisor.dev/vmcore/pkg/cleanup"
	"gvisor.dev/vmcore/pkg/errors/linuxerr"
	"gvisor.dev/vmcore/pkg/log"
	"gvisor.dev/vmcore/pkg/sentry/context"
	"gvisor.dev/vmcore/pkg/sentry/fs"
	"gvisor.dev/vmcore/pkg/sentry/fs/host"
	"gvisor.dev/vmcore/pkg/sentry/fs/ramfs"
	"gvisor.dev/vmcore/pkg/sentry/kernel"
	"gvisor.dev/vmcore/pkg/sentry/pgalloc"
	"gvisor.dev/vmcore/pkg/sentry/programs"
	"gvisor.dev/vmcore/pkg/sentry/syscalls/pintos"
	"gvisor.dev/vmcore/vmsim/config"
)

// drainTimeout bounds how long Destroy waits for processes still running
// after the kernel stopped.
const drainTimeout = 5 * time.Second

// Args are the arguments for New.
type Args struct {
	// Config is the machine configuration.
	Config *config.Config

	// Stdout and Stdin are the console. Either may be nil.
	Stdout io.Writer
	Stdin  io.Reader

	// Files are copied into the filesystem before boot, keyed by the name
	// inside the filesystem, valued by host path. Existing files are
	// replaced.
	Files map[string]string
}

// Machine is a booted simulated machine.
type Machine struct {
	// Config is the machine's own copy of the configuration it was booted
	// with.
	Config *config.Config

	// Kernel is the machine's kernel.
	Kernel *kernel.Kernel

	// MemoryFile is physical memory.
	MemoryFile *pgalloc.MemoryFile

	// Filesystem is the root filesystem.
	Filesystem fs.Filesystem

	// Loader resolves program images.
	Loader *kernel.ImageLoader

	// closeFS releases the filesystem. It may be nil.
	closeFS func() error
}

// New boots a machine. The result must be released with Destroy.
func New(ctx context.Context, args Args) (*Machine, error) {
	conf := args.Config.Copy()
	mf, err := pgalloc.NewMemoryFile(conf.Pages)
	if err != nil {
		return nil, fmt.Errorf("creating physical memory: %w", err)
	}
	m := &Machine{
		Config:     conf,
		MemoryFile: mf,
		Loader:     kernel.NewImageLoader(),
	}
	cu := cleanup.Make(m.Destroy)
	defer cu.Clean()

	if conf.FSRoot != "" {
		h, err := host.New(conf.FSRoot, conf.FSLockTimeout)
		if err != nil {
			return nil, err
		}
		m.Filesystem, m.closeFS = h, h.Close
	} else {
		m.Filesystem = ramfs.New(conf.FSCapacity)
	}

	if err := programs.Install(ctx, m.Filesystem, m.Loader); err != nil {
		return nil, fmt.Errorf("installing programs: %w", err)
	}
	if err := copyFiles(ctx, m.Filesystem, args.Files); err != nil {
		return nil, err
	}

	m.Kernel, err = kernel.New(kernel.InitOptions{
		MemoryFile: mf,
		Filesystem: m.Filesystem,
		Layout:     conf.Layout(),
		Syscalls:   pintos.Syscalls,
		Loader:     m.Loader,
		ConsoleOut: args.Stdout,
		ConsoleIn:  args.Stdin,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kernel: %w", err)
	}
	ctx.Debugf("Booting with flags %v", conf.ToFlags())
	log.Infof("Machine booted: %d pages of physical memory, %d programs", mf.TotalPages(), len(m.Loader.Programs()))
	cu.Release()
	return m, nil
}

// copyFiles copies host files into fsys.
func copyFiles(ctx context.Context, fsys fs.Filesystem, files map[string]string) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := os.ReadFile(files[name])
		if err != nil {
			return fmt.Errorf("reading %q: %w", files[name], err)
		}
		if err := putFile(ctx, fsys, name, data); err != nil {
			return fmt.Errorf("copying %q to %q: %w", files[name], name, err)
		}
		ctx.Debugf("Copied %q (%d bytes) to %q", files[name], len(data), name)
	}
	return nil
}

// putFile creates name in fsys with exactly the contents of data.
func putFile(ctx context.Context, fsys fs.Filesystem, name string, data []byte) error {
	if err := fsys.Remove(ctx, name); err != nil && !linuxerr.Equals(linuxerr.ENOENT, err) {
		return err
	}
	if err := fsys.Create(ctx, name, int64(len(data))); err != nil {
		return err
	}
	f, err := fsys.Open(ctx, name)
	if err != nil {
		return err
	}
	defer f.Close()
	if n, err := f.WriteAt(data, 0); err != nil {
		return err
	} else if n != len(data) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(data))
	}
	return nil
}

// Run runs cmdline as the initial process and returns its exit status.
func (m *Machine) Run(ctx context.Context, cmdline string) (int32, error) {
	return m.Kernel.Run(ctx, cmdline)
}

// Destroy releases the machine. Processes that outlive a halt are given a
// moment to notice before physical memory is unmapped. Destroy is
// idempotent.
func (m *Machine) Destroy() {
	if m.Kernel != nil {
		deadline := time.Now().Add(drainTimeout)
		for m.Kernel.NumTasks() != 0 {
			if time.Now().After(deadline) {
				log.Warningf("%d processes still running after %v, leaking physical memory", m.Kernel.NumTasks(), drainTimeout)
				m.MemoryFile = nil
				break
			}
			time.Sleep(time.Millisecond)
		}
	}
	if m.MemoryFile != nil {
		if err := m.MemoryFile.Destroy(); err != nil {
			log.Warningf("Destroying physical memory: %v", err)
		}
		m.MemoryFile = nil
	}
	if m.closeFS != nil {
		if err := m.closeFS(); err != nil {
			log.Warningf("Releasing filesystem: %v", err)
		}
		m.closeFS = nil
	}
}
