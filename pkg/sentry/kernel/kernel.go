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

// Package kernel provides an emulation of the teaching kernel's process
// model: tasks, the system call trap, the global open-file table, and the
// exit/wait handshake between parents and children.
//
// Lock order:
//
//	FileTable.mu
//	  mm.MemoryManager.mu
//	    frame.Table.mu
//	      pgalloc.MemoryFile.mu
//
// Task.childMu is a leaf: it is never held while taking any lock above.
// Kernel.tasksMu is a leaf as well.
package kernel

import (
	goerrors "errors"
	"fmt"
	"io"
	"sync/atomic"

	"gvisor.dev/vmcore/pkg/abi/pintos"
	"gvisor.dev/vmcore/pkg/sentry/context"
	"gvisor.dev/vmcore/pkg/sentry/frame"
	"gvisor.dev/vmcore/pkg/sentry/fs"
	"gvisor.dev/vmcore/pkg/sentry/mm"
	"gvisor.dev/vmcore/pkg/sentry/pgalloc"
	"gvisor.dev/vmcore/pkg/sync"
)

// ErrPanic is returned by Kernel.Run when the kernel panicked.
var ErrPanic = goerrors.New("kernel panic")

// ThreadID is a process identifier. Valid identifiers are positive.
type ThreadID int32

// InitOptions configures a Kernel.
type InitOptions struct {
	// MemoryFile provides physical memory. The Kernel does not take
	// ownership of it.
	MemoryFile *pgalloc.MemoryFile

	// Filesystem is the only filesystem.
	Filesystem fs.Filesystem

	// Layout is the shape of every user address space.
	Layout mm.Layout

	// Syscalls dispatches system calls.
	Syscalls *SyscallTable

	// Loader builds process images.
	Loader Loader

	// ConsoleOut receives everything written to the console. If nil,
	// console output is discarded.
	ConsoleOut io.Writer

	// ConsoleIn supplies console input. If nil, console input is empty.
	ConsoleIn io.Reader
}

// Kernel represents an emulated kernel.
type Kernel struct {
	mf       *pgalloc.MemoryFile
	frames   *frame.Table
	fs       fs.Filesystem
	layout   mm.Layout
	syscalls *SyscallTable
	loader   Loader
	console  *Console
	files    FileTable

	// nextID is the last descriptor or mapping identifier handed out.
	nextID atomic.Int32

	// tasksMu protects the fields below.
	tasksMu sync.Mutex
	tasks   map[ThreadID]*Task
	lastTID ThreadID

	// stopped is closed when the kernel halts or panics. stopOnce guards it.
	stopOnce sync.Once
	stopped  chan struct{}

	// panicMsg is set before stopped is closed by Panic.
	panicMsg string
}

// New creates a Kernel.
func New(opts InitOptions) (*Kernel, error) {
	if opts.MemoryFile == nil {
		return nil, fmt.Errorf("no memory file")
	}
	if opts.Filesystem == nil {
		return nil, fmt.Errorf("no filesystem")
	}
	if opts.Syscalls == nil {
		return nil, fmt.Errorf("no syscall table")
	}
	if opts.Loader == nil {
		return nil, fmt.Errorf("no loader")
	}
	if err := opts.Layout.Validate(); err != nil {
		return nil, err
	}
	k := &Kernel{
		mf:       opts.MemoryFile,
		frames:   frame.NewTable(opts.MemoryFile),
		fs:       opts.Filesystem,
		layout:   opts.Layout,
		syscalls: opts.Syscalls,
		loader:   opts.Loader,
		console:  NewConsole(opts.ConsoleOut, opts.ConsoleIn),
		tasks:    make(map[ThreadID]*Task),
		stopped:  make(chan struct{}),
	}
	k.files.init()
	k.nextID.Store(pintos.FirstAllocatedID - 1)
	return k, nil
}

// Frames returns the kernel's frame table.
func (k *Kernel) Frames() *frame.Table {
	return k.frames
}

// Filesystem returns the kernel's filesystem.
func (k *Kernel) Filesystem() fs.Filesystem {
	return k.fs
}

// Layout returns the user address space layout.
func (k *Kernel) Layout() mm.Layout {
	return k.layout
}

// Console returns the system console.
func (k *Kernel) Console() *Console {
	return k.console
}

// FileTable returns the global open-file table.
func (k *Kernel) FileTable() *FileTable {
	return &k.files
}

// NextID returns a fresh descriptor or mapping identifier. Identifiers are
// shared between descriptors and mappings, start at 2 and are never reused.
func (k *Kernel) NextID() int32 {
	return k.nextID.Add(1)
}

// TaskWithID returns the live task with the given ID, or nil.
func (k *Kernel) TaskWithID(tid ThreadID) *Task {
	k.tasksMu.Lock()
	defer k.tasksMu.Unlock()
	return k.tasks[tid]
}

// NumTasks returns the number of live tasks.
func (k *Kernel) NumTasks() int {
	k.tasksMu.Lock()
	defer k.tasksMu.Unlock()
	return len(k.tasks)
}

// Run starts the initial process with the given command line and blocks
// until it has exited or the kernel has stopped. It returns the initial
// process's exit status. Once the initial process exits the kernel powers
// off, as there is nothing left to wait for remaining processes.
func (k *Kernel) Run(ctx context.Context, cmdline string) (int32, error) {
	initTask := k.newTask(nil, cmdline)
	ctx.Infof("Starting init process %d: %q", initTask.tid, cmdline)
	go initTask.start(cmdline)

	var status int32
	select {
	case <-initTask.done:
		status = initTask.exitStatus
	case <-k.stopped:
	}
	k.stop()
	if k.panicMsg != "" {
		return 0, fmt.Errorf("%w: %s", ErrPanic, k.panicMsg)
	}
	ctx.Infof("Init process exited with status %d", status)
	return status, nil
}

// Halt powers the kernel off. Processes still running are torn down the
// next time they enter the kernel.
func (k *Kernel) Halt(ctx context.Context) {
	ctx.Infof("Powering off")
	k.stop()
}

// Panic stops the kernel because of an unrecoverable condition.
func (k *Kernel) Panic(ctx context.Context, format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	k.stopOnce.Do(func() {
		ctx.Warningf("Kernel PANIC: %s", msg)
		k.panicMsg = msg
		k.closeStopped()
	})
}

// Stopped returns a channel that is closed once the kernel has stopped.
func (k *Kernel) Stopped() <-chan struct{} {
	return k.stopped
}

// IsStopped returns true iff the kernel has halted or panicked.
func (k *Kernel) IsStopped() bool {
	select {
	case <-k.stopped:
		return true
	default:
		return false
	}
}

func (k *Kernel) stop() {
	k.stopOnce.Do(k.closeStopped)
}

// closeStopped closes k.stopped and wakes every task blocked in Wait or
// AwaitLoad so it can notice.
func (k *Kernel) closeStopped() {
	close(k.stopped)
	k.tasksMu.Lock()
	ts := make([]*Task, 0, len(k.tasks))
	for _, t := range k.tasks {
		ts = append(ts, t)
	}
	k.tasksMu.Unlock()
	for _, t := range ts {
		t.childMu.Lock()
		t.childCond.Broadcast()
		t.childMu.Unlock()
	}
}

// newTask creates and registers a task. If parent is not nil, a child
// record is added to it.
func (k *Kernel) newTask(parent *Task, cmdline string) *Task {
	k.tasksMu.Lock()
	k.lastTID++
	tid := k.lastTID
	t := &Task{
		k:    k,
		tid:  tid,
		name: programName(cmdline),
		done: make(chan struct{}),
	}
	t.childCond = sync.NewCond(&t.childMu)
	t.logPrefix = fmt.Sprintf("[%3d:%s] ", tid, t.name)
	t.mm = mm.NewMemoryManager(frame.Owner(tid), k.frames, k.layout, k.NextID)
	k.tasks[tid] = t
	k.tasksMu.Unlock()

	if parent != nil {
		t.parent = parent.tid
		parent.childMu.Lock()
		parent.children = append(parent.children, &childRecord{tid: tid, task: t})
		parent.childMu.Unlock()
	}
	return t
}

// deregister removes t from the task registry.
func (k *Kernel) deregister(t *Task) {
	k.tasksMu.Lock()
	defer k.tasksMu.Unlock()
	delete(k.tasks, t.tid)
}
