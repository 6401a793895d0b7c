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
	"strings"
	"time"

	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/log"
	"gvisor.dev/vmcore/pkg/sentry/arch"
	"gvisor.dev/vmcore/pkg/sentry/context"
	"gvisor.dev/vmcore/pkg/sentry/mm"
	"gvisor.dev/vmcore/pkg/sentry/pgalloc"
	"gvisor.dev/vmcore/pkg/sync"
)

// TaskNameMax is the maximum length of a task name. Longer program names
// are truncated.
const TaskNameMax = 15

// Task represents a user process. Each task runs on its own goroutine, the
// task goroutine.
//
// Task implements context.Context. A Task is only used as a Context on its
// own task goroutine.
type Task struct {
	k *Kernel

	// tid, parent and name are immutable.
	tid    ThreadID
	parent ThreadID
	name   string

	// logPrefix is prepended to log messages emitted by Task.Infof etc.
	// It is immutable.
	logPrefix string

	// mm is the task's address space. It is immutable.
	mm *mm.MemoryManager

	// regs is the user register file.
	//
	// regs is owned by the task goroutine.
	regs arch.Registers

	// trapSP is the stack pointer recorded when the current system call
	// trapped.
	//
	// trapSP is owned by the task goroutine.
	trapSP hostarch.Addr

	// childMu protects children and loadState. It also serves as the lock
	// for childCond, which is broadcast whenever a child reports its load
	// outcome or records its exit.
	childMu   sync.Mutex
	childCond *sync.Cond

	// children holds one record per child that has not been waited for.
	children []*childRecord

	// loadState is the outcome of the most recent exec.
	loadState LoadState

	// exitStatus is the status passed to Exit. It is written before done
	// is closed and is read-only afterward.
	exitStatus int32

	// done is closed once the task has been torn down.
	done chan struct{}
}

// Kernel returns the kernel t runs in.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// ThreadID returns t's identifier.
func (t *Task) ThreadID() ThreadID {
	return t.tid
}

// Parent returns the identifier of t's parent, or 0 if t has no parent.
func (t *Task) Parent() ThreadID {
	return t.parent
}

// Name returns t's name: the program name from its command line.
func (t *Task) Name() string {
	return t.name
}

// MemoryManager returns t's address space.
func (t *Task) MemoryManager() *mm.MemoryManager {
	return t.mm
}

// TrapSP returns the stack pointer recorded by the current system call.
//
// Preconditions: The caller must be running on the task goroutine.
func (t *Task) TrapSP() hostarch.Addr {
	return t.trapSP
}

// Done implements context.Context.Done. Task contexts are never cancelled.
func (*Task) Done() <-chan struct{} {
	return nil
}

// Deadline implements context.Context.Deadline.
func (*Task) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

// Err implements context.Context.Err.
func (*Task) Err() error {
	return nil
}

// Value implements context.Context.Value.
func (t *Task) Value(key any) any {
	switch key {
	case CtxKernel:
		return t.k
	case CtxTask:
		return t
	case context.CtxThreadGroupID:
		return int32(t.tid)
	case context.CtxProcessName:
		return t.name
	case pgalloc.CtxMemoryFile:
		return t.k.mf
	default:
		return nil
	}
}

// Debugf logs a debug message prefixed with the task's identity.
func (t *Task) Debugf(fmt string, v ...any) {
	log.DebugfAtDepth(1, t.logPrefix+fmt, v...)
}

// Infof logs an informational message prefixed with the task's identity.
func (t *Task) Infof(fmt string, v ...any) {
	log.InfofAtDepth(1, t.logPrefix+fmt, v...)
}

// Warningf logs a warning prefixed with the task's identity.
func (t *Task) Warningf(fmt string, v ...any) {
	log.WarningfAtDepth(1, t.logPrefix+fmt, v...)
}

// IsLogging implements log.Logger.IsLogging.
func (t *Task) IsLogging(level log.Level) bool {
	return log.IsLogging(level)
}

// programName returns the task name for cmdline.
func programName(cmdline string) string {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return ""
	}
	name := fields[0]
	if len(name) > TaskNameMax {
		name = name[:TaskNameMax]
	}
	return name
}
