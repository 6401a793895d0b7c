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

// This file implements the task exit cycle:
//
//   - Exit prints the exit line and records the status in the parent's
//     child record, waking the parent if it is waiting.
//
//   - The task then tears down its address space (writing back dirty mapped
//     pages), closes its descriptors, forgets its own children, and leaves
//     the task registry.
//
//   - Finally done is closed, which lets a parent blocked in Wait return,
//     and the task goroutine ends.

import (
	"runtime"

	"gvisor.dev/vmcore/pkg/log"
)

// childState is the lifecycle of a child as seen by its parent.
type childState int

const (
	// childSpawned: the child exists but has not reported its load outcome.
	childSpawned childState = iota

	// childRunning: the child loaded successfully and has not exited.
	childRunning

	// childExitRecorded: the child exited; status is valid.
	childExitRecorded
)

// String implements fmt.Stringer.String.
func (s childState) String() string {
	switch s {
	case childSpawned:
		return "spawned"
	case childRunning:
		return "running"
	case childExitRecorded:
		return "exited"
	default:
		return "unknown"
	}
}

// childRecord is a parent's record of one child.
type childRecord struct {
	tid    ThreadID
	state  childState
	status int32

	// task is the child. It is used to wait for the child's teardown.
	task *Task
}

// Exit terminates t with the given status. It does not return.
//
// Preconditions: The caller must be running on the task goroutine.
func (t *Task) Exit(status int32) {
	t.announceExit(status)
	t.finishExit(status)
}

// announceExit prints t's exit line and records status for the parent.
func (t *Task) announceExit(status int32) {
	t.k.console.Printf("%s: exit(%d)\n", t.name, status)
	t.recordExit(status)
}

// finishExit tears t down after its exit was announced. It does not return.
func (t *Task) finishExit(status int32) {
	t.exitStatus = status
	t.teardown()
	runtime.Goexit()
}

// recordExit stores status in the parent's record of t and wakes the parent.
// It does nothing if the parent is gone.
func (t *Task) recordExit(status int32) {
	parent := t.k.TaskWithID(t.parent)
	if parent == nil {
		return
	}
	parent.childMu.Lock()
	defer parent.childMu.Unlock()
	for _, c := range parent.children {
		if c.tid == t.tid {
			c.state = childExitRecorded
			c.status = status
			parent.childCond.Broadcast()
			return
		}
	}
}

// kill tears t down without an exit status. It is used once the kernel has
// stopped. It does not return.
func (t *Task) kill() {
	t.Debugf("Killed: kernel stopped")
	t.exitStatus = -1
	t.teardown()
	runtime.Goexit()
}

// teardown releases everything t holds.
func (t *Task) teardown() {
	if t.IsLogging(log.Debug) {
		t.Debugf("Mappings at exit:\n%s", t.mm.Maps())
	}
	t.mm.Release(t)
	t.k.files.RemoveAll(t, t.tid)

	t.childMu.Lock()
	t.children = nil
	t.childMu.Unlock()

	t.k.deregister(t)
	close(t.done)
}
