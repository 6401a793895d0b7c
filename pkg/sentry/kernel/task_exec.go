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
	goerrors "errors"

	"gvisor.dev/vmcore/pkg/abi/pintos"
	"gvisor.dev/vmcore/pkg/sentry/frame"
)

// LoadState is the outcome of an exec as seen by the parent.
type LoadState int

const (
	// LoadPending: the child has not reported yet.
	LoadPending LoadState = iota

	// LoadSucceeded: the child's image was loaded and it is running.
	LoadSucceeded

	// LoadFailed: the child could not be loaded and is exiting.
	LoadFailed
)

// String implements fmt.Stringer.String.
func (s LoadState) String() string {
	switch s {
	case LoadPending:
		return "pending"
	case LoadSucceeded:
		return "succeeded"
	case LoadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Exec starts a child process running cmdline and returns its ID once the
// child has reported whether its image loaded. It returns -1 if the load
// failed.
//
// Preconditions: The caller must be running on the task goroutine.
func (t *Task) Exec(cmdline string) ThreadID {
	t.childMu.Lock()
	t.loadState = LoadPending
	t.childMu.Unlock()

	child := t.k.newTask(t, cmdline)
	t.Debugf("Spawned child %d: %q", child.tid, cmdline)
	go child.start(cmdline)

	if !t.AwaitLoad() {
		return -1
	}
	return child.tid
}

// AwaitLoad blocks until the most recently spawned child has reported its
// load outcome, and returns true iff it loaded. It also returns false if
// the kernel stops while waiting.
func (t *Task) AwaitLoad() bool {
	t.childMu.Lock()
	defer t.childMu.Unlock()
	for t.loadState == LoadPending {
		if t.k.IsStopped() {
			return false
		}
		t.childCond.Wait()
	}
	return t.loadState == LoadSucceeded
}

// reportLoad tells t's parent whether t's image loaded.
func (t *Task) reportLoad(ok bool) {
	parent := t.k.TaskWithID(t.parent)
	if parent == nil {
		return
	}
	parent.childMu.Lock()
	defer parent.childMu.Unlock()
	if ok {
		parent.loadState = LoadSucceeded
		for _, c := range parent.children {
			if c.tid == t.tid {
				c.state = childRunning
				break
			}
		}
	} else {
		parent.loadState = LoadFailed
	}
	parent.childCond.Broadcast()
}

// start is the body of the task goroutine: it loads the image for cmdline,
// reports the outcome and runs the program.
func (t *Task) start(cmdline string) {
	prog, err := t.k.loader.Load(t, cmdline)
	if err != nil {
		t.Infof("Load of %q failed: %v", cmdline, err)
		if goerrors.Is(err, frame.ErrOutOfFrames) {
			t.reportLoad(false)
			t.k.Panic(t, "loading %q: out of physical frames", cmdline)
			t.kill()
		}
		// The exit line comes before the parent learns of the failure.
		t.announceExit(pintos.ExitKilled)
		t.reportLoad(false)
		t.finishExit(pintos.ExitKilled)
	}
	t.reportLoad(true)
	t.Exit(prog(t))
}
