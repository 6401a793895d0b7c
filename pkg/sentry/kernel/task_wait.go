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

// Wait waits for the child tid to exit and returns its exit status. It
// returns -1 immediately if tid is not a child of t or has already been
// waited for. Each child can be waited for once.
//
// Wait returns only after the child has been torn down, so data the child
// wrote back to files when its mappings were removed is visible to the
// caller.
//
// Preconditions: The caller must be running on the task goroutine.
func (t *Task) Wait(tid ThreadID) int32 {
	t.childMu.Lock()
	i := t.findChildLocked(tid)
	if i < 0 {
		t.childMu.Unlock()
		t.Debugf("Wait for %d: not a child", tid)
		return -1
	}
	c := t.children[i]
	for c.state != childExitRecorded {
		if t.k.IsStopped() {
			t.childMu.Unlock()
			return -1
		}
		t.childCond.Wait()
	}
	// c may have moved; look it up again.
	i = t.findChildLocked(tid)
	t.children = append(t.children[:i], t.children[i+1:]...)
	t.childMu.Unlock()

	select {
	case <-c.task.done:
	case <-t.k.stopped:
		return -1
	}
	t.Debugf("Child %d exited with status %d", tid, c.status)
	return c.status
}

// findChildLocked returns the index of the record for tid, or -1.
//
// Preconditions: t.childMu must be locked.
func (t *Task) findChildLocked(tid ThreadID) int {
	for i, c := range t.children {
		if c.tid == tid {
			return i
		}
	}
	return -1
}

// NumChildren returns the number of children t has not waited for.
func (t *Task) NumChildren() int {
	t.childMu.Lock()
	defer t.childMu.Unlock()
	return len(t.children)
}
