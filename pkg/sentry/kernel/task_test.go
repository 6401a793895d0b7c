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

package kernel_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"
	"gvisor.dev/vmcore/pkg/sentry/kernel"
	"gvisor.dev/vmcore/pkg/sentry/kernel/kerneltest"
	"gvisor.dev/vmcore/pkg/sentry/ulib"
)

// run runs cmdline on a fresh kernel with the given extra programs and
// returns the harness after init has exited.
func run(t *testing.T, opts kerneltest.Options, cmdline string) (*kerneltest.Harness, int32) {
	t.Helper()
	h := kerneltest.New(t, opts)
	status, err := h.Run(cmdline)
	if err != nil {
		t.Fatalf("Run(%q): %v", cmdline, err)
	}
	return h, status
}

func TestExitPrintsStatus(t *testing.T) {
	h, status := run(t, kerneltest.Options{}, "child 7")
	if status != 7 {
		t.Errorf("exit status = %d, want 7", status)
	}
	if got, want := h.Output(), "child: exit(7)\n"; got != want {
		t.Errorf("console = %q, want %q", got, want)
	}
}

func TestWait(t *testing.T) {
	var got []int32
	parent := func(cpu kernel.CPU) int32 {
		task := cpu.(*kernel.Task)
		tid := task.Exec("child 42")
		got = append(got,
			task.Wait(tid),
			// Each child can be waited for once.
			task.Wait(tid),
			// Not a child.
			task.Wait(tid+100),
			task.Wait(task.ThreadID()),
		)
		return 0
	}
	h, _ := run(t, kerneltest.Options{Programs: map[string]kernel.Program{"parent": parent}}, "parent")
	if diff := cmp.Diff([]int32{42, -1, -1, -1}, got); diff != "" {
		t.Errorf("Wait results mismatch (-want +got):\n%s", diff)
	}
	if got, want := h.Output(), "child: exit(42)\nparent: exit(0)\n"; got != want {
		t.Errorf("console = %q, want %q", got, want)
	}
	if s := h.Kernel.Frames().Stats(); s.Allocated != 0 {
		t.Errorf("%d frames still allocated after every process exited", s.Allocated)
	}
}

func TestWaitManyChildren(t *testing.T) {
	const children = 5
	var got []int32
	parent := func(cpu kernel.CPU) int32 {
		task := cpu.(*kernel.Task)
		var tids []kernel.ThreadID
		for i := 0; i < children; i++ {
			tids = append(tids, task.Exec(fmt.Sprintf("child %d", 10+i)))
		}
		// Wait in reverse order of creation.
		for i := len(tids) - 1; i >= 0; i-- {
			got = append(got, task.Wait(tids[i]))
		}
		if n := task.NumChildren(); n != 0 {
			got = append(got, int32(n))
		}
		return 0
	}
	run(t, kerneltest.Options{Programs: map[string]kernel.Program{"parent": parent}}, "parent")
	if diff := cmp.Diff([]int32{14, 13, 12, 11, 10}, got); diff != "" {
		t.Errorf("Wait results mismatch (-want +got):\n%s", diff)
	}
}

func TestExecLoadFailure(t *testing.T) {
	var got []kernel.ThreadID
	parent := func(cpu kernel.CPU) int32 {
		task := cpu.(*kernel.Task)
		got = append(got,
			// No image file.
			task.Exec("no-such-file"),
			// An image file without a registered program.
			task.Exec("orphan"),
			// A successful exec still works afterward.
			task.Exec("child 0"),
		)
		task.Wait(got[2])
		return 0
	}
	h, _ := run(t, kerneltest.Options{
		Programs: map[string]kernel.Program{"parent": parent},
		Files:    map[string]string{"orphan": "not a program"},
	}, "parent")
	if len(got) != 3 || got[0] != -1 || got[1] != -1 || got[2] <= 0 {
		t.Errorf("Exec results = %v, want [-1 -1 <tid>]", got)
	}
	// Children that fail to load still exit with -1.
	for _, line := range []string{"no-such-file: exit(-1)\n", "orphan: exit(-1)\n", "child: exit(0)\n"} {
		if !strings.Contains(h.Output(), line) {
			t.Errorf("console %q does not contain %q", h.Output(), line)
		}
	}
}

func TestExecReturnsAfterLoad(t *testing.T) {
	// The child races its parent on every run; repeat to give the race a
	// chance to show.
	const runs = 100
	harnesses := make([]*kerneltest.Harness, runs)
	loaded := make([]bool, runs)
	for i := range harnesses {
		i := i
		parent := func(cpu kernel.CPU) int32 {
			task := cpu.(*kernel.Task)
			tid := task.Exec("child 1")
			// Exec only returns once the child has loaded: its stack is
			// resident.
			child := task.Kernel().TaskWithID(tid)
			loaded[i] = child == nil || child.MemoryManager().ResidentPages() > 0
			task.Wait(tid)
			return 0
		}
		harnesses[i] = kerneltest.New(t, kerneltest.Options{
			Pages:    64,
			Programs: map[string]kernel.Program{"parent": parent},
		})
	}

	var g errgroup.Group
	g.SetLimit(8)
	for i, h := range harnesses {
		i, h := i, h
		g.Go(func() error {
			status, err := h.Run("parent")
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			if status != 0 {
				return fmt.Errorf("run %d: status %d, want 0", i, status)
			}
			if !loaded[i] {
				return fmt.Errorf("run %d: Exec returned before the child's image was loaded", i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Error(err)
	}
}

func TestHalt(t *testing.T) {
	h, status := run(t, kerneltest.Options{}, "halt")
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if !h.Kernel.IsStopped() {
		t.Errorf("kernel still running after halt")
	}
	if got := h.Output(); got != "" {
		t.Errorf("console = %q, want nothing", got)
	}
}

func TestOutOfFramesPanics(t *testing.T) {
	h := kerneltest.New(t, kerneltest.Options{Pages: 4})
	_, err := h.Run("stack-grow 65536")
	if !errors.Is(err, kernel.ErrPanic) {
		t.Fatalf("Run: got err %v, want %v", err, kernel.ErrPanic)
	}
}

func TestUnknownSyscallLeavesResult(t *testing.T) {
	var got []int32
	prog := func(cpu kernel.CPU) int32 {
		got = append(got, ulib.Filesize(cpu, 99))
		got = append(got, ulib.Syscall(cpu, 99, ulib.None, ulib.None, ulib.None))
		return 0
	}
	run(t, kerneltest.Options{Programs: map[string]kernel.Program{"prog": prog}}, "prog")
	if diff := cmp.Diff([]int32{-1, -1}, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestArgs(t *testing.T) {
	var got []string
	prog := ulib.Main(func(cpu kernel.CPU, args []string) int32 {
		got = args
		return int32(len(args))
	})
	_, status := run(t, kerneltest.Options{Programs: map[string]kernel.Program{"prog": prog}}, "prog  one two   three")
	if diff := cmp.Diff([]string{"prog", "one", "two", "three"}, got); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if status != 4 {
		t.Errorf("status = %d, want 4", status)
	}
}

func TestArgsTooLong(t *testing.T) {
	h := kerneltest.New(t, kerneltest.Options{})
	status, err := h.Run("echo " + strings.Repeat("x ", 600))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != -1 {
		t.Errorf("status = %d, want -1", status)
	}
}

func TestNextID(t *testing.T) {
	h := kerneltest.New(t, kerneltest.Options{})
	for want := int32(2); want < 10; want++ {
		if got := h.Kernel.NextID(); got != want {
			t.Fatalf("NextID() = %d, want %d", got, want)
		}
	}
}
