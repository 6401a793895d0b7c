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
	"gvisor.dev/vmcore/pkg/sentry/arch"
)

const (
	maxTestSyscall = 100
)

func createSyscallTable() *SyscallTable {
	m := make(map[uintptr]Syscall)
	for i := uintptr(0); i <= maxTestSyscall; i++ {
		j := int32(i)
		m[i] = Syscall{
			Fn: func(*Task, arch.SyscallArguments) (int32, error) {
				return j, nil
			},
		}
	}
	return &SyscallTable{
		Name:  "test",
		Table: m,
	}
}

func TestTable(t *testing.T) {
	table := createSyscallTable()

	// Go through all functions and check that they return the right value.
	for i := uintptr(0); i < maxTestSyscall; i++ {
		fn := table.Lookup(i)
		if fn == nil {
			t.Errorf("Syscall %v is set to nil", i)
			continue
		}

		v, _ := fn(nil, arch.SyscallArguments{})
		if v != int32(i) {
			t.Errorf("Wrong return value for syscall %v: expected %v, got %v", i, i, v)
		}
	}

	// Check that values outside the range return nil.
	for i := uintptr(maxTestSyscall + 1); i < maxTestSyscall+100; i++ {
		fn := table.Lookup(i)
		if fn != nil {
			t.Errorf("Syscall %v is not nil", i)
			continue
		}
	}
}

func TestTableNumbers(t *testing.T) {
	table := &SyscallTable{
		Table: map[uintptr]Syscall{
			7: {Name: "seven"},
			1: {Name: "one"},
			3: {Name: "three"},
		},
	}
	if diff := cmp.Diff([]uintptr{1, 3, 7}, table.Numbers()); diff != "" {
		t.Errorf("Numbers() mismatch (-want +got):\n%s", diff)
	}
	if got, want := table.LookupName(3), "three"; got != want {
		t.Errorf("LookupName(3) = %q, want %q", got, want)
	}
	if got := table.LookupName(4); got != "" {
		t.Errorf("LookupName(4) = %q, want empty", got)
	}
}

func BenchmarkTableLookup(b *testing.B) {
	table := createSyscallTable()

	b.ResetTimer()

	j := uintptr(0)
	for i := 0; i < b.N; i++ {
		table.Lookup(j)
		j = (j + 1) % 310
	}
}
