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
	"fmt"
	"sort"
	"strings"

	"gvisor.dev/vmcore/pkg/abi/pintos"
	"gvisor.dev/vmcore/pkg/errors/linuxerr"
	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/sync"
)

// Loader builds the image of a new process.
type Loader interface {
	// Load sets up t's address space and registers for cmdline and returns
	// the program to run. It is called on t's task goroutine.
	Load(t *Task, cmdline string) (Program, error)
}

// ImageLoader loads programs whose image is a file in the kernel's
// filesystem and whose code is a Program registered under the same name.
//
// The image file is mapped read-only at hostarch.CodeBase and paged in on
// demand. One zero-filled stack page is mapped just below the top of user
// space and the command line arguments are pushed on it:
//
//	top  -> argument strings, NUL-terminated, last argument highest
//	        padding to a word boundary
//	        argv[argc] = 0
//	        argv[argc-1] ... argv[0]
//	        argv
//	        argc
//	sp   -> return address (0)
type ImageLoader struct {
	mu       sync.RWMutex
	programs map[string]Program
}

// NewImageLoader returns a loader with no programs.
func NewImageLoader() *ImageLoader {
	return &ImageLoader{programs: make(map[string]Program)}
}

// Register makes p the code of the image called name.
func (l *ImageLoader) Register(name string, p Program) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.programs[name]; ok {
		panic(fmt.Sprintf("program %q registered twice", name))
	}
	l.programs[name] = p
}

// Programs returns the registered program names in order.
func (l *ImageLoader) Programs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.programs))
	for name := range l.programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *ImageLoader) lookup(name string) (Program, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.programs[name]
	return p, ok
}

// Load implements Loader.Load.
func (l *ImageLoader) Load(t *Task, cmdline string) (Program, error) {
	args := strings.Fields(cmdline)
	if len(args) == 0 {
		return nil, linuxerr.ENOENT
	}
	f, err := t.k.fs.Open(t, args[0])
	if err != nil {
		return nil, err
	}
	prog, ok := l.lookup(args[0])
	size := f.Length()
	if !ok || size <= 0 {
		f.Close()
		return nil, linuxerr.ENOEXEC
	}
	end, ok := hostarch.Addr(size).RoundUp()
	if !ok {
		f.Close()
		return nil, linuxerr.ENOEXEC
	}
	zero := uint64(end) - uint64(size)
	if err := t.mm.AddFileSegment(t, f, hostarch.CodeBase, 0, uint64(size), zero, false); err != nil {
		f.Close()
		return nil, err
	}

	top := t.k.layout.MaxAddr
	if err := t.mm.MapZeroPage(t, top-hostarch.PageSize); err != nil {
		return nil, err
	}
	sp, err := pushArgs(t, top, args)
	if err != nil {
		return nil, err
	}
	t.regs.SP = sp
	t.Debugf("Loaded %q: %d byte image at %v, sp %v", args[0], size, hostarch.CodeBase, sp)
	return prog, nil
}

// argsSize returns the number of stack bytes pushArgs needs.
func argsSize(args []string) uint64 {
	var n uint64
	for _, arg := range args {
		n += uint64(len(arg)) + 1
	}
	n = (n + hostarch.WordSize - 1) &^ (hostarch.WordSize - 1)
	// argv[0..argc], argv, argc and the return address.
	n += uint64(len(args)+1+3) * hostarch.WordSize
	return n
}

// pushArgs lays args out below top and returns the new stack pointer.
func pushArgs(t *Task, top hostarch.Addr, args []string) (hostarch.Addr, error) {
	if argsSize(args) > pintos.StackArgsMax {
		return 0, linuxerr.E2BIG
	}
	sp := top
	ptrs := make([]hostarch.Addr, len(args))
	for i := len(args) - 1; i >= 0; i-- {
		b := append([]byte(args[i]), 0)
		sp -= hostarch.Addr(len(b))
		if _, err := t.mm.CopyOut(t, sp, b); err != nil {
			return 0, err
		}
		ptrs[i] = sp
	}
	sp &^= hostarch.WordSize - 1

	push := func(v uint32) error {
		sp -= hostarch.WordSize
		return t.mm.WriteWord(t, sp, v)
	}
	if err := push(0); err != nil {
		return 0, err
	}
	for i := len(ptrs) - 1; i >= 0; i-- {
		if err := push(uint32(ptrs[i])); err != nil {
			return 0, err
		}
	}
	argv := uint32(sp)
	for _, v := range []uint32{argv, uint32(len(args)), 0} {
		if err := push(v); err != nil {
			return 0, err
		}
	}
	return sp, nil
}
