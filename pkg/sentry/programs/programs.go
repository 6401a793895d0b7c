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

// Package programs contains the built-in user programs and installs their
// images.
package programs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gvisor.dev/vmcore/pkg/abi/pintos"
	"gvisor.dev/vmcore/pkg/errors/linuxerr"
	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/sentry/arch"
	"gvisor.dev/vmcore/pkg/sentry/context"
	"gvisor.dev/vmcore/pkg/sentry/fs"
	"gvisor.dev/vmcore/pkg/sentry/kernel"
	"gvisor.dev/vmcore/pkg/sentry/ulib"
)

// MapBase is where the mmap programs map their file.
const MapBase hostarch.Addr = 0x10000000

// Info describes a built-in program.
type Info struct {
	// Name is the program and image file name.
	Name string

	// Usage is a one-line usage string.
	Usage string

	// Program is the program's code.
	Program kernel.Program
}

var all = []Info{
	{"echo", "echo [args...]: print the arguments", ulib.Main(echo)},
	{"cat", "cat file: print a file", ulib.Main(cat)},
	{"cp", "cp src dst: copy src to a new file dst", ulib.Main(cp)},
	{"mmap-cat", "mmap-cat file: print a file through a mapping", ulib.Main(mmapCat)},
	{"mmap-write", "mmap-write file text: write text at the start of a file through a mapping", ulib.Main(mmapWrite)},
	{"stack-grow", "stack-grow bytes: use that much stack", ulib.Main(stackGrow)},
	{"bad-ptr", "bad-ptr null|kernel|code|buffer|frame|name: make an illegal access", ulib.Main(badPtr)},
	{"exec-missing", "exec-missing: exec a program that does not exist", ulib.Main(execMissing)},
	{"spawn-wait", "spawn-wait cmdline...: run a child and wait for it twice", ulib.Main(spawnWait)},
	{"child", "child status: exit with the given status", ulib.Main(child)},
	{"halt", "halt: power off", ulib.Main(halt)},
}

// All returns every built-in program, ordered by name.
func All() []Info {
	infos := append([]Info(nil), all...)
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Lookup returns the built-in program called name.
func Lookup(name string) (Info, bool) {
	for _, info := range all {
		if info.Name == name {
			return info, true
		}
	}
	return Info{}, false
}

// Image returns the executable image of the named program. Images carry no
// code; they only give the loader something to map.
func Image(name string) []byte {
	return []byte(fmt.Sprintf("\x7fPEX %s\n", name))
}

// Install registers every built-in program with l and creates its image in
// fsys. Existing image files are left alone.
func Install(ctx context.Context, fsys fs.Filesystem, l *kernel.ImageLoader) error {
	for _, info := range all {
		l.Register(info.Name, info.Program)
		if err := installImage(ctx, fsys, info.Name); err != nil {
			return fmt.Errorf("installing %q: %w", info.Name, err)
		}
	}
	return nil
}

func installImage(ctx context.Context, fsys fs.Filesystem, name string) error {
	img := Image(name)
	if err := fsys.Create(ctx, name, int64(len(img))); err != nil {
		if linuxerr.Equals(linuxerr.EEXIST, err) {
			return nil
		}
		return err
	}
	f, err := fsys.Open(ctx, name)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteAt(img, 0)
	return err
}

func printf(cpu kernel.CPU, format string, v ...any) {
	ulib.Print(cpu, fmt.Sprintf(format, v...))
}

func echo(cpu kernel.CPU, args []string) int32 {
	printf(cpu, "%s\n", strings.Join(args[1:], " "))
	return 0
}

func cat(cpu kernel.CPU, args []string) int32 {
	if len(args) != 2 {
		printf(cpu, "usage: cat file\n")
		return 1
	}
	fd := ulib.Open(cpu, args[1])
	if fd < 0 {
		printf(cpu, "cat: cannot open %s\n", args[1])
		return 1
	}
	size := ulib.Filesize(cpu, fd)
	saved := cpu.SP()
	buf := ulib.Alloca(cpu, uint64(size))
	n := ulib.Read(cpu, fd, buf, uint32(size))
	ulib.Write(cpu, pintos.STDOUT_FILENO, buf, uint32(n))
	cpu.SetSP(saved)
	ulib.Close(cpu, fd)
	return 0
}

func cp(cpu kernel.CPU, args []string) int32 {
	if len(args) != 3 {
		printf(cpu, "usage: cp src dst\n")
		return 1
	}
	src := ulib.Open(cpu, args[1])
	if src < 0 {
		printf(cpu, "cp: cannot open %s\n", args[1])
		return 1
	}
	size := ulib.Filesize(cpu, src)
	if !ulib.Create(cpu, args[2], uint32(size)) {
		printf(cpu, "cp: cannot create %s\n", args[2])
		return 1
	}
	dst := ulib.Open(cpu, args[2])
	saved := cpu.SP()
	buf := ulib.Alloca(cpu, uint64(size))
	n := ulib.Read(cpu, src, buf, uint32(size))
	if w := ulib.Write(cpu, dst, buf, uint32(n)); w != n {
		printf(cpu, "cp: short write: %d of %d bytes\n", w, n)
		return 1
	}
	cpu.SetSP(saved)
	ulib.Close(cpu, src)
	ulib.Close(cpu, dst)
	return 0
}

func mmapCat(cpu kernel.CPU, args []string) int32 {
	if len(args) != 2 {
		printf(cpu, "usage: mmap-cat file\n")
		return 1
	}
	fd := ulib.Open(cpu, args[1])
	if fd < 0 {
		printf(cpu, "mmap-cat: cannot open %s\n", args[1])
		return 1
	}
	id := ulib.Mmap(cpu, fd, MapBase)
	if id == pintos.MapFailed {
		printf(cpu, "mmap-cat: mmap failed\n")
		return 1
	}
	ulib.Write(cpu, pintos.STDOUT_FILENO, MapBase, uint32(ulib.Filesize(cpu, fd)))
	ulib.Munmap(cpu, id)
	ulib.Close(cpu, fd)
	return 0
}

func mmapWrite(cpu kernel.CPU, args []string) int32 {
	if len(args) != 3 {
		printf(cpu, "usage: mmap-write file text\n")
		return 1
	}
	fd := ulib.Open(cpu, args[1])
	if fd < 0 {
		printf(cpu, "mmap-write: cannot open %s\n", args[1])
		return 1
	}
	id := ulib.Mmap(cpu, fd, MapBase)
	ulib.Close(cpu, fd)
	if id == pintos.MapFailed {
		printf(cpu, "mmap-write: mmap failed\n")
		return 1
	}
	cpu.Store(MapBase, []byte(args[2]))
	ulib.Munmap(cpu, id)
	return 0
}

func stackGrow(cpu kernel.CPU, args []string) int32 {
	n := uint64(hostarch.PageSize)
	if len(args) > 1 {
		v, err := strconv.ParseUint(args[1], 0, 32)
		if err != nil {
			printf(cpu, "stack-grow: bad size %q\n", args[1])
			return 1
		}
		n = v
	}
	if n < hostarch.WordSize {
		n = hostarch.WordSize
	}
	saved := cpu.SP()
	buf := ulib.Alloca(cpu, n)
	// Touch pages from the top down, as a growing stack would.
	for off := (n - hostarch.WordSize) &^ (hostarch.PageSize - 1); ; off -= hostarch.PageSize {
		ulib.StoreWord(cpu, buf+hostarch.Addr(off), uint32(off))
		if off == 0 {
			break
		}
	}
	var sum uint64
	for off := uint64(0); off < n; off += hostarch.PageSize {
		sum += uint64(ulib.LoadWord(cpu, buf+hostarch.Addr(off)))
	}
	cpu.SetSP(saved)
	printf(cpu, "stack-grow: %d bytes ok (checksum %d)\n", n, sum)
	return 0
}

func badPtr(cpu kernel.CPU, args []string) int32 {
	if len(args) != 2 {
		printf(cpu, "usage: bad-ptr null|kernel|code|buffer|frame|name\n")
		return 1
	}
	var none arch.SyscallArgument
	switch args[1] {
	case "null":
		ulib.LoadWord(cpu, 0)
	case "kernel":
		ulib.LoadWord(cpu, hostarch.DefaultPhysBase)
	case "code":
		ulib.StoreWord(cpu, hostarch.CodeBase, 0)
	case "buffer":
		ulib.Syscall(cpu, pintos.SYS_WRITE, arch.IntArg(pintos.STDOUT_FILENO), arch.PointerArg(0x20000000), arch.IntArg(16))
	case "frame":
		cpu.SetSP(hostarch.DefaultPhysBase - hostarch.WordSize)
		cpu.Trap()
	case "name":
		ulib.Syscall(cpu, pintos.SYS_OPEN, arch.PointerArg(0x20000000), none, none)
	default:
		printf(cpu, "bad-ptr: unknown access %q\n", args[1])
		return 1
	}
	printf(cpu, "bad-ptr: survived %s\n", args[1])
	return 0
}

func execMissing(cpu kernel.CPU, args []string) int32 {
	tid := ulib.Exec(cpu, "no-such-file")
	printf(cpu, "exec(\"no-such-file\"): %d\n", tid)
	return 0
}

func spawnWait(cpu kernel.CPU, args []string) int32 {
	cmdline := "child 81"
	if len(args) > 1 {
		cmdline = strings.Join(args[1:], " ")
	}
	tid := ulib.Exec(cpu, cmdline)
	if tid < 0 {
		printf(cpu, "spawn-wait: exec(%q) failed\n", cmdline)
		return 1
	}
	printf(cpu, "spawn-wait: wait(exec()) = %d\n", ulib.Wait(cpu, tid))
	printf(cpu, "spawn-wait: wait again = %d\n", ulib.Wait(cpu, tid))
	return 0
}

func child(cpu kernel.CPU, args []string) int32 {
	if len(args) < 2 {
		return 0
	}
	v, err := strconv.ParseInt(args[1], 0, 32)
	if err != nil {
		return -1
	}
	return int32(v)
}

func halt(cpu kernel.CPU, args []string) int32 {
	ulib.Halt(cpu)
	printf(cpu, "halt: still running\n")
	return 1
}
