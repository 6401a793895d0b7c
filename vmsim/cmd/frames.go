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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/vmcore/pkg/hostarch"
	sentrycontext "gvisor.dev/vmcore/pkg/sentry/context"
	"gvisor.dev/vmcore/pkg/sentry/frame"
	"gvisor.dev/vmcore/pkg/sentry/mm"
	"gvisor.dev/vmcore/vmsim/boot"
	"gvisor.dev/vmcore/vmsim/config"
)

// Frames implements subcommands.Command for the "frames" command.
type Frames struct {
	files fileFlags
}

// Name implements subcommands.Command.Name.
func (*Frames) Name() string {
	return "frames"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Frames) Synopsis() string {
	return "show physical memory and check a program for leaked frames"
}

// Usage implements subcommands.Command.Usage.
func (*Frames) Usage() string {
	return `frames [flags] [<program> [args...]] - show the frame table of a freshly
booted machine. With a program, run it with its output discarded and show the
frame table again: every frame must have been returned.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (fr *Frames) SetFlags(f *flag.FlagSet) {
	f.Var(&fr.files, "file", "name=path: copy the host file at path into the filesystem as name. May be repeated.")
}

// Execute implements subcommands.Command.Execute.
func (fr *Frames) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)

	ctx := sentrycontext.Background()
	m, err := boot.New(ctx, boot.Args{
		Config: conf,
		Stdout: io.Discard,
		Files:  fr.files,
	})
	if err != nil {
		Fatalf("booting: %v", err)
	}
	defer m.Destroy()

	writeLayout(os.Stdout, conf.Layout())
	writeStats(os.Stdout, "at boot", m.Kernel.Frames().Stats())
	if f.NArg() == 0 {
		return subcommands.ExitSuccess
	}

	cmdline := strings.Join(f.Args(), " ")
	status, err := m.Run(ctx, cmdline)
	if err != nil {
		fmt.Printf("%q: %v\n", cmdline, err)
		return subcommands.ExitFailure
	}
	s := m.Kernel.Frames().Stats()
	writeStats(os.Stdout, fmt.Sprintf("after %q exited with %d", cmdline, status), s)
	if s.Allocated != 0 {
		fmt.Printf("LEAK: %d frames still allocated\n", s.Allocated)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func writeLayout(w io.Writer, l mm.Layout) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "code\t%v\n", hostarch.CodeBase)
	fmt.Fprintf(tw, "stack limit\t%v\n", l.StackBase())
	fmt.Fprintf(tw, "kernel base\t%v\n", l.MaxAddr)
	fmt.Fprintf(tw, "stack growth window\t%d bytes\n", l.StackGuardBytes())
	tw.Flush()
}

func writeStats(w io.Writer, when string, s frame.Stats) {
	fmt.Fprintf(w, "\nframes %s:\n", when)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "total\t%d\n", s.Total)
	fmt.Fprintf(tw, "free\t%d\n", s.Free)
	fmt.Fprintf(tw, "allocated\t%d\n", s.Allocated)
	fmt.Fprintf(tw, "mapped\t%d\n", s.Bound)
	tw.Flush()
}
