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
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
	"gvisor.dev/vmcore/pkg/log"
	sentrycontext "gvisor.dev/vmcore/pkg/sentry/context"
	"gvisor.dev/vmcore/vmsim/boot"
	"gvisor.dev/vmcore/vmsim/config"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	files fileFlags
	stdin string
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "boot a machine and run a program as its initial process"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags] <program> [args...] - boot a machine and run a program.

The machine powers off when the program exits, and vmsim exits with the
program's exit status.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.Var(&r.files, "file", "name=path: copy the host file at path into the filesystem as name. May be repeated.")
	f.StringVar(&r.stdin, "stdin", "", "host file to use as console input instead of standard input.")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	status := args[1].(*int32)

	var stdin io.Reader = os.Stdin
	if r.stdin != "" {
		in, err := os.Open(r.stdin)
		if err != nil {
			Fatalf("opening console input: %v", err)
		}
		defer in.Close()
		stdin = in
	}

	ctx := sentrycontext.Background()
	m, err := boot.New(ctx, boot.Args{
		Config: conf,
		Stdout: os.Stdout,
		Stdin:  stdin,
		Files:  r.files,
	})
	if err != nil {
		Fatalf("booting: %v", err)
	}
	defer m.Destroy()

	st, err := m.Run(ctx, strings.Join(f.Args(), " "))
	if err != nil {
		log.Warningf("Run failed: %v", err)
		return subcommands.ExitFailure
	}
	*status = st
	return subcommands.ExitSuccess
}
