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

package kernel

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"gvisor.dev/vmcore/pkg/sync"
)

// Console is the system console. Each write is atomic with respect to other
// writes, so lines printed by different processes never interleave.
type Console struct {
	outMu sync.Mutex
	out   io.Writer

	inMu sync.Mutex
	in   *bufio.Reader
}

// NewConsole returns a console writing to out and reading from in. Either
// may be nil.
func NewConsole(out io.Writer, in io.Reader) *Console {
	if out == nil {
		out = io.Discard
	}
	if in == nil {
		in = strings.NewReader("")
	}
	return &Console{out: out, in: bufio.NewReader(in)}
}

// Write implements io.Writer.Write.
func (c *Console) Write(p []byte) (int, error) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	return c.out.Write(p)
}

// Printf formats a message and writes it in one piece.
func (c *Console) Printf(format string, v ...any) {
	c.Write([]byte(fmt.Sprintf(format, v...)))
}

// ReadByte reads one byte of console input. It returns io.EOF once the
// input is exhausted.
func (c *Console) ReadByte() (byte, error) {
	c.inMu.Lock()
	defer c.inMu.Unlock()
	return c.in.ReadByte()
}
