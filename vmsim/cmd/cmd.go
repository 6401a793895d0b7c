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

// Package cmd holds implementations of the vmsim commands.
package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gvisor.dev/vmcore/pkg/log"
)

// Fatalf logs the same message to the log and to stderr, and exits with a
// status that a simulated program cannot produce.
func Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warningf("FATAL ERROR: %s", msg)
	fmt.Fprintf(os.Stderr, "vmsim: %s\n", msg)
	os.Exit(128)
}

// fileFlags can be used with name=path flags that appear multiple times.
type fileFlags map[string]string

// String implements flag.Value.
func (f *fileFlags) String() string {
	names := make([]string, 0, len(*f))
	for name := range *f {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+(*f)[name])
	}
	return strings.Join(pairs, ",")
}

// Get implements flag.Getter.
func (f *fileFlags) Get() any {
	return *f
}

// Set implements flag.Value.
func (f *fileFlags) Set(s string) error {
	name, path, ok := strings.Cut(s, "=")
	if !ok || name == "" || path == "" {
		return fmt.Errorf("invalid file %q, want name=path", s)
	}
	if _, ok := (*f)[name]; ok {
		return fmt.Errorf("file %q given twice", name)
	}
	if *f == nil {
		*f = make(fileFlags)
	}
	(*f)[name] = path
	return nil
}
