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

package config

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/vmcore/pkg/log"
	"gvisor.dev/vmcore/pkg/sentry/mm"
)

func newFlagSet() *flag.FlagSet {
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	return testFlags
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vmsim.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlagSet())
	if err != nil {
		t.Fatal(err)
	}
	// All defaults doesn't require setting flags.
	if flags := c.ToFlags(); len(flags) > 0 {
		t.Errorf("default flags not set correctly for: %s", flags)
	}
	if diff := cmp.Diff(mm.DefaultLayout(), c.Layout()); diff != "" {
		t.Errorf("Layout() mismatch (-want +got):\n%s", diff)
	}
}

func TestFromFlags(t *testing.T) {
	testFlags := newFlagSet()
	for name, value := range map[string]string{
		"debug":           "true",
		"pages":           "64",
		"fs-lock-timeout": "1m",
		"log-format":      "json",
	} {
		if err := testFlags.Set(name, value); err != nil {
			t.Fatalf("Set(%q, %q): %v", name, value, err)
		}
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Debug {
		t.Errorf("Debug=false, want: true")
	}
	if want := uint64(64); c.Pages != want {
		t.Errorf("Pages=%v, want: %v", c.Pages, want)
	}
	if want := time.Minute; c.FSLockTimeout != want {
		t.Errorf("FSLockTimeout=%v, want: %v", c.FSLockTimeout, want)
	}
	if want := "json"; c.LogFormat != want {
		t.Errorf("LogFormat=%v, want: %v", c.LogFormat, want)
	}
}

func TestToFlagsFromFlags(t *testing.T) {
	testFlags := newFlagSet()
	testFlags.Set("debug", "true")
	testFlags.Set("pages", "64")
	testFlags.Set("max-stack-size", "65536")
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"--debug=true", "--pages=64", "--max-stack-size=65536"}
	if diff := cmp.Diff(want, c.ToFlags()); diff != "" {
		t.Errorf("ToFlags() mismatch (-want +got):\n%s", diff)
	}
}

func TestValidationFail(t *testing.T) {
	for _, test := range []struct {
		name  string
		flags map[string]string
		error string
	}{
		{
			name:  "no memory",
			flags: map[string]string{"pages": "0"},
			error: "--pages",
		},
		{
			name:  "log format",
			flags: map[string]string{"log-format": "xml"},
			error: "invalid log format",
		},
		{
			name:  "unaligned stack size",
			flags: map[string]string{"max-stack-size": "1000"},
			error: "maximum stack size",
		},
		{
			name:  "unaligned phys base",
			flags: map[string]string{"phys-base": "12345"},
			error: "user address limit",
		},
		{
			name:  "capacity with host root",
			flags: map[string]string{"fs-root": "/tmp", "fs-capacity": "100"},
			error: "--fs-capacity",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			testFlags := newFlagSet()
			for name, val := range test.flags {
				if err := testFlags.Set(name, val); err != nil {
					t.Fatalf("Set(%q, %q): %v", name, val, err)
				}
			}
			if _, err := NewFromFlags(testFlags); err == nil || !strings.Contains(err.Error(), test.error) {
				t.Errorf("NewFromFlags() wrong error, want: %q, got: %v", test.error, err)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	path := writeConfig(t, `
debug = true
pages = 128
log-format = "json"
fs-lock-timeout = "250ms"
`)
	testFlags := newFlagSet()
	testFlags.Set("config", path)
	// The command line wins over the file.
	testFlags.Set("pages", "32")
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Debug {
		t.Errorf("Debug=false, want: true")
	}
	if want := uint64(32); c.Pages != want {
		t.Errorf("Pages=%v, want: %v", c.Pages, want)
	}
	if want := "json"; c.LogFormat != want {
		t.Errorf("LogFormat=%v, want: %v", c.LogFormat, want)
	}
	if want := 250 * time.Millisecond; c.FSLockTimeout != want {
		t.Errorf("FSLockTimeout=%v, want: %v", c.FSLockTimeout, want)
	}
}

func TestConfigFileErrors(t *testing.T) {
	for _, test := range []struct {
		name     string
		contents string
		error    string
	}{
		{
			name:     "unknown setting",
			contents: `frobnicate = 1`,
			error:    `unknown setting "frobnicate"`,
		},
		{
			name:     "nested config",
			contents: `config = "other.toml"`,
			error:    `unknown setting "config"`,
		},
		{
			name:     "table",
			contents: "[pages]\nvalue = 3",
			error:    "must be a scalar",
		},
		{
			name:     "bad value",
			contents: `pages = "many"`,
			error:    "error setting pages",
		},
		{
			name:     "syntax",
			contents: `pages = `,
			error:    "error reading config file",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			testFlags := newFlagSet()
			testFlags.Set("config", writeConfig(t, test.contents))
			if _, err := NewFromFlags(testFlags); err == nil || !strings.Contains(err.Error(), test.error) {
				t.Errorf("NewFromFlags() wrong error, want: %q, got: %v", test.error, err)
			}
		})
	}
}

func TestCopy(t *testing.T) {
	c, err := NewFromFlags(newFlagSet())
	if err != nil {
		t.Fatal(err)
	}
	c.FSRoot = "/some/dir"
	cp := c.Copy()
	if diff := cmp.Diff(c, cp); diff != "" {
		t.Errorf("Copy() mismatch (-want +got):\n%s", diff)
	}
	cp.Pages = 1
	if c.Pages == 1 {
		t.Errorf("modifying the copy changed the original")
	}
}

func TestLogIncludesFlags(t *testing.T) {
	var buf bytes.Buffer
	old := log.Log()
	oldLevel := old.Level
	log.SetTarget(&log.Writer{Next: &buf})
	log.SetLevel(log.Info)
	t.Cleanup(func() {
		log.SetTarget(old.Emitter)
		log.SetLevel(oldLevel)
	})

	testFlags := newFlagSet()
	testFlags.Set("pages", "64")
	testFlags.Set("debug", "true")
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	c.Log()
	if want := "Config.Flags: --debug=true --pages=64\n"; !strings.Contains(buf.String(), want) {
		t.Errorf("Log() output missing %q:\n%s", want, buf.String())
	}
}
