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

// Package config provides basic infrastructure to set configuration settings
// for vmsim. Each setting that can be changed from the command line must be
// added to the Config struct with a `flag` tag and registered in
// RegisterFlags. The same names are the keys of the TOML configuration file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mohae/deepcopy"

	"gvisor.dev/vmcore/pkg/hostarch"
	"gvisor.dev/vmcore/pkg/log"
	"gvisor.dev/vmcore/pkg/sentry/mm"
)

// Config holds configuration that is not part of the command line of the
// program being run.
type Config struct {
	// ConfigFile is a TOML file with default values for every other flag.
	// Flags given on the command line take precedence.
	ConfigFile string `flag:"config"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// LogFilename is the filename to log to, if not empty. The variables
	// %TIMESTAMP% and %COMMAND% are replaced.
	LogFilename string `flag:"log"`

	// LogFormat is the log format, "text" or "json".
	LogFormat string `flag:"log-format"`

	// AlsoLogToStderr allows to send log messages to stderr.
	AlsoLogToStderr bool `flag:"alsologtostderr"`

	// Pages is the size of physical memory in pages.
	Pages uint64 `flag:"pages"`

	// PhysBase is the first kernel address; user space is below it.
	PhysBase uint64 `flag:"phys-base"`

	// StackGuardWords is the size of the stack-growth window below the
	// stack pointer, in machine words.
	StackGuardWords uint64 `flag:"stack-guard-words"`

	// MaxStackSize bounds stack growth, in bytes.
	MaxStackSize uint64 `flag:"max-stack-size"`

	// FSRoot is a host directory holding the filesystem. If empty, an
	// in-memory filesystem is used.
	FSRoot string `flag:"fs-root"`

	// FSLockTimeout is how long to wait for another process to release
	// FSRoot.
	FSLockTimeout time.Duration `flag:"fs-lock-timeout"`

	// FSCapacity bounds the in-memory filesystem, in bytes. Zero means
	// unbounded.
	FSCapacity int64 `flag:"fs-capacity"`
}

// Layout returns the address space layout described by c.
func (c *Config) Layout() mm.Layout {
	return mm.Layout{
		MaxAddr:         hostarch.Addr(c.PhysBase),
		StackGuardWords: c.StackGuardWords,
		MaxStackSize:    c.MaxStackSize,
	}
}

func (c *Config) validate() error {
	if c.Pages == 0 {
		return fmt.Errorf("--pages must be positive")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text' or 'json'", c.LogFormat)
	}
	if c.FSCapacity < 0 {
		return fmt.Errorf("--fs-capacity must not be negative: %d", c.FSCapacity)
	}
	if c.FSRoot != "" && c.FSCapacity != 0 {
		return fmt.Errorf("--fs-capacity only applies to the in-memory filesystem")
	}
	return c.Layout().Validate()
}

// Copy creates a deep copy of the config.
func (c *Config) Copy() *Config {
	return deepcopy.Copy(c).(*Config)
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config.Debug: %t", c.Debug)
	log.Infof("Config.LogFormat: %s", c.LogFormat)
	log.Infof("Config.Pages: %d (%d bytes)", c.Pages, c.Pages*hostarch.PageSize)
	log.Infof("Config.PhysBase: %#x", c.PhysBase)
	log.Infof("Config.StackGuardWords: %d", c.StackGuardWords)
	log.Infof("Config.MaxStackSize: %d", c.MaxStackSize)
	if c.FSRoot != "" {
		log.Infof("Config.FSRoot: %s (lock timeout %v)", c.FSRoot, c.FSLockTimeout)
	} else {
		log.Infof("Config.FSRoot: in memory, capacity %d", c.FSCapacity)
	}
	log.Infof("Config.Flags: %s", strings.Join(c.ToFlags(), " "))
}
