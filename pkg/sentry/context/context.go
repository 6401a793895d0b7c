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

// Package context defines the sentry's Context type.
package context

import (
	"context"
	"time"

	"gvisor.dev/vmcore/pkg/log"
)

type contextID int

// Globally accessible values from a context. These keys are defined in the
// context package to resolve dependency cycles by not requiring the caller to
// import packages usually required to get these information.
const (
	// CtxThreadGroupID is the current process ID when a context represents
	// a task context. The value is represented as an int32.
	CtxThreadGroupID contextID = iota

	// CtxProcessName is the name of the running program when a context
	// represents a task context. The value is a string.
	CtxProcessName
)

// ThreadGroupIDFromContext returns the current process ID when ctx
// represents a task context.
func ThreadGroupIDFromContext(ctx Context) (tgid int32, ok bool) {
	if tgid := ctx.Value(CtxThreadGroupID); tgid != nil {
		return tgid.(int32), true
	}
	return 0, false
}

// ProcessNameFromContext returns the running program's name when ctx
// represents a task context.
func ProcessNameFromContext(ctx Context) string {
	if name, ok := ctx.Value(CtxProcessName).(string); ok {
		return name
	}
	return ""
}

// A Context represents a thread of execution. It carries state associated
// with the goroutine across API boundaries.
//
// Unlike a bare context.Context, it is not safe to use the same Context in
// multiple concurrent goroutines. Values extracted from the Context should be
// retained instead of the Context itself.
type Context interface {
	context.Context
	log.Logger
}

// logContext implements Context with an empty set of values.
type logContext struct {
	log.Logger
}

// Deadline implements context.Context.Deadline.
func (logContext) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

// Done implements context.Context.Done.
func (logContext) Done() <-chan struct{} {
	return nil
}

// Err implements context.Context.Err.
func (logContext) Err() error {
	return nil
}

// Value implements context.Context.Value.
func (logContext) Value(key any) any {
	return nil
}

// WithLogger returns an empty context that logs to l.
func WithLogger(l log.Logger) Context {
	return logContext{Logger: l}
}

// WithValue returns a copy of parent in which the value associated with key
// is val.
func WithValue(parent Context, key, val any) Context {
	return &withValue{Context: parent, key: key, val: val}
}

type withValue struct {
	Context
	key, val any
}

// Value implements context.Context.Value.
func (ctx *withValue) Value(key any) any {
	if key == ctx.key {
		return ctx.val
	}
	return ctx.Context.Value(key)
}

// Background returns an empty context using the default logger.
//
// Generally, one should use the Task as their context when available, or avoid
// having to use a context in places where a Task is unavailable.
//
// Using a Background context for tests is fine, as long as no values are
// needed from the context in the tested code paths.
func Background() Context {
	return logContext{Logger: log.Log()}
}
