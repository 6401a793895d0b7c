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

// Package contexttest builds a test context.Context.
package contexttest

import (
	"testing"

	"gvisor.dev/vmcore/pkg/log"
	"gvisor.dev/vmcore/pkg/sentry/context"
)

// Context returns a Context that may be used in tests. Log output is routed
// to tb so it is only shown for failing or verbose tests.
func Context(tb testing.TB) context.Context {
	return context.WithLogger(&log.BasicLogger{
		Level:   log.Debug,
		Emitter: &log.TestEmitter{TestLogger: tb},
	})
}

// TaskContext returns a test Context that reports the given process ID and
// program name, as a running task's context would.
func TaskContext(tb testing.TB, tgid int32, name string) context.Context {
	ctx := context.WithValue(Context(tb), context.CtxThreadGroupID, tgid)
	return context.WithValue(ctx, context.CtxProcessName, name)
}
