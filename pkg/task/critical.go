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

package task

import (
	"context"
	"fmt"

	"taskrt.dev/taskrt/pkg/rt"
)

func currentFrom(ctx context.Context) *rt.Task {
	t, ok := rt.FromContext(ctx)
	if !ok {
		panic("taskrt: no current task in context")
	}
	return t
}

// NonKillable runs f with the calling task's kill signal deferred: a
// concurrent Kill during f only takes effect once f returns (spec §4.6,
// "non_killable"). Use this to protect a sequence of operations that must
// not be left half-done by an asynchronous kill, e.g. releasing a lock
// acquired just before a blocking call.
func NonKillable(ctx context.Context, f func()) {
	t := currentFrom(ctx)
	t.InhibitKill()
	defer t.AllowKill()
	f()
}

// ReKillable runs f with the calling task's kill signal re-enabled,
// nested inside an enclosing NonKillable section (spec §4.6,
// "re_killable"). Calling it outside a NonKillable section is a
// contract violation the caller must not make; ReKillable does not
// detect it (the original runtime documents the same precondition:
// "only ever to be used nested in unkillable()").
func ReKillable(ctx context.Context, f func()) {
	t := currentFrom(ctx)
	t.AllowKill()
	defer t.InhibitKill()
	f()
}

// Atomic runs f with both the calling task's kill signal and yielding
// inhibited (spec §4.6, "atomic"): a stronger NonKillable for code that
// must not be interrupted or rescheduled at all, such as manipulating a
// lock shared with code outside the task runtime's cooperative
// scheduling.
func Atomic(ctx context.Context, f func()) {
	t := currentFrom(ctx)
	t.InhibitKill()
	t.InhibitYield()
	defer t.AllowYield()
	defer t.AllowKill()
	f()
}

// Failing reports whether the calling task is currently unwinding.
func Failing(ctx context.Context) bool {
	return currentFrom(ctx).Failing()
}

// Yield yields to other tasks, failing the caller if it has been killed
// and is not already in a non-killable section (spec §6.2).
func Yield(ctx context.Context) {
	currentFrom(ctx).Yield()
}

// Fail unwinds the calling task, tearing down its taskgroup (spec §4.4).
func Fail(ctx context.Context) {
	currentFrom(ctx).Fail()
}

// Current returns a human-readable handle to the calling task, mirroring
// the original runtime's get_task().
func Current(ctx context.Context) fmt.Stringer {
	return currentFrom(ctx)
}
