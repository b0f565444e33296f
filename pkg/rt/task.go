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

package rt

import (
	"context"
	"fmt"
	"sync/atomic"

	"gvisor.dev/gvisor/pkg/log"
	"gvisor.dev/gvisor/pkg/sync"
)

// Task is an opaque reference to a runtime-managed unit of concurrent
// execution. Equality is pointer equality; Tasks are never cloned.
//
// Task plays the role the spec calls "Primitive task handle" (component A):
// everything above pkg/rt reaches a Task only through Start, Yield, Kill,
// InhibitKill/AllowKill, InhibitYield/AllowYield, Failing, Done,
// RegisterAtExit, and the void pointer slot (Local/SetLocal).
type Task struct {
	// id is a debug-only sequence number; it plays no part in identity.
	id uint64

	// interrupt carries a pending kill signal. Buffered 1: multiple kills
	// collapse into a single pending interrupt, matching the primitive
	// runtime's "a kill signal sets a flag" semantics (spec §5).
	interrupt chan struct{}

	// unwinding is set the moment this task starts failing (spec §6.3's
	// failing()). It is readable from anywhere, including concurrently by
	// a killer deciding whether a target is already unwinding.
	unwinding atomic.Bool

	// killInhibit and yieldInhibit are reference counts for the
	// non-killable/atomic critical sections (spec §4.6). Both must reach
	// zero on every exit path, success or panic.
	killInhibit  atomic.Int32
	yieldInhibit atomic.Int32

	// deferredKill records that a Kill() arrived while killInhibit > 0; it
	// is delivered as soon as the count returns to zero.
	deferredKill atomic.Bool

	// mu guards local and atExit, which are both mutated from the task's
	// own goroutine only (TLS construction, at-exit registration) but may
	// be read by diagnostics from elsewhere.
	mu     sync.Mutex
	local  any
	atExit []func()

	done chan struct{}
}

var taskIDs atomic.Uint64

// New creates a task handle. The caller must call Start exactly once.
func New() *Task {
	t := &Task{
		id:        taskIDs.Add(1),
		interrupt: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	register(t)
	return t
}

// ID returns a debug-only identifier; never use it for equality.
func (t *Task) ID() uint64 { return t.id }

func (t *Task) String() string { return fmt.Sprintf("task<%d>", t.id) }

// Start runs body on a new goroutine backing t. Start must be called
// exactly once per Task returned by New.
//
// A failure is signalled by body calling t.Fail (directly, or indirectly
// via Yield observing a pending kill). Start recovers it, marks the task
// unwinding, and runs registered at-exit hooks before returning; the
// failure never escapes to the goroutine's top level as an actual panic,
// mirroring the primitive runtime's contract that task failure is
// contained ("teardown must not fail").
func (t *Task) Start(body func(*Task)) {
	go t.run(body)
}

func (t *Task) run(body func(*Task)) {
	defer close(t.done)
	defer unregister(t)
	defer t.runAtExit()
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(failSignal); ok {
				t.unwinding.Store(true)
				return
			}
			// An unexpected panic is still a task failure, but it's also
			// a bug in user code; log it before containing it so it isn't
			// silently swallowed.
			t.unwinding.Store(true)
			log.Warningf("%v: recovered unexpected panic: %v", t, r)
		}
	}()
	body(t)
}

// failSignal is the sentinel panic value used to unwind a failing task.
type failSignal struct{}

// Fail marks t as failing and unwinds its goroutine via panic. Fail does
// not return.
func (t *Task) Fail() {
	t.unwinding.Store(true)
	panic(failSignal{})
}

// Failing reports whether t has begun failing.
func (t *Task) Failing() bool { return t.unwinding.Load() }

// Done is closed once t's body (and at-exit hooks) have finished running.
func (t *Task) Done() <-chan struct{} { return t.done }

// Local returns the task's single void-pointer slot (spec §6.4), used by
// pkg/task's TLS map to store itself lazily.
func (t *Task) Local() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.local
}

// SetLocal sets the task's void-pointer slot.
func (t *Task) SetLocal(v any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.local = v
}

// RegisterAtExit registers f to run when the task exits, regardless of
// success or failure. Hooks run in the order registered, after the body
// returns/unwinds and before Done closes.
func (t *Task) RegisterAtExit(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.atExit = append(t.atExit, f)
}

func (t *Task) runAtExit() {
	t.mu.Lock()
	hooks := t.atExit
	t.atExit = nil
	t.mu.Unlock()
	for _, f := range hooks {
		f()
	}
}

// taskContextKey is the stdlib context.Context key under which the
// ambient current Task is carried. Go has no goroutine-local storage, so
// unlike the original runtime's implicit rust_get_task(), callers must
// thread ctx through their call chain; this mirrors how gVisor's own
// kernel.Task is retrieved via kernel.TaskFromContext(ctx) rather than a
// hidden global.
type taskContextKey struct{}

// WithTask returns a context carrying t as the ambient current task.
func WithTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, taskContextKey{}, t)
}

// FromContext returns the ambient current task carried by ctx, if any.
func FromContext(ctx context.Context) (*Task, bool) {
	t, ok := ctx.Value(taskContextKey{}).(*Task)
	return t, ok
}
