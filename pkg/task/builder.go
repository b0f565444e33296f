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

	"taskrt.dev/taskrt/pkg/rt"
)

// Builder gives detailed control over a single spawn: linked/supervised/
// unlinked, a dedicated scheduler, an exit notification channel, and body
// wrappers (spec §6.1). A Builder spawns at most once; reusing one after
// its terminal method (Spawn, SpawnWith, SpawnListener,
// SpawnConversation, or TryWith) has run panics, matching the original
// runtime's single-use builders (it `fail`s on reuse rather than
// silently no-oping).
type Builder struct {
	linked     bool
	supervised bool
	notifyCh   chan ExitEvent
	sched      *rt.Scheduler
	wrap       func(func(context.Context)) func(context.Context)
	spawned    bool
}

// NewBuilder returns the default Builder: linked, on the ambient
// scheduler, with no lifecycle notification (spec §6.1 default_task_opts
// — "every task is linked to its parent by default").
func NewBuilder() *Builder {
	return &Builder{
		linked: true,
		wrap:   func(f func(context.Context)) func(context.Context) { return f },
	}
}

func (b *Builder) checkReuse() {
	if b.spawned {
		panic("taskrt: task builder reused after spawning")
	}
}

// Unlinked decouples the child's failure from the spawner's in both
// directions.
func (b *Builder) Unlinked() *Builder {
	b.checkReuse()
	b.linked, b.supervised = false, false
	return b
}

// Supervised links the child's failure unidirectionally: the spawner's
// failure kills the child, but not the reverse.
func (b *Builder) Supervised() *Builder {
	b.checkReuse()
	b.linked, b.supervised = false, true
	return b
}

// Linked links the child's and spawner's failures bidirectionally. This
// is the default.
func (b *Builder) Linked() *Builder {
	b.checkReuse()
	b.linked, b.supervised = true, false
	return b
}

// Sched requests a dedicated scheduler for the child, built from opts.
func (b *Builder) Sched(opts rt.SchedOpts) *Builder {
	b.checkReuse()
	b.sched = rt.NewScheduler(opts)
	return b
}

// NotifyChan requests that ch receive exactly one ExitEvent when the
// spawned task exits. Calling NotifyChan twice on the same Builder
// panics, matching the original's "Can't set multiple future_results for
// one task!".
func (b *Builder) NotifyChan(ch chan ExitEvent) *Builder {
	b.checkReuse()
	if b.notifyCh != nil {
		panic("taskrt: task builder already has a notify channel")
	}
	b.notifyCh = ch
	return b
}

// AddWrapper augments the task body with wrapper, composing with any
// wrapper already added (spec §6.1, "add_wrapper").
func (b *Builder) AddWrapper(wrapper func(func(context.Context)) func(context.Context)) *Builder {
	b.checkReuse()
	prev := b.wrap
	b.wrap = func(body func(context.Context)) func(context.Context) {
		return wrapper(prev(body))
	}
	return b
}

// FutureResult arranges for fn to be called, before the task spawns,
// with a function that blocks until the task's Result is known. The
// callback must not invoke the returned function itself — store it for
// later use instead (spec §6.1).
func (b *Builder) FutureResult(fn func(func() Result)) *Builder {
	ch := make(chan ExitEvent, 1)
	b.NotifyChan(ch)
	fn(func() Result {
		return (<-ch).Result
	})
	return b
}

// Spawn spawns the child task running body, consuming b.
func (b *Builder) Spawn(ctx context.Context, body func(context.Context)) *rt.Task {
	b.checkReuse()
	b.spawned = true
	return spawnRaw(ctx, spawnOpts{
		linked:     b.linked,
		supervised: b.supervised,
		notifyCh:   b.notifyCh,
		sched:      b.sched,
	}, b.wrap(body))
}

// SpawnWith transfers ownership of arg into the child task, consuming b.
func SpawnWith[A any](b *Builder, ctx context.Context, arg A, f func(context.Context, A)) *rt.Task {
	return b.Spawn(ctx, func(ctx context.Context) { f(ctx, arg) })
}

// SpawnListener spawns a child that receives a channel from the parent
// and returns the parent-side channel to send on it, consuming b (spec
// §6.1 "spawn_listener").
func SpawnListener[A any](b *Builder, ctx context.Context, f func(context.Context, <-chan A)) chan<- A {
	setup := make(chan chan A, 1)
	b.Spawn(ctx, func(ctx context.Context) {
		ch := make(chan A)
		setup <- ch
		f(ctx, ch)
	})
	return <-setup
}

// SpawnConversation spawns a child with a two-way channel pair to the
// parent, consuming b (spec §6.1 "spawn_conversation").
func SpawnConversation[A, B any](b *Builder, ctx context.Context, f func(context.Context, <-chan A, chan<- B)) (<-chan B, chan<- A) {
	toParent := make(chan B)
	toChild := SpawnListener[A](b, ctx, func(ctx context.Context, fromParent <-chan A) {
		f(ctx, fromParent, toParent)
	})
	return toParent, toChild
}

// TryWith runs f in a new task built from b and reports whether it
// completed without failing, consuming b. It is the structured-concurrency
// escape hatch for treating a child's failure as an ordinary return value
// instead of propagating it (spec §6.1 "try").
func TryWith[T any](b *Builder, ctx context.Context, f func(context.Context) T) (T, bool) {
	resultCh := make(chan T, 1)
	var wait func() Result
	b.FutureResult(func(w func() Result) { wait = w })
	b.Spawn(ctx, func(ctx context.Context) {
		resultCh <- f(ctx)
	})
	var zero T
	if wait() == Success {
		return <-resultCh, true
	}
	return zero, false
}
