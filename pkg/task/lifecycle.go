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

// Package task implements structured task supervision: spawn
// relationships (linked/supervised/unlinked), lifecycle notification,
// task-local storage and critical sections, layered over the minimal
// task/kill/yield primitives of pkg/rt and the taskgroup/ancestor-chain
// bookkeeping of pkg/group.
package task

import (
	"context"

	"taskrt.dev/taskrt/pkg/group"
	"taskrt.dev/taskrt/pkg/rt"
)

// Root starts the process's main task running body, and blocks until it
// (and by extension the whole supervision tree rooted at it) has exited.
// The main task is enlisted in its own taskgroup and marked is-main, so
// if it fails, every other task in the process is killed (spec §4.1).
// Root reports whether body completed without the main task failing.
//
// Every program using this package calls Root exactly once, from its own
// main function, and spawns everything else from the context it hands to
// body.
func Root(body func(ctx context.Context)) bool {
	main := rt.New()
	g := group.New()
	g.Enlist(main, true)
	newTCB(main, g, group.Chain{}, true, nil)

	main.Start(func(t *rt.Task) {
		body(rt.WithTask(context.Background(), t))
	})
	<-main.Done()
	return !main.Failing()
}

// Spawn creates and starts a linked child task running body (spec
// §6.2). Equivalent to NewBuilder().Spawn(ctx, body).
func Spawn(ctx context.Context, body func(context.Context)) *rt.Task {
	return NewBuilder().Spawn(ctx, body)
}

// SpawnUnlinked creates a child task whose failure cannot affect the
// spawner, and vice versa.
func SpawnUnlinked(ctx context.Context, body func(context.Context)) *rt.Task {
	return NewBuilder().Unlinked().Spawn(ctx, body)
}

// SpawnSupervised creates a child task the spawner can kill, but which
// cannot kill the spawner back.
func SpawnSupervised(ctx context.Context, body func(context.Context)) *rt.Task {
	return NewBuilder().Supervised().Spawn(ctx, body)
}

// SpawnSched creates and starts a linked child task on a newly-created
// scheduler configured by opts (spec §6.2 "spawn_sched").
func SpawnSched(ctx context.Context, opts rt.SchedOpts, body func(context.Context)) *rt.Task {
	return NewBuilder().Sched(opts).Spawn(ctx, body)
}

// Try runs f in a new supervised task and reports whether it completed
// without failing (spec §6.2 "try" — the original runtime's free `try`
// function defaults to supervised, unlike TryWith which honors whatever
// linkage the Builder it's given already carries).
func Try[T any](ctx context.Context, f func(context.Context) T) (T, bool) {
	return TryWith(NewBuilder().Supervised(), ctx, f)
}

// SpawnWithArg transfers ownership of arg into a new linked child task
// (spec §6.2 "spawn_with").
func SpawnWithArg[A any](ctx context.Context, arg A, f func(context.Context, A)) *rt.Task {
	return SpawnWith(NewBuilder(), ctx, arg, f)
}

// SpawnListenerFn spawns a linked child and returns the parent-side
// channel of a one-way parent-to-child handshake (spec §6.2
// "spawn_listener").
func SpawnListenerFn[A any](ctx context.Context, f func(context.Context, <-chan A)) chan<- A {
	return SpawnListener[A](NewBuilder(), ctx, f)
}

// SpawnConversationFn spawns a linked child with a two-way channel pair
// to the parent (spec §6.2 "spawn_conversation").
func SpawnConversationFn[A, B any](ctx context.Context, f func(context.Context, <-chan A, chan<- B)) (<-chan B, chan<- A) {
	return SpawnConversation[A, B](NewBuilder(), ctx, f)
}
