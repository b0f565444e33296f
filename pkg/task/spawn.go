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

	"gvisor.dev/gvisor/pkg/cleanup"

	"taskrt.dev/taskrt/pkg/group"
	"taskrt.dev/taskrt/pkg/rt"
)

type spawnOpts struct {
	linked     bool
	supervised bool
	notifyCh   chan<- ExitEvent
	sched      *rt.Scheduler
}

// childTaskgroup decides the new child's taskgroup and ancestor chain
// given its spawner's (spec §4.3):
//
//   - linked: the child joins the spawner's own taskgroup outright, and
//     inherits the spawner's ancestor chain and is-main flag unchanged.
//   - supervised: the child gets its own fresh taskgroup, and its
//     ancestor chain is the spawner's chain with the spawner's own
//     taskgroup prepended — so the spawner (and everything above it)
//     can still kill the child, but not the reverse.
//   - neither (unlinked): the child gets its own fresh taskgroup and an
//     empty ancestor chain; nothing links its fate to the spawner's.
func childTaskgroup(spawner *tcb, linked, supervised bool) (*group.Taskgroup, group.Chain, bool) {
	if linked {
		return spawner.group, spawner.ancestors, spawner.isMain
	}
	childGroup := group.New()
	ancestors := group.Chain{}
	if supervised {
		ancestors = spawner.ancestors.Extend(spawner.group)
	}
	return childGroup, ancestors, false
}

// enlistMany joins child as a member of childGroup and as a descendant of
// every group in ancestors. If any of those enlistments fails — because
// that group is already failing — every enlistment already made is
// undone and enlistMany returns false: the all-or-nothing
// protocol of spec §4.3.2.
func enlistMany(child *rt.Task, childGroup *group.Taskgroup, ancestors group.Chain) bool {
	if !childGroup.Enlist(child, true) {
		return false
	}
	ok := group.EachAncestor(&ancestors, func(g *group.Taskgroup) bool {
		return g.Enlist(child, false)
	}, func(g *group.Taskgroup) {
		g.Leave(child, false)
	})
	if !ok {
		childGroup.Leave(child, true)
	}
	return ok
}

// spawnRaw is the engine behind every spawn variant: it resolves the
// child's taskgroup and ancestors from the spawner found in ctx, starts
// the child task (on sched if given, otherwise inheriting the ambient
// scheduler), and only runs body if enlistment succeeds. A notifier, if
// notifyCh is non-nil, fires exactly once regardless of which way the
// child's life goes (spec §4.3, §4.5).
//
// Creating the child task and committing it to enlistMany happens inside
// a non-killable section of the spawning task: getting killed midway
// would otherwise leak a task that can never be torn down, or start a
// child that never got properly enlisted (spec §4.3, "kill-safety of
// spawn").
func spawnRaw(ctx context.Context, opts spawnOpts, body func(context.Context)) *rt.Task {
	spawner := currentFrom(ctx)
	spawnerTCB, ok := tcbOf(spawner)
	if !ok {
		panic("taskrt: spawning task has no taskgroup; call task.Root first")
	}

	var child *rt.Task
	NonKillable(ctx, func() {
		childGroup, ancestors, isMain := childTaskgroup(spawnerTCB, opts.linked, opts.supervised)

		var n *notifier
		if opts.notifyCh != nil {
			n = newNotifier(opts.notifyCh)
		}

		sched := opts.sched
		if sched == nil {
			sched = rt.Default()
		}

		child = sched.Spawn(func(t *rt.Task) {
			if !enlistMany(t, childGroup, ancestors) {
				if n != nil {
					n.fire(t)
				}
				return
			}
			// Between a successful enlistMany and newTCB registering the
			// at-exit teardown hook (§4.4), nothing has yet promised to
			// leave these groups for t. If that narrow window panics —
			// a bug, not an expected outcome — t would otherwise sit in
			// childGroup and every ancestor group forever, neither a
			// live member nor ever cleaned up. cu undoes exactly the
			// enlistment enlistMany just committed; Release cancels it
			// the instant newTCB takes over that responsibility.
			cu := cleanup.Make(func() {
				childGroup.Leave(t, true)
				group.EachAncestor(&ancestors, func(g *group.Taskgroup) bool {
					g.Leave(t, false)
					return true
				}, nil)
				if n != nil {
					n.fire(t)
				}
			})
			defer cu.Clean()
			newTCB(t, childGroup, ancestors, isMain, n)
			cu.Release()
			body(rt.WithTask(ctx, t))
		})
	})
	return child
}
