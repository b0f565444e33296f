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

// Package group implements the shared mutable fate of one linked-failure
// cohort: the Taskgroup (members + descendants) and the ancestor chain
// that lets supervising groups reach down to kill a supervised
// descendant. This is the dense subsystem the spec calls out as "the hard
// part" (spec §1): taskgroups, ancestor chains, enlistment, coalescing,
// and kill-all.
//
// Grounded on the teacher's pkg/sentry/kernel.TaskSet/ThreadGroup
// (threads.go): a TaskSet-wide mutex serializing membership in a
// thread-group-equivalent's task list, and on the Rust runtime this spec
// distills (original_source/src/libcore/task.rs's TaskGroupData,
// enlist_in_taskgroup, leave_taskgroup and kill_taskgroup).
package group

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"gvisor.dev/gvisor/pkg/log"

	"taskrt.dev/taskrt/pkg/locking"
	"taskrt.dev/taskrt/pkg/rt"
)

// Taskgroup is the cohort of tasks sharing one failure fate: members,
// whose failure kills the whole group, and descendants, which the group
// can kill but which cannot kill it back (spec §3).
type Taskgroup struct {
	mu locking.GroupMutex

	// state is nil iff the group is failing (spec I6: "a failing
	// taskgroup state slot never re-populates"). It is cleared exactly
	// once, by the first Kill call to observe it non-nil.
	state *groupState
}

type groupState struct {
	members     map[*rt.Task]struct{}
	descendants map[*rt.Task]struct{}
}

// New returns a new, empty, non-failing Taskgroup.
func New() *Taskgroup {
	return &Taskgroup{
		state: &groupState{
			members:     make(map[*rt.Task]struct{}),
			descendants: make(map[*rt.Task]struct{}),
		},
	}
}

func setFor(s *groupState, asMember bool) map[*rt.Task]struct{} {
	if asMember {
		return s.members
	}
	return s.descendants
}

// Enlist adds task to g's members (asMember) or descendants set. It
// returns false without modifying g if g is already failing (spec §4.1).
//
// Enlist panics if task is already present in the target set: per
// invariant I1, a live caller must never enlist the same task twice.
func (g *Taskgroup) Enlist(task *rt.Task, asMember bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == nil {
		return false
	}
	set := setFor(g.state, asMember)
	if _, ok := set[task]; ok {
		panic(fmt.Sprintf("taskrt: %v already enlisted", task))
	}
	set[task] = struct{}{}
	return true
}

// Leave removes task from g's members or descendants set. If g is
// failing, Leave is a no-op (spec §4.1). Removing a task that isn't
// present is tolerated, not a panic: teardown's ancestor-leave pass is
// best-effort (spec §4.4).
func (g *Taskgroup) Leave(task *rt.Task, asMember bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == nil {
		return
	}
	delete(setFor(g.state, asMember), task)
}

// Dead reports whether g's members set is empty. A dead group can never
// kill anything further and is a candidate for ancestor-chain coalescing
// (spec §3). Dead is independent of "failing": a group that has already
// failed always reports false (its membership snapshot is gone, not
// zero), since once failed it no longer needs coalescing — every live
// reference to it is already unwinding along with it.
func (g *Taskgroup) Dead() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == nil {
		return false
	}
	return len(g.state.members) == 0
}

// Failing reports whether g has already been killed.
func (g *Taskgroup) Failing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == nil
}

// Kill marks g failing and broadcasts a kill signal to every member
// except excluding and to every descendant, then, if isMain, kills every
// task in the process. Kill is idempotent: only the first caller to
// observe g non-failing does any of this (spec §4.1).
//
// Kill runs under g's lock for its entire duration. This is deliberate:
// if we killed outside the lock, a concurrently exiting member could
// finish its own teardown and invalidate its token before we signalled
// it. Holding the lock serializes exit against kill so every member we
// intend to signal is still be alive to receive it.
func (g *Taskgroup) Kill(excluding *rt.Task, isMain bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	state := g.state
	g.state = nil
	if state == nil {
		// Somebody else already killed this group (or it was already
		// failing); at most one caller does the broadcast.
		return
	}

	var errs *multierror.Error
	for sibling := range state.members {
		if sibling == excluding {
			continue
		}
		errs = killOne(errs, sibling)
	}
	for child := range state.descendants {
		errs = killOne(errs, child)
	}
	if isMain {
		rt.KillAll(excluding)
	}
	if errs.ErrorOrNil() != nil {
		log.Warningf("taskrt: kill broadcast encountered non-fatal errors: %v", errs)
	}
}

func killOne(errs *multierror.Error, t *rt.Task) (result *multierror.Error) {
	result = errs
	defer func() {
		if r := recover(); r != nil {
			result = multierror.Append(result, fmt.Errorf("killing %v: %v", t, r))
		}
	}()
	t.Kill()
	return result
}
