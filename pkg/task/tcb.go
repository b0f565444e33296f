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
	"taskrt.dev/taskrt/pkg/group"
	"taskrt.dev/taskrt/pkg/rt"
)

// tcb ties a task to its taskgroup, its ancestor chain, its is-main flag
// and its exit notifier (spec §3 "Task Control Block"). One is built for
// every spawned task, stored in that task's own task-local slot, and torn
// down exactly once when the task exits (spec §4.4).
type tcb struct {
	me        *rt.Task
	group     *group.Taskgroup
	ancestors group.Chain
	isMain    bool
	notifier  *notifier
}

// tcbKey is the well-known task-local slot every tcb is filed under,
// playing the role of the original runtime's dedicated taskgroup_key!
// slot (a reserved, unmistakable-by-construction local-data key).
var tcbKey = NewKey[*tcb]()

func tcbOf(t *rt.Task) (*tcb, bool) {
	return Get(t, tcbKey)
}

// newTCB builds and files a tcb for me, and clears n (if any) to record
// that me has actually joined its taskgroup — from here on, if me exits
// without failing, its notifier reports Success (spec §4.5).
func newTCB(me *rt.Task, g *group.Taskgroup, ancestors group.Chain, isMain bool, n *notifier) *tcb {
	if n != nil {
		n.clear()
	}
	tc := &tcb{me: me, group: g, ancestors: ancestors, isMain: isMain, notifier: n}
	Set(me, tcbKey, tc)
	me.RegisterAtExit(tc.teardown)
	return tc
}

// teardown runs exactly once, at task exit (spec §4.4):
//
//  1. If the task is failing, its whole taskgroup is killed (members and
//     descendants, plus, if it is main, every task in the process).
//     Otherwise the task simply leaves its own taskgroup.
//  2. Regardless of outcome, the task leaves every ancestor group it was
//     enlisted in as a descendant — no early exit, every ancestor is
//     visited.
//  3. The task's local slot is cleared, releasing every task-local entry
//     (this tcb's own included).
//  4. Its notifier, if any, fires last.
func (tc *tcb) teardown() {
	if tc.me.Failing() {
		if tc.notifier != nil {
			tc.notifier.failed = true
		}
		tc.group.Kill(tc.me, tc.isMain)
	} else {
		tc.group.Leave(tc.me, true)
	}

	ancestors := tc.ancestors
	group.EachAncestor(&ancestors, func(g *group.Taskgroup) bool {
		g.Leave(tc.me, false)
		return true
	}, nil)

	tc.me.SetLocal(nil)

	if tc.notifier != nil {
		tc.notifier.fire(tc.me)
	}
}
