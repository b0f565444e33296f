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

package group

import (
	"testing"

	"taskrt.dev/taskrt/pkg/rt"
)

// liveGroup returns a fresh Taskgroup with one member enlisted, so
// Dead() is false. A Taskgroup fresh off New() has no members and would
// otherwise itself read as dead.
func liveGroup() *Taskgroup {
	g := New()
	g.Enlist(rt.New(), true)
	return g
}

func TestEmptyChainWalksTrivially(t *testing.T) {
	var chain Chain
	visited := 0
	ok := EachAncestor(&chain, func(*Taskgroup) bool { visited++; return true }, nil)
	if !ok || visited != 0 {
		t.Fatalf("ok=%v visited=%d, want true, 0", ok, visited)
	}
}

func TestEachAncestorVisitsOutward(t *testing.T) {
	var chain Chain
	var order []*Taskgroup
	groups := []*Taskgroup{liveGroup(), liveGroup(), liveGroup()}
	for _, g := range groups {
		chain = chain.Extend(g)
	}
	// chain's nearest link is the last Extend call: groups[2], then
	// groups[1], then groups[0].
	ok := EachAncestor(&chain, func(g *Taskgroup) bool {
		order = append(order, g)
		return true
	}, nil)
	if !ok {
		t.Fatal("walk should succeed when every ancestor is live")
	}
	want := []*Taskgroup{groups[2], groups[1], groups[0]}
	if len(order) != len(want) {
		t.Fatalf("visited %d ancestors, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("visit order[%d] = %p, want %p", i, order[i], want[i])
		}
	}
}

func TestEachAncestorBailsInOrderOnFailure(t *testing.T) {
	var chain Chain
	g0, g1, g2 := liveGroup(), liveGroup(), liveGroup()
	chain = chain.Extend(g0).Extend(g1).Extend(g2)

	var bailed []*Taskgroup
	ok := EachAncestor(&chain, func(g *Taskgroup) bool {
		return g != g1 // fail partway through, at g1
	}, func(g *Taskgroup) {
		bailed = append(bailed, g)
	})
	if ok {
		t.Fatal("walk should report failure")
	}
	// g2 is visited first and succeeds, so it alone gets bailed; g1 itself
	// (the failing ancestor) and g0 (never reached) do not.
	if len(bailed) != 1 || bailed[0] != g2 {
		t.Fatalf("bailed = %v, want [g2]", bailed)
	}
}

func TestDeadAncestorsAreSkippedAndCoalesced(t *testing.T) {
	dead := New()
	task := rt.New()
	dead.Enlist(task, true)
	dead.Leave(task, true) // members now empty: Dead() is true.

	live := liveGroup()
	var chain Chain
	chain = chain.Extend(dead).Extend(live)

	var visited []*Taskgroup
	ok := EachAncestor(&chain, func(g *Taskgroup) bool {
		visited = append(visited, g)
		return true
	}, nil)
	if !ok {
		t.Fatal("a dead ancestor should be treated as continue-success, not failure")
	}
	if len(visited) != 1 || visited[0] != live {
		t.Fatalf("visited = %v, want [live] (dead ancestor skipped)", visited)
	}

	// Coalescing happened on the live node's own tail field: the dead node
	// is gone for every chain that shares it, not just *chain.
	if chain.head.group != live {
		t.Fatalf("chain head should be live, got %v", chain.head.group)
	}
	if chain.head.tail.head != nil {
		t.Fatalf("live's tail should have been spliced to empty, got %v", chain.head.tail.head)
	}
}

func TestFailingAncestorIsNotTreatedAsDead(t *testing.T) {
	failing := New()
	victim := rt.New()
	failing.Enlist(victim, true)
	failing.Kill(victim, false) // state goes nil: failing, not "dead by membership".

	var chain Chain
	chain = chain.Extend(failing)

	var forwardCalls, bailCalls int
	ok := EachAncestor(&chain, func(g *Taskgroup) bool {
		forwardCalls++
		return g.Enlist(rt.New(), false)
	}, func(*Taskgroup) {
		bailCalls++
	})
	if ok {
		t.Fatal("enlisting into a failing ancestor must fail the walk")
	}
	if forwardCalls != 1 {
		t.Fatalf("a failing (not dead) ancestor should still be handed to forward, got %d calls", forwardCalls)
	}
}
