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
	"math"

	"taskrt.dev/taskrt/pkg/locking"
)

// Node is one link of an ancestor chain: a supervising ancestor's
// Taskgroup, plus the rest of the chain above it. Siblings that share a
// supervising ancestor hold independent Chain values pointing at the
// same Node, so a Node is reached concurrently and needs its own lock
// (spec §3, "two chains may share tails").
type Node struct {
	mu locking.AncestorMutex

	// generation strictly decreases along a chain (child < parent),
	// breaking cycles: see walk.
	generation int

	group *Taskgroup
	tail  Chain
}

// Chain is an ancestor list: either empty (the zero Chain) or a pointer
// to the nearest supervising ancestor's Node. It is owned exclusively by
// one TCB; only that TCB's goroutine ever reads or writes the Chain
// value itself (the Node it may point to can be shared, which is why
// Node carries its own lock).
type Chain struct {
	head *Node
}

// Extend returns a new Chain with a fresh Node prepended, linking to
// group at a generation one greater than chain's nearest link (or
// generation 0 for a chain with no ancestors). This is how a child's ancestor chain
// is built at spawn time from its supervising parent's (spec §4.3: "a
// supervised child's ancestor chain is the parent's chain with the
// parent's own taskgroup prepended").
func (chain Chain) Extend(group *Taskgroup) Chain {
	gen := 0
	if chain.head != nil {
		gen = chain.head.generation + 1
	}
	return Chain{head: &Node{generation: gen, group: group, tail: chain}}
}

// Empty reports whether chain has no ancestors.
func (chain Chain) Empty() bool {
	return chain.head == nil
}

// EachAncestor walks chain from its nearest link outward, invoking
// forward on every live (non-dead) ancestor Taskgroup. Dead ancestors
// (Taskgroup.Dead()) are skipped — forward is not called for them — and
// spliced out of the chain in place. A dead Node further along the chain
// is removed from its predecessor Node's tail, so every Chain value that
// passes through that predecessor sees the shorter chain from then on; a
// dead nearest Node is removed from *chain only (spec §3 dead-ancestor
// coalescing, §8 P6).
//
// If forward returns false for some ancestor, the walk stops there and
// bail (if non-nil) is invoked on every ancestor already visited
// successfully by this call, in the reverse of the order they were
// visited — the all-or-nothing enlistment
// protocol (spec §4.2, §4.3.2). Dead (skipped) ancestors never receive a
// bail call. EachAncestor itself returns whether the walk succeeded with
// no bail needed.
//
// The caller must hold no Taskgroup or ancestor-node lock. A walk holds
// each ancestor-node lock it visits nested inside the previous one, for
// as long as it takes to finish visiting everything beyond it — outermost
// (nearest) first, innermost last — with a Taskgroup lock nested inside
// the current ancestor-node lock only for the duration of a single Dead()
// check or forward/bail call (spec §5 lock ordering). This is safe from
// deadlock because every walk, on every Chain, always proceeds in the
// same direction: strictly decreasing generation.
func EachAncestor(chain *Chain, forward func(*Taskgroup) bool, bail func(*Taskgroup)) bool {
	return walk(chain, forward, bail, math.MaxInt)
}

func walk(chain *Chain, forward func(*Taskgroup) bool, bail func(*Taskgroup), lastGeneration int) bool {
	node := chain.head
	if node == nil {
		return true
	}

	node.mu.Lock()
	defer node.mu.Unlock()
	if node.generation >= lastGeneration {
		panic("taskrt: ancestor chain generation did not strictly decrease")
	}

	dead := node.group.Dead()
	var ok bool
	if dead {
		ok = true
	} else {
		ok = forward(node.group)
	}

	needUnwind := false
	if ok {
		// Recurses on node.tail itself (not a copy), so a splice made
		// further along the chain mutates the real shared Node and is
		// visible to every other chain that passes through it.
		needUnwind = !walk(&node.tail, forward, bail, node.generation)
	}
	if needUnwind && !dead && bail != nil {
		bail(node.group)
	}
	if dead {
		*chain = node.tail
	}
	return ok && !needUnwind
}
