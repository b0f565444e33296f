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

// Package locking declares the two mutex classes whose relative lock
// order is load-bearing in pkg/group: a GroupMutex protects one
// Taskgroup's members/descendants, and an AncestorMutex protects one
// ancestor-chain node. Per spec §4.2 and §5, a task never holds two
// GroupMutexes at once, may hold several AncestorMutexes nested along
// the chain it is currently walking (always in strictly decreasing
// generation order, which rules out deadlock between concurrent
// walkers), and may only acquire a GroupMutex nested inside an
// AncestorMutex (never the reverse).
//
// This is a hand-adapted instance of the pattern gVisor's mutex code
// generator produces (see e.g. the teacher's thread_group_timer_mutex.go
// and deferred_dec_refs_mutex.go): a small wrapper around
// gvisor.dev/gvisor/pkg/sync that registers itself with
// gvisor.dev/gvisor/pkg/sync/locking so that the class, and therefore its
// declared order, is visible to that package's lock-order bookkeeping.
package locking
