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

import "taskrt.dev/taskrt/pkg/rt"

// Key identifies one task-local slot. The original runtime this package
// distills addresses task-local slots by the address of a monomorphic
// function (LocalDataKey); Go has no equivalent address to borrow, so
// Key[T] is a dedicated, comparable token instead — allocate one with
// NewKey and share it the way the original shared a key function (spec
// §6.3 "task-local storage").
type Key[T any] struct{ _ byte }

// NewKey allocates a fresh, unique Key[T]. Two keys are never equal,
// even for the same T.
func NewKey[T any]() *Key[T] {
	return new(Key[T])
}

// localTable is the lazily-created value stored in a Task's single
// opaque local slot (rt.Task.Local/SetLocal); it is accessed only by the
// owning task's own goroutine, so it needs no lock of its own.
type localTable struct {
	values map[any]any
}

func table(t *rt.Task) *localTable {
	if tb, ok := t.Local().(*localTable); ok {
		return tb
	}
	tb := &localTable{values: make(map[any]any)}
	t.SetLocal(tb)
	return tb
}

// Get retrieves the value stored under key on t, if any. It is kept in
// the table after the call (spec: "kept alive... until explicitly
// removed").
func Get[T any](t *rt.Task, key *Key[T]) (T, bool) {
	v, ok := table(t).values[key]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Set stores val under key on t, overwriting any previous value.
func Set[T any](t *rt.Task, key *Key[T], val T) {
	table(t).values[key] = val
}

// Pop removes and returns the value stored under key on t, if any.
func Pop[T any](t *rt.Task, key *Key[T]) (T, bool) {
	tb := table(t)
	v, ok := tb.values[key]
	if !ok {
		var zero T
		return zero, false
	}
	delete(tb.values, key)
	return v.(T), true
}

// Modify replaces the value under key with modify's return, passing it
// whatever Pop would have returned. If modify reports false, the key is
// left absent rather than repopulated (mirrors the original's
// local_modify: "if the function returns None, the data is removed").
func Modify[T any](t *rt.Task, key *Key[T], modify func(T, bool) (T, bool)) {
	cur, had := Pop(t, key)
	next, keep := modify(cur, had)
	if keep {
		Set(t, key, next)
	}
}
