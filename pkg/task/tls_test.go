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
	"testing"

	"taskrt.dev/taskrt/pkg/rt"
)

func TestGetSetRoundTrip(t *testing.T) {
	key := NewKey[int]()
	task := rt.New()

	if _, ok := Get(task, key); ok {
		t.Fatal("Get on an unset key should report false")
	}

	Set(task, key, 42)
	v, ok := Get(task, key)
	if !ok || v != 42 {
		t.Fatalf("Get = %v, %v, want 42, true", v, ok)
	}

	// Get must not remove the value.
	v, ok = Get(task, key)
	if !ok || v != 42 {
		t.Fatalf("second Get = %v, %v, want 42, true", v, ok)
	}
}

func TestDistinctKeysAreIndependent(t *testing.T) {
	k1 := NewKey[string]()
	k2 := NewKey[string]()
	task := rt.New()

	Set(task, k1, "a")
	Set(task, k2, "b")

	v1, _ := Get(task, k1)
	v2, _ := Get(task, k2)
	if v1 != "a" || v2 != "b" {
		t.Fatalf("k1=%q k2=%q, want a, b", v1, v2)
	}
}

func TestPopRemoves(t *testing.T) {
	key := NewKey[int]()
	task := rt.New()
	Set(task, key, 7)

	v, ok := Pop(task, key)
	if !ok || v != 7 {
		t.Fatalf("Pop = %v, %v, want 7, true", v, ok)
	}
	if _, ok := Get(task, key); ok {
		t.Fatal("value should be gone after Pop")
	}

	// Popping an absent key is tolerated.
	if _, ok := Pop(task, key); ok {
		t.Fatal("Pop on an absent key should report false")
	}
}

func TestModifyUpdatesInPlace(t *testing.T) {
	key := NewKey[int]()
	task := rt.New()
	Set(task, key, 1)

	Modify(task, key, func(cur int, had bool) (int, bool) {
		if !had {
			t.Fatal("Modify should see the prior value")
		}
		return cur + 1, true
	})

	v, _ := Get(task, key)
	if v != 2 {
		t.Fatalf("value = %d, want 2", v)
	}
}

func TestModifyCanRemove(t *testing.T) {
	key := NewKey[int]()
	task := rt.New()
	Set(task, key, 1)

	Modify(task, key, func(int, bool) (int, bool) {
		return 0, false
	})

	if _, ok := Get(task, key); ok {
		t.Fatal("Modify returning false should leave the key absent")
	}
}

func TestModifyOnAbsentKeySeesZeroValue(t *testing.T) {
	key := NewKey[string]()
	task := rt.New()

	Modify(task, key, func(cur string, had bool) (string, bool) {
		if had {
			t.Fatal("had should be false for an absent key")
		}
		if cur != "" {
			t.Fatalf("cur = %q, want zero value", cur)
		}
		return "seeded", true
	})

	v, ok := Get(task, key)
	if !ok || v != "seeded" {
		t.Fatalf("Get = %v, %v, want seeded, true", v, ok)
	}
}

func TestKeysAreTaskScoped(t *testing.T) {
	key := NewKey[int]()
	a, b := rt.New(), rt.New()

	Set(a, key, 1)
	Set(b, key, 2)

	va, _ := Get(a, key)
	vb, _ := Get(b, key)
	if va != 1 || vb != 2 {
		t.Fatalf("a=%d b=%d, want 1, 2 (independent task-local slots)", va, vb)
	}
}
