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

package locking

import (
	"reflect"

	"gvisor.dev/gvisor/pkg/sync"
	"gvisor.dev/gvisor/pkg/sync/locking"
)

// GroupMutex is sync.Mutex with the correctness validator, dedicated to
// guarding a single Taskgroup's members/descendants sets. A task never
// holds two GroupMutexes at once (spec §5 lock ordering rule 1).
type GroupMutex struct {
	mu sync.Mutex
}

var groupMutexClass *locking.MutexClass

func init() {
	groupMutexClass = locking.NewMutexClass(reflect.TypeOf(GroupMutex{}), nil)
}

// Lock locks m.
// +checklocksignore
func (m *GroupMutex) Lock() {
	locking.AddGLock(groupMutexClass, -1)
	m.mu.Lock()
}

// Unlock unlocks m.
// +checklocksignore
func (m *GroupMutex) Unlock() {
	locking.DelGLock(groupMutexClass, -1)
	m.mu.Unlock()
}
