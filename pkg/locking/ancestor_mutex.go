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

// AncestorMutex is sync.Mutex with the correctness validator, dedicated
// to guarding a single ancestor-chain node. A task walking a chain holds
// the AncestorMutexes of the nodes it has entered nested inside one
// another, in strictly decreasing generation order; it may acquire a
// GroupMutex nested inside one (ancestor-node → parent-group, never the
// reverse) (spec §4.2, §5).
type AncestorMutex struct {
	mu sync.Mutex
}

var ancestorMutexClass *locking.MutexClass

func init() {
	ancestorMutexClass = locking.NewMutexClass(reflect.TypeOf(AncestorMutex{}), nil)
}

// Lock locks m.
// +checklocksignore
func (m *AncestorMutex) Lock() {
	locking.AddGLock(ancestorMutexClass, -1)
	m.mu.Lock()
}

// Unlock unlocks m.
// +checklocksignore
func (m *AncestorMutex) Unlock() {
	locking.DelGLock(ancestorMutexClass, -1)
	m.mu.Unlock()
}
