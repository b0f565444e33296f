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

package rt

import "gvisor.dev/gvisor/pkg/sync"

// registry tracks every live task in the process, so that a main task's
// fatal failure can kill everything (spec §4.1: "if is_main, issue a
// process-wide kill"), the way Linux kills every task visible in a PID
// namespace when its init process dies.
var registry struct {
	mu    sync.Mutex
	tasks map[*Task]struct{}
}

func init() {
	registry.tasks = make(map[*Task]struct{})
}

func register(t *Task) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.tasks[t] = struct{}{}
}

func unregister(t *Task) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.tasks, t)
}

// KillAll delivers a kill signal to every live task in the process except
// excluding, which the caller guarantees will tear itself down anyway.
func KillAll(excluding *Task) {
	registry.mu.Lock()
	tasks := make([]*Task, 0, len(registry.tasks))
	for t := range registry.tasks {
		if t != excluding {
			tasks = append(tasks, t)
		}
	}
	registry.mu.Unlock()
	for _, t := range tasks {
		t.Kill()
	}
}
