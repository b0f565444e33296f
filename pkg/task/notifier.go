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

// Result is how a task's body finished.
type Result int

const (
	// Success means the task's body returned without failing.
	Success Result = iota
	// Failure means the task panicked with Fail, or was killed.
	Failure
)

func (r Result) String() string {
	if r == Success {
		return "success"
	}
	return "failure"
}

// ExitEvent is the single lifecycle notification delivered for a task
// that registered a notify channel (spec §4.5).
type ExitEvent struct {
	Task   *rt.Task
	Result Result
}

// notifier delivers exactly one ExitEvent on a channel when its owning
// task finishes, however it finishes. It is constructed pessimistically
// (Result defaults to Failure) and only reports Success once the
// enlistment that owns it has actually gone through — if the task never
// gets to run because some ancestor was already failing, its notifier
// still fires, and correctly reports Failure (spec §4.5).
type notifier struct {
	ch     chan<- ExitEvent
	failed bool
}

func newNotifier(ch chan<- ExitEvent) *notifier {
	return &notifier{ch: ch, failed: true}
}

// clear marks the notifier's owner as having successfully joined its
// taskgroup. Until this is called, fire reports Failure.
func (n *notifier) clear() {
	n.failed = false
}

// fire sends the final ExitEvent. It must be called exactly once.
func (n *notifier) fire(t *rt.Task) {
	result := Success
	if n.failed {
		result = Failure
	}
	n.ch <- ExitEvent{Task: t, Result: result}
}
