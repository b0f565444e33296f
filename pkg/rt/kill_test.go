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

import (
	"testing"
	"time"
)

func TestKillThenYieldFails(t *testing.T) {
	task := New()
	reachedAfterYield := false
	task.Start(func(t *Task) {
		t.Kill()
		t.Yield()
		reachedAfterYield = true
	})
	waitDone(t, task)
	if !task.Failing() {
		t.Fatal("task killed before yielding should fail at the yield point")
	}
	if reachedAfterYield {
		t.Fatal("code after the failing Yield should be unreachable")
	}
}

func TestKillDuringNonKillableIsDeferred(t *testing.T) {
	task := New()
	observedBeforeAllow := false
	task.Start(func(t *Task) {
		t.InhibitKill()
		t.Kill()
		// The kill is pending, not yet delivered: Yield must not fail here
		// because yielding doesn't consume a deferred kill while inhibited.
		t.Yield()
		observedBeforeAllow = !t.Failing()
		t.AllowKill()
		// AllowKill re-queues the deferred kill; the next yield observes it.
		t.Yield()
	})
	waitDone(t, task)
	if !observedBeforeAllow {
		t.Fatal("task should not have failed while kill was inhibited")
	}
	if !task.Failing() {
		t.Fatal("deferred kill should be delivered once AllowKill drops the count to zero and observed at the next yield")
	}
}

func TestYieldInhibitedIsNoop(t *testing.T) {
	task := New()
	task.Start(func(t *Task) {
		t.InhibitYield()
		t.Kill()
		t.Yield() // must not observe the kill: yielding itself is inhibited.
		t.AllowYield()
	})
	waitDone(t, task)
	if task.Failing() {
		t.Fatal("a kill delivered while yield is inhibited should not be observed until a real yield")
	}
}

func TestKillAllExcludesCaller(t *testing.T) {
	a := New()
	started := make(chan struct{})
	proceed := make(chan struct{})
	a.Start(func(t *Task) {
		close(started)
		<-proceed
		t.Yield()
	})
	<-started

	done := make(chan struct{})
	b := New()
	b.Start(func(t *Task) {
		defer close(done)
		KillAll(t)
		if t.Failing() {
			panic("KillAll should exclude the caller")
		}
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("excluded task did not finish")
	}

	close(proceed)
	waitDone(t, a)
	if !a.Failing() {
		t.Fatal("KillAll should have killed every other live task")
	}
}
