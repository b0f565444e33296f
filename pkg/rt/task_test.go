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
	"context"
	"testing"
	"time"
)

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("%v did not finish in time", task)
	}
}

func TestStartRunsBody(t *testing.T) {
	task := New()
	ran := make(chan struct{})
	task.Start(func(*Task) { close(ran) })
	waitDone(t, task)
	select {
	case <-ran:
	default:
		t.Fatal("body did not run")
	}
}

func TestFailMarksUnwinding(t *testing.T) {
	task := New()
	ranPastFail := false
	task.Start(func(t *Task) {
		t.Fail()
		ranPastFail = true // Fail panics; this must never execute.
	})
	waitDone(t, task)
	if !task.Failing() {
		t.Fatal("task should be failing after Fail")
	}
	if ranPastFail {
		t.Fatal("code after Fail should be unreachable")
	}
}

func TestUnexpectedPanicIsTreatedAsFailure(t *testing.T) {
	task := New()
	task.Start(func(*Task) { panic("boom") })
	waitDone(t, task)
	if !task.Failing() {
		t.Fatal("an unrecovered panic should leave the task failing")
	}
}

func TestAtExitRunsOnEveryPath(t *testing.T) {
	for _, fails := range []bool{false, true} {
		task := New()
		ranAtExit := make(chan struct{})
		task.Start(func(t *Task) {
			t.RegisterAtExit(func() { close(ranAtExit) })
			if fails {
				t.Fail()
			}
		})
		waitDone(t, task)
		select {
		case <-ranAtExit:
		default:
			t.Fatalf("atExit hook did not run (fails=%v)", fails)
		}
	}
}

func TestLocalSlot(t *testing.T) {
	task := New()
	done := make(chan struct{})
	task.Start(func(self *Task) {
		defer close(done)
		if self.Local() != nil {
			t.Fatal("local slot should start nil")
		}
		self.SetLocal(42)
		if got := self.Local(); got != 42 {
			t.Fatalf("got %v, want 42", got)
		}
	})
	<-done
}

func TestContextRoundTrip(t *testing.T) {
	task := New()
	ctx := WithTask(context.Background(), task)
	got, ok := FromContext(ctx)
	if !ok || got != task {
		t.Fatalf("FromContext(WithTask(ctx, task)) = %v, %v; want task, true", got, ok)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("FromContext on a bare context should report false")
	}
}
