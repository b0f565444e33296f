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

import "runtime"

// Kill delivers a kill signal to t. If t is currently inside a
// non-killable section, the signal is deferred until the section ends
// (AllowKill drops the inhibit count to zero). Kill is idempotent: a
// second kill while one is already pending is a no-op.
func (t *Task) Kill() {
	if t.killInhibit.Load() > 0 {
		t.deferredKill.Store(true)
		return
	}
	select {
	case t.interrupt <- struct{}{}:
	default:
	}
}

// Yield relinquishes the processor to the scheduler. If a kill signal is
// pending and t is not already unwinding, Yield fails the task (spec
// §6.3). Inside an atomic section (yieldInhibit > 0) Yield is a pure
// no-op: atomic additionally inhibits the yield point itself.
func (t *Task) Yield() {
	if t.yieldInhibit.Load() > 0 {
		return
	}
	runtime.Gosched()
	if t.killInhibit.Load() > 0 {
		// Inside non-killable: the signal must wait.
		return
	}
	if t.unwinding.Load() {
		return
	}
	select {
	case <-t.interrupt:
		t.Fail()
	default:
	}
}

// InhibitKill increments t's non-killable nesting count. Pair with
// AllowKill; both must run on every exit path.
func (t *Task) InhibitKill() { t.killInhibit.Add(1) }

// AllowKill decrements t's non-killable nesting count. When the count
// reaches zero, a kill signal deferred while inhibited is delivered.
func (t *Task) AllowKill() {
	if t.killInhibit.Add(-1) == 0 && t.deferredKill.CompareAndSwap(true, false) {
		select {
		case t.interrupt <- struct{}{}:
		default:
		}
	}
}

// InhibitYield increments t's yield-inhibit nesting count (the "atomic"
// critical section, spec §4.6).
func (t *Task) InhibitYield() { t.yieldInhibit.Add(1) }

// AllowYield decrements t's yield-inhibit nesting count.
func (t *Task) AllowYield() { t.yieldInhibit.Add(-1) }
