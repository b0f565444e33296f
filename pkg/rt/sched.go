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
	"fmt"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// SchedMode selects how a Scheduler bounds the OS threads backing its
// tasks. Only SingleThreaded, ManualThreads and PlatformMain are
// implemented; the others are named in the spec but explicitly left to
// the scheduler, not the supervision core (spec §9, "Open question —
// sched_mode coverage").
type SchedMode int

const (
	// SingleThreaded runs every task in the scheduler on a single OS
	// thread equivalent (concurrency 1).
	SingleThreaded SchedMode = iota
	// ThreadPerCore is unimplemented; see NewScheduler.
	ThreadPerCore
	// ThreadPerTask is unimplemented; see NewScheduler.
	ThreadPerTask
	// ManualThreads runs up to N tasks concurrently.
	ManualThreads
	// PlatformMain runs one task at a time (concurrency 1); it does not
	// pin tasks to the process's main OS thread.
	PlatformMain
)

// SchedOpts configures a Scheduler.
type SchedOpts struct {
	Mode SchedMode
	// Threads is only consulted when Mode == ManualThreads.
	Threads int
	// ForeignStackSize is named by the original spec's SchedOpts but is
	// unimplemented at this layer (stack allocation is an external
	// collaborator per spec §1).
	ForeignStackSize int
}

// Scheduler bounds the concurrency available to tasks spawned under it.
// It is the minimal stand-in for "create a task optionally in a named
// scheduler" (spec §6.4).
type Scheduler struct {
	sem *semaphore.Weighted
}

// NewScheduler builds a Scheduler per opts. It panics on the scheduling
// modes the original runtime itself refused to implement
// (ThreadPerCore, ThreadPerTask) and on a nonsensical zero-thread manual
// pool, matching the original's own `fail ~"..."` behavior rather than
// silently degrading.
func NewScheduler(opts SchedOpts) *Scheduler {
	if opts.ForeignStackSize != 0 {
		panic("rt: foreign_stack_size scheduler option unimplemented")
	}
	switch opts.Mode {
	case SingleThreaded:
		return &Scheduler{sem: semaphore.NewWeighted(1)}
	case ThreadPerCore:
		panic("rt: thread_per_core scheduling mode unimplemented")
	case ThreadPerTask:
		panic("rt: thread_per_task scheduling mode unimplemented")
	case ManualThreads:
		if opts.Threads == 0 {
			panic("rt: can not create a scheduler with no threads")
		}
		return &Scheduler{sem: semaphore.NewWeighted(int64(opts.Threads))}
	case PlatformMain:
		return &Scheduler{sem: semaphore.NewWeighted(1)}
	default:
		panic(fmt.Sprintf("rt: unknown scheduler mode %d", opts.Mode))
	}
}

// defaultScheduler bounds concurrency at 256 tasks per CPU, high enough
// that an ordinary spawn rarely waits, matching "inherit" scheduler mode (the common case: most tasks don't request a
// dedicated scheduler).
var defaultScheduler = &Scheduler{sem: semaphore.NewWeighted(int64(max(runtime.NumCPU()*256, 1)))}

// Default returns the ambient scheduler used by a spawn that does not
// request a dedicated one — the common case (spec §6.1 "sched: inherit").
func Default() *Scheduler {
	return defaultScheduler
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Spawn creates and starts a task under s, blocking until a concurrency
// slot is free. The slot is released once body returns or fails.
func (s *Scheduler) Spawn(body func(*Task)) *Task {
	t := New()
	if err := s.sem.Acquire(context.Background(), 1); err != nil {
		// context.Background() never cancels; Acquire cannot fail here.
		panic(err)
	}
	t.Start(func(t *Task) {
		defer s.sem.Release(1)
		body(t)
	})
	return t
}
